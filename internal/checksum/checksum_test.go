package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sum([]byte("abc")); got != want {
		t.Errorf("Sum = %s", got)
	}
}

func TestShort(t *testing.T) {
	if got := Short([]byte("abc"), 8); got != "ba7816bf" {
		t.Errorf("Short = %s", got)
	}
	if got := Short([]byte("abc"), 0); len(got) != 64 {
		t.Errorf("Short(0) len = %d", len(got))
	}
	if got := Short([]byte("abc"), 100); len(got) != 64 {
		t.Errorf("Short(100) len = %d", len(got))
	}
}
