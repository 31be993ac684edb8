package transfer

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/marksman/internal/apperr"
	"github.com/starford/marksman/internal/markset"
	"github.com/starford/marksman/internal/models"
)

var exportTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func mk(line int) models.Mark {
	return models.Mark{File: "/work/app/main.go", Line: line, Col: 1, CreatedAt: 1}
}

func setOf(names ...string) *markset.Set {
	s := markset.New()
	for i, n := range names {
		s.Append(n, mk(i+1))
	}
	return s
}

func TestParseStrategy(t *testing.T) {
	tests := map[string]Strategy{"": Merge, "merge": Merge, "REPLACE": Replace, " replace ": Replace}
	for in, want := range tests {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseStrategy("union"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestExport_Empty(t *testing.T) {
	_, err := Export(markset.New(), "/work/app", exportTime)
	if !errors.Is(err, apperr.ErrNothingToExport) {
		t.Fatalf("err = %v, want ErrNothingToExport", err)
	}
}

func TestExport_Metadata(t *testing.T) {
	data, err := Export(setOf("b", "a"), "/work/app", exportTime)
	if err != nil {
		t.Fatal(err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Metadata != (Metadata{TotalMarks: 2, ProjectName: "app"}) {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
	if doc.ExportedAt != "2025-06-01T12:00:00Z" {
		t.Errorf("exported_at = %q", doc.ExportedAt)
	}
	if diff := cmp.Diff([]string{"b", "a"}, doc.MarkOrder); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestExportDecode_RoundTrip(t *testing.T) {
	src := setOf("z", "m", "a")
	data, err := Export(src, "/work/app", exportTime)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(data, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(src.Entries(), got.Entries()); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestDecode_AllowsCommentsAndTrailingCommas(t *testing.T) {
	data := []byte(`{
		// hand-edited
		"marks": {
			"a": {"file": "/p/a.go", "line": 1, "col": 1,},
		},
		"mark_order": ["a",],
	}`)
	set, err := Decode(data, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if set.Len() != 1 {
		t.Errorf("Len = %d", set.Len())
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := map[string]string{
		"garbage":      `not json`,
		"no marks":     `{"version": "1.0"}`,
		"legacy shape": `{"a": {"file": "/p/a.go", "line": 1, "col": 1}}`,
		"bad mark":     `{"marks": {"a": {"file": "", "line": 1, "col": 1}}}`,
		"bad name":     `{"marks": {"a/b": {"file": "/p/a.go", "line": 1, "col": 1}}}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(data), nil)
			if apperr.KindOf(err) != apperr.ErrInvalidFormat {
				t.Errorf("kind = %v, want ErrInvalidFormat (err %v)", apperr.KindOf(err), err)
			}
		})
	}
}

func TestApply_Replace(t *testing.T) {
	live := setOf("a", "b")
	incoming := setOf("c", "a")
	out, st := Apply(live, incoming, Replace)

	if diff := cmp.Diff([]string{"c", "a"}, out.Names()); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if st != (Stats{Added: 2, Total: 2}) {
		t.Errorf("stats = %+v", st)
	}
	if live.Len() != 2 || live.IndexOf("b") != 2 {
		t.Error("live set mutated")
	}
}

func TestApply_MergeKeepsPositions(t *testing.T) {
	live := setOf("a", "b", "c")
	incoming := markset.New()
	incoming.Append("d", mk(40))
	incoming.Append("b", mk(99))
	incoming.Append("e", mk(50))

	out, st := Apply(live, incoming, Merge)
	if diff := cmp.Diff([]string{"a", "b", "c", "d", "e"}, out.Names()); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if m, _ := out.Get("b"); m.Line != 99 {
		t.Errorf("b not overwritten: line %d", m.Line)
	}
	if st != (Stats{Added: 2, Updated: 1, Total: 5}) {
		t.Errorf("stats = %+v", st)
	}
}

func TestImport(t *testing.T) {
	data, _ := Export(setOf("x", "y"), "/work/app", exportTime)
	out, st, err := Import(data, Merge, setOf("y"), models.DefaultNameValidator{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"y", "x"}, out.Names()); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if st.Added != 1 || st.Updated != 1 {
		t.Errorf("stats = %+v", st)
	}
}
