package suggest

import "testing"

func TestFromText(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"func handleRequest(w http.ResponseWriter) {", "handleRequest"},
		{"func (s *Server) Start() error {", "Start"},
		{"type Config struct {", "Config"},
		{"class UserService:", "UserService"},
		{"def parse_args(argv):", "parse_args"},
		{"const maxRetries = 3", "maxRetries"},
		{"    return buildResponse(ctx)", "buildResponse"},
		{"if err != nil {", "err"},
		{"}", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := FromText(tc.text); got != tc.want {
			t.Errorf("FromText(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestFallback(t *testing.T) {
	if got := Fallback("/p/internal/server.go", 42); got != "server_42" {
		t.Errorf("Fallback = %q", got)
	}
	if got := Fallback("/p/Makefile", 3); got != "Makefile_3" {
		t.Errorf("Fallback no ext = %q", got)
	}
}

func TestSuggest(t *testing.T) {
	var s Suggester
	if got := s.Suggest("/p/a.go", 7, "func Run() {", nil); got != "Run" {
		t.Errorf("Suggest = %q", got)
	}
	if got := s.Suggest("/p/a.go", 7, "}", nil); got != "a_7" {
		t.Errorf("Suggest fallback = %q", got)
	}
}
