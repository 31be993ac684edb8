package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/marksman/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Storage.Debounce() != 500*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Storage.Debounce())
	}
	if !strings.HasSuffix(cfg.Index.Path, filepath.Join("marksman", "index.db")) {
		t.Errorf("index path = %q", cfg.Index.Path)
	}
}

func TestDefaultDataDir_XDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/xdg")
	if got := defaultDataDir(); got != filepath.Join("/xdg", "marksman") {
		t.Errorf("data dir = %q", got)
	}
}

func TestMarksConfig_Bounds(t *testing.T) {
	for _, n := range []int{0, 1001} {
		cfg := MarksConfig{MaxMarks: n}
		if err := cfg.Validate(); err == nil {
			t.Errorf("max_marks %d should fail", n)
		}
	}
	cfg := MarksConfig{MaxMarks: 1000, HistorySize: 100}
	if err := cfg.Validate(); err != nil {
		t.Errorf("upper bounds should pass: %v", err)
	}
}

func TestStorageConfig_DebounceBounds(t *testing.T) {
	for _, ms := range []int{50, 6000} {
		cfg := StorageConfig{DataDir: "/tmp", DebounceMS: ms}
		if err := cfg.Validate(); err == nil {
			t.Errorf("debounce_ms %d should fail", ms)
		}
	}
}

func TestProjectConfig_CacheTTL(t *testing.T) {
	cfg := ProjectConfig{CacheTTL: time.Hour}
	if err := cfg.Validate(); err == nil {
		t.Error("cache_ttl 1h should fail")
	}
	cfg = ProjectConfig{Markers: []string{".git", ""}}
	if err := cfg.Validate(); err == nil {
		t.Error("empty marker should fail")
	}
}

func TestConfig_LoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  log_level: debug
marks:
  max_marks: 20
project:
  cache_ttl: 5s
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if cfg.Marks.MaxMarks != 20 {
		t.Errorf("max marks = %d", cfg.Marks.MaxMarks)
	}
	if cfg.Project.CacheTTL != 5*time.Second {
		t.Errorf("cache ttl = %v", cfg.Project.CacheTTL)
	}
	if cfg.App.HTTP.Port != 7311 {
		t.Errorf("port default lost: %d", cfg.App.HTTP.Port)
	}
}
