package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/marksman/internal/project"
	"github.com/starford/marksman/internal/registry"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	Marks   MarksConfig       `yaml:"marks"`
	Project ProjectConfig     `yaml:"project"`
	Index   IndexConfig       `yaml:"index"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Marks.Validate(); err != nil {
		return err
	}
	if err := c.Project.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig controls where and how marks are persisted.
type StorageConfig struct {
	DataDir    string `yaml:"data_dir"`
	AutoSave   bool   `yaml:"auto_save"`
	Backup     bool   `yaml:"backup"`
	DebounceMS int    `yaml:"debounce_ms"`
}

// Debounce returns the save debounce window.
func (c *StorageConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.DebounceMS, validation.Required, validation.Min(100), validation.Max(5000)),
	)
}

// MarksConfig holds mark policy.
type MarksConfig struct {
	MaxMarks    int  `yaml:"max_marks"`
	TrackAccess bool `yaml:"track_access"`
	HistorySize int  `yaml:"history_size"`
}

// Validate validates the mark policy.
func (c *MarksConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxMarks, validation.Required, validation.Min(registry.MinMaxMarks), validation.Max(registry.MaxMaxMarks)),
		validation.Field(&c.HistorySize, validation.Min(0), validation.Max(100)),
	)
}

// ProjectConfig controls project detection.
type ProjectConfig struct {
	// Dir is the directory used when a request names none. Empty means the
	// working directory.
	Dir      string        `yaml:"dir"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Markers  []string      `yaml:"markers"`
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CacheTTL, validation.Min(time.Second), validation.Max(10*time.Minute)),
		validation.Field(&c.Markers, validation.Each(validation.Required)),
	)
}

// IndexConfig holds SQLite search index configuration.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 7311,
			},
		},
		Storage: StorageConfig{
			DataDir:    dataDir,
			AutoSave:   true,
			Backup:     true,
			DebounceMS: 500,
		},
		Marks: MarksConfig{
			MaxMarks:    registry.DefaultMaxMarks,
			HistorySize: 10,
		},
		Project: ProjectConfig{
			CacheTTL: project.DefaultCacheTTL,
		},
		Index: IndexConfig{
			Path: filepath.Join(dataDir, "index.db"),
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

// defaultDataDir returns $XDG_DATA_HOME/marksman, ~/.local/share/marksman,
// or ./.marksman when no home directory is known.
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "marksman")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "share", "marksman")
	}
	return ".marksman"
}
