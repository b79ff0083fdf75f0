package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/matcluster/internal/drag"
	"github.com/starford/matcluster/internal/editor"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Layouts LayoutsConfig     `yaml:"layouts"`
	Auth    AuthConfig        `yaml:"auth"`
	Remote  RemoteConfig      `yaml:"remote"`
	Editor  EditorConfig      `yaml:"editor"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Layouts.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Remote.Validate(); err != nil {
		return err
	}
	return c.Editor.Validate()
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

// SQLiteConfig holds the path of the material catalog database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LayoutsConfig holds the directory saved layouts are written to.
type LayoutsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the layouts configuration.
func (c *LayoutsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
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

// RemoteConfig points the editor at a running backend. With an empty
// BaseURL the editor works in-process against the local catalog.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.By(httpURL)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Enabled reports whether a backend URL is configured.
func (c *RemoteConfig) Enabled() bool {
	return c.BaseURL != ""
}

func httpURL(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

// EditorConfig tunes editor sessions.
type EditorConfig struct {
	UndoLimit     int           `yaml:"undo_limit"`
	StatusSize    int           `yaml:"status_size"`
	ScrollZone    float64       `yaml:"scroll_zone"`
	ScrollMin     float64       `yaml:"scroll_min_speed"`
	ScrollMax     float64       `yaml:"scroll_max_speed"`
	FrameInterval time.Duration `yaml:"frame_interval"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.UndoLimit, validation.Min(0)),
		validation.Field(&c.StatusSize, validation.Min(0)),
		validation.Field(&c.ScrollZone, validation.Min(0.0)),
		validation.Field(&c.ScrollMin, validation.Min(0.0)),
		validation.Field(&c.ScrollMax, validation.Min(c.ScrollMin)),
		validation.Field(&c.FrameInterval, validation.Min(time.Duration(0))),
	)
}

// Session returns the session settings.
func (c *EditorConfig) Session() editor.Config {
	return editor.Config{
		UndoLimit:  c.UndoLimit,
		StatusSize: c.StatusSize,
		Scroll: drag.ScrollConfig{
			Zone:          c.ScrollZone,
			MinSpeed:      c.ScrollMin,
			MaxSpeed:      c.ScrollMax,
			FrameInterval: c.FrameInterval,
		},
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	scroll := drag.DefaultScrollConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./matcluster.db",
		},
		Layouts: LayoutsConfig{
			Path: "./layouts",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Remote: RemoteConfig{
			Timeout: 10 * time.Second,
		},
		Editor: EditorConfig{
			UndoLimit:     100,
			StatusSize:    50,
			ScrollZone:    scroll.Zone,
			ScrollMin:     scroll.MinSpeed,
			ScrollMax:     scroll.MaxSpeed,
			FrameInterval: scroll.FrameInterval,
		},
	}
}
