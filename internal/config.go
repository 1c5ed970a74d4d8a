package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/dagaz/internal/journal"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Remote  RemoteConfig      `yaml:"remote"`
	Views   ViewsConfig       `yaml:"views"`
	Review  ReviewConfig      `yaml:"review"`
	Journal JournalConfig     `yaml:"journal"`
	Auth    AuthConfig        `yaml:"auth"`
	Events  EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Remote.Validate(); err != nil {
		return err
	}
	if err := c.Views.Validate(); err != nil {
		return err
	}
	if err := c.Review.Validate(); err != nil {
		return err
	}
	if err := c.Events.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	CORS     CORSConfig `yaml:"cors"`
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

// CORSConfig lists the browser origins allowed to call the API.
// Empty disables CORS handling.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RemoteConfig points at the platform REST API.
type RemoteConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RetryDelay, validation.Min(time.Duration(0))),
	)
}

// ViewsConfig holds view catalog and grid settings.
type ViewsConfig struct {
	// DefinitionsFile optionally overrides built-in view definitions and is
	// hot reloaded.
	DefinitionsFile string        `yaml:"definitions_file"`
	PageSize        int           `yaml:"page_size"`
	Location        string        `yaml:"location"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	ExportDir       string        `yaml:"export_dir"`
}

// Validate validates the views configuration.
func (c *ViewsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(500)),
		validation.Field(&c.Location, validation.By(func(any) error {
			_, err := c.TimeLocation()
			return err
		})),
		validation.Field(&c.RefreshInterval, validation.Min(time.Duration(0))),
	)
}

// TimeLocation returns the zone day bounds are computed in. Empty is UTC.
func (c *ViewsConfig) TimeLocation() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("unknown location %q", c.Location)
	}
	return loc, nil
}

// ReviewConfig holds review-document return settings.
type ReviewConfig struct {
	AutoCloseDelay time.Duration `yaml:"auto_close_delay"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// Validate validates the review configuration.
func (c *ReviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AutoCloseDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
	)
}

// JournalConfig holds the returns journal database DSN.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig holds SSE settings.
type EventsConfig struct {
	DashboardThrottle time.Duration `yaml:"dashboard_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DashboardThrottle, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
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
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Remote: RemoteConfig{
			Timeout:    15 * time.Second,
			RetryDelay: 500 * time.Millisecond,
		},
		Views: ViewsConfig{
			PageSize:  10,
			ExportDir: "./exports",
		},
		Review: ReviewConfig{
			AutoCloseDelay: 2 * time.Second,
			MaxUploadBytes: 20 << 20,
		},
		Journal: JournalConfig{
			Path: journal.MemoryDSN,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Events: EventsConfig{
			DashboardThrottle: 2 * time.Second,
		},
	}
}
