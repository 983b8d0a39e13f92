package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Storage backends.
const (
	BackendFS     = "fs"
	BackendWebDAV = "webdav"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Pieces  PiecesConfig      `yaml:"pieces"`
	Storage StorageConfig     `yaml:"storage"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Assets  AssetsConfig      `yaml:"assets"`
	Deploy  DeployConfig      `yaml:"deploy"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Pieces.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Assets.Validate(); err != nil {
		return err
	}
	return c.Deploy.Validate()
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

// PiecesConfig selects which piece types sync operates on. An empty Types
// list means all registered types.
type PiecesConfig struct {
	Path  string   `yaml:"path"`
	Types []string `yaml:"types"`
}

// Validate validates the pieces configuration.
func (c *PiecesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// StorageConfig selects the tree backend.
type StorageConfig struct {
	Backend string       `yaml:"backend"`
	WebDAV  WebDAVConfig `yaml:"webdav"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendFS
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFS, BackendWebDAV)),
	); err != nil {
		return err
	}
	if c.Backend == BackendWebDAV {
		return c.WebDAV.Validate()
	}
	return nil
}

// WebDAVConfig holds remote tree connection settings.
type WebDAVConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Root     string `yaml:"root"`
}

// Validate validates the WebDAV configuration.
func (c *WebDAVConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
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

// AssetsConfig holds image variant generation settings.
type AssetsConfig struct {
	Widths []int `yaml:"widths"`
}

// Validate validates the assets configuration.
func (c *AssetsConfig) Validate() error {
	for _, w := range c.Widths {
		if w <= 0 {
			return fmt.Errorf("assets: width must be positive, got %d", w)
		}
	}
	return nil
}

// DeployConfig holds the downstream rebuild webhook. Both fields are
// optional; the deploy command fails at runtime when the URL is unset.
type DeployConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Token      string `yaml:"token"`
}

// Validate validates the deploy configuration.
func (c *DeployConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.WebhookURL, is.URL),
	)
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
		Pieces: PiecesConfig{
			Path: "./pieces",
		},
		Storage: StorageConfig{
			Backend: BackendFS,
		},
		SQLite: SQLiteConfig{
			Path: "./luzzle.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Assets: AssetsConfig{
			Widths: []int{320, 640, 1280},
		},
	}
}
