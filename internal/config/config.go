// Package config handles resolving configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v7"
	"gopkg.in/yaml.v3"

	"github.com/stolasapp/notebook/internal/gate"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "NOTEBOOK_"

// LogLevel is the minimum level of emitted log records.
type LogLevel string

// Supported log levels.
const (
	LogDebug LogLevel = "DEBUG"
	LogInfo  LogLevel = "INFO"
	LogWarn  LogLevel = "WARN"
	LogError LogLevel = "ERROR"
)

// BackendKind selects the implementation behind the notes front-end.
type BackendKind string

// Supported backends.
const (
	BackendLocal    BackendKind = "local"
	BackendSupabase BackendKind = "supabase"
)

// Config is the full application configuration.
type Config struct {
	LogLevel       LogLevel `yaml:"log_level"       env:"LOG_LEVEL"`
	WebAddress     string   `yaml:"web_address"     env:"WEB_ADDRESS"`
	MetricsAddress string   `yaml:"metrics_address" env:"METRICS_ADDRESS"`
	// PublicURL is the externally reachable base URL, used to build magic
	// link redirects.
	PublicURL string `yaml:"public_url" env:"PUBLIC_URL"`
	DevMode   bool   `yaml:"dev_mode"   env:"DEV_MODE"`

	Gate    Gate    `yaml:"gate"    envPrefix:"GATE_"`
	Notes   Notes   `yaml:"notes"   envPrefix:"NOTES_"`
	Backend Backend `yaml:"backend" envPrefix:"BACKEND_"`
	Email   Email   `yaml:"email"   envPrefix:"EMAIL_"`
}

// Gate configures the password gated page.
type Gate struct {
	ReferenceDigest string `yaml:"reference_digest" env:"REFERENCE_DIGEST"`
	// Content is the Markdown revealed once the gate grants access.
	Content string `yaml:"content" env:"CONTENT"`
}

// Notes configures the notes front-end.
type Notes struct {
	RenderMarkdown bool `yaml:"render_markdown" env:"RENDER_MARKDOWN"`
}

// Backend selects and configures the auth/database backend.
type Backend struct {
	Kind     BackendKind `yaml:"kind"     env:"KIND"`
	Supabase Supabase    `yaml:"supabase" envPrefix:"SUPABASE_"`
	Local    Local       `yaml:"local"    envPrefix:"LOCAL_"`
}

// Supabase configures the hosted backend client.
type Supabase struct {
	URL        string `yaml:"url"         env:"URL"`
	AnonKey    string `yaml:"anon_key"    env:"ANON_KEY"`
	MaxRetries uint64 `yaml:"max_retries" env:"MAX_RETRIES"`
}

// Local configures the SQLite backend.
type Local struct {
	DBFilepath   string        `yaml:"db_filepath"    env:"DB_FILEPATH"`
	MagicLinkTTL time.Duration `yaml:"magic_link_ttl" env:"MAGIC_LINK_TTL"`
	SessionTTL   time.Duration `yaml:"session_ttl"    env:"SESSION_TTL"`
}

// Email configures SMTP delivery of magic links for the local backend. If
// Host is empty, links are logged instead of sent.
type Email struct {
	Host        string `yaml:"host"         env:"HOST"`
	Port        int    `yaml:"port"         env:"PORT"`
	Username    string `yaml:"username"     env:"USERNAME"`
	Password    string `yaml:"password"     env:"PASSWORD"`
	FromAddress string `yaml:"from_address" env:"FROM_ADDRESS"`
	FromName    string `yaml:"from_name"    env:"FROM_NAME"`
}

// DefaultGateContent is revealed by the gate when no content is configured.
const DefaultGateContent = "# You found it\n\nThis page is just for you."

// Default returns a version of the config with all default values populated.
// The default configuration is valid and uses the local backend.
func Default() *Config {
	return &Config{
		LogLevel:       LogInfo,
		WebAddress:     "localhost:9999",
		MetricsAddress: "",
		PublicURL:      "http://localhost:9999",
		Gate: Gate{
			ReferenceDigest: gate.DefaultReference,
			Content:         DefaultGateContent,
		},
		Backend: Backend{
			Kind: BackendLocal,
			Supabase: Supabase{
				MaxRetries: 3, //nolint:mnd // reasonable default
			},
			Local: Local{
				DBFilepath:   filepath.Join(xdg.DataHome, "notebook", "db.sqlite"),
				MagicLinkTTL: 15 * time.Minute, //nolint:mnd // matches common magic link lifetimes
				SessionTTL:   time.Hour,
			},
		},
		Email: Email{
			Port:     587, //nolint:mnd // SMTP submission
			FromName: "notebook",
		},
	}
}

// Load loads a YAML configuration file from a path, merges it with defaults,
// applies environment overrides, and validates it for completeness.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // allow the config file to be loaded from anywhere
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err = decode(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file at %s: %w", path, err)
	}
	if err = env.Parse(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Marshal renders the config as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if errors.Is(err, io.EOF) {
		return nil // empty file, keep defaults
	}
	return err
}

// Validate checks the configuration for completeness, reporting every
// problem found.
func (c *Config) Validate() error {
	var errs []error
	switch c.LogLevel {
	case LogDebug, LogInfo, LogWarn, LogError:
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	if c.WebAddress == "" {
		errs = append(errs, errors.New("web_address: must be set"))
	}
	if err := validateURL(c.PublicURL); err != nil {
		errs = append(errs, fmt.Errorf("public_url: %w", err))
	}
	if _, err := gate.ParseReference(c.Gate.ReferenceDigest); err != nil {
		errs = append(errs, fmt.Errorf("gate.reference_digest: %w", err))
	}

	switch c.Backend.Kind {
	case BackendLocal:
		if c.Backend.Local.DBFilepath == "" {
			errs = append(errs, errors.New("backend.local.db_filepath: must be set"))
		}
		if c.Backend.Local.MagicLinkTTL <= 0 {
			errs = append(errs, errors.New("backend.local.magic_link_ttl: must be positive"))
		}
		if c.Backend.Local.SessionTTL <= 0 {
			errs = append(errs, errors.New("backend.local.session_ttl: must be positive"))
		}
		if c.Email.Host != "" && c.Email.FromAddress == "" {
			errs = append(errs, errors.New("email.from_address: must be set when email.host is set"))
		}
	case BackendSupabase:
		if c.DevMode && c.Backend.Supabase.URL == "" {
			break // serve starts a fake project in dev mode
		}
		if err := validateURL(c.Backend.Supabase.URL); err != nil {
			errs = append(errs, fmt.Errorf("backend.supabase.url: %w", err))
		}
		if c.Backend.Supabase.AnonKey == "" {
			errs = append(errs, errors.New("backend.supabase.anon_key: must be set"))
		}
	default:
		errs = append(errs, fmt.Errorf("backend.kind: unknown backend %q", c.Backend.Kind))
	}
	return errors.Join(errs...)
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("must be set")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// PublicURLFor joins path onto the configured public URL.
func (c *Config) PublicURLFor(path string) string {
	return strings.TrimRight(c.PublicURL, "/") + path
}
