// Package config loads the service configuration: defaults, then an
// optional YAML file, then AUTH_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "AUTH_"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Mail     MailConfig     `yaml:"mail"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	HTTPOnly     bool   `yaml:"httpOnly"`
	ReverseProxy bool   `yaml:"reverseProxy"`
	Domain       string `yaml:"domain"`
	Production   bool   `yaml:"production"`
	StaticRoot   string `yaml:"staticRoot"`
	NotFoundPage string `yaml:"notFoundPage"`
}

type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

type AuthConfig struct {
	TokenTTL        time.Duration `yaml:"tokenTTL"`
	ResetTokenTTL   time.Duration `yaml:"resetTokenTTL"`
	SignInPerMinute int           `yaml:"signInPerMinute"`
	SignInBurst     int           `yaml:"signInBurst"`
	AdminRole       string        `yaml:"adminRole"`
}

type MailConfig struct {
	From     string `yaml:"from"`
	SMTPHost string `yaml:"smtpHost"`
	SMTPPort int    `yaml:"smtpPort"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Defaults returns the configuration used when nothing else is set
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         3000,
			Domain:       "example.com",
			StaticRoot:   "client",
			NotFoundPage: "client/404.html",
		},
		Database: DatabaseConfig{
			DSN: "file:auth.db?cache=shared",
		},
		Auth: AuthConfig{
			TokenTTL:        14 * 24 * time.Hour,
			ResetTokenTTL:   15 * time.Minute,
			SignInPerMinute: 10,
			SignInBurst:     5,
			AdminRole:       "admin",
		},
		Mail: MailConfig{
			SMTPPort: 587,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. An empty path or a missing file leaves the
// defaults in place.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err := cfg.Decode(f); err != nil {
				return nil, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration")
	}

	return cfg, nil
}

// Decode merges YAML from r over the current values
func (c *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode config")
	}
	return nil
}

// ApplyEnv overrides values from AUTH_* variables read through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("HOST", &c.Server.Host)
	integer("PORT", &c.Server.Port)
	boolean("HTTP_ONLY", &c.Server.HTTPOnly)
	boolean("REVERSE_PROXY", &c.Server.ReverseProxy)
	str("DOMAIN", &c.Server.Domain)
	boolean("PRODUCTION", &c.Server.Production)
	str("STATIC_ROOT", &c.Server.StaticRoot)
	str("NOT_FOUND_PAGE", &c.Server.NotFoundPage)

	str("DATABASE_DSN", &c.Database.DSN)
	boolean("DATABASE_DEBUG", &c.Database.Debug)

	duration("TOKEN_TTL", &c.Auth.TokenTTL)
	duration("RESET_TOKEN_TTL", &c.Auth.ResetTokenTTL)
	integer("SIGNIN_PER_MINUTE", &c.Auth.SignInPerMinute)
	integer("SIGNIN_BURST", &c.Auth.SignInBurst)
	str("ADMIN_ROLE", &c.Auth.AdminRole)

	str("MAIL_FROM", &c.Mail.From)
	str("SMTP_HOST", &c.Mail.SMTPHost)
	integer("SMTP_PORT", &c.Mail.SMTPPort)
	str("SMTP_USERNAME", &c.Mail.Username)
	str("SMTP_PASSWORD", &c.Mail.Password)

	str("LOG_LEVEL", &c.Logging.Level)

	if len(errs) > 0 {
		return goerrors.Wrap(errors.Join(errs...), goerrors.CategoryBadInput, "invalid environment override")
	}
	return nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Database),
		validation.Field(&c.Auth),
		validation.Field(&c.Logging),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Host, validation.Required),
		validation.Field(&s.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&s.Domain, validation.Required),
	)
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.DSN, validation.Required),
	)
}

func (a AuthConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SignInPerMinute, validation.Min(0)),
		validation.Field(&a.SignInBurst, validation.Min(0)),
		validation.Field(&a.AdminRole, validation.Required),
	)
}

func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("trace", "debug", "info", "warn", "error")),
	)
}

func (c *Config) GetHost() string                 { return c.Server.Host }
func (c *Config) GetPort() int                    { return c.Server.Port }
func (c *Config) GetHTTPOnly() bool               { return c.Server.HTTPOnly }
func (c *Config) GetReverseProxy() bool           { return c.Server.ReverseProxy }
func (c *Config) GetDomain() string               { return c.Server.Domain }
func (c *Config) GetTokenTTL() time.Duration      { return c.Auth.TokenTTL }
func (c *Config) GetResetTokenTTL() time.Duration { return c.Auth.ResetTokenTTL }
func (c *Config) GetMailFrom() string             { return c.Mail.From }

// Address is the host:port the server listens on
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
