// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the complete application configuration.
type Config struct {
	Database Database
	HTTP     HTTP
	Auth     Auth
	Locale   Locale
	SMTP     SMTP
	Reddit   Reddit
	Log      Log

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"./migrations"`
	// PublicURL is the browser-facing site, used for shared roaster links.
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:3000"`
}

// Database configures the pgx pool.
type Database struct {
	URL      string `env:"DATABASE_URL"`
	MaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	MinConns int32  `env:"DATABASE_MIN_CONNS" envDefault:"2"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

// Auth configures token signing and bootstrap admins.
type Auth struct {
	JWTSecret   string        `env:"JWT_SECRET"`
	Issuer      string        `env:"JWT_ISSUER" envDefault:"roastery"`
	TokenTTL    time.Duration `env:"JWT_TTL" envDefault:"168h"`
	AdminEmails []string      `env:"ADMIN_EMAILS" envSeparator:","`
}

// Locale configures content negotiation.
type Locale struct {
	Default   string   `env:"DEFAULT_LOCALE" envDefault:"en"`
	Supported []string `env:"SUPPORTED_LOCALES" envDefault:"en,fr,de,es,it,pt,ja" envSeparator:","`
}

// SMTP configures outbound contact mail.
type SMTP struct {
	Host      string `env:"SMTP_HOST"`
	Port      int    `env:"SMTP_PORT" envDefault:"587"`
	Username  string `env:"SMTP_USERNAME"`
	Password  string `env:"SMTP_PASSWORD"`
	From      string `env:"SMTP_FROM"`
	Recipient string `env:"CONTACT_RECIPIENT"`
}

// Reddit configures the script-app integration used to share roasters.
type Reddit struct {
	ClientID     string `env:"REDDIT_CLIENT_ID"`
	ClientSecret string `env:"REDDIT_CLIENT_SECRET"`
	Username     string `env:"REDDIT_USERNAME"`
	Password     string `env:"REDDIT_PASSWORD"`
	UserAgent    string `env:"REDDIT_USER_AGENT" envDefault:"roastery/1.0"`
	Subreddit    string `env:"REDDIT_SUBREDDIT"`
	APIURL       string `env:"REDDIT_API_URL" envDefault:"https://oauth.reddit.com"`
	TokenURL     string `env:"REDDIT_TOKEN_URL" envDefault:"https://www.reddit.com/api/v1/access_token"`
}

// Log configures zap.
type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// MinJWTSecretLength is the shortest accepted HS256 secret.
const MinJWTSecretLength = 32

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// LoadWith parses a fixed environment map, for tests and tooling.
func LoadWith(environment map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Auth.AdminEmails = trimAll(c.Auth.AdminEmails, strings.ToLower)
	c.HTTP.AllowedOrigins = trimAll(c.HTTP.AllowedOrigins, nil)
	c.Locale.Supported = trimAll(c.Locale.Supported, nil)
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
}

func trimAll(values []string, transform func(string) string) []string {
	out := values[:0]
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if transform != nil {
			v = transform(v)
		}
		out = append(out, v)
	}
	return out
}

// Validate checks settings needed to serve the API.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT %q is not one of json, console", c.Log.Format)
	}
	if !slices.Contains(c.Locale.Supported, c.Locale.Default) {
		return fmt.Errorf("SUPPORTED_LOCALES must contain DEFAULT_LOCALE %q", c.Locale.Default)
	}
	if c.SMTPEnabled() && c.SMTP.Recipient == "" {
		return fmt.Errorf("CONTACT_RECIPIENT is required when SMTP_HOST is set")
	}
	return nil
}

// SMTPEnabled reports whether contact mail can be delivered.
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.From != ""
}

// RedditEnabled reports whether roasters can be shared to Reddit.
func (c *Config) RedditEnabled() bool {
	r := c.Reddit
	return r.ClientID != "" && r.ClientSecret != "" && r.Username != "" && r.Password != ""
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c *Config) IsAdminEmail(email string) bool {
	return slices.Contains(c.Auth.AdminEmails, strings.ToLower(strings.TrimSpace(email)))
}
