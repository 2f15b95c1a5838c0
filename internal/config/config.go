package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration, read from the environment.
type Config struct {
	AppPort         string
	ShutdownTimeout time.Duration
	Database        Database
	Auth            Auth
	CORS            CORS
	Upload          Upload
	RabbitMQ        RabbitMQ
	Redis           Redis
	Log             Log
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// MinJWTSecretLength is the shortest accepted HS256 signing secret.
const MinJWTSecretLength = 32

// placeholderSecrets are well-known sample values that must never sign tokens.
var placeholderSecrets = []string{
	"change-me-in-production",
	"changeme",
	"secret",
	"your-secret-key",
}

type Database struct {
	Driver string
	DSN    string
}

type Auth struct {
	JWTSecret     string
	TokenTTL      time.Duration
	RateLimit     float64 // requests per second per client on /api/auth
	RateBurst     int
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

type CORS struct {
	AllowedOrigins []string
}

type Upload struct {
	Dir          string
	MaxBytes     int64
	AllowedTypes []string
}

// RabbitMQ is disabled when URL is empty.
type RabbitMQ struct {
	URL string
}

// Redis is disabled when Addr is empty.
type Redis struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// SetDefaults registers every key with its default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")

	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "adminpanel.db")

	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("AUTH_RATE_LIMIT", 1.0)
	v.SetDefault("AUTH_RATE_BURST", 5)
	v.SetDefault("ADMIN_NAME", "Administrator")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")

	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 5*1024*1024)
	v.SetDefault("UPLOAD_ALLOWED_TYPES", "image/jpeg,image/png,image/gif,image/webp")

	v.SetDefault("RABBITMQ_URL", "")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("LOG_FORMAT", "TEXT")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("LOG_ADD_SOURCE", false)
}

// Load reads the configuration from environment variables on top of the defaults.
func Load() (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		AppPort:         v.GetString("APP_PORT"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		Database: Database{
			Driver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Auth: Auth{
			JWTSecret:     v.GetString("JWT_SECRET"),
			TokenTTL:      v.GetDuration("JWT_TTL"),
			RateLimit:     v.GetFloat64("AUTH_RATE_LIMIT"),
			RateBurst:     v.GetInt("AUTH_RATE_BURST"),
			AdminName:     v.GetString("ADMIN_NAME"),
			AdminEmail:    v.GetString("ADMIN_EMAIL"),
			AdminPassword: v.GetString("ADMIN_PASSWORD"),
		},
		CORS: CORS{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Upload: Upload{
			Dir:          v.GetString("UPLOAD_DIR"),
			MaxBytes:     v.GetInt64("UPLOAD_MAX_BYTES"),
			AllowedTypes: splitList(v.GetString("UPLOAD_ALLOWED_TYPES")),
		},
		RabbitMQ: RabbitMQ{
			URL: v.GetString("RABBITMQ_URL"),
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			CacheTTL: v.GetDuration("CACHE_TTL"),
		},
	}

	var err error
	if cfg.Log, err = logFromViper(v); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	if err := validateSecret(c.Auth.JWTSecret); err != nil {
		return err
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if len(c.Upload.AllowedTypes) == 0 {
		return fmt.Errorf("UPLOAD_ALLOWED_TYPES must list at least one media type")
	}
	if (c.Auth.AdminEmail == "") != (c.Auth.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// validateSecret requires JWT_SECRET to be set explicitly. Anyone who knows
// the secret can mint admin tokens.
func validateSecret(secret string) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	for _, placeholder := range placeholderSecrets {
		if strings.EqualFold(secret, placeholder) {
			return fmt.Errorf("JWT_SECRET must not be a sample value")
		}
	}
	if len(secret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	return nil
}

func logFromViper(v *viper.Viper) (Log, error) {
	var l Log
	if err := l.Format.UnmarshalText([]byte(v.GetString("LOG_FORMAT"))); err != nil {
		return Log{}, err
	}
	if err := l.Level.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return Log{}, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	l.AddSource = v.GetBool("LOG_ADD_SOURCE")
	return l, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type Log struct {
	Format    LogFormat
	Level     slog.Level
	AddSource bool
}

// LogFormat represents the logging format (JSON or Text).
type LogFormat uint8

// String returns the string representation of the log format.
func (f LogFormat) String() string {
	return []string{"JSON", "TEXT"}[f]
}

const (
	LogFormatJSON LogFormat = iota
	LogFormatText
)

// UnmarshalText implements [encoding.TextUnmarshaler].
func (f *LogFormat) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "JSON":
		*f = LogFormatJSON
	case "TEXT":
		*f = LogFormatText
	default:
		return fmt.Errorf("unknown log format: %s", text)
	}
	return nil
}
