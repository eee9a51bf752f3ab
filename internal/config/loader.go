package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures the settings of the room booking service.
type Config struct {
	HTTPPort       int
	DatabaseDriver string
	DatabaseDSN    string

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	RedisAddr     string
	RedisPassword string

	SMTP SMTPConfig

	SweepInterval      time.Duration
	LoginRatePerMinute int
	LoginBurst         int

	LogLevel  string
	LogFormat string
}

// SMTPConfig holds outgoing mail settings. An empty Host disables mail.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether notices should be mailed.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// fileConfig mirrors the optional YAML file named by ROOMBOOK_CONFIG_FILE.
type fileConfig struct {
	HTTP struct {
		Port string `yaml:"port"`
	} `yaml:"http"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	SMTP struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`
	Jobs struct {
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"jobs"`
	RateLimit struct {
		LoginPerMinute string `yaml:"login_per_minute"`
		LoginBurst     string `yaml:"login_burst"`
	} `yaml:"rate_limit"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func (f fileConfig) values() map[string]string {
	return map[string]string{
		"ROOMBOOK_HTTP_PORT":              f.HTTP.Port,
		"ROOMBOOK_DB_DRIVER":              f.Database.Driver,
		"ROOMBOOK_DB_DSN":                 f.Database.DSN,
		"ROOMBOOK_JWT_SECRET":             f.Auth.JWTSecret,
		"ROOMBOOK_JWT_ISSUER":             f.Auth.Issuer,
		"ROOMBOOK_TOKEN_TTL":              f.Auth.TokenTTL,
		"ROOMBOOK_REDIS_ADDR":             f.Redis.Addr,
		"ROOMBOOK_REDIS_PASSWORD":         f.Redis.Password,
		"ROOMBOOK_SMTP_HOST":              f.SMTP.Host,
		"ROOMBOOK_SMTP_PORT":              f.SMTP.Port,
		"ROOMBOOK_SMTP_USERNAME":          f.SMTP.Username,
		"ROOMBOOK_SMTP_PASSWORD":          f.SMTP.Password,
		"ROOMBOOK_SMTP_FROM":              f.SMTP.From,
		"ROOMBOOK_SWEEP_INTERVAL":         f.Jobs.SweepInterval,
		"ROOMBOOK_LOGIN_RATE_PER_MINUTE":  f.RateLimit.LoginPerMinute,
		"ROOMBOOK_LOGIN_BURST":            f.RateLimit.LoginBurst,
		"ROOMBOOK_LOG_LEVEL":              f.Log.Level,
		"ROOMBOOK_LOG_FORMAT":             f.Log.Format,
	}
}

// Load reads configuration from the environment. Values from a .env file
// (ROOMBOOK_ENV_FILE, default ".env") fill unset variables, and a YAML file
// named by ROOMBOOK_CONFIG_FILE supplies values the environment leaves empty.
//
// Missing required values and malformed values are reported together.
func Load() (Config, error) {
	envFile := strings.TrimSpace(os.Getenv("ROOMBOOK_ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read env file %s: %w", envFile, err)
	}

	file := map[string]string{}
	if path := strings.TrimSpace(os.Getenv("ROOMBOOK_CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		file = fc.values()
	}

	l := loader{file: file}
	cfg := Config{
		HTTPPort:           l.int("ROOMBOOK_HTTP_PORT", 8080, 1),
		DatabaseDriver:     strings.ToLower(l.string("ROOMBOOK_DB_DRIVER", "sqlite")),
		DatabaseDSN:        l.string("ROOMBOOK_DB_DSN", "file:roombook.db"),
		JWTSecret:          l.required("ROOMBOOK_JWT_SECRET"),
		JWTIssuer:          l.string("ROOMBOOK_JWT_ISSUER", "roombook"),
		TokenTTL:           l.duration("ROOMBOOK_TOKEN_TTL", 24*time.Hour),
		RedisAddr:          l.string("ROOMBOOK_REDIS_ADDR", ""),
		RedisPassword:      l.string("ROOMBOOK_REDIS_PASSWORD", ""),
		SweepInterval:      l.duration("ROOMBOOK_SWEEP_INTERVAL", 5*time.Minute),
		LoginRatePerMinute: l.int("ROOMBOOK_LOGIN_RATE_PER_MINUTE", 10, 1),
		LoginBurst:         l.int("ROOMBOOK_LOGIN_BURST", 5, 1),
		LogLevel:           strings.ToLower(l.string("ROOMBOOK_LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(l.string("ROOMBOOK_LOG_FORMAT", "json")),
		SMTP: SMTPConfig{
			Host:     l.string("ROOMBOOK_SMTP_HOST", ""),
			Port:     l.int("ROOMBOOK_SMTP_PORT", 587, 1),
			Username: l.string("ROOMBOOK_SMTP_USERNAME", ""),
			Password: l.string("ROOMBOOK_SMTP_PASSWORD", ""),
			From:     l.string("ROOMBOOK_SMTP_FROM", "roombook@localhost"),
		},
	}

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		l.invalid = append(l.invalid, "ROOMBOOK_DB_DRIVER")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		l.invalid = append(l.invalid, "ROOMBOOK_LOG_LEVEL")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		l.invalid = append(l.invalid, "ROOMBOOK_LOG_FORMAT")
	}

	if len(l.missing) > 0 {
		return Config{}, fmt.Errorf("required configuration missing: %s", strings.Join(l.missing, ", "))
	}
	if len(l.invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(l.invalid, ", "))
	}
	return cfg, nil
}

type loader struct {
	file    map[string]string
	missing []string
	invalid []string
}

func (l *loader) lookup(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(l.file[key])
}

func (l *loader) string(key, fallback string) string {
	if v := l.lookup(key); v != "" {
		return v
	}
	return fallback
}

func (l *loader) required(key string) string {
	v := l.lookup(key)
	if v == "" {
		l.missing = append(l.missing, key)
	}
	return v
}

func (l *loader) int(key string, fallback, min int) int {
	raw := l.lookup(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		l.invalid = append(l.invalid, key)
		return fallback
	}
	return n
}

func (l *loader) duration(key string, fallback time.Duration) time.Duration {
	raw := l.lookup(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		l.invalid = append(l.invalid, key)
		return fallback
	}
	return d
}
