package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type FilesConfig struct {
	RootDir  string `yaml:"root_dir"`
	FontPath string `yaml:"font_path"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Mode string `yaml:"mode"` // gin mode: debug | release | test

		// пусто: разрешены все Origin
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Database struct {
		DSN          string `yaml:"url"`
		MaxOpenConns int    `yaml:"max_open_conns"`
	} `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
	Telegram TelegramConfig `yaml:"telegram"`
	Logging  LoggingConfig  `yaml:"logging"`
	Files    FilesConfig    `yaml:"files"`
}

// Load reads the YAML file at path, loads .env if present and applies
// CRMHUB_* environment overrides on top. A missing file is not an error:
// the defaults plus environment are enough to boot in containers.
func Load(path string) (*Config, error) {
	cfg := defaults()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	_ = godotenv.Load()
	applyEnvOverrides(&cfg)

	if cfg.Files.RootDir == "" {
		cfg.Files.RootDir = "./files"
	}
	return &cfg, nil
}

// LoadConfig resolves the path from CRMHUB_CONFIG and panics on failure.
func LoadConfig() *Config {
	path := os.Getenv("CRMHUB_CONFIG")
	if path == "" {
		path = DefaultPath
	}
	cfg, err := Load(path)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	return cfg
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		errs = append(errs, errors.New("redis.url is required"))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("auth ttl values must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	return errors.Join(errs...)
}

func defaults() Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Server.Mode = "release"
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Database.MaxOpenConns = 10
	cfg.Redis.URL = "redis://localhost:6379/0"
	cfg.Auth.AccessTTL = 15 * time.Minute
	cfg.Auth.RefreshTTL = 30 * 24 * time.Hour
	cfg.Email.SMTPPort = 587
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Server.Port, "CRMHUB_SERVER_PORT")
	setStr(&cfg.Server.Mode, "CRMHUB_SERVER_MODE")
	setStr(&cfg.Database.DSN, "CRMHUB_DATABASE_URL")
	setStr(&cfg.Redis.URL, "CRMHUB_REDIS_URL")
	setStr(&cfg.Auth.JWTSecret, "CRMHUB_JWT_SECRET")
	setDuration(&cfg.Auth.AccessTTL, "CRMHUB_ACCESS_TTL")
	setDuration(&cfg.Auth.RefreshTTL, "CRMHUB_REFRESH_TTL")
	setStr(&cfg.Email.SMTPHost, "CRMHUB_SMTP_HOST")
	setInt(&cfg.Email.SMTPPort, "CRMHUB_SMTP_PORT")
	setStr(&cfg.Email.SMTPUser, "CRMHUB_SMTP_USER")
	setStr(&cfg.Email.SMTPPassword, "CRMHUB_SMTP_PASSWORD")
	setStr(&cfg.Email.FromEmail, "CRMHUB_FROM_EMAIL")
	setStr(&cfg.Telegram.BotToken, "CRMHUB_TELEGRAM_BOT_TOKEN")
	setInt64(&cfg.Telegram.ChatID, "CRMHUB_TELEGRAM_CHAT_ID")
	setStr(&cfg.Logging.Level, "CRMHUB_LOG_LEVEL")
	setStr(&cfg.Logging.Format, "CRMHUB_LOG_FORMAT")
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
