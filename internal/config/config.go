package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the site backend
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Content ContentConfig `yaml:"content"`
	Email   EmailConfig   `yaml:"email"`
	Storage StorageConfig `yaml:"storage"`
	Fetcher FetcherConfig `yaml:"fetcher"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	Env          string        `yaml:"env"`
	LogLevel     string        `yaml:"log_level"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ContentConfig points at the static JSON catalogs and markdown bodies
type ContentConfig struct {
	Dir     string `yaml:"dir"`
	SiteURL string `yaml:"site_url"`
}

// EmailConfig holds the daily digest delivery settings
type EmailConfig struct {
	Provider   string        `yaml:"provider"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	From       string        `yaml:"from"`
	ReplyTo    string        `yaml:"reply_to"`
	Recipient  string        `yaml:"recipient"`
	CronSecret string        `yaml:"cron_secret"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StorageConfig holds bookmark database and delivery log settings
type StorageConfig struct {
	DatabaseURL string `yaml:"database_url"`
	DeliveryDir string `yaml:"delivery_dir"`
}

// FetcherConfig controls bookmark page unfurling
type FetcherConfig struct {
	UserAgent     string        `yaml:"user_agent"`
	Timeout       time.Duration `yaml:"timeout"`
	RespectRobots bool          `yaml:"respect_robots"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			Env:          "development",
			LogLevel:     "info",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Content: ContentConfig{
			Dir:     "./content",
			SiteURL: "http://localhost:8080",
		},
		Email: EmailConfig{
			Provider: "resend",
			BaseURL:  "https://api.resend.com",
			From:     "Daily Articles <onboarding@resend.dev>",
			Timeout:  30 * time.Second,
		},
		Storage: StorageConfig{
			DeliveryDir: "./data/deliveries",
		},
		Fetcher: FetcherConfig{
			UserAgent:     "Portfolio-Bookmarks/1.0",
			Timeout:       15 * time.Second,
			RespectRobots: true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence (env wins).
func Load() (*Config, error) {
	cfg := Default()

	path, err := configPath()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// configPath resolves FOLIO_CONFIG, falling back to the XDG config file when it exists.
func configPath() (string, error) {
	if p := os.Getenv("FOLIO_CONFIG"); p != "" {
		return p, nil
	}
	p, err := xdg.SearchConfigFile("folio/config.yaml")
	if err != nil {
		// not finding one is fine
		return "", nil
	}
	return p, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = GetStringEnv("SERVER_ADDR", c.Server.Addr)
	c.Server.Env = GetStringEnv("APP_ENV", c.Server.Env)
	c.Server.LogLevel = GetStringEnv("LOG_LEVEL", c.Server.LogLevel)
	c.Server.ReadTimeout = GetDurationEnv("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = GetDurationEnv("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)

	c.Content.Dir = GetStringEnv("CONTENT_DIR", c.Content.Dir)
	c.Content.SiteURL = GetStringEnv("SITE_URL", c.Content.SiteURL)

	c.Email.Provider = GetStringEnv("EMAIL_PROVIDER", c.Email.Provider)
	c.Email.APIKey = GetStringEnv("RESEND_API_KEY", c.Email.APIKey)
	c.Email.BaseURL = GetStringEnv("RESEND_BASE_URL", c.Email.BaseURL)
	c.Email.From = GetStringEnv("EMAIL_FROM", c.Email.From)
	c.Email.ReplyTo = GetStringEnv("EMAIL_REPLY_TO", c.Email.ReplyTo)
	c.Email.Recipient = GetStringEnv("DAILY_EMAIL_RECIPIENT", c.Email.Recipient)
	c.Email.CronSecret = GetStringEnv("CRON_SECRET", c.Email.CronSecret)
	c.Email.Timeout = GetDurationEnv("EMAIL_TIMEOUT", c.Email.Timeout)

	c.Storage.DatabaseURL = GetStringEnv("DATABASE_URL", c.Storage.DatabaseURL)
	c.Storage.DeliveryDir = GetStringEnv("DELIVERY_DIR", c.Storage.DeliveryDir)

	c.Fetcher.UserAgent = GetStringEnv("FETCHER_USER_AGENT", c.Fetcher.UserAgent)
	c.Fetcher.Timeout = GetDurationEnv("FETCHER_TIMEOUT", c.Fetcher.Timeout)
	c.Fetcher.RespectRobots = GetBoolEnv("FETCHER_RESPECT_ROBOTS", c.Fetcher.RespectRobots)
}

func GetStringEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
