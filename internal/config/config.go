// Package config provides application configuration.
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

// Config holds all application configuration.
type Config struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Model    ModelConfig    `yaml:"model"`
	Store    StoreConfig    `yaml:"store"`
	Naver    NaverConfig    `yaml:"naver"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Google   GoogleConfig   `yaml:"google"`
	Engine   EngineConfig   `yaml:"engine"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Log      LogConfig      `yaml:"log"`
}

// ModelConfig selects the oracle provider.
type ModelConfig struct {
	Provider   string   `yaml:"provider"` // openai, anthropic, gemini or mock
	Name       string   `yaml:"name"`
	Fallbacks  []string `yaml:"fallbacks"` // provider or provider:model entries
	MaxRetries int      `yaml:"max_retries"`

	OpenAIKey    string `yaml:"openai_api_key"`
	AnthropicKey string `yaml:"anthropic_api_key"`
	GeminiKey    string `yaml:"gemini_api_key"`
}

// StoreConfig selects the ContextStore implementation.
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory or sqlite
	DBPath string `yaml:"db_path"`
}

// NaverConfig holds local search credentials.
type NaverConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Enabled reports whether both credentials are present.
func (n NaverConfig) Enabled() bool { return n.ClientID != "" && n.ClientSecret != "" }

// SMTPConfig holds the relay used for plan mail.
type SMTPConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Sender   string `yaml:"sender"`
}

// Enabled reports whether a relay is configured.
func (s SMTPConfig) Enabled() bool { return s.Server != "" }

// GoogleConfig holds calendar service account credentials.
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	CredentialsJSON string `yaml:"credentials_json"`
	CalendarID      string `yaml:"calendar_id"`
}

// Enabled reports whether credentials are configured.
func (g GoogleConfig) Enabled() bool { return g.CredentialsFile != "" || g.CredentialsJSON != "" }

// EngineConfig tunes turn processing.
type EngineConfig struct {
	SerializeSessions bool `yaml:"serialize_sessions"`
	SearchConcurrency int  `yaml:"search_concurrency"`
}

// DeliveryConfig sizes the asynchronous delivery pool.
type DeliveryConfig struct {
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	JobTimeout time.Duration `yaml:"job_timeout"`
}

// LogConfig selects the logging backend.
type LogConfig struct {
	Backend string `yaml:"backend"` // slog, zap or otel
	Format  string `yaml:"format"`  // json or text
	Level   string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:           "8000",
		AllowedOrigins: []string{"*"},
		Model: ModelConfig{
			Provider:   "openai",
			Name:       "gpt-4o-mini",
			MaxRetries: 3,
		},
		Store: StoreConfig{
			Driver: "memory",
			DBPath: "./data/tripmesh.db",
		},
		SMTP: SMTPConfig{
			Server: "smtp.gmail.com",
			Port:   587,
		},
		Google: GoogleConfig{CalendarID: "primary"},
		Engine: EngineConfig{
			SerializeSessions: true,
			SearchConcurrency: 4,
		},
		Delivery: DeliveryConfig{
			Workers:    2,
			QueueSize:  64,
			JobTimeout: 5 * time.Minute,
		},
		Log: LogConfig{
			Backend: "slog",
			Format:  "json",
			Level:   "info",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, a .env file in the working directory and the environment, in that
// order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// A missing .env file is not an error; variables already set win.
	_ = godotenv.Load()

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)

	c.Model.Provider = getEnv("MODEL_PROVIDER", c.Model.Provider)
	c.Model.Name = getEnv("MODEL_NAME", c.Model.Name)
	c.Model.Fallbacks = getEnvList("FALLBACK_MODELS", c.Model.Fallbacks)
	c.Model.MaxRetries = getEnvInt("MODEL_MAX_RETRIES", c.Model.MaxRetries)
	c.Model.OpenAIKey = getEnv("OPENAI_API_KEY", c.Model.OpenAIKey)
	c.Model.AnthropicKey = getEnv("ANTHROPIC_API_KEY", c.Model.AnthropicKey)
	c.Model.GeminiKey = getEnv("GEMINI_API_KEY", c.Model.GeminiKey)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DBPath = getEnv("DB_PATH", c.Store.DBPath)

	c.Naver.ClientID = getEnv("NAVER_CLIENT_ID", c.Naver.ClientID)
	c.Naver.ClientSecret = getEnv("NAVER_CLIENT_SECRET", c.Naver.ClientSecret)

	c.SMTP.Server = getEnv("SMTP_SERVER", c.SMTP.Server)
	c.SMTP.Port = getEnvInt("SMTP_PORT", c.SMTP.Port)
	c.SMTP.Username = getEnv("SMTP_USERNAME", c.SMTP.Username)
	c.SMTP.Password = getEnv("SMTP_PASSWORD", c.SMTP.Password)
	c.SMTP.Sender = getEnv("SENDER_EMAIL", c.SMTP.Sender)

	c.Google.CredentialsFile = getEnv("GOOGLE_CREDENTIALS_FILE", c.Google.CredentialsFile)
	c.Google.CredentialsJSON = getEnv("GOOGLE_CREDENTIALS_JSON", c.Google.CredentialsJSON)
	c.Google.CalendarID = getEnv("GOOGLE_CALENDAR_ID", c.Google.CalendarID)

	c.Engine.SerializeSessions = getEnvBool("SERIALIZE_SESSIONS", c.Engine.SerializeSessions)
	c.Engine.SearchConcurrency = getEnvInt("SEARCH_CONCURRENCY", c.Engine.SearchConcurrency)

	c.Delivery.Workers = getEnvInt("DELIVERY_WORKERS", c.Delivery.Workers)
	c.Delivery.QueueSize = getEnvInt("DELIVERY_QUEUE_SIZE", c.Delivery.QueueSize)
	c.Delivery.JobTimeout = getEnvDuration("DELIVERY_JOB_TIMEOUT", c.Delivery.JobTimeout)

	c.Log.Backend = getEnv("LOG_BACKEND", c.Log.Backend)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT cannot be empty"))
	}

	switch c.Model.Provider {
	case "openai":
		if c.Model.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for provider openai"))
		}
	case "anthropic":
		if c.Model.AnthropicKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for provider anthropic"))
		}
	case "gemini":
		if c.Model.GeminiKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for provider gemini"))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown MODEL_PROVIDER %q", c.Model.Provider))
	}
	if c.Model.MaxRetries <= 0 {
		errs = append(errs, errors.New("MODEL_MAX_RETRIES must be > 0"))
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH cannot be empty for store driver sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	if c.SMTP.Enabled() && (c.SMTP.Port <= 0 || c.SMTP.Port > 65535) {
		errs = append(errs, errors.New("SMTP_PORT must be a valid port"))
	}
	if c.Engine.SearchConcurrency <= 0 {
		errs = append(errs, errors.New("SEARCH_CONCURRENCY must be > 0"))
	}
	if c.Delivery.Workers <= 0 {
		errs = append(errs, errors.New("DELIVERY_WORKERS must be > 0"))
	}
	if c.Delivery.QueueSize <= 0 {
		errs = append(errs, errors.New("DELIVERY_QUEUE_SIZE must be > 0"))
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
