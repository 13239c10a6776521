// Package config loads the service configuration from YAML and the environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/Onebillie/parsetastic/internal/ai"
	"github.com/Onebillie/parsetastic/internal/db"
	"github.com/Onebillie/parsetastic/internal/logging"
	"github.com/Onebillie/parsetastic/internal/models"
	"github.com/Onebillie/parsetastic/internal/resilience"
	"github.com/Onebillie/parsetastic/internal/storage"
)

// DefaultPath is read when CONFIG_PATH is unset.
const DefaultPath = "config.yaml"

// Config represents the service configuration
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Log        logging.Config    `yaml:"log"`
	AI         AIConfig          `yaml:"ai"`
	Thresholds models.Thresholds `yaml:"thresholds"`
	OneBill    OneBillConfig     `yaml:"onebill"`
	Storage    storage.Config    `yaml:"storage"`
	Database   db.PoolConfig     `yaml:"database"`
	Events     EventsConfig      `yaml:"events"`
	Auth       AuthConfig        `yaml:"auth"`
	Resilience resilience.Config `yaml:"resilience"`

	// Autopilot lets confident documents go straight to billing. Off means every document is reviewed.
	Autopilot bool `yaml:"autopilot"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	DefaultProvider   string          `yaml:"default_provider"` // "openai" or "gemini"
	OpenAI            ai.OpenAIConfig `yaml:"openai"`
	Gemini            ai.GeminiConfig `yaml:"gemini"`
	ExtractionTimeout time.Duration   `yaml:"extraction_timeout"`
	ValidationTimeout time.Duration   `yaml:"validation_timeout"`
	LearningTimeout   time.Duration   `yaml:"learning_timeout"`
}

type OneBillConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type EventsConfig struct {
	NATSURL              string        `yaml:"nats_url"`
	SubjectPrefix        string        `yaml:"subject_prefix"`
	WebhookTimeout       time.Duration `yaml:"webhook_timeout"`
	WebhookRatePerSecond float64       `yaml:"webhook_rate_per_second"`
}

type AuthConfig struct {
	Enabled   bool          `yaml:"enabled"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, MaxUploadMB: 10},
		Log:    logging.Config{Level: "info", Format: "json"},
		AI: AIConfig{
			DefaultProvider:   "openai",
			ExtractionTimeout: 60 * time.Second,
			ValidationTimeout: 30 * time.Second,
			LearningTimeout:   60 * time.Second,
		},
		Thresholds: models.DefaultThresholds(),
		OneBill:    OneBillConfig{BaseURL: "https://api.onebill.ie", Timeout: 30 * time.Second},
		Storage: storage.Config{
			Endpoint:   "minio:9000",
			Bucket:     "bills",
			PresignTTL: 24 * time.Hour,
		},
		Database: db.PoolConfig{MaxConns: 10, MinConns: 2},
		Events: EventsConfig{
			SubjectPrefix:        "documents",
			WebhookTimeout:       10 * time.Second,
			WebhookRatePerSecond: 20,
		},
		Auth:       AuthConfig{Enabled: true, TokenTTL: 24 * time.Hour},
		Resilience: resilience.DefaultConfig(),
		Autopilot:  true,
	}
}

// Load reads path (a missing file is fine), applies environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, eris.Wrapf(err, "config: read %s", path)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, eris.Wrapf(err, "config: parse %s", path)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Thresholds = cfg.Thresholds.WithDefaults()
	return cfg, nil
}

// PathFromEnv returns CONFIG_PATH or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return eris.Wrapf(err, "config: PORT %q", port)
		}
		cfg.Server.Port = p
	}
	str("HOST", &cfg.Server.Host)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	str("AI_PROVIDER", &cfg.AI.DefaultProvider)
	str("OPENAI_API_KEY", &cfg.AI.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &cfg.AI.OpenAI.BaseURL)
	str("OPENAI_MODEL", &cfg.AI.OpenAI.Model)
	str("GEMINI_API_KEY", &cfg.AI.Gemini.APIKey)
	str("GEMINI_MODEL", &cfg.AI.Gemini.Model)

	str("ONEBILL_API_KEY", &cfg.OneBill.APIKey)
	str("ONEBILL_BASE_URL", &cfg.OneBill.BaseURL)

	str("DATABASE_URL", &cfg.Database.URL)
	str("NATS_URL", &cfg.Events.NATSURL)
	str("JWT_SECRET", &cfg.Auth.JWTSecret)

	str("MINIO_ENDPOINT", &cfg.Storage.Endpoint)
	str("MINIO_ACCESS_KEY", &cfg.Storage.AccessKey)
	str("MINIO_SECRET_KEY", &cfg.Storage.SecretKey)
	str("MINIO_BUCKET", &cfg.Storage.Bucket)
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		cfg.Storage.UseSSL = v == "true"
	}
	if v := os.Getenv("AUTOPILOT"); v != "" {
		cfg.Autopilot = v == "true"
	}
	return nil
}
