package config

import (
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
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`
	Storage struct {
		Backend string `yaml:"backend"` // file | s3
		Dir     string `yaml:"dir"`
		S3      struct {
			Bucket   string `yaml:"bucket"`
			Region   string `yaml:"region"`
			Endpoint string `yaml:"endpoint"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"s3"`
	} `yaml:"storage"`
	Watcher struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		Backoff      time.Duration `yaml:"backoff"`
		CallTimeout  time.Duration `yaml:"call_timeout"`
		ArtifactDir  string        `yaml:"artifact_dir"`
		Resume       bool          `yaml:"resume"`
	} `yaml:"watcher"`
	Collaborators struct {
		MailboxURL    string `yaml:"mailbox_url"`
		ExtractionURL string `yaml:"extraction_url"`
		FieldsURL     string `yaml:"fields_url"`
		APIKey        string `yaml:"api_key"`
	} `yaml:"collaborators"`
	FX struct {
		BaseCurrency string        `yaml:"base_currency"`
		BaseURL      string        `yaml:"base_url"`
		APIKey       string        `yaml:"api_key"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"fx"`
	Hazard struct {
		BaseURL    string  `yaml:"base_url"`
		RadiusKM   int     `yaml:"radius_km"`
		RatePerSec float64 `yaml:"rate_per_sec"`
		Disabled   bool    `yaml:"disabled"`
	} `yaml:"hazard"`
	Portfolio struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"portfolio"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		DigestCron string `yaml:"digest_cron"`
	} `yaml:"schedule"`
	Telemetry struct {
		OTLPEndpoint string `yaml:"otlp_endpoint"`
		Insecure     bool   `yaml:"insecure"`
	} `yaml:"telemetry"`
	Proxy string `yaml:"proxy"`
}

// Load reads an optional .env file, the YAML config at path, then applies
// environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("LISTEN_ADDR", &cfg.Server.ListenAddr)
	str("STORAGE_BACKEND", &cfg.Storage.Backend)
	str("STORAGE_DIR", &cfg.Storage.Dir)
	str("S3_BUCKET", &cfg.Storage.S3.Bucket)
	str("AWS_REGION", &cfg.Storage.S3.Region)
	str("S3_ENDPOINT", &cfg.Storage.S3.Endpoint)
	str("ARTIFACT_DIR", &cfg.Watcher.ArtifactDir)
	str("MAILBOX_URL", &cfg.Collaborators.MailboxURL)
	str("EXTRACTION_URL", &cfg.Collaborators.ExtractionURL)
	str("FIELDS_URL", &cfg.Collaborators.FieldsURL)
	str("COLLABORATOR_API_KEY", &cfg.Collaborators.APIKey)
	str("OANDA_EXR_BASE_URL", &cfg.FX.BaseURL)
	str("OANDA_EXR_API_KEY", &cfg.FX.APIKey)
	str("BASE_CURRENCY", &cfg.FX.BaseCurrency)
	str("PORTFOLIO_SQLITE_PATH", &cfg.Portfolio.SQLitePath)
	str("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID)
	str("CRON_DIGEST", &cfg.Schedule.DigestCron)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	str("HTTPS_PROXY", &cfg.Proxy)

	if v := os.Getenv("WATCHER_RESUME"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Watcher.Resume = b
		}
	}
	if v := os.Getenv("WATCHER_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Watcher.PollInterval = d
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":5000"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "data/artifacts"
	}
	if cfg.Watcher.PollInterval == 0 {
		cfg.Watcher.PollInterval = 2 * time.Second
	}
	if cfg.Watcher.Backoff == 0 {
		cfg.Watcher.Backoff = 60 * time.Second
	}
	if cfg.Watcher.CallTimeout == 0 {
		cfg.Watcher.CallTimeout = 5 * time.Minute
	}
	if cfg.Watcher.ArtifactDir == "" {
		cfg.Watcher.ArtifactDir = "data/structured"
	}
	if cfg.FX.BaseCurrency == "" {
		cfg.FX.BaseCurrency = "KES"
	}
	cfg.FX.BaseCurrency = strings.ToUpper(cfg.FX.BaseCurrency)
	if cfg.FX.Timeout == 0 {
		cfg.FX.Timeout = 10 * time.Second
	}
	if cfg.Hazard.RadiusKM == 0 {
		cfg.Hazard.RadiusKM = 100
	}
	if cfg.Hazard.RatePerSec == 0 {
		cfg.Hazard.RatePerSec = 2
	}
}

// TelegramEnabled reports whether digests can be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks for startup misconfiguration.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be file or s3, got %q", c.Storage.Backend)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Watcher.PollInterval < 0 || c.Watcher.Backoff < 0 || c.Watcher.CallTimeout < 0 {
		return fmt.Errorf("watcher durations must be positive")
	}
	if len(c.FX.BaseCurrency) != 3 {
		return fmt.Errorf("fx.base_currency must be a 3-letter code, got %q", c.FX.BaseCurrency)
	}
	return nil
}

// ValidateIngestion checks the settings only the watcher needs.
func (c *Config) ValidateIngestion() error {
	if c.Collaborators.MailboxURL == "" {
		return fmt.Errorf("collaborators.mailbox_url is required")
	}
	if c.Collaborators.ExtractionURL == "" {
		return fmt.Errorf("collaborators.extraction_url is required")
	}
	if c.Collaborators.FieldsURL == "" {
		return fmt.Errorf("collaborators.fields_url is required")
	}
	return nil
}
