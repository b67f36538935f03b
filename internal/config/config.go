package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"

	"github.com/PhilTenno/filesyncgo/internal/hashing"
)

const (
	SyncModeCommand = "command"
	SyncModeWebhook = "webhook"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console"`

	TriggerPath  string        `env:"TRIGGER_PATH" envDefault:"/filesync/trigger"`
	RateLimit    int           `env:"RATE_LIMIT" envDefault:"24"`
	RateWindow   time.Duration `env:"RATE_WINDOW" envDefault:"24h"`
	MaxBodyBytes int64         `env:"MAX_BODY_BYTES" envDefault:"4096"`

	SingleTokenMode   bool `env:"SINGLE_TOKEN_MODE" envDefault:"true"`
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	TLSCertFile  string `env:"TLS_CERT_FILE"`
	TLSKeyFile   string `env:"TLS_KEY_FILE"`
	ACMEDomain   string `env:"ACME_DOMAIN"`
	ACMEEmail    string `env:"ACME_EMAIL"`
	ACMECacheDir string `env:"ACME_CACHE_DIR" envDefault:"./acme-cache"`

	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	SyncMode       string        `env:"SYNC_MODE" envDefault:"command"`
	SyncCommand    string        `env:"SYNC_COMMAND"`
	SyncProjectDir string        `env:"SYNC_PROJECT_DIR" envDefault:"."`
	SyncWebhookURL string        `env:"SYNC_WEBHOOK_URL"`
	SyncTimeout    time.Duration `env:"SYNC_TIMEOUT" envDefault:"5m"`

	Argon2MemoryKB    uint32 `env:"ARGON2_MEMORY_KB" envDefault:"65536"`
	Argon2Iterations  uint32 `env:"ARGON2_ITERATIONS" envDefault:"3"`
	Argon2Parallelism uint8  `env:"ARGON2_PARALLELISM" envDefault:"2"`

	AuditStream       string `env:"AUDIT_STREAM" envDefault:"filesync:audit"`
	AuditStreamMaxLen int64  `env:"AUDIT_STREAM_MAXLEN" envDefault:"10000"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) TLSEnabled() bool {
	return c.ACMEDomain != "" || (c.TLSCertFile != "" && c.TLSKeyFile != "")
}

func (c *Config) AdminEnabled() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}

func (c *Config) Argon2Params() hashing.Argon2Params {
	params := hashing.DefaultParams()
	params.Memory = c.Argon2MemoryKB
	params.Iterations = c.Argon2Iterations
	params.Parallelism = c.Argon2Parallelism
	return params
}

func (c *Config) Validate(isProduction bool) error {
	var errs []error

	if c.RateLimit < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT must be at least 1, got %d", c.RateLimit))
	}
	if c.RateWindow <= 0 {
		errs = append(errs, fmt.Errorf("RATE_WINDOW must be positive, got %s", c.RateWindow))
	}
	if c.SyncTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_TIMEOUT must be positive, got %s", c.SyncTimeout))
	}
	if !strings.HasPrefix(c.TriggerPath, "/") {
		errs = append(errs, fmt.Errorf("TRIGGER_PATH must start with /, got %q", c.TriggerPath))
	}
	switch c.SyncMode {
	case SyncModeCommand:
	case SyncModeWebhook:
		if c.SyncWebhookURL == "" {
			errs = append(errs, errors.New("SYNC_WEBHOOK_URL is required when SYNC_MODE=webhook"))
		}
	default:
		errs = append(errs, fmt.Errorf("SYNC_MODE must be %q or %q, got %q", SyncModeCommand, SyncModeWebhook, c.SyncMode))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together"))
	}
	if c.Argon2MemoryKB == 0 || c.Argon2Iterations == 0 || c.Argon2Parallelism == 0 {
		errs = append(errs, errors.New("ARGON2_MEMORY_KB, ARGON2_ITERATIONS and ARGON2_PARALLELISM must be positive"))
	}

	if isProduction {
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if !c.TLSEnabled() && !c.TrustProxyHeaders {
			log.Warn().Msg("no TLS listener and TRUST_PROXY_HEADERS is off: every trigger request will be rejected")
		}
	}
	if c.AdminEnabled() && !c.TLSEnabled() && !c.TrustProxyHeaders {
		log.Warn().Msg("admin API is enabled without TLS: credentials travel in clear text")
	}

	return errors.Join(errs...)
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
