package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"bonkers-airdrop/store"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Economy  EconomyConfig
	Workers  WorkersConfig
	R2       R2Config
	Limits   LimitsConfig
}

type ServerConfig struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	GatewayToken   string
	JWTSecret      string
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	Store        store.Config
}

type LoggingConfig struct {
	Level string
	File  string
}

type EconomyConfig struct {
	ParamsFile string
}

type WorkersConfig struct {
	ReferralSettlementInterval time.Duration
	LedgerArchiveEnabled       bool
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

type LimitsConfig struct {
	RequestsPerMinute float64
	Burst             int
}

// Load reads the environment, after .env when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	p := &parser{errs: &errs}

	storeDefaults := store.DefaultConfig()
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "5200"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
			GatewayToken:   os.Getenv("GATEWAY_SERVICE_TOKEN"),
			JWTSecret:      os.Getenv("JWT_SECRET"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: p.integer("DB_MAX_OPEN_CONNS", 20),
			Store: store.Config{
				Timeout:              p.duration("STORE_TIMEOUT", storeDefaults.Timeout),
				ReadRetries:          p.integer("STORE_READ_RETRIES", storeDefaults.ReadRetries),
				WriteConflictRetries: p.integer("STORE_WRITE_CONFLICT_RETRIES", storeDefaults.WriteConflictRetries),
				RetryBackoff:         p.duration("STORE_RETRY_BACKOFF", storeDefaults.RetryBackoff),
			},
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Economy: EconomyConfig{
			ParamsFile: os.Getenv("ECONOMY_PARAMS_FILE"),
		},
		Workers: WorkersConfig{
			ReferralSettlementInterval: p.duration("REFERRAL_SETTLEMENT_INTERVAL", time.Minute),
			LedgerArchiveEnabled:       p.flag("LEDGER_ARCHIVE_ENABLED", false),
		},
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
		},
		Limits: LimitsConfig{
			RequestsPerMinute: p.number("RATE_LIMIT_PER_MINUTE", 30),
			Burst:             p.integer("RATE_LIMIT_BURST", 5),
		},
	}

	if cfg.Server.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if cfg.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if cfg.Workers.ReferralSettlementInterval <= 0 {
		errs = append(errs, errors.New("REFERRAL_SETTLEMENT_INTERVAL must be positive"))
	}
	if cfg.Workers.LedgerArchiveEnabled && (cfg.R2.AccountID == "" || cfg.R2.Bucket == "") {
		errs = append(errs, errors.New("LEDGER_ARCHIVE_ENABLED needs CLOUDFLARE_ACCOUNT_ID and R2_BUCKET_NAME"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parser collects malformed values instead of stopping at the first one.
type parser struct {
	errs *[]error
}

func (p *parser) fail(key, raw string, err error) {
	*p.errs = append(*p.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
}

func (p *parser) integer(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) number(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) flag(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}
