// Package config loads tracker settings from a yaml file, command line
// flags and environment variables, in that order of precedence
// (environment wins).
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"walletwatch/internal/services/notifier"
)

const (
	defaultPollIntervalSec   = 30
	defaultCacheTTLSec       = 30
	defaultTimeoutSec        = 6
	defaultAccountTimeoutSec = 8
	defaultMaxRetries        = 1
	defaultAccountRetries    = 2
	defaultHistoryDir        = "./wal/changes"
)

// Config is the full tracker configuration.
type Config struct {
	// Target is the observed account address, lowercased.
	Target string
	// InfoAPI is the ledger info endpoint; empty means the public default.
	InfoAPI string
	// PriceAPI is the market data API root; empty means the public default.
	PriceAPI string

	PollInterval   time.Duration
	PriceCacheTTL  time.Duration
	RequestTimeout time.Duration
	AccountTimeout time.Duration
	MaxRetries     int
	AccountRetries int

	HistoryDir string

	SMTP notifier.SMTPConfig

	// Setup is set when the user asked for the interactive wizard
	// instead of a normal start.
	Setup bool
}

// FileConfig is the yaml file schema. The setup wizard marshals it and
// Get unmarshals it; keep the two in sync through this one type.
type FileConfig struct {
	Target            string `yaml:"target"`
	InfoAPI           string `yaml:"info_api"`
	PriceAPI          string `yaml:"price_api"`
	PollIntervalSec   int    `yaml:"poll_interval_seconds"`
	PriceCacheTTLSec  int    `yaml:"price_cache_ttl_seconds"`
	RequestTimeoutSec int    `yaml:"request_timeout_seconds"`
	AccountTimeoutSec int    `yaml:"account_timeout_seconds"`
	MaxRetries        int    `yaml:"max_retries"`
	AccountRetries    int    `yaml:"account_retries"`
	HistoryDir        string `yaml:"history_dir"`

	SMTP notifier.SMTPConfig `yaml:"smtp"`
}

// Get assembles the configuration from flags, an optional yaml file and
// environment overrides.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	target := flag.String("target", "", "account address to observe, example: 0xc2a3...e5f2")
	pollSec := flag.Int("poll-interval", defaultPollIntervalSec, "poll interval in seconds")
	ttlSec := flag.Int("price-cache-ttl", defaultCacheTTLSec, "price cache ttl in seconds")
	timeoutSec := flag.Int("request-timeout", defaultTimeoutSec, "market request timeout in seconds")
	retries := flag.Int("max-retries", defaultMaxRetries, "market request attempts")
	historyDir := flag.String("history-dir", defaultHistoryDir, "directory for the change history")
	setup := flag.Bool("setup", false, "run the interactive configuration wizard")
	flag.Parse()

	if *setup {
		return Config{Setup: true}, nil
	}

	cfg := Config{
		Target:         *target,
		PollInterval:   time.Duration(*pollSec) * time.Second,
		PriceCacheTTL:  time.Duration(*ttlSec) * time.Second,
		RequestTimeout: time.Duration(*timeoutSec) * time.Second,
		AccountTimeout: defaultAccountTimeoutSec * time.Second,
		MaxRetries:     *retries,
		AccountRetries: defaultAccountRetries,
		HistoryDir:     *historyDir,
	}

	if *configPath != "" {
		loaded, err := fromYaml(*configPath, cfg)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load reads a yaml config on top of the defaults, applies environment
// overrides and validates the result. Used after the setup wizard has
// written a fresh file.
func Load(path string) (Config, error) {
	cfg, err := fromYaml(path, defaults())
	if err != nil {
		return Config{}, err
	}

	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		PollInterval:   defaultPollIntervalSec * time.Second,
		PriceCacheTTL:  defaultCacheTTLSec * time.Second,
		RequestTimeout: defaultTimeoutSec * time.Second,
		AccountTimeout: defaultAccountTimeoutSec * time.Second,
		MaxRetries:     defaultMaxRetries,
		AccountRetries: defaultAccountRetries,
		HistoryDir:     defaultHistoryDir,
	}
}

func fromYaml(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var y FileConfig
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := base
	if y.Target != "" {
		cfg.Target = y.Target
	}
	if y.InfoAPI != "" {
		cfg.InfoAPI = y.InfoAPI
	}
	if y.PriceAPI != "" {
		cfg.PriceAPI = y.PriceAPI
	}
	if y.PollIntervalSec > 0 {
		cfg.PollInterval = time.Duration(y.PollIntervalSec) * time.Second
	}
	if y.PriceCacheTTLSec > 0 {
		cfg.PriceCacheTTL = time.Duration(y.PriceCacheTTLSec) * time.Second
	}
	if y.RequestTimeoutSec > 0 {
		cfg.RequestTimeout = time.Duration(y.RequestTimeoutSec) * time.Second
	}
	if y.AccountTimeoutSec > 0 {
		cfg.AccountTimeout = time.Duration(y.AccountTimeoutSec) * time.Second
	}
	if y.MaxRetries > 0 {
		cfg.MaxRetries = y.MaxRetries
	}
	if y.AccountRetries > 0 {
		cfg.AccountRetries = y.AccountRetries
	}
	if y.HistoryDir != "" {
		cfg.HistoryDir = y.HistoryDir
	}
	cfg.SMTP = y.SMTP

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TARGET_ADDRESS"); v != "" {
		cfg.Target = v
	}
	if v := os.Getenv("RPC_API"); v != "" {
		cfg.InfoAPI = v
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.PollInterval = time.Duration(sec) * time.Second
		}
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.SMTP.Port = port
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASS"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		cfg.SMTP.From = v
	}
	if v := os.Getenv("EMAIL_TO"); v != "" {
		cfg.SMTP.To = splitRecipients(v)
	}
}

func validate(cfg *Config) error {
	if cfg.Target == "" {
		return fmt.Errorf("target account address is required (flag --target, yaml 'target' or env TARGET_ADDRESS)")
	}
	if !common.IsHexAddress(cfg.Target) {
		return fmt.Errorf("invalid target account address: %s", cfg.Target)
	}
	cfg.Target = strings.ToLower(cfg.Target)

	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if cfg.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}

	return nil
}

func splitRecipients(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
