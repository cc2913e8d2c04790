package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromYamlOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target: "0xC2a3000000000000000000000000000000000001"
poll_interval_seconds: 10
price_cache_ttl_seconds: 60
history_dir: /tmp/history
smtp:
  host: smtp.example.com
  port: 465
  from: bot@example.com
  to:
    - me@example.com
  use_ssl: true
`), 0o600))

	base := Config{
		PollInterval:   30 * time.Second,
		PriceCacheTTL:  30 * time.Second,
		RequestTimeout: 6 * time.Second,
		MaxRetries:     1,
		HistoryDir:     defaultHistoryDir,
	}

	cfg, err := fromYaml(path, base)
	require.NoError(t, err)

	require.Equal(t, "0xC2a3000000000000000000000000000000000001", cfg.Target)
	require.Equal(t, 10*time.Second, cfg.PollInterval)
	require.Equal(t, time.Minute, cfg.PriceCacheTTL)
	// untouched fields keep their defaults
	require.Equal(t, 6*time.Second, cfg.RequestTimeout)
	require.Equal(t, "/tmp/history", cfg.HistoryDir)

	require.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	require.Equal(t, 465, cfg.SMTP.Port)
	require.True(t, cfg.SMTP.UseSSL)
	require.True(t, cfg.SMTP.Configured())
}

func TestApplyEnvWins(t *testing.T) {
	t.Setenv("TARGET_ADDRESS", "0xC2a3000000000000000000000000000000000002")
	t.Setenv("POLL_INTERVAL", "15")
	t.Setenv("EMAIL_TO", "a@example.com, b@example.com,,")

	cfg := Config{Target: "0xfromfile", PollInterval: 30 * time.Second}
	applyEnv(&cfg)

	require.Equal(t, "0xC2a3000000000000000000000000000000000002", cfg.Target)
	require.Equal(t, 15*time.Second, cfg.PollInterval)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.SMTP.To)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Target:       "0xC2A3000000000000000000000000000000000001",
		PollInterval: 30 * time.Second,
		MaxRetries:   1,
	}
	require.NoError(t, validate(&cfg))
	// address is canonicalized to lower case
	require.Equal(t, "0xc2a3000000000000000000000000000000000001", cfg.Target)

	missing := Config{PollInterval: time.Second, MaxRetries: 1}
	require.Error(t, validate(&missing))

	bogus := cfg
	bogus.Target = "not-an-address"
	require.Error(t, validate(&bogus))

	idle := cfg
	idle.PollInterval = 0
	require.Error(t, validate(&idle))
}
