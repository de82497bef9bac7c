package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/chatstream/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewLoader().WithLookup(env(nil)).Load()
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, 16*time.Millisecond, cfg.BatchInterval)
}

func TestLoader_FileThenEnv(t *testing.T) {
	t.Parallel()

	path := writeFile(t, `
api_url: https://chat.example.com
token: from-file
timeout: 45s
retry_attempts: 5
history_limit: 20
log_level: debug
`)
	cfg, err := config.NewLoader().
		WithPath(path).
		WithLookup(env(map[string]string{
			"CHATSTREAM_TOKEN":       "from-env",
			"CHATSTREAM_RETRY_DELAY": "250ms",
			"CHATSTREAM_LOG_FILE":    "",
		})).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.com", cfg.APIURL)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.BannerTimeout, "unset keys keep defaults")
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing explicit file", func(t *testing.T) {
		t.Parallel()
		_, err := config.NewLoader().WithPath(filepath.Join(t.TempDir(), "nope.yaml")).WithLookup(env(nil)).Load()
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()
		_, err := config.NewLoader().WithPath(writeFile(t, "timeout: [")).WithLookup(env(nil)).Load()
		assert.Error(t, err)
	})

	t.Run("invalid env duration", func(t *testing.T) {
		t.Parallel()
		_, err := config.NewLoader().WithLookup(env(map[string]string{"CHATSTREAM_TIMEOUT": "soon"})).Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CHATSTREAM_TIMEOUT")
	})

	t.Run("invalid env int", func(t *testing.T) {
		t.Parallel()
		_, err := config.NewLoader().WithLookup(env(map[string]string{"CHATSTREAM_HISTORY_LIMIT": "many"})).Load()
		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"relative url", func(c *config.Config) { c.APIURL = "localhost" }, "api_url"},
		{"no retry attempts", func(c *config.Config) { c.RetryAttempts = 0 }, "retry_attempts"},
		{"negative retry delay", func(c *config.Config) { c.RetryDelay = -time.Second }, "retry_delay"},
		{"history limit too big", func(c *config.Config) { c.HistoryLimit = 1001 }, "history_limit"},
		{"zero banner timeout", func(c *config.Config) { c.BannerTimeout = 0 }, "banner_timeout"},
		{"unknown log level", func(c *config.Config) { c.LogLevel = "loud" }, "log_level"},
		{"timeout disabled is allowed", func(c *config.Config) { c.Timeout = 0 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Logger(t *testing.T) {
	t.Parallel()

	t.Run("no file discards", func(t *testing.T) {
		t.Parallel()
		logger, err := config.Default().Logger()
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(-1))
	})

	t.Run("writes to the log file", func(t *testing.T) {
		t.Parallel()
		cfg := config.Default()
		cfg.LogFile = filepath.Join(t.TempDir(), "chatstream.log")
		logger, err := cfg.Logger()
		require.NoError(t, err)
		logger.Info("hello")
		_ = logger.Sync()

		data, err := os.ReadFile(cfg.LogFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello")
	})
}
