package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "qaloop", cfg.Logger.ServiceName)
	assert.Equal(t, "green", cfg.Logger.Colors.Info)

	assert.Equal(t, 20, cfg.Run.MaxSteps)
	assert.Equal(t, 2*time.Second, cfg.Run.SettleDelay)
	assert.Equal(t, time.Second, cfg.Run.ActionDelay)
	assert.Equal(t, 3, cfg.Run.ActionRetries)
	assert.Equal(t, 2, cfg.Run.DecisionRetries)

	assert.Equal(t, "emulator-5554", cfg.Device.Serial)
	assert.Equal(t, "md.obsidian", cfg.Device.AppPackage)
	assert.Equal(t, 30*time.Second, cfg.Device.CommandTimeout)

	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.LLM.APITimeout)
	assert.Equal(t, 1.0, cfg.LLM.RequestsPerSecond)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)

	assert.Equal(t, "./results", cfg.Report.Dir)
	assert.True(t, cfg.Report.Screenshots)
	assert.False(t, cfg.Report.Logcat)

	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "./results/qaloop.db", cfg.History.Path)

	assert.NoError(t, cfg.Validate(), "defaults must form a valid configuration")
}

func TestNewConfigFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("run.max_steps", 5)
	v.Set("device.serial", "R5CT1066ABC")

	cfg, err := NewConfigFromViper(v)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Run.MaxSteps)
	assert.Equal(t, "R5CT1066ABC", cfg.Device.Serial)
}

func TestNewConfigFromViper_APIKeyFromEnv(t *testing.T) {
	t.Run("primary variable", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gemini-secret")

		v := viper.New()
		SetDefaults(v)
		cfg, err := NewConfigFromViper(v)

		require.NoError(t, err)
		assert.Equal(t, "gemini-secret", cfg.LLM.APIKey)
	})

	t.Run("google fallback", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "google-secret")

		v := viper.New()
		SetDefaults(v)
		cfg, err := NewConfigFromViper(v)

		require.NoError(t, err)
		assert.Equal(t, "google-secret", cfg.LLM.APIKey)
	})
}

func TestNewConfigFromViper_InvalidRejected(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("run.max_steps", 0)

	_, err := NewConfigFromViper(v)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "run.max_steps")
}

func TestNewConfigFromViper_ExpandsHome(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("report.dir", "~/qaloop-results")

	cfg, err := NewConfigFromViper(v)

	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.Report.Dir), "a ~ path should expand to an absolute one")
	assert.False(t, strings.Contains(cfg.Report.Dir, "~"))
	assert.True(t, strings.HasSuffix(cfg.Report.Dir, "qaloop-results"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "max steps below one",
			mutate:  func(c *Config) { c.Run.MaxSteps = 0 },
			wantErr: "run.max_steps must be at least 1",
		},
		{
			name:    "negative action retries",
			mutate:  func(c *Config) { c.Run.ActionRetries = -1 },
			wantErr: "retry limits must not be negative",
		},
		{
			name:    "negative decision retries",
			mutate:  func(c *Config) { c.Run.DecisionRetries = -1 },
			wantErr: "retry limits must not be negative",
		},
		{
			name:    "negative settle delay",
			mutate:  func(c *Config) { c.Run.SettleDelay = -time.Second },
			wantErr: "run delays must not be negative",
		},
		{
			name:    "missing app package",
			mutate:  func(c *Config) { c.Device.AppPackage = "" },
			wantErr: "device.app_package is required",
		},
		{
			name:    "missing model",
			mutate:  func(c *Config) { c.LLM.Model = "" },
			wantErr: "llm.model is required",
		},
		{
			name:    "zero request rate",
			mutate:  func(c *Config) { c.LLM.RequestsPerSecond = 0 },
			wantErr: "llm.requests_per_second must be positive",
		},
		{
			name:    "unsupported provider",
			mutate:  func(c *Config) { c.LLM.Provider = "openai" },
			wantErr: `unsupported llm.provider "openai"`,
		},
		{
			name:    "missing report dir",
			mutate:  func(c *Config) { c.Report.Dir = "" },
			wantErr: "report.dir is required",
		},
		{
			name:    "history enabled without path",
			mutate:  func(c *Config) { c.History.Path = "" },
			wantErr: "history.path is required",
		},
		{
			name: "history disabled tolerates empty path",
			mutate: func(c *Config) {
				c.History.Enabled = false
				c.History.Path = ""
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
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

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "QALOOP_LOGGER_LEVEL", EnvKey("logger.level"))
	assert.Equal(t, "QALOOP_LLM_API_KEY", EnvKey("llm.api_key"))
	assert.Equal(t, "QALOOP_RUN_MAX_STEPS", EnvKey("run.max_steps"))
}
