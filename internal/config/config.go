package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the root of the runtime configuration tree. It is populated from
// defaults, an optional config.yaml, environment variables (prefix QALOOP), and
// command line flags, in ascending precedence.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Run     RunConfig     `mapstructure:"run" yaml:"run"`
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the terminal color names for each log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// RunConfig tunes the orchestration loop. All of these are policy knobs, not
// fixed constants: the defaults mirror what worked against a Pixel-class
// emulator but should be validated against real device latency.
type RunConfig struct {
	MaxSteps        int           `mapstructure:"max_steps" yaml:"max_steps"`               // Per-scenario ceiling on device actions.
	SettleDelay     time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`         // Wait after an action before capturing the screen.
	ActionDelay     time.Duration `mapstructure:"action_delay" yaml:"action_delay"`         // Minimum spacing between device actions.
	ActionRetries   int           `mapstructure:"action_retries" yaml:"action_retries"`     // Retries of a failed device action before giving up.
	DecisionRetries int           `mapstructure:"decision_retries" yaml:"decision_retries"` // Retries of a failed planning call before giving up.
	ScenarioFile    string        `mapstructure:"scenario_file" yaml:"scenario_file"`       // Optional YAML file with extra scenarios.
}

// DeviceConfig identifies the device session and the app under test.
type DeviceConfig struct {
	Serial         string        `mapstructure:"serial" yaml:"serial"`
	ADBPath        string        `mapstructure:"adb_path" yaml:"adb_path"`
	AppPackage     string        `mapstructure:"app_package" yaml:"app_package"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// LLMProvider names a supported reasoning backend.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig configures the reasoning model client.
type LLMConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ReportConfig controls where run artifacts land.
type ReportConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	Screenshots bool   `mapstructure:"screenshots" yaml:"screenshots"`
	Logcat      bool   `mapstructure:"logcat" yaml:"logcat"`
}

// HistoryConfig controls the local run-history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "qaloop")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Run loop --
	v.SetDefault("run.max_steps", 20)
	v.SetDefault("run.settle_delay", "2s")
	v.SetDefault("run.action_delay", "1s")
	v.SetDefault("run.action_retries", 3)
	v.SetDefault("run.decision_retries", 2)
	v.SetDefault("run.scenario_file", "")

	// -- Device --
	v.SetDefault("device.serial", "emulator-5554")
	v.SetDefault("device.adb_path", "")
	v.SetDefault("device.app_package", "md.obsidian")
	v.SetDefault("device.command_timeout", "30s")

	// -- Reasoning model --
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.api_timeout", "90s")
	v.SetDefault("llm.requests_per_second", 1.0)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 4096)

	// -- Reporting --
	v.SetDefault("report.dir", "./results")
	v.SetDefault("report.screenshots", true)
	v.SetDefault("report.logcat", false)

	// -- History --
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "./results/qaloop.db")
}

// NewDefaultConfig creates a configuration populated with default values only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing to unmarshal them is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds and validates a configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// The API key is sensitive and comes from the environment, never the file.
	if err := v.BindEnv("llm.api_key", "GEMINI_API_KEY", "GOOGLE_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves ~ in user-supplied locations.
func (c *Config) expandPaths() error {
	var err error
	if c.Report.Dir, err = homedir.Expand(c.Report.Dir); err != nil {
		return fmt.Errorf("failed to expand report dir: %w", err)
	}
	if c.History.Path, err = homedir.Expand(c.History.Path); err != nil {
		return fmt.Errorf("failed to expand history path: %w", err)
	}
	if c.Logger.LogFile != "" {
		if c.Logger.LogFile, err = homedir.Expand(c.Logger.LogFile); err != nil {
			return fmt.Errorf("failed to expand log file path: %w", err)
		}
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Run.MaxSteps < 1 {
		return fmt.Errorf("run.max_steps must be at least 1")
	}
	if c.Run.ActionRetries < 0 || c.Run.DecisionRetries < 0 {
		return fmt.Errorf("retry limits must not be negative")
	}
	if c.Run.SettleDelay < 0 || c.Run.ActionDelay < 0 {
		return fmt.Errorf("run delays must not be negative")
	}
	if c.Device.AppPackage == "" {
		return fmt.Errorf("device.app_package is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.RequestsPerSecond <= 0 {
		return fmt.Errorf("llm.requests_per_second must be positive")
	}
	switch c.LLM.Provider {
	case ProviderGemini:
	default:
		return fmt.Errorf("unsupported llm.provider %q", c.LLM.Provider)
	}
	if c.Report.Dir == "" {
		return fmt.Errorf("report.dir is required")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	return nil
}

// EnvKey maps a dotted config key to its environment variable name.
func EnvKey(key string) string {
	return "QALOOP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
