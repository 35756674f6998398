// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/qaloop-dev/qaloop/internal/config"
	"github.com/qaloop-dev/qaloop/internal/observability"
)

var (
	cfgFile string
	// cfg holds the resolved configuration for the current invocation. It is
	// populated by the root command's PersistentPreRunE before any subcommand
	// runs.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "qaloop",
	Short: "qaloop runs natural-language QA scenarios against an Android app.",
	Long: `qaloop drives a connected Android device through scripted QA scenarios,
using a vision-capable reasoning model to decide each action from the current
screen and to judge the final assertion.`,
	// Version is dynamically set at build time. See cmd/version.go.
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// This runs before any command, setting up config and logging.
		if err := initializeConfig(cmd); err != nil {
			return err
		}

		loaded, err := config.NewConfigFromViper(viper.GetViper())
		if err != nil {
			// Initialize a fallback logger so the failure itself is visible.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "qaloop"})
			return err
		}
		cfg = loaded

		if noHistory, _ := cmd.Flags().GetBool("no-history"); noHistory {
			cfg.History.Enabled = false
		}

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Starting qaloop", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command with the given signal-aware context.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command failed", zap.Error(err))
		}
	}
	observability.Sync()
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("serial", "", "device serial to target (overrides config)")
	rootCmd.PersistentFlags().String("model", "", "reasoning model name (overrides config)")
	rootCmd.PersistentFlags().Int("max-steps", 0, "per-scenario action ceiling (overrides config)")
	rootCmd.PersistentFlags().String("report-dir", "", "directory for reports and screenshots (overrides config)")
	rootCmd.PersistentFlags().String("scenario-file", "", "YAML file with additional scenarios")
	rootCmd.PersistentFlags().Bool("logcat", false, "capture device logcat for the duration of the run")
	rootCmd.PersistentFlags().Bool("no-history", false, "skip recording this run in the history database")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newAllCmd(),
		newDemoCmd(),
		newTestCmd(),
		newListCmd(),
		newRunsCmd(),
		newDoctorCmd(),
	)
}

// initializeConfig reads the config file and environment, then binds the
// override flags so precedence is flags > env > file > defaults.
func initializeConfig(cmd *cobra.Command) error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("QALOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}

	// Bind flags to their viper keys so command line values win.
	bindings := map[string]string{
		"device.serial":     "serial",
		"llm.model":         "model",
		"run.max_steps":     "max-steps",
		"report.dir":        "report-dir",
		"run.scenario_file": "scenario-file",
		"report.logcat":     "logcat",
		"logger.level":      "log-level",
	}
	for key, flag := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", flag, err)
		}
	}
	return nil
}
