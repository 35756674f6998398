package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qaloop-dev/qaloop/api/schemas"
	"github.com/qaloop-dev/qaloop/internal/agent"
	"github.com/qaloop-dev/qaloop/internal/config"
	"github.com/qaloop-dev/qaloop/internal/device"
	"github.com/qaloop-dev/qaloop/internal/history"
	"github.com/qaloop-dev/qaloop/internal/llmclient"
	"github.com/qaloop-dev/qaloop/internal/observability"
	"github.com/qaloop-dev/qaloop/internal/orchestrator"
	"github.com/qaloop-dev/qaloop/internal/reporting"
	"github.com/qaloop-dev/qaloop/internal/scenario"
)

// newAllCmd runs every registered scenario.
func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run every registered scenario against the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			return runScenarios(cmd.Context(), registry.All())
		},
	}
}

// newDemoCmd runs the curated demo subset.
func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the demo scenario set (two expected passes, two expected failures)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			return runScenarios(cmd.Context(), registry.Demo())
		},
	}
}

// newTestCmd runs one scenario by name.
func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <scenario>",
		Short: "Run a single scenario by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			scn, err := registry.Get(args[0])
			if err != nil {
				return err
			}
			return runScenarios(cmd.Context(), []scenario.Scenario{scn})
		},
	}
}

// loadRegistry assembles the scenario registry: the built-in set, plus any
// extra scenarios from run.scenario_file.
func loadRegistry(cfg *config.Config) (*scenario.Registry, error) {
	builtin := scenario.Builtin()
	if cfg.Run.ScenarioFile == "" {
		return builtin, nil
	}

	extra, err := scenario.LoadFile(cfg.Run.ScenarioFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario file: %w", err)
	}
	merged, err := scenario.NewRegistry(append(builtin.All(), extra.All()...))
	if err != nil {
		return nil, fmt.Errorf("scenario file conflicts with built-in set: %w", err)
	}
	return merged, nil
}

// runScenarios initializes the full component stack, executes the given
// scenarios sequentially, and tears everything down. Scenario failures are
// verdicts in the report, not errors; only faults that prevent the suite from
// starting surface as a non-nil return.
func runScenarios(ctx context.Context, scenarios []scenario.Scenario) error {
	logger := observability.GetLogger()

	components, err := initializeRunComponents(ctx, cfg, logger)
	if err != nil {
		if components != nil {
			components.Shutdown()
		}
		return err
	}
	defer components.Shutdown()

	_, err = components.Orchestrator.Run(ctx, scenarios)
	return err
}

// runComponents holds the initialized services for one invocation.
type runComponents struct {
	Device       schemas.Device
	LLM          schemas.LLMClient
	History      *history.Store
	Orchestrator *orchestrator.Orchestrator

	logger *zap.Logger
}

// Shutdown releases held resources in reverse initialization order.
func (rc *runComponents) Shutdown() {
	if rc.History != nil {
		if err := rc.History.Close(); err != nil {
			rc.logger.Warn("Error closing history database", zap.Error(err))
		}
	}
	if rc.LLM != nil {
		if err := rc.LLM.Close(); err != nil {
			rc.logger.Warn("Error closing reasoning client", zap.Error(err))
		}
	}
}

// initializeRunComponents handles dependency injection for a suite run.
func initializeRunComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runComponents, error) {
	components := &runComponents{logger: logger}

	// 1. Device session.
	dev, err := device.NewAndroid(ctx, cfg.Device, logger)
	if err != nil {
		return components, fmt.Errorf("failed to initialize device session: %w", err)
	}
	components.Device = dev

	// 2. Reasoning client.
	llm, err := llmclient.NewClient(cfg.LLM, logger)
	if err != nil {
		return components, fmt.Errorf("failed to initialize reasoning client: %w", err)
	}
	components.LLM = llm

	// 3. Agent loop. Screen geometry sharpens the planner's coordinate
	// suggestions but is not required for it to operate.
	width, height, err := dev.ScreenSize(ctx)
	if err != nil {
		logger.Warn("Could not determine screen size, planner runs without geometry hints", zap.Error(err))
		width, height = 0, 0
	}
	planner := agent.NewPlanner(llm, agent.PlannerConfig{
		Temperature:  cfg.LLM.Temperature,
		ScreenWidth:  width,
		ScreenHeight: height,
	}, logger)
	executor := agent.NewExecutor(dev, cfg.Run.SettleDelay, logger)
	reporter := reporting.New(cfg.Report, os.Stdout, logger)
	supervisor := agent.NewSupervisor(planner, executor, cfg.Run, reporter, logger)

	// 4. History store. Failure to open it degrades the run rather than
	// aborting it; verdicts still reach the console and the JSON report.
	var store orchestrator.RunStore
	if cfg.History.Enabled {
		hist, err := history.Open(cfg.History.Path, logger)
		if err != nil {
			logger.Warn("History database unavailable, run will not be recorded", zap.Error(err))
		} else {
			components.History = hist
			store = hist
		}
	}

	// 5. Orchestrator.
	orch, err := orchestrator.New(cfg, logger, dev, supervisor, reporter, store)
	if err != nil {
		return components, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	components.Orchestrator = orch

	return components, nil
}
