// File: internal/orchestrator/orchestrator.go
// Description: Runs a suite of scenarios against one device session. It is
// injected with fully configured components via interfaces, making it
// decoupled and testable.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qaloop-dev/qaloop/api/schemas"
	"github.com/qaloop-dev/qaloop/internal/agent"
	"github.com/qaloop-dev/qaloop/internal/config"
	"github.com/qaloop-dev/qaloop/internal/scenario"
)

// ErrNoScenarios is returned when a run is requested with nothing to run.
var ErrNoScenarios = errors.New("no scenarios to run")

// ScenarioRunner executes one scenario to its verdict. Implemented by
// agent.Supervisor.
type ScenarioRunner interface {
	RunScenario(ctx context.Context, scn scenario.Scenario) agent.ScenarioResult
}

// SuiteSink receives the completed suite for reporting.
type SuiteSink interface {
	HandleSuite(result *agent.SuiteResult) error
}

// RunStore persists completed suites for later inspection.
type RunStore interface {
	SaveSuite(ctx context.Context, result *agent.SuiteResult) error
}

// Orchestrator owns the suite-level flow: prechecks, per-scenario app reset,
// strictly sequential execution, and handoff of the aggregate to reporting
// and history. One orchestrator drives one device session; scenarios never
// run concurrently because the device exposes a single interaction surface.
type Orchestrator struct {
	cfg    *config.Config
	logger *zap.Logger
	device schemas.Device
	runner ScenarioRunner
	sink   SuiteSink
	store  RunStore
}

// New creates an Orchestrator. The sink and store may be nil to disable
// reporting handoff and history persistence respectively.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	device schemas.Device,
	runner ScenarioRunner,
	sink SuiteSink,
	store RunStore,
) (*Orchestrator, error) {
	if cfg == nil || logger == nil || device == nil || runner == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logger.Named("orchestrator"),
		device: device,
		runner: runner,
		sink:   sink,
		store:  store,
	}, nil
}

// Run executes the given scenarios in order and returns the aggregate. An
// error is returned only for faults that prevent the run from starting
// (empty selection, unreachable device, app not installed) or for
// cancellation; scenario failures are verdicts, not errors.
func (o *Orchestrator) Run(ctx context.Context, scenarios []scenario.Scenario) (*agent.SuiteResult, error) {
	if len(scenarios) == 0 {
		return nil, ErrNoScenarios
	}

	if err := o.precheck(ctx); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	o.logger.Info("Suite started",
		zap.String("run_id", runID),
		zap.Int("scenarios", len(scenarios)),
		zap.String("app_package", o.cfg.Device.AppPackage))

	stopLogcat, err := o.startLogcatCapture(ctx, runID)
	if err != nil {
		// Logcat is an observability aid; its absence never blocks a run.
		o.logger.Warn("Logcat capture unavailable", zap.Error(err))
		stopLogcat = func() {}
	}
	defer stopLogcat()

	suite := agent.NewSuiteResult(runID)
	for i, scn := range scenarios {
		if ctx.Err() != nil {
			o.logger.Warn("Run cancelled",
				zap.Int("completed", suite.Len()),
				zap.Int("remaining", len(scenarios)-i))
			suite.FinishedAt = time.Now()
			o.handOff(ctx, suite)
			return suite, ctx.Err()
		}

		o.logger.Info("Running scenario",
			zap.Int("position", i+1),
			zap.Int("total", len(scenarios)),
			zap.String("scenario", scn.Name))

		if err := o.resetApp(ctx); err != nil {
			o.logger.Warn("App reset failed; running against current device state",
				zap.String("scenario", scn.Name),
				zap.Error(err))
		}

		suite.Append(o.runner.RunScenario(ctx, scn))

		if i < len(scenarios)-1 {
			o.pause(ctx, o.cfg.Run.ActionDelay)
		}
	}
	suite.FinishedAt = time.Now()

	o.logger.Info("Suite finished",
		zap.String("run_id", runID),
		zap.Int("passed", suite.Passed()),
		zap.Int("failed_steps", suite.FailedSteps()),
		zap.Int("failed_assertions", suite.FailedAssertions()),
		zap.Int("matching_expectation", suite.CorrectCount()),
		zap.Duration("duration", suite.Duration()))

	o.handOff(ctx, suite)
	return suite, nil
}

// precheck verifies the run can start at all: the device session answers and
// the app under test is installed. Failures here are fatal to the whole run.
func (o *Orchestrator) precheck(ctx context.Context) error {
	info, err := o.device.Info(ctx)
	if err != nil {
		return fmt.Errorf("device session unreachable: %w", err)
	}
	o.logger.Info("Device ready",
		zap.String("serial", info.Serial),
		zap.String("model", info.Model),
		zap.String("android", info.AndroidVersion),
		zap.Bool("emulator", info.Emulator))

	pkg := o.cfg.Device.AppPackage
	installed, err := o.device.IsInstalled(ctx, pkg)
	if err != nil {
		return fmt.Errorf("could not check app installation: %w", err)
	}
	if !installed {
		return fmt.Errorf("app %q is not installed on device %s", pkg, info.Serial)
	}
	return nil
}

// resetApp puts the device into a known state before a scenario: home
// screen, app force-stopped, app freshly launched and settled.
func (o *Orchestrator) resetApp(ctx context.Context) error {
	pkg := o.cfg.Device.AppPackage

	if err := o.device.PressHome(ctx); err != nil {
		return fmt.Errorf("press home: %w", err)
	}
	o.pause(ctx, o.cfg.Run.ActionDelay)

	// A stop failure usually means the app was not running; not worth
	// aborting the reset over.
	if err := o.device.StopApp(ctx, pkg); err != nil {
		o.logger.Debug("Force-stop failed", zap.String("package", pkg), zap.Error(err))
	}
	o.pause(ctx, 500*time.Millisecond)

	if err := o.device.LaunchApp(ctx, pkg); err != nil {
		return fmt.Errorf("launch %s: %w", pkg, err)
	}
	o.pause(ctx, o.cfg.Run.SettleDelay)
	return nil
}

// startLogcatCapture streams device logs into the report directory for the
// duration of the run. The returned stop function cancels the stream and
// waits for the file to be flushed.
func (o *Orchestrator) startLogcatCapture(ctx context.Context, runID string) (func(), error) {
	if !o.cfg.Report.Logcat {
		return func() {}, nil
	}

	if err := os.MkdirAll(o.cfg.Report.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(o.cfg.Report.Dir, fmt.Sprintf("logcat_%s.txt", runID))
	f, err := os.Create(path) //#nosec G304 -- path is built from the configured report dir
	if err != nil {
		return nil, fmt.Errorf("create logcat file: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(streamCtx)
	g.Go(func() error {
		return o.device.StreamLogcat(gctx, f)
	})
	o.logger.Info("Logcat capture started", zap.String("path", path))

	return func() {
		cancel()
		if err := g.Wait(); err != nil {
			o.logger.Warn("Logcat stream ended with error", zap.Error(err))
		}
		if err := f.Close(); err != nil {
			o.logger.Warn("Failed to close logcat file", zap.Error(err))
		}
	}, nil
}

// handOff delivers the suite to history and reporting. Both are best-effort:
// the verdicts already exist, and losing a sink must not turn a completed run
// into a failure.
func (o *Orchestrator) handOff(ctx context.Context, suite *agent.SuiteResult) {
	if o.store != nil {
		if err := o.store.SaveSuite(ctx, suite); err != nil {
			o.logger.Error("Failed to persist run history", zap.Error(err))
		}
	}
	if o.sink != nil {
		if err := o.sink.HandleSuite(suite); err != nil {
			o.logger.Error("Failed to emit suite report", zap.Error(err))
		}
	}
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
