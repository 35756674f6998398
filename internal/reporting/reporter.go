// -- internal/reporting/reporter.go --
// Package reporting turns a finished suite into human and machine readable
// artifacts: a console summary, a JSON report file, and saved screenshots.
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/qaloop-dev/qaloop/internal/agent"
	"github.com/qaloop-dev/qaloop/internal/config"
)

// Reporter writes suite results to the console and the report directory. It
// also serves as the supervisor's artifact sink for screenshots.
type Reporter struct {
	cfg     config.ReportConfig
	console io.Writer
	logger  *zap.Logger
	colors  bool

	// now is replaceable in tests to pin report file names.
	now func() time.Time
}

var _ agent.ArtifactSink = (*Reporter)(nil)

// New creates a reporter writing its human-readable summary to console.
// Colors are used only when console is a terminal and NO_COLOR is unset.
func New(cfg config.ReportConfig, console io.Writer, logger *zap.Logger) *Reporter {
	return &Reporter{
		cfg:     cfg,
		console: console,
		logger:  logger.Named("reporting"),
		colors:  colorsEnabled(console),
		now:     time.Now,
	}
}

// HandleSuite renders the console summary and writes the JSON report file.
// The verdicts already exist by the time this runs; an error here means the
// report artifact is missing, not that the run failed.
func (r *Reporter) HandleSuite(suite *agent.SuiteResult) error {
	r.printSummary(suite)

	path, err := r.writeJSON(suite)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.console, "\nReport written to %s\n", path)
	r.logger.Info("Suite report written", zap.String("path", path))
	return nil
}

// writeJSON persists the machine-readable report under the report directory.
func (r *Reporter) writeJSON(suite *agent.SuiteResult) (string, error) {
	if err := os.MkdirAll(r.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(r.cfg.Dir, fmt.Sprintf("run_%s.json", r.now().Format("20060102_150405")))

	data, err := buildSuiteReport(suite).ToJSON()
	if err != nil {
		return "", fmt.Errorf("serialize report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// SaveStepScreenshot stores one step capture under
// <dir>/screenshots/<scenario>/step_NNN.png. Disabled by configuration.
func (r *Reporter) SaveStepScreenshot(scenarioName string, step int, png []byte) error {
	if !r.cfg.Screenshots {
		return nil
	}
	return r.saveScreenshot(scenarioName, fmt.Sprintf("step_%03d.png", step), png)
}

// SaveFinalScreenshot stores the capture the assertion was judged against.
func (r *Reporter) SaveFinalScreenshot(scenarioName string, png []byte) error {
	if !r.cfg.Screenshots {
		return nil
	}
	return r.saveScreenshot(scenarioName, "final.png", png)
}

func (r *Reporter) saveScreenshot(scenarioName, filename string, png []byte) error {
	dir := filepath.Join(r.cfg.Dir, "screenshots", sanitizeName(scenarioName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	r.logger.Debug("Screenshot saved", zap.String("path", path))
	return nil
}

// sanitizeName keeps scenario-derived path segments filesystem safe.
func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "scenario"
	}
	return string(out)
}
