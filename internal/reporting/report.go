// File: internal/reporting/report.go
package reporting

import (
	"time"

	json "github.com/json-iterator/go"

	"github.com/qaloop-dev/qaloop/internal/agent"
)

// SuiteReport is the serialized form of a suite run.
type SuiteReport struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	DurationMS int64            `json:"duration_ms"`
	Totals     ReportTotals     `json:"totals"`
	Scenarios  []ScenarioReport `json:"scenarios"`
}

// ReportTotals summarizes the suite counters.
type ReportTotals struct {
	Scenarios           int `json:"scenarios"`
	Passed              int `json:"passed"`
	FailedSteps         int `json:"failed_steps"`
	FailedAssertions    int `json:"failed_assertions"`
	MatchingExpectation int `json:"matching_expectation"`
}

// ScenarioReport is one scenario's outcome with its full step trace.
type ScenarioReport struct {
	Name       string       `json:"name"`
	Goal       string       `json:"goal"`
	Assertion  string       `json:"assertion"`
	ShouldPass bool         `json:"should_pass"`
	Verdict    string       `json:"verdict"`
	Reason     string       `json:"reason,omitempty"`
	Observed   string       `json:"observed,omitempty"`
	Expected   string       `json:"expected,omitempty"`
	State      string       `json:"terminal_state"`
	Correct    bool         `json:"matches_expectation"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMS int64        `json:"duration_ms"`
	Steps      []StepReport `json:"steps"`
}

// StepReport is one trace entry. Screenshots are referenced by the artifact
// layout, not embedded.
type StepReport struct {
	Index       int    `json:"index"`
	Action      string `json:"action"`
	Reasoning   string `json:"reasoning,omitempty"`
	Succeeded   bool   `json:"succeeded"`
	ErrorDetail string `json:"error_detail,omitempty"`
	Retries     int    `json:"retries"`
}

// ToJSON serializes the report.
func (r *SuiteReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// buildSuiteReport maps the in-memory aggregate to its serialized form.
func buildSuiteReport(suite *agent.SuiteResult) *SuiteReport {
	report := &SuiteReport{
		RunID:      suite.RunID,
		StartedAt:  suite.StartedAt,
		FinishedAt: suite.FinishedAt,
		DurationMS: suite.Duration().Milliseconds(),
		Totals: ReportTotals{
			Scenarios:           suite.Len(),
			Passed:              suite.Passed(),
			FailedSteps:         suite.FailedSteps(),
			FailedAssertions:    suite.FailedAssertions(),
			MatchingExpectation: suite.CorrectCount(),
		},
		Scenarios: make([]ScenarioReport, 0, suite.Len()),
	}

	for _, res := range suite.Results {
		sr := ScenarioReport{
			Name:       res.Scenario.Name,
			Goal:       res.Scenario.Goal,
			Assertion:  res.Scenario.Assertion,
			ShouldPass: res.Scenario.ShouldPass,
			Verdict:    res.Verdict.Kind.String(),
			Reason:     res.Verdict.Reason,
			Observed:   res.Verdict.Observed,
			Expected:   res.Verdict.Expected,
			State:      res.State.String(),
			Correct:    res.Correct,
			StartedAt:  res.StartedAt,
			DurationMS: res.Duration.Milliseconds(),
			Steps:      make([]StepReport, 0, len(res.Steps)),
		}
		for _, step := range res.Steps {
			sr.Steps = append(sr.Steps, StepReport{
				Index:       step.Index,
				Action:      step.Intent.Describe(),
				Reasoning:   step.Intent.Reasoning,
				Succeeded:   step.Outcome.Succeeded,
				ErrorDetail: step.Outcome.ErrorDetail,
				Retries:     step.RetriesUsed,
			})
		}
		report.Scenarios = append(report.Scenarios, sr)
	}
	return report
}
