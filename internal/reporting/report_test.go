// File: internal/reporting/report_test.go
package reporting

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaloop-dev/qaloop/internal/agent"
	"github.com/qaloop-dev/qaloop/internal/scenario"
)

// buildSuite assembles a three-scenario suite covering every verdict kind,
// with a step trace on the passing one.
func buildSuite(started time.Time) *agent.SuiteResult {
	suite := agent.NewSuiteResult("run-a")
	suite.StartedAt = started
	suite.FinishedAt = started.Add(3 * time.Minute)

	suite.Append(agent.ScenarioResult{
		Scenario: scenario.Scenario{
			Name:       "create_note",
			Goal:       "Create a note",
			Assertion:  "A note exists",
			ShouldPass: true,
		},
		State:   agent.StateDone,
		Verdict: agent.PassedVerdict(),
		Steps: []agent.StepRecord{
			{
				Index:   1,
				Intent:  agent.ActionIntent{Kind: agent.ActionTap, X: 100, Y: 200, Reasoning: "open the note list"},
				Outcome: agent.ActionOutcome{Succeeded: true},
			},
			{
				Index:       2,
				Intent:      agent.ActionIntent{Kind: agent.ActionDone, Reasoning: "note visible"},
				Outcome:     agent.ActionOutcome{Succeeded: true},
				RetriesUsed: 1,
			},
		},
		StartedAt: started,
		Duration:  90 * time.Second,
		Correct:   true,
	})
	suite.Append(agent.ScenarioResult{
		Scenario: scenario.Scenario{Name: "broken_flow", Goal: "g", Assertion: "a", ShouldPass: true},
		State:    agent.StateCannotProceed,
		Verdict:  agent.StepFailure("decision unavailable"),
		Duration: 30 * time.Second,
	})
	suite.Append(agent.ScenarioResult{
		Scenario: scenario.Scenario{Name: "accent_check", Goal: "g", Assertion: "a"},
		State:    agent.StateDone,
		Verdict:  agent.AssertionFailure("accent is purple", "accent is red"),
		Duration: 45 * time.Second,
		Correct:  true,
	})
	return suite
}

func TestBuildSuiteReport(t *testing.T) {
	started := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)
	report := buildSuiteReport(buildSuite(started))

	assert.Equal(t, "run-a", report.RunID)
	assert.Equal(t, int64(180000), report.DurationMS)
	assert.Equal(t, ReportTotals{
		Scenarios:           3,
		Passed:              1,
		FailedSteps:         1,
		FailedAssertions:    1,
		MatchingExpectation: 2,
	}, report.Totals)

	require.Len(t, report.Scenarios, 3)

	first := report.Scenarios[0]
	assert.Equal(t, "create_note", first.Name)
	assert.Equal(t, "passed", first.Verdict)
	assert.Equal(t, "done", first.State)
	assert.True(t, first.Correct)
	assert.Equal(t, int64(90000), first.DurationMS)
	require.Len(t, first.Steps, 2)
	assert.Equal(t, StepReport{
		Index:     1,
		Action:    "tap(100, 200)",
		Reasoning: "open the note list",
		Succeeded: true,
	}, first.Steps[0])
	assert.Equal(t, "test_complete", first.Steps[1].Action)
	assert.Equal(t, 1, first.Steps[1].Retries)

	second := report.Scenarios[1]
	assert.Equal(t, "failed_step", second.Verdict)
	assert.Equal(t, "decision unavailable", second.Reason)
	assert.Equal(t, "cannot_proceed", second.State)
	assert.False(t, second.Correct)

	third := report.Scenarios[2]
	assert.Equal(t, "failed_assertion", third.Verdict)
	assert.Equal(t, "accent is purple", third.Observed)
	assert.Equal(t, "accent is red", third.Expected)
}

func TestSuiteReport_ToJSON(t *testing.T) {
	started := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)
	report := buildSuiteReport(buildSuite(started))

	data, err := report.ToJSON()
	require.NoError(t, err)

	var decoded SuiteReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)
	assert.Equal(t, report.Totals, decoded.Totals)
	require.Len(t, decoded.Scenarios, 3)
	assert.Equal(t, "create_note", decoded.Scenarios[0].Name)

	// Empty failure fields stay out of the document entirely.
	text := string(data)
	assert.Contains(t, text, `"reason": "decision unavailable"`)
	assert.NotContains(t, text, `"error_detail"`)
}

// Pins the exact wire shape of a step entry, since downstream tooling keys on
// these field names.
func TestStepReport_JSONShape(t *testing.T) {
	step := StepReport{
		Index:     3,
		Action:    `tap_text("Create new vault")`,
		Reasoning: "The button matches the goal",
		Succeeded: true,
		Retries:   1,
	}

	raw, err := json.Marshal(step)
	require.NoError(t, err)

	var actual map[string]any
	require.NoError(t, json.Unmarshal(raw, &actual))

	expected := map[string]any{
		"index":     float64(3),
		"action":    `tap_text("Create new vault")`,
		"reasoning": "The button matches the goal",
		"succeeded": true,
		"retries":   float64(1),
	}
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("JSON mismatch. Diff:\n%s", diff)
	}
}
