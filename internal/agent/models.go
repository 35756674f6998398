// Package agent contains the perception-decide-act loop that drives a single
// scenario on a device: the Planner that turns screenshots into action
// intents, the Executor that performs them, and the Supervisor state machine
// that sequences both and assigns the final verdict.
package agent

import (
	"fmt"
	"time"

	"github.com/qaloop-dev/qaloop/internal/scenario"
)

// ActionKind enumerates every intent the planner can produce. The set is
// closed so the supervisor's dispatch can be checked exhaustively.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionTap
	ActionTapText
	ActionTypeText
	ActionSwipe
	ActionLongPress
	ActionPressBack
	ActionPressHome
	ActionPressEnter
	ActionWait
	// ActionDone and ActionCannotProceed are terminal signals, not device
	// actions. The executor never sees them.
	ActionDone
	ActionCannotProceed
)

var actionKindNames = map[ActionKind]string{
	ActionUnknown:       "unknown",
	ActionTap:           "tap",
	ActionTapText:       "tap_text",
	ActionTypeText:      "type_text",
	ActionSwipe:         "swipe",
	ActionLongPress:     "long_press",
	ActionPressBack:     "press_back",
	ActionPressHome:     "press_home",
	ActionPressEnter:    "press_enter",
	ActionWait:          "wait",
	ActionDone:          "test_complete",
	ActionCannotProceed: "test_failed",
}

func (k ActionKind) String() string {
	if name, ok := actionKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// ActionIntent is one decision from the planner. Only the payload fields
// matching the Kind are meaningful.
type ActionIntent struct {
	Kind ActionKind

	// Tap / LongPress target.
	X int
	Y int

	// TapText target label.
	Label string

	// TypeText payload.
	Text string

	// Swipe deltas in pixels, applied around the screen center. Negative DY
	// moves the finger up, which scrolls content further down into view.
	DX int
	DY int

	// Wait duration.
	Seconds float64

	// CannotProceed explanation.
	Reason string

	// Reasoning is the model's explanation for the decision, carried along
	// for the trace and the next prompt.
	Reasoning string
}

// Terminal reports whether this intent ends the scenario loop.
func (a ActionIntent) Terminal() bool {
	return a.Kind == ActionDone || a.Kind == ActionCannotProceed
}

// Describe renders the intent compactly for logs and step traces.
func (a ActionIntent) Describe() string {
	switch a.Kind {
	case ActionTap:
		return fmt.Sprintf("tap(%d, %d)", a.X, a.Y)
	case ActionTapText:
		return fmt.Sprintf("tap_text(%q)", a.Label)
	case ActionTypeText:
		return fmt.Sprintf("type_text(%q)", a.Text)
	case ActionSwipe:
		return fmt.Sprintf("swipe(dx=%d, dy=%d)", a.DX, a.DY)
	case ActionLongPress:
		return fmt.Sprintf("long_press(%d, %d)", a.X, a.Y)
	case ActionWait:
		return fmt.Sprintf("wait(%.1fs)", a.Seconds)
	case ActionCannotProceed:
		return fmt.Sprintf("test_failed: %s", a.Reason)
	default:
		return a.Kind.String()
	}
}

// Observation is one screen capture. The supervisor keeps only the most
// recent one; the planner always decides against the latest screen.
type Observation struct {
	PNG     []byte
	TakenAt time.Time
}

// Empty reports whether the observation carries no image data.
func (o Observation) Empty() bool {
	return len(o.PNG) == 0
}

// ActionOutcome is the executor's report for one performed intent. Succeeded
// reflects device-level completion only; whether the action had the intended
// on-screen effect is judged by the planner on the next cycle.
type ActionOutcome struct {
	Succeeded   bool
	Observation Observation
	ErrorDetail string
}

// StepRecord is one entry of a scenario's append-only trace.
type StepRecord struct {
	Index       int
	Intent      ActionIntent
	Outcome     ActionOutcome
	RetriesUsed int
}

// LoopState tracks the supervisor state machine for one scenario.
type LoopState int

const (
	StateInit LoopState = iota
	StateRunning
	StateDone
	StateCannotProceed
	StateExhausted
	StateEvaluated
)

func (s LoopState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateCannotProceed:
		return "cannot_proceed"
	case StateExhausted:
		return "exhausted"
	case StateEvaluated:
		return "evaluated"
	default:
		return fmt.Sprintf("LoopState(%d)", int(s))
	}
}

// VerdictKind classifies the final outcome of a scenario run.
type VerdictKind int

const (
	// VerdictPassed: the loop reached completion and the assertion held.
	VerdictPassed VerdictKind = iota
	// VerdictFailedStep: the scenario could not be driven to completion.
	// This signals flaky automation or an unreachable goal, not a product
	// defect, and is never produced from an assertion check.
	VerdictFailedStep
	// VerdictFailedAssertion: the scenario completed but the final screen
	// violated the assertion. This is the signal QA engineers act on.
	VerdictFailedAssertion
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictPassed:
		return "passed"
	case VerdictFailedStep:
		return "failed_step"
	case VerdictFailedAssertion:
		return "failed_assertion"
	default:
		return fmt.Sprintf("VerdictKind(%d)", int(k))
	}
}

// Verdict is the single final outcome of a scenario run. Exactly one is
// produced per run, by the supervisor, at loop termination.
type Verdict struct {
	Kind VerdictKind

	// Reason explains a FailedStep verdict.
	Reason string

	// Observed and Expected describe a FailedAssertion verdict.
	Observed string
	Expected string
}

// PassedVerdict returns the verdict for a completed scenario whose assertion held.
func PassedVerdict() Verdict {
	return Verdict{Kind: VerdictPassed}
}

// StepFailure returns the verdict for a scenario that never reached a state
// where its assertion could be judged.
func StepFailure(reason string) Verdict {
	return Verdict{Kind: VerdictFailedStep, Reason: reason}
}

// AssertionFailure returns the verdict for a completed scenario whose final
// state violated the assertion.
func AssertionFailure(observed, expected string) Verdict {
	return Verdict{Kind: VerdictFailedAssertion, Observed: observed, Expected: expected}
}

// Summary renders the verdict for console output and reports.
func (v Verdict) Summary() string {
	switch v.Kind {
	case VerdictFailedStep:
		return fmt.Sprintf("failed_step: %s", v.Reason)
	case VerdictFailedAssertion:
		return fmt.Sprintf("failed_assertion: observed %q, expected %q", v.Observed, v.Expected)
	default:
		return v.Kind.String()
	}
}

// ScenarioResult bundles everything a single scenario run produced.
type ScenarioResult struct {
	Scenario  scenario.Scenario
	RunID     string
	State     LoopState
	Verdict   Verdict
	Steps     []StepRecord
	StartedAt time.Time
	Duration  time.Duration

	// Correct reports whether the verdict matches the scenario author's
	// expectation: expected-to-pass scenarios must pass, expected-to-fail
	// scenarios must fail through the agent's own judgment (a reported
	// inability to proceed or a violated assertion), not through step
	// exhaustion or infrastructure trouble.
	Correct bool
}

// SuiteResult aggregates scenario results in execution order.
type SuiteResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []ScenarioResult

	byName map[string]int
}

// NewSuiteResult starts an empty suite aggregate.
func NewSuiteResult(runID string) *SuiteResult {
	return &SuiteResult{
		RunID:     runID,
		StartedAt: time.Now(),
		byName:    make(map[string]int),
	}
}

// Append records a scenario result. Insertion order is execution order.
func (s *SuiteResult) Append(r ScenarioResult) {
	s.byName[r.Scenario.Name] = len(s.Results)
	s.Results = append(s.Results, r)
}

// Get looks up a result by scenario name.
func (s *SuiteResult) Get(name string) (ScenarioResult, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return ScenarioResult{}, false
	}
	return s.Results[idx], true
}

// Len reports how many scenarios have results.
func (s *SuiteResult) Len() int {
	return len(s.Results)
}

// Passed counts scenarios with a passing verdict.
func (s *SuiteResult) Passed() int {
	return s.countVerdict(VerdictPassed)
}

// FailedSteps counts scenarios that could not be driven to completion.
func (s *SuiteResult) FailedSteps() int {
	return s.countVerdict(VerdictFailedStep)
}

// FailedAssertions counts completed scenarios whose assertion was violated.
func (s *SuiteResult) FailedAssertions() int {
	return s.countVerdict(VerdictFailedAssertion)
}

// CorrectCount counts scenarios whose verdict matched the authored expectation.
func (s *SuiteResult) CorrectCount() int {
	n := 0
	for _, r := range s.Results {
		if r.Correct {
			n++
		}
	}
	return n
}

func (s *SuiteResult) countVerdict(kind VerdictKind) int {
	n := 0
	for _, r := range s.Results {
		if r.Verdict.Kind == kind {
			n++
		}
	}
	return n
}

// Duration reports the wall-clock span of the suite run.
func (s *SuiteResult) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// verdictMatchesExpectation implements the Correct flag of ScenarioResult.
func verdictMatchesExpectation(v Verdict, state LoopState, shouldPass bool) bool {
	if shouldPass {
		return v.Kind == VerdictPassed
	}
	switch v.Kind {
	case VerdictFailedAssertion:
		return true
	case VerdictFailedStep:
		// Only an agent-reported inability counts: the scenario author
		// expected the agent to notice the missing or wrong element, not to
		// run out of steps or hit infrastructure trouble.
		return state == StateCannotProceed
	default:
		return false
	}
}
