package agent

import (
	"context"

	"github.com/qaloop-dev/qaloop/internal/scenario"
)

// DecisionMaker is the supervisor's view of the planner. Implementations are
// stateless per call and safely reusable across scenarios.
type DecisionMaker interface {
	Decide(ctx context.Context, scn scenario.Scenario, obs Observation, history []StepRecord, step, maxSteps int) (ActionIntent, error)
	JudgeAssertion(ctx context.Context, assertion string, finalObs Observation) (AssertionJudgment, error)
}

// ActionPerformer is the supervisor's view of the executor. A performer owns
// the device session exclusively for the duration of a scenario.
type ActionPerformer interface {
	Perform(ctx context.Context, intent ActionIntent) (ActionOutcome, error)
	InitialObservation(ctx context.Context) (Observation, error)
}

// ArtifactSink receives per-step and final screenshots when artifact saving
// is enabled. Failures to persist are logged, never fatal to a scenario.
type ArtifactSink interface {
	SaveStepScreenshot(scenarioName string, step int, png []byte) error
	SaveFinalScreenshot(scenarioName string, png []byte) error
}

// NopArtifactSink discards all artifacts.
type NopArtifactSink struct{}

func (NopArtifactSink) SaveStepScreenshot(string, int, []byte) error { return nil }
func (NopArtifactSink) SaveFinalScreenshot(string, []byte) error    { return nil }
