// File: internal/agent/supervisor.go
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qaloop-dev/qaloop/internal/config"
	"github.com/qaloop-dev/qaloop/internal/scenario"
)

// Allows for mocking in tests.
var uuidNewString = uuid.NewString

// Supervisor drives a single scenario through its state machine: capture an
// initial observation, then alternate planner decisions and executor actions
// until a terminal intent, step exhaustion, or unrecoverable infrastructure
// trouble, and finally assign exactly one verdict.
//
// The central distinction it maintains: a scenario that could not be driven
// to completion (failed step) is never reported as an assertion failure, and
// a completed scenario is never downgraded to a step failure by the verdict
// of its assertion check.
type Supervisor struct {
	planner   DecisionMaker
	executor  ActionPerformer
	cfg       config.RunConfig
	artifacts ArtifactSink
	logger    *zap.Logger

	// backoffFactory builds the wait policy between decision and action
	// retries. Replaceable in tests to avoid real delays.
	backoffFactory func() backoff.BackOff
}

// NewSupervisor assembles a supervisor. A nil artifact sink disables
// screenshot persistence.
func NewSupervisor(planner DecisionMaker, executor ActionPerformer, cfg config.RunConfig, artifacts ArtifactSink, logger *zap.Logger) *Supervisor {
	if artifacts == nil {
		artifacts = NopArtifactSink{}
	}
	return &Supervisor{
		planner:   planner,
		executor:  executor,
		cfg:       cfg,
		artifacts: artifacts,
		logger:    logger.Named("supervisor"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 1 * time.Second
			b.MaxInterval = 15 * time.Second
			return b
		},
	}
}

// RunScenario executes one scenario to its verdict. It always returns a
// result; per-step faults are absorbed and classified here, never propagated.
func (s *Supervisor) RunScenario(ctx context.Context, scn scenario.Scenario) ScenarioResult {
	runID := uuidNewString()
	started := time.Now()
	maxSteps := scn.MaxSteps
	if maxSteps <= 0 {
		maxSteps = s.cfg.MaxSteps
	}

	log := s.logger.With(zap.String("scenario", scn.Name), zap.String("run_id", runID))
	log.Info("Scenario started",
		zap.Bool("should_pass", scn.ShouldPass),
		zap.Int("max_steps", maxSteps))

	var steps []StepRecord

	obs, err := s.initialObservation(ctx)
	if err != nil {
		log.Error("Could not capture initial observation", zap.Error(err))
		verdict := StepFailure(fmt.Sprintf("initial observation failed: %s", err))
		return s.finish(log, scn, runID, StateCannotProceed, verdict, steps, started)
	}

	state := StateRunning
	var reason string

loop:
	for step := 1; step <= maxSteps; step++ {
		if ctx.Err() != nil {
			state = StateCannotProceed
			reason = fmt.Sprintf("run cancelled: %s", ctx.Err())
			break
		}

		intent, decisionRetries, err := s.decideWithRetry(ctx, scn, obs, steps, step, maxSteps)
		if err != nil {
			log.Warn("Decision unavailable after retries", zap.Int("step", step), zap.Error(err))
			state = StateCannotProceed
			reason = "decision unavailable"
			break
		}

		switch intent.Kind {
		case ActionDone:
			// Terminal signals are recorded but consume no device action and
			// no further decision is requested.
			steps = append(steps, StepRecord{
				Index:       step,
				Intent:      intent,
				Outcome:     ActionOutcome{Succeeded: true, Observation: obs},
				RetriesUsed: decisionRetries,
			})
			log.Info("Scenario reports completion", zap.Int("step", step), zap.String("reasoning", intent.Reasoning))
			state = StateDone
			break loop
		case ActionCannotProceed:
			steps = append(steps, StepRecord{
				Index:       step,
				Intent:      intent,
				Outcome:     ActionOutcome{Succeeded: true, Observation: obs},
				RetriesUsed: decisionRetries,
			})
			log.Info("Scenario reports inability to proceed", zap.Int("step", step), zap.String("reason", intent.Reason))
			state = StateCannotProceed
			reason = intent.Reason
			break loop
		}

		outcome, actionRetries := s.performWithRetry(ctx, log, intent)
		steps = append(steps, StepRecord{
			Index:       step,
			Intent:      intent,
			Outcome:     outcome,
			RetriesUsed: decisionRetries + actionRetries,
		})
		s.saveStepArtifact(log, scn.Name, step, outcome.Observation)

		if !outcome.Succeeded {
			log.Warn("Action failed after retries",
				zap.Int("step", step),
				zap.String("intent", intent.Describe()),
				zap.String("detail", outcome.ErrorDetail))
			state = StateCannotProceed
			reason = fmt.Sprintf("action execution failed: %s", outcome.ErrorDetail)
			break
		}

		// The observation driving decision N+1 is always the outcome of
		// step N.
		obs = outcome.Observation
	}

	if state == StateRunning {
		log.Warn("Step budget exhausted without conclusion", zap.Int("max_steps", maxSteps))
		state = StateExhausted
		reason = fmt.Sprintf("no conclusion within %d steps", maxSteps)
	}

	verdict := s.evaluate(ctx, log, scn, state, reason, obs)
	return s.finish(log, scn, runID, state, verdict, steps, started)
}

// evaluate computes the verdict from the terminal state. Scenarios that never
// completed get a step failure and are never judged against the assertion.
func (s *Supervisor) evaluate(ctx context.Context, log *zap.Logger, scn scenario.Scenario, state LoopState, reason string, finalObs Observation) Verdict {
	switch state {
	case StateDone:
		s.saveFinalArtifact(log, scn.Name, finalObs)
		judgment, err := s.judgeWithRetry(ctx, scn.Assertion, finalObs)
		if err != nil {
			log.Warn("Assertion judgment unavailable after retries", zap.Error(err))
			return StepFailure(fmt.Sprintf("assertion judgment unavailable: %s", err))
		}
		if judgment.Holds {
			return PassedVerdict()
		}
		return AssertionFailure(judgment.Observed, judgment.Expected)
	case StateCannotProceed, StateExhausted:
		return StepFailure(reason)
	default:
		return StepFailure(fmt.Sprintf("scenario ended in unexpected state %s", state))
	}
}

func (s *Supervisor) finish(log *zap.Logger, scn scenario.Scenario, runID string, state LoopState, verdict Verdict, steps []StepRecord, started time.Time) ScenarioResult {
	result := ScenarioResult{
		Scenario:  scn,
		RunID:     runID,
		State:     state,
		Verdict:   verdict,
		Steps:     steps,
		StartedAt: started,
		Duration:  time.Since(started),
		Correct:   verdictMatchesExpectation(verdict, state, scn.ShouldPass),
	}
	log.Info("Scenario evaluated",
		zap.String("terminal_state", state.String()),
		zap.String("verdict", verdict.Summary()),
		zap.Bool("matches_expectation", result.Correct),
		zap.Int("steps", len(steps)),
		zap.Duration("duration", result.Duration))
	return result
}

func (s *Supervisor) initialObservation(ctx context.Context) (Observation, error) {
	var obs Observation
	op := func() error {
		var err error
		obs, err = s.executor.InitialObservation(ctx)
		return err
	}
	b := backoff.WithMaxRetries(s.backoffFactory(), uint64(s.cfg.ActionRetries))
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return Observation{}, err
	}
	return obs, nil
}

// decideWithRetry asks the planner, retrying transient failures up to the
// configured bound. The retry count returned is the number of extra attempts.
func (s *Supervisor) decideWithRetry(ctx context.Context, scn scenario.Scenario, obs Observation, history []StepRecord, step, maxSteps int) (ActionIntent, int, error) {
	var intent ActionIntent
	attempts := 0
	op := func() error {
		attempts++
		var err error
		intent, err = s.planner.Decide(ctx, scn, obs, history, step, maxSteps)
		return err
	}
	b := backoff.WithMaxRetries(s.backoffFactory(), uint64(s.cfg.DecisionRetries))
	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	return intent, attempts - 1, err
}

// performWithRetry retries the same intent until it succeeds or the bound is
// hit. The returned outcome carries the last failure detail; exhaustion is
// classified by the caller, not returned as an error.
func (s *Supervisor) performWithRetry(ctx context.Context, log *zap.Logger, intent ActionIntent) (ActionOutcome, int) {
	var outcome ActionOutcome
	attempts := 0
	op := func() error {
		attempts++
		var err error
		outcome, err = s.executor.Perform(ctx, intent)
		if err != nil {
			// Cancellation or executor misuse; another attempt cannot help.
			outcome = ActionOutcome{Succeeded: false, ErrorDetail: err.Error()}
			return backoff.Permanent(err)
		}
		if !outcome.Succeeded {
			log.Debug("Action attempt failed",
				zap.Int("attempt", attempts),
				zap.String("intent", intent.Describe()),
				zap.String("detail", outcome.ErrorDetail))
			return fmt.Errorf("action failed: %s", outcome.ErrorDetail)
		}
		return nil
	}
	b := backoff.WithMaxRetries(s.backoffFactory(), uint64(s.cfg.ActionRetries))
	// The outcome already records the failure; the error adds nothing.
	_ = backoff.Retry(op, backoff.WithContext(b, ctx))
	return outcome, attempts - 1
}

func (s *Supervisor) judgeWithRetry(ctx context.Context, assertion string, finalObs Observation) (AssertionJudgment, error) {
	var judgment AssertionJudgment
	op := func() error {
		var err error
		judgment, err = s.planner.JudgeAssertion(ctx, assertion, finalObs)
		return err
	}
	b := backoff.WithMaxRetries(s.backoffFactory(), uint64(s.cfg.DecisionRetries))
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return AssertionJudgment{}, err
	}
	return judgment, nil
}

func (s *Supervisor) saveStepArtifact(log *zap.Logger, name string, step int, obs Observation) {
	if obs.Empty() {
		return
	}
	if err := s.artifacts.SaveStepScreenshot(name, step, obs.PNG); err != nil {
		log.Warn("Failed to save step screenshot", zap.Int("step", step), zap.Error(err))
	}
}

func (s *Supervisor) saveFinalArtifact(log *zap.Logger, name string, obs Observation) {
	if obs.Empty() {
		return
	}
	if err := s.artifacts.SaveFinalScreenshot(name, obs.PNG); err != nil {
		log.Warn("Failed to save final screenshot", zap.Error(err))
	}
}
