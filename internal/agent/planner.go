// File: internal/agent/planner.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/qaloop-dev/qaloop/api/schemas"
	"github.com/qaloop-dev/qaloop/internal/scenario"
)

// ErrDecisionUnavailable marks a planner failure the supervisor may retry:
// the decision service was unreachable or returned something unusable. It is
// never produced for a well-formed decision.
var ErrDecisionUnavailable = errors.New("decision unavailable")

// scrollFallbackDelta is the swipe distance used for scroll shorthand when
// the screen height is unknown.
const scrollFallbackDelta = 600

// PlannerConfig carries the knobs the planner needs beyond its LLM client.
type PlannerConfig struct {
	Temperature  float64
	ScreenWidth  int
	ScreenHeight int
}

// Planner turns (scenario, screenshot, history) into the next ActionIntent by
// querying a multimodal LLM, and separately judges assertions against final
// screenshots. It performs no device interaction itself.
type Planner struct {
	client       schemas.LLMClient
	logger       *zap.Logger
	temperature  float64
	screenHeight int
	systemPrompt string
}

var _ DecisionMaker = (*Planner)(nil)

// NewPlanner builds a planner on top of the given LLM client.
func NewPlanner(client schemas.LLMClient, cfg PlannerConfig, logger *zap.Logger) *Planner {
	return &Planner{
		client:       client,
		logger:       logger.Named("planner"),
		temperature:  cfg.Temperature,
		screenHeight: cfg.ScreenHeight,
		systemPrompt: buildPlannerSystemPrompt(cfg.ScreenWidth, cfg.ScreenHeight),
	}
}

// Decide asks the model for the next action given the latest observation and
// the trace so far. Unreachable service or unparseable replies surface as
// errors wrapping ErrDecisionUnavailable; Decide never fabricates an intent.
func (p *Planner) Decide(ctx context.Context, scn scenario.Scenario, obs Observation, history []StepRecord, step, maxSteps int) (ActionIntent, error) {
	if obs.Empty() {
		return ActionIntent{}, fmt.Errorf("%w: no observation to decide against", ErrDecisionUnavailable)
	}

	userPrompt, err := buildPlannerUserPrompt(scn, history, step, maxSteps)
	if err != nil {
		return ActionIntent{}, fmt.Errorf("%w: %v", ErrDecisionUnavailable, err)
	}

	p.logger.Debug("Requesting decision",
		zap.String("scenario", scn.Name),
		zap.Int("step", step),
		zap.Int("max_steps", maxSteps))

	resp, err := p.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: p.systemPrompt,
		UserPrompt:   userPrompt,
		Images:       [][]byte{obs.PNG},
		Options: schemas.GenerationOptions{
			Temperature:     p.temperature,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return ActionIntent{}, fmt.Errorf("%w: %v", ErrDecisionUnavailable, err)
	}

	intent, err := p.parseDecision(resp)
	if err != nil {
		p.logger.Warn("Unusable planner response",
			zap.String("scenario", scn.Name),
			zap.String("raw_response", resp),
			zap.Error(err))
		return ActionIntent{}, fmt.Errorf("%w: %v", ErrDecisionUnavailable, err)
	}

	p.logger.Info("Decision",
		zap.String("scenario", scn.Name),
		zap.Int("step", step),
		zap.String("intent", intent.Describe()),
		zap.String("reasoning", intent.Reasoning))
	return intent, nil
}

// AssertionJudgment is the verification verdict for one assertion.
type AssertionJudgment struct {
	Holds    bool
	Observed string
	Expected string
}

// JudgeAssertion evaluates the assertion text against the final observation.
// It is only called after a scenario reports completion; it never plans.
func (p *Planner) JudgeAssertion(ctx context.Context, assertion string, finalObs Observation) (AssertionJudgment, error) {
	if finalObs.Empty() {
		return AssertionJudgment{}, fmt.Errorf("%w: no final observation to judge", ErrDecisionUnavailable)
	}

	resp, err := p.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: judgeSystemPrompt,
		UserPrompt:   buildJudgeUserPrompt(assertion),
		Images:       [][]byte{finalObs.PNG},
		Options: schemas.GenerationOptions{
			Temperature:     0,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return AssertionJudgment{}, fmt.Errorf("%w: %v", ErrDecisionUnavailable, err)
	}

	raw, err := extractJSON(resp)
	if err != nil {
		return AssertionJudgment{}, fmt.Errorf("%w: %v", ErrDecisionUnavailable, err)
	}

	var j struct {
		Holds    bool   `json:"holds"`
		Observed string `json:"observed"`
		Expected string `json:"expected"`
	}
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		p.logger.Warn("Unusable judge response", zap.String("raw_response", resp), zap.Error(err))
		return AssertionJudgment{}, fmt.Errorf("%w: failed to parse judgment: %v", ErrDecisionUnavailable, err)
	}
	if j.Expected == "" {
		j.Expected = assertion
	}

	p.logger.Info("Assertion judged",
		zap.Bool("holds", j.Holds),
		zap.String("observed", j.Observed))
	return AssertionJudgment{Holds: j.Holds, Observed: j.Observed, Expected: j.Expected}, nil
}

// decision is the wire shape of a planner reply. It tolerates both delta and
// absolute-coordinate swipes, and both "label" and "text" for tap_text.
type decision struct {
	Action    string  `json:"action"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Label     string  `json:"label"`
	Text      string  `json:"text"`
	DX        int     `json:"dx"`
	DY        int     `json:"dy"`
	StartX    int     `json:"start_x"`
	StartY    int     `json:"start_y"`
	EndX      int     `json:"end_x"`
	EndY      int     `json:"end_y"`
	Seconds   float64 `json:"seconds"`
	Reason    string  `json:"reason"`
	Reasoning string  `json:"reasoning"`
	// Some replies explain themselves under "description" instead.
	Description string `json:"description"`
}

// jsonBlockRegex extracts a JSON object from a markdown code block.
var jsonBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

// extractJSON pulls the JSON object out of a model reply, handling markdown
// fences and surrounding prose.
func extractJSON(response string) (string, error) {
	response = strings.TrimSpace(response)

	var candidate string
	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		candidate = strings.TrimSpace(matches[1])
	} else {
		first := strings.Index(response, "{")
		last := strings.LastIndex(response, "}")
		if first != -1 && last > first {
			candidate = response[first : last+1]
		} else {
			candidate = response
		}
	}
	if candidate == "" {
		return "", fmt.Errorf("no JSON object in response")
	}
	return candidate, nil
}

// parseDecision maps a raw model reply to an ActionIntent.
func (p *Planner) parseDecision(response string) (ActionIntent, error) {
	raw, err := extractJSON(response)
	if err != nil {
		return ActionIntent{}, err
	}

	var d decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return ActionIntent{}, fmt.Errorf("failed to unmarshal decision: %w", err)
	}
	if d.Action == "" {
		return ActionIntent{}, fmt.Errorf("decision missing required 'action' field")
	}

	reasoning := d.Reasoning
	if reasoning == "" {
		reasoning = d.Description
	}

	intent := ActionIntent{Reasoning: reasoning}
	switch strings.ToLower(strings.TrimSpace(d.Action)) {
	case "tap":
		intent.Kind = ActionTap
		intent.X, intent.Y = d.X, d.Y
	case "tap_text", "tap_by_text":
		intent.Kind = ActionTapText
		intent.Label = d.Label
		if intent.Label == "" {
			intent.Label = d.Text
		}
		if intent.Label == "" {
			return ActionIntent{}, fmt.Errorf("tap_text decision missing 'label'")
		}
	case "type_text":
		intent.Kind = ActionTypeText
		intent.Text = d.Text
	case "swipe":
		intent.Kind = ActionSwipe
		intent.DX, intent.DY = d.DX, d.DY
		if intent.DX == 0 && intent.DY == 0 && (d.EndX != d.StartX || d.EndY != d.StartY) {
			intent.DX = d.EndX - d.StartX
			intent.DY = d.EndY - d.StartY
		}
		if intent.DX == 0 && intent.DY == 0 {
			return ActionIntent{}, fmt.Errorf("swipe decision has zero travel")
		}
	case "scroll_down":
		// Shorthand kept for compatibility with replies that name the scroll
		// direction instead of the finger movement.
		intent.Kind = ActionSwipe
		intent.DY = -p.scrollDelta()
	case "scroll_up":
		intent.Kind = ActionSwipe
		intent.DY = p.scrollDelta()
	case "long_press":
		intent.Kind = ActionLongPress
		intent.X, intent.Y = d.X, d.Y
	case "press_back":
		intent.Kind = ActionPressBack
	case "press_home":
		intent.Kind = ActionPressHome
	case "press_enter":
		intent.Kind = ActionPressEnter
	case "wait":
		intent.Kind = ActionWait
		intent.Seconds = d.Seconds
		if intent.Seconds <= 0 {
			intent.Seconds = 1
		}
	case "test_complete":
		intent.Kind = ActionDone
	case "test_failed":
		intent.Kind = ActionCannotProceed
		intent.Reason = d.Reason
		if intent.Reason == "" {
			intent.Reason = reasoning
		}
		if intent.Reason == "" {
			intent.Reason = "unspecified"
		}
	default:
		return ActionIntent{}, fmt.Errorf("unknown action %q", d.Action)
	}
	return intent, nil
}

func (p *Planner) scrollDelta() int {
	if p.screenHeight > 0 {
		return p.screenHeight / 3
	}
	return scrollFallbackDelta
}
