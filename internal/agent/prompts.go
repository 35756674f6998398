// internal/agent/prompts.go
package agent

import (
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/qaloop-dev/qaloop/internal/scenario"
)

// plannerRole is the fixed part of the planner system prompt. The action
// vocabulary here must stay in sync with parseDecision.
const plannerRole = `You are a mobile QA test agent. You analyze the current screen of an Android app and decide the single next action that progresses the given test scenario.

## Available actions
Respond with exactly ONE of these actions as a JSON object:

1. Tap a specific location:
   {"action": "tap", "x": <int>, "y": <int>, "reasoning": "<what you are tapping and why>"}

2. Tap an element by its visible text or accessibility label:
   {"action": "tap_text", "label": "<exact visible text>", "reasoning": "<why>"}

3. Type text into the focused field:
   {"action": "type_text", "text": "<text to type>", "reasoning": "<which field>"}

4. Swipe from the screen center by a pixel delta (negative dy moves the finger up and reveals content further down):
   {"action": "swipe", "dx": <int>, "dy": <int>, "reasoning": "<why>"}

5. Long-press a specific location:
   {"action": "long_press", "x": <int>, "y": <int>, "reasoning": "<why>"}

6. Press the Android back button:
   {"action": "press_back", "reasoning": "<why>"}

7. Press the home button:
   {"action": "press_home", "reasoning": "<why>"}

8. Press the enter key:
   {"action": "press_enter", "reasoning": "<why>"}

9. Wait for the UI to settle:
   {"action": "wait", "seconds": <number>, "reasoning": "<what you are waiting for>"}

10. The scenario goal is visibly achieved:
    {"action": "test_complete", "reasoning": "<what you verified on screen>"}

11. The scenario cannot be completed (element missing, wrong state, goal unreachable):
    {"action": "test_failed", "reason": "<why it cannot proceed>", "reasoning": "<what you checked>"}

## Rules
1. Analyze the screenshot carefully before deciding.
2. Be precise with tap coordinates: aim for the center of the element.
3. If an element is not visible, try swiping before giving up.
4. If an element does not exist after a thorough search, report test_failed with a clear reason.
5. Only report test_complete when the expected outcome is VISIBLY confirmed on screen.
6. For scenarios expected to fail, look for the missing or wrong element and report test_failed once confirmed.

Respond ONLY with the JSON object. No text outside the JSON.`

// judgeSystemPrompt drives the assertion check after a scenario reports
// completion. It deliberately offers no actions: the judge only reads.
const judgeSystemPrompt = `You are a mobile QA verification agent. You are given a screenshot of an app's final state and an assertion about what that state should show. Decide strictly from the screenshot whether the assertion holds.

Respond ONLY with a JSON object of this exact shape:
{"holds": <true|false>, "observed": "<what the screenshot actually shows, one sentence>", "expected": "<what the assertion requires, one sentence>"}`

// buildPlannerSystemPrompt appends screen geometry guidance when the device
// resolution is known.
func buildPlannerSystemPrompt(screenW, screenH int) string {
	if screenW <= 0 || screenH <= 0 {
		return plannerRole
	}
	return plannerRole + fmt.Sprintf(`

## Screen geometry
The screen resolution is %d x %d pixels. The status bar and app header occupy the top, the navigation bar the bottom. Coordinates must stay within these bounds.`, screenW, screenH)
}

// stepSummary is the compact prior-action record embedded in the planner
// prompt so the model can see what it already tried.
type stepSummary struct {
	Step      int    `json:"step"`
	Action    string `json:"action"`
	Reasoning string `json:"reasoning,omitempty"`
	Success   bool   `json:"success"`
}

// buildPlannerUserPrompt assembles the per-step context: the scenario, the
// authored hints, progress through the step budget, and the prior actions.
func buildPlannerUserPrompt(scn scenario.Scenario, history []StepRecord, step, maxSteps int) (string, error) {
	summaries := make([]stepSummary, 0, len(history))
	for _, rec := range history {
		summaries = append(summaries, stepSummary{
			Step:      rec.Index,
			Action:    rec.Intent.Describe(),
			Reasoning: rec.Intent.Reasoning,
			Success:   rec.Outcome.Succeeded,
		})
	}
	historyJSON, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal step history: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Test scenario: %s\n", scn.Name)
	fmt.Fprintf(&b, "**Goal:** %s\n", scn.Goal)
	fmt.Fprintf(&b, "**Expected final state:** %s\n", scn.Assertion)
	if scn.ShouldPass {
		b.WriteString("**Expectation:** this scenario should complete successfully.\n")
	} else {
		b.WriteString("**Expectation:** this scenario is expected to FAIL. Look for the missing or wrong element and report test_failed once you confirm it.\n")
	}
	if len(scn.Steps) > 0 {
		b.WriteString("\n## Suggested steps (adapt to what the screen actually shows)\n")
		for i, hint := range scn.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, hint)
		}
	}
	fmt.Fprintf(&b, "\n## Progress\nStep %d of %d.\nPrevious actions:\n%s\n", step, maxSteps, historyJSON)
	b.WriteString("\nAnalyze the attached screenshot and decide the next action. Respond with JSON only.")
	return b.String(), nil
}

// buildJudgeUserPrompt frames the assertion for the verification call.
func buildJudgeUserPrompt(assertion string) string {
	return fmt.Sprintf("Assertion about the final app state:\n%s\n\nDoes the attached screenshot satisfy this assertion? Respond with JSON only.", assertion)
}
