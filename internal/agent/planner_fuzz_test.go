// File: internal/agent/planner_fuzz_test.go
package agent

import (
	"fmt"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"go.uber.org/zap/zaptest"

	"github.com/qaloop-dev/qaloop/internal/mocks"
)

// FuzzParseDecision assembles model replies from fuzzed fragments and checks
// that every reply the parser accepts yields an executable intent. The model
// is free to misspell actions, wrap JSON in prose, or omit fields, so the
// parser must never hand the supervisor a half-built decision.
func FuzzParseDecision(f *testing.F) {
	f.Add([]byte("tap"))
	f.Add([]byte("test_failed"))
	f.Add([]byte("scroll_down"))
	f.Add([]byte("wait"))
	f.Add([]byte("launch_app"))
	f.Add([]byte{0xff, 0xfe})

	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		action, err := consumer.GetString()
		if err != nil {
			return
		}
		reasoning, err := consumer.GetString()
		if err != nil {
			return
		}
		fenced, err := consumer.GetBool()
		if err != nil {
			return
		}

		reply := fmt.Sprintf(`{"action": %q, "reasoning": %q}`, action, reasoning)
		if fenced {
			reply = "```json\n" + reply + "\n```"
		}

		planner := NewPlanner(&mocks.MockLLMClient{}, PlannerConfig{}, zaptest.NewLogger(t))
		intent, perr := planner.parseDecision(reply)
		if perr != nil {
			return
		}

		switch {
		case intent.Kind == ActionUnknown:
			t.Errorf("accepted reply produced no action kind: %s", reply)
		case intent.Kind == ActionCannotProceed && intent.Reason == "":
			t.Errorf("cannot_proceed accepted without a reason: %s", reply)
		case intent.Kind == ActionWait && intent.Seconds <= 0:
			t.Errorf("wait accepted with non-positive duration: %s", reply)
		case intent.Kind == ActionTapText && intent.Label == "":
			t.Errorf("tap_text accepted without a label: %s", reply)
		case intent.Kind == ActionSwipe && intent.DX == 0 && intent.DY == 0:
			t.Errorf("swipe accepted with zero travel: %s", reply)
		}
	})
}
