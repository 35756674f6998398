// -- internal/reporting/console.go --
// Console rendering of the suite summary.

package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/qaloop-dev/qaloop/internal/agent"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

const tableWidth = 84

// colorsEnabled honors NO_COLOR and only colors real terminals.
func colorsEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func (r *Reporter) color(c string) string {
	if r.colors {
		return c
	}
	return ""
}

// printSummary renders the per-scenario table and the suite totals.
func (r *Reporter) printSummary(suite *agent.SuiteResult) {
	w := r.console

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-28s %-9s %-22s %-6s %s\n", "Scenario", "Expected", "Verdict", "Steps", "As expected")
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", tableWidth))

	for _, res := range suite.Results {
		expected := "pass"
		if !res.Scenario.ShouldPass {
			expected = "fail"
		}

		verdictColor := colorRed
		if res.Verdict.Kind == agent.VerdictPassed {
			verdictColor = colorGreen
		} else if res.Verdict.Kind == agent.VerdictFailedStep {
			verdictColor = colorYellow
		}

		match := fmt.Sprintf("%s✓%s", r.color(colorGreen), r.color(colorReset))
		if !res.Correct {
			match = fmt.Sprintf("%s✗%s", r.color(colorRed), r.color(colorReset))
		}

		name := res.Scenario.Name
		if len(name) > 28 {
			name = name[:25] + "..."
		}

		fmt.Fprintf(w, "  %-28s %-9s %s%-22s%s %-6d %s\n",
			name,
			expected,
			r.color(verdictColor), res.Verdict.Kind.String(), r.color(colorReset),
			len(res.Steps),
			match)

		// Failure details on their own line keep the table scannable.
		switch res.Verdict.Kind {
		case agent.VerdictFailedStep:
			fmt.Fprintf(w, "      %sreason:%s %s\n", r.color(colorCyan), r.color(colorReset), res.Verdict.Reason)
		case agent.VerdictFailedAssertion:
			fmt.Fprintf(w, "      %sobserved:%s %s\n", r.color(colorCyan), r.color(colorReset), res.Verdict.Observed)
			fmt.Fprintf(w, "      %sexpected:%s %s\n", r.color(colorCyan), r.color(colorReset), res.Verdict.Expected)
		}
	}

	fmt.Fprintf(w, "%s\n", strings.Repeat("═", tableWidth))

	total := suite.Len()
	fmt.Fprintf(w, "  %s%d scenarios%s: %s%d passed%s, %s%d failed steps%s, %s%d failed assertions%s\n",
		r.color(colorBold), total, r.color(colorReset),
		r.color(colorGreen), suite.Passed(), r.color(colorReset),
		r.color(colorYellow), suite.FailedSteps(), r.color(colorReset),
		r.color(colorRed), suite.FailedAssertions(), r.color(colorReset))

	if total > 0 {
		correct := suite.CorrectCount()
		fmt.Fprintf(w, "  %d/%d matched expectations (%.1f%%)\n", correct, total, 100*float64(correct)/float64(total))
	}
	if d := suite.Duration(); d > 0 {
		fmt.Fprintf(w, "  Total duration: %s\n", d.Round(time.Second))
	}
}
