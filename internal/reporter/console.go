package reporter

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/tactrunner/tact/internal/suite"
)

var summaryStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

// Console prints one colored pass/fail line per test as results arrive,
// and a final summary line. Grounded on the teacher's reporters.ReportConsole
// one-line-per-result format.
type Console struct {
	Out io.Writer

	flakyCountsAsFailure bool
	total                int
}

// NewConsole builds a Console writing to out, enabling color only when out
// is a real terminal (teacher's pattern of gating fatih/color on isatty).
func NewConsole(out io.Writer, flakyCountsAsFailure bool) *Console {
	return &Console{Out: out, flakyCountsAsFailure: flakyCountsAsFailure}
}

func (c *Console) isTTY() bool {
	f, ok := c.Out.(interface{ Fd() uintptr })
	return ok && isatty.IsTerminal(f.Fd())
}

func (c *Console) Start(totalTests int, shells []string) {
	c.total = totalTests
	fmt.Fprintf(c.Out, "running %d tests (shells: %v)\n", totalTests, shells)
}

func (c *Console) EndTest(test *suite.TestCase, result suite.Result) {
	label, colorFn := c.statusLabel(result.Status)
	line := fmt.Sprintf("[%s] %s (%s)\n", label, test.Title, formatDuration(result.DurationMS))
	if c.isTTY() {
		colorFn.Fprint(c.Out, line)
		return
	}
	fmt.Fprint(c.Out, line)
}

func (c *Console) statusLabel(status suite.Status) (string, *color.Color) {
	switch status {
	case suite.StatusExpected:
		return "PASS", color.New(color.FgGreen)
	case suite.StatusSkipped:
		return "SKIP", color.New(color.FgYellow)
	case suite.StatusFlaky:
		return "FLAKY", color.New(color.FgYellow, color.Bold)
	default:
		return "FAIL", color.New(color.FgRed)
	}
}

func (c *Console) End(root *suite.Suite) int {
	failures := FailureCount(root, c.flakyCountsAsFailure)
	summary := fmt.Sprintf("%d/%d tests passed, %d failed", c.total-failures, c.total, failures)
	if c.isTTY() {
		fmt.Fprintln(c.Out, summaryStyle.Render(summary))
	} else {
		fmt.Fprintln(c.Out, summary)
	}
	return failures
}
