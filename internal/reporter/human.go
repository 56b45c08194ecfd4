package reporter

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/table"

	"github.com/tactrunner/tact/internal/suite"
)

// Human renders the full result set as a single rounded-style table once
// the run ends, grounded on the teacher's reportHumanFormatTest.
type Human struct {
	Out io.Writer

	flakyCountsAsFailure bool
	rows                 []humanRow
}

type humanRow struct {
	title      string
	status     suite.Status
	durationMS int64
	errMsg     string
}

func NewHuman(out io.Writer, flakyCountsAsFailure bool) *Human {
	return &Human{Out: out, flakyCountsAsFailure: flakyCountsAsFailure}
}

func (h *Human) Start(totalTests int, shells []string) {}

func (h *Human) EndTest(test *suite.TestCase, result suite.Result) {
	h.rows = append(h.rows, humanRow{
		title:      test.Title,
		status:     result.Status,
		durationMS: result.DurationMS,
		errMsg:     result.Error,
	})
}

func (h *Human) End(root *suite.Suite) int {
	t := table.NewWriter()
	t.SetOutputMirror(h.Out)
	t.AppendHeader(table.Row{"Test", "Result", "Time elapsed"})

	for _, r := range h.rows {
		result := string(r.status)
		if r.errMsg != "" {
			result = fmt.Sprintf("%s: %s", r.status, r.errMsg)
		}
		t.AppendRow(table.Row{r.title, result, formatDuration(r.durationMS)})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	return FailureCount(root, h.flakyCountsAsFailure)
}
