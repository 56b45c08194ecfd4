package reporter

import (
	"encoding/json"
	"io"

	"github.com/tactrunner/tact/internal/suite"
)

// JSONResult is one test's result in the JSON reporter's output document.
type JSONResult struct {
	Title      string `json:"title"`
	ID         string `json:"id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// JSONDocument is the full JSON reporter output, written once at End.
type JSONDocument struct {
	TotalTests int          `json:"totalTests"`
	Shells     []string     `json:"shells"`
	Failures   int          `json:"failures"`
	Results    []JSONResult `json:"results"`
}

// JSON accumulates results and marshals one JSONDocument at End.
type JSON struct {
	Out io.Writer

	flakyCountsAsFailure bool
	totalTests           int
	shells               []string
	results              []JSONResult
}

func NewJSON(out io.Writer, flakyCountsAsFailure bool) *JSON {
	return &JSON{Out: out, flakyCountsAsFailure: flakyCountsAsFailure}
}

func (j *JSON) Start(totalTests int, shells []string) {
	j.totalTests = totalTests
	j.shells = shells
}

func (j *JSON) EndTest(test *suite.TestCase, result suite.Result) {
	j.results = append(j.results, JSONResult{
		Title:      test.Title,
		ID:         test.ID,
		Status:     string(result.Status),
		Error:      result.Error,
		DurationMS: result.DurationMS,
	})
}

func (j *JSON) End(root *suite.Suite) int {
	failures := FailureCount(root, j.flakyCountsAsFailure)
	doc := JSONDocument{
		TotalTests: j.totalTests,
		Shells:     j.shells,
		Failures:   failures,
		Results:    j.results,
	}
	enc := json.NewEncoder(j.Out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(doc)
	return failures
}
