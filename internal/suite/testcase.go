package suite

import "github.com/tactrunner/tact/internal/terminal"

// Annotation marks a declared test as behaving differently from the
// default: run-and-must-pass. The set is closed over {only, skip, fail}
// and a test may carry at most one (§3: "annotations (set over {only,
// skip, fail})" — in practice the loader never asks for more than one at
// a time, since test.skip/test.fail/only are mutually exclusive call sites).
type Annotation string

const (
	AnnotationNone Annotation = ""
	AnnotationOnly Annotation = "only"
	AnnotationSkip Annotation = "skip"
	AnnotationFail Annotation = "fail"
)

// Location is the source position of a test's declaration.
type Location struct {
	Row    int
	Column int
}

// TestFunc is a test body: it receives the Terminal for the attempt and
// returns an error on assertion failure or any other test-body error.
type TestFunc func(t *terminal.T) error

// Status classifies a single attempt's result.
type Status string

const (
	StatusExpected   Status = "expected"
	StatusUnexpected Status = "unexpected"
	StatusPending    Status = "pending"
	StatusSkipped    Status = "skipped"
	StatusFlaky      Status = "flaky"
)

// Result is the outcome of one attempt at running a TestCase.
type Result struct {
	Status     Status
	Error      string
	DurationMS int64
	Snapshots  []terminal.SnapshotStatus
}

// TestCase is a single declared test within a Suite.
type TestCase struct {
	ID         string
	Title      string
	Location   Location
	Fn         TestFunc
	Annotation Annotation
	Suite      *Suite
	Results    []Result
}

// Outcome folds a test case's attempt results into its overall
// classification, per §3/§8 invariant 4:
//
//	[]                    -> skipped
//	[expected]            -> expected
//	[unexpected, expected] -> flaky
//	[expected, unexpected] -> flaky
//
// More generally: any transition from unexpected to expected, or from
// expected to a non-expected status, makes the whole run flaky; otherwise
// the outcome is the final attempt's status.
func (tc *TestCase) Outcome() Status {
	if len(tc.Results) == 0 {
		return StatusSkipped
	}
	flaky := false
	prev := tc.Results[0].Status
	for _, r := range tc.Results[1:] {
		if prev == StatusUnexpected && r.Status == StatusExpected {
			flaky = true
		}
		if prev == StatusExpected && r.Status != StatusExpected {
			flaky = true
		}
		prev = r.Status
	}
	if flaky {
		return StatusFlaky
	}
	return tc.Results[len(tc.Results)-1].Status
}
