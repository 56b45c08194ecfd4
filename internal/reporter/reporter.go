// Package reporter defines the narrow interface the orchestrator notifies
// as a run progresses, and ships four concrete implementations (§6
// "Reporter interface").
package reporter

import (
	"github.com/tactrunner/tact/internal/suite"
)

// Reporter receives lifecycle events from the orchestrator. Calls to
// EndTest are serialized by the caller (§5 "the reporter receives endTest
// calls one at a time").
type Reporter interface {
	// Start is called once, before dispatch begins, with the selected
	// test count and the union of shells those tests require.
	Start(totalTests int, shells []string)

	// EndTest is called once per test, after its outcome is final.
	EndTest(test *suite.TestCase, result suite.Result)

	// End is called once, after all tasks have settled, and returns the
	// count of failed tests as FailureCount defines it (§4.C).
	End(root *suite.Suite) int
}

// FailureCount walks root and counts tests whose Outcome is neither
// expected nor skipped, applying flakyCountsAsFailure for the flaky case (§4.C "default: flaky
// counts as expected but is surfaced by the reporter").
func FailureCount(root *suite.Suite, flakyCountsAsFailure bool) int {
	count := 0
	for _, tc := range root.AllTests() {
		switch tc.Outcome() {
		case suite.StatusExpected, suite.StatusSkipped:
			// not a failure
		case suite.StatusFlaky:
			if flakyCountsAsFailure {
				count++
			}
		default:
			count++
		}
	}
	return count
}
