package terminal

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
)

// MatchOptions configures a single assertion call.
type MatchOptions struct {
	// Timeout bounds how long a matcher polls before giving up. Zero means
	// "use the terminal's configured default" (§6 "expect.timeout").
	Timeout time.Duration

	// Full asserts against scrollback+screen instead of just the viewable
	// screen (§4.F).
	Full bool
}

func (t *T) deadline(opts MatchOptions) time.Time {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}
	return time.Now().Add(timeout)
}

// negated wraps a T to flip the polarity of the next assertion, returned by
// T.Not(). It does not itself hold state beyond the wrapped terminal.
type negated struct {
	t *T
}

// Not returns a view of t whose next assertion is inverted, e.g.
// t.Not().ToHaveValue("foo") waits for the buffer to stop containing foo.
func (t *T) Not() *negated {
	return &negated{t: t}
}

// ToHaveValue polls until the rendered buffer contains (or matches, for a
// *regexp.Regexp expected value) the expected value, or opts.Timeout elapses.
func (t *T) ToHaveValue(expected any, opts MatchOptions) error {
	return t.toHaveValue(expected, opts, true)
}

// ToHaveValue polls until the rendered buffer stops containing (or no longer
// matches) the expected value, or opts.Timeout elapses.
func (n *negated) ToHaveValue(expected any, opts MatchOptions) error {
	return n.t.toHaveValue(expected, opts, false)
}

func (t *T) toHaveValue(expected any, opts MatchOptions, expectTruthy bool) error {
	matchFn, describe, err := valueMatcher(expected)
	if err != nil {
		return err
	}

	var last string
	pred := func() bool {
		t.mu.Lock()
		last = t.render(opts.Full)
		t.mu.Unlock()
		return matchFn(last)
	}

	ok := Poll(t.deadline(opts), 50*time.Millisecond, expectTruthy, pred)
	if ok {
		return nil
	}

	scope := "viewable buffer"
	if opts.Full {
		scope = "full buffer"
	}
	if expectTruthy {
		return fmt.Errorf("terminal: expected %s to contain %s, but it never did\nlast %s:\n%s", scope, describe, scope, last)
	}
	return fmt.Errorf("terminal: expected %s to stop containing %s, but it still did\nlast %s:\n%s", scope, describe, scope, last)
}

// valueMatcher builds the predicate used to test a rendered buffer against
// an expected value. Strings match as substrings; *regexp.Regexp matches via
// MatchString; anything else is rendered with fmt.Sprint and compared as a
// substring.
func valueMatcher(expected any) (func(string) bool, string, error) {
	switch v := expected.(type) {
	case string:
		return func(s string) bool { return strings.Contains(s, v) }, fmt.Sprintf("%q", v), nil
	case *regexp.Regexp:
		return v.MatchString, fmt.Sprintf("/%s/", v.String()), nil
	case nil:
		return nil, "", fmt.Errorf("terminal: expected value must not be nil")
	default:
		s := fmt.Sprint(v)
		return func(haystack string) bool { return strings.Contains(haystack, s) }, fmt.Sprintf("%q", s), nil
	}
}

// SnapshotOutcome classifies the result of a single ToMatchSnapshot call.
type SnapshotOutcome string

const (
	SnapshotWritten    SnapshotOutcome = "written"
	SnapshotMatched    SnapshotOutcome = "matched"
	SnapshotUpdated    SnapshotOutcome = "updated"
	SnapshotMismatched SnapshotOutcome = "mismatched"
	SnapshotMissing    SnapshotOutcome = "missing"
)

// SnapshotStatus records the outcome of one ToMatchSnapshot call within a
// test attempt, reported up to the orchestrator alongside the attempt result.
type SnapshotStatus struct {
	TestID  string
	Index   int
	Outcome SnapshotOutcome
	Diff    string
}

// SnapshotStore persists and retrieves named snapshot bodies. Implementations
// key snapshots by (testID, index) so a test with multiple ToMatchSnapshot
// calls gets one entry per call, in call order.
type SnapshotStore interface {
	Load(testID string, index int) (body string, ok bool, err error)
	Save(testID string, index int, body string) error
}

// BindSnapshots wires the snapshot store, test identity, and update-mode
// flag that ToMatchSnapshot needs. It is called by the worker once per
// attempt, before the test function runs.
func (t *T) BindSnapshots(store SnapshotStore, testID string, updateSnapshot bool) {
	t.mu.Lock()
	t.store = store
	t.testID = testID
	t.seq = 0
	t.snapshots = nil
	t.updateSnapshot = updateSnapshot
	t.mu.Unlock()
}

// Snapshots returns the statuses recorded by ToMatchSnapshot calls made
// during the current attempt, in call order.
func (t *T) Snapshots() []SnapshotStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SnapshotStatus(nil), t.snapshots...)
}

// ToMatchSnapshot compares the current full buffer against the stored
// snapshot for this call site. A missing snapshot is written and treated as
// passing; a mismatch is a failure unless running in update mode, in which
// case the stored snapshot is overwritten and the call is recorded as
// updated rather than matched.
func (t *T) ToMatchSnapshot() error {
	t.mu.Lock()
	store := t.store
	testID := t.testID
	index := t.seq
	t.seq++
	updateSnapshot := t.updateSnapshot
	current := t.render(true)
	t.mu.Unlock()

	if store == nil {
		return fmt.Errorf("terminal: ToMatchSnapshot called without a bound snapshot store")
	}

	stored, ok, err := store.Load(testID, index)
	if err != nil {
		return fmt.Errorf("terminal: loading snapshot %s#%d: %w", testID, index, err)
	}

	status := SnapshotStatus{TestID: testID, Index: index}

	switch {
	case !ok:
		status.Outcome = SnapshotMissing
		if err := store.Save(testID, index, current); err != nil {
			return fmt.Errorf("terminal: writing snapshot %s#%d: %w", testID, index, err)
		}
		status.Outcome = SnapshotWritten
		t.recordSnapshot(status)
		return nil

	case stored == current:
		status.Outcome = SnapshotMatched
		t.recordSnapshot(status)
		return nil

	case updateSnapshot:
		if err := store.Save(testID, index, current); err != nil {
			return fmt.Errorf("terminal: updating snapshot %s#%d: %w", testID, index, err)
		}
		status.Outcome = SnapshotUpdated
		t.recordSnapshot(status)
		return nil

	default:
		diff := unifiedDiff(stored, current)
		status.Outcome = SnapshotMismatched
		status.Diff = diff
		t.recordSnapshot(status)
		return fmt.Errorf("terminal: snapshot %s#%d mismatched:\n%s", testID, index, diff)
	}
}

func (t *T) recordSnapshot(status SnapshotStatus) {
	t.mu.Lock()
	t.snapshots = append(t.snapshots, status)
	t.mu.Unlock()
}

func unifiedDiff(stored, current string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(stored),
		B:        difflib.SplitLines(current),
		FromFile: "stored",
		ToFile:   "current",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("(failed to compute diff: %v)", err)
	}
	return text
}
