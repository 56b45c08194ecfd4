// Package suite implements the in-memory hierarchy of projects, files,
// describe-groups, and tests, along with option inheritance across that
// hierarchy. The tree is built once by a loader and is read-only thereafter.
package suite

import "time"

// Kind classifies a Suite node's position in the tree.
type Kind string

const (
	KindRoot     Kind = "root"
	KindProject  Kind = "project"
	KindFile     Kind = "file"
	KindDescribe Kind = "describe"
)

// Options holds the inheritable test configuration. Every field is a
// pointer so that "unset" is distinguishable from "set to the zero value";
// EffectiveOptions merges ancestor chains nearest-wins on a per-field basis.
type Options struct {
	Shell   *string
	Rows    *int
	Columns *int
	Env     map[string]string
	Cwd     *string
	Timeout *time.Duration
}

// Merge returns a new Options with each field taken from override when set,
// falling back to the receiver otherwise. Env is not deep-merged: a
// non-nil override.Env fully replaces base.Env, matching §3's "shallow
// merge (nearest wins)" wording literally rather than merging map keys.
func (base Options) Merge(override Options) Options {
	out := base
	if override.Shell != nil {
		out.Shell = override.Shell
	}
	if override.Rows != nil {
		out.Rows = override.Rows
	}
	if override.Columns != nil {
		out.Columns = override.Columns
	}
	if override.Cwd != nil {
		out.Cwd = override.Cwd
	}
	if override.Timeout != nil {
		out.Timeout = override.Timeout
	}
	if override.Env != nil {
		out.Env = override.Env
	}
	return out
}

// Suite is one node of the tree: a project, file, or describe-group (or the
// single root). Children and tests are kept in one ordered slice so
// AllTests can replay pre-order declaration order exactly.
type Suite struct {
	Title   string
	Kind    Kind
	Options Options
	Parent  *Suite

	// Source is the resolved loadable path of the transformed file; only
	// meaningful for Kind == KindFile.
	Source string

	// Row is the file's declaration row, used by the file segment of a
	// test id (§3: "file-title:row:row"). Zero for non-file suites.
	Row int

	items []any // each is *Suite or *TestCase, in declaration order
}

// NewRoot creates the single root suite of a tree.
func NewRoot() *Suite {
	return &Suite{Title: "", Kind: KindRoot}
}

// AddChild appends a child suite, linking its Parent back to the receiver.
func (s *Suite) AddChild(child *Suite) {
	child.Parent = s
	s.items = append(s.items, child)
}

// AddTest appends a test case, linking its Suite back to the receiver.
func (s *Suite) AddTest(tc *TestCase) {
	tc.Suite = s
	s.items = append(s.items, tc)
}

// Children returns the direct child suites, in declaration order.
func (s *Suite) Children() []*Suite {
	var out []*Suite
	for _, item := range s.items {
		if child, ok := item.(*Suite); ok {
			out = append(out, child)
		}
	}
	return out
}

// Tests returns the direct child test cases, in declaration order.
func (s *Suite) Tests() []*TestCase {
	var out []*TestCase
	for _, item := range s.items {
		if tc, ok := item.(*TestCase); ok {
			out = append(out, tc)
		}
	}
	return out
}

// AllTests returns every test case in the subtree rooted at s, depth-first
// pre-order, matching declaration order within each suite (§4.A).
func (s *Suite) AllTests() []*TestCase {
	var out []*TestCase
	for _, item := range s.items {
		switch v := item.(type) {
		case *TestCase:
			out = append(out, v)
		case *Suite:
			out = append(out, v.AllTests()...)
		}
	}
	return out
}

// EffectiveOptions walks from the root to s, merging Options at each step
// so that the nearest ancestor's explicit setting wins (§4.A).
func (s *Suite) EffectiveOptions() Options {
	var chain []*Suite
	for n := s; n != nil; n = n.Parent {
		chain = append(chain, n)
	}
	var effective Options
	for i := len(chain) - 1; i >= 0; i-- {
		effective = effective.Merge(chain[i].Options)
	}
	return effective
}
