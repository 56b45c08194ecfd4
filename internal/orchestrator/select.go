package orchestrator

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/tactrunner/tact/internal/suite"
)

// resolvedPath returns the Source of the nearest ancestor file suite, the
// "resolved file path" §4.C's filter step matches against.
func resolvedPath(tc *suite.TestCase) string {
	for s := tc.Suite; s != nil; s = s.Parent {
		if s.Kind == suite.KindFile {
			return s.Source
		}
	}
	return ""
}

// Select runs the selection pipeline from §4.C: collect all tests
// pre-order, apply the only-gate, then apply filters (each compiled as a
// regular expression matched against the resolved file path). An invalid
// filter pattern is a fatal configuration error.
func Select(root *suite.Suite, filters []string) ([]*suite.TestCase, error) {
	all := root.AllTests()

	if hasOnly(all) {
		all = onlyAnnotated(all)
	}

	if len(filters) == 0 {
		return all, nil
	}

	patterns := make([]*regexp.Regexp, 0, len(filters))
	for _, f := range filters {
		re, err := regexp.Compile(f)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: invalid test filter %q: %w", f, err)
		}
		patterns = append(patterns, re)
	}

	var selected []*suite.TestCase
	for _, tc := range all {
		path := resolvedPath(tc)
		for _, re := range patterns {
			if re.MatchString(path) {
				selected = append(selected, tc)
				break
			}
		}
	}
	return selected, nil
}

func hasOnly(tests []*suite.TestCase) bool {
	for _, tc := range tests {
		if tc.Annotation == suite.AnnotationOnly {
			return true
		}
	}
	return false
}

func onlyAnnotated(tests []*suite.TestCase) []*suite.TestCase {
	var out []*suite.TestCase
	for _, tc := range tests {
		if tc.Annotation == suite.AnnotationOnly {
			out = append(out, tc)
		}
	}
	return out
}

// Shells returns the sorted, deduplicated set of shells the selected tests
// require, used for the reporter's Start call and pre-run shell
// preparation (§4.C).
func Shells(tests []*suite.TestCase) []string {
	seen := map[string]bool{}
	var out []string
	for _, tc := range tests {
		eff := tc.Suite.EffectiveOptions()
		if eff.Shell == nil {
			continue
		}
		if !seen[*eff.Shell] {
			seen[*eff.Shell] = true
			out = append(out, *eff.Shell)
		}
	}
	sort.Strings(out)
	return out
}
