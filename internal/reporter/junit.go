package reporter

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/tactrunner/tact/internal/suite"
)

type junitSuites struct {
	XMLName xml.Name     `xml:"testsuites"`
	Suites  []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name    string    `xml:"name,attr"`
	Time    float64   `xml:"time,attr"`
	Error   string    `xml:"error,omitempty"`
	Failure string    `xml:"failure,omitempty"`
	Skipped *struct{} `xml:"skipped,omitempty"`
}

// JUnit writes a single <testsuites> document at End, grounded on the
// teacher's reportXUnitFormat: every result goes into one testsuite named
// "tact", one testcase per result, error/failure distinguished by element
// name.
type JUnit struct {
	Out io.Writer

	flakyCountsAsFailure bool
	cases                []junitCase
}

func NewJUnit(out io.Writer, flakyCountsAsFailure bool) *JUnit {
	return &JUnit{Out: out, flakyCountsAsFailure: flakyCountsAsFailure}
}

func (j *JUnit) Start(totalTests int, shells []string) {}

func (j *JUnit) EndTest(test *suite.TestCase, result suite.Result) {
	jc := junitCase{
		Name: test.Title,
		Time: float64(result.DurationMS) / 1000.0,
	}
	switch result.Status {
	case suite.StatusSkipped:
		jc.Skipped = &struct{}{}
	case suite.StatusUnexpected:
		jc.Failure = result.Error
	}
	if jc.Failure == "" && result.Error != "" && result.Status != suite.StatusExpected {
		jc.Error = result.Error
	}
	j.cases = append(j.cases, jc)
}

func (j *JUnit) End(root *suite.Suite) int {
	failures := 0
	for _, c := range j.cases {
		if c.Failure != "" || c.Error != "" {
			failures++
		}
	}

	doc := junitSuites{
		Suites: []junitSuite{
			{Name: "tact", Tests: len(j.cases), Failures: failures, Cases: j.cases},
		},
	}

	fmt.Fprint(j.Out, xml.Header)
	enc := xml.NewEncoder(j.Out)
	enc.Indent("", "  ")
	_ = enc.Encode(doc)
	fmt.Fprintln(j.Out)

	return FailureCount(root, j.flakyCountsAsFailure)
}
