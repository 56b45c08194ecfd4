package suite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func buildTree() (root, project, file, describe *Suite, test *TestCase) {
	root = NewRoot()
	project = &Suite{Title: "cli", Kind: KindProject, Options: Options{Shell: ptr("bash")}}
	root.AddChild(project)

	file = &Suite{Title: "prompt.test.go", Kind: KindFile, Row: 12, Options: Options{Rows: ptr(24)}}
	project.AddChild(file)

	describe = &Suite{Title: "when idle", Kind: KindDescribe}
	file.AddChild(describe)

	test = &TestCase{Title: "shows a prompt"}
	describe.AddTest(test)

	return
}

func TestAllTestsPreOrder(t *testing.T) {
	root, _, file, describe, _ := buildTree()

	second := &TestCase{Title: "second"}
	file.AddTest(second)

	third := &TestCase{Title: "third"}
	describe.AddTest(third)

	tests := root.AllTests()
	require.Len(t, tests, 3)
	assert.Equal(t, "shows a prompt", tests[0].Title)
	assert.Equal(t, "third", tests[1].Title)
	assert.Equal(t, "second", tests[2].Title)
}

func TestEffectiveOptionsNearestWins(t *testing.T) {
	_, _, file, describe, test := buildTree()
	describe.Options = Options{Shell: ptr("zsh"), Columns: ptr(100)}

	eff := test.Suite.EffectiveOptions()
	require.NotNil(t, eff.Shell)
	assert.Equal(t, "zsh", *eff.Shell) // describe overrides project
	require.NotNil(t, eff.Rows)
	assert.Equal(t, 24, *eff.Rows) // inherited from file, untouched by describe
	require.NotNil(t, eff.Columns)
	assert.Equal(t, 100, *eff.Columns)
	_ = file
}

func TestEffectiveOptionsEnvIsFullyReplacedNotMerged(t *testing.T) {
	_, project, _, _, test := buildTree()
	project.Options.Env = map[string]string{"A": "1", "B": "2"}
	test.Suite.Options.Env = map[string]string{"B": "override"}

	eff := test.Suite.EffectiveOptions()
	assert.Equal(t, map[string]string{"B": "override"}, eff.Env)
}

func TestOptionsMergeTimeout(t *testing.T) {
	base := Options{Timeout: ptr(5 * time.Second)}
	override := Options{}
	merged := base.Merge(override)
	require.NotNil(t, merged.Timeout)
	assert.Equal(t, 5*time.Second, *merged.Timeout)
}

func TestComputeIDIncludesProjectDescribeFileRowTwiceAndTitle(t *testing.T) {
	_, _, _, _, test := buildTree()
	id := ComputeID(test)
	assert.Equal(t, "[cli] > prompt.test.go:12:12 > when idle > shows a prompt", id)
}

func TestComputeIDOmitsEmptyProjectTitle(t *testing.T) {
	root := NewRoot()
	project := &Suite{Title: "", Kind: KindProject}
	root.AddChild(project)
	file := &Suite{Title: "solo.test.go", Kind: KindFile, Row: 3}
	project.AddChild(file)
	tc := &TestCase{Title: "runs"}
	file.AddTest(tc)

	assert.Equal(t, "solo.test.go:3:3 > runs", ComputeID(tc))
}

func TestComputeIDDistinctForDistinctLocations(t *testing.T) {
	root := NewRoot()
	project := &Suite{Title: "p", Kind: KindProject}
	root.AddChild(project)

	fileA := &Suite{Title: "a.test.go", Kind: KindFile, Row: 1}
	project.AddChild(fileA)
	testA := &TestCase{Title: "x"}
	fileA.AddTest(testA)

	fileB := &Suite{Title: "b.test.go", Kind: KindFile, Row: 1}
	project.AddChild(fileB)
	testB := &TestCase{Title: "x"}
	fileB.AddTest(testB)

	assert.NotEqual(t, ComputeID(testA), ComputeID(testB))
}

func TestOutcomeFoldRules(t *testing.T) {
	cases := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"no results", nil, StatusSkipped},
		{"single expected", []Status{StatusExpected}, StatusExpected},
		{"unexpected then expected", []Status{StatusUnexpected, StatusExpected}, StatusFlaky},
		{"expected then unexpected", []Status{StatusExpected, StatusUnexpected}, StatusFlaky},
		{"all unexpected", []Status{StatusUnexpected, StatusUnexpected}, StatusUnexpected},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tc := &TestCase{}
			for _, s := range c.statuses {
				tc.Results = append(tc.Results, Result{Status: s})
			}
			assert.Equal(t, c.want, tc.Outcome())
		})
	}
}
