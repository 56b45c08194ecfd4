package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tactrunner/tact/internal/suite"
	"github.com/tactrunner/tact/internal/terminal"
)

func ptrString(v string) *string { return &v }

func TestLoadRunsRegisteredFile(t *testing.T) {
	Register("fixtures/simple.test.go", func(c *Context) {
		c.Test("passes", func(t *terminal.T) error { return nil })
	})

	fileSuite := &suite.Suite{Title: "simple.test.go", Kind: suite.KindFile}
	err := Load("fixtures/simple.test.go", fileSuite)
	require.NoError(t, err)

	tests := fileSuite.Tests()
	require.Len(t, tests, 1)
	assert.Equal(t, "passes", tests[0].Title)
	assert.Equal(t, suite.AnnotationNone, tests[0].Annotation)
	assert.NotEmpty(t, tests[0].ID)
}

func TestLoadUnknownPathErrors(t *testing.T) {
	fileSuite := &suite.Suite{Title: "missing.test.go", Kind: suite.KindFile}
	err := Load("fixtures/does-not-exist.test.go", fileSuite)
	assert.Error(t, err)
}

func TestDescribeNestsAndRestoresAmbientSuite(t *testing.T) {
	Register("fixtures/nested.test.go", func(c *Context) {
		c.Test("top level", func(t *terminal.T) error { return nil })
		c.Describe("group", func(c *Context) {
			c.Test("nested", func(t *terminal.T) error { return nil })
		})
		c.Test("after group", func(t *terminal.T) error { return nil })
	})

	fileSuite := &suite.Suite{Title: "nested.test.go", Kind: suite.KindFile}
	require.NoError(t, Load("fixtures/nested.test.go", fileSuite))

	directTests := fileSuite.Tests()
	require.Len(t, directTests, 2)
	assert.Equal(t, "top level", directTests[0].Title)
	assert.Equal(t, "after group", directTests[1].Title)

	children := fileSuite.Children()
	require.Len(t, children, 1)
	assert.Equal(t, suite.KindDescribe, children[0].Kind)
	groupTests := children[0].Tests()
	require.Len(t, groupTests, 1)
	assert.Equal(t, "nested", groupTests[0].Title)
}

func TestSkipFailOnlyAnnotations(t *testing.T) {
	Register("fixtures/annotated.test.go", func(c *Context) {
		c.Test("plain", func(t *terminal.T) error { return nil })
		c.Skip("skipped", func(t *terminal.T) error { return nil })
		c.Fail("expected to fail", func(t *terminal.T) error { return nil })
		c.Only("only this", func(t *terminal.T) error { return nil })
	})

	fileSuite := &suite.Suite{Title: "annotated.test.go", Kind: suite.KindFile}
	require.NoError(t, Load("fixtures/annotated.test.go", fileSuite))

	tests := fileSuite.Tests()
	require.Len(t, tests, 4)
	assert.Equal(t, suite.AnnotationNone, tests[0].Annotation)
	assert.Equal(t, suite.AnnotationSkip, tests[1].Annotation)
	assert.Equal(t, suite.AnnotationFail, tests[2].Annotation)
	assert.Equal(t, suite.AnnotationOnly, tests[3].Annotation)
}

func TestUseMergesOptionsIntoAmbientSuite(t *testing.T) {
	Register("fixtures/use.test.go", func(c *Context) {
		err := c.Use(suite.Options{Shell: ptrString("zsh")})
		require.NoError(t, err)
		c.Test("uses zsh", func(t *terminal.T) error { return nil })
	})

	fileSuite := &suite.Suite{Title: "use.test.go", Kind: suite.KindFile}
	require.NoError(t, Load("fixtures/use.test.go", fileSuite))

	require.NotNil(t, fileSuite.Options.Shell)
	assert.Equal(t, "zsh", *fileSuite.Options.Shell)
}

func TestUseInsideHookIsRejected(t *testing.T) {
	Register("fixtures/use-in-hook.test.go", func(c *Context) {
		c.RunHook(func() {
			err := c.Use(suite.Options{Shell: ptrString("fish")})
			assert.Error(t, err)
		})
	})

	fileSuite := &suite.Suite{Title: "use-in-hook.test.go", Kind: suite.KindFile}
	require.NoError(t, Load("fixtures/use-in-hook.test.go", fileSuite))
}

func TestCaptureLocationFallsBackGracefully(t *testing.T) {
	row, col := captureLocation()
	assert.GreaterOrEqual(t, row, 0)
	assert.Equal(t, 0, col)
}
