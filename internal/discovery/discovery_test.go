package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tactrunner/tact/internal/config"
	"github.com/tactrunner/tact/internal/loader"
	"github.com/tactrunner/tact/internal/suite"
	"github.com/tactrunner/tact/internal/terminal"
)

func writeFixture(t *testing.T, root, rel string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("// fixture\n"), 0o644))
}

func loadConfig(t *testing.T, testMatch string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tact.config.yaml")
	contents := "projects:\n  - name: default\n    testMatch: \"" + testMatch + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestBuildLoadsMatchingFilesIntoProjectTree(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "prompt.test.go")
	writeFixture(t, root, "sub/nested.test.go")
	writeFixture(t, root, "README.md")

	loader.Register("prompt.test.go", func(c *loader.Context) {
		c.Test("shows prompt", func(t *terminal.T) error { return nil })
	})
	loader.Register(filepath.ToSlash(filepath.Join("sub", "nested.test.go")), func(c *loader.Context) {
		c.Test("nested case", func(t *terminal.T) error { return nil })
	})

	cfg := loadConfig(t, "**/*.test.go")

	tree, err := Build(cfg, root, nil)
	require.NoError(t, err)

	projects := tree.Children()
	require.Len(t, projects, 1)
	assert.Equal(t, suite.KindProject, projects[0].Kind)
	assert.Equal(t, "default", projects[0].Title)

	files := projects[0].Children()
	require.Len(t, files, 2)

	allTests := tree.AllTests()
	require.Len(t, allTests, 2)
}

func TestBuildReturnsErrorForUnregisteredMatch(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "orphan.test.go")

	cfg := loadConfig(t, "**/*.test.go")

	_, err := Build(cfg, root, nil)
	assert.Error(t, err)
}

func TestBuildSkipsDotTactDirectory(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, ".tact/cache/stale.test.go")
	writeFixture(t, root, "visible.test.go")

	loader.Register("visible.test.go", func(c *loader.Context) {})

	cfg := loadConfig(t, "**/*.test.go")

	tree, err := Build(cfg, root, nil)
	require.NoError(t, err)
	assert.Len(t, tree.Children()[0].Children(), 1)
}
