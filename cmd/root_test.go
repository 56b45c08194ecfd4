package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tactrunner/tact/internal/reporter"
)

func TestRootCmdDefaultFlags(t *testing.T) {
	root := RootCmd()

	configFlag, err := root.Flags().GetString(flagConfig)
	require.NoError(t, err)
	assert.Equal(t, "./tact.config.yaml", configFlag)

	reporterFlag, err := root.Flags().GetString(flagReporter)
	require.NoError(t, err)
	assert.Equal(t, "console", reporterFlag)

	update, err := root.Flags().GetBool(flagUpdateSnapshot)
	require.NoError(t, err)
	assert.False(t, update)
}

func TestRootCmdWorkerFlagIsHidden(t *testing.T) {
	root := RootCmd()
	flag := root.Flags().Lookup(flagWorker)
	require.NotNil(t, flag)
	assert.True(t, flag.Hidden)
}

func TestBuildReporterKnownNames(t *testing.T) {
	for _, name := range []string{"", "console", "human", "json", "junit"} {
		rep, err := buildReporter(name, false)
		require.NoError(t, err, name)
		assert.NotNil(t, rep)
	}
}

func TestBuildReporterUnknownNameErrors(t *testing.T) {
	_, err := buildReporter("xml", false)
	assert.Error(t, err)
}

func TestResolvePoolSizeDefaultsWhenUnset(t *testing.T) {
	os.Unsetenv(maximumNumberWorkersEnv)
	size, err := resolvePoolSize()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, size, 1)
}

func TestResolvePoolSizeHonorsEnvOverride(t *testing.T) {
	t.Setenv(maximumNumberWorkersEnv, "3")
	size, err := resolvePoolSize()
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestResolvePoolSizeRejectsInvalidValue(t *testing.T) {
	t.Setenv(maximumNumberWorkersEnv, "not-a-number")
	_, err := resolvePoolSize()
	assert.Error(t, err)
}

func TestResolvePoolSizeRejectsZeroOrNegative(t *testing.T) {
	t.Setenv(maximumNumberWorkersEnv, "0")
	_, err := resolvePoolSize()
	assert.Error(t, err)
}

func TestFailureCountErrorCarriesExitCode(t *testing.T) {
	err := &FailureCountError{Count: 7}
	assert.Equal(t, 7, err.Count)
	assert.Contains(t, err.Error(), "7 test(s) failed")
}

func TestBuildReporterProducesDistinctTypes(t *testing.T) {
	console, err := buildReporter("console", false)
	require.NoError(t, err)
	_, ok := console.(*reporter.Console)
	assert.True(t, ok)

	human, err := buildReporter("human", false)
	require.NoError(t, err)
	_, ok = human.(*reporter.Human)
	assert.True(t, ok)
}
