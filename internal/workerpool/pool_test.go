package workerpool

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tactrunner/tact/internal/workerpool/wire"
)

// TestMain lets this test binary double as the fake worker process, the
// standard os/exec self-re-exec testing idiom: a real "tact --worker"
// binary is not available to a unit test, so the test binary re-execs
// itself under a marker environment variable and drives the protocol from
// runHelperWorker instead.
func TestMain(m *testing.M) {
	if os.Getenv("TACT_POOL_TEST_HELPER") == "1" {
		runHelperWorker()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func runHelperWorker() {
	reader := wire.NewFrameReader(os.Stdin)
	var req wire.RunRequest
	if err := reader.ReadFrame(&req); err != nil {
		os.Exit(1)
	}

	switch os.Getenv("TACT_POOL_TEST_BEHAVIOR") {
	case "crash":
		os.Exit(1)

	case "hang":
		select {} // simulate a worker that never emits a terminal event

	case "fail":
		_ = wire.WriteFrame(os.Stdout, wire.Event{RequestID: req.ID, Kind: wire.EventError, Message: "assertion failed", DurationMS: 12})

	default:
		_ = wire.WriteFrame(os.Stdout, wire.Event{RequestID: req.ID, Kind: wire.EventStarted})
		_ = wire.WriteFrame(os.Stdout, wire.Event{RequestID: req.ID, Kind: wire.EventSnapshot, Snapshot: &wire.SnapshotStatus{Index: 0, Outcome: "matched"}})
		_ = wire.WriteFrame(os.Stdout, wire.Event{RequestID: req.ID, Kind: wire.EventDone, DurationMS: 42})
	}
}

func poolForTest(t *testing.T, behavior string) *Pool {
	t.Helper()
	self, err := os.Executable()
	require.NoError(t, err)

	pool := NewPool(self, 2)
	// NewPool's BinaryPath normally points at the real "tact" binary; the
	// test instead points it at this test binary and sets spawnEnv so that
	// TestMain runs runHelperWorker in the spawned process.
	pool.BinaryPath = self
	pool.spawnEnv = []string{
		"TACT_POOL_TEST_HELPER=1",
		"TACT_POOL_TEST_BEHAVIOR=" + behavior,
	}
	return pool
}

func TestRunSuccessPath(t *testing.T) {
	pool := poolForTest(t, "ok")
	outcome, err := pool.Run(context.Background(), wire.RunRequest{ID: "r1", TestID: "suite > test"}, time.Second)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Nil(t, outcome.Infra)
	assert.Empty(t, outcome.Failure)
	assert.EqualValues(t, 42, outcome.DurationMS)
	require.Len(t, outcome.Snapshots, 1)
	assert.Equal(t, "matched", outcome.Snapshots[0].Outcome)
}

func TestRunFailurePath(t *testing.T) {
	pool := poolForTest(t, "fail")
	outcome, err := pool.Run(context.Background(), wire.RunRequest{ID: "r2", TestID: "suite > test"}, time.Second)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Nil(t, outcome.Infra)
	assert.Equal(t, "assertion failed", outcome.Failure)
}

func TestRunCrashIsReportedAsInfra(t *testing.T) {
	pool := poolForTest(t, "crash")
	outcome, err := pool.Run(context.Background(), wire.RunRequest{ID: "r3", TestID: "suite > test"}, 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.Error(t, outcome.Infra)
}

func TestRunTimeoutKillsWorker(t *testing.T) {
	pool := poolForTest(t, "hang")
	outcome, err := pool.Run(context.Background(), wire.RunRequest{ID: "r4", TestID: "suite > test"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.Error(t, outcome.Infra)
	assert.Contains(t, outcome.Infra.Error(), "timeout")
}

func TestRunRecoversAfterTimeoutWithFreshWorker(t *testing.T) {
	pool := poolForTest(t, "hang")
	_, err := pool.Run(context.Background(), wire.RunRequest{ID: "r5", TestID: "a"}, 100*time.Millisecond)
	require.NoError(t, err)

	pool.spawnEnv = []string{
		"TACT_POOL_TEST_HELPER=1",
		"TACT_POOL_TEST_BEHAVIOR=ok",
	}
	outcome, err := pool.Run(context.Background(), wire.RunRequest{ID: "r6", TestID: "b"}, time.Second)
	require.NoError(t, err)
	assert.Nil(t, outcome.Infra)
}

func TestDefaultSizeIsAtLeastOne(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultSize(), 1)
}

func TestBoundedWriterTruncates(t *testing.T) {
	var buf bytes.Buffer
	w := &boundedWriter{buf: &buf, limit: 4}
	n, err := w.Write([]byte("abcdefgh"))
	require.NoError(t, err)
	assert.Equal(t, 8, n) // Write always reports the full length, per io.Writer
	assert.Equal(t, "abcd", buf.String())
}
