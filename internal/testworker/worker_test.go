package testworker

import (
	"bytes"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tactrunner/tact/internal/loader"
	"github.com/tactrunner/tact/internal/terminal"
	"github.com/tactrunner/tact/internal/workerpool/wire"
)

func readEvents(t *testing.T, buf *bytes.Buffer, n int) []wire.Event {
	t.Helper()
	reader := wire.NewFrameReader(buf)
	var out []wire.Event
	for i := 0; i < n; i++ {
		var ev wire.Event
		require.NoError(t, reader.ReadFrame(&ev))
		out = append(out, ev)
	}
	return out
}

func TestHandleUnknownTestIDEmitsStartedThenError(t *testing.T) {
	loader.Register("fixtures/worker-empty.test.go", func(c *loader.Context) {})

	var out bytes.Buffer
	w := NewWorker(&out)
	w.handle(wire.RunRequest{ID: "r1", TestID: "missing", SourcePath: "fixtures/worker-empty.test.go"})

	events := readEvents(t, &out, 2)
	assert.Equal(t, wire.EventStarted, events[0].Kind)
	assert.Equal(t, wire.EventError, events[1].Kind)
	assert.Contains(t, events[1].Message, "missing")
}

func TestHandleUnsupportedShellEmitsError(t *testing.T) {
	loader.Register("fixtures/worker-badshell.test.go", func(c *loader.Context) {
		c.Test("irrelevant", func(t *terminal.T) error { return nil })
	})

	var out bytes.Buffer
	w := NewWorker(&out)

	fileSuite, err := w.Registry.fileSuite("fixtures/worker-badshell.test.go")
	require.NoError(t, err)
	testID := fileSuite.Tests()[0].ID

	w.handle(wire.RunRequest{ID: "r2", TestID: testID, SourcePath: "fixtures/worker-badshell.test.go", Shell: "not-a-real-shell", Rows: 24, Columns: 80})

	events := readEvents(t, &out, 2)
	assert.Equal(t, wire.EventStarted, events[0].Kind)
	assert.Equal(t, wire.EventError, events[1].Kind)
}

func TestHandlePanicInTestBodyIsRecovered(t *testing.T) {
	loader.Register("fixtures/worker-panic.test.go", func(c *loader.Context) {
		c.Test("panics", func(t *terminal.T) error { panic("boom") })
	})

	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}

	var out bytes.Buffer
	w := NewWorker(&out)
	fileSuite, err := w.Registry.fileSuite("fixtures/worker-panic.test.go")
	require.NoError(t, err)
	testID := fileSuite.Tests()[0].ID

	w.handle(wire.RunRequest{ID: "r3", TestID: testID, SourcePath: "fixtures/worker-panic.test.go", Shell: "bash", Rows: 24, Columns: 80})

	events := readEvents(t, &out, 2)
	assert.Equal(t, wire.EventStarted, events[0].Kind)
	assert.Equal(t, wire.EventError, events[1].Kind)
	assert.Contains(t, events[1].Message, "panic")
	assert.Contains(t, events[1].Message, "boom")
}

func TestHandlePassingTestOverRealPTY(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}

	loader.Register("fixtures/worker-passing.test.go", func(c *loader.Context) {
		c.Test("prints hello", func(term *terminal.T) error {
			if _, err := term.Write([]byte("echo hello-from-worker\n")); err != nil {
				return err
			}
			return term.ToHaveValue("hello-from-worker", terminal.MatchOptions{Timeout: 3 * time.Second})
		})
	})

	var out bytes.Buffer
	w := NewWorker(&out)
	fileSuite, err := w.Registry.fileSuite("fixtures/worker-passing.test.go")
	require.NoError(t, err)
	testID := fileSuite.Tests()[0].ID

	w.handle(wire.RunRequest{ID: "r4", TestID: testID, SourcePath: "fixtures/worker-passing.test.go", Shell: "bash", Rows: 24, Columns: 80})

	events := readEvents(t, &out, 2)
	assert.Equal(t, wire.EventStarted, events[0].Kind)
	assert.Equal(t, wire.EventDone, events[1].Kind)
}

func TestServeProcessesMultipleRequestsSequentially(t *testing.T) {
	loader.Register("fixtures/worker-serve.test.go", func(c *loader.Context) {
		c.Test("one", func(t *terminal.T) error { return nil })
		c.Test("two", func(t *terminal.T) error { return nil })
	})

	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}

	var out bytes.Buffer
	w := NewWorker(&out)
	fileSuite, err := w.Registry.fileSuite("fixtures/worker-serve.test.go")
	require.NoError(t, err)
	tests := fileSuite.Tests()
	require.Len(t, tests, 2)

	var in bytes.Buffer
	require.NoError(t, wire.WriteFrame(&in, wire.RunRequest{ID: "a", TestID: tests[0].ID, SourcePath: "fixtures/worker-serve.test.go", Shell: "bash", Rows: 24, Columns: 80}))
	require.NoError(t, wire.WriteFrame(&in, wire.RunRequest{ID: "b", TestID: tests[1].ID, SourcePath: "fixtures/worker-serve.test.go", Shell: "bash", Rows: 24, Columns: 80}))

	require.NoError(t, w.Serve(&in))

	events := readEvents(t, &out, 4)
	assert.Equal(t, "a", events[0].RequestID)
	assert.Equal(t, wire.EventDone, events[1].Kind)
	assert.Equal(t, "b", events[2].RequestID)
	assert.Equal(t, wire.EventDone, events[3].Kind)
}
