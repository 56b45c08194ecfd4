// Package testworker implements the worker-side test runtime: it loads a
// test file into its own process, spawns a PTY with the configured shell,
// runs the test body, and streams structured events back over stdout
// (§4.E).
package testworker

import (
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/tactrunner/tact/internal/snapshot"
	"github.com/tactrunner/tact/internal/suite"
	"github.com/tactrunner/tact/internal/terminal"
	"github.com/tactrunner/tact/internal/workerpool/wire"
)

// Worker runs one RunRequest at a time, read by Serve and replied to on Out.
// A single Worker instance backs the whole lifetime of a --worker process.
type Worker struct {
	Registry *Registry
	Out      io.Writer
}

// NewWorker builds a Worker writing events to out.
func NewWorker(out io.Writer) *Worker {
	return &Worker{Registry: NewRegistry(), Out: out}
}

// Serve reads RunRequest frames from in until EOF, handling each to
// completion before reading the next — a worker runs exactly one test at
// a time (§5).
func (w *Worker) Serve(in io.Reader) error {
	reader := wire.NewFrameReader(in)
	for {
		var req wire.RunRequest
		if err := reader.ReadFrame(&req); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("testworker: reading request: %w", err)
		}
		w.handle(req)
	}
}

func (w *Worker) emit(ev wire.Event) {
	_ = wire.WriteFrame(w.Out, ev)
}

func (w *Worker) handle(req wire.RunRequest) {
	start := time.Now()
	w.emit(wire.Event{RequestID: req.ID, Kind: wire.EventStarted, T0UnixMS: start.UnixMilli()})

	tc, err := w.Registry.FindTest(req.SourcePath, req.TestID)
	if err != nil {
		w.emit(wire.Event{RequestID: req.ID, Kind: wire.EventError, Message: err.Error(), DurationMS: time.Since(start).Milliseconds()})
		return
	}

	term, err := terminal.Spawn(terminal.SpawnOptions{
		Shell:                terminal.Shell(req.Shell),
		Rows:                 req.Rows,
		Columns:              req.Columns,
		Env:                  req.Env,
		Cwd:                  req.Cwd,
		DefaultExpectTimeout: time.Duration(req.ExpectTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		w.emit(wire.Event{RequestID: req.ID, Kind: wire.EventError, Message: err.Error(), DurationMS: time.Since(start).Milliseconds()})
		return
	}
	defer term.Kill()

	store := &snapshot.FileStore{TestFilePath: req.SourcePath}
	term.BindSnapshots(store, req.TestID, req.UpdateSnapshot)

	runErr := runTestBody(tc, term)
	duration := time.Since(start).Milliseconds()

	for _, status := range term.Snapshots() {
		w.emit(wire.Event{
			RequestID: req.ID,
			Kind:      wire.EventSnapshot,
			Snapshot: &wire.SnapshotStatus{
				Index:   status.Index,
				Outcome: string(status.Outcome),
				Diff:    status.Diff,
			},
		})
	}

	if runErr != nil {
		w.emit(wire.Event{RequestID: req.ID, Kind: wire.EventError, Message: runErr.Error(), DurationMS: duration})
		return
	}
	w.emit(wire.Event{RequestID: req.ID, Kind: wire.EventDone, DurationMS: duration})
}

// runTestBody invokes the test function, converting a panic into an error
// so one misbehaving test cannot take the whole worker process down
// (§4.E "On any thrown/rejected error: emit error with a stringified
// stack").
func runTestBody(tc *suite.TestCase, term *terminal.T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in test %q: %v\n%s", tc.Title, r, debug.Stack())
		}
	}()
	return tc.Fn(term)
}
