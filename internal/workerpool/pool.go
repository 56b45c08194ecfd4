// Package workerpool maintains a fixed-size set of worker processes, each
// a re-exec of the current binary in --worker mode, and multiplexes
// RunRequest calls across them with per-call timeout and crash recovery
// (§4.D).
package workerpool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/tactrunner/tact/internal/workerpool/wire"
)

const maxStderrExcerpt = 4 << 10

// DefaultSize returns the pool size spec.md §4.D specifies: half the
// logical CPU count, at least one. gopsutil is used instead of
// runtime.NumCPU so the count reflects the same host-fact source the
// teacher favors elsewhere.
func DefaultSize() int {
	counts, err := cpu.Counts(true)
	if err != nil || counts <= 0 {
		return 1
	}
	size := counts / 2
	if size < 1 {
		size = 1
	}
	return size
}

// Outcome is the result of one RunRequest dispatched through the pool.
// Infra is set for pool-level failures (timeout, crash, stream close) that
// are not the test body's own assertion/error outcome; Failure is the
// test-reported failure message, if any.
type Outcome struct {
	DurationMS int64
	Failure    string
	Snapshots  []wire.SnapshotStatus
	Infra      error
}

// Pool supervises BinaryPath re-exec'd in --worker mode, up to Size
// concurrent workers, recycling a worker after each call so a later
// crash or timeout never corrupts the next test's protocol stream.
type Pool struct {
	BinaryPath string
	Size       int

	// spawnEnv appends extra environment variables to each spawned
	// worker's process, beyond its inherited os.Environ(). Production
	// code never sets this; tests use it to redirect BinaryPath's re-exec
	// into a test-only helper entry point.
	spawnEnv []string

	mu      sync.Mutex
	idle    []*worker
	started int
	closed  bool
}

// NewPool constructs a Pool. Workers are spawned lazily, on first use, up
// to Size concurrently outstanding.
func NewPool(binaryPath string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{BinaryPath: binaryPath, Size: size}
}

type worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	frames *wire.FrameReader
	stderr *bytes.Buffer
}

func (p *Pool) spawnWorker() (*worker, error) {
	cmd := exec.Command(p.BinaryPath, "--worker")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("workerpool: opening worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("workerpool: opening worker stdout: %w", err)
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &boundedWriter{buf: &stderrBuf, limit: maxStderrExcerpt}
	if len(p.spawnEnv) > 0 {
		cmd.Env = append(append([]string(nil), os.Environ()...), p.spawnEnv...)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("workerpool: starting worker: %w", err)
	}

	return &worker{
		cmd:    cmd,
		stdin:  stdin,
		frames: wire.NewFrameReader(stdout),
		stderr: &stderrBuf,
	}, nil
}

func (w *worker) kill() {
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	_ = w.cmd.Wait()
}

// acquire returns an idle worker, spawning a new one if none is idle.
// Size is enforced by the orchestrator's own bounded dispatch (§4.C,
// golang.org/x/sync/errgroup with SetLimit(Size)), not by blocking here;
// acquire only needs to avoid spawning when a recycled worker is on hand.
func (p *Pool) acquire() (*worker, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New("workerpool: pool is shut down")
	}
	if len(p.idle) > 0 {
		w := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()
		return w, nil
	}
	p.started++
	p.mu.Unlock()

	return p.spawnWorker()
}

func (p *Pool) release(w *worker, healthy bool) {
	if !healthy {
		w.kill()
		p.mu.Lock()
		p.started--
		p.mu.Unlock()
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		w.kill()
		return
	}
	p.idle = append(p.idle, w)
	p.mu.Unlock()
}

// Run dispatches req to an available worker and waits for its terminal
// event, or for timeout to elapse, or for ctx to be cancelled. On timeout
// the worker is killed (not just abandoned) and replaced; on crash or
// premature stream close, the same recovery path applies (§4.D).
func (p *Pool) Run(ctx context.Context, req wire.RunRequest, timeout time.Duration) (*Outcome, error) {
	w, err := p.acquire()
	if err != nil {
		return nil, err
	}

	if err := wire.WriteFrame(w.stdin, req); err != nil {
		p.release(w, false)
		return nil, fmt.Errorf("workerpool: dispatching %s: %w", req.TestID, err)
	}

	type frameResult struct {
		event wire.Event
		err   error
	}
	events := make(chan frameResult, 1)

	go func() {
		for {
			var ev wire.Event
			err := w.frames.ReadFrame(&ev)
			events <- frameResult{event: ev, err: err}
			if err != nil || ev.IsTerminal() {
				return
			}
		}
	}()

	deadline := time.Now().Add(timeout)
	if timeout <= 0 {
		deadline = time.Now().Add(24 * time.Hour)
	}

	var snapshots []wire.SnapshotStatus
	for {
		remaining := time.Until(deadline)
		var timer *time.Timer
		var timeoutCh <-chan time.Time
		if timeout > 0 {
			timer = time.NewTimer(remaining)
			timeoutCh = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			p.release(w, false)
			return nil, ctx.Err()

		case <-timeoutCh:
			p.release(w, false)
			return &Outcome{
				Infra: fmt.Errorf("workerpool: %s exceeded %d ms timeout", req.TestID, timeout.Milliseconds()),
			}, nil

		case fr := <-events:
			if timer != nil {
				timer.Stop()
			}
			if fr.err != nil {
				excerpt := w.stderr.String()
				p.release(w, false)
				if errors.Is(fr.err, io.EOF) {
					return &Outcome{Infra: fmt.Errorf("workerpool: worker crashed running %s: %s", req.TestID, excerpt)}, nil
				}
				return &Outcome{Infra: fmt.Errorf("workerpool: reading events for %s: %w (stderr: %s)", req.TestID, fr.err, excerpt)}, nil
			}

			ev := fr.event
			switch ev.Kind {
			case wire.EventSnapshot:
				if ev.Snapshot != nil {
					snapshots = append(snapshots, *ev.Snapshot)
				}
			case wire.EventError:
				p.release(w, true)
				return &Outcome{DurationMS: ev.DurationMS, Failure: ev.Message, Snapshots: snapshots}, nil
			case wire.EventDone:
				p.release(w, true)
				return &Outcome{DurationMS: ev.DurationMS, Snapshots: snapshots}, nil
			}
		}
	}
}

// Shutdown kills every idle worker and refuses further acquisitions.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, w := range idle {
		w.kill()
	}
}

type boundedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (b *boundedWriter) Write(p []byte) (int, error) {
	if b.buf.Len() < b.limit {
		remaining := b.limit - b.buf.Len()
		if remaining > len(p) {
			remaining = len(p)
		}
		b.buf.Write(p[:remaining])
	}
	return len(p), nil
}
