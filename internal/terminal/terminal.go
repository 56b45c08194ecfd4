// Package terminal owns the PTY lifecycle, VT emulation, and the polling
// assertion engine tests use to observe a shell's screen contents.
package terminal

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/vito/midterm"
)

// SpawnOptions configures a new Terminal.
type SpawnOptions struct {
	Shell   Shell
	Rows    int
	Columns int
	Env     map[string]string
	Cwd     string

	// DefaultExpectTimeout is used by ToHaveValue when MatchOptions.Timeout
	// is zero; it comes from the resolved Config (§6 "expect.timeout").
	DefaultExpectTimeout time.Duration
}

// T owns a child shell process connected to a PTY master, the virtual
// terminal that models its screen, and the scrollback that has rolled off
// the top of the screen. One T backs exactly one test attempt (§3).
type T struct {
	mu sync.Mutex

	cmd  *exec.Cmd
	ptmx *os.File
	vt   *midterm.Terminal

	rows, cols int
	scrollback []string

	pumpDone chan struct{}
	pumpErr  error

	defaultTimeout time.Duration

	store          SnapshotStore
	testID         string
	seq            int
	snapshots      []SnapshotStatus
	updateSnapshot bool

	// renderOverride lets tests exercise the matcher/snapshot logic without
	// spawning a real PTY; production code never sets it.
	renderOverride *string
}

// Spawn starts the configured shell in a new PTY and begins pumping its
// output into the virtual terminal. The returned T must be released with
// Kill once the attempt is done.
func Spawn(opts SpawnOptions) (*T, error) {
	if opts.Rows <= 0 || opts.Columns <= 0 {
		return nil, fmt.Errorf("terminal: rows and columns must be positive (got %dx%d)", opts.Rows, opts.Columns)
	}
	bin, args, err := opts.Shell.Command()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(bin, args...)
	cmd.Dir = opts.Cwd
	cmd.Env = mergeEnv(os.Environ(), opts.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	vt := midterm.NewTerminal(opts.Rows, opts.Columns)

	t := &T{
		cmd:            cmd,
		vt:             vt,
		rows:           opts.Rows,
		cols:           opts.Columns,
		pumpDone:       make(chan struct{}),
		defaultTimeout: opts.DefaultExpectTimeout,
	}
	// midterm only invokes OnScrollback for lines leaving the primary
	// screen; while the alternate screen is active it does not extend
	// scrollback, which is exactly the §4.F contract this wrapper relies on.
	vt.OnScrollback(func(line midterm.Line) {
		t.mu.Lock()
		t.scrollback = append(t.scrollback, line.Display())
		t.mu.Unlock()
	})

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(opts.Rows), Cols: uint16(opts.Columns)})
	if err != nil {
		return nil, fmt.Errorf("terminal: starting pty: %w", err)
	}
	t.ptmx = ptmx

	go t.pump()
	return t, nil
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			key = kv[:idx]
		}
		if _, overridden := overrides[key]; !overridden {
			out = append(out, kv)
		}
	}
	for k, v := range overrides {
		out = append(out, k+"="+v)
	}
	return out
}

func (t *T) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := t.ptmx.Read(buf)
		if n > 0 {
			t.mu.Lock()
			_, _ = t.vt.Write(buf[:n])
			t.mu.Unlock()
		}
		if err != nil {
			t.mu.Lock()
			t.pumpErr = err
			t.mu.Unlock()
			close(t.pumpDone)
			return
		}
	}
}

// Write sends bytes to the PTY master, simulating user keyboard input.
func (t *T) Write(p []byte) (int, error) {
	return t.ptmx.Write(p)
}

// Resize propagates a window-size change to both the PTY and the VT model.
func (t *T) Resize(rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("terminal: rows and columns must be positive (got %dx%d)", rows, cols)
	}
	t.mu.Lock()
	t.rows, t.cols = rows, cols
	t.vt.Resize(rows, cols)
	t.mu.Unlock()
	return pty.Setsize(t.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// GetViewableBuffer returns the current on-screen grid only.
func (t *T) GetViewableBuffer() [][]rune {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewableBufferLocked()
}

// GetBuffer returns scrollback concatenated with the current screen.
func (t *T) GetBuffer() [][]rune {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bufferLocked()
}

// viewableBufferLocked is GetViewableBuffer's body, callable by code that
// already holds t.mu (render, in particular) without deadlocking on the
// non-reentrant mutex.
func (t *T) viewableBufferLocked() [][]rune {
	return copyGrid(t.vt.Content)
}

// bufferLocked is GetBuffer's body, callable by code that already holds t.mu.
func (t *T) bufferLocked() [][]rune {
	out := make([][]rune, 0, len(t.scrollback)+len(t.vt.Content))
	for _, line := range t.scrollback {
		out = append(out, []rune(line))
	}
	out = append(out, copyGrid(t.vt.Content)...)
	return out
}

func copyGrid(grid [][]rune) [][]rune {
	out := make([][]rune, len(grid))
	for i, row := range grid {
		out[i] = append([]rune(nil), row...)
	}
	return out
}

// Kill terminates the child's process group and releases the PTY master.
// It is safe to call more than once.
func (t *T) Kill() error {
	if t.cmd.Process != nil {
		_ = syscall.Kill(-t.cmd.Process.Pid, syscall.SIGKILL)
		_, _ = t.cmd.Process.Wait()
	}
	if t.ptmx != nil {
		return t.ptmx.Close()
	}
	return nil
}

// renderGrid joins cells within a row with no separator and rows with no
// separator, preserving trailing spaces, per §4.F's matcher contract.
func renderGrid(grid [][]rune) string {
	var sb strings.Builder
	for _, row := range grid {
		sb.WriteString(string(row))
	}
	return sb.String()
}

// render must be called with t.mu already held: it reads buffer state
// directly rather than through GetBuffer/GetViewableBuffer, whose own
// locking would deadlock against the caller's.
func (t *T) render(full bool) string {
	if t.renderOverride != nil {
		return *t.renderOverride
	}
	if full {
		return renderGrid(t.bufferLocked())
	}
	return renderGrid(t.viewableBufferLocked())
}
