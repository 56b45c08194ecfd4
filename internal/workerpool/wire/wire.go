// Package wire defines the length-prefixed JSON frame protocol exchanged
// between the orchestrator and a worker process (§4.D, §9 "a length-
// prefixed message stream over stdio").
package wire

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrameBytes bounds a single frame so a corrupt or malicious length
// prefix cannot force an unbounded allocation.
const maxFrameBytes = 64 << 20

// RunRequest asks a worker to run one test attempt (§4.D "runTest(testId,
// suiteSummary, sourcePath)"). Options are the already-resolved effective
// values for this test, not a suite chain the worker would need to walk.
type RunRequest struct {
	ID              string            `json:"id"`
	TestID          string            `json:"testId"`
	SourcePath      string            `json:"sourcePath"`
	ProjectName     string            `json:"projectName"`
	Shell           string            `json:"shell"`
	Rows            int               `json:"rows"`
	Columns         int               `json:"columns"`
	Env             map[string]string `json:"env,omitempty"`
	Cwd             string            `json:"cwd,omitempty"`
	TimeoutMS       int64             `json:"timeoutMs"`
	ExpectTimeoutMS int64             `json:"expectTimeoutMs"`
	UpdateSnapshot  bool              `json:"updateSnapshot"`
}

// EventKind classifies one streamed worker event (§4.D).
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventSnapshot EventKind = "snapshot"
	EventError    EventKind = "error"
	EventDone     EventKind = "done"
)

// SnapshotStatus is the wire form of terminal.SnapshotStatus.
type SnapshotStatus struct {
	Index   int    `json:"index"`
	Outcome string `json:"outcome"`
	Diff    string `json:"diff,omitempty"`
}

// Event is one message in the stream a worker emits for a single RunRequest.
type Event struct {
	RequestID  string          `json:"requestId"`
	Kind       EventKind       `json:"kind"`
	T0UnixMS   int64           `json:"t0,omitempty"`
	Message    string          `json:"message,omitempty"`
	DurationMS int64           `json:"durationMs,omitempty"`
	Snapshot   *SnapshotStatus `json:"snapshot,omitempty"`
}

// IsTerminal reports whether kind ends a RunRequest's event stream.
func (e Event) IsTerminal() bool {
	return e.Kind == EventError || e.Kind == EventDone
}

// WriteFrame writes v as a 4-byte big-endian length prefix followed by its
// JSON encoding.
func WriteFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: encoding frame: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: writing frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wire: writing frame body: %w", err)
	}
	return nil
}

// FrameReader reads length-prefixed frames from an underlying stream.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps r for frame-at-a-time reading.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// ReadFrame reads the next frame and unmarshals it into v.
func (fr *FrameReader) ReadFrame(v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameBytes {
		return fmt.Errorf("wire: frame of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return fmt.Errorf("wire: reading frame body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("wire: decoding frame: %w", err)
	}
	return nil
}
