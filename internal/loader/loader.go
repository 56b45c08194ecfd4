// Package loader populates a suite.Suite tree by running each test file's
// registration function against an explicit *Context, replacing the
// ambient-global declaration trick a dynamic-language loader would use
// (§9, §4.B).
package loader

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/tactrunner/tact/internal/suite"
)

// RegisterFunc is a test file's entry point, generated/compiled once per
// source file and installed into the registry via the file's own init().
type RegisterFunc func(c *Context)

var (
	registryMu sync.Mutex
	registry   = map[string]RegisterFunc{}
)

// Register installs a file's registration function under its resolved
// loadable path. Called from generated code's init(), never directly by
// test authors.
func Register(path string, fn RegisterFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[path] = fn
}

func lookup(path string) (RegisterFunc, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	fn, ok := registry[path]
	return fn, ok
}

// Context is the ambient suite, made explicit. One Context is created per
// file load; Describe pushes a child context whose Use/Test calls target
// the nested describe suite, then pops back to the parent.
type Context struct {
	current *suite.Suite
	inHook  bool
}

// NewFileContext creates the Context for loading a single test file,
// already holding the file's own Suite as current.
func NewFileContext(fileSuite *suite.Suite) *Context {
	return &Context{current: fileSuite}
}

// Load resolves path in the registry and runs its Register function
// against a fresh Context rooted at fileSuite. Returns an error if no file
// was registered under path — callers are expected to have compiled/loaded
// the source first (cache/transform resolution, out of this package's
// scope).
func Load(path string, fileSuite *suite.Suite) error {
	fn, ok := lookup(path)
	if !ok {
		return fmt.Errorf("loader: no test file registered for %q", path)
	}
	fn(NewFileContext(fileSuite))
	return nil
}

// Describe creates a child describe suite, makes it ambient for the
// duration of cb, then restores the previous ambient suite (§4.B).
func (c *Context) Describe(title string, cb func(c *Context)) {
	child := &suite.Suite{Title: title, Kind: suite.KindDescribe}
	c.current.AddChild(child)

	nested := &Context{current: child}
	cb(nested)
}

// Test appends a plain test case to the ambient suite.
func (c *Context) Test(title string, fn suite.TestFunc) {
	c.addTest(title, fn, suite.AnnotationNone)
}

// Skip appends a test case annotated skip: it remains in the selection set
// but is emitted as skipped without dispatch (§4.C).
func (c *Context) Skip(title string, fn suite.TestFunc) {
	c.addTest(title, fn, suite.AnnotationSkip)
}

// Fail appends a test case annotated fail: a worker failure for this test
// is recorded as expected, and a worker success as unexpected (§4.C's
// status-mapping table).
func (c *Context) Fail(title string, fn suite.TestFunc) {
	c.addTest(title, fn, suite.AnnotationFail)
}

// Only appends a test case annotated only. If any test in the selected set
// carries only, the orchestrator retains only only-annotated tests (§4.C).
func (c *Context) Only(title string, fn suite.TestFunc) {
	c.addTest(title, fn, suite.AnnotationOnly)
}

func (c *Context) addTest(title string, fn suite.TestFunc, annotation suite.Annotation) {
	row, col := captureLocation()
	tc := &suite.TestCase{
		Title:      title,
		Location:   suite.Location{Row: row, Column: col},
		Fn:         fn,
		Annotation: annotation,
	}
	c.current.AddTest(tc)
	tc.ID = suite.ComputeID(tc)
}

// Use merges options into the ambient suite. It is an error to call Use
// from within a beforeEach/beforeAll-style hook (§4.B); callers that run
// hooks must run them through RunHook so the context is marked.
func (c *Context) Use(opts suite.Options) error {
	if c.inHook {
		return fmt.Errorf("loader: test.use called from within a hook; options must be declared at describe/file scope")
	}
	c.current.Options = c.current.Options.Merge(opts)
	return nil
}

// markInHook flags the context as currently executing inside a hook body,
// so a nested Use call can be rejected per §4.B. Called only by RunHook.
func (c *Context) markInHook(inHook bool) {
	c.inHook = inHook
}

// RunHook executes fn with the context marked as inside a hook, rejecting
// any Use call fn performs.
func (c *Context) RunHook(fn func()) {
	c.markInHook(true)
	defer c.markInHook(false)
	fn()
}

// captureLocation walks the call stack to find the first frame outside
// this package, used as the declaration's {row, column} (§4.B, §9: "best-
// effort (0,0) fallback via runtime.Caller"). Go exposes no column
// information for a call site, so column is always 0; only the row is
// meaningful, and even that falls back to 0 on failure.
func captureLocation() (row, column int) {
	var pcs [32]uintptr
	n := runtime.Callers(2, pcs[:])
	if n == 0 {
		return 0, 0
	}
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isLoaderFrame(frame.Function) {
			return frame.Line, 0
		}
		if !more {
			break
		}
	}
	return 0, 0
}

func isLoaderFrame(fn string) bool {
	return len(fn) >= len(loaderPkgPrefix) && fn[:len(loaderPkgPrefix)] == loaderPkgPrefix
}

const loaderPkgPrefix = "github.com/tactrunner/tact/internal/loader."
