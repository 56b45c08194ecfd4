// Package orchestrator walks the built suite tree, applies selection,
// enforces retries and the global timeout, dispatches tests to the worker
// pool, and feeds the reporter (§4.C).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tactrunner/tact/internal/config"
	"github.com/tactrunner/tact/internal/reporter"
	"github.com/tactrunner/tact/internal/suite"
	"github.com/tactrunner/tact/internal/terminal"
	"github.com/tactrunner/tact/internal/workerpool"
	"github.com/tactrunner/tact/internal/workerpool/wire"
)

// ExecutionOptions are the per-run flags the CLI collects (§4.C).
type ExecutionOptions struct {
	UpdateSnapshot bool
	TestFilter     []string
}

// ErrGlobalTimeout is returned by Run when Config.globalTimeout fires
// before all tests settle (§4.C, §8 S6).
var ErrGlobalTimeout = errors.New("orchestrator: global timeout fired")

// Dispatcher is the subset of *workerpool.Pool the orchestrator depends
// on, narrowed to a testable interface.
type Dispatcher interface {
	Run(ctx context.Context, req wire.RunRequest, timeout time.Duration) (*workerpool.Outcome, error)
}

// Orchestrator ties together a built suite tree, its Config, a worker
// Dispatcher, and a Reporter to run one selection of tests to completion.
type Orchestrator struct {
	Pool     Dispatcher
	PoolSize int
	Config   *config.Config
	Reporter reporter.Reporter

	reportMu sync.Mutex
}

// Run selects tests from root per opts, dispatches them concurrently
// (bounded by the pool size), and returns the reporter's failure count. A
// non-nil error means a fatal configuration or global-timeout condition;
// it is distinct from individual test failures, which are folded into the
// returned count instead.
func (o *Orchestrator) Run(ctx context.Context, root *suite.Suite, opts ExecutionOptions) (int, error) {
	tests, err := Select(root, opts.TestFilter)
	if err != nil {
		return 0, err
	}

	shells := Shells(tests)
	shellEnv, err := prepareShells(shells)
	if err != nil {
		return 0, err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if gt := o.Config.GlobalTimeout(); gt > 0 {
		runCtx, cancel = context.WithTimeout(ctx, gt)
		defer cancel()
	}

	o.Reporter.Start(len(tests), shells)

	poolSize := o.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(poolSize)

	for _, tc := range tests {
		tc := tc
		g.Go(func() error {
			o.runTest(gctx, tc, opts, shellEnv)
			return nil
		})
	}

	waitErr := g.Wait()

	if runCtx.Err() != nil && ctx.Err() == nil {
		if shutdowner, ok := o.Pool.(interface{ Shutdown() }); ok {
			shutdowner.Shutdown()
		}
		return 0, fmt.Errorf("orchestrator: global timeout (%d ms) exceeded: %w", o.Config.GlobalTimeout().Milliseconds(), ErrGlobalTimeout)
	}
	if waitErr != nil {
		return 0, waitErr
	}

	failures := o.Reporter.End(root)
	return failures, nil
}

// prepareShells runs one-time shell setup for every shell the selection
// needs (currently just zsh's scratch ZDOTDIR) and returns the resulting
// environment override, merged into every dispatched test that uses that
// shell (§4.C "Pre-run hooks").
func prepareShells(shells []string) (map[string]map[string]string, error) {
	env := map[string]map[string]string{}
	for _, shell := range shells {
		if terminal.Shell(shell).NeedsZshSetup() {
			zshEnv, err := terminal.PrepareZshDotfiles()
			if err != nil {
				return nil, fmt.Errorf("orchestrator: preparing zsh: %w", err)
			}
			env[shell] = zshEnv
		}
	}
	return env, nil
}

// runTest runs every attempt for tc sequentially (attempts within one test
// must never run concurrently, §5), recording results and notifying the
// reporter once the test's outcome is final.
func (o *Orchestrator) runTest(ctx context.Context, tc *suite.TestCase, opts ExecutionOptions, shellEnv map[string]map[string]string) {
	if tc.Annotation == suite.AnnotationSkip {
		result := suite.Result{Status: suite.StatusSkipped}
		tc.Results = append(tc.Results, result)
		o.reportEnd(tc, result)
		return
	}

	maxAttempts := o.Config.Retries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	eff := tc.Suite.EffectiveOptions()
	req := o.withExpectTimeout(buildRequest(tc, eff, opts.UpdateSnapshot, shellEnv))

	for attempt := 0; attempt < maxAttempts; attempt++ {
		req.ID = uuid.New().String()

		outcome, err := o.Pool.Run(ctx, req, o.Config.Timeout())
		if err != nil {
			// context cancellation (global timeout, run aborted): stop
			// retrying and leave whatever results already exist.
			return
		}

		result := classify(tc.Annotation, outcome)
		tc.Results = append(tc.Results, result)

		if result.Status == suite.StatusExpected || result.Status == suite.StatusSkipped {
			break
		}
	}

	o.reportEnd(tc, tc.Results[len(tc.Results)-1])
}

func (o *Orchestrator) reportEnd(tc *suite.TestCase, result suite.Result) {
	o.reportMu.Lock()
	defer o.reportMu.Unlock()
	o.Reporter.EndTest(tc, result)
}

func buildRequest(tc *suite.TestCase, eff suite.Options, updateSnapshot bool, shellEnv map[string]map[string]string) wire.RunRequest {
	shell := ""
	if eff.Shell != nil {
		shell = *eff.Shell
	}
	rows, cols := 30, 80
	if eff.Rows != nil {
		rows = *eff.Rows
	}
	if eff.Columns != nil {
		cols = *eff.Columns
	}
	cwd := ""
	if eff.Cwd != nil {
		cwd = *eff.Cwd
	}

	env := map[string]string{}
	for k, v := range eff.Env {
		env[k] = v
	}
	for k, v := range shellEnv[shell] {
		env[k] = v
	}

	projectName := ""
	for s := tc.Suite; s != nil; s = s.Parent {
		if s.Kind == suite.KindProject {
			projectName = s.Title
			break
		}
	}

	return wire.RunRequest{
		TestID:         tc.ID,
		SourcePath:     resolvedPath(tc),
		ProjectName:    projectName,
		Shell:          shell,
		Rows:           rows,
		Columns:        cols,
		Env:            env,
		Cwd:            cwd,
		UpdateSnapshot: updateSnapshot,
	}
}

func (o *Orchestrator) withExpectTimeout(req wire.RunRequest) wire.RunRequest {
	req.ExpectTimeoutMS = o.Config.ExpectTimeout().Milliseconds()
	return req
}

// classify maps a worker outcome plus the test's annotation onto a
// recorded status, per §4.C's table. A timeout or crash (outcome.Infra !=
// nil) is always unexpected, regardless of annotation.
func classify(annotation suite.Annotation, outcome *workerpool.Outcome) suite.Result {
	if outcome.Infra != nil {
		return suite.Result{Status: suite.StatusUnexpected, Error: outcome.Infra.Error(), DurationMS: outcome.DurationMS}
	}

	succeeded := outcome.Failure == ""
	result := suite.Result{DurationMS: outcome.DurationMS, Error: outcome.Failure, Snapshots: toSuiteSnapshots(outcome.Snapshots)}

	switch annotation {
	case suite.AnnotationFail:
		if succeeded {
			result.Status = suite.StatusUnexpected
			result.Error = "test annotated fail but passed"
		} else {
			result.Status = suite.StatusExpected
			result.Error = ""
		}
	default:
		if succeeded {
			result.Status = suite.StatusExpected
		} else {
			result.Status = suite.StatusUnexpected
		}
	}
	return result
}

func toSuiteSnapshots(ws []wire.SnapshotStatus) []terminal.SnapshotStatus {
	if len(ws) == 0 {
		return nil
	}
	out := make([]terminal.SnapshotStatus, len(ws))
	for i, w := range ws {
		out[i] = terminal.SnapshotStatus{Index: w.Index, Outcome: terminal.SnapshotOutcome(w.Outcome), Diff: w.Diff}
	}
	return out
}
