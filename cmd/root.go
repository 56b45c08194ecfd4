// Package cmd wires the tact binary's single root command: flag parsing,
// config/discovery/worker-pool assembly, and the hidden worker re-exec
// entry point (§6).
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tactrunner/tact/internal/cache"
	"github.com/tactrunner/tact/internal/config"
	"github.com/tactrunner/tact/internal/discovery"
	"github.com/tactrunner/tact/internal/environment"
	"github.com/tactrunner/tact/internal/logger"
	"github.com/tactrunner/tact/internal/orchestrator"
	"github.com/tactrunner/tact/internal/reporter"
	"github.com/tactrunner/tact/internal/signalctx"
	"github.com/tactrunner/tact/internal/workerpool"
)

// maximumNumberWorkersEnv overrides workerpool.DefaultSize() when set,
// matching the teacher's MAXIMUM_NUMBER_PARALLEL_TESTS escape hatch for
// tuning concurrency without touching tact.config.yaml.
var maximumNumberWorkersEnv = environment.WithTactPrefix("MAXIMUM_NUMBER_WORKERS")

const (
	flagUpdateSnapshot = "update-snapshot"
	flagConfig         = "config"
	flagVerbose        = "verbose"
	flagReporter       = "reporter"
	flagWorker         = "worker"
)

// RootCmd builds tact's single cobra.Command (§6: "one root command"). The
// --worker flag is hidden: it never appears in --help, matching a re-exec
// entry point that only the binary itself is ever meant to pass.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tact [flags] [filter...]",
		Short:        "tact runs terminal-application tests against a real PTY",
		SilenceUsage: true,
		RunE:         runRoot,
	}

	root.Flags().Bool(flagUpdateSnapshot, false, "overwrite stored snapshots with freshly captured output")
	root.Flags().String(flagConfig, "./tact.config.yaml", "path to tact.config.yaml")
	root.Flags().BoolP(flagVerbose, "v", false, "enable debug logging")
	root.Flags().String(flagReporter, "console", "result reporter: console, human, json, junit")

	root.Flags().Bool(flagWorker, false, "internal: run as a worker process")
	_ = root.Flags().MarkHidden(flagWorker)

	return root
}

func runRoot(cmd *cobra.Command, args []string) error {
	isWorker, _ := cmd.Flags().GetBool(flagWorker)
	if isWorker {
		return runWorker()
	}

	verbose, _ := cmd.Flags().GetBool(flagVerbose)
	if verbose {
		logger.EnableDebugMode()
	}

	configPath, _ := cmd.Flags().GetString(flagConfig)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("tact: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("tact: resolving working directory: %w", err)
	}

	cacheRoot := cache.NewRoot(filepath.Join(cwd, ".tact", "cache"))
	root, err := discovery.Build(cfg, cwd, cacheRoot)
	if err != nil {
		return fmt.Errorf("tact: %w", err)
	}

	binaryPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("tact: resolving own binary path: %w", err)
	}

	poolSize, err := resolvePoolSize()
	if err != nil {
		return fmt.Errorf("tact: %w", err)
	}
	pool := workerpool.NewPool(binaryPath, poolSize)
	defer pool.Shutdown()

	reporterName, _ := cmd.Flags().GetString(flagReporter)
	rep, err := buildReporter(reporterName, cfg.FlakyFailsRun)
	if err != nil {
		return fmt.Errorf("tact: %w", err)
	}

	orch := &orchestrator.Orchestrator{
		Pool:     pool,
		PoolSize: pool.Size,
		Config:   cfg,
		Reporter: rep,
	}

	ctx, stop := signalctx.Enable(cmd.Context(), logger.Logger)
	defer stop()

	updateSnapshot, _ := cmd.Flags().GetBool(flagUpdateSnapshot)
	failures, err := orch.Run(ctx, root, orchestrator.ExecutionOptions{
		UpdateSnapshot: updateSnapshot,
		TestFilter:     args,
	})
	if err != nil {
		return fmt.Errorf("tact: %w", err)
	}
	if failures > 0 {
		return &FailureCountError{Count: failures}
	}
	return nil
}

// FailureCountError reports that the run completed without an
// infrastructure error but left Count tests in a non-expected final state.
// §6 reserves the process exit code for exactly this count ("1" is reserved
// for configuration/global-timeout errors, which propagate as plain errors
// instead); main distinguishes the two by type-asserting for this error.
type FailureCountError struct {
	Count int
}

func (e *FailureCountError) Error() string {
	return fmt.Sprintf("tact: %d test(s) failed", e.Count)
}

func resolvePoolSize() (int, error) {
	v, ok := os.LookupEnv(maximumNumberWorkersEnv)
	if !ok {
		return workerpool.DefaultSize(), nil
	}
	size, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", maximumNumberWorkersEnv, err)
	}
	if size < 1 {
		return 0, fmt.Errorf("%s must be at least 1, got %d", maximumNumberWorkersEnv, size)
	}
	return size, nil
}

func buildReporter(name string, flakyFailsRun bool) (reporter.Reporter, error) {
	switch name {
	case "", "console":
		return reporter.NewConsole(os.Stdout, flakyFailsRun), nil
	case "human":
		return reporter.NewHuman(os.Stdout, flakyFailsRun), nil
	case "json":
		return reporter.NewJSON(os.Stdout, flakyFailsRun), nil
	case "junit":
		return reporter.NewJUnit(os.Stdout, flakyFailsRun), nil
	default:
		return nil, fmt.Errorf("unknown reporter %q", name)
	}
}
