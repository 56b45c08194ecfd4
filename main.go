package main

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/tactrunner/tact/cmd"
	"github.com/tactrunner/tact/internal/logger"
)

func main() {
	logger.SetupLogger()

	rootCmd := cmd.RootCmd()
	rootCmd.SilenceErrors = true // Silence errors so we handle them here.
	err := rootCmd.Execute()
	if errIsInterruption(err) {
		rootCmd.Println("interrupted")
		os.Exit(130)
	}
	if err != nil {
		rootCmd.PrintErrln(rootCmd.ErrPrefix(), err)
		var failureErr *cmd.FailureCountError
		if errors.As(err, &failureErr) {
			os.Exit(failureErr.Count)
		}
		os.Exit(1)
	}
}

func errIsInterruption(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}

	var exitError *exec.ExitError
	if errors.As(err, &exitError) && (*exitError).ProcessState.ExitCode() == 130 { // 130 -> subcommand killed by sigint
		return true
	}

	return false
}
