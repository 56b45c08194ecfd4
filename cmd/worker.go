package cmd

import (
	"os"

	"github.com/tactrunner/tact/internal/testworker"
)

// runWorker switches this process into worker mode: it reads RunRequest
// frames from stdin and streams Event frames to stdout until the
// orchestrator closes the pipe (§4.D, §4.E).
func runWorker() error {
	return testworker.NewWorker(os.Stdout).Serve(os.Stdin)
}
