package testworker

import (
	"fmt"
	"sync"

	"github.com/tactrunner/tact/internal/loader"
	"github.com/tactrunner/tact/internal/suite"
)

// Registry is a worker's per-process cache of imported test files. Each
// source path is loaded at most once for the worker's lifetime (§4.E
// "maintain a per-worker set of previously imported source paths");
// re-imports are not supported, and tests are always addressed by their
// pre-registered id.
type Registry struct {
	mu    sync.Mutex
	files map[string]*suite.Suite
}

// NewRegistry returns an empty worker-side registry.
func NewRegistry() *Registry {
	return &Registry{files: map[string]*suite.Suite{}}
}

// FindTest imports sourcePath if this is the first request for it, then
// looks up testID among the tests that file declares.
func (r *Registry) FindTest(sourcePath, testID string) (*suite.TestCase, error) {
	fileSuite, err := r.fileSuite(sourcePath)
	if err != nil {
		return nil, err
	}
	for _, tc := range fileSuite.AllTests() {
		if tc.ID == testID {
			return tc, nil
		}
	}
	return nil, fmt.Errorf("testworker: no test with id %q in %s", testID, sourcePath)
}

func (r *Registry) fileSuite(sourcePath string) (*suite.Suite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fileSuite, ok := r.files[sourcePath]; ok {
		return fileSuite, nil
	}

	fileSuite := &suite.Suite{Kind: suite.KindFile, Source: sourcePath}
	if err := loader.Load(sourcePath, fileSuite); err != nil {
		return nil, fmt.Errorf("testworker: loading %s: %w", sourcePath, err)
	}
	r.files[sourcePath] = fileSuite
	return fileSuite, nil
}
