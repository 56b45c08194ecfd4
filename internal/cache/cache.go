// Package cache resolves and validates transformed test source under
// <cwd>/.tact/cache/, a content-addressed mirror of the source tree (§6).
// The core consumes only Resolve; how the cache is populated is out of
// scope (§1 "source transform / cache").
package cache

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tactrunner/tact/internal/wait"
)

const hashHeaderPrefix = "//# hash="

// Root is a content-addressed cache mirror rooted at a directory, normally
// <cwd>/.tact/cache.
type Root struct {
	dir string
}

// NewRoot returns a Root rooted at dir.
func NewRoot(dir string) *Root {
	return &Root{dir: dir}
}

// Resolve maps a source file path to its transformed cache path, validating
// that the cached file's "//# hash=<hex>" header matches a content hash of
// the source. A missing or stale cache entry is an error: populating the
// cache is the transform step's responsibility, not this package's.
func (r *Root) Resolve(sourcePath string) (string, error) {
	cachePath, err := r.mirroredPath(sourcePath)
	if err != nil {
		return "", err
	}

	cached, err := os.Open(cachePath)
	if err != nil {
		return "", fmt.Errorf("cache: %s has no transformed entry at %s: %w", sourcePath, cachePath, err)
	}
	defer cached.Close()

	header, err := readHashHeader(cached)
	if err != nil {
		return "", fmt.Errorf("cache: reading hash header for %s: %w", sourcePath, err)
	}

	want, err := hashFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("cache: hashing source %s: %w", sourcePath, err)
	}

	if header != want {
		return "", fmt.Errorf("cache: %s is stale (cache hash %s, source hash %s)", sourcePath, header, want)
	}

	return cachePath, nil
}

// WaitForFresh polls Resolve until it succeeds, ctx is cancelled, or timeout
// elapses. A background transform watcher populating .tact/cache/ is an
// out-of-scope external collaborator (§1); a caller that starts discovery
// just after triggering a transform can use this instead of Resolve to
// tolerate the watcher lagging slightly behind.
func (r *Root) WaitForFresh(ctx context.Context, sourcePath string, timeout time.Duration) (string, error) {
	var resolved string
	ready, err := wait.UntilTrue(ctx, func(ctx context.Context) (bool, error) {
		path, err := r.Resolve(sourcePath)
		if err != nil {
			return false, nil
		}
		resolved = path
		return true, nil
	}, timeout)
	if err != nil {
		return "", fmt.Errorf("cache: waiting for %s: %w", sourcePath, err)
	}
	if !ready {
		return "", fmt.Errorf("cache: %s had no fresh entry after %s", sourcePath, timeout)
	}
	return resolved, nil
}

func (r *Root) mirroredPath(sourcePath string) (string, error) {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", fmt.Errorf("cache: resolving %s: %w", sourcePath, err)
	}
	// Mirror the source tree under the cache root by its absolute path
	// stripped of its leading separator, so distinct source roots
	// never collide inside one cache directory.
	rel := strings.TrimPrefix(abs, string(filepath.Separator))
	return filepath.Join(r.dir, rel), nil
}

func readHashHeader(f *os.File) (string, error) {
	reader := bufio.NewReader(f)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, hashHeaderPrefix) {
		return "", fmt.Errorf("missing %q header", hashHeaderPrefix)
	}
	return strings.TrimPrefix(line, hashHeaderPrefix), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
