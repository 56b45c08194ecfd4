// Package snapshot implements terminal.SnapshotStore against the
// filesystem, under a per-file snapshot directory alongside the test
// source (§6 "Snapshot files live alongside test files under a per-file
// snapshot directory").
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const snapshotDirSuffix = "-snapshots"

// FileStore persists one snapshot body per file under
// <testFileDir>/<testFileName>-snapshots/<sanitized-test-id>-<index>.snap.
type FileStore struct {
	// TestFilePath is the path of the test source file whose snapshots
	// this store serves; a relative path resolves against the process's
	// working directory.
	TestFilePath string
}

func (f *FileStore) dir() string {
	dir := filepath.Dir(f.TestFilePath)
	base := filepath.Base(f.TestFilePath)
	return filepath.Join(dir, base+snapshotDirSuffix)
}

func (f *FileStore) path(testID string, index int) string {
	return filepath.Join(f.dir(), sanitizeID(testID)+"-"+strconv.Itoa(index)+".snap")
}

// sanitizeID rewrites path-hostile characters in a test id (ComputeID joins
// segments with " > " and file segments contain ":") so the result is a
// single safe path component: "/", "\\", ":" and " " become "_", ">"
// becomes "-", and "[" and "]" are dropped.
func sanitizeID(id string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		" ", "_",
		">", "-",
		"[", "",
		"]", "",
	)
	return replacer.Replace(id)
}

// Load reads the stored snapshot body for (testID, index). ok is false
// when no snapshot has ever been written for that call site.
func (f *FileStore) Load(testID string, index int) (string, bool, error) {
	body, err := os.ReadFile(f.path(testID, index))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("snapshot: reading %s#%d: %w", testID, index, err)
	}
	return string(body), true, nil
}

// Save writes (or overwrites) the snapshot body for (testID, index),
// creating the per-file snapshot directory if needed.
func (f *FileStore) Save(testID string, index int, body string) error {
	if err := os.MkdirAll(f.dir(), 0o755); err != nil {
		return fmt.Errorf("snapshot: creating snapshot directory for %s: %w", testID, err)
	}
	if err := os.WriteFile(f.path(testID, index), []byte(body), 0o644); err != nil {
		return fmt.Errorf("snapshot: writing %s#%d: %w", testID, index, err)
	}
	return nil
}
