// Package discovery walks a project tree, matches files against each
// config project's testMatch glob, and loads the matching files into a
// suite tree the orchestrator can select from (§6 "projects").
package discovery

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/tactrunner/tact/internal/cache"
	"github.com/tactrunner/tact/internal/config"
	"github.com/tactrunner/tact/internal/loader"
	"github.com/tactrunner/tact/internal/logger"
	"github.com/tactrunner/tact/internal/suite"
)

// Build assembles the full suite tree for cfg: one project suite per
// configured project, one file suite per matching path, loaded through the
// registry a compiled test binary installs at init time. cacheRoot is
// optional; a missing or stale cache entry is logged and otherwise ignored,
// since a compiled Go test file's registration is already bound at build
// time and does not depend on a runtime transform step the way the source
// system's does.
func Build(cfg *config.Config, root string, cacheRoot *cache.Root) (*suite.Suite, error) {
	tree := suite.NewRoot()

	for _, project := range cfg.Projects {
		paths, err := discoverPaths(root, &project)
		if err != nil {
			return nil, fmt.Errorf("discovery: scanning project %q: %w", project.Name, err)
		}

		projectSuite := &suite.Suite{Title: project.Name, Kind: suite.KindProject, Options: project.Use.AsSuiteOptions()}
		tree.AddChild(projectSuite)

		for _, path := range paths {
			checkCache(cacheRoot, path)

			fileSuite := &suite.Suite{Title: filepath.Base(path), Kind: suite.KindFile, Source: path}
			projectSuite.AddChild(fileSuite)

			if err := loader.Load(path, fileSuite); err != nil {
				return nil, fmt.Errorf("discovery: loading %s: %w", path, err)
			}
		}
	}

	return tree, nil
}

func checkCache(cacheRoot *cache.Root, path string) {
	if cacheRoot == nil {
		return
	}
	if _, err := cacheRoot.Resolve(path); err != nil {
		logger.Debugf("discovery: no fresh cache entry for %s: %s", path, err)
	}
}

func discoverPaths(root string, project *config.Project) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".tact" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if project.Matches(rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: walking %s: %w", root, err)
	}
	sort.Strings(matches)
	return matches, nil
}
