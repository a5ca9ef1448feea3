// Package bundler implements [BUNDLE]: it aggregates every generated
// per-file sandbox module from internal/codegen into a staging
// directory, hashes their combined content, and — only when that hash
// changed since the last run — rebuilds a single tree-shaken ES-module
// bundle with github.com/evanw/esbuild/pkg/api.
package bundler

import (
	"os"
	"path/filepath"
	"strings"
)

// StagingLayout owns the on-disk staging directory a project's
// generated modules are written into before bundling.
type StagingLayout struct {
	Dir string
}

func NewStagingLayout(projectRoot string) *StagingLayout {
	return &StagingLayout{Dir: filepath.Join(projectRoot, ".sandbox-staging")}
}

// StagedName deterministically maps a project-relative source file path
// to a flat staging filename, so two files in different directories
// never collide and the mapping is reproducible across runs.
func StagedName(sourceFile string) string {
	clean := strings.TrimPrefix(filepath.ToSlash(sourceFile), "/")
	flat := strings.ReplaceAll(clean, "/", "__")
	flat = strings.TrimSuffix(flat, filepath.Ext(flat))
	return flat + ".sandbox.mjs"
}

func (s *StagingLayout) Reset() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return err
	}
	return os.MkdirAll(s.Dir, 0o755)
}

// Write stages one generated module's content under its deterministic
// name and returns the absolute path it was written to.
func (s *StagingLayout) Write(sourceFile, content string) (string, error) {
	path := filepath.Join(s.Dir, StagedName(sourceFile))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, []byte(content), 0o644)
}

// Entries lists every staged module's absolute path, sorted, so the
// synthetic bundle entry point and the manifest digest are deterministic
// regardless of filesystem iteration order.
func (s *StagingLayout) Entries() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".sandbox.mjs") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
