// Command sandboxc is the build-time half of the "use sandbox" toolchain:
// it walks a project tree, extracts every annotated function via
// internal/directive, replaces each one in place with a stub via
// internal/codegen, and bundles the extracted bodies into a single
// runnable artifact via internal/bundler.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/usesandbox/sandbox/internal/bundler"
	"github.com/usesandbox/sandbox/internal/codegen"
	"github.com/usesandbox/sandbox/internal/directive"
)

var skipDirs = map[string]bool{
	"node_modules":     true,
	".git":             true,
	".sandbox-staging": true,
	".sandbox":         true,
}

func main() {
	srcDir := flag.String("src", ".", "project source root to scan for \"use sandbox\" functions")
	outDir := flag.String("out", "dist", "directory to write transformed sources into")
	bundleDir := flag.String("bundle-dir", ".sandbox/build", "directory to write the sandbox runtime bundle into")
	minify := flag.Bool("minify", false, "minify the sandbox bundle")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := run(*srcDir, *outDir, *bundleDir, *minify, &logger); err != nil {
		logger.Fatal().Err(err).Msg("build failed")
	}
}

func run(srcDir, outDir, bundleDir string, minify bool, logger *zerolog.Logger) error {
	files, err := collectSourceFiles(srcDir)
	if err != nil {
		return fmt.Errorf("walk project tree: %w", err)
	}

	staging := bundler.NewStagingLayout(srcDir)
	if err := staging.Reset(); err != nil {
		return fmt.Errorf("reset staging dir: %w", err)
	}

	totalFns := 0
	var fnIDs []string
	var sandboxFiles []string
	for _, absPath := range files {
		relPath, err := filepath.Rel(srcDir, absPath)
		if err != nil {
			relPath = absPath
		}

		source, err := os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", relPath, err)
		}

		records, err := directive.Collect(string(source), relPath)
		if err != nil {
			return fmt.Errorf("parse %s: %w", relPath, err)
		}

		outPath := filepath.Join(outDir, relPath)
		if len(records) == 0 {
			if err := copyFile(absPath, outPath); err != nil {
				return fmt.Errorf("copy %s: %w", relPath, err)
			}
			continue
		}

		transformed := transform(string(source), records)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(outPath, []byte(transformed), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}

		imports := directive.CollectImports(string(source))
		for i, stmt := range imports {
			imports[i] = rewriteRelativeImportPaths(stmt, relPath)
		}
		importLines := codegen.FilteredImports(imports, categorizeImport)

		moduleSrc := codegen.Module(records, importLines)
		if _, err := staging.Write(relPath, moduleSrc); err != nil {
			return fmt.Errorf("stage module for %s: %w", relPath, err)
		}

		logger.Info().Str("file", relPath).Int("functions", len(records)).Msg("transformed")
		totalFns += len(records)
		sandboxFiles = append(sandboxFiles, relPath)
		for _, rec := range records {
			fnIDs = append(fnIDs, rec.FnID)
		}
	}

	opts := bundler.Options{OutDir: bundleDir, Minify: minify, Externals: defaultExternals()}
	input := bundler.BuildInput{SourceFnIDs: fnIDs, SandboxFiles: sandboxFiles}
	manifest, err := bundler.Build(staging, input, opts, logger)
	if err != nil {
		return fmt.Errorf("build sandbox bundle: %w", err)
	}

	logger.Info().
		Int("functions", totalFns).
		Str("bundle", manifest.BundleFile).
		Str("hash", manifest.Hash).
		Msg("build complete")
	return nil
}

// transform replaces every record's original declaration with its stub,
// walking records back-to-front so earlier byte offsets stay valid as
// later-in-file replacements are applied first. A record whose span lies
// inside another record's span is skipped: the enclosing stub replaces
// it as well.
func transform(source string, records []directive.FunctionRecord) string {
	ordered := append([]directive.FunctionRecord{}, records...)
	sortByStmtPosDesc(ordered)

	out := source
	for _, rec := range ordered {
		if rec.StmtPos < 0 || rec.StmtEnd > len(out) || rec.StmtPos > rec.StmtEnd {
			continue
		}
		enclosed := false
		for _, other := range records {
			if other.StmtPos < rec.StmtPos && rec.StmtEnd <= other.StmtEnd {
				enclosed = true
			}
		}
		if enclosed {
			continue
		}
		out = out[:rec.StmtPos] + codegen.Stub(rec) + out[rec.StmtEnd:]
	}
	return out
}

func sortByStmtPosDesc(records []directive.FunctionRecord) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j-1].StmtPos < records[j].StmtPos; j-- {
			records[j-1], records[j] = records[j], records[j-1]
		}
	}
}

func collectSourceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".js", ".mjs", ".jsx", ".ts", ".tsx":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// categorizeImport implements spec.md §226's three-way split for an
// import re-emitted into a generated module: type-only imports are
// dropped outright, then directive.CategorizeRuntimeImport drops the
// orchestrator client's host-only symbols and rewrites the shell
// helper to its VM-local subpath, and anything left passes through
// verbatim.
func categorizeImport(stmt string) (string, bool) {
	if directive.IsTypeOnlyImport(stmt) {
		return "", false
	}
	switch action, rewritten := directive.CategorizeRuntimeImport(stmt); action {
	case "drop":
		return "", false
	case "rewrite":
		return rewritten, true
	default:
		return stmt, true
	}
}

var importSpecifierPattern = regexp.MustCompile(`(['"])([^'"]+)(['"])\s*;?\s*$`)

// rewriteRelativeImportPaths rewrites a relative import specifier in
// stmt so it still resolves once re-emitted into a generated module.
// Generated modules are staged flat under srcDir/.sandbox-staging/, one
// directory level below the project root, so a specifier relative to
// relPath's own directory needs an extra "../" to reach back into the
// real source tree from there. Bare specifiers (node built-ins,
// packages) are left untouched — node_modules resolution doesn't care
// where the staging file physically lives.
func rewriteRelativeImportPaths(stmt, relPath string) string {
	loc := importSpecifierPattern.FindStringSubmatchIndex(stmt)
	if loc == nil {
		return stmt
	}
	specStart, specEnd := loc[4], loc[5]
	spec := stmt[specStart:specEnd]
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return stmt
	}
	rewritten := "../" + filepath.ToSlash(filepath.Join(filepath.Dir(relPath), spec))
	return stmt[:specStart] + rewritten + stmt[specEnd:]
}

// defaultExternals lists node's built-in modules plus the common
// host-framework packages an annotated function's imports might
// reasonably reach for, so esbuild leaves them unresolved at bundle
// time instead of failing to find them on disk.
func defaultExternals() []string {
	return append(nodeBuiltins(), "express", "fastify", "koa", "next", "@nestjs/core")
}

func nodeBuiltins() []string {
	return []string{
		"assert", "buffer", "child_process", "cluster", "crypto", "dgram", "dns",
		"events", "fs", "http", "http2", "https", "net", "os", "path", "perf_hooks",
		"process", "querystring", "readline", "stream", "string_decoder", "timers",
		"tls", "url", "util", "v8", "vm", "worker_threads", "zlib",
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
