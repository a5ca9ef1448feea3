package bundler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
)

// Options configures one bundling run.
type Options struct {
	OutDir    string
	Externals []string
	Minify    bool
}

// BuildInput carries the source-level metadata one build stamps into
// its manifest, independent of the staged module content that drives
// the content hash itself.
type BuildInput struct {
	SourceFnIDs  []string
	SandboxFiles []string
}

// Build implements [BUNDLE]'s rebuild-on-change rule: it reads every
// staged module, hashes their combined content, and only re-invokes
// esbuild when that hash differs from the manifest left by the
// previous run. It returns the manifest describing the bundle now on
// disk, whether or not a rebuild actually happened.
func Build(staging *StagingLayout, input BuildInput, opts Options, log *zerolog.Logger) (*Manifest, error) {
	entries, err := staging.Entries()
	if err != nil {
		return nil, fmt.Errorf("list staged modules: %w", err)
	}

	contents := make(map[string][]byte, len(entries))
	for _, p := range entries {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read staged module %s: %w", p, err)
		}
		contents[p] = data
	}
	hash := Digest(contents)

	if prev, err := ReadManifest(opts.OutDir); err == nil && prev != nil && prev.Hash == hash {
		if _, statErr := os.Stat(filepath.Join(opts.OutDir, prev.BundleFile)); statErr == nil {
			log.Debug().Str("hash", hash).Msg("bundle unchanged, skipping esbuild")
			return prev, nil
		}
	}

	entry, err := writeSyntheticEntry(staging.Dir, entries)
	if err != nil {
		return nil, fmt.Errorf("write synthetic entry: %w", err)
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:       []string{entry},
		Bundle:            true,
		Format:            api.FormatESModule,
		Platform:          api.PlatformNode,
		Target:            api.ES2020,
		TreeShaking:       api.TreeShakingTrue,
		MinifyWhitespace:  opts.Minify,
		MinifyIdentifiers: opts.Minify,
		MinifySyntax:      opts.Minify,
		External:          opts.Externals,
		Write:             false,
	})
	for _, e := range result.Errors {
		log.Error().Str("text", e.Text).Msg("esbuild error")
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("esbuild reported %d error(s) bundling the sandbox modules", len(result.Errors))
	}
	if len(result.OutputFiles) == 0 {
		return nil, fmt.Errorf("esbuild produced no output for the sandbox bundle")
	}

	bundleFile := BundleFileName(hash)
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(opts.OutDir, bundleFile), result.OutputFiles[0].Contents, 0o644); err != nil {
		return nil, fmt.Errorf("write bundle: %w", err)
	}

	m := &Manifest{
		Hash:         hash,
		BundleFile:   bundleFile,
		GeneratedAt:  time.Now(),
		SandboxFiles: input.SandboxFiles,
		SourceFnIDs:  input.SourceFnIDs,
	}
	if err := WriteManifest(opts.OutDir, m); err != nil {
		return nil, err
	}
	log.Info().Str("hash", hash).Str("file", bundleFile).Int("modules", len(entries)).Msg("rebuilt sandbox bundle")
	return m, nil
}

// writeSyntheticEntry generates the single entry point esbuild compiles:
// it imports every staged module's default export map and merges them
// into one object, keyed by fnID, that the runner can require as a
// whole.
func writeSyntheticEntry(stagingDir string, modules []string) (string, error) {
	var b strings.Builder
	var names []string
	for i, m := range modules {
		rel, err := filepath.Rel(stagingDir, m)
		if err != nil {
			rel = filepath.Base(m)
		}
		name := fmt.Sprintf("m%d", i)
		names = append(names, name)
		fmt.Fprintf(&b, "import %s from %q;\n", name, "./"+filepath.ToSlash(rel))
	}
	b.WriteString("export default Object.assign({}")
	for _, n := range names {
		fmt.Fprintf(&b, ", %s", n)
	}
	b.WriteString(");\n")

	path := filepath.Join(stagingDir, "__entry.mjs")
	return path, os.WriteFile(path, []byte(b.String()), 0o644)
}
