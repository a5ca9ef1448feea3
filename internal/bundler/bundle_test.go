package bundler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *zerolog.Logger {
	l := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return &l
}

func TestBuild_ProducesManifestWithSourceFnIDs(t *testing.T) {
	projectRoot := t.TempDir()
	outDir := filepath.Join(projectRoot, "build")

	staging := NewStagingLayout(projectRoot)
	require.NoError(t, staging.Reset())
	_, err := staging.Write("greet.js", `export default { "greet_abcd1234": async (__closure) => { return "hi"; } };`)
	require.NoError(t, err)

	m, err := Build(staging, BuildInput{SourceFnIDs: []string{"greet_abcd1234"}, SandboxFiles: []string{"greet.js"}}, Options{OutDir: outDir}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"greet_abcd1234"}, m.SourceFnIDs)
	assert.Equal(t, []string{"greet.js"}, m.SandboxFiles)
	assert.False(t, m.GeneratedAt.IsZero())
	assert.FileExists(t, filepath.Join(outDir, m.BundleFile))
}

func TestBuild_SkipsEsbuildWhenContentUnchanged(t *testing.T) {
	projectRoot := t.TempDir()
	outDir := filepath.Join(projectRoot, "build")

	staging := NewStagingLayout(projectRoot)
	require.NoError(t, staging.Reset())
	_, err := staging.Write("greet.js", `export default { "greet_abcd1234": async (__closure) => { return "hi"; } };`)
	require.NoError(t, err)

	first, err := Build(staging, BuildInput{SourceFnIDs: []string{"greet_abcd1234"}}, Options{OutDir: outDir}, discardLogger())
	require.NoError(t, err)

	second, err := Build(staging, BuildInput{SourceFnIDs: []string{"greet_abcd1234"}}, Options{OutDir: outDir}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.BundleFile, second.BundleFile)
	assert.True(t, first.GeneratedAt.Equal(second.GeneratedAt), "an unchanged build must return the previous manifest, not a rebuilt one")
}
