package bundler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// manifestDigestLen is spec'd: the bundle cache key is a 16-hex-char
// digest of every staged module's content, distinct from fnID's own
// shorter, content-free digest.
const manifestDigestLen = 16

// Manifest is the bundler's on-disk record of the last successful
// build: its content hash and the bundle file it produced, read back on
// the next run to decide whether a rebuild is needed at all. SandboxFiles
// lists the project-relative source files that contributed at least one
// annotated function; SourceFnIDs additionally breaks that down to the
// individual function ids, which the wire shape doesn't name but a host
// inspecting a live bundle benefits from.
type Manifest struct {
	Hash         string    `json:"hash"`
	BundleFile   string    `json:"bundleFile"`
	GeneratedAt  time.Time `json:"generatedAt"`
	SandboxFiles []string  `json:"sandboxFiles"`
	SourceFnIDs  []string  `json:"sourceFnIds"`
}

// Digest hashes the combined content of every staged module, sorted by
// path first so byte-identical input always yields the same hash
// regardless of staging order.
func Digest(stagedContents map[string][]byte) string {
	paths := make([]string, 0, len(stagedContents))
	for p := range stagedContents {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write(stagedContents[p])
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:manifestDigestLen]
}

func manifestPath(outDir string) string {
	return filepath.Join(outDir, "manifest.json")
}

// ReadManifest returns the previous manifest, or nil if none exists yet.
func ReadManifest(outDir string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath(outDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

func WriteManifest(outDir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(manifestPath(outDir), data, 0o644)
}

func BundleFileName(hash string) string {
	return fmt.Sprintf("bundle-%s.js", hash)
}
