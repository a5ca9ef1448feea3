package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/usesandbox/sandbox/internal/bundler"
	"github.com/usesandbox/sandbox/internal/metrics"
	"github.com/usesandbox/sandbox/internal/runner"
	"github.com/usesandbox/sandbox/internal/state"
	"github.com/usesandbox/sandbox/internal/vm"
)

// installer implements the ready-check/install half of [POOL]: before a
// session's VM can run a call, it must have the runner script and the
// current bundle written into it. The persistent install-state store
// records the bundle hash last installed per session key; it is
// consulted only for a VM the pool reused, so a VM provisioned by this
// process (including the first one for a key after a restart) always
// receives the bundle.
type installer struct {
	provisioner vm.Provisioner
	store       state.Store
	bundleDir   string
}

// ensureInstalled is [INSTALLSTATE]'s read-before-write guard: it skips
// writeBundle when the persisted hash already matches, but only when
// vmID is a VM the pool actually reused. fresh must be true whenever
// vmID was just provisioned — a host-process restart empties Pool's
// in-memory session map but not the persistent store, so the vmID a
// restarted process hands back for a previously-seen sessionKey is a
// brand-new, empty container even though the store still remembers an
// old matching hash for that key. Skipping writeBundle on that hash
// match would leave the new container without runner.js or bundle.js.
func (i *installer) ensureInstalled(ctx context.Context, sessionKey, vmID string, manifest *bundler.Manifest, fresh bool) error {
	if !fresh {
		installedHash, found, err := i.store.GetInstalledHash(ctx, sessionKey)
		if err != nil {
			return fmt.Errorf("read install state for session %s: %w", sessionKey, err)
		}
		if found && installedHash == manifest.Hash {
			return nil
		}
	}

	if err := i.writeBundle(ctx, vmID, manifest); err != nil {
		return fmt.Errorf("install runner and bundle into session %s: %w", sessionKey, err)
	}
	if err := i.store.SetInstalledHash(ctx, sessionKey, manifest.Hash); err != nil {
		return fmt.Errorf("persist install state for session %s: %w", sessionKey, err)
	}
	return nil
}

// writeBundle copies the runner script and current bundle into vmID
// unconditionally. ensureInstalled calls it for a fresh VM or after a
// hash miss; an
// ephemeral, never-reused VM calls it directly since there is no install
// state worth caching for a VM that's about to be torn down.
func (i *installer) writeBundle(ctx context.Context, vmID string, manifest *bundler.Manifest) error {
	bundleContent, err := os.ReadFile(filepath.Join(i.bundleDir, manifest.BundleFile))
	if err != nil {
		return fmt.Errorf("read bundle %s: %w", manifest.BundleFile, err)
	}

	files := map[string][]byte{
		runner.FileName: runner.Script,
		"bundle.js":     bundleContent,
	}
	if err := i.provisioner.WriteFiles(ctx, vmID, files); err != nil {
		return err
	}
	metrics.BundleInstalls.Inc()
	return nil
}
