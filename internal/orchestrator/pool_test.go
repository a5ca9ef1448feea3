package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usesandbox/sandbox/internal/bundler"
	"github.com/usesandbox/sandbox/internal/ratelimit"
	"github.com/usesandbox/sandbox/internal/vm"
)

type fakeProvisioner struct {
	creates   atomic.Int32
	writes    atomic.Int32
	stops     atomic.Int32
	reply     func(fnID string) []byte
	createErr error
	sudoSeen  atomic.Bool
}

func (f *fakeProvisioner) Create(ctx context.Context, sessionKey string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	n := f.creates.Add(1)
	return fmt.Sprintf("vm-%s-%d", sessionKey, n), nil
}

func (f *fakeProvisioner) WriteFiles(ctx context.Context, vmID string, files map[string][]byte) error {
	f.writes.Add(1)
	return nil
}

func (f *fakeProvisioner) RunCommand(ctx context.Context, vmID string, cmd []string, stdin []byte, sudo bool) (*vm.CommandResult, error) {
	f.sudoSeen.Store(sudo)
	return &vm.CommandResult{Stdout: f.reply("greet_abcd1234")}, nil
}

func (f *fakeProvisioner) Stop(ctx context.Context, vmID string) error {
	f.stops.Add(1)
	return nil
}

type fakeStore struct {
	installed map[string]string
}

func newFakeStore() *fakeStore { return &fakeStore{installed: map[string]string{}} }

func (s *fakeStore) GetInstalledHash(ctx context.Context, sessionKey string) (string, bool, error) {
	h, ok := s.installed[sessionKey]
	return h, ok, nil
}

func (s *fakeStore) SetInstalledHash(ctx context.Context, sessionKey, hash string) error {
	s.installed[sessionKey] = hash
	return nil
}

func discardLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestPool(t *testing.T, prov *fakeProvisioner) (*Pool, *fakeStore) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bundle-deadbeef.js"), []byte("//bundle"), 0o644))
	store := newFakeStore()
	manifest := &bundler.Manifest{Hash: "deadbeef", BundleFile: "bundle-deadbeef.js"}
	pool := NewPool(prov, store, dir, ratelimit.New(1000, 1000), func() *bundler.Manifest { return manifest }, discardLogger())
	return pool, store
}

func TestPool_RunProvisionsAndInvokes(t *testing.T) {
	prov := &fakeProvisioner{reply: func(fnID string) []byte {
		return []byte(`{"__result":"hi"}` + "\n")
	}}
	pool, _ := newTestPool(t, prov)

	result, err := pool.Run(context.Background(), "session-1", true, "greet_abcd1234", []any{"world"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"hi"`, string(result))
	assert.Equal(t, int32(1), prov.creates.Load())
	assert.Equal(t, 1, pool.Size())
	assert.True(t, prov.sudoSeen.Load())
}

func TestPool_RunReusesSessionAcrossCalls(t *testing.T) {
	prov := &fakeProvisioner{reply: func(fnID string) []byte {
		return []byte(`{"__result":1}` + "\n")
	}}
	pool, _ := newTestPool(t, prov)

	_, err := pool.Run(context.Background(), "session-1", true, "a_11111111", nil, nil)
	require.NoError(t, err)
	_, err = pool.Run(context.Background(), "session-1", true, "b_22222222", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), prov.creates.Load())
	assert.Equal(t, int32(1), prov.writes.Load())
}

func TestPool_RunSurfacesThrownSandboxError(t *testing.T) {
	prov := &fakeProvisioner{reply: func(fnID string) []byte {
		return []byte(`{"__error":{"message":"boom","stack":"at x"}}` + "\n")
	}}
	pool, _ := newTestPool(t, prov)

	_, err := pool.Run(context.Background(), "session-1", true, "fail_11111111", nil, nil)
	require.Error(t, err)
	var sErr *SandboxError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "boom", sErr.Message)
}

func TestPool_DispatchReusesVMForNestedCallContext(t *testing.T) {
	prov := &fakeProvisioner{reply: func(fnID string) []byte {
		return []byte(`{"__result":null}` + "\n")
	}}
	pool, _ := newTestPool(t, prov)

	ctx := WithCallContext(context.Background(), &CallContext{SessionKey: "session-1", VMID: "vm-preexisting", Sudo: true})
	_, err := pool.Dispatch(ctx, "inner_33333333", nil, nil, true)
	require.NoError(t, err)

	assert.Equal(t, int32(0), prov.creates.Load())
}

func TestPool_DispatchProvisionsAndTearsDownEphemeralVMWhenNoCallContext(t *testing.T) {
	prov := &fakeProvisioner{reply: func(fnID string) []byte {
		return []byte(`{"__result":"hi"}` + "\n")
	}}
	pool, _ := newTestPool(t, prov)

	result, err := pool.Dispatch(context.Background(), "greet_abcd1234", []any{"world"}, nil, true)
	require.NoError(t, err)
	assert.JSONEq(t, `"hi"`, string(result))

	assert.Equal(t, int32(1), prov.creates.Load())
	assert.Equal(t, int32(1), prov.stops.Load())
	assert.Equal(t, 0, pool.Size(), "ephemeral vm must not be recorded as a session")
}

func TestPool_RunReinstallsBundleOnFreshVMDespiteStalePersistedHash(t *testing.T) {
	prov := &fakeProvisioner{reply: func(fnID string) []byte {
		return []byte(`{"__result":1}` + "\n")
	}}
	pool, store := newTestPool(t, prov)

	// Simulate a install-state entry left behind by a host process that
	// ran before this one started: the store remembers session-1 as
	// already having today's bundle hash, but Pool's in-memory session
	// map — and the actual container behind "session-1" — is brand new.
	require.NoError(t, store.SetInstalledHash(context.Background(), "session-1", "deadbeef"))

	_, err := pool.Run(context.Background(), "session-1", true, "f_11111111", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), prov.creates.Load())
	assert.Equal(t, int32(1), prov.writes.Load(), "freshly provisioned vm must get the bundle even though the store already has a matching hash")
}

func TestPool_StopRemovesSessionAndTearsDownVM(t *testing.T) {
	prov := &fakeProvisioner{reply: func(fnID string) []byte {
		return []byte(`{"__result":null}` + "\n")
	}}
	pool, _ := newTestPool(t, prov)

	_, err := pool.Run(context.Background(), "session-1", true, "f_11111111", nil, nil)
	require.NoError(t, err)

	require.NoError(t, pool.Stop(context.Background(), "session-1"))
	assert.Equal(t, 0, pool.Size())
	assert.Equal(t, int32(1), prov.stops.Load())
}

func TestPool_StopAllTearsDownEverySession(t *testing.T) {
	prov := &fakeProvisioner{reply: func(fnID string) []byte {
		return []byte(`{"__result":null}` + "\n")
	}}
	pool, _ := newTestPool(t, prov)

	_, err := pool.Run(context.Background(), "session-1", true, "f_11111111", nil, nil)
	require.NoError(t, err)
	_, err = pool.Run(context.Background(), "session-2", true, "f_11111111", nil, nil)
	require.NoError(t, err)

	require.NoError(t, pool.StopAll(context.Background()))
	assert.Equal(t, 0, pool.Size())
	assert.Equal(t, int32(2), prov.stops.Load())
}

func TestLastLine_PicksFinalNonEmptyLine(t *testing.T) {
	out := []byte("warning: something\n{\"__result\":1}\n")
	assert.Equal(t, `{"__result":1}`, string(lastLine(out)))
}

func TestLastLine_FallsBackToWholeOutputWhenNoNewline(t *testing.T) {
	out := []byte(`{"__result":1}`)
	assert.Equal(t, `{"__result":1}`, string(lastLine(out)))
}
