package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/usesandbox/sandbox/internal/bundler"
	"github.com/usesandbox/sandbox/internal/id"
	"github.com/usesandbox/sandbox/internal/metrics"
	"github.com/usesandbox/sandbox/internal/ratelimit"
	"github.com/usesandbox/sandbox/internal/runner"
	"github.com/usesandbox/sandbox/internal/state"
	"github.com/usesandbox/sandbox/internal/vm"
)

type session struct {
	vmID string
	mu   sync.Mutex // serializes calls against one VM; a VM is not safe for concurrent exec
}

// Pool is [POOL]: the session-keyed sandbox VM pool and the
// __runSandboxFn entry point every generated stub calls into.
type Pool struct {
	mu       sync.RWMutex
	sessions map[string]*session

	provisioner vm.Provisioner
	installer   *installer
	limiter     *ratelimit.Limiter
	logger      *zerolog.Logger
	sf          *singleflightGroup

	currentManifest func() *bundler.Manifest
}

func NewPool(
	provisioner vm.Provisioner,
	store state.Store,
	bundleDir string,
	limiter *ratelimit.Limiter,
	currentManifest func() *bundler.Manifest,
	logger *zerolog.Logger,
) *Pool {
	return &Pool{
		sessions:        map[string]*session{},
		provisioner:     provisioner,
		installer:       &installer{provisioner: provisioner, store: store, bundleDir: bundleDir},
		limiter:         limiter,
		logger:          logger,
		sf:              newSingleflightGroup(),
		currentManifest: currentManifest,
	}
}

// Size returns the number of session-keyed VMs currently held open.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// createResult is what getOrCreate's singleflight closure hands back:
// fresh is true only when this call actually provisioned vmID, which
// ensureInstalled needs to tell a reused VM apart from one that just
// came up empty (see ensureInstalled's comment).
type createResult struct {
	sess  *session
	fresh bool
}

func (p *Pool) getOrCreate(ctx context.Context, sessionKey string) (*session, bool, error) {
	p.mu.RLock()
	s, ok := p.sessions[sessionKey]
	p.mu.RUnlock()
	if ok {
		return s, false, nil
	}

	v, err := p.sf.do(sessionKey, func() (any, error) {
		p.mu.RLock()
		if existing, ok := p.sessions[sessionKey]; ok {
			p.mu.RUnlock()
			return createResult{sess: existing, fresh: false}, nil
		}
		p.mu.RUnlock()

		vmID, err := p.provisioner.Create(ctx, sessionKey)
		if err != nil {
			return nil, fmt.Errorf("provision vm for session %s: %w", sessionKey, err)
		}
		metrics.SandboxProvisions.Inc()

		news := &session{vmID: vmID}
		p.mu.Lock()
		p.sessions[sessionKey] = news
		p.mu.Unlock()
		return createResult{sess: news, fresh: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(createResult)
	return res.sess, res.fresh, nil
}

// Run is the session-establishing run(keyOrOptions, fn, args) factory
// call: it ensures sessionKey's VM exists and has the current bundle
// installed, binds a call-context carrying {vm, sudo} for the duration
// of the call, and invokes fnID. A nested annotated call reaching
// Dispatch while this call-context is live reuses the same VM instead
// of provisioning or ensuring readiness again.
func (p *Pool) Run(ctx context.Context, sessionKey string, sudo bool, fnID string, args []any, closureVars map[string]any) (json.RawMessage, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	defer p.limiter.Done()

	s, fresh, err := p.getOrCreate(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	manifest := p.currentManifest()
	if manifest == nil {
		return nil, fmt.Errorf("no sandbox bundle has been built for this project yet")
	}
	if err := p.installer.ensureInstalled(ctx, sessionKey, s.vmID, manifest, fresh); err != nil {
		return nil, err
	}

	metrics.ActiveSessions.Set(float64(p.Size()))

	nested := WithCallContext(ctx, &CallContext{SessionKey: sessionKey, VMID: s.vmID, Sudo: sudo})
	return p.invoke(nested, s.vmID, sessionKey, fnID, args, closureVars, sudo)
}

// Dispatch is __runSandboxFn: the internal entry point every generated
// stub calls into. If ctx already carries a call-context (the call is
// nested inside an outer Run or Dispatch), it reuses that call's VM and
// sudo flag directly, skipping provisioning, the rate limiter and the
// install check — those already happened for the outer call. Otherwise
// there is no session to reuse, so it provisions a throwaway ephemeral
// VM for exactly this one call and guarantees its teardown afterward.
func (p *Pool) Dispatch(ctx context.Context, fnID string, args []any, closureVars map[string]any, sudo bool) (json.RawMessage, error) {
	if cc, ok := FromContext(ctx); ok {
		return p.invoke(ctx, cc.VMID, cc.SessionKey, fnID, args, closureVars, cc.Sudo)
	}
	return p.runEphemeral(ctx, fnID, args, closureVars, sudo)
}

// runEphemeral provisions a one-shot VM, installs the current bundle
// into it, invokes fnID exactly once, and tears the VM down again. The
// teardown is deferred against a detached context so that cancelling
// or timing out the caller's ctx during the call can't skip cleanup
// and leak the VM.
func (p *Pool) runEphemeral(ctx context.Context, fnID string, args []any, closureVars map[string]any, sudo bool) (json.RawMessage, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	defer p.limiter.Done()

	manifest := p.currentManifest()
	if manifest == nil {
		return nil, fmt.Errorf("no sandbox bundle has been built for this project yet")
	}

	ephemeralKey := "ephemeral-" + id.New()
	vmID, err := p.provisioner.Create(ctx, ephemeralKey)
	if err != nil {
		return nil, fmt.Errorf("provision ephemeral vm for %s: %w", fnID, err)
	}
	metrics.SandboxProvisions.Inc()
	defer func() {
		if err := p.provisioner.Stop(context.Background(), vmID); err != nil {
			p.logger.Error().Err(err).Str("vm", vmID).Msg("failed to stop ephemeral vm")
		}
	}()

	if err := p.installer.writeBundle(ctx, vmID, manifest); err != nil {
		return nil, fmt.Errorf("install bundle into ephemeral vm: %w", err)
	}

	return p.invoke(ctx, vmID, ephemeralKey, fnID, args, closureVars, sudo)
}

func (p *Pool) invoke(ctx context.Context, vmID, sessionKey, fnID string, args []any, closureVars map[string]any, sudo bool) (json.RawMessage, error) {
	p.mu.RLock()
	s := p.sessions[sessionKey]
	p.mu.RUnlock()
	if s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	payload, err := runner.Encode(runner.Request{Args: args, ClosureVars: closureVars})
	if err != nil {
		return nil, err
	}

	timer := metrics.NewCallTimer()
	result, err := p.provisioner.RunCommand(ctx, vmID, []string{"node", runner.FileName, fnID, string(payload)}, nil, sudo)
	if err != nil {
		timer.ObserveCall(false)
		return nil, fmt.Errorf("run %s in sandbox: %w", fnID, err)
	}

	resp, err := runner.Decode(lastLine(result.Stdout))
	if err != nil {
		timer.ObserveCall(false)
		return nil, fmt.Errorf("parse sandbox reply for %s: %w (stderr: %s)", fnID, err, string(result.Stderr))
	}
	if resp.Error != nil {
		timer.ObserveCall(false)
		return nil, &SandboxError{FnID: fnID, Message: resp.Error.Message, Stack: resp.Error.Stack}
	}
	timer.ObserveCall(true)
	return resp.Result, nil
}

// lastLine returns the final non-empty line of output, since the
// runner script may share stdout with warnings a loaded module printed
// before calling the annotated function — only its own reply line is
// guaranteed to be the last thing written.
func lastLine(out []byte) []byte {
	lines := bytes.Split(bytes.TrimRight(out, "\n"), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(bytes.TrimSpace(lines[i])) > 0 {
			return lines[i]
		}
	}
	return out
}

// Stop tears down one session's VM and forgets it.
func (p *Pool) Stop(ctx context.Context, sessionKey string) error {
	p.mu.Lock()
	s, ok := p.sessions[sessionKey]
	if ok {
		delete(p.sessions, sessionKey)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	metrics.ActiveSessions.Set(float64(p.Size()))
	return p.provisioner.Stop(ctx, s.vmID)
}

// StopAll tears down every open session's VM.
func (p *Pool) StopAll(ctx context.Context) error {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = map[string]*session{}
	p.mu.Unlock()

	var firstErr error
	for key, s := range sessions {
		if err := p.provisioner.Stop(ctx, s.vmID); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop session %s: %w", key, err)
		}
	}
	metrics.ActiveSessions.Set(0)
	return firstErr
}
