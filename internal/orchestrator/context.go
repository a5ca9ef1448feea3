// Package orchestrator implements [POOL], [CALLCTX] and the install
// flow that ties [INSTALLSTATE] to a session's VM. Call-context
// propagation uses context.Context the way spec.md's own design notes
// recommend for non-coroutine languages, in place of the async-local
// storage an equivalent JS host would reach for.
package orchestrator

import "context"

type callCtxKey struct{}

// CallContext is bound for the dynamic extent of one Pool.Run call so
// that nested annotated calls reaching __runSandboxFn again reuse the
// same session's VM instead of provisioning a new one. Sudo is carried
// along so a nested call executes under the same privilege level the
// outer run established, rather than renegotiating it.
type CallContext struct {
	SessionKey string
	VMID       string
	Sudo       bool
}

func WithCallContext(ctx context.Context, cc *CallContext) context.Context {
	return context.WithValue(ctx, callCtxKey{}, cc)
}

func FromContext(ctx context.Context) (*CallContext, bool) {
	cc, ok := ctx.Value(callCtxKey{}).(*CallContext)
	return cc, ok
}
