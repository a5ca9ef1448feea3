package orchestrator

import "sync"

// singleflightGroup de-duplicates concurrent first use of the same
// session key: without it, two calls racing to provision session "s1"
// at the same instant would each create a VM and leak one. Hand-rolled
// rather than golang.org/x/sync/singleflight since the dedup logic
// itself is a few lines and that package isn't otherwise in use here.
type singleflightGroup struct {
	mu       sync.Mutex
	inflight map[string]*call
}

type call struct {
	done chan struct{}
	val  any
	err  error
}

func newSingleflightGroup() *singleflightGroup {
	return &singleflightGroup{inflight: map[string]*call{}}
}

func (g *singleflightGroup) do(key string, fn func() (any, error)) (any, error) {
	g.mu.Lock()
	if c, ok := g.inflight[key]; ok {
		g.mu.Unlock()
		<-c.done
		return c.val, c.err
	}
	c := &call{done: make(chan struct{})}
	g.inflight[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()
	close(c.done)

	g.mu.Lock()
	delete(g.inflight, key)
	g.mu.Unlock()

	return c.val, c.err
}
