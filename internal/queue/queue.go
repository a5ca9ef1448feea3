// Package queue is the bounded job queue feeding internal/worker's pool
// of goroutines, the same fan-out shape the teacher used ahead of its
// Docker executor, now carrying sandbox call jobs instead of code
// execution jobs.
package queue

import (
	"context"
	"encoding/json"

	"github.com/usesandbox/sandbox/internal/metrics"
)

// Job is one __runSandboxFn invocation waiting to be dispatched. An
// empty SessionKey marks a call with no persistent session to reuse —
// the worker dispatches it against a one-off ephemeral VM instead of a
// pooled one.
type Job struct {
	ID          string
	SessionKey  string
	Sudo        bool
	FnID        string
	Args        []any
	ClosureVars map[string]any
	Result      chan json.RawMessage
	Err         chan error
	Ctx         context.Context
}

type Manager struct {
	jobQueue chan *Job
}

func NewManager(capacity int) *Manager {
	return &Manager{jobQueue: make(chan *Job, capacity)}
}

func (m *Manager) Submit(job *Job) {
	m.jobQueue <- job
	metrics.QueueDepth.Set(float64(len(m.jobQueue)))
}

func (m *Manager) NextJob() <-chan *Job {
	return m.jobQueue
}

func (m *Manager) UpdateQueueMetric() {
	metrics.QueueDepth.Set(float64(len(m.jobQueue)))
}
