// Package worker runs the goroutine pool that drains internal/queue and
// dispatches each job into internal/orchestrator's VM pool, the same
// fan-out shape the teacher used ahead of its Docker executor.
package worker

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/usesandbox/sandbox/internal/metrics"
	"github.com/usesandbox/sandbox/internal/orchestrator"
	"github.com/usesandbox/sandbox/internal/queue"
)

type Worker struct {
	id      int
	pool    *orchestrator.Pool
	manager *queue.Manager
	logger  *zerolog.Logger
}

func NewWorker(id int, pool *orchestrator.Pool, manager *queue.Manager, logger *zerolog.Logger) *Worker {
	return &Worker{id: id, pool: pool, manager: manager, logger: logger}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().Int("worker_id", w.id).Msg("worker started")
	for {
		select {
		case job := <-w.manager.NextJob():
			w.manager.UpdateQueueMetric()
			metrics.ActiveWorkers.Inc()
			w.processJob(job)
			metrics.ActiveWorkers.Dec()
		case <-ctx.Done():
			w.logger.Info().Int("worker_id", w.id).Msg("worker stopping")
			return
		}
	}
}

func (w *Worker) processJob(job *queue.Job) {
	w.logger.Debug().
		Int("worker_id", w.id).
		Str("job_id", job.ID).
		Str("fn_id", job.FnID).
		Msg("processing job")

	var (
		result json.RawMessage
		err    error
	)
	if job.SessionKey != "" {
		result, err = w.pool.Run(job.Ctx, job.SessionKey, job.Sudo, job.FnID, job.Args, job.ClosureVars)
	} else {
		result, err = w.pool.Dispatch(job.Ctx, job.FnID, job.Args, job.ClosureVars, job.Sudo)
	}
	if err != nil {
		w.logger.Error().
			Err(err).
			Int("worker_id", w.id).
			Str("session_key", job.SessionKey).
			Str("fn_id", job.FnID).
			Msg("sandbox call failed")
		job.Err <- err
		return
	}
	job.Result <- result
}
