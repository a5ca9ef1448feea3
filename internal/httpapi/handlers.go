// Package httpapi is the thin host-framework stand-in that serves the
// /call endpoint over HTTP (internal/server mounts it next to /health
// and /metrics), grounded on the teacher's
// internal/api.Handler. It stands in for "the HTTP/LLM demo
// application" collaborator the core sandbox system is built to serve,
// not a goal of the core itself.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/usesandbox/sandbox/internal/id"
	"github.com/usesandbox/sandbox/internal/queue"
)

// CallRequest is one __runSandboxFn invocation arriving over HTTP,
// shaped the way a host application forwards a stub's call. SessionKey
// is optional: when absent the call has no persistent session to reuse
// and is dispatched against a one-off ephemeral VM. Sudo defaults to
// true when omitted, matching run()'s own keyOrOptions normalisation.
type CallRequest struct {
	SessionKey     string         `json:"session_key"`
	FnID           string         `json:"fn_id"`
	Args           []any          `json:"args"`
	ClosureVars    map[string]any `json:"closure_vars"`
	Sudo           *bool          `json:"sudo"`
	TimeoutSeconds int            `json:"timeout_seconds"`
}

type CallResponse struct {
	Result json.RawMessage `json:"result"`
}

type Handler struct {
	queueManager *queue.Manager
}

func NewHandler(manager *queue.Manager) *Handler {
	return &Handler{queueManager: manager}
}

func (h *Handler) Call(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FnID == "" {
		http.Error(w, "fn_id is required", http.StatusBadRequest)
		return
	}
	if req.TimeoutSeconds == 0 {
		req.TimeoutSeconds = 10
	}
	sudo := true
	if req.Sudo != nil {
		sudo = *req.Sudo
	}

	resultChan := make(chan json.RawMessage, 1)
	errChan := make(chan error, 1)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(req.TimeoutSeconds)*time.Second)
	defer cancel()

	job := &queue.Job{
		ID:          "call-" + id.New(),
		SessionKey:  req.SessionKey,
		Sudo:        sudo,
		FnID:        req.FnID,
		Args:        req.Args,
		ClosureVars: req.ClosureVars,
		Result:      resultChan,
		Err:         errChan,
		Ctx:         ctx,
	}
	h.queueManager.Submit(job)

	select {
	case res := <-resultChan:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CallResponse{Result: res})
	case err := <-errChan:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case <-ctx.Done():
		http.Error(w, "sandbox call timed out", http.StatusGatewayTimeout)
	}
}
