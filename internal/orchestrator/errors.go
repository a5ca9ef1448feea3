package orchestrator

import "fmt"

// SandboxError wraps an error a sandboxed function body itself threw,
// as opposed to an error in dispatching the call. Stack is whatever the
// VM's runtime reported and may be empty.
type SandboxError struct {
	FnID    string
	Message string
	Stack   string
}

func (e *SandboxError) Error() string {
	if e.Stack != "" {
		return fmt.Sprintf("sandbox function %s threw: %s\n%s", e.FnID, e.Message, e.Stack)
	}
	return fmt.Sprintf("sandbox function %s threw: %s", e.FnID, e.Message)
}
