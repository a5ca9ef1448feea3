// Package vm defines the provisioning boundary [POOL] sits on top of:
// whatever actually creates, populates and tears down a sandbox VM is
// an external collaborator the orchestrator depends on only through
// this interface.
package vm

import "context"

// Provisioner creates and drives one VM per session key. Implementations
// are expected to keep the VM alive across many RunCommand calls so
// nested and repeated calls against the same session reuse it.
type Provisioner interface {
	// Create provisions a fresh, running VM and returns its id.
	Create(ctx context.Context, sessionKey string) (string, error)

	// WriteFiles installs or overwrites a set of files inside the VM,
	// keyed by their path relative to the VM's working directory.
	WriteFiles(ctx context.Context, vmID string, files map[string][]byte) error

	// RunCommand executes cmd inside the VM with stdin piped to it and
	// returns its captured stdout/stderr and exit code. sudo selects the
	// privilege level the command runs under.
	RunCommand(ctx context.Context, vmID string, cmd []string, stdin []byte, sudo bool) (*CommandResult, error)

	// Stop tears the VM down and releases its resources.
	Stop(ctx context.Context, vmID string) error
}

// CommandResult is one RunCommand invocation's outcome.
type CommandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimeMs   int64
}
