// Package sandbox runs external commands as bounded OS processes.
// The vault client is always launched through a Sandbox, never with a bare exec call.
package sandbox

import (
	"context"
	"time"
)

// Sandbox executes commands in a controlled environment.
type Sandbox interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

// ExecutionRequest defines what to run and under what constraints.
type ExecutionRequest struct {
	// Command is the program and arguments to execute (e.g. ["/opt/tss/tss", "secret", "-s", "7", "-ad"]).
	Command []string

	// WorkingDir sets the working directory. Empty = inherit the caller's.
	WorkingDir string

	// Env adds extra environment variables to the sanitized base set.
	Env map[string]string

	// Timeout overrides the sandbox default. Zero = use default.
	Timeout time.Duration
}

// ExecutionResult captures the outcome of a command.
type ExecutionResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}
