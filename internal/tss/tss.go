// Package tss drives the Secret Server command-line client (tss).
// The client is treated as an opaque executable: arguments in, stdout out.
package tss

import (
	"context"
	"errors"
)

// Client runs one tss command and returns its standard output.
// Implementations must be safe for concurrent use.
type Client interface {
	Run(ctx context.Context, args ...string) (string, error)
}

var (
	// ErrExecutableNotFound is returned when the tss client is not installed where expected.
	ErrExecutableNotFound = errors.New("tss executable not found")

	// ErrExecution is returned when the client cannot be launched, times out or is interrupted.
	ErrExecution = errors.New("tss execution failed")

	// ErrCredentialsNotPresent means the client reports it has not been initialized on this host.
	ErrCredentialsNotPresent = errors.New("secret server credentials not present")

	// ErrMalformedResponse means a response looked like a JSON object but did not decode.
	ErrMalformedResponse = errors.New("malformed tss response")

	// ErrVaultError means the client answered with an error message instead of a record.
	ErrVaultError = errors.New("tss returned an error")

	// ErrInitSettings means the one-time initialization settings are missing or incomplete.
	ErrInitSettings = errors.New("tss initialization settings incomplete")

	// ErrInitIncomplete means init ran but the client did not record its credentials.
	ErrInitIncomplete = errors.New("tss initialization did not complete")
)

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, args ...string) (string, error)

func (f ClientFunc) Run(ctx context.Context, args ...string) (string, error) { return f(ctx, args...) }
