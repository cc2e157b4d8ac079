package tss

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// recordingClient is a scripted Client that remembers every invocation.
type recordingClient struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(args []string) (string, error)
}

func (c *recordingClient) Run(_ context.Context, args ...string) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, append([]string(nil), args...))
	c.mu.Unlock()
	if c.respond == nil {
		return "", nil
	}
	return c.respond(args)
}

func (c *recordingClient) commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	for i, call := range c.calls {
		out[i] = strings.Join(call, " ")
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
