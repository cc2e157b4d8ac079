package tss

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jkaninda/tss-resolver/internal/sandbox"
)

// CLIConfig configures the command-line client.
type CLIConfig struct {
	Executable string        // Absolute path of the tss binary.
	WorkDir    string        // Install directory; the client keeps credentials.config here.
	Timeout    time.Duration // Per invocation. Zero = sandbox default.
}

// CLIClient runs the tss binary through a sandbox.
type CLIClient struct {
	cfg     CLIConfig
	sandbox sandbox.Sandbox
	logger  *slog.Logger
}

// NewCLIClient creates a Client that launches cfg.Executable for every call.
func NewCLIClient(cfg CLIConfig, sbx sandbox.Sandbox, logger *slog.Logger) *CLIClient {
	return &CLIClient{cfg: cfg, sandbox: sbx, logger: logger}
}

// Run blocks until the client exits and returns everything it wrote to stdout.
// A non-zero exit status is not an error; tss reports most failures as text.
func (c *CLIClient) Run(ctx context.Context, args ...string) (string, error) {
	command := CommandName(args)

	if _, err := os.Stat(c.cfg.Executable); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.ErrorContext(ctx, "tss executable not found, credentials cannot be resolved",
				slog.String("path", c.cfg.Executable),
			)
			return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, c.cfg.Executable)
		}
		return "", fmt.Errorf("%w: stat %s: %v", ErrExecution, c.cfg.Executable, err)
	}

	cmdline := make([]string, 0, len(args)+1)
	cmdline = append(cmdline, c.cfg.Executable)
	cmdline = append(cmdline, args...)

	result, err := c.sandbox.Execute(ctx, sandbox.ExecutionRequest{
		Command:    cmdline,
		WorkingDir: c.cfg.WorkDir,
		Timeout:    c.cfg.Timeout,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "tss command failed",
			slog.String("command", command),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %s: %v", ErrExecution, command, err)
	}

	if result.ExitCode != 0 {
		c.logger.WarnContext(ctx, "tss exited with non-zero status",
			slog.String("command", command),
			slog.Int("exit_code", result.ExitCode),
		)
	}
	if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
		c.logger.DebugContext(ctx, "tss stderr",
			slog.String("command", command),
			slog.String("stderr", stderr),
		)
	}

	return result.Stdout, nil
}

var _ Client = (*CLIClient)(nil)
