package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"
)

const (
	// maxOutputBytes caps stdout/stderr to prevent OOM from chatty commands.
	maxOutputBytes = 1 << 20 // 1 MB

	defaultTimeout = 30 * time.Second

	// waitDelay bounds how long Wait blocks on output pipes after the process is killed.
	waitDelay = 2 * time.Second
)

// ErrTimeout is returned when a command does not finish within its timeout.
var ErrTimeout = errors.New("execution timed out")

// ProcessConfig configures the process sandbox.
type ProcessConfig struct {
	DefaultTimeout time.Duration

	// PassEnv names host environment variables forwarded to the child in
	// addition to the platform base set. Unset variables are skipped.
	PassEnv []string
}

// ProcessSandbox executes commands as OS processes.
//
// Guarantees:
//   - Every execution is bounded by a timeout
//   - Process runs in its own process group where the OS supports it
//   - The process (group) is killed on timeout/cancel
//   - Only an allow-listed environment is inherited from the parent
//   - stdout/stderr capped to prevent OOM
type ProcessSandbox struct {
	defaultTimeout time.Duration
	passEnv        []string
	logger         *slog.Logger
}

// NewProcessSandbox creates a process-based sandbox.
func NewProcessSandbox(cfg ProcessConfig, logger *slog.Logger) *ProcessSandbox {
	timeout := cfg.DefaultTimeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &ProcessSandbox{
		defaultTimeout: timeout,
		passEnv:        append(baseEnvNames(), cfg.PassEnv...),
		logger:         logger,
	}
}

// Execute runs a command and waits for it to exit.
// A non-zero exit status is reported in the result, not as an error.
func (s *ProcessSandbox) Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	if len(req.Command) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = s.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, req.Command[0], req.Command[1:]...)
	cmd.Dir = req.WorkingDir
	cmd.Env = s.buildEnv(req.Env)
	cmd.WaitDelay = waitDelay
	isolate(cmd)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, remaining: maxOutputBytes}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, remaining: maxOutputBytes}

	// Arguments are not logged: they may carry onboarding keys.
	s.logger.DebugContext(ctx, "sandbox executing",
		slog.String("program", req.Command[0]),
		slog.Int("argc", len(req.Command)-1),
		slog.String("dir", cmd.Dir),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		if ctx.Err() != nil {
			s.logger.WarnContext(ctx, "sandbox execution timed out",
				slog.Duration("timeout", timeout),
				slog.Duration("duration", duration),
			)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
			}
			return nil, fmt.Errorf("execution canceled: %w", ctx.Err())
		}

		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("execution failed: %w", runErr)
		}
	}

	s.logger.DebugContext(ctx, "sandbox execution completed",
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", duration),
		slog.Int("stdout_bytes", stdoutBuf.Len()),
		slog.Int("stderr_bytes", stderrBuf.Len()),
	)

	return &ExecutionResult{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}

// buildEnv constructs the child environment from the allow-list plus extras.
// Anything not named is dropped, so resolver settings never leak into the client.
func (s *ProcessSandbox) buildEnv(extra map[string]string) []string {
	env := make([]string, 0, len(s.passEnv)+len(extra))
	seen := make(map[string]bool, len(s.passEnv))
	for _, name := range s.passEnv {
		if seen[name] {
			continue
		}
		seen[name] = true
		if v, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+v)
		}
	}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// baseEnvNames lists the variables the platform needs for a process to start at all.
func baseEnvNames() []string {
	if runtime.GOOS == "windows" {
		return []string{
			"SYSTEMROOT", "SYSTEMDRIVE", "WINDIR", "PATH", "PATHEXT", "TEMP", "TMP",
			"USERPROFILE", "APPDATA", "LOCALAPPDATA", "PROGRAMDATA", "COMPUTERNAME", "USERNAME",
		}
	}
	return []string{"PATH", "HOME", "LANG", "TMPDIR"}
}

// limitedWriter wraps a writer and stops writing after a byte limit.
// Excess data is discarded without an error.
type limitedWriter struct {
	w         io.Writer
	remaining int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.remaining <= 0 {
		return len(p), nil // Silently discard.
	}
	n := len(p)
	if n > lw.remaining {
		p = p[:lw.remaining]
	}
	written, err := lw.w.Write(p)
	lw.remaining -= written
	if err != nil {
		return written, err
	}
	return n, nil
}
