package observability

import (
	"context"
	"log/slog"
	"time"
)

const healthCheckTimeout = 3 * time.Second

// Health states.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// HealthChecker aggregates the local prerequisites of a resolution:
// install directory, client executable, mapping table and marker file.
type HealthChecker struct {
	checks []HealthCheck
	logger *slog.Logger
}

// HealthCheck is a named prerequisite check.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthStatus is the JSON document printed by the check command.
type HealthStatus struct {
	Status string                 `json:"status"` // "ok" or "degraded"
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the status of a single check.
type CheckResult struct {
	Status   string `json:"status"`            // "ok" or "fail"
	Message  string `json:"message,omitempty"` // Error message on failure.
	Duration string `json:"duration"`
}

// NewHealthChecker creates a HealthChecker with no checks registered.
func NewHealthChecker(logger *slog.Logger) *HealthChecker {
	return &HealthChecker{logger: logger}
}

// AddCheck registers a named check. Checks run in registration order.
func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) error) {
	h.checks = append(h.checks, HealthCheck{Name: name, Check: check})
}

// Healthy reports whether s has no failed checks.
func (s HealthStatus) Healthy() bool {
	return s.Status == StatusOK
}

// Run executes all registered checks and returns the aggregate status.
// Returns "ok" only if all checks pass; "degraded" if any fail.
func (h *HealthChecker) Run(ctx context.Context) HealthStatus {
	if len(h.checks) == 0 {
		return HealthStatus{Status: StatusOK}
	}

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	status := HealthStatus{
		Status: StatusOK,
		Checks: make(map[string]CheckResult, len(h.checks)),
	}

	for _, c := range h.checks {
		start := time.Now()
		err := c.Check(checkCtx)
		elapsed := time.Since(start).Round(time.Microsecond).String()

		if err != nil {
			status.Status = StatusDegraded
			status.Checks[c.Name] = CheckResult{
				Status:   StatusFail,
				Message:  err.Error(),
				Duration: elapsed,
			}
			if h.logger != nil {
				h.logger.WarnContext(ctx, "health check failed",
					slog.String("check", c.Name),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		status.Checks[c.Name] = CheckResult{Status: StatusOK, Duration: elapsed}
	}

	return status
}
