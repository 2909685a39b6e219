package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker verifies one dependency.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// FuncHealthCheck adapts a function, typically a store's Health method.
type FuncHealthCheck struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c FuncHealthCheck) Name() string                    { return c.CheckName }
func (c FuncHealthCheck) Check(ctx context.Context) error { return c.Fn(ctx) }

// HealthStatus is the overall verdict.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult is the outcome of one check.
type HealthCheckResult struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"` // "ok" or "error"
	Error     string  `json:"error,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
}

// HealthReport is the JSON body of the health endpoint.
type HealthReport struct {
	Status    HealthStatus                 `json:"status"`
	Checks    map[string]HealthCheckResult `json:"checks"`
	UptimeS   float64                      `json:"uptime_s"`
	Timestamp time.Time                    `json:"timestamp"`
}

// HealthCheckRegistry runs registered checks concurrently, each bounded
// by the registry timeout.
type HealthCheckRegistry struct {
	mu      sync.RWMutex
	checks  []HealthChecker
	timeout time.Duration
	started time.Time
}

// NewHealthCheckRegistry creates a registry; timeout <= 0 means 5s.
func NewHealthCheckRegistry(timeout time.Duration) *HealthCheckRegistry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthCheckRegistry{timeout: timeout, started: time.Now()}
}

// Register adds a check.
func (r *HealthCheckRegistry) Register(check HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, check)
}

// RunAll runs every check and reports unhealthy if any failed.
func (r *HealthCheckRegistry) RunAll(ctx context.Context) HealthReport {
	r.mu.RLock()
	checks := append([]HealthChecker(nil), r.checks...)
	r.mu.RUnlock()

	report := HealthReport{
		Status:    HealthStatusHealthy,
		Checks:    make(map[string]HealthCheckResult, len(checks)),
		UptimeS:   time.Since(r.started).Seconds(),
		Timestamp: time.Now().UTC(),
	}

	results := make([]HealthCheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			start := time.Now()
			err := c.Check(checkCtx)
			results[i] = HealthCheckResult{
				Name:      c.Name(),
				Status:    "ok",
				LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
			}
			if err != nil {
				results[i].Status = "error"
				results[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()

	for _, res := range results {
		report.Checks[res.Name] = res
		if res.Status != "ok" {
			report.Status = HealthStatusUnhealthy
		}
	}
	return report
}

// HTTPHandler serves the report as JSON: 200 when healthy, 503 otherwise.
func (r *HealthCheckRegistry) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		report := r.RunAll(req.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status != HealthStatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
}
