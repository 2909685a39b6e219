package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthCheckRegistry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     []HealthChecker
		wantStatus HealthStatus
		wantCode   int
	}{
		{name: "no checks", wantStatus: HealthStatusHealthy, wantCode: http.StatusOK},
		{
			name:       "store up",
			checks:     []HealthChecker{FuncHealthCheck{CheckName: "store", Fn: func(context.Context) error { return nil }}},
			wantStatus: HealthStatusHealthy,
			wantCode:   http.StatusOK,
		},
		{
			name: "store down",
			checks: []HealthChecker{
				FuncHealthCheck{CheckName: "store", Fn: func(context.Context) error { return errors.New("connection refused") }},
				FuncHealthCheck{CheckName: "cache", Fn: func(context.Context) error { return nil }},
			},
			wantStatus: HealthStatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name: "slow check times out",
			checks: []HealthChecker{FuncHealthCheck{CheckName: "slow", Fn: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}}},
			wantStatus: HealthStatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewHealthCheckRegistry(50 * time.Millisecond)
			for _, c := range tt.checks {
				r.Register(c)
			}

			rec := httptest.NewRecorder()
			r.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var report HealthReport
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatal(err)
			}
			if report.Status != tt.wantStatus || len(report.Checks) != len(tt.checks) {
				t.Errorf("report = %+v", report)
			}
		})
	}
}
