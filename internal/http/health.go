package http

import (
	"context"
	"net/http"
	"time"

	"github.com/redmonkez12/contacts-api/internal/httputil"
	"github.com/redmonkez12/contacts-api/internal/logging"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one backing service
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthStatus is the body of the health endpoint
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler reports whether the API and its dependencies are reachable.
// Any failed check turns the response into a 503.
func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := HealthStatus{Status: "ok", Checks: make(map[string]string, len(checks))}
		code := http.StatusOK

		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logging.GetLoggerFromContext(r.Context()).Error("health check failed", "check", c.Name, "error", err.Error())
				status.Checks[c.Name] = "unavailable"
				status.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status.Checks[c.Name] = "ok"
		}

		httputil.RespondJSON(w, status, code)
	}
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httputil.RespondErrorWithCode(w, "Not found", httputil.CodeNotFound, http.StatusNotFound)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httputil.RespondError(w, "Method not allowed", http.StatusMethodNotAllowed)
}
