package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"github.com/jackira01/scort-web-site-sub002/pkg/logger"
)

// Check is a named dependency probe.
type Check func(ctx context.Context) error

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandler answers liveness probes when checks is empty and readiness
// probes otherwise: 200 with status "ready" when every check passes, 503 with
// the failing checks listed when one does not.
func HealthHandler(log *slog.Logger, checks map[string]Check) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{Status: "alive"}
		code := http.StatusOK

		if len(names) > 0 {
			report.Status = "ready"
			report.Checks = make(map[string]string, len(names))
			for _, name := range names {
				if err := checks[name](r.Context()); err != nil {
					log.ErrorContext(r.Context(), "readiness check failed",
						slog.String("check", name),
						logger.Error(err),
					)
					report.Checks[name] = err.Error()
					report.Status = "not_ready"
					code = http.StatusServiceUnavailable
					continue
				}
				report.Checks[name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	}
}
