package rest

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Time   time.Time         `json:"time"`
}

// HealthCheck reports the liveness of the server's dependencies. A failing
// dependency degrades the response to 503 so load balancers stop routing.
func HealthCheck(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{
			Status: "ok",
			Checks: make(map[string]string, len(deps)),
			Time:   time.Now().UTC(),
		}

		code := http.StatusOK
		for name, dep := range deps {
			if err := dep.Ping(r.Context()); err != nil {
				status.Checks[name] = "down"
				status.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status.Checks[name] = "up"
		}

		writeJSON(w, code, status)
	}
}
