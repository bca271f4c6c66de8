package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// @Summary Healthcheck
// @Tags health
// @Produce json
// @Success 200 {object} envelope{data=healthStatus}
// @Failure 503 {object} envelope{data=healthStatus}
// @Router /health [get]
func Health(checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		res := healthStatus{Status: "ok", Checks: make(map[string]string, len(checks))}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				res.Status = "degraded"
				res.Checks[c.Name] = err.Error()
				continue
			}
			res.Checks[c.Name] = "ok"
		}

		if res.Status != "ok" {
			writeJSON(w, http.StatusServiceUnavailable, "service degraded", res)
			return
		}
		writeJSON(w, http.StatusOK, "ok", res)
	}
}
