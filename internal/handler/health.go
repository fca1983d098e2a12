package handler

import (
	"net/http"
	"time"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status   string    `json:"status"`
	AI       bool      `json:"ai"`      // false when running on fallbacks
	Storage  string    `json:"storage"` // "sqlite" | "postgres"
	MarketAt time.Time `json:"marketAt"`
}

// Health reports liveness plus which optional integrations are active.
// The server is healthy without an AI key; clients just get fallbacks.
//
// HTTP: GET /health
func Health(status func() HealthStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := status()
		s.Status = "ok"
		writeJSON(w, http.StatusOK, s)
	}
}
