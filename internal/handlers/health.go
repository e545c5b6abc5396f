package handlers

import (
	"context"
	"net/http"
	"os"
	"time"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Region    string           `json:"region,omitempty"`
	Instance  string           `json:"instance,omitempty"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// ping runs one dependency check.
func ping(ctx context.Context, p Pinger) Check {
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return Check{Status: "fail", Message: "connection failed"}
	}
	return Check{Status: "pass", Latency: time.Since(start).String()}
}

// Health handles the health check endpoint. The upload store is required;
// Redis and the ledger are reported only when configured.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	if h.store != nil {
		checks["store"] = ping(ctx, h.store)
	} else {
		checks["store"] = Check{Status: "fail", Message: "not configured"}
	}

	if h.redis != nil {
		checks["redis"] = ping(ctx, h.redis)
	}

	if h.ledger != nil {
		checks["ledger"] = ping(ctx, h.ledger)
	}

	if h.directory != nil {
		if snap := h.directory.Snapshot(); snap != nil {
			checks["directory"] = Check{Status: "pass", Message: "updated " + snap.TakenAt.UTC().Format(time.RFC3339)}
		} else {
			checks["directory"] = Check{Status: "fail", Message: "no snapshot yet"}
		}
	}

	for _, c := range checks {
		if c.Status != "pass" {
			allHealthy = false
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	resp := HealthResponse{
		Status:    status,
		Version:   version,
		Region:    h.region,
		Instance:  os.Getenv("HOSTNAME"),
		Checks:    checks,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}

	h.JSON(w, statusCode, resp)
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// Root handles the root endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{
		Name:    "AI Agents Marketplace Gateway",
		Version: version,
		Endpoints: []string{
			"POST /upload",
			"PUT /upload",
			"GET /uploads",
			"GET /agents",
			"GET /agents/search",
			"GET /agents/{id}",
			"GET /agents/{id}/quote",
			"GET /stats",
			"GET /health",
		},
	})
}
