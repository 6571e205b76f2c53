package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface
type PingerFunc func(ctx context.Context) error

// Ping calls the wrapped function
func (f PingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	startTime time.Time
	checks    map[string]Pinger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		checks:    make(map[string]Pinger),
	}
}

// AddCheck registers a named dependency check
func (h *HealthHandler) AddCheck(name string, pinger Pinger) {
	h.checks[name] = pinger
}

// HealthResponse reports service health and dependency status
type HealthResponse struct {
	Status    string            `json:"status"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Healthz returns 200 when the service and its dependencies are healthy,
// 503 when any dependency check fails
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "ok",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	status := http.StatusOK
	if len(h.checks) > 0 {
		response.Checks = make(map[string]string, len(h.checks))
		for name, pinger := range h.checks {
			if err := pinger.Ping(ctx); err != nil {
				response.Checks[name] = err.Error()
				response.Status = "degraded"
				status = http.StatusServiceUnavailable
			} else {
				response.Checks[name] = "ok"
			}
		}
	}

	c.JSON(status, response)
}
