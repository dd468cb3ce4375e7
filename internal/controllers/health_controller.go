package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is anything the health check can ping
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthController struct {
	service string
	checks  map[string]Pinger
	timeout time.Duration
}

func NewHealthController(service string, checks map[string]Pinger) *HealthController {
	return &HealthController{service: service, checks: checks, timeout: 2 * time.Second}
}

// Health godoc
// @Summary Health check
// @Description Check the service and its state store and database
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{} "A dependency is unreachable"
// @Router /health [get]
func (hc *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), hc.timeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(hc.checks))
	for name, check := range hc.checks {
		if err := check.Ping(ctx); err != nil {
			log.WithError(err).WithField("check", name).Warn("Health check failed")
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   hc.service,
		"checks":    checks,
	})
}
