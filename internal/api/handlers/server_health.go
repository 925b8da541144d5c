package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"payflow.io/payflow/internal/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Health status values.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
)

// HealthResponse is the probe body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// GetLiveness handles GET /health/live.
func (s *Server) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: HealthStatusOK})
}

// GetReadiness handles GET /health/ready. Every registered dependency must
// answer within readinessTimeout.
func (s *Server) GetReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string, len(s.checks))
	allHealthy := true
	for _, chk := range s.checks {
		if err := chk.Check(ctx); err != nil {
			logger.Warn("readiness check failed", zap.String("dependency", chk.Name), zap.Error(err))
			checks[chk.Name] = "error"
			allHealthy = false
			continue
		}
		checks[chk.Name] = "ok"
	}

	status := HealthStatusOK
	httpStatus := http.StatusOK
	if !allHealthy {
		status = HealthStatusDegraded
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, HealthResponse{Status: status, Checks: checks})
}
