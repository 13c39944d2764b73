package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/scoring"
)

// HealthHandler reports liveness and model readiness.
type HealthHandler struct {
	DB     *gorm.DB
	Scorer scoring.Predictor
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *gorm.DB, scorer scoring.Predictor) *HealthHandler {
	return &HealthHandler{DB: db, Scorer: scorer}
}

// Health returns UP while the database answers. A missing scorer is reported
// but does not make the service unhealthy.
func (h *HealthHandler) Health(c *gin.Context) {
	dbStatus := "UP"
	status := http.StatusOK
	if sqlDB, err := h.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		dbStatus = "DOWN"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":       dbStatus,
		"database":     dbStatus,
		"scorer_ready": scoring.Available(h.Scorer),
	})
}
