package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/events"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/middleware"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/models"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/utils"
)

// DataHandler manages the tenant's stored data as a whole.
type DataHandler struct {
	DB     *gorm.DB
	Events events.Publisher
}

// NewDataHandler creates a new DataHandler.
func NewDataHandler(db *gorm.DB, publisher events.Publisher) *DataHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &DataHandler{DB: db, Events: publisher}
}

// ClearData deletes every patient, prediction and past appointment of the
// tenant. The account itself is kept.
func (h *DataHandler) ClearData(c *gin.Context) {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	res, err := models.ClearTenantData(c.Request.Context(), h.DB, tenantID)
	if err != nil {
		respondError(c, "clear data failed", err)
		return
	}

	publishCleared(c, h.Events, tenantID, res)
	utils.Success(c, "Data cleared", res)
}
