package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/demo"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/utils"
)

// DemoHandler serves generated sample uploads.
type DemoHandler struct {
	// NewGenerator returns a fresh generator per request. Generators are not
	// safe for concurrent use.
	NewGenerator func() *demo.Generator
}

// NewDemoHandler creates a new DemoHandler.
func NewDemoHandler() *DemoHandler {
	return &DemoHandler{NewGenerator: demo.New}
}

// UpcomingCSV downloads a demo upcoming-appointments file.
func (h *DemoHandler) UpcomingCSV(c *gin.Context) {
	body, name, err := h.NewGenerator().UpcomingCSV()
	sendCSV(c, body, name, err)
}

// PastCSV downloads a demo past-appointments file.
func (h *DemoHandler) PastCSV(c *gin.Context) {
	body, name, err := h.NewGenerator().PastCSV()
	sendCSV(c, body, name, err)
}

func sendCSV(c *gin.Context, body []byte, name string, err error) {
	if err != nil {
		utils.InternalServerError(c, "Failed to generate demo file: "+err.Error())
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}
