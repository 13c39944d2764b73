package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/analytics"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/middleware"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/utils"
)

// PatientHandler serves the tenant's patient listings and analytics.
type PatientHandler struct {
	Reader *analytics.Reader
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(reader *analytics.Reader) *PatientHandler {
	return &PatientHandler{Reader: reader}
}

// ListPatients returns every upcoming patient with its prediction.
func (h *PatientHandler) ListPatients(c *gin.Context) {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	patients, err := h.Reader.AllPatients(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, "list patients failed", err)
		return
	}
	utils.Success(c, "Patients fetched successfully", patients)
}

// PatientsByDate returns upcoming patients booked on :date.
func (h *PatientHandler) PatientsByDate(c *gin.Context) {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	patients, err := h.Reader.PatientsByDate(c.Request.Context(), tenantID, c.Param("date"))
	if err != nil {
		respondError(c, "list patients failed", err)
		return
	}
	utils.Success(c, "Patients fetched successfully", patients)
}

// PastByDate returns past appointments on :date.
func (h *PatientHandler) PastByDate(c *gin.Context) {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	past, err := h.Reader.PastByDate(c.Request.Context(), tenantID, c.Param("date"))
	if err != nil {
		respondError(c, "list past appointments failed", err)
		return
	}
	utils.Success(c, "Past appointments fetched successfully", past)
}

// WeeklyForecast returns four 7-day buckets from ?start_date=YYYY-MM-DD.
func (h *PatientHandler) WeeklyForecast(c *gin.Context) {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	buckets, err := h.Reader.WeeklyForecast(c.Request.Context(), tenantID, c.Query("start_date"))
	if err != nil {
		respondError(c, "weekly forecast failed", err)
		return
	}
	utils.Success(c, "Weekly forecast fetched successfully", buckets)
}

// MonthlyComparison compares predicted and actual spend for ?month=YYYY-MM.
func (h *PatientHandler) MonthlyComparison(c *gin.Context) {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	comparison, err := h.Reader.MonthlyComparison(c.Request.Context(), tenantID, c.Query("month"))
	if err != nil {
		respondError(c, "monthly comparison failed", err)
		return
	}
	utils.Success(c, "Monthly comparison fetched successfully", comparison)
}
