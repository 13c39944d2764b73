package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/scoring"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/utils"
)

// PredictHandler scores a single patient without storing anything.
type PredictHandler struct {
	Scorer scoring.Predictor
}

// NewPredictHandler creates a new PredictHandler.
func NewPredictHandler(scorer scoring.Predictor) *PredictHandler {
	return &PredictHandler{Scorer: scorer}
}

// PredictRequest is a single patient. Pointers make every field required
// while still accepting 0 and false.
type PredictRequest struct {
	Age       *int  `json:"age" binding:"required,gte=0"`
	DaysLPS   *int  `json:"days_lps" binding:"required,gte=0"`
	Employed  *bool `json:"employed" binding:"required"`
	Benefits  *bool `json:"benefits" binding:"required"`
	Driver    *bool `json:"driver" binding:"required"`
	VDU       *bool `json:"vdu" binding:"required"`
	Varifocal *bool `json:"varifocal" binding:"required"`
	HighRx    *bool `json:"high_rx" binding:"required"`
}

// PredictResponse is the score for one patient.
type PredictResponse struct {
	PurchaseProbability        float64 `json:"purchase_probability"`
	PurchaseProbabilityPercent float64 `json:"purchase_probability_percent"`
	PredictedSpend             float64 `json:"predicted_spend"`
}

// Predict handles a one-off prediction.
func (h *PredictHandler) Predict(c *gin.Context) {
	var req PredictRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if !scoring.Available(h.Scorer) {
		respondError(c, "prediction failed", scoring.ErrModelUnavailable)
		return
	}

	res, err := h.Scorer.Score(scoring.Encode(scoring.Attributes{
		Age:                   *req.Age,
		DaysSinceLastPurchase: *req.DaysLPS,
		Employed:              *req.Employed,
		OnBenefits:            *req.Benefits,
		Driver:                *req.Driver,
		VDUUser:               *req.VDU,
		Varifocal:             *req.Varifocal,
		HighPrescription:      *req.HighRx,
	}))
	if err != nil {
		respondError(c, "prediction failed", err)
		return
	}

	utils.Success(c, "Prediction computed", PredictResponse{
		PurchaseProbability:        res.PurchaseProbability,
		PurchaseProbabilityPercent: res.PercentProbability(),
		PredictedSpend:             res.PredictedSpend,
	})
}
