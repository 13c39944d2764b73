package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/analytics"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/ingest"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/logger"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/scoring"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/utils"
)

// respondError maps domain errors onto the standard error responses. action
// prefixes the message, e.g. "upload failed".
func respondError(c *gin.Context, action string, err error) {
	var malformed *ingest.MalformedRowError
	var badRange *analytics.InvalidDateRangeError

	switch {
	case errors.As(err, &malformed), errors.Is(err, ingest.ErrEmptyUpload):
		utils.BadRequest(c, action+": "+err.Error())
	case errors.As(err, &badRange):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, scoring.ErrModelUnavailable):
		utils.ServiceUnavailable(c, action+": "+err.Error())
	default:
		_ = c.Error(err)
		logger.FromContext(c.Request.Context()).Error(action, zap.Error(err))
		utils.InternalServerError(c, action+": "+err.Error())
	}
}
