package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/simon-dulai/optometry-purchase-predictor/internal/archive"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/ingest"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/logger"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/metrics"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/middleware"
	"github.com/simon-dulai/optometry-purchase-predictor/internal/utils"
)

// Ingester is the part of the ingestion pipeline the upload endpoints use.
type Ingester interface {
	IngestUpcoming(ctx context.Context, tenantID uint, r io.Reader) (ingest.UpcomingResult, error)
	IngestPast(ctx context.Context, tenantID uint, r io.Reader) (ingest.PastResult, error)
}

// UploadHandler handles CSV uploads.
type UploadHandler struct {
	Pipeline Ingester
	Archive  archive.Store
	MaxBytes int64
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(pipeline Ingester, store archive.Store, maxBytes int64) *UploadHandler {
	if store == nil {
		store = archive.NopStore{}
	}
	return &UploadHandler{Pipeline: pipeline, Archive: store, MaxBytes: maxBytes}
}

// UploadUpcoming ingests a CSV of upcoming appointments sent as multipart field "file".
func (h *UploadHandler) UploadUpcoming(c *gin.Context) {
	tenantID, data, ok := h.readUpload(c, metrics.KindUpcoming)
	if !ok {
		return
	}

	res, err := h.Pipeline.IngestUpcoming(c.Request.Context(), tenantID, bytes.NewReader(data))
	if err != nil {
		respondError(c, "upload failed", err)
		return
	}
	utils.Success(c, "Upload processed", res)
}

// UploadPast ingests a CSV of past appointments sent as multipart field "file".
func (h *UploadHandler) UploadPast(c *gin.Context) {
	tenantID, data, ok := h.readUpload(c, metrics.KindPast)
	if !ok {
		return
	}

	res, err := h.Pipeline.IngestPast(c.Request.Context(), tenantID, bytes.NewReader(data))
	if err != nil {
		respondError(c, "upload failed", err)
		return
	}
	utils.Success(c, "Upload processed", res)
}

// readUpload reads the uploaded file and archives a raw copy. Archive errors
// are logged and do not fail the upload.
func (h *UploadHandler) readUpload(c *gin.Context, kind string) (uint, []byte, bool) {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return 0, nil, false
	}

	if h.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RequestEntityTooLarge(c, fmt.Sprintf("upload failed: file exceeds %d bytes", h.MaxBytes))
			return 0, nil, false
		}
		utils.BadRequest(c, "upload failed: multipart field \"file\" is required")
		return 0, nil, false
	}

	f, err := header.Open()
	if err != nil {
		utils.InternalServerError(c, "upload failed: "+err.Error())
		return 0, nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		utils.InternalServerError(c, "upload failed: "+err.Error())
		return 0, nil, false
	}

	ctx := c.Request.Context()
	if key, err := h.Archive.Put(ctx, tenantID, kind, data); err != nil {
		logger.FromContext(ctx).Warn("archive upload failed", zap.String("kind", kind), zap.Error(err))
	} else if key != "" {
		logger.FromContext(ctx).Debug("upload archived", zap.String("kind", kind), zap.String("key", key))
	}
	return tenantID, data, true
}
