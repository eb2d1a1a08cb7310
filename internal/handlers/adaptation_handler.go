package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-adaptation-service/internal/ingest"
	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/services"
)

// AdaptationHandler handles ingestion and synchronous adaptation
type AdaptationHandler struct {
	service        *services.AdaptationService
	maxUploadBytes int64
}

// NewAdaptationHandler creates a new adaptation handler
func NewAdaptationHandler(service *services.AdaptationService, maxUploadSizeMB int) *AdaptationHandler {
	return &AdaptationHandler{
		service:        service,
		maxUploadBytes: uploadLimit(maxUploadSizeMB),
	}
}

// AdaptRequest is the body of POST /adapt
type AdaptRequest struct {
	Marketplace string               `json:"marketplace" binding:"required"`
	Record      models.ProductRecord `json:"record" binding:"required"`
}

// Ingest normalizes an uploaded spreadsheet without adapting it
func (h *AdaptationHandler) Ingest(c *gin.Context) {
	result, _, ok := readUpload(c, h.maxUploadBytes)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// Adapt adapts one record to a marketplace template
func (h *AdaptationHandler) Adapt(c *gin.Context) {
	var req AdaptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	key, ok := parseMarketplace(c, req.Marketplace)
	if !ok {
		return
	}

	result, err := h.service.Adapt(c.Request.Context(), req.Record, key)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func uploadLimit(maxUploadSizeMB int) int64 {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = 20
	}
	return int64(maxUploadSizeMB) << 20
}

// readUpload parses and normalizes the multipart "file" field. It writes the
// error response itself and reports false when the upload is unusable.
func readUpload(c *gin.Context, maxBytes int64) (*ingest.Result, string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "uploaded file exceeds the size limit")
			return nil, "", false
		}
		respondError(c, http.StatusBadRequest, "FILE_REQUIRED", "multipart field 'file' is required")
		return nil, "", false
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_FILE", err.Error())
		return nil, "", false
	}
	defer file.Close()

	table, err := ingest.ParseFile(fileHeader.Filename, file)
	if err != nil {
		if errors.Is(err, ingest.ErrUnsupportedFormat) {
			respondError(c, http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error())
			return nil, "", false
		}
		respondError(c, http.StatusBadRequest, "INVALID_FILE", err.Error())
		return nil, "", false
	}

	return ingest.NormalizeTable(table), fileHeader.Filename, true
}
