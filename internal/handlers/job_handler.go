package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"catalog-adaptation-service/internal/export"
	"catalog-adaptation-service/internal/middleware"
	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/services"
)

// JobHandler handles batch adaptation job endpoints
type JobHandler struct {
	jobs           *services.JobService
	templates      *services.TemplateService
	maxUploadBytes int64
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs *services.JobService, templates *services.TemplateService, maxUploadSizeMB int) *JobHandler {
	return &JobHandler{
		jobs:           jobs,
		templates:      templates,
		maxUploadBytes: uploadLimit(maxUploadSizeMB),
	}
}

// CreateJobRequest is the JSON body of POST /jobs
type CreateJobRequest struct {
	Marketplace string                 `json:"marketplace" binding:"required"`
	SourceFile  string                 `json:"sourceFile"`
	Records     []models.ProductRecord `json:"records" binding:"required"`
}

// CreateJob starts a batch job from an upload or a JSON record list
func (h *JobHandler) CreateJob(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	req := services.SubmitRequest{TenantID: tenantID}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		result, filename, ok := readUpload(c, h.maxUploadBytes)
		if !ok {
			return
		}
		key, ok := parseMarketplace(c, c.PostForm("marketplace"))
		if !ok {
			return
		}
		if result.HasFileErrors() || len(result.Records) == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"success": false,
				"error":   models.Error{
					Code:    "INGEST_FAILED",
					Message: "uploaded file contains no valid rows",
				},
				"errors": result.Errors,
			})
			return
		}
		req.Marketplace = key
		req.SourceFile = filename
		req.Records = result.Records
		req.IngestErrors = result.Errors
	} else {
		var body CreateJobRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		key, ok := parseMarketplace(c, body.Marketplace)
		if !ok {
			return
		}
		req.Marketplace = key
		req.SourceFile = body.SourceFile
		req.Records = body.Records
	}

	job, err := h.jobs.Submit(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": job})
}

// ListJobs returns the jobs of the tenant
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, offset := pagination(c)
	opts := models.JobListOptions{
		Status: models.JobStatus(strings.ToUpper(c.Query("status"))),
		Limit:  limit,
		Offset: offset,
	}
	if m := c.Query("marketplace"); m != "" {
		opts.Marketplace = models.MarketplaceKey(strings.ToLower(m))
	}

	jobs, total, err := h.jobs.ListJobs(c.Request.Context(), middleware.GetTenantID(c), opts)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  jobs,
		"total": total,
	})
}

// GetJob returns a job with its live progress
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tenantID := middleware.GetTenantID(c)

	job, err := h.jobs.GetJob(c.Request.Context(), tenantID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	progress, err := h.jobs.Progress(c.Request.Context(), tenantID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     job,
		"progress": progress.JSON(),
	})
}

// GetResults returns a page of item results in input order
func (h *JobHandler) GetResults(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	results, total, err := h.jobs.GetResults(c.Request.Context(), middleware.GetTenantID(c), id, limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   results,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// CancelJob cancels a running job
func (h *JobHandler) CancelJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.jobs.Cancel(c.Request.Context(), middleware.GetTenantID(c), id); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: "job cancellation requested",
	})
}

// ExportJob downloads every result of a job as a marketplace upload file
func (h *JobHandler) ExportJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_FORMAT", err.Error())
		return
	}
	tenantID := middleware.GetTenantID(c)

	job, err := h.jobs.GetJob(c.Request.Context(), tenantID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	tmpl, err := h.templates.Get(job.Marketplace)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	results, _, err := h.jobs.GetResults(c.Request.Context(), tenantID, id, 0, 0)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, tmpl, results); err != nil {
		respondServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("%s_%s.%s", job.Marketplace, job.ID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
