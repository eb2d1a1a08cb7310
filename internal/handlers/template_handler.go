package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-adaptation-service/internal/export"
	"catalog-adaptation-service/internal/middleware"
	"catalog-adaptation-service/internal/services"
	"catalog-adaptation-service/internal/templates"
)

// TemplateHandler handles marketplace template endpoints
type TemplateHandler struct {
	service *services.TemplateService
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(service *services.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// ListMarketplaces returns the marketplaces with a registered template
func (h *TemplateHandler) ListMarketplaces(c *gin.Context) {
	keys := h.service.ListSupportedMarketplaces()

	type marketplaceSummary struct {
		Key        string `json:"key"`
		Name       string `json:"name"`
		Version    string `json:"version"`
		Attributes int    `json:"attributes"`
	}
	out := make([]marketplaceSummary, 0, len(keys))
	for _, key := range keys {
		tmpl, err := h.service.Get(key)
		if err != nil {
			continue
		}
		out = append(out, marketplaceSummary{
			Key:        string(key),
			Name:       tmpl.Name,
			Version:    tmpl.Version,
			Attributes: len(tmpl.Attributes),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  out,
		"total": len(out),
	})
}

// Get returns the current template of a marketplace
func (h *TemplateHandler) Get(c *gin.Context) {
	key, ok := parseMarketplace(c, c.Param("marketplace"))
	if !ok {
		return
	}

	tmpl, err := h.service.Get(key)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tmpl})
}

// Update applies a partial template update and bumps its version
func (h *TemplateHandler) Update(c *gin.Context) {
	key, ok := parseMarketplace(c, c.Param("marketplace"))
	if !ok {
		return
	}

	var update templates.TemplateUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if update.IsEmpty() {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "update contains no changes")
		return
	}

	tmpl, err := h.service.Update(c.Request.Context(), key, update, middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, services.ErrUnknownMarketplace) {
			respondServiceError(c, err)
			return
		}
		respondError(c, http.StatusBadRequest, "INVALID_TEMPLATE", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tmpl})
}

// History lists the stored versions of a template
func (h *TemplateHandler) History(c *gin.Context) {
	key, ok := parseMarketplace(c, c.Param("marketplace"))
	if !ok {
		return
	}

	versions, err := h.service.History(c.Request.Context(), key)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  versions,
		"total": len(versions),
	})
}

// ImportTemplate downloads an empty upload sheet for a marketplace
func (h *TemplateHandler) ImportTemplate(c *gin.Context) {
	key, ok := parseMarketplace(c, c.Param("marketplace"))
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatXLSX)))
	if err != nil || format == export.FormatParquet {
		respondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be csv, xlsx or json")
		return
	}

	tmpl, err := h.service.Get(key)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteImportTemplate(&buf, format, tmpl); err != nil {
		respondServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("%s_import_template.%s", key, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
