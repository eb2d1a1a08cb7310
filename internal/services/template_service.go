package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/repository"
	"catalog-adaptation-service/internal/templates"
)

// TemplateService serves marketplace templates and persists their updates
type TemplateService struct {
	registry *templates.Registry
	store    repository.TemplateStore
	logger   *logrus.Entry
}

// NewTemplateService creates a new template service. store may be nil, in
// which case updates live only in memory.
func NewTemplateService(registry *templates.Registry, store repository.TemplateStore, logger *logrus.Logger) *TemplateService {
	return &TemplateService{
		registry: registry,
		store:    store,
		logger:   logger.WithField("component", "templates"),
	}
}

// Get returns the current template of a marketplace
func (s *TemplateService) Get(key models.MarketplaceKey) (*models.MarketplaceTemplate, error) {
	if !key.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMarketplace, key)
	}
	tmpl, err := s.registry.Get(key)
	if err != nil {
		if errors.Is(err, templates.ErrTemplateNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMarketplace, key)
		}
		return nil, err
	}
	return tmpl, nil
}

// ListSupportedMarketplaces returns the marketplaces with a template
func (s *TemplateService) ListSupportedMarketplaces() []models.MarketplaceKey {
	return s.registry.ListSupportedMarketplaces()
}

// Update applies a partial update and records the new version
func (s *TemplateService) Update(ctx context.Context, key models.MarketplaceKey, update templates.TemplateUpdate, updatedBy string) (*models.MarketplaceTemplate, error) {
	if !key.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMarketplace, key)
	}
	tmpl, err := s.registry.UpdateTemplate(key, update)
	if err != nil {
		if errors.Is(err, templates.ErrTemplateNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMarketplace, key)
		}
		return nil, err
	}

	if s.store != nil {
		data, err := json.Marshal(tmpl)
		if err != nil {
			return nil, fmt.Errorf("failed to encode template: %w", err)
		}
		version := &models.TemplateVersion{
			Marketplace: key,
			Version:     tmpl.Version,
			Template:    datatypes.JSON(data),
			UpdatedBy:   updatedBy,
		}
		if err := s.store.SaveVersion(ctx, version); err != nil {
			return nil, fmt.Errorf("failed to save template version: %w", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"marketplace": key,
		"version":     tmpl.Version,
		"updated_by":  updatedBy,
	}).Info("Template updated")
	return tmpl, nil
}

// History lists the stored versions of a marketplace template, newest first
func (s *TemplateService) History(ctx context.Context, key models.MarketplaceKey) ([]models.TemplateVersion, error) {
	if !key.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMarketplace, key)
	}
	if s.store == nil {
		return []models.TemplateVersion{}, nil
	}
	return s.store.ListVersions(ctx, key)
}

// Restore installs the newest stored version of every marketplace. It returns
// the number of templates restored.
func (s *TemplateService) Restore(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	versions, err := s.store.LatestVersions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load template versions: %w", err)
	}

	restored := 0
	for _, v := range versions {
		var tmpl models.MarketplaceTemplate
		if err := json.Unmarshal(v.Template, &tmpl); err != nil {
			s.logger.WithError(err).WithField("marketplace", v.Marketplace).Warn("Skipping unreadable template version")
			continue
		}
		if err := s.registry.Replace(&tmpl); err != nil {
			s.logger.WithError(err).WithField("marketplace", v.Marketplace).Warn("Skipping invalid template version")
			continue
		}
		restored++
	}
	if restored > 0 {
		s.logger.WithField("count", restored).Info("Restored template versions")
	}
	return restored, nil
}
