package repository

import (
	"context"

	"gorm.io/gorm"

	"catalog-adaptation-service/internal/models"
)

// TemplateStore persists applied template updates
type TemplateStore interface {
	SaveVersion(ctx context.Context, version *models.TemplateVersion) error
	ListVersions(ctx context.Context, marketplace models.MarketplaceKey) ([]models.TemplateVersion, error)
	LatestVersions(ctx context.Context) ([]models.TemplateVersion, error)
}

// TemplateRepository handles database operations for template versions
type TemplateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

var _ TemplateStore = (*TemplateRepository)(nil)

// SaveVersion stores a template version
func (r *TemplateRepository) SaveVersion(ctx context.Context, version *models.TemplateVersion) error {
	return r.db.WithContext(ctx).Create(version).Error
}

// ListVersions returns the version history of a marketplace, newest first
func (r *TemplateRepository) ListVersions(ctx context.Context, marketplace models.MarketplaceKey) ([]models.TemplateVersion, error) {
	var versions []models.TemplateVersion
	err := r.db.WithContext(ctx).
		Where("marketplace = ?", marketplace).
		Order("created_at DESC").
		Find(&versions).Error
	return versions, err
}

// LatestVersions returns the newest stored version of every marketplace
func (r *TemplateRepository) LatestVersions(ctx context.Context) ([]models.TemplateVersion, error) {
	var versions []models.TemplateVersion
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&versions).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[models.MarketplaceKey]bool)
	latest := make([]models.TemplateVersion, 0, len(versions))
	for _, v := range versions {
		if seen[v.Marketplace] {
			continue
		}
		seen[v.Marketplace] = true
		latest = append(latest, v)
	}
	return latest, nil
}
