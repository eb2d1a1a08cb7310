package synthesis

import (
	"context"

	"catalog-adaptation-service/internal/models"
)

// GenerationRequest is what a content generator receives for one record
type GenerationRequest struct {
	ExistingFields    models.ProductRecord         `json:"existingFields"`
	MissingFieldSpecs []models.AttributeDefinition `json:"missingFieldSpecs"`
	MarketplaceKey    models.MarketplaceKey        `json:"marketplaceKey"`
}

// ContentGenerator produces values for missing attributes. Implementations
// return a flat map keyed by attribute name; keys they cannot fill are omitted.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (map[string]interface{}, error)
}
