package templates

import (
	"fmt"

	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/schema"
)

type templateDocument struct {
	Marketplaces []templateSpec `yaml:"marketplaces"`
}

type templateSpec struct {
	ID          string                     `yaml:"id"`
	Name        string                     `yaml:"name"`
	Version     string                     `yaml:"version"`
	Marketplace string                     `yaml:"marketplace"`
	ImageSpec   models.ImageSpec           `yaml:"imageSpec"`
	Attributes  []attributeSpec            `yaml:"attributes"`
	Rules       models.TransformationRules `yaml:"rules"`
}

// attributeSpec is one template attribute. Ref names a library definition
// that the remaining fields override.
type attributeSpec struct {
	Ref         string               `yaml:"ref"`
	Name        string               `yaml:"name"`
	Type        models.AttributeType `yaml:"type"`
	Required    *bool                `yaml:"required"`
	Priority    *int                 `yaml:"priority"`
	Validation  *models.Validation   `yaml:"validation"`
	Description string               `yaml:"description"`
}

func (s templateSpec) build(lib *schema.Library) (*models.MarketplaceTemplate, error) {
	key, err := models.ParseMarketplaceKey(s.Marketplace)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", s.ID, err)
	}

	tmpl := &models.MarketplaceTemplate{
		ID:          s.ID,
		Name:        s.Name,
		Version:     s.Version,
		Marketplace: key,
		ImageSpec:   s.ImageSpec,
		Rules:       s.Rules,
	}
	for _, as := range s.Attributes {
		def, err := as.build(lib)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", key, err)
		}
		tmpl.Attributes = append(tmpl.Attributes, def)
	}

	if err := validateTemplate(tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func (s attributeSpec) build(lib *schema.Library) (models.AttributeDefinition, error) {
	var def models.AttributeDefinition
	if s.Ref != "" {
		base, ok := lib.Lookup(s.Ref)
		if !ok {
			return def, fmt.Errorf("unknown attribute reference %q", s.Ref)
		}
		def = base
	} else {
		def.Priority = schema.Priority(s.Name)
	}

	if s.Name != "" {
		def.Name = s.Name
	}
	if s.Type != "" {
		def.Type = s.Type
	}
	if s.Required != nil {
		def.Required = *s.Required
	}
	if s.Priority != nil {
		def.Priority = *s.Priority
	}
	if s.Validation != nil {
		def.Validation = s.Validation.Clone()
	}
	if s.Description != "" {
		def.Description = s.Description
	}
	if def.Type == "" {
		def.Type = models.AttributeTypeString
	}
	return def, nil
}
