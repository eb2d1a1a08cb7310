package models

import (
	"fmt"
	"sort"
	"strings"
)

// MarketplaceKey identifies a supported sales channel
type MarketplaceKey string

const (
	MarketplaceNamshi      MarketplaceKey = "namshi"
	MarketplaceAmazon      MarketplaceKey = "amazon"
	MarketplaceNoon        MarketplaceKey = "noon"
	MarketplaceCentrepoint MarketplaceKey = "centrepoint"
	MarketplaceOunass      MarketplaceKey = "ounass"
	MarketplaceMyntra      MarketplaceKey = "myntra"
)

// AllMarketplaces returns every supported marketplace key in display order
func AllMarketplaces() []MarketplaceKey {
	return []MarketplaceKey{
		MarketplaceNamshi,
		MarketplaceAmazon,
		MarketplaceNoon,
		MarketplaceCentrepoint,
		MarketplaceOunass,
		MarketplaceMyntra,
	}
}

// IsValid reports whether the key names a supported marketplace
func (k MarketplaceKey) IsValid() bool {
	switch k {
	case MarketplaceNamshi, MarketplaceAmazon, MarketplaceNoon,
		MarketplaceCentrepoint, MarketplaceOunass, MarketplaceMyntra:
		return true
	}
	return false
}

// ParseMarketplaceKey converts user input into a MarketplaceKey
func ParseMarketplaceKey(s string) (MarketplaceKey, error) {
	k := MarketplaceKey(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("unsupported marketplace %q", s)
	}
	return k, nil
}

// ImageSpec describes the image requirements of a marketplace
type ImageSpec struct {
	Width        int    `json:"width" yaml:"width"`
	Height       int    `json:"height" yaml:"height"`
	Format       string `json:"format" yaml:"format"`
	MaxSizeBytes int64  `json:"maxSizeBytes" yaml:"maxSizeBytes"`
	AspectRatio  string `json:"aspectRatio" yaml:"aspectRatio"`
}

// TransformationRules are the value remapping rules of a marketplace
type TransformationRules struct {
	// CategoryMappings maps a raw category to the marketplace category path
	CategoryMappings map[string]string `json:"categoryMappings,omitempty" yaml:"categoryMappings,omitempty"`
	// ValueMappings maps field -> raw value -> marketplace value
	ValueMappings map[string]map[string]string `json:"valueMappings,omitempty" yaml:"valueMappings,omitempty"`
	// ConditionalFields maps a category keyword to extra required fields
	ConditionalFields map[string][]string `json:"conditionalFields,omitempty" yaml:"conditionalFields,omitempty"`
}

// Clone returns a deep copy of the rules
func (r TransformationRules) Clone() TransformationRules {
	c := TransformationRules{}
	if r.CategoryMappings != nil {
		c.CategoryMappings = make(map[string]string, len(r.CategoryMappings))
		for k, v := range r.CategoryMappings {
			c.CategoryMappings[k] = v
		}
	}
	if r.ValueMappings != nil {
		c.ValueMappings = make(map[string]map[string]string, len(r.ValueMappings))
		for field, values := range r.ValueMappings {
			inner := make(map[string]string, len(values))
			for k, v := range values {
				inner[k] = v
			}
			c.ValueMappings[field] = inner
		}
	}
	if r.ConditionalFields != nil {
		c.ConditionalFields = make(map[string][]string, len(r.ConditionalFields))
		for k, v := range r.ConditionalFields {
			c.ConditionalFields[k] = append([]string(nil), v...)
		}
	}
	return c
}

// MarketplaceTemplate is the attribute schema a marketplace requires
type MarketplaceTemplate struct {
	ID          string                `json:"id" yaml:"id"`
	Name        string                `json:"name" yaml:"name"`
	Version     string                `json:"version" yaml:"version"`
	Marketplace MarketplaceKey        `json:"marketplace" yaml:"marketplace"`
	Attributes  []AttributeDefinition `json:"attributes" yaml:"attributes"`
	ImageSpec   ImageSpec             `json:"imageSpec" yaml:"imageSpec"`
	Rules       TransformationRules   `json:"rules" yaml:"rules"`
}

// Clone returns a deep copy of the template
func (t *MarketplaceTemplate) Clone() *MarketplaceTemplate {
	if t == nil {
		return nil
	}
	c := *t
	c.Attributes = make([]AttributeDefinition, len(t.Attributes))
	for i, a := range t.Attributes {
		c.Attributes[i] = a.Clone()
	}
	c.Rules = t.Rules.Clone()
	return &c
}

// Attribute returns the named attribute of the template
func (t *MarketplaceTemplate) Attribute(name string) (AttributeDefinition, bool) {
	for _, a := range t.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeDefinition{}, false
}

// HasAttribute reports whether the template declares the named attribute
func (t *MarketplaceTemplate) HasAttribute(name string) bool {
	_, ok := t.Attribute(name)
	return ok
}

// RequiredAttributes returns the attributes flagged as required
func (t *MarketplaceTemplate) RequiredAttributes() []AttributeDefinition {
	var out []AttributeDefinition
	for _, a := range t.Attributes {
		if a.Required {
			out = append(out, a)
		}
	}
	return out
}

// ConditionalRequired returns the extra fields that become required for a category.
// Matching is a case-insensitive substring test of each configured key.
func (t *MarketplaceTemplate) ConditionalRequired(category string) []string {
	if category == "" || len(t.Rules.ConditionalFields) == 0 {
		return nil
	}
	lower := strings.ToLower(category)
	seen := make(map[string]bool)
	var out []string
	for key, fields := range t.Rules.ConditionalFields {
		if !strings.Contains(lower, strings.ToLower(key)) {
			continue
		}
		for _, f := range fields {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out
}
