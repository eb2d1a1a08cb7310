package templates

import "catalog-adaptation-service/internal/models"

// TemplateUpdate is a partial change to a marketplace template. Nil fields
// are left untouched.
type TemplateUpdate struct {
	Name *string `json:"name,omitempty"`
	// Attributes are upserted by name, keeping the position of existing ones
	Attributes       []models.AttributeDefinition `json:"attributes,omitempty"`
	RemoveAttributes []string                     `json:"removeAttributes,omitempty"`
	ImageSpec        *models.ImageSpec            `json:"imageSpec,omitempty"`
	// Rules entries are merged key by key into the current rules
	Rules *models.TransformationRules `json:"rules,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u TemplateUpdate) IsEmpty() bool {
	return u.Name == nil && len(u.Attributes) == 0 && len(u.RemoveAttributes) == 0 &&
		u.ImageSpec == nil && u.Rules == nil
}

func (u TemplateUpdate) apply(t *models.MarketplaceTemplate) {
	if u.Name != nil {
		t.Name = *u.Name
	}

	if len(u.RemoveAttributes) > 0 {
		drop := make(map[string]bool, len(u.RemoveAttributes))
		for _, n := range u.RemoveAttributes {
			drop[n] = true
		}
		kept := t.Attributes[:0]
		for _, a := range t.Attributes {
			if !drop[a.Name] {
				kept = append(kept, a)
			}
		}
		t.Attributes = kept
	}

	for _, a := range u.Attributes {
		replaced := false
		for i := range t.Attributes {
			if t.Attributes[i].Name == a.Name {
				t.Attributes[i] = a.Clone()
				replaced = true
				break
			}
		}
		if !replaced {
			t.Attributes = append(t.Attributes, a.Clone())
		}
	}

	if u.ImageSpec != nil {
		t.ImageSpec = *u.ImageSpec
	}

	if u.Rules != nil {
		mergeRules(&t.Rules, u.Rules.Clone())
	}
}

func mergeRules(dst *models.TransformationRules, src models.TransformationRules) {
	if len(src.CategoryMappings) > 0 && dst.CategoryMappings == nil {
		dst.CategoryMappings = make(map[string]string)
	}
	for k, v := range src.CategoryMappings {
		dst.CategoryMappings[k] = v
	}

	if len(src.ValueMappings) > 0 && dst.ValueMappings == nil {
		dst.ValueMappings = make(map[string]map[string]string)
	}
	for field, values := range src.ValueMappings {
		if dst.ValueMappings[field] == nil {
			dst.ValueMappings[field] = make(map[string]string)
		}
		for k, v := range values {
			dst.ValueMappings[field][k] = v
		}
	}

	if len(src.ConditionalFields) > 0 && dst.ConditionalFields == nil {
		dst.ConditionalFields = make(map[string][]string)
	}
	for k, v := range src.ConditionalFields {
		dst.ConditionalFields[k] = v
	}
}
