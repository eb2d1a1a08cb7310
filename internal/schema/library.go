package schema

import (
	"sort"
	"strings"

	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/similarity"
)

// Library is the shared set of attribute definitions that marketplace
// templates are built from. It is read-only after construction.
type Library struct {
	definitions map[string]models.AttributeDefinition
	order       []string
}

// NewLibrary creates a library seeded with the built-in definitions
func NewLibrary() *Library {
	l := &Library{definitions: make(map[string]models.AttributeDefinition)}
	for _, def := range builtinDefinitions() {
		l.definitions[def.Name] = def
		l.order = append(l.order, def.Name)
	}
	return l
}

// Lookup returns a copy of the definition registered under name
func (l *Library) Lookup(name string) (models.AttributeDefinition, bool) {
	def, ok := l.definitions[similarity.NormalizeName(name)]
	if !ok {
		return models.AttributeDefinition{}, false
	}
	return def.Clone(), true
}

// Names returns the registered definition names in declaration order
func (l *Library) Names() []string {
	return append([]string(nil), l.order...)
}

// Definitions returns copies of every registered definition
func (l *Library) Definitions() []models.AttributeDefinition {
	out := make([]models.AttributeDefinition, 0, len(l.order))
	for _, n := range l.order {
		out = append(out, l.definitions[n].Clone())
	}
	return out
}

// ExtractAttributes describes every attribute seen in records. Known names
// use the library definition, unknown names are inferred from the values.
// The result is ordered by priority descending, then name.
func (l *Library) ExtractAttributes(records []models.ProductRecord) []models.AttributeDefinition {
	seen := make(map[string]bool)
	var keys []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}

	defs := make([]models.AttributeDefinition, 0, len(keys))
	for _, key := range keys {
		def, ok := l.Lookup(key)
		if !ok {
			var samples []interface{}
			for _, r := range records {
				if v, present := r[key]; present {
					samples = append(samples, v)
				}
			}
			def = Infer(key, samples, records)
		}
		def.Name = key
		defs = append(defs, def)
	}

	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Priority != defs[j].Priority {
			return defs[i].Priority > defs[j].Priority
		}
		return defs[i].Name < defs[j].Name
	})
	return defs
}

// Priority returns the matching priority implied by an attribute name
func Priority(name string) int {
	norm := similarity.NormalizeName(name)
	switch {
	case strings.Contains(norm, "sku") || similarity.HasToken(norm, "id"):
		return 100
	case strings.Contains(norm, "title") || strings.Contains(norm, "name"):
		return 95
	case strings.Contains(norm, "price") || strings.Contains(norm, "brand"):
		return 90
	case strings.Contains(norm, "category") || strings.Contains(norm, "description"):
		return 85
	case strings.Contains(norm, "color") || strings.Contains(norm, "colour") || strings.Contains(norm, "size"):
		return 80
	}
	return 50
}

func builtinDefinitions() []models.AttributeDefinition {
	str := models.AttributeTypeString
	num := models.AttributeTypeNumber
	return []models.AttributeDefinition{
		{Name: "sku", Type: str, Required: true, Priority: 100,
			Validation:  &models.Validation{MaxLength: models.IntPtr(64), Pattern: `^[A-Za-z0-9._\-]+$`},
			Description: "Seller stock keeping unit"},
		{Name: "title", Type: str, Required: true, Priority: 95,
			Validation:  &models.Validation{MinLength: models.IntPtr(3), MaxLength: models.IntPtr(200)},
			Description: "Product title shown to shoppers"},
		{Name: "brand", Type: str, Required: true, Priority: 90,
			Validation: &models.Validation{MaxLength: models.IntPtr(100)}},
		{Name: "price", Type: num, Required: true, Priority: 90,
			Validation: &models.Validation{Min: models.FloatPtr(0)}},
		{Name: "category", Type: str, Required: true, Priority: 85,
			Validation: &models.Validation{MaxLength: models.IntPtr(255)}},
		{Name: "description", Type: str, Priority: 85,
			Validation: &models.Validation{MaxLength: models.IntPtr(2000)}},
		{Name: "color", Type: str, Priority: 80,
			Validation: &models.Validation{MaxLength: models.IntPtr(50)}},
		{Name: "size", Type: str, Priority: 80,
			Validation: &models.Validation{MaxLength: models.IntPtr(20)}},
		{Name: "images", Type: models.AttributeTypeArray, Priority: 75,
			Description: "Image URLs, main image first"},
		{Name: "sale_price", Type: num, Priority: 70,
			Validation: &models.Validation{Min: models.FloatPtr(0)}},
		{Name: "material", Type: str, Priority: 60,
			Validation: &models.Validation{MaxLength: models.IntPtr(100)}},
		{Name: "gender", Type: str, Priority: 60,
			Validation: &models.Validation{Enum: []string{"Men", "Women", "Unisex", "Kids"}}},
		{Name: "quantity", Type: num, Priority: 60,
			Validation: &models.Validation{Min: models.FloatPtr(0)}},
		{Name: "bullet_point1", Type: str, Priority: 55,
			Validation: &models.Validation{MaxLength: models.IntPtr(500)}},
		{Name: "bullet_point2", Type: str, Priority: 54,
			Validation: &models.Validation{MaxLength: models.IntPtr(500)}},
		{Name: "bullet_point3", Type: str, Priority: 53,
			Validation: &models.Validation{MaxLength: models.IntPtr(500)}},
		{Name: "bullet_point4", Type: str, Priority: 52,
			Validation: &models.Validation{MaxLength: models.IntPtr(500)}},
		{Name: "bullet_point5", Type: str, Priority: 51,
			Validation: &models.Validation{MaxLength: models.IntPtr(500)}},
		{Name: "age_group", Type: str, Priority: 50,
			Validation: &models.Validation{Enum: []string{"Adult", "Teen", "Child", "Baby"}}},
		{Name: "season", Type: str, Priority: 50,
			Validation: &models.Validation{Enum: []string{"Spring/Summer", "Autumn/Winter", "All Season"}}},
		{Name: "search_terms", Type: str, Priority: 45,
			Validation: &models.Validation{MaxLength: models.IntPtr(250)}},
		{Name: "meta_title", Type: str, Priority: 40,
			Validation: &models.Validation{MaxLength: models.IntPtr(60)}},
		{Name: "meta_description", Type: str, Priority: 40,
			Validation: &models.Validation{MaxLength: models.IntPtr(160)}},
		{Name: "condition", Type: str, Priority: 40,
			Validation: &models.Validation{Enum: []string{"new", "used", "refurbished"}}},
		{Name: "availability", Type: str, Priority: 40,
			Validation: &models.Validation{Enum: []string{"in_stock", "out_of_stock", "preorder"}}},
		{Name: "weight", Type: num, Priority: 30,
			Validation:  &models.Validation{Min: models.FloatPtr(0)},
			Description: "Shipping weight in kilograms"},
	}
}
