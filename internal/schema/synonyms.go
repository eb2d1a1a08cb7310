package schema

import (
	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/similarity"
)

// synonymGroups lists the curated aliases of each attribute concept.
// Every name is stored normalized and belongs to exactly one group.
var synonymGroups = map[string][]string{
	"sku":         {"sku", "item_sku", "seller_sku", "sku_id", "product_id", "style_code", "partner_sku"},
	"title":       {"title", "product_name", "item_name", "name", "product_title"},
	"brand":       {"brand", "brand_name", "manufacturer", "make", "designer"},
	"category":    {"category", "product_type", "category_name", "department", "item_type", "article_type"},
	"color":       {"color", "colour", "color_name", "colour_name", "shade", "base_colour"},
	"size":        {"size", "size_name", "apparel_size", "garment_size"},
	"price":       {"price", "standard_price", "selling_price", "mrp", "retail_price", "list_price"},
	"description": {"description", "product_description", "long_description", "details"},
	"images":      {"images", "image_urls", "image", "main_image", "image_url", "pictures"},
	"gender":      {"gender", "target_gender", "sex", "target_audience"},
	"material":    {"material", "fabric", "material_type", "fabric_type"},
	"keywords":    {"search_terms", "keywords", "search_keywords", "tags"},
}

var conceptByName = buildConceptIndex()

func buildConceptIndex() map[string]string {
	idx := make(map[string]string)
	for concept, names := range synonymGroups {
		for _, n := range names {
			idx[n] = concept
		}
	}
	return idx
}

// SynonymGroup returns the concept a name belongs to, if any
func SynonymGroup(name string) (string, bool) {
	concept, ok := conceptByName[similarity.NormalizeName(name)]
	return concept, ok
}

// SameConcept reports whether two names are aliases of the same concept
func SameConcept(a, b string) bool {
	ca, ok := SynonymGroup(a)
	if !ok {
		return false
	}
	cb, ok := SynonymGroup(b)
	return ok && ca == cb
}

// Aliases returns the known names of a concept
func Aliases(concept string) []string {
	return append([]string(nil), synonymGroups[concept]...)
}

// ConceptKey returns the record key holding the first non-empty value of
// any alias of concept.
func ConceptKey(record models.ProductRecord, concept string) (string, bool) {
	names, ok := synonymGroups[concept]
	if !ok {
		names = []string{concept}
	}
	for _, n := range names {
		if record.Has(n) {
			return n, true
		}
	}
	// Fall back to keys that normalize onto an alias
	for _, key := range record.Keys() {
		if models.IsEmptyValue(record[key]) {
			continue
		}
		if c, ok := SynonymGroup(key); ok && c == concept {
			return key, true
		}
	}
	return "", false
}

// ConceptValue returns the first non-empty value of the record stored under
// any alias of concept.
func ConceptValue(record models.ProductRecord, concept string) (interface{}, bool) {
	key, ok := ConceptKey(record, concept)
	if !ok {
		return nil, false
	}
	return record[key], true
}

// ConceptString is ConceptValue rendered as text
func ConceptString(record models.ProductRecord, concept string) string {
	v, ok := ConceptValue(record, concept)
	if !ok {
		return ""
	}
	return models.ValueToString(v)
}
