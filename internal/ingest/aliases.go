package ingest

import (
	"catalog-adaptation-service/internal/schema"
	"catalog-adaptation-service/internal/similarity"
)

// headerAliases maps spreadsheet column names onto canonical record fields
var headerAliases = map[string][]string{
	"sku":          {"sku_id", "product_id", "item_id", "id", "item_sku", "seller_sku", "style_code", "article_number"},
	"title":        {"product_name", "item_name", "name", "product_title"},
	"brand":        {"brand_name", "manufacturer", "designer"},
	"category":     {"product_type", "category_name", "department", "product_category"},
	"material":     {"fabric", "material_type", "composition"},
	"gender":       {"target_gender", "sex"},
	"color":        {"colour", "color_name", "colour_name", "base_colour"},
	"size":         {"size_name", "sizes"},
	"description":  {"product_description", "long_description", "details"},
	"price":        {"selling_price", "retail_price", "mrp", "standard_price", "unit_price", "list_price"},
	"images":       {"image", "image_url", "image_urls", "main_image", "pictures", "photos", "image_links"},
	"sale_price":   {"discount_price", "special_price", "offer_price"},
	"quantity":     {"qty", "stock", "inventory", "stock_quantity"},
	"search_terms": {"keywords", "tags", "search_keywords"},
}

// headerIndex resolves a normalized header to its canonical field. Every
// shared library attribute name resolves to itself.
var headerIndex = buildHeaderIndex()

func buildHeaderIndex() map[string]string {
	idx := make(map[string]string)
	for _, name := range schema.NewLibrary().Names() {
		idx[name] = name
	}
	for canonical, aliases := range headerAliases {
		idx[canonical] = canonical
		for _, a := range aliases {
			idx[a] = canonical
		}
	}
	return idx
}

// ResolveHeader returns the canonical field a raw header refers to
func ResolveHeader(header string) (string, bool) {
	field, ok := headerIndex[similarity.NormalizeName(header)]
	return field, ok
}
