package synthesis

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/schema"
	"catalog-adaptation-service/internal/similarity"
)

// Length limits of composed content
const (
	MaxTitleLength           = 200
	MaxMetaTitleLength       = 60
	MaxMetaDescriptionLength = 160
)

// categoryFamilies adds shopper keywords for common product families
var categoryFamilies = []struct {
	triggers []string
	keywords []string
}{
	{[]string{"shirt", "shirts", "tshirt", "tshirts", "tee", "tees", "top", "tops", "polo"}, []string{"clothing", "apparel", "fashion"}},
	{[]string{"shoe", "shoes", "sneaker", "sneakers", "footwear", "boot", "boots"}, []string{"footwear", "sneakers", "fashion"}},
	{[]string{"dress", "dresses", "gown"}, []string{"clothing", "dresses", "fashion"}},
	{[]string{"bag", "bags", "handbag", "handbags", "backpack", "tote"}, []string{"accessories", "bags", "handbags"}},
	{[]string{"watch", "watches"}, []string{"accessories", "watches", "timepiece"}},
}

var bulletPointName = regexp.MustCompile(`^bullet_point(\d+)$`)

// RuleGenerator is the deterministic content generator. It always produces
// a value for every requested attribute and never fails.
type RuleGenerator struct{}

// NewRuleGenerator creates a rule based generator
func NewRuleGenerator() *RuleGenerator {
	return &RuleGenerator{}
}

var _ ContentGenerator = (*RuleGenerator)(nil)

// Generate implements ContentGenerator
func (g *RuleGenerator) Generate(ctx context.Context, req GenerationRequest) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(req.MissingFieldSpecs))
	for _, def := range req.MissingFieldSpecs {
		out[def.Name] = g.Field(req.ExistingFields, def)
	}
	return out, nil
}

// Field composes a value for one attribute from the record
func (g *RuleGenerator) Field(record models.ProductRecord, def models.AttributeDefinition) interface{} {
	name := similarity.NormalizeName(def.Name)
	concept, _ := schema.SynonymGroup(name)

	var value interface{}
	switch {
	case name == "meta_title":
		value = ComposeMetaTitle(record)
	case name == "meta_description":
		value = ComposeMetaDescription(record)
	case bulletPointName.MatchString(name):
		value = composeBulletPoint(record, bulletPointName.FindStringSubmatch(name)[1])
	case concept == "keywords":
		terms := SearchTerms(record)
		if def.Type == models.AttributeTypeArray {
			value = terms
		} else {
			value = strings.Join(terms, ", ")
		}
	case concept == "title":
		value = ComposeTitle(record)
	case concept == "description":
		value = ComposeDescription(record)
	case concept == "gender":
		value = InferGender(record)
	case name == "age_group":
		value = InferAgeGroup(record)
	case name == "condition":
		value = DefaultCondition
	case name == "availability":
		value = DefaultAvailability
	}

	return conform(value, def)
}

// conform coerces a generated value to the attribute's type and enum
func conform(value interface{}, def models.AttributeDefinition) interface{} {
	if def.HasEnum() {
		s := models.ValueToString(value)
		for _, allowed := range def.Validation.Enum {
			if strings.EqualFold(allowed, s) {
				return allowed
			}
		}
		return def.Validation.Enum[0]
	}

	switch def.Type {
	case models.AttributeTypeNumber:
		if f, ok := models.ToFloat(value); ok {
			return f
		}
		return 0.0
	case models.AttributeTypeBoolean:
		if b, ok := value.(bool); ok {
			return b
		}
		return false
	case models.AttributeTypeArray:
		if s := models.ToStringSlice(value); s != nil {
			return s
		}
		return []string{}
	case models.AttributeTypeObject:
		if m, ok := value.(map[string]interface{}); ok {
			return m
		}
		return map[string]interface{}{}
	}

	if value == nil {
		return ""
	}
	return models.ValueToString(value)
}

// ComposeTitle builds a title from brand, title or category, color and material
func ComposeTitle(record models.ProductRecord) string {
	brand := schema.ConceptString(record, "brand")
	base := schema.ConceptString(record, "title")
	if base == "" {
		base = schema.ConceptString(record, "category")
	}

	parts := []string{}
	if brand != "" && !containsFold(base, brand) {
		parts = append(parts, brand)
	}
	if base != "" {
		parts = append(parts, base)
	}
	title := strings.Join(parts, " ")
	for _, concept := range []string{"color", "material"} {
		v := schema.ConceptString(record, concept)
		if v != "" && !containsFold(title, v) {
			title = joinNonEmpty(" - ", title, v)
		}
	}
	return truncate(title, MaxTitleLength)
}

// ComposeDescription returns the existing description or a templated paragraph
func ComposeDescription(record models.ProductRecord) string {
	if existing := schema.ConceptString(record, "description"); existing != "" {
		return existing
	}

	category := schema.ConceptString(record, "category")
	if category == "" {
		category = "product"
	}
	brand := schema.ConceptString(record, "brand")

	var sentences []string
	if brand != "" {
		sentences = append(sentences, fmt.Sprintf("Discover this %s from %s.", category, brand))
	} else {
		sentences = append(sentences, fmt.Sprintf("Discover this %s.", category))
	}
	if material := schema.ConceptString(record, "material"); material != "" {
		sentences = append(sentences, fmt.Sprintf("Crafted from %s for lasting comfort and quality.", material))
	}
	if color := schema.ConceptString(record, "color"); color != "" {
		sentences = append(sentences, fmt.Sprintf("Available in %s to suit your style.", color))
	}
	if size := schema.ConceptString(record, "size"); size != "" {
		sentences = append(sentences, fmt.Sprintf("Offered in size %s.", size))
	}
	sentences = append(sentences, fmt.Sprintf("Designed for %s.", audience(genderOf(record))))
	sentences = append(sentences, "Shop now and elevate your style.")
	return strings.Join(sentences, " ")
}

func composeBulletPoint(record models.ProductRecord, n string) string {
	brand := schema.ConceptString(record, "brand")
	category := schema.ConceptString(record, "category")
	material := schema.ConceptString(record, "material")
	if category == "" {
		category = "piece"
	}

	switch n {
	case "1":
		if material != "" {
			return fmt.Sprintf("PREMIUM MATERIAL: Made from %s for all-day comfort and durability", material)
		}
		if brand != "" {
			return fmt.Sprintf("QUALITY CRAFTSMANSHIP: Made by %s to a high standard", brand)
		}
		return "QUALITY CRAFTSMANSHIP: Made to a high standard"
	case "2":
		if brand != "" {
			return fmt.Sprintf("VERSATILE STYLE: This %s from %s pairs easily with any wardrobe", category, brand)
		}
		return fmt.Sprintf("VERSATILE STYLE: This %s pairs easily with any wardrobe", category)
	case "3":
		if color := schema.ConceptString(record, "color"); color != "" {
			return fmt.Sprintf("COLOR: %s", color)
		}
	case "4":
		if size := schema.ConceptString(record, "size"); size != "" {
			return fmt.Sprintf("SIZE: %s", size)
		}
	}
	return ""
}

// SearchTerms returns lower-cased, de-duplicated keywords for the record
func SearchTerms(record models.ProductRecord) []string {
	seen := make(map[string]bool)
	var terms []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			terms = append(terms, s)
		}
	}

	for _, concept := range []string{"brand", "category", "color", "material", "gender"} {
		add(schema.ConceptString(record, concept))
	}

	ws := words(schema.ConceptString(record, "title") + " " + schema.ConceptString(record, "category"))
	for _, family := range categoryFamilies {
		if containsAny(ws, wordSet(family.triggers...)) {
			for _, k := range family.keywords {
				add(k)
			}
		}
	}
	if terms == nil {
		terms = []string{}
	}
	return terms
}

// ComposeMetaTitle builds a short SEO title
func ComposeMetaTitle(record models.ProductRecord) string {
	brand := schema.ConceptString(record, "brand")
	base := schema.ConceptString(record, "title")
	if base == "" {
		base = schema.ConceptString(record, "category")
	}
	title := base
	if brand != "" && !containsFold(base, brand) {
		title = joinNonEmpty(" ", brand, base)
	}
	if color := schema.ConceptString(record, "color"); color != "" && !containsFold(title, color) {
		title = joinNonEmpty(" | ", title, color)
	}
	return truncate(title, MaxMetaTitleLength)
}

// ComposeMetaDescription builds a short SEO description
func ComposeMetaDescription(record models.ProductRecord) string {
	name := schema.ConceptString(record, "title")
	if name == "" {
		name = schema.ConceptString(record, "category")
	}
	if name == "" {
		name = "this product"
	}

	desc := "Shop " + name
	if brand := schema.ConceptString(record, "brand"); brand != "" && !containsFold(name, brand) {
		desc += " by " + brand
	}
	if color := schema.ConceptString(record, "color"); color != "" {
		desc += " in " + color
	}
	desc += "."
	if category := schema.ConceptString(record, "category"); category != "" {
		desc += fmt.Sprintf(" Explore our %s collection online.", strings.ToLower(category))
	}
	return truncate(desc, MaxMetaDescriptionLength)
}

func genderOf(record models.ProductRecord) string {
	if g := schema.ConceptString(record, "gender"); g != "" {
		return g
	}
	return InferGender(record)
}

func audience(gender string) string {
	switch strings.ToLower(gender) {
	case "men":
		return "men"
	case "women":
		return "women"
	case "kids", "boys", "girls":
		return "kids"
	}
	return "everyone"
}

func containsFold(s, substr string) bool {
	return substr != "" && strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// truncate cuts s to at most n runes without leaving trailing spaces
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
