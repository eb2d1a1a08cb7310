package synthesis

import (
	"strings"
	"unicode"

	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/schema"
)

// Ancillary attribute values
const (
	GenderMen    = "Men"
	GenderWomen  = "Women"
	GenderKids   = "Kids"
	GenderUnisex = "Unisex"

	AgeGroupBaby  = "Baby"
	AgeGroupChild = "Child"
	AgeGroupTeen  = "Teen"
	AgeGroupAdult = "Adult"

	DefaultCondition    = "new"
	DefaultAvailability = "in_stock"
)

var (
	menWords   = wordSet("men", "mens", "man", "male", "males", "gents")
	womenWords = wordSet("women", "womens", "woman", "female", "females", "ladies", "lady")
	kidWords   = wordSet("kid", "kids", "child", "children", "childrens", "boys", "girls")
	babyWords  = wordSet("baby", "babies", "infant", "infants", "newborn", "toddler")
	teenWords  = wordSet("teen", "teens", "teenager", "teenagers", "junior", "juniors")
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func containsAny(ws []string, set map[string]bool) bool {
	for _, w := range ws {
		if set[w] {
			return true
		}
	}
	return false
}

// keywordText is the text scanned for audience keywords
func keywordText(record models.ProductRecord) string {
	return schema.ConceptString(record, "title") + " " + schema.ConceptString(record, "category")
}

// InferGender scans the title and category for audience keywords
func InferGender(record models.ProductRecord) string {
	ws := words(keywordText(record))
	hasMen := containsAny(ws, menWords)
	hasWomen := containsAny(ws, womenWords)
	switch {
	case hasMen && hasWomen:
		return GenderUnisex
	case hasMen:
		return GenderMen
	case hasWomen:
		return GenderWomen
	case containsAny(ws, kidWords):
		return GenderKids
	}
	return GenderUnisex
}

// InferAgeGroup scans the title and category for age keywords
func InferAgeGroup(record models.ProductRecord) string {
	ws := words(keywordText(record))
	switch {
	case containsAny(ws, babyWords):
		return AgeGroupBaby
	case containsAny(ws, kidWords):
		return AgeGroupChild
	case containsAny(ws, teenWords):
		return AgeGroupTeen
	}
	return AgeGroupAdult
}

// InferAncillary returns values for gender, age_group, condition and
// availability when the record does not carry them.
func InferAncillary(record models.ProductRecord) map[string]interface{} {
	out := make(map[string]interface{})
	if _, ok := schema.ConceptValue(record, "gender"); !ok {
		out["gender"] = InferGender(record)
	}
	if !record.Has("age_group") {
		out["age_group"] = InferAgeGroup(record)
	}
	if !record.Has("condition") {
		out["condition"] = DefaultCondition
	}
	if !record.Has("availability") {
		out["availability"] = DefaultAvailability
	}
	return out
}
