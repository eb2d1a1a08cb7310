package compliance

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"catalog-adaptation-service/internal/ingest"
	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/schema"
)

// Image file extensions accepted by every marketplace
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// Validator checks records against marketplace templates
type Validator struct {
	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

// NewValidator creates a compliance validator
func NewValidator() *Validator {
	return &Validator{
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Validate returns one human readable issue per rule the record violates.
// An empty slice means the record is compliant.
func (v *Validator) Validate(record models.ProductRecord, tmpl *models.MarketplaceTemplate) []string {
	issues := []string{}
	if tmpl == nil {
		return issues
	}

	category := schema.ConceptString(record, "category")
	conditional := make(map[string]bool)
	for _, name := range tmpl.ConditionalRequired(category) {
		conditional[name] = true
	}

	missingImages := false
	for _, attr := range tmpl.Attributes {
		value := record[attr.Name]
		if models.IsEmptyValue(value) {
			if attr.Required || conditional[attr.Name] {
				issues = append(issues, fmt.Sprintf("Missing required field: %s", attr.Name))
				if isImageAttribute(attr.Name) {
					missingImages = true
				}
			}
			continue
		}
		issues = append(issues, v.checkValue(attr, value)...)
	}

	// Conditional fields the template does not declare
	for _, name := range tmpl.ConditionalRequired(category) {
		if tmpl.HasAttribute(name) {
			continue
		}
		if !record.Has(name) {
			issues = append(issues, fmt.Sprintf("Missing required field: %s", name))
		}
	}

	issues = append(issues, checkImages(record, tmpl, missingImages)...)
	return issues
}

// IsCompliant reports whether the record has no issues against the template
func (v *Validator) IsCompliant(record models.ProductRecord, tmpl *models.MarketplaceTemplate) bool {
	return len(v.Validate(record, tmpl)) == 0
}

func (v *Validator) checkValue(attr models.AttributeDefinition, value interface{}) []string {
	var issues []string
	rules := attr.Validation

	if attr.Type == models.AttributeTypeNumber {
		n, ok := models.ToFloat(value)
		if !ok {
			return []string{fmt.Sprintf("Field '%s' must be a valid number", attr.Name)}
		}
		if rules != nil && rules.Min != nil && n < *rules.Min {
			issues = append(issues, fmt.Sprintf("Field '%s' must be at least %s", attr.Name, formatNumber(*rules.Min)))
		}
		if rules != nil && rules.Max != nil && n > *rules.Max {
			issues = append(issues, fmt.Sprintf("Field '%s' must be at most %s", attr.Name, formatNumber(*rules.Max)))
		}
		return issues
	}

	if rules == nil {
		return nil
	}

	if s, ok := value.(string); ok {
		length := utf8.RuneCountInString(s)
		if rules.MaxLength != nil && length > *rules.MaxLength {
			issues = append(issues, fmt.Sprintf("Field '%s' exceeds maximum length of %d characters", attr.Name, *rules.MaxLength))
		}
		if rules.MinLength != nil && length < *rules.MinLength {
			issues = append(issues, fmt.Sprintf("Field '%s' must be at least %d characters", attr.Name, *rules.MinLength))
		}
		if rules.Pattern != "" {
			if re := v.pattern(rules.Pattern); re != nil && !re.MatchString(s) {
				issues = append(issues, fmt.Sprintf("Field '%s' does not match required pattern", attr.Name))
			}
		}
	}

	if rules.HasEnum() {
		for _, item := range enumCandidates(value) {
			if !contains(rules.Enum, item) {
				issues = append(issues, fmt.Sprintf("Field '%s' must be one of: %s", attr.Name, strings.Join(rules.Enum, ", ")))
				break
			}
		}
	}

	return issues
}

// pattern returns the compiled pattern, or nil when it does not compile
func (v *Validator) pattern(expr string) *regexp.Regexp {
	v.mu.RLock()
	re, ok := v.patterns[expr]
	v.mu.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		re = nil
	}

	v.mu.Lock()
	v.patterns[expr] = re
	v.mu.Unlock()
	return re
}

func checkImages(record models.ProductRecord, tmpl *models.MarketplaceTemplate, alreadyReported bool) []string {
	templateWantsImages := false
	for _, attr := range tmpl.Attributes {
		if isImageAttribute(attr.Name) {
			templateWantsImages = true
			break
		}
	}

	value, present := schema.ConceptValue(record, "images")
	if !templateWantsImages && !present {
		return nil
	}

	urls := models.ToStringSlice(value)
	if len(urls) == 0 {
		if alreadyReported {
			return nil
		}
		return []string{"At least one product image is required"}
	}

	var issues []string
	for i, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if !IsValidImageURL(u) {
			issues = append(issues, fmt.Sprintf("Invalid image URL at position %d: %s", i+1, u))
		}
	}
	return issues
}

// IsValidImageURL reports whether u is an http(s) URL ending in a known image extension
func IsValidImageURL(u string) bool {
	if !ingest.IsWellFormedURL(u) {
		return false
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return imageExtensions[strings.ToLower(path.Ext(parsed.Path))]
}

func isImageAttribute(name string) bool {
	concept, ok := schema.SynonymGroup(name)
	return ok && concept == "images"
}

func enumCandidates(value interface{}) []string {
	switch value.(type) {
	case []string, []interface{}:
		return models.ToStringSlice(value)
	}
	return []string{models.ValueToString(value)}
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
