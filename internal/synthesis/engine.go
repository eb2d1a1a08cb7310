package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/schema"
)

// ShortTitleLength is the length under which titles are enriched
const ShortTitleLength = 50

// Engine fills missing attributes. An optional external generator is asked
// first; the rule generator supplies every value it does not return.
type Engine struct {
	generator ContentGenerator
	rules     *RuleGenerator
	logger    *logrus.Entry
}

// NewEngine creates a synthesis engine. A nil generator means rules only.
func NewEngine(logger *logrus.Logger, generator ContentGenerator) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		generator: generator,
		rules:     NewRuleGenerator(),
		logger:    logger.WithField("component", "synthesis"),
	}
}

// HasExternalGenerator reports whether an external generator is configured
func (e *Engine) HasExternalGenerator() bool {
	return e.generator != nil
}

// Synthesize returns a value for every attribute in missing. It fails only
// when ctx is already done.
func (e *Engine) Synthesize(ctx context.Context, record models.ProductRecord, missing []models.AttributeDefinition, marketplace models.MarketplaceKey) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		return map[string]interface{}{}, nil
	}

	req := GenerationRequest{
		ExistingFields:    record,
		MissingFieldSpecs: missing,
		MarketplaceKey:    marketplace,
	}

	values, _ := e.rules.Generate(ctx, req)

	if e.generator == nil {
		return values, nil
	}

	external, err := e.generator.Generate(ctx, req)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"sku":         record.SKU(),
			"marketplace": marketplace,
		}).Warn("External content generation failed, using rule based values")
		return values, nil
	}

	for _, def := range missing {
		if v, ok := external[def.Name]; ok && !models.IsEmptyValue(v) {
			values[def.Name] = conform(v, def)
		}
	}
	return values, nil
}

// Enhance returns a copy of record with its title and description enriched
// from the other attributes.
func (e *Engine) Enhance(record models.ProductRecord) models.ProductRecord {
	out := record.Clone()
	if key, ok := schema.ConceptKey(out, "title"); ok {
		out[key] = EnhanceTitle(out.String(key), out)
	}
	if key, ok := schema.ConceptKey(out, "description"); ok {
		out[key] = EnhanceDescription(out.String(key), out)
	}
	return out
}

// EnhanceTitle enriches a short title with brand, color and material
func EnhanceTitle(title string, record models.ProductRecord) string {
	if len([]rune(title)) >= ShortTitleLength {
		return title
	}
	if brand := schema.ConceptString(record, "brand"); brand != "" && !containsFold(title, brand) {
		title = brand + " " + title
	}
	for _, concept := range []string{"color", "material"} {
		if v := schema.ConceptString(record, concept); v != "" && !containsFold(title, v) {
			title = title + " - " + v
		}
	}
	return truncate(title, MaxTitleLength)
}

// EnhanceDescription appends clauses for attributes the description does not mention
func EnhanceDescription(description string, record models.ProductRecord) string {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return description
	}

	clauses := []struct {
		concept string
		format  string
	}{
		{"brand", "Brand: %s."},
		{"material", "Material: %s."},
		{"color", "Color: %s."},
		{"size", "Size: %s."},
	}

	var extra []string
	for _, c := range clauses {
		v := schema.ConceptString(record, c.concept)
		if v != "" && !containsFold(desc, v) {
			extra = append(extra, fmt.Sprintf(c.format, v))
		}
	}
	if len(extra) > 0 {
		desc = ensureSentence(desc) + " " + strings.Join(extra, " ")
	}

	lower := strings.ToLower(desc)
	if !strings.Contains(lower, "shop") && !strings.Contains(lower, "buy") {
		desc = ensureSentence(desc) + " Shop now!"
	}
	return desc
}

func ensureSentence(s string) string {
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return s
	}
	return s + "."
}
