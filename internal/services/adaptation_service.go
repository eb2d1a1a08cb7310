package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"catalog-adaptation-service/internal/compliance"
	"catalog-adaptation-service/internal/ingest"
	"catalog-adaptation-service/internal/mapping"
	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/schema"
	"catalog-adaptation-service/internal/synthesis"
	"catalog-adaptation-service/internal/templates"
)

// Synthesizer fills attributes that no source attribute mapped onto
type Synthesizer interface {
	Synthesize(ctx context.Context, record models.ProductRecord, missing []models.AttributeDefinition, marketplace models.MarketplaceKey) (map[string]interface{}, error)
	Enhance(record models.ProductRecord) models.ProductRecord
}

// TemplateSource provides marketplace templates
type TemplateSource interface {
	Get(key models.MarketplaceKey) (*models.MarketplaceTemplate, error)
}

// AdaptationConfig holds the scoring constants of the orchestrator. They are
// tunable heuristics; DefaultAdaptationConfig reproduces the historical values.
type AdaptationConfig struct {
	// NewAttributePenalty is subtracted per target attribute without a mapping
	NewAttributePenalty float64
	// RemovedAttributePenalty is subtracted per source attribute left unused
	RemovedAttributePenalty float64
	// HighConfidence is the exclusive lower bound of the high bucket
	HighConfidence int
	// MediumConfidence is the inclusive lower bound of the medium bucket
	MediumConfidence int
	// GeneratorTimeout bounds each synthesis call
	GeneratorTimeout time.Duration
}

// DefaultAdaptationConfig returns the standard orchestrator configuration
func DefaultAdaptationConfig() AdaptationConfig {
	return AdaptationConfig{
		NewAttributePenalty:     5,
		RemovedAttributePenalty: 3,
		HighConfidence:          80,
		MediumConfidence:        60,
		GeneratorTimeout:        10 * time.Second,
	}
}

// AdaptationService adapts product records to marketplace templates
type AdaptationService struct {
	library     *schema.Library
	templates   TemplateSource
	mapper      *mapping.Engine
	synthesizer Synthesizer
	validator   *compliance.Validator
	config      AdaptationConfig
	logger      *logrus.Entry
}

// NewAdaptationService creates a new adaptation service
func NewAdaptationService(
	library *schema.Library,
	templateSource TemplateSource,
	mapper *mapping.Engine,
	synthesizer Synthesizer,
	validator *compliance.Validator,
	cfg AdaptationConfig,
	logger *logrus.Logger,
) *AdaptationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AdaptationService{
		library:     library,
		templates:   templateSource,
		mapper:      mapper,
		synthesizer: synthesizer,
		validator:   validator,
		config:      cfg,
		logger:      logger.WithField("component", "adaptation"),
	}
}

// Template resolves the template of a marketplace
func (s *AdaptationService) Template(key models.MarketplaceKey) (*models.MarketplaceTemplate, error) {
	if !key.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMarketplace, key)
	}
	tmpl, err := s.templates.Get(key)
	if err != nil {
		if errors.Is(err, templates.ErrTemplateNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMarketplace, key)
		}
		return nil, err
	}
	return tmpl, nil
}

// Adapt maps, synthesizes and validates one record for a marketplace
func (s *AdaptationService) Adapt(ctx context.Context, record models.ProductRecord, key models.MarketplaceKey) (*models.AdaptationResult, error) {
	if record == nil {
		return nil, ErrNilRecord
	}
	tmpl, err := s.Template(key)
	if err != nil {
		return nil, err
	}
	result, err := s.adapt(ctx, record, tmpl)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *AdaptationService) adapt(ctx context.Context, record models.ProductRecord, tmpl *models.MarketplaceTemplate) (models.AdaptationResult, error) {
	sources := s.library.ExtractAttributes([]models.ProductRecord{record})
	applied := resolveMappings(s.mapper.MapAttributes(sources, tmpl.Attributes))

	result := models.AdaptationResult{
		SKU:             record.SKU(),
		Marketplace:     tmpl.Marketplace,
		Mappings:        []models.AttributeMapping{},
		NewAttributes:   []models.AttributeDefinition{},
		Removed:         []string{},
		Renamed:         map[string]string{},
		Transformations: map[string]string{},
		Issues:          []string{},
		Original:        record.Clone(),
	}

	adapted := models.ProductRecord{}
	usedSources := make(map[string]bool)
	mappedTargets := make(map[string]bool)

	for _, attr := range tmpl.Attributes {
		m, ok := applied[attr.Name]
		if !ok {
			continue
		}
		usedSources[m.SourceAttribute] = true
		mappedTargets[attr.Name] = true
		result.Mappings = append(result.Mappings, m)
		if m.SourceAttribute != m.TargetAttribute {
			result.Renamed[m.SourceAttribute] = m.TargetAttribute
		}

		value, kind := transformValue(record[m.SourceAttribute], attr, tmpl.Rules, m.Transformation)
		result.Transformations[attr.Name] = describeTransformation(m.SourceAttribute, attr.Name, kind)
		if !models.IsEmptyValue(value) {
			adapted[attr.Name] = value
		}
	}

	for _, key := range record.Keys() {
		if !usedSources[key] {
			result.Removed = append(result.Removed, key)
		}
	}

	for _, attr := range tmpl.Attributes {
		if !mappedTargets[attr.Name] {
			result.NewAttributes = append(result.NewAttributes, attr)
		}
	}

	// Ancillary attributes are added for every marketplace. Declared ones go
	// through the template rules; exports still only carry template columns.
	for name, value := range synthesis.InferAncillary(record) {
		if adapted.Has(name) {
			continue
		}
		if attr, ok := tmpl.Attribute(name); ok {
			value, _ = transformValue(value, attr, tmpl.Rules, models.TransformationGenerated)
		}
		adapted[name] = value
		result.InferredFields = append(result.InferredFields, name)
		result.Transformations[name] = fmt.Sprintf("%s inferred from product text", name)
	}

	// Synthesis covers required targets, including those the mapped category
	// makes required.
	required := requiredTargets(tmpl, schema.ConceptString(adapted, "category"), s.library)
	for _, attr := range required {
		if !tmpl.HasAttribute(attr.Name) {
			result.NewAttributes = append(result.NewAttributes, attr)
		}
	}

	var missing []models.AttributeDefinition
	for _, attr := range required {
		if !adapted.Has(attr.Name) {
			missing = append(missing, attr)
		}
	}

	if len(missing) > 0 {
		genCtx, cancel := s.generatorContext(ctx)
		values, err := s.synthesizer.Synthesize(genCtx, withCanonicalKeys(record), missing, tmpl.Marketplace)
		cancel()
		if err != nil {
			return models.AdaptationResult{}, fmt.Errorf("synthesis failed: %w", err)
		}
		for _, attr := range missing {
			value, ok := values[attr.Name]
			if !ok || models.IsEmptyValue(value) {
				continue
			}
			adapted[attr.Name] = value
			result.GeneratedFields = append(result.GeneratedFields, attr.Name)
			result.Transformations[attr.Name] = fmt.Sprintf("%s generated", attr.Name)
		}
	}

	adapted = s.enhance(adapted, tmpl)

	sort.Strings(result.InferredFields)
	sort.Strings(result.GeneratedFields)
	result.Adapted = adapted
	result.Confidence = s.confidence(result)
	result.Issues = s.validator.Validate(adapted, tmpl)
	result.ProcessedAt = time.Now().UTC()
	return result, nil
}

// confidence scores a result: high mappings count 100, medium mappings 70,
// averaged over all mappings, minus the new and removed attribute penalties.
func (s *AdaptationService) confidence(result models.AdaptationResult) int {
	var score float64
	if n := len(result.Mappings); n > 0 {
		var high, medium int
		for _, m := range result.Mappings {
			switch {
			case m.Confidence > s.config.HighConfidence:
				high++
			case m.Confidence >= s.config.MediumConfidence:
				medium++
			}
		}
		score = float64(high*100+medium*70) / float64(n)
	}
	score -= s.config.NewAttributePenalty * float64(len(result.NewAttributes))
	score -= s.config.RemovedAttributePenalty * float64(len(result.Removed))
	if score < 0 {
		return 0
	}
	return int(math.Round(score))
}

// enhance enriches title and description, keeping values within maxLength
func (s *AdaptationService) enhance(adapted models.ProductRecord, tmpl *models.MarketplaceTemplate) models.ProductRecord {
	enhanced := s.synthesizer.Enhance(adapted)
	for key, value := range enhanced {
		attr, ok := tmpl.Attribute(key)
		if !ok || attr.Validation == nil || attr.Validation.MaxLength == nil {
			continue
		}
		if str, isString := value.(string); isString && len([]rune(str)) > *attr.Validation.MaxLength {
			enhanced[key] = adapted[key]
		}
	}
	return enhanced
}

func (s *AdaptationService) generatorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.GeneratorTimeout > 0 {
		return context.WithTimeout(ctx, s.config.GeneratorTimeout)
	}
	return context.WithCancel(ctx)
}

// resolveMappings keeps one mapping per target. Higher confidence wins; equal
// confidence keeps the earlier source.
func resolveMappings(mappings []models.AttributeMapping) map[string]models.AttributeMapping {
	ordered := append([]models.AttributeMapping(nil), mappings...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})

	applied := make(map[string]models.AttributeMapping, len(ordered))
	for _, m := range ordered {
		if _, taken := applied[m.TargetAttribute]; !taken {
			applied[m.TargetAttribute] = m
		}
	}
	return applied
}

// requiredTargets returns the required attributes of the template plus the
// conditional fields triggered by category, in template order.
func requiredTargets(tmpl *models.MarketplaceTemplate, category string, library *schema.Library) []models.AttributeDefinition {
	var out []models.AttributeDefinition
	seen := make(map[string]bool)
	for _, attr := range tmpl.Attributes {
		if attr.Required {
			out = append(out, attr)
			seen[attr.Name] = true
		}
	}
	for _, name := range tmpl.ConditionalRequired(category) {
		if seen[name] {
			continue
		}
		seen[name] = true
		attr, ok := tmpl.Attribute(name)
		if !ok {
			if def, found := library.Lookup(name); found {
				attr = def
			} else {
				attr = models.AttributeDefinition{Name: name, Type: models.AttributeTypeString}
			}
			attr.Name = name
		}
		attr.Required = true
		out = append(out, attr)
	}
	return out
}

// withCanonicalKeys adds library names for record keys that are known aliases
// so that generators see brand, color and friends under their usual names.
func withCanonicalKeys(record models.ProductRecord) models.ProductRecord {
	out := record.Clone()
	for _, key := range record.Keys() {
		if canonical, ok := ingest.ResolveHeader(key); ok && !out.Has(canonical) && record.Has(key) {
			out[canonical] = record[key]
		}
	}
	return out
}

// transformValue converts a source value for a target attribute. It applies
// the category and value tables, normalizes enum casing and coerces types.
// The returned kind is "mapped" when a table changed the value.
func transformValue(value interface{}, attr models.AttributeDefinition, rules models.TransformationRules, kind models.TransformationKind) (interface{}, models.TransformationKind) {
	if models.IsEmptyValue(value) {
		return value, kind
	}

	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		concept, _ := schema.SynonymGroup(attr.Name)
		if concept == "category" {
			if mapped, found := lookupFold(rules.CategoryMappings, s); found {
				s = mapped
				if kind == models.TransformationDirect {
					kind = models.TransformationMapped
				}
			}
		}
		table := rules.ValueMappings[attr.Name]
		if table == nil && concept != "" {
			table = rules.ValueMappings[concept]
		}
		if mapped, found := lookupFold(table, s); found {
			s = mapped
			if kind == models.TransformationDirect {
				kind = models.TransformationMapped
			}
		}
		if attr.HasEnum() {
			if member, found := enumMember(attr.Validation.Enum, s); found {
				s = member
			}
		}
		value = s
	}

	switch attr.Type {
	case models.AttributeTypeNumber:
		if f, ok := ingest.ParsePrice(value); ok {
			return f, kind
		}
	case models.AttributeTypeArray:
		if _, isSlice := value.([]string); !isSlice {
			if s, isString := value.(string); isString {
				if urls := ingest.SplitImageURLs(s); len(urls) > 0 && isImageTarget(attr.Name) {
					return urls, kind
				}
			}
			return models.ToStringSlice(value), kind
		}
	case models.AttributeTypeString:
		switch value.(type) {
		case string:
		default:
			return models.ValueToString(value), kind
		}
	}
	return value, kind
}

func isImageTarget(name string) bool {
	concept, ok := schema.SynonymGroup(name)
	return ok && concept == "images"
}

// describeTransformation renders a mapping as text, e.g. "title → item_name (renamed)"
func describeTransformation(source, target string, kind models.TransformationKind) string {
	renamed := source != target
	switch kind {
	case models.TransformationMapped:
		if renamed {
			return fmt.Sprintf("%s → %s (remapped via table)", source, target)
		}
		return fmt.Sprintf("%s remapped via table", target)
	case models.TransformationCalculated:
		return fmt.Sprintf("%s calculated from %s", target, source)
	case models.TransformationSplit:
		return fmt.Sprintf("%s split from %s", target, source)
	case models.TransformationMerged:
		return fmt.Sprintf("%s merged from %s", target, source)
	case models.TransformationGenerated:
		return fmt.Sprintf("%s generated", target)
	}
	if renamed {
		return fmt.Sprintf("%s → %s (renamed)", source, target)
	}
	return fmt.Sprintf("%s copied", target)
}

// lookupFold prefers an exact key. Otherwise the first key in sorted order
// that matches case-insensitively wins.
func lookupFold(table map[string]string, key string) (string, bool) {
	if len(table) == 0 {
		return "", false
	}
	if v, ok := table[key]; ok {
		return v, true
	}
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, key) {
			return table[k], true
		}
	}
	return "", false
}

func enumMember(enum []string, value string) (string, bool) {
	for _, e := range enum {
		if strings.EqualFold(e, value) {
			return e, true
		}
	}
	return "", false
}
