package models

import (
	"time"
)

// TransformationKind is the kind of change applied between source and target
type TransformationKind string

const (
	TransformationDirect     TransformationKind = "direct"
	TransformationMapped     TransformationKind = "mapped"
	TransformationCalculated TransformationKind = "calculated"
	TransformationGenerated  TransformationKind = "generated"
	TransformationSplit      TransformationKind = "split"
	TransformationMerged     TransformationKind = "merged"
)

// Mapping rules
const (
	RuleExactMatch    = "exact_match"
	RuleSemanticMatch = "semantic_match"
	RuleFuzzyMatch    = "fuzzy_match"
)

// AttributeMapping is one resolved source -> target correspondence
type AttributeMapping struct {
	SourceAttribute string             `json:"sourceAttribute"`
	TargetAttribute string             `json:"targetAttribute"`
	Transformation  TransformationKind `json:"transformation"`
	Confidence      int                `json:"confidence"`
	Rule            string             `json:"rule,omitempty"`
	Fallback        interface{}        `json:"fallback,omitempty"`
}

// AdaptationResult is the outcome of adapting one record to one template
type AdaptationResult struct {
	SKU             string                `json:"sku"`
	Marketplace     MarketplaceKey        `json:"marketplace"`
	Mappings        []AttributeMapping    `json:"mappings"`
	NewAttributes   []AttributeDefinition `json:"newAttributes"`
	Removed         []string              `json:"removedAttributes"`
	Renamed         map[string]string     `json:"renamedAttributes"`
	Transformations map[string]string     `json:"transformations"`
	Confidence      int                   `json:"confidence"`
	Issues          []string              `json:"issues"`
	Original        ProductRecord         `json:"original"`
	Adapted         ProductRecord         `json:"adapted"`
	InferredFields  []string              `json:"inferredFields,omitempty"`
	GeneratedFields []string              `json:"generatedFields,omitempty"`
	ProcessedAt     time.Time             `json:"processedAt"`
}

// Succeeded reports whether the item produced an adapted record
func (r *AdaptationResult) Succeeded() bool {
	return r != nil && r.Adapted != nil
}

// NewFailedResult builds the zero-confidence result of an item that could not be adapted
func NewFailedResult(record ProductRecord, marketplace MarketplaceKey, reason string) AdaptationResult {
	return AdaptationResult{
		SKU:             record.SKU(),
		Marketplace:     marketplace,
		Mappings:        []AttributeMapping{},
		NewAttributes:   []AttributeDefinition{},
		Removed:         []string{},
		Renamed:         map[string]string{},
		Transformations: map[string]string{},
		Confidence:      0,
		Issues:          []string{reason},
		Original:        record.Clone(),
		ProcessedAt:     time.Now().UTC(),
	}
}

// BatchProgress is reported after each item of a batch
type BatchProgress struct {
	Total       int           `json:"total"`
	Processed   int           `json:"processed"`
	Successful  int           `json:"successful"`
	Failed      int           `json:"failed"`
	CurrentStep string        `json:"currentStep"`
	ETA         time.Duration `json:"eta"`
	Percentage  float64       `json:"percentage"`
}

// ETASeconds returns the estimated remaining time in whole seconds
func (p BatchProgress) ETASeconds() int64 {
	return int64(p.ETA.Seconds())
}

// JSON returns the progress snapshot stored on a job
func (p BatchProgress) JSON() JSONB {
	return JSONB{
		"total":       p.Total,
		"processed":   p.Processed,
		"successful":  p.Successful,
		"failed":      p.Failed,
		"currentStep": p.CurrentStep,
		"etaSeconds":  p.ETASeconds(),
		"percentage":  p.Percentage,
	}
}
