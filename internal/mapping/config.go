package mapping

// Config holds the heuristic constants of the matcher. They are tunable
// parameters, not business rules; DefaultConfig reproduces the historical
// values.
type Config struct {
	// ExactConfidence is awarded when normalized names are equal
	ExactConfidence float64
	// SynonymConfidence is awarded when both names share a synonym group
	SynonymConfidence float64
	// FuzzyWeight scales the name similarity of type-compatible attributes
	FuzzyWeight float64
	// FuzzySimilarityThreshold must be strictly exceeded for a fuzzy match
	FuzzySimilarityThreshold float64
	// RequiredBonus is added when the target attribute is required
	RequiredBonus float64
	// AcceptanceThreshold must be strictly exceeded for a mapping to be emitted
	AcceptanceThreshold float64
}

// DefaultConfig returns the standard matcher configuration
func DefaultConfig() Config {
	return Config{
		ExactConfidence:          100,
		SynonymConfidence:        95,
		FuzzyWeight:              70,
		FuzzySimilarityThreshold: 0.5,
		RequiredBonus:            10,
		AcceptanceThreshold:      50,
	}
}
