package mapping

import (
	"fmt"
	"math"

	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/schema"
	"catalog-adaptation-service/internal/similarity"
)

// Engine resolves source attributes onto the attributes of a target schema
type Engine struct {
	cfg Config
}

// NewEngine creates a mapping engine
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Match is the scored decision for one source/target pair
type Match struct {
	Rule string
	// Score is uncapped and used for ranking
	Score float64
	// Similarity is the normalized name similarity for fuzzy matches
	Similarity float64
}

// Confidence returns the reported 0-100 confidence of the match
func (m Match) Confidence() int {
	return int(math.Round(math.Min(m.Score, 100)))
}

// Score evaluates one source/target pair. It reports false when no rule fires.
func (e *Engine) Score(source, target models.AttributeDefinition) (Match, bool) {
	src := similarity.NormalizeName(source.Name)
	dst := similarity.NormalizeName(target.Name)

	var m Match
	switch {
	case src != "" && src == dst:
		m = Match{Rule: models.RuleExactMatch, Score: e.cfg.ExactConfidence, Similarity: 1}
	case schema.SameConcept(src, dst):
		m = Match{Rule: models.RuleSemanticMatch, Score: e.cfg.SynonymConfidence}
	case typesCompatible(source.Type, target.Type):
		sim := similarity.Ratio(src, dst)
		if sim <= e.cfg.FuzzySimilarityThreshold {
			return Match{}, false
		}
		m = Match{Rule: models.RuleFuzzyMatch, Score: sim * e.cfg.FuzzyWeight, Similarity: sim}
	default:
		return Match{}, false
	}

	if target.Required {
		m.Score += e.cfg.RequiredBonus
	}
	return m, true
}

// MapAttributes maps every source attribute onto its best scoring target.
// Sources with no target above the acceptance threshold produce no mapping.
// Ties are broken by target priority, then by target order.
func (e *Engine) MapAttributes(sources, targets []models.AttributeDefinition) []models.AttributeMapping {
	mappings := make([]models.AttributeMapping, 0, len(sources))

	for _, source := range sources {
		bestIdx := -1
		var best Match
		for i, target := range targets {
			m, ok := e.Score(source, target)
			if !ok || m.Score <= e.cfg.AcceptanceThreshold {
				continue
			}
			if bestIdx < 0 || better(m, target, best, targets[bestIdx]) {
				bestIdx, best = i, m
			}
		}
		if bestIdx < 0 {
			continue
		}

		target := targets[bestIdx]
		mappings = append(mappings, models.AttributeMapping{
			SourceAttribute: source.Name,
			TargetAttribute: target.Name,
			Transformation:  Transformation(source, target),
			Confidence:      best.Confidence(),
			Rule:            best.Rule,
			Fallback:        Fallback(target),
		})
	}
	return mappings
}

// better reports whether candidate a beats the current best b. Equal scores
// fall back to target priority; remaining ties keep the earlier target.
func better(a Match, at models.AttributeDefinition, b Match, bt models.AttributeDefinition) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return at.Priority > bt.Priority
}

// Transformation picks the transformation kind of an accepted mapping
func Transformation(source, target models.AttributeDefinition) models.TransformationKind {
	sameName := similarity.NormalizeName(source.Name) == similarity.NormalizeName(target.Name)
	switch {
	case sameName && source.Type == target.Type:
		return models.TransformationDirect
	case source.Type != target.Type:
		return models.TransformationCalculated
	case target.HasEnum():
		return models.TransformationMapped
	}
	return models.TransformationDirect
}

// Fallback returns the value used when a required target receives nothing
func Fallback(target models.AttributeDefinition) interface{} {
	if !target.Required {
		return nil
	}
	if target.HasEnum() {
		return target.Validation.Enum[0]
	}
	if target.Type == models.AttributeTypeString {
		return fmt.Sprintf("Generated %s", target.Name)
	}
	return nil
}

func typesCompatible(a, b models.AttributeType) bool {
	if a == b {
		return true
	}
	pair := func(x, y models.AttributeType) bool {
		return (a == x && b == y) || (a == y && b == x)
	}
	return pair(models.AttributeTypeString, models.AttributeTypeNumber) ||
		pair(models.AttributeTypeString, models.AttributeTypeArray)
}
