package schema

import (
	"unicode/utf8"

	"catalog-adaptation-service/internal/models"
)

// requiredPresenceRatio is the share of records a field must appear in to be inferred as required
const requiredPresenceRatio = 0.8

// Infer builds a definition for a field the library does not know from its
// sample values and the records it was drawn from.
func Infer(name string, samples []interface{}, allRecords []models.ProductRecord) models.AttributeDefinition {
	def := models.AttributeDefinition{
		Name: name,
		Type: inferType(samples),
	}

	if def.Type == models.AttributeTypeString {
		maxLen := -1
		for _, s := range samples {
			if s == nil {
				continue
			}
			if n := utf8.RuneCountInString(models.ValueToString(s)); n > maxLen {
				maxLen = n
			}
		}
		if maxLen >= 0 {
			def.Validation = &models.Validation{MaxLength: models.IntPtr(maxLen)}
		}
	}

	if len(allRecords) > 0 {
		present := 0
		for _, r := range allRecords {
			if r.Has(name) {
				present++
			}
		}
		def.Required = float64(present)/float64(len(allRecords)) > requiredPresenceRatio
	}

	def.Priority = Priority(name)
	if def.Required {
		def.Priority += 20
	}
	return def
}

func inferType(samples []interface{}) models.AttributeType {
	var nonNull []interface{}
	for _, s := range samples {
		if s != nil {
			nonNull = append(nonNull, s)
		}
	}
	if len(nonNull) == 0 {
		return models.AttributeTypeString
	}

	if all(nonNull, isNumeric) {
		return models.AttributeTypeNumber
	}
	if all(nonNull, isBool) {
		return models.AttributeTypeBoolean
	}
	if all(nonNull, isArray) {
		return models.AttributeTypeArray
	}
	if all(nonNull, isObject) {
		return models.AttributeTypeObject
	}
	return models.AttributeTypeString
}

func all(values []interface{}, pred func(interface{}) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

func isNumeric(v interface{}) bool {
	switch t := v.(type) {
	case float64, float32, int, int64:
		return true
	case string:
		_, ok := models.ToFloat(t)
		return ok
	}
	return false
}

func isBool(v interface{}) bool {
	_, ok := v.(bool)
	return ok
}

func isArray(v interface{}) bool {
	switch v.(type) {
	case []string, []interface{}:
		return true
	}
	return false
}

func isObject(v interface{}) bool {
	_, ok := v.(map[string]interface{})
	return ok
}
