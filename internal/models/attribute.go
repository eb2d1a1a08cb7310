package models

// AttributeType is the value type of a schema attribute
type AttributeType string

const (
	AttributeTypeString  AttributeType = "string"
	AttributeTypeNumber  AttributeType = "number"
	AttributeTypeBoolean AttributeType = "boolean"
	AttributeTypeArray   AttributeType = "array"
	AttributeTypeObject  AttributeType = "object"
)

// IsValid reports whether the type is one of the supported attribute types
func (t AttributeType) IsValid() bool {
	switch t {
	case AttributeTypeString, AttributeTypeNumber, AttributeTypeBoolean, AttributeTypeArray, AttributeTypeObject:
		return true
	}
	return false
}

// Validation holds the optional constraints of an attribute
type Validation struct {
	MinLength *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Enum      []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// HasEnum reports whether the validation restricts values to a fixed set
func (v *Validation) HasEnum() bool {
	return v != nil && len(v.Enum) > 0
}

// Clone returns a deep copy of the validation
func (v *Validation) Clone() *Validation {
	if v == nil {
		return nil
	}
	c := &Validation{Pattern: v.Pattern}
	if v.MinLength != nil {
		n := *v.MinLength
		c.MinLength = &n
	}
	if v.MaxLength != nil {
		n := *v.MaxLength
		c.MaxLength = &n
	}
	if v.Min != nil {
		n := *v.Min
		c.Min = &n
	}
	if v.Max != nil {
		n := *v.Max
		c.Max = &n
	}
	if v.Enum != nil {
		c.Enum = append([]string(nil), v.Enum...)
	}
	return c
}

// AttributeDefinition describes one field of a schema
type AttributeDefinition struct {
	Name        string        `json:"name" yaml:"name"`
	Type        AttributeType `json:"type" yaml:"type"`
	Required    bool          `json:"required" yaml:"required"`
	Validation  *Validation   `json:"validation,omitempty" yaml:"validation,omitempty"`
	Priority    int           `json:"priority" yaml:"priority"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// Clone returns a deep copy of the definition
func (a AttributeDefinition) Clone() AttributeDefinition {
	a.Validation = a.Validation.Clone()
	return a
}

// HasEnum reports whether the attribute declares an enum validation
func (a AttributeDefinition) HasEnum() bool {
	return a.Validation.HasEnum()
}

// IntPtr returns a pointer to i
func IntPtr(i int) *int {
	return &i
}

// FloatPtr returns a pointer to f
func FloatPtr(f float64) *float64 {
	return &f
}
