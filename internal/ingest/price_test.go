package ingest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input    interface{}
		expected float64
		ok       bool
	}{
		{"$1,234.56", 1234.56, true},
		{"1234.56", 1234.56, true},
		{"€ 99,90", 99.90, true},
		{"1.234,56 €", 1234.56, true},
		{"AED 1,299,000", 1299000, true},
		{"1.234.567", 1234567, true},
		{"  42 ", 42, true},
		{"-5", -5, true},
		{29.99, 29.99, true},
		{15, 15, true},
		{"", 0, false},
		{"free", 0, false},
		{"$", 0, false},
		{"1-2", 0, false},
		{"..", 0, false},
		{true, 0, false},
		{nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.input), func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.expected, got, 1e-9)
			}
		})
	}
}
