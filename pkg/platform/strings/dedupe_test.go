package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "duplicates removed, order preserved",
			input:    []string{"dev-read", "prod-db-admin", "dev-read"},
			expected: []string{"dev-read", "prod-db-admin"},
		},
		{
			name:     "whitespace trimmed before comparison",
			input:    []string{"  dev-read ", "dev-read", "\tfin-analyst"},
			expected: []string{"dev-read", "fin-analyst"},
		},
		{
			name:     "blank entries dropped",
			input:    []string{"", "   ", "dev-read"},
			expected: []string{"dev-read"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
