package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlate(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected string
	}{
		{name: "Plain", raw: "ABC123", expected: "abc123"},
		{name: "Lowercase input", raw: "abc123", expected: "abc123"},
		{name: "Space separator", raw: "ABC 123", expected: "abc-123"},
		{name: "Mixed separators collapse", raw: "AB -. 12", expected: "ab-12"},
		{name: "Leading and trailing noise", raw: "  [KA-01]  ", expected: "-ka-01-"},
		{name: "OCR unreadable marker", raw: "N/A", expected: "n-a"},
		{name: "Empty", raw: "", expected: Unreadable},
		{name: "Whitespace only", raw: "   ", expected: Unreadable},
		{name: "Non-latin letters", raw: "東京 500", expected: "-500"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Plate(tc.raw))
		})
	}
}

func TestPlate_Idempotent(t *testing.T) {
	inputs := []string{"ABC 123", "ab--c..1", "N/A", "", "x", "  HR 26 DK 8337 ", "ÄÖÜ-99"}
	for _, in := range inputs {
		once := Plate(in)
		assert.Equal(t, once, Plate(once), "Plate should be idempotent for %q", in)
	}
}

func TestIsUnreadable(t *testing.T) {
	assert.True(t, IsUnreadable(Plate("")))
	assert.True(t, IsUnreadable(Plate("n/a")))
	assert.False(t, IsUnreadable(Plate("KA01AB1234")))
}
