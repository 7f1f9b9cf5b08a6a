package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		label string
		want  Band
		ok    bool
	}{
		{"Red", High, true},
		{"high", High, true},
		{" EXTREME ", High, true},
		{"Amber", Medium, true},
		{"moderate", Medium, true},
		{"Medium", Medium, true},
		{"Green", Low, true},
		{"low", Low, true},
		{"", "", false},
		{"Purple", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := Classify(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	got, ok := Normalize("extreme")
	assert.True(t, ok)
	assert.Equal(t, "Red", got)

	got, ok = Normalize(" moderate ")
	assert.True(t, ok)
	assert.Equal(t, "Amber", got)

	got, ok = Normalize(" Unknown ")
	assert.False(t, ok)
	assert.Equal(t, "Unknown", got)
}

func TestSynonymsIsACopy(t *testing.T) {
	s := Synonyms(High)
	s[0] = "mutated"
	assert.Equal(t, "Red", Synonyms(High)[0])
}

func TestIndicator(t *testing.T) {
	assert.Equal(t, "🔴", Indicator("High"))
	assert.Equal(t, "⚠️", Indicator("Amber"))
	assert.Equal(t, "✅", Indicator("green"))
	assert.Equal(t, "", Indicator("n/a"))
}

func TestForScore(t *testing.T) {
	assert.Equal(t, Low, ForScore(0))
	assert.Equal(t, Low, ForScore(3.9))
	assert.Equal(t, Medium, ForScore(4.0))
	assert.Equal(t, Medium, ForScore(6.9))
	assert.Equal(t, High, ForScore(7.0))
	assert.Equal(t, High, ForScore(10))
}
