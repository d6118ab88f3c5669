package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	got := tokenize("The café's A-1 menu_item, x y 42!")
	assert.Equal(t, []string{"the", "café", "menu_item", "42"}, got)
}

func TestFitTransform_MatchesSmoothedIDF(t *testing.T) {
	m := Fit([]string{"the cat", "the dog"})
	assert.Equal(t, []string{"cat", "dog", "the"}, m.terms)

	v := m.Transform("the cat")
	assert.Equal(t, []int{0, 2}, v.Indices)
	assert.InDelta(t, 0.81480247, v.Values[0], 1e-6)
	assert.InDelta(t, 0.57973867, v.Values[1], 1e-6)
}

func TestTransform_UnknownTerms(t *testing.T) {
	m := Fit([]string{"alpha beta"})
	v := m.Transform("gamma")
	assert.Empty(t, v.Indices)
	assert.Zero(t, v.Dot(m.Transform("alpha")))
}

func TestSparseVector_Dot(t *testing.T) {
	a := SparseVector{Indices: []int{0, 2, 5}, Values: []float64{1, 2, 3}}
	b := SparseVector{Indices: []int{2, 3, 5}, Values: []float64{4, 7, 1}}
	assert.InDelta(t, 11.0, a.Dot(b), 1e-12)
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{"even", "alpha beta gamma delta", 2, []string{"alpha beta", "gamma delta"}},
		{"short tail", "a b c", 2, []string{"a b", "c"}},
		{"collapses whitespace", "a\n\tb   c", 5, []string{"a b c"}},
		{"empty", "  \n ", 3, nil},
		{"default size", "one two", 0, []string{"one two"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.text, tt.size))
		})
	}
}
