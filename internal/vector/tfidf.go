package vector

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// tokenPattern matches runs of two or more word characters, the same
// tokens scikit-learn's default analyzer produces.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// SparseVector holds the non-zero entries of a vector in ascending index order.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Dot returns the inner product of two sparse vectors.
func (v SparseVector) Dot(o SparseVector) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(v.Indices) && j < len(o.Indices) {
		switch {
		case v.Indices[i] == o.Indices[j]:
			sum += v.Values[i] * o.Values[j]
			i++
			j++
		case v.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Model is a fitted TF-IDF vectorizer: raw term counts, smoothed IDF
// ln((1+n)/(1+df))+1 and L2 normalisation. Terms are indexed in
// alphabetical order.
type Model struct {
	vocabulary map[string]int
	terms      []string
	idf        []float64
}

// Fit builds the vocabulary and IDF weights from corpus.
func Fit(corpus []string) *Model {
	df := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	m := &Model{
		vocabulary: make(map[string]int, len(terms)),
		terms:      terms,
		idf:        make([]float64, len(terms)),
	}
	n := float64(len(corpus))
	for i, term := range terms {
		m.vocabulary[term] = i
		m.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	return m
}

// Len is the vocabulary size.
func (m *Model) Len() int {
	return len(m.terms)
}

// Transform maps text into the fitted space. Unknown terms are ignored, so
// text with no known terms yields the zero vector.
func (m *Model) Transform(text string) SparseVector {
	counts := make(map[int]int)
	for _, tok := range tokenize(text) {
		if idx, ok := m.vocabulary[tok]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return SparseVector{}
	}

	v := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		v.Indices = append(v.Indices, idx)
	}
	sort.Ints(v.Indices)

	norm := 0.0
	for _, idx := range v.Indices {
		w := float64(counts[idx]) * m.idf[idx]
		v.Values = append(v.Values, w)
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range v.Values {
		v.Values[i] /= norm
	}
	return v
}
