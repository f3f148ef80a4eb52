package memorybank

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// EmbeddingDim is the fixed dimensionality of the hashed bag-of-words
// embedding space.
const EmbeddingDim = 384

// Embed maps text to a unit vector using hashed bag-of-words: each token is
// lowercased, hashed into one of EmbeddingDim buckets, and the bucket counts
// are L2-normalized. Deterministic, dependency-free, and good enough for
// similarity ranking over policy templates and short violation snippets.
func Embed(text string) []float64 {
	vec := make([]float64, EmbeddingDim)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[h.Sum32()%EmbeddingDim]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// cosine computes cosine similarity between two vectors of equal length.
// Inputs from Embed are already unit vectors, so this reduces to a dot
// product, but zero vectors are handled explicitly.
func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
