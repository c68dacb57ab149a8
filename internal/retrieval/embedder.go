package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// DefaultDimensions is the vector size of the hashing embedder
const DefaultDimensions = 256

// HashingEmbedder is an offline embedder using feature hashing over a bag of
// lower-cased word tokens. It needs no model, so retrieval keeps working when
// no embedding service is reachable. Vectors are L2-normalized.
type HashingEmbedder struct {
	Dimensions int
}

// NewHashingEmbedder returns a hashing embedder; dims <= 0 selects DefaultDimensions
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashingEmbedder{Dimensions: dims}
}

// Embed implements Embedder. It never fails unless ctx is done.
func (h *HashingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dims := h.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	vec := make([]float64, dims)

	for _, token := range tokenize(text) {
		hasher := fnv.New32a()
		hasher.Write([]byte(token))
		sum := hasher.Sum32()

		// The top bit picks the sign so that collisions tend to cancel out
		sign := 1.0
		if sum&(1<<31) != 0 {
			sign = -1.0
		}
		vec[int(sum%uint32(dims))] += sign
	}

	normalize(vec)
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$'
	})
}

func normalize(vec []float64) {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
}

// CosineDistance returns 1 - cosine similarity. Zero vectors are at the
// maximal distance 1 from everything, including each other.
func CosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
