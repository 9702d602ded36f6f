// Package embedding implements memov's pluggable embedding backend sum
// type. Only the "default" backend is functional — it is a deterministic,
// local, hash-based embedder with no network dependency. "openai" and
// "sentence-transformers" exist as named variants (the original system
// supports them by string selection) but return Unimplemented: this module
// never makes network or subprocess calls.
package embedding

import (
	"hash/fnv"
	"math"
	"strings"

	"github.com/memovai/contextgit/internal/config"
	"github.com/memovai/contextgit/internal/memerr"
)

// Dim is the fixed dimensionality every backend's vectors share.
const Dim = 128

// Backend maps text to a fixed-dimension vector.
type Backend interface {
	Embed(text string) ([]float32, error)
	Name() config.EmbeddingBackend
}

// New constructs the Backend named by backend.
func New(backend config.EmbeddingBackend) (Backend, error) {
	switch backend {
	case config.EmbeddingDefault, "":
		return defaultBackend{}, nil
	case config.EmbeddingOpenAI:
		return unimplementedBackend{name: config.EmbeddingOpenAI}, nil
	case config.EmbeddingSentenceTransformer:
		return unimplementedBackend{name: config.EmbeddingSentenceTransformer}, nil
	default:
		return nil, memerr.New(memerr.Unknown, "unknown embedding backend %q", backend)
	}
}

// defaultBackend hashes overlapping trigrams into a fixed-width vector
// (classic feature hashing), then L2-normalizes so that dot product
// approximates cosine similarity. Deterministic for identical input text.
type defaultBackend struct{}

func (defaultBackend) Name() config.EmbeddingBackend { return config.EmbeddingDefault }

func (defaultBackend) Embed(text string) ([]float32, error) {
	vec := make([]float64, Dim)
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return toFloat32(vec), nil
	}

	const gram = 3
	runes := []rune(normalized)
	if len(runes) < gram {
		addToken(vec, normalized)
	} else {
		for i := 0; i+gram <= len(runes); i++ {
			addToken(vec, string(runes[i:i+gram]))
		}
	}

	normalize(vec)
	return toFloat32(vec), nil
}

func addToken(vec []float64, token string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	idx := int(h.Sum64() % uint64(len(vec)))
	sign := 1.0
	if (h.Sum64()>>63)&1 == 1 {
		sign = -1.0
	}
	vec[idx] += sign
}

func normalize(vec []float64) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	if sumSquares == 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for i := range vec {
		vec[i] /= norm
	}
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}

// unimplementedBackend stands in for backends that would require an
// outbound network call (OpenAI's embeddings API) or a local model process
// (sentence-transformers) — both out of scope per the no-network-calls
// constraint.
type unimplementedBackend struct {
	name config.EmbeddingBackend
}

func (b unimplementedBackend) Name() config.EmbeddingBackend { return b.name }

func (b unimplementedBackend) Embed(text string) ([]float32, error) {
	return nil, &memerr.Error{Kind: memerr.Unimplemented, Detail: string(b.name) + " backend requires a network/process call, not supported"}
}

// CosineSimilarity computes cosine similarity between two equal-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
