// Package hashing provides a deterministic local embedding provider.
//
// Texts are tokenised into lower-cased words and word bigrams, each hashed
// with FNV-1a into a fixed number of buckets with a signed count. The last
// eighth of the buckets hold a fingerprint of the exact text, so any textual
// edit that keeps the words, including case or punctuation, scores near
// 1/(1+FingerprintShare) instead of 1. The vector is L2-normalised. It needs no
// network access or credentials, which makes it the default for local use
// and tests.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/ca-shen98/knoba/internal/adapters/driven/storage/similarity"
	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
)

// Ensure EmbeddingProvider implements the interface.
var _ driven.EmbeddingProvider = (*EmbeddingProvider)(nil)

// DefaultDimensions is the vector size when none is configured.
const DefaultDimensions = 256

// ModelName identifies this embedder in settings.
const ModelName = "hashing-bow"

// MinDimensions is the smallest vector that leaves room for the fingerprint.
const MinDimensions = 8

// FingerprintShare is the energy of the exact-text fingerprint relative to
// the word features. Texts with the same words but different characters
// score about 1/(1+FingerprintShare), below the default identity threshold and
// above the default semantic one.
const FingerprintShare = 0.1

// EmbeddingProvider embeds text by feature hashing.
type EmbeddingProvider struct {
	dimensions  int
	wordBuckets int
}

// NewEmbeddingProvider creates a hashing embedder with the given vector size.
// Zero selects DefaultDimensions.
func NewEmbeddingProvider(dimensions int) (*EmbeddingProvider, error) {
	if dimensions == 0 {
		dimensions = DefaultDimensions
	}
	if dimensions < MinDimensions {
		return nil, fmt.Errorf("%w: dimensions must be at least %d, got %d",
			domain.ErrInvalidInput, MinDimensions, dimensions)
	}
	return &EmbeddingProvider{
		dimensions:  dimensions,
		wordBuckets: dimensions - dimensions/8,
	}, nil
}

// Dimensions returns the embedding vector size.
func (p *EmbeddingProvider) Dimensions() int {
	return p.dimensions
}

// ModelName returns the model identifier.
func (p *EmbeddingProvider) ModelName() string {
	return ModelName
}

// EmbedBatch embeds each text independently.
func (p *EmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.embed(text)
	}
	return out, nil
}

func (p *EmbeddingProvider) embed(text string) []float32 {
	vec := make([]float32, p.dimensions)
	exact := strings.TrimSpace(text)
	if exact == "" {
		return vec
	}

	words := tokenize(exact)
	for i, w := range words {
		p.add(vec[:p.wordBuckets], w)
		if i > 0 {
			p.add(vec[:p.wordBuckets], words[i-1]+" "+w)
		}
	}
	similarity.Normalize(vec)

	// Text without letters or digits embeds as its fingerprint alone.
	fingerprint(vec[p.wordBuckets:], exact)
	similarity.Normalize(vec)
	return vec
}

// fingerprint fills buckets with a pseudo-random sign pattern derived from
// text, carrying FingerprintShare of energy. Patterns of different texts
// agree on about half of the buckets, so their dot product is near zero.
func fingerprint(buckets []float32, text string) {
	w := float32(math.Sqrt(FingerprintShare / float64(len(buckets))))
	var bits uint64
	for i := range buckets {
		if i%64 == 0 {
			h := fnv.New64a()
			_, _ = fmt.Fprintf(h, "%d\x00%s", i/64, text)
			bits = mix(h.Sum64())
		}
		if bits&1 != 0 {
			buckets[i] = -w
		} else {
			buckets[i] = w
		}
		bits >>= 1
	}
}

// mix is the splitmix64 finaliser; raw FNV low bits barely change when only
// the last character of the text does.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// add hashes a feature into one of buckets; one hash bit picks the sign so
// collisions tend to cancel rather than accumulate.
func (p *EmbeddingProvider) add(buckets []float32, feature string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(len(buckets))) //nolint:gosec // bounded by len(buckets)
	if sum&(1<<63) != 0 {
		buckets[idx]--
	} else {
		buckets[idx]++
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
