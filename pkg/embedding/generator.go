package embedding

import (
	"context"

	"github.com/engramdb/engram/pkg/logging"
)

// Method selects the embedding strategy for a store.
type Method int

const (
	// MethodHash is the deterministic character-hash strategy, always
	// available.
	MethodHash Method = iota
	// MethodTFIDF weights terms by corpus document frequency; falls back to
	// hash on internal failure.
	MethodTFIDF
	// MethodExternal delegates to a Provider; falls back to TF-IDF, then
	// hash.
	MethodExternal
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodTFIDF:
		return "tfidf"
	case MethodExternal:
		return "external"
	default:
		return "hash"
	}
}

// ParseMethod converts a method name to a Method. Unknown names map to
// MethodHash.
func ParseMethod(name string) Method {
	switch name {
	case "tfidf":
		return MethodTFIDF
	case "external":
		return MethodExternal
	default:
		return MethodHash
	}
}

// Generator turns text into embeddings using a configured strategy with
// graceful degradation. A Generator is scoped to one CI: its IDFStats are
// that CI's shared corpus statistics.
//
// EmbedDocument and EmbedQuery differ in exactly one way: a document
// embedding updates the corpus statistics after it has been generated, a
// query embedding never touches them. The embed-first, update-second ordering
// keeps the new document out of its own IDF weights.
type Generator struct {
	dims     int
	method   Method
	stats    *IDFStats
	provider Provider
	logger   logging.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithProvider sets the external embedding provider used by MethodExternal.
func WithProvider(p Provider) GeneratorOption {
	return func(g *Generator) { g.provider = p }
}

// WithStats injects shared corpus statistics. Without this option the
// generator creates its own private IDFStats.
func WithStats(s *IDFStats) GeneratorOption {
	return func(g *Generator) { g.stats = s }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logging.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator creates a Generator producing dims-dimension vectors with the
// given strategy. dims <= 0 selects DefaultDimensions.
func NewGenerator(dims int, method Method, opts ...GeneratorOption) *Generator {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	g := &Generator{
		dims:   dims,
		method: method,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.stats == nil {
		g.stats = NewIDFStats()
	}
	return g
}

// Dimensions returns the vector dimensionality this generator produces.
func (g *Generator) Dimensions() int { return g.dims }

// Method returns the configured strategy.
func (g *Generator) Method() Method { return g.method }

// Stats returns the corpus statistics component.
func (g *Generator) Stats() *IDFStats { return g.stats }

// EmbedDocument embeds text in document mode: the corpus statistics are
// updated after embedding, but only when the TF-IDF path produced the vector.
func (g *Generator) EmbedDocument(ctx context.Context, text string) *Embedding {
	emb, used := g.embed(ctx, text)
	if used == MethodTFIDF {
		g.stats.AddDocument(text)
	}
	return emb
}

// EmbedQuery embeds text in query mode. Queries never perturb the corpus
// statistics.
func (g *Generator) EmbedQuery(ctx context.Context, text string) *Embedding {
	emb, _ := g.embed(ctx, text)
	return emb
}

// embed runs the fallback chain and reports which strategy produced the
// vector. The chain never fails outright: the hash strategy always yields a
// vector (possibly zero for degenerate text).
func (g *Generator) embed(ctx context.Context, text string) (*Embedding, Method) {
	switch g.method {
	case MethodExternal:
		if g.provider != nil {
			values, err := g.provider.Embed(ctx, text)
			switch {
			case err != nil:
				g.logger.Warn("external embedding failed, falling back to tfidf", "err", err)
			case len(values) != g.dims:
				g.logger.Warn("external embedding dimension mismatch, falling back to tfidf",
					"want", g.dims, "got", len(values))
			default:
				vec := make([]float32, g.dims)
				copy(vec, values)
				normalize(vec)
				return newEmbedding(vec), MethodExternal
			}
		} else {
			g.logger.Warn("external embedding provider not configured, falling back to tfidf")
		}
		fallthrough
	case MethodTFIDF:
		return newEmbedding(tfidfVector(text, g.dims, g.stats)), MethodTFIDF
	default:
		return newEmbedding(hashVector(text, g.dims)), MethodHash
	}
}
