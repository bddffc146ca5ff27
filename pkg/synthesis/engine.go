package synthesis

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/engramdb/engram/pkg/logging"
	"github.com/engramdb/engram/pkg/vectorstore"
)

// Common errors
var (
	// ErrNilInput is returned when a required argument is missing
	ErrNilInput = errors.New("required input is nil or empty")

	// ErrNotImplemented marks the working-memory extension seam
	ErrNotImplemented = errors.New("working memory backend not implemented")
)

// VectorSource resolves semantic similarity candidates for a CI.
type VectorSource interface {
	Search(ctx context.Context, ciID, queryText string, limit int) ([]vectorstore.Match, error)
}

// RelatedEdge is one graph neighbor: the related record and the relationship
// strength.
type RelatedEdge struct {
	ToID     string
	Strength float64
}

// GraphSource resolves records related to a known record through one
// relation class. Best-effort; no cross-call consistency is assumed.
type GraphSource interface {
	GetRelated(ctx context.Context, recordID, relationClass string) ([]RelatedEdge, error)
}

// GraphSourceFunc adapts a function to the GraphSource interface.
type GraphSourceFunc func(ctx context.Context, recordID, relationClass string) ([]RelatedEdge, error)

// GetRelated calls f.
func (f GraphSourceFunc) GetRelated(ctx context.Context, recordID, relationClass string) ([]RelatedEdge, error) {
	return f(ctx, recordID, relationClass)
}

// KeywordSource resolves unordered best-effort keyword matches for a CI.
type KeywordSource interface {
	RecallAbout(ctx context.Context, ciID, query string) ([]string, error)
}

// WorkingItem is one working-memory attention entry.
type WorkingItem struct {
	RecordID  string
	Content   string
	Attention float64
}

// WorkingSource resolves the CI's current attention cache. This is an
// extension seam: the default implementation reports ErrNotImplemented and
// synthesis proceeds without it.
type WorkingSource interface {
	Attend(ctx context.Context, ciID, query string) ([]WorkingItem, error)
}

// NopWorkingSource is the documented no-op working-memory seam.
type NopWorkingSource struct{}

// Attend reports ErrNotImplemented.
func (NopWorkingSource) Attend(ctx context.Context, ciID, query string) ([]WorkingItem, error) {
	return nil, ErrNotImplemented
}

// Engine issues one logical query against up to four backends and fuses the
// results. Any backend may be nil; a nil or failing backend contributes
// nothing.
type Engine struct {
	vector  VectorSource
	graph   GraphSource
	keyword KeywordSource
	working WorkingSource
	logger  logging.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithVectorSource sets the semantic similarity backend.
func WithVectorSource(v VectorSource) EngineOption {
	return func(e *Engine) { e.vector = v }
}

// WithGraphSource sets the relationship backend.
func WithGraphSource(g GraphSource) EngineOption {
	return func(e *Engine) { e.graph = g }
}

// WithKeywordSource sets the keyword backend.
func WithKeywordSource(k KeywordSource) EngineOption {
	return func(e *Engine) { e.keyword = k }
}

// WithWorkingSource sets the working-memory backend.
func WithWorkingSource(w WorkingSource) EngineOption {
	return func(e *Engine) { e.working = w }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a synthesis engine over the configured backends.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		working: NopWorkingSource{},
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecallSynthesized queries every enabled backend in the fixed order vector,
// graph, keyword, working memory, merges the candidates by record id, and
// applies the selected fusion algorithm. A nil opts selects DefaultOptions.
//
// The graph backend runs only over the candidate set produced by the
// backends before it; a query with only the graph backend enabled therefore
// yields zero results. That mirrors the original synthesis layer and is
// preserved as observed behavior (see DESIGN.md) rather than silently
// changed.
func (e *Engine) RecallSynthesized(ctx context.Context, ciID, query string, opts *RecallOptions) (*ResultSet, error) {
	if ciID == "" || query == "" {
		return nil, ErrNilInput
	}

	var options RecallOptions
	if opts != nil {
		options = *opts
	} else {
		options = DefaultOptions()
	}

	rs := NewResultSet()

	e.logger.Debug("synthesis recall",
		"ci", ciID,
		"vector", options.UseVector, "graph", options.UseGraph,
		"keyword", options.UseKeyword, "working", options.UseWorking,
		"algorithm", options.Algorithm)

	if options.UseVector {
		e.queryVector(ctx, ciID, query, &options, rs)
	}
	if options.UseGraph {
		e.queryGraph(ctx, &options, rs)
	}
	if options.UseKeyword {
		e.queryKeyword(ctx, ciID, query, &options, rs)
	}
	if options.UseWorking {
		e.queryWorking(ctx, ciID, query, &options, rs)
	}

	applyAlgorithm(rs, &options)

	e.logger.Debug("synthesis complete",
		"results", rs.Count(),
		"vectorMatches", rs.VectorMatches, "graphMatches", rs.GraphMatches,
		"keywordMatches", rs.KeywordMatches, "workingMatches", rs.WorkingMatches)

	return rs, nil
}

// RecallRelated finds memories related to a known record. The record id is
// used as the query; the graph backend expands from whatever candidates the
// other backends surface for it.
func (e *Engine) RecallRelated(ctx context.Context, ciID, recordID string, opts *RecallOptions) (*ResultSet, error) {
	return e.RecallSynthesized(ctx, ciID, recordID, opts)
}

// queryVector collects semantic similarity candidates above the threshold.
func (e *Engine) queryVector(ctx context.Context, ciID, query string, opts *RecallOptions, rs *ResultSet) {
	if e.vector == nil {
		e.logger.Debug("vector backend not available")
		return
	}

	matches, err := e.vector.Search(ctx, ciID, query, opts.maxResults())
	if err != nil {
		e.logger.Warn("vector backend failed", "err", err)
		return
	}

	for _, m := range matches {
		sim := float64(m.Similarity)
		if sim < opts.SimilarityThreshold {
			continue
		}
		score := sim * opts.WeightVector
		rs.Add(Result{
			RecordID:    m.RecordID,
			VectorScore: score,
			Score:       score,
			FromVector:  true,
		})
		rs.VectorMatches++
	}
}

// queryGraph expands the existing candidate set through one default relation
// class, adding up to graphNeighborLimit related records per candidate.
func (e *Engine) queryGraph(ctx context.Context, opts *RecallOptions, rs *ResultSet) {
	if e.graph == nil {
		e.logger.Debug("graph backend not available")
		return
	}

	seeds := len(rs.Results)
	for i := 0; i < seeds; i++ {
		recordID := rs.Results[i].RecordID

		edges, err := e.graph.GetRelated(ctx, recordID, DefaultRelationClass)
		if err != nil {
			e.logger.Warn("graph backend failed", "record", recordID, "err", err)
			continue
		}

		for j, edge := range edges {
			if j >= graphNeighborLimit {
				break
			}
			score := edge.Strength * opts.WeightGraph
			rs.Add(Result{
				RecordID:   edge.ToID,
				GraphScore: score,
				Score:      score,
				FromGraph:  true,
			})
			rs.GraphMatches++
		}
	}
}

// queryKeyword collects unordered keyword matches under synthetic record ids.
func (e *Engine) queryKeyword(ctx context.Context, ciID, query string, opts *RecallOptions, rs *ResultSet) {
	if e.keyword == nil {
		e.logger.Debug("keyword backend not available")
		return
	}

	contents, err := e.keyword.RecallAbout(ctx, ciID, query)
	if err != nil {
		e.logger.Warn("keyword backend failed", "err", err)
		return
	}

	limit := opts.maxResults()
	for i, content := range contents {
		if i >= limit {
			break
		}
		rs.Add(Result{
			RecordID:     "kw_" + uuid.NewString(),
			Content:      content,
			KeywordScore: opts.WeightKeyword,
			Score:        opts.WeightKeyword,
			FromKeyword:  true,
			Timestamp:    time.Now(),
		})
		rs.KeywordMatches++
	}
}

// queryWorking collects attention-cache candidates from the working-memory
// seam.
func (e *Engine) queryWorking(ctx context.Context, ciID, query string, opts *RecallOptions, rs *ResultSet) {
	if e.working == nil {
		e.logger.Debug("working memory backend not available")
		return
	}

	items, err := e.working.Attend(ctx, ciID, query)
	if err != nil {
		if errors.Is(err, ErrNotImplemented) {
			e.logger.Debug("working memory backend not implemented")
		} else {
			e.logger.Warn("working memory backend failed", "err", err)
		}
		return
	}

	for _, item := range items {
		score := item.Attention * opts.WeightWorking
		rs.Add(Result{
			RecordID:     item.RecordID,
			Content:      item.Content,
			WorkingScore: score,
			Score:        score,
			FromWorking:  true,
		})
		rs.WorkingMatches++
	}
}

// applyAlgorithm combines and filters the collected results, then trims to
// the configured bound.
func applyAlgorithm(rs *ResultSet, opts *RecallOptions) {
	switch opts.Algorithm {
	case AlgorithmIntersection:
		kept := rs.Results[:0]
		for _, r := range rs.Results {
			if opts.UseVector && !r.FromVector {
				continue
			}
			if opts.UseGraph && !r.FromGraph {
				continue
			}
			if opts.UseKeyword && !r.FromKeyword {
				continue
			}
			if opts.UseWorking && !r.FromWorking {
				continue
			}
			kept = append(kept, r)
		}
		rs.Results = kept

	case AlgorithmWeighted:
		// Weights were applied as backends were collected; the combined
		// score is their sum.
		for i := range rs.Results {
			r := &rs.Results[i]
			r.Score = r.VectorScore + r.GraphScore + r.KeywordScore + r.WorkingScore
		}

	case AlgorithmUnion, AlgorithmHierarchical:
		// Keep accumulated scores as-is.
	}

	sort.SliceStable(rs.Results, func(i, j int) bool {
		return rs.Results[i].Score > rs.Results[j].Score
	})

	if limit := opts.maxResults(); len(rs.Results) > limit {
		rs.Results = rs.Results[:limit]
	}
}
