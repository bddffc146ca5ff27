// Package vectorstore implements the exact, per-CI vector similarity store.
//
// A Store owns the embeddings it creates and searches them with an O(n*d)
// linear scan. It is not internally thread-safe, by design: callers that need
// concurrent store+search against one Store must serialize externally (one
// store per worker, or an external lock). That is a deliberate simplicity
// tradeoff of the core, not an oversight.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/engramdb/engram/pkg/embedding"
	"github.com/engramdb/engram/pkg/logging"
)

// MaxResults is the hard cap on matches returned by a single search.
const MaxResults = 100

// initialCapacity sizes the embedding slice at creation; growth doubles.
const initialCapacity = 100

// Common errors
var (
	// ErrNotFound is returned when a record id is absent from the store
	ErrNotFound = errors.New("record not found")

	// ErrNilInput is returned when a required argument is missing
	ErrNilInput = errors.New("required input is nil or empty")
)

// StoreError wraps errors with operation context
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vectorstore: %v", e.Err)
	}
	return fmt.Sprintf("vectorstore: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error { return e.Err }

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Match is one search result: the matched record and its cosine similarity
// to the query.
type Match struct {
	RecordID   string
	Similarity float32
	Embedding  *embedding.Embedding
}

// Store holds the embeddings of one CI. All embeddings in a store share the
// generator's dimensionality.
type Store struct {
	ciID       string
	gen        *embedding.Generator
	embeddings []*embedding.Embedding
	logger     logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty vector store for one CI using the given generator.
func New(ciID string, gen *embedding.Generator, opts ...Option) (*Store, error) {
	if ciID == "" {
		return nil, wrapError("init", ErrNilInput)
	}
	if gen == nil {
		return nil, wrapError("init", ErrNilInput)
	}

	s := &Store{
		ciID:       ciID,
		gen:        gen,
		embeddings: make([]*embedding.Embedding, 0, initialCapacity),
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Info("initialized vector store", "ci", ciID, "method", gen.Method(), "dims", gen.Dimensions())
	return s, nil
}

// CIID returns the CI this store is scoped to.
func (s *Store) CIID() string { return s.ciID }

// Generator returns the store's embedding generator.
func (s *Store) Generator() *embedding.Generator { return s.gen }

// Count returns the number of stored embeddings.
func (s *Store) Count() int { return len(s.embeddings) }

// Store embeds text in document mode and appends it under recordID. Growth
// is amortized O(1) with capacity doubling; a failed store leaves the store
// unchanged.
func (s *Store) Store(ctx context.Context, recordID, text string) error {
	if recordID == "" || text == "" {
		return wrapError("store", ErrNilInput)
	}

	emb := s.gen.EmbedDocument(ctx, text)
	emb.RecordID = recordID

	if len(s.embeddings) == cap(s.embeddings) {
		grown := make([]*embedding.Embedding, len(s.embeddings), cap(s.embeddings)*2)
		copy(grown, s.embeddings)
		s.embeddings = grown
	}
	s.embeddings = append(s.embeddings, emb)

	s.logger.Debug("stored vector", "record", recordID, "total", len(s.embeddings))
	return nil
}

// Get returns the embedding stored under recordID.
func (s *Store) Get(recordID string) (*embedding.Embedding, error) {
	if recordID == "" {
		return nil, wrapError("get", ErrNilInput)
	}
	for _, emb := range s.embeddings {
		if emb.RecordID == recordID {
			return emb, nil
		}
	}
	return nil, wrapError("get", ErrNotFound)
}

// Delete removes the embedding stored under recordID, left-shifting the
// remaining entries so their relative order is preserved. O(n).
func (s *Store) Delete(recordID string) error {
	if recordID == "" {
		return wrapError("delete", ErrNilInput)
	}
	for i, emb := range s.embeddings {
		if emb.RecordID == recordID {
			copy(s.embeddings[i:], s.embeddings[i+1:])
			s.embeddings[len(s.embeddings)-1] = nil
			s.embeddings = s.embeddings[:len(s.embeddings)-1]
			s.logger.Debug("deleted vector", "record", recordID, "total", len(s.embeddings))
			return nil
		}
	}
	return wrapError("delete", ErrNotFound)
}

// Search embeds queryText in query mode and scans every stored embedding,
// returning up to min(limit, MaxResults) matches sorted by descending cosine
// similarity. Ties keep insertion order. An empty store yields an empty
// result, not an error.
func (s *Store) Search(ctx context.Context, queryText string, limit int) ([]Match, error) {
	if queryText == "" {
		return nil, wrapError("search", ErrNilInput)
	}
	if len(s.embeddings) == 0 {
		return nil, nil
	}

	query := s.gen.EmbedQuery(ctx, queryText)

	matches := make([]Match, len(s.embeddings))
	for i, emb := range s.embeddings {
		matches[i] = Match{
			RecordID:   emb.RecordID,
			Similarity: embedding.Cosine(query, emb),
			Embedding:  emb,
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if limit < 0 {
		limit = 0
	}
	if limit > MaxResults {
		limit = MaxResults
	}
	if limit < len(matches) {
		matches = matches[:limit]
	}

	s.logger.Debug("vector search complete", "matches", len(matches), "limit", limit)
	return matches, nil
}

// Snapshot returns a copy of the current embedding slice, newest last. The
// embeddings themselves are shared (they are immutable); the slice is the
// caller's. Index construction builds from such snapshots.
func (s *Store) Snapshot() []*embedding.Embedding {
	snap := make([]*embedding.Embedding, len(s.embeddings))
	copy(snap, s.embeddings)
	return snap
}
