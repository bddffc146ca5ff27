package engram

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/engramdb/engram/pkg/embedding"
	"github.com/engramdb/engram/pkg/graphstore"
	"github.com/engramdb/engram/pkg/index"
	"github.com/engramdb/engram/pkg/keywordstore"
	"github.com/engramdb/engram/pkg/logging"
	"github.com/engramdb/engram/pkg/synthesis"
	"github.com/engramdb/engram/pkg/vectorstore"
)

// Config represents engine configuration.
type Config struct {
	Dimensions  int    // Vector dimensions (0 selects the default)
	Method      string // Embedding method: "hash", "tfidf" or "external"
	GraphPath   string // SQLite path for the graph collaborator
	KeywordPath string // SQLite path for the keyword collaborator
}

// DefaultConfig returns an in-memory configuration with TF-IDF embeddings.
func DefaultConfig() Config {
	return Config{
		Dimensions:  embedding.DefaultDimensions,
		Method:      "tfidf",
		GraphPath:   ":memory:",
		KeywordPath: ":memory:",
	}
}

// Memory is the engine facade: per-CI vector stores, the SQLite graph and
// keyword collaborators, and the synthesis engine, all fed by one embedding
// generator per CI.
//
// Memory is not internally synchronized. Callers that share one Memory
// across goroutines must serialize access externally; every operation runs
// to completion on the calling goroutine.
type Memory struct {
	cfg      Config
	method   embedding.Method
	provider embedding.Provider
	logger   logging.Logger

	stores  map[string]*vectorstore.Store
	indexes map[string]*index.Index
	graph   *graphstore.Store
	keyword *keywordstore.Store
	engine  *synthesis.Engine
	closed  bool
}

// Option is a functional option for configuring the Memory.
type Option func(*Memory)

// WithLogger sets the logger used by the facade and every component it
// creates. Defaults to a no-op logger.
func WithLogger(l logging.Logger) Option {
	return func(m *Memory) { m.logger = l }
}

// WithProvider configures the external embedding provider used when the
// method is "external".
func WithProvider(p embedding.Provider) Option {
	return func(m *Memory) { m.provider = p }
}

// Open creates a Memory and its collaborators.
func Open(cfg Config, opts ...Option) (*Memory, error) {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = embedding.DefaultDimensions
	}
	if cfg.GraphPath == "" {
		cfg.GraphPath = ":memory:"
	}
	if cfg.KeywordPath == "" {
		cfg.KeywordPath = ":memory:"
	}

	m := &Memory{
		cfg:     cfg,
		method:  embedding.ParseMethod(cfg.Method),
		logger:  logging.Nop(),
		stores:  make(map[string]*vectorstore.Store),
		indexes: make(map[string]*index.Index),
	}
	for _, opt := range opts {
		opt(m)
	}

	ctx := context.Background()

	graph, err := graphstore.Open(ctx, cfg.GraphPath, graphstore.WithLogger(m.logger))
	if err != nil {
		return nil, fmt.Errorf("engram: open graph store: %w", err)
	}
	keyword, err := keywordstore.Open(ctx, cfg.KeywordPath, keywordstore.WithLogger(m.logger))
	if err != nil {
		graph.Close()
		return nil, fmt.Errorf("engram: open keyword store: %w", err)
	}
	m.graph = graph
	m.keyword = keyword

	m.engine = synthesis.NewEngine(
		synthesis.WithVectorSource(&storeVectorSource{m: m}),
		synthesis.WithGraphSource(synthesis.GraphSourceFunc(m.related)),
		synthesis.WithKeywordSource(keyword),
		synthesis.WithLogger(m.logger),
	)
	return m, nil
}

// store returns the vector store for a CI, creating it on first use. Each
// CI gets its own generator and corpus statistics.
func (m *Memory) store(ciID string) (*vectorstore.Store, error) {
	if s, ok := m.stores[ciID]; ok {
		return s, nil
	}

	var genOpts []embedding.GeneratorOption
	genOpts = append(genOpts, embedding.WithLogger(m.logger))
	if m.provider != nil {
		genOpts = append(genOpts, embedding.WithProvider(m.provider))
	}
	gen := embedding.NewGenerator(m.cfg.Dimensions, m.method, genOpts...)

	s, err := vectorstore.New(ciID, gen)
	if err != nil {
		return nil, err
	}
	m.stores[ciID] = s
	return s, nil
}

// Store embeds text and records it for a CI across the vector store, the
// keyword collaborator and the graph node table. An empty recordID gets a
// generated UUID. Returns the record id actually used.
func (m *Memory) Store(ctx context.Context, ciID, recordID, text string) (string, error) {
	if m.closed {
		return "", ErrClosed
	}
	if text == "" {
		return "", ErrEmptyText
	}
	if recordID == "" {
		recordID = uuid.NewString()
	}

	s, err := m.store(ciID)
	if err != nil {
		return "", err
	}
	if err := s.Store(ctx, recordID, text); err != nil {
		return "", err
	}
	// Indexes are one-shot snapshots; a mutated store invalidates them.
	delete(m.indexes, ciID)

	if err := m.keyword.Remember(ctx, ciID, recordID, text); err != nil {
		m.logger.Warn("keyword remember failed", "ci", ciID, "record", recordID, "err", err)
	}
	node := &graphstore.Node{RecordID: recordID, CIID: ciID, Content: text}
	if err := m.graph.UpsertNode(ctx, node); err != nil {
		m.logger.Warn("graph node upsert failed", "ci", ciID, "record", recordID, "err", err)
	}
	return recordID, nil
}

// Delete removes a record from the CI's vector store and both collaborators.
func (m *Memory) Delete(ctx context.Context, ciID, recordID string) error {
	if m.closed {
		return ErrClosed
	}
	s, ok := m.stores[ciID]
	if !ok {
		return ErrUnknownCI
	}
	if err := s.Delete(recordID); err != nil {
		return err
	}
	delete(m.indexes, ciID)

	if err := m.keyword.Forget(ctx, ciID, recordID); err != nil {
		m.logger.Warn("keyword forget failed", "ci", ciID, "record", recordID, "err", err)
	}
	if err := m.graph.DeleteNode(ctx, recordID); err != nil {
		m.logger.Warn("graph node delete failed", "ci", ciID, "record", recordID, "err", err)
	}
	return nil
}

// Relate records a directed relationship between two stored records. The
// relation class defaults to the one the synthesis engine traverses.
func (m *Memory) Relate(ctx context.Context, fromID, toID, relation string, strength float64) error {
	if m.closed {
		return ErrClosed
	}
	if relation == "" {
		relation = synthesis.DefaultRelationClass
	}
	edge := &graphstore.Edge{FromID: fromID, ToID: toID, Relation: relation, Strength: strength}
	return m.graph.UpsertEdge(ctx, edge)
}

// Load rebuilds a CI's in-memory vector store from the node contents
// persisted in the graph database. Returns the number of records loaded.
// Vectors themselves are not persisted; they are re-derived from text, so a
// TF-IDF corpus rebuilds its statistics in insertion order.
func (m *Memory) Load(ctx context.Context, ciID string) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	nodes, err := m.graph.NodesForCI(ctx, ciID)
	if err != nil {
		return 0, fmt.Errorf("engram: load ci: %w", err)
	}
	s, err := m.store(ciID)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, n := range nodes {
		if _, err := s.Get(n.RecordID); err == nil {
			continue
		}
		if err := s.Store(ctx, n.RecordID, n.Content); err != nil {
			return loaded, err
		}
		loaded++
	}
	if loaded > 0 {
		delete(m.indexes, ciID)
	}
	return loaded, nil
}

// Search runs an exact linear-scan similarity search over one CI's store.
func (m *Memory) Search(ctx context.Context, ciID, query string, limit int) ([]vectorstore.Match, error) {
	if m.closed {
		return nil, ErrClosed
	}
	s, ok := m.stores[ciID]
	if !ok {
		return nil, ErrUnknownCI
	}
	return s.Search(ctx, query, limit)
}

// RecallSynthesized fuses vector, graph, keyword and working-memory
// candidates for a query. A nil opts selects the default recall options.
func (m *Memory) RecallSynthesized(ctx context.Context, ciID, query string, opts *synthesis.RecallOptions) (*synthesis.ResultSet, error) {
	if m.closed {
		return nil, ErrClosed
	}
	return m.engine.RecallSynthesized(ctx, ciID, query, opts)
}

// RecallRelated finds memories related to a known record through the graph.
func (m *Memory) RecallRelated(ctx context.Context, ciID, recordID string, opts *synthesis.RecallOptions) (*synthesis.ResultSet, error) {
	if m.closed {
		return nil, ErrClosed
	}
	return m.engine.RecallRelated(ctx, ciID, recordID, opts)
}

// WhatDoIKnow answers a topic question with semantics-weighted recall.
func (m *Memory) WhatDoIKnow(ctx context.Context, ciID, topic string) (*synthesis.ResultSet, error) {
	if m.closed {
		return nil, ErrClosed
	}
	opts := synthesis.SemanticOptions()
	return m.engine.RecallSynthesized(ctx, ciID, topic, &opts)
}

// BuildIndex builds (or rebuilds) an HNSW index from the CI's current store
// snapshot. The index is cached until the store next mutates.
func (m *Memory) BuildIndex(ciID string, cfg index.Config) (*index.Index, error) {
	if m.closed {
		return nil, ErrClosed
	}
	s, ok := m.stores[ciID]
	if !ok {
		return nil, ErrUnknownCI
	}
	idx, err := index.Build(s.Snapshot(), cfg, index.WithLogger(m.logger))
	if err != nil {
		return nil, fmt.Errorf("engram: build index: %w", err)
	}
	m.indexes[ciID] = idx
	return idx, nil
}

// SearchApprox searches the CI's HNSW index. BuildIndex must have been
// called since the store last mutated.
func (m *Memory) SearchApprox(ctx context.Context, ciID, query string, k int) ([]index.Result, error) {
	if m.closed {
		return nil, ErrClosed
	}
	idx, ok := m.indexes[ciID]
	if !ok {
		return nil, ErrNoIndex
	}
	s, ok := m.stores[ciID]
	if !ok {
		return nil, ErrUnknownCI
	}
	q := s.Generator().EmbedQuery(ctx, query)
	return idx.Search(q, k), nil
}

// Count returns the number of records stored for a CI.
func (m *Memory) Count(ciID string) int {
	if s, ok := m.stores[ciID]; ok {
		return s.Count()
	}
	return 0
}

// Close closes the SQLite collaborators.
func (m *Memory) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	kerr := m.keyword.Close()
	gerr := m.graph.Close()
	if kerr != nil {
		return kerr
	}
	return gerr
}

// related adapts the graph collaborator to the synthesis engine's edge type.
func (m *Memory) related(ctx context.Context, recordID, relationClass string) ([]synthesis.RelatedEdge, error) {
	edges, err := m.graph.GetRelated(ctx, recordID, relationClass)
	if err != nil {
		return nil, err
	}
	out := make([]synthesis.RelatedEdge, len(edges))
	for i, e := range edges {
		out[i] = synthesis.RelatedEdge{ToID: e.ToID, Strength: e.Strength}
	}
	return out, nil
}

// storeVectorSource exposes per-CI stores to the synthesis engine. Unknown
// CIs contribute nothing rather than failing the whole recall.
type storeVectorSource struct {
	m *Memory
}

func (v *storeVectorSource) Search(ctx context.Context, ciID, queryText string, limit int) ([]vectorstore.Match, error) {
	s, ok := v.m.stores[ciID]
	if !ok {
		return nil, nil
	}
	return s.Search(ctx, queryText, limit)
}
