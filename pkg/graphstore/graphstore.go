// Package graphstore is the SQLite-backed relationship collaborator consulted
// by the synthesis engine. It stores memory records as nodes and typed,
// weighted relationships as directed edges, and answers the narrow
// GetRelated query the retrieval core depends on.
package graphstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/engramdb/engram/pkg/logging"
)

// ErrNotFound is returned when a requested node does not exist.
var ErrNotFound = errors.New("graph node not found")

// Node is one memory record participating in the graph.
type Node struct {
	RecordID  string
	CIID      string
	Content   string
	CreatedAt time.Time
}

// Edge is one directed, typed relationship between two records.
type Edge struct {
	FromID   string
	ToID     string
	Relation string
	Strength float64
}

// Store provides graph operations over a SQLite database.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens (or creates) the graph database at path and ensures the schema.
// Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("graphstore: database path cannot be empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("graphstore: open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("graphstore: enable foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("graphstore: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS graph_nodes (
		record_id TEXT PRIMARY KEY,
		ci_id TEXT NOT NULL,
		content TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS graph_edges (
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		relation TEXT NOT NULL,
		strength REAL DEFAULT 1.0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (from_id, to_id, relation),
		FOREIGN KEY (from_id) REFERENCES graph_nodes(record_id) ON DELETE CASCADE,
		FOREIGN KEY (to_id) REFERENCES graph_nodes(record_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_edges_from ON graph_edges(from_id, relation);
	CREATE INDEX IF NOT EXISTS idx_nodes_ci ON graph_nodes(ci_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// UpsertNode inserts or updates a node.
func (s *Store) UpsertNode(ctx context.Context, node *Node) error {
	if node == nil || node.RecordID == "" {
		return fmt.Errorf("graphstore: invalid node: missing record id")
	}

	query := `
	INSERT INTO graph_nodes (record_id, ci_id, content)
	VALUES (?, ?, ?)
	ON CONFLICT(record_id) DO UPDATE SET
		ci_id = excluded.ci_id,
		content = excluded.content
	`
	if _, err := s.db.ExecContext(ctx, query, node.RecordID, node.CIID, node.Content); err != nil {
		return fmt.Errorf("graphstore: upsert node: %w", err)
	}
	return nil
}

// GetNode retrieves a node by record id.
func (s *Store) GetNode(ctx context.Context, recordID string) (*Node, error) {
	query := `SELECT record_id, ci_id, content, created_at FROM graph_nodes WHERE record_id = ?`

	var node Node
	err := s.db.QueryRowContext(ctx, query, recordID).Scan(
		&node.RecordID, &node.CIID, &node.Content, &node.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("graphstore: get node: %w", err)
	}
	return &node, nil
}

// UpsertEdge inserts or updates a directed relationship. Both endpoints must
// already exist as nodes.
func (s *Store) UpsertEdge(ctx context.Context, edge *Edge) error {
	if edge == nil || edge.FromID == "" || edge.ToID == "" || edge.Relation == "" {
		return fmt.Errorf("graphstore: invalid edge: missing endpoint or relation")
	}

	query := `
	INSERT INTO graph_edges (from_id, to_id, relation, strength)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(from_id, to_id, relation) DO UPDATE SET
		strength = excluded.strength
	`
	if _, err := s.db.ExecContext(ctx, query, edge.FromID, edge.ToID, edge.Relation, edge.Strength); err != nil {
		return fmt.Errorf("graphstore: upsert edge: %w", err)
	}
	return nil
}

// GetRelated returns the records connected to recordID through the given
// relation class, strongest first. A record with no relations yields an
// empty slice, not an error.
func (s *Store) GetRelated(ctx context.Context, recordID, relationClass string) ([]Edge, error) {
	query := `
	SELECT from_id, to_id, relation, strength
	FROM graph_edges
	WHERE from_id = ? AND relation = ?
	ORDER BY strength DESC, to_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, recordID, relationClass)
	if err != nil {
		return nil, fmt.Errorf("graphstore: get related: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.FromID, &e.ToID, &e.Relation, &e.Strength); err != nil {
			return nil, fmt.Errorf("graphstore: scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("graphstore: iterate edges: %w", err)
	}

	s.logger.Debug("graph related query", "record", recordID, "relation", relationClass, "edges", len(edges))
	return edges, nil
}

// NodesForCI returns every node stored for one CI in insertion order.
func (s *Store) NodesForCI(ctx context.Context, ciID string) ([]Node, error) {
	query := `
	SELECT record_id, ci_id, content, created_at
	FROM graph_nodes
	WHERE ci_id = ?
	ORDER BY created_at ASC, record_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, ciID)
	if err != nil {
		return nil, fmt.Errorf("graphstore: nodes for ci: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.RecordID, &n.CIID, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("graphstore: scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("graphstore: iterate nodes: %w", err)
	}
	return nodes, nil
}

// DeleteNode removes a node and, through foreign keys, its edges.
func (s *Store) DeleteNode(ctx context.Context, recordID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM graph_nodes WHERE record_id = ?`, recordID)
	if err != nil {
		return fmt.Errorf("graphstore: delete node: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
