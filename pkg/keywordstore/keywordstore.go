// Package keywordstore is the SQLite-backed keyword collaborator consulted by
// the synthesis engine. It keeps memory content in an FTS5 virtual table and
// answers RecallAbout with bm25-ranked matches. The contract toward the core
// is unordered best-effort: callers must not rely on a particular ordering.
package keywordstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/engramdb/engram/pkg/logging"
)

// defaultLimit bounds RecallAbout when the caller passes no explicit limit.
const defaultLimit = 50

// Store provides keyword recall over a SQLite FTS5 table.
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

// Open opens (or creates) the keyword database at path and ensures the
// schema. Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("keywordstore: database path cannot be empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("keywordstore: open database: %w", err)
	}

	s := &Store{db: db, logger: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("keywordstore: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS keyword_memories (
		rowid INTEGER PRIMARY KEY AUTOINCREMENT,
		ci_id TEXT NOT NULL,
		record_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (ci_id, record_id)
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS keyword_memories_fts USING fts5(
		content, content='keyword_memories', content_rowid='rowid'
	);

	CREATE TRIGGER IF NOT EXISTS keyword_memories_ai AFTER INSERT ON keyword_memories BEGIN
		INSERT INTO keyword_memories_fts(rowid, content) VALUES (new.rowid, new.content);
	END;
	CREATE TRIGGER IF NOT EXISTS keyword_memories_ad AFTER DELETE ON keyword_memories BEGIN
		INSERT INTO keyword_memories_fts(keyword_memories_fts, rowid, content)
		VALUES ('delete', old.rowid, old.content);
	END;
	CREATE TRIGGER IF NOT EXISTS keyword_memories_au AFTER UPDATE ON keyword_memories BEGIN
		INSERT INTO keyword_memories_fts(keyword_memories_fts, rowid, content)
		VALUES ('delete', old.rowid, old.content);
		INSERT INTO keyword_memories_fts(rowid, content) VALUES (new.rowid, new.content);
	END;
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Remember stores (or replaces) the content of one memory record for a CI.
func (s *Store) Remember(ctx context.Context, ciID, recordID, content string) error {
	if ciID == "" || recordID == "" || content == "" {
		return fmt.Errorf("keywordstore: ci id, record id and content are required")
	}

	query := `
	INSERT INTO keyword_memories (ci_id, record_id, content)
	VALUES (?, ?, ?)
	ON CONFLICT(ci_id, record_id) DO UPDATE SET content = excluded.content
	`
	if _, err := s.db.ExecContext(ctx, query, ciID, recordID, content); err != nil {
		return fmt.Errorf("keywordstore: remember: %w", err)
	}
	return nil
}

// Forget removes one memory record for a CI.
func (s *Store) Forget(ctx context.Context, ciID, recordID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM keyword_memories WHERE ci_id = ? AND record_id = ?`, ciID, recordID); err != nil {
		return fmt.Errorf("keywordstore: forget: %w", err)
	}
	return nil
}

// RecallAbout returns the content of memories matching the query terms for
// one CI. Matching uses FTS5 with bm25 ranking; no results is an empty
// slice, not an error.
func (s *Store) RecallAbout(ctx context.Context, ciID, query string) ([]string, error) {
	match := ftsQuery(query)
	if ciID == "" || match == "" {
		return nil, nil
	}

	// bm25() is negative; ascending rank puts the best matches first.
	q := `
	SELECT m.content
	FROM keyword_memories_fts
	JOIN keyword_memories m ON m.rowid = keyword_memories_fts.rowid
	WHERE keyword_memories_fts MATCH ?
	  AND m.ci_id = ?
	ORDER BY bm25(keyword_memories_fts)
	LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, q, match, ciID, defaultLimit)
	if err != nil {
		return nil, fmt.Errorf("keywordstore: recall about: %w", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("keywordstore: scan content: %w", err)
		}
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("keywordstore: iterate contents: %w", err)
	}

	s.logger.Debug("keyword recall", "ci", ciID, "matches", len(contents))
	return contents, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ftsQuery converts free text into a safe FTS5 OR query: bare terms joined
// with OR, punctuation stripped, so user input cannot inject FTS syntax.
func ftsQuery(text string) string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + f + `"`
	}
	return strings.Join(quoted, " OR ")
}
