// Package ftssearch serves an index from SQLite FTS5 through the pure-Go
// modernc.org/sqlite driver. Documents arrive as a mirror of the index's
// document store and keep its internal IDs as row numbers.
package ftssearch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/errors"
	"github.com/gcbaptista/go-searcher/internal/logging"
	"github.com/gcbaptista/go-searcher/internal/tokenizer"
	"github.com/gcbaptista/go-searcher/model"
	"github.com/gcbaptista/go-searcher/query"
	"github.com/gcbaptista/go-searcher/schema"
	"github.com/gcbaptista/go-searcher/searcher"
	"github.com/gcbaptista/go-searcher/store"
)

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// WithCoreOptions passes options to the searcher core.
func WithCoreOptions(opts ...searcher.CoreOption) Option {
	return func(s *Searcher) { s.coreOpts = append(s.coreOpts, opts...) }
}

// Searcher is a searcher.Searcher over an SQLite database holding a docs
// table and an FTS5 table with one column per searchable text field.
type Searcher struct {
	*searcher.Core

	mu       sync.RWMutex
	db       *sql.DB
	path     string
	fields   []string // searchable text fields, in column order
	compiler *compiler
	docMax   uint32
	closed   bool
	logger   *slog.Logger
	coreOpts []searcher.CoreOption
}

var (
	_ searcher.Searcher   = (*Searcher)(nil)
	_ searcher.DocFetcher = (*Searcher)(nil)
	_ searcher.DocCounter = (*Searcher)(nil)
)

// New opens the database at path, creating it if needed. An empty path
// opens a private in-memory database.
func New(sch *schema.Schema, path string, opts ...Option) (*Searcher, error) {
	if sch == nil {
		return nil, errors.NewInvalidArgumentError("schema", "schema is nil")
	}
	s := &Searcher{path: path}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)

	core, err := searcher.NewCore(sch, s, s.coreOpts...)
	if err != nil {
		return nil, err
	}
	s.Core = core

	columns := make(map[string]string)
	for _, name := range sch.SearchableFields() {
		if f, _ := sch.Field(name); f.Type == config.FieldTypeText {
			columns[name] = "c" + strconv.Itoa(len(s.fields))
			s.fields = append(s.fields, name)
		}
	}
	s.compiler = &compiler{schema: sch, columns: columns}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database exists per connection, and
	// SQLite allows a single writer anyway
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s.db = db

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := db.QueryRow(`SELECT COALESCE(MAX(num) + 1, 0) FROM docs`).Scan(&s.docMax); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read document count: %w", err)
	}
	return s, nil
}

// initSchema creates the tables. A database built for a different set of
// text fields is dropped; the index mirror refills it.
func (s *Searcher) initSchema() error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}
	if s.path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return err
	}
	layout := strings.Join(s.fields, "\x1f")
	var stored string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'columns'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return err
	case stored != layout:
		s.logger.Warn("fts_layout_changed",
			slog.String("index", s.Schema().Name()),
			slog.String("path", s.path))
		if _, err := s.db.Exec(`DROP TABLE IF EXISTS fts; DROP TABLE IF EXISTS docs`); err != nil {
			return err
		}
	}

	cols := make([]string, 0, max(len(s.fields), 1))
	for i := range s.fields {
		cols = append(cols, "c"+strconv.Itoa(i))
	}
	if len(cols) == 0 {
		// FTS5 needs a column even when nothing is full-text searchable
		cols = append(cols, "unused")
	}

	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS docs (
		num  INTEGER PRIMARY KEY,
		body TEXT NOT NULL
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS fts USING fts5(
		%s,
		tokenize='unicode61'
	);`, strings.Join(cols, ", "))
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('columns', ?)`, layout)
	return err
}

// IndexDocuments adds or replaces entries.
func (s *Searcher) IndexDocuments(ctx context.Context, entries []store.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSearcherClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	docStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO docs (num, body) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare document statement: %w", err)
	}
	defer docStmt.Close()

	// FTS5 tables don't support REPLACE, so replaced rows are deleted first
	delStmt, err := tx.PrepareContext(ctx, `DELETE FROM fts WHERE rowid = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer delStmt.Close()

	var ftsStmt *sql.Stmt
	if len(s.fields) > 0 {
		placeholders := strings.Repeat(", ?", len(s.fields))
		cols := make([]string, len(s.fields))
		for i := range s.fields {
			cols[i] = "c" + strconv.Itoa(i)
		}
		ftsStmt, err = tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO fts (rowid, %s) VALUES (?%s)`, strings.Join(cols, ", "), placeholders))
		if err != nil {
			return fmt.Errorf("failed to prepare FTS statement: %w", err)
		}
		defer ftsStmt.Close()
	}

	for _, e := range entries {
		body, err := json.Marshal(e.Doc)
		if err != nil {
			return fmt.Errorf("failed to encode document %d: %w", e.ID, err)
		}
		if _, err := docStmt.ExecContext(ctx, e.ID, string(body)); err != nil {
			return fmt.Errorf("failed to store document %d: %w", e.ID, err)
		}
		if _, err := delStmt.ExecContext(ctx, e.ID); err != nil {
			return fmt.Errorf("failed to delete existing document %d: %w", e.ID, err)
		}
		if ftsStmt != nil {
			args := make([]any, 0, len(s.fields)+1)
			args = append(args, e.ID)
			for _, field := range s.fields {
				args = append(args, analyzedText(e.Doc[field]))
			}
			if _, err := ftsStmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to index document %d: %w", e.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit documents: %w", err)
	}
	for _, e := range entries {
		s.docMax = max(s.docMax, e.ID+1)
	}
	return nil
}

// analyzedText pre-tokenizes a field value so FTS5 sees the same terms as
// the other backends.
func analyzedText(v interface{}) string {
	var b strings.Builder
	for _, text := range model.TextValues(v) {
		for _, tok := range tokenizer.Tokenize(text) {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(tok)
		}
	}
	return b.String()
}

// DeleteDocuments removes documents by internal ID.
func (s *Searcher) DeleteDocuments(ctx context.Context, ids []uint32) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSearcherClosed
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM fts WHERE rowid IN (%s)`, placeholders), args...); err != nil {
		return fmt.Errorf("failed to delete from FTS: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM docs WHERE num IN (%s)`, placeholders), args...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return tx.Commit()
}

// DeleteAllDocuments empties both tables.
func (s *Searcher) DeleteAllDocuments(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSearcherClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fts; DELETE FROM docs`); err != nil {
		return fmt.Errorf("failed to delete all documents: %w", err)
	}
	s.docMax = 0
	return nil
}

// TopDocs compiles q to SQL and returns the best numWanted matches.
// Relevance and document-number orders run in SQL; field orders and
// deduplication scan every match through a collector.
func (s *Searcher) TopDocs(ctx context.Context, q query.Query, numWanted uint32, sort *searcher.SortSpec) (*searcher.TopDocs, error) {
	if err := sort.Validate(); err != nil {
		return nil, err
	}
	c, err := s.compiler.compile(q)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.ErrSearcherClosed
	}

	distinct := s.Schema().DistinctField()
	if distinct != "" || sort.NeedsValues() {
		return s.scan(ctx, c, numWanted, sort, distinct)
	}

	var total uint64
	countSQL := "SELECT COUNT(*) FROM docs WHERE " + c.pred.sql
	if err := s.db.QueryRowContext(ctx, countSQL, c.pred.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("fts count failed: %w", err)
	}

	matches := make([]searcher.MatchDoc, 0, min(uint64(numWanted), total))
	if numWanted > 0 && total > 0 {
		selectSQL := fmt.Sprintf("SELECT num, %s AS score FROM docs WHERE %s ORDER BY %s LIMIT ?",
			c.score.sql, c.pred.sql, orderBy(sort))
		args := append(append(append([]any{}, c.score.args...), c.pred.args...), numWanted)
		rows, err := s.db.QueryContext(ctx, selectSQL, args...)
		if err != nil {
			return nil, fmt.Errorf("fts search failed: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var m searcher.MatchDoc
			if err := rows.Scan(&m.DocID, &m.Score); err != nil {
				return nil, fmt.Errorf("failed to scan result: %w", err)
			}
			matches = append(matches, m)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return &searcher.TopDocs{MatchDocs: matches, TotalHits: uint32(min(total, math.MaxUint32))}, nil
}

// scan feeds every match with its document to a collector.
func (s *Searcher) scan(ctx context.Context, c compiled, numWanted uint32, sort *searcher.SortSpec, distinct string) (*searcher.TopDocs, error) {
	selectSQL := fmt.Sprintf("SELECT num, %s AS score, body FROM docs WHERE %s", c.score.sql, c.pred.sql)
	args := append(append([]any{}, c.score.args...), c.pred.args...)
	rows, err := s.db.QueryContext(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("fts search failed: %w", err)
	}
	defer rows.Close()

	collector := searcher.NewCollector(numWanted, sort)
	docs := make(map[uint32]model.Document)
	if distinct != "" {
		collector.WithDistinct(func(m *searcher.MatchDoc) (string, bool) {
			return docs[m.DocID].DistinctKey(distinct)
		})
	}
	for rows.Next() {
		var m searcher.MatchDoc
		var body string
		if err := rows.Scan(&m.DocID, &m.Score, &body); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		var doc model.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document %d: %w", m.DocID, err)
		}
		docs[m.DocID] = doc
		m.Values = sort.FieldValues(doc)
		collector.Collect(m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return collector.TopDocs(), nil
}

// orderBy renders score and document-number rules. Field rules never reach
// here.
func orderBy(sort *searcher.SortSpec) string {
	if sort == nil || len(sort.Rules) == 0 {
		return "score DESC, num ASC"
	}
	parts := make([]string, 0, len(sort.Rules)+1)
	for _, r := range sort.Rules {
		switch {
		case r.Type == searcher.SortByScore && !r.Reverse:
			parts = append(parts, "score DESC")
		case r.Type == searcher.SortByScore:
			parts = append(parts, "score ASC")
		case r.Type == searcher.SortByDocID && !r.Reverse:
			parts = append(parts, "num ASC")
		case r.Type == searcher.SortByDocID:
			parts = append(parts, "num DESC")
		}
	}
	return strings.Join(append(parts, "num ASC"), ", ")
}

// FetchDoc returns the stored document with internal ID docID.
func (s *Searcher) FetchDoc(ctx context.Context, docID uint32) (model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.ErrSearcherClosed
	}

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM docs WHERE num = ?`, docID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, errors.NewDocumentNotFoundError("#" + strconv.FormatUint(uint64(docID), 10))
	}
	if err != nil {
		return nil, fmt.Errorf("fts fetch failed: %w", err)
	}
	var doc model.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %d: %w", docID, err)
	}
	return doc, nil
}

// DocMax bounds the document numbers in the database.
func (s *Searcher) DocMax() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docMax
}

// DocCount returns the number of stored documents.
func (s *Searcher) DocCount(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errors.ErrSearcherClosed
	}
	var n uint64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&n)
	return n, err
}

// Close closes the database. Later calls fail with ErrSearcherClosed.
func (s *Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
