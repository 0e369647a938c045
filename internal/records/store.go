// Package records persists the source-side state the derivation pipeline
// reads and writes back: image field bindings, per-record source
// references with their focal points, and the companion dimension
// attributes. Backed by SQLite so collections far larger than memory can
// be walked through a bounded cursor.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store manages record persistence backed by SQLite. Source image payloads
// live on the filesystem under the media root; the database only holds
// their keys and signatures.
type Store struct {
	db        *sql.DB
	path      string
	mediaRoot string
}

// Open initializes or connects to the record database and applies the
// schema.
func Open(dbPath, mediaRoot string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, mediaRoot: mediaRoot}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applySchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS field_bindings (
			name          TEXT PRIMARY KEY,
			auto_generate INTEGER NOT NULL DEFAULT 0,
			width_attr    TEXT NOT NULL DEFAULT 'width',
			height_attr   TEXT NOT NULL DEFAULT 'height',
			pipelines     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS image_records (
			field      TEXT NOT NULL REFERENCES field_bindings(name),
			record_id  TEXT NOT NULL,
			source_key TEXT NOT NULL DEFAULT '',
			signature  TEXT NOT NULL DEFAULT '',
			ppoi       TEXT NOT NULL DEFAULT '0.5x0.5',
			width      INTEGER NOT NULL DEFAULT 0,
			height     INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (field, record_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Bindings returns the field bindings matching the filter, ordered
// alphabetically by qualified name so runs are reproducible.
func (s *Store) Bindings(ctx context.Context, filter Filter) ([]FieldBinding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, auto_generate, width_attr, height_attr, pipelines
		 FROM field_bindings ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query field bindings: %w", err)
	}
	defer rows.Close()

	var bindings []FieldBinding
	for rows.Next() {
		var b FieldBinding
		var auto int
		var pipelines string
		if err := rows.Scan(&b.Name, &auto, &b.WidthAttr, &b.HeightAttr, &pipelines); err != nil {
			return nil, fmt.Errorf("scan field binding: %w", err)
		}
		b.AutoGenerate = auto != 0
		b.Pipelines = splitList(pipelines)
		if filter.allows(b) {
			bindings = append(bindings, b)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate field bindings: %w", err)
	}
	return bindings, nil
}

// UpsertBinding registers or updates a field binding.
func (s *Store) UpsertBinding(ctx context.Context, b FieldBinding) error {
	auto := 0
	if b.AutoGenerate {
		auto = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO field_bindings (name, auto_generate, width_attr, height_attr, pipelines)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			auto_generate = excluded.auto_generate,
			width_attr    = excluded.width_attr,
			height_attr   = excluded.height_attr,
			pipelines     = excluded.pipelines`,
		b.Name, auto, b.WidthAttr, b.HeightAttr, strings.Join(b.Pipelines, ","))
	if err != nil {
		return fmt.Errorf("upsert binding %s: %w", b.Name, err)
	}
	return nil
}

// UpsertRecord inserts or replaces one record row.
func (s *Store) UpsertRecord(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO image_records (field, record_id, source_key, signature, ppoi, width, height)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(field, record_id) DO UPDATE SET
			source_key = excluded.source_key,
			signature  = excluded.signature,
			ppoi       = excluded.ppoi,
			width      = excluded.width,
			height     = excluded.height`,
		r.Field, r.ID, r.SourceKey, r.Signature, r.PPOI, r.Width, r.Height)
	if err != nil {
		return fmt.Errorf("upsert record %s/%s: %w", r.Field, r.ID, err)
	}
	return nil
}

// GetRecord fetches one record row.
func (s *Store) GetRecord(ctx context.Context, field, id string) (Record, error) {
	var r Record
	err := s.db.QueryRowContext(ctx,
		`SELECT field, record_id, source_key, signature, ppoi, width, height
		 FROM image_records WHERE field = ? AND record_id = ?`,
		field, id).Scan(&r.Field, &r.ID, &r.SourceKey, &r.Signature, &r.PPOI, &r.Width, &r.Height)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("record %s/%s not found", field, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record %s/%s: %w", field, id, err)
	}
	return r, nil
}

// SaveDimensions persists the companion width/height attributes for one
// record. The update is a single statement, atomic from the caller's view.
func (s *Store) SaveDimensions(ctx context.Context, field, id string, width, height int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE image_records SET width = ?, height = ? WHERE field = ? AND record_id = ?`,
		width, height, field, id)
	if err != nil {
		return fmt.Errorf("save dimensions %s/%s: %w", field, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("save dimensions %s/%s: record not found", field, id)
	}
	return nil
}

// BlankField clears the source reference and dimensions of one record,
// leaving no broken reference behind.
func (s *Store) BlankField(ctx context.Context, field, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE image_records SET source_key = '', signature = '', width = 0, height = 0
		 WHERE field = ? AND record_id = ?`,
		field, id)
	if err != nil {
		return fmt.Errorf("blank field %s/%s: %w", field, id, err)
	}
	return nil
}

// ReadSource returns the current source payload and signature for a
// record. When the stored signature is empty a stat-derived marker is used
// so content changes still invalidate fingerprints.
func (s *Store) ReadSource(ctx context.Context, r Record) (data []byte, signature string, err error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	path := filepath.Join(s.mediaRoot, filepath.FromSlash(r.SourceKey))
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read source %s: %w", r.SourceKey, err)
	}
	signature = r.Signature
	if signature == "" {
		if info, statErr := os.Stat(path); statErr == nil {
			signature = fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size())
		}
	}
	return data, signature, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
