package records

import (
	"context"
	"database/sql"
	"fmt"
)

// Cursor is a pull-based iterator over the records of one field binding,
// ordered by record identity. It wraps a live result set, so at most one
// row is materialized at a time regardless of collection size. Not
// restartable; callers must Close it even on early termination.
type Cursor struct {
	rows *sql.Rows
	cur  Record
	err  error
}

// Records opens a cursor over every record bound to the field.
func (s *Store) Records(ctx context.Context, field string) (*Cursor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field, record_id, source_key, signature, ppoi, width, height
		 FROM image_records WHERE field = ? ORDER BY record_id ASC`, field)
	if err != nil {
		return nil, fmt.Errorf("query records for %s: %w", field, err)
	}
	return &Cursor{rows: rows}, nil
}

// Next advances to the next record, returning false at the end of the set
// or on error.
func (c *Cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	var r Record
	if err := c.rows.Scan(&r.Field, &r.ID, &r.SourceKey, &r.Signature, &r.PPOI, &r.Width, &r.Height); err != nil {
		c.err = fmt.Errorf("scan record: %w", err)
		return false
	}
	c.cur = r
	return true
}

// Record returns the row the cursor is positioned on.
func (c *Cursor) Record() Record { return c.cur }

// Err reports any error encountered while iterating.
func (c *Cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

// Close releases the underlying result set.
func (c *Cursor) Close() error { return c.rows.Close() }
