package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/duetapp/duet/internal/common"
	"github.com/duetapp/duet/internal/dbx"
)

// Record is one offline-mirrored row, keyed by the remote row's own id.
// Data holds the row verbatim as JSON; a Put replaces the whole record.
type Record struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Collection is a repository over one named collection table.
type Collection struct {
	db    dbx.DBTX
	table string
}

// Collection returns a repository for the named collection, or
// common.ErrUnknownCollection for a name outside the closed set.
func (s *Store) Collection(name string) (*Collection, error) {
	return NewCollection(s.db, name)
}

// NewCollection binds a Collection to the given DBTX. The name doubles as
// the table name, so it is checked against the closed set before it gets
// anywhere near a query.
func NewCollection(db dbx.DBTX, name string) (*Collection, error) {
	known := false
	for _, c := range Collections {
		if c == name {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownCollection, name)
	}
	return &Collection{db: db, table: name}, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.table
}

// Put upserts a record by id. The stored entry is replaced wholesale; there
// is no partial merge. A zero UpdatedAt is stamped with the current time.
func (c *Collection) Put(ctx context.Context, r Record) error {
	if r.ID == "" {
		return fmt.Errorf("record id must not be empty")
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, data, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data,
				updated_at = excluded.updated_at
	`, c.table)
	_, err := c.db.ExecContext(ctx, query, r.ID, string(r.Data), r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

// Get returns a single record or common.ErrorNotFound.
func (c *Collection) Get(ctx context.Context, id string) (*Record, error) {
	query := fmt.Sprintf(`SELECT id, data, updated_at FROM %s WHERE id = ?`, c.table)
	row := c.db.QueryRowContext(ctx, query, id)

	var r Record
	var data string
	if err := row.Scan(&r.ID, &data, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	r.Data = json.RawMessage(data)
	return &r, nil
}

// GetAll lists every record. Notes come back newest-first by updated_at
// (that is what the index is for); other collections are ordered by id.
func (c *Collection) GetAll(ctx context.Context) ([]Record, error) {
	order := "id"
	if c.table == CollectionNotes {
		order = "updated_at DESC"
	}
	query := fmt.Sprintf(`SELECT id, data, updated_at FROM %s ORDER BY %s`, c.table, order)
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var r Record
		var data string
		if err := rows.Scan(&r.ID, &data, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Data = json.RawMessage(data)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a record. It expects exactly one row to be affected.
func (c *Collection) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.table)
	res, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}
