package cache

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/duetapp/duet/internal/common"
)

// entry is a full-response snapshot. Writes replace the whole entry; there
// is no partial update of a cached response.
type entry struct {
	status int
	header http.Header
	body   []byte
}

// snapshot drains and closes resp.Body, returning a storable copy.
func snapshot(resp *http.Response) (*entry, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &entry{status: resp.StatusCode, header: resp.Header.Clone(), body: body}, nil
}

// response rebuilds an *http.Response the caller can consume.
func (e *entry) response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        http.StatusText(e.status),
		StatusCode:    e.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.body)),
		ContentLength: int64(len(e.body)),
		Request:       req,
	}
}

// cacheable is the write filter: only GET responses with status exactly 200
// are ever stored.
func cacheable(req *http.Request, e *entry) bool {
	return req.Method == http.MethodGet && e.status == http.StatusOK
}

func (m *Manager) store(ctx context.Context, partition, rawURL string, e *entry) error {
	header, err := json.Marshal(e.header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	query := `INSERT INTO cached_responses (partition, url, status, header, body, stored_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(partition, url) DO UPDATE SET status = excluded.status,
				header = excluded.header,
				body = excluded.body,
				stored_at = excluded.stored_at
	`
	_, err = m.db.ExecContext(ctx, query, partition, rawURL, e.status, string(header), e.body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store cached response: %w", err)
	}
	return nil
}

func (m *Manager) lookup(ctx context.Context, partition, rawURL string) (*entry, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT status, header, body FROM cached_responses WHERE partition = ? AND url = ?`,
		partition, rawURL)
	return scanEntry(row)
}

// lookupIgnoreQuery matches a cached URL disregarding the query string on
// both sides. Used only as the network-first fallback.
func (m *Manager) lookupIgnoreQuery(ctx context.Context, partition, rawURL string) (*entry, error) {
	stripped := stripQuery(rawURL)
	row := m.db.QueryRowContext(ctx,
		`SELECT status, header, body FROM cached_responses
			WHERE partition = ? AND (url = ? OR url LIKE ? || '?%')
			ORDER BY stored_at DESC LIMIT 1`,
		partition, stripped, stripped)
	return scanEntry(row)
}

func scanEntry(row *sql.Row) (*entry, error) {
	var e entry
	var header string
	if err := row.Scan(&e.status, &header, &e.body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrCacheMiss
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	if err := json.Unmarshal([]byte(header), &e.header); err != nil {
		return nil, fmt.Errorf("failed to unmarshal header: %w", err)
	}
	return &e, nil
}

func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
