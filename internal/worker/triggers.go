package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/duetapp/duet/internal/common"
	"github.com/duetapp/duet/internal/dbx"
)

// TagPagesSync drives route refresh; the outbox's own tag lives with the
// outbox package.
const TagPagesSync = "pages-sync"

// TriggerScheduler is the background-sync surface: register a tag now,
// service it later. Registration survives restarts, which is what lets a
// trigger registered by a dying client be serviced on the next run.
type TriggerScheduler interface {
	Register(ctx context.Context, tag string) error
	Pending(ctx context.Context) ([]string, error)
	Clear(ctx context.Context, tag string) error
}

// TriggerRegistry is the durable TriggerScheduler over the sync_triggers
// table. Registering an already-registered tag coalesces, matching the
// platform's one-shot sync semantics.
type TriggerRegistry struct {
	db dbx.DBTX
}

func NewTriggerRegistry(db dbx.DBTX) *TriggerRegistry {
	return &TriggerRegistry{db: db}
}

func (r *TriggerRegistry) Register(ctx context.Context, tag string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_triggers (tag, registered_at) VALUES (?, ?)
			ON CONFLICT(tag) DO NOTHING`,
		tag, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to register sync trigger: %w", err)
	}
	return nil
}

func (r *TriggerRegistry) Pending(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tag FROM sync_triggers ORDER BY registered_at, tag`)
	if err != nil {
		return nil, fmt.Errorf("failed to select sync triggers: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *TriggerRegistry) Clear(ctx context.Context, tag string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_triggers WHERE tag = ?`, tag); err != nil {
		return fmt.Errorf("failed to clear sync trigger: %w", err)
	}
	return nil
}

// NoSyncScheduler models a platform without background sync. Registration
// reports common.ErrSyncUnsupported so callers take their direct-message
// fallback.
type NoSyncScheduler struct{}

func (NoSyncScheduler) Register(ctx context.Context, tag string) error {
	return common.ErrSyncUnsupported
}

func (NoSyncScheduler) Pending(ctx context.Context) ([]string, error) { return nil, nil }

func (NoSyncScheduler) Clear(ctx context.Context, tag string) error { return nil }
