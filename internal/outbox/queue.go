package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/duetapp/duet/internal/common"
	"github.com/duetapp/duet/internal/dbx"
	"github.com/duetapp/duet/internal/logging"
)

// RemoteCreator is the remote-store surface the queue replays against.
type RemoteCreator interface {
	CreateNote(ctx context.Context, payload json.RawMessage) error
	CreateBucketItem(ctx context.Context, payload json.RawMessage) error
	CreateEvent(ctx context.Context, payload json.RawMessage) error
}

// SyncRegistrar registers a background-sync trigger tag. Implementations
// report common.ErrSyncUnsupported when the platform has no background sync;
// the queue treats that as fine.
type SyncRegistrar interface {
	Register(ctx context.Context, tag string) error
}

// OnlineProbe reports whether the remote store is currently reachable.
type OnlineProbe func(ctx context.Context) bool

// Queue is the durable outbox. It exclusively owns the outbox_entries
// table; everything else goes through Enqueue/ListPending/Remove/Flush.
type Queue struct {
	db        dbx.DBTX
	remote    RemoteCreator
	registrar SyncRegistrar
	online    OnlineProbe
	schemas   *schemaSet
	log       logging.Logger
}

func NewQueue(db dbx.DBTX, remote RemoteCreator, registrar SyncRegistrar, online OnlineProbe, log logging.Logger) (*Queue, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("failed to load outbox schemas: %w", err)
	}
	return &Queue{
		db:        db,
		remote:    remote,
		registrar: registrar,
		online:    online,
		schemas:   schemas,
		log:       log.With("component", "outbox"),
	}, nil
}

// Enqueue validates payload against the kind's schema, persists a new entry
// and best-effort registers the outbox-sync trigger. The returned entry id
// is locally generated and unique.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, payload json.RawMessage) (string, error) {
	if err := q.schemas.validate(kind, payload); err != nil {
		return "", err
	}

	e := Entry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	query := `INSERT INTO outbox_entries (id, kind, payload, created_at) VALUES (?, ?, ?, ?)`
	if _, err := q.db.ExecContext(ctx, query, e.ID, string(e.Kind), string(e.Payload), e.CreatedAt); err != nil {
		return "", fmt.Errorf("failed to insert outbox entry: %w", err)
	}
	entriesEnqueuedTotal.WithLabelValues(string(kind)).Inc()

	if q.registrar != nil {
		if err := q.registrar.Register(ctx, SyncTag); err != nil && !errors.Is(err, common.ErrSyncUnsupported) {
			q.log.Warn(ctx, "sync trigger registration failed", "tag", SyncTag, "error", err)
		}
	}

	return e.ID, nil
}

// ListPending returns every queued entry ordered by creation, oldest first.
// The id tie-break keeps the order stable when timestamps collide.
func (q *Queue) ListPending(ctx context.Context) ([]Entry, error) {
	query := `SELECT id, kind, payload, created_at FROM outbox_entries ORDER BY created_at, id`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select outbox entries: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		var kind, payload string
		if err := rows.Scan(&e.ID, &kind, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.Payload = json.RawMessage(payload)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Remove deletes one entry. Replay uses it after an acknowledged create;
// it is also the manual escape hatch for an entry the remote store will
// never accept.
func (q *Queue) Remove(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM outbox_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove outbox entry: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("%w: outbox entry %s", common.ErrorNotFound, id)
	}
	return nil
}

// Flush replays pending entries in order. It is a no-op while offline.
// Each remote call is awaited before the next entry starts; on the first
// failure the pass stops entirely so relative ordering survives across
// mutation kinds. Remaining entries stay queued for the next trigger.
func (q *Queue) Flush(ctx context.Context) error {
	if q.online != nil && !q.online(ctx) {
		q.log.Debug(ctx, "flush skipped: offline")
		return nil
	}

	entries, err := q.ListPending(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := q.replay(ctx, e); err != nil {
			flushAbortsTotal.Inc()
			q.log.Warn(ctx, "flush aborted", "entry", e.ID, "kind", e.Kind, "error", err)
			return fmt.Errorf("replay of entry %s failed: %w", e.ID, err)
		}
		if err := q.Remove(ctx, e.ID); err != nil {
			return err
		}
		entriesReplayedTotal.WithLabelValues(string(e.Kind)).Inc()
	}
	return nil
}

func (q *Queue) replay(ctx context.Context, e Entry) error {
	switch e.Kind {
	case KindNote:
		return q.remote.CreateNote(ctx, e.Payload)
	case KindBucketItem:
		return q.remote.CreateBucketItem(ctx, e.Payload)
	case KindEvent:
		return q.remote.CreateEvent(ctx, e.Payload)
	default:
		return fmt.Errorf("%w: %q", common.ErrUnknownKind, e.Kind)
	}
}
