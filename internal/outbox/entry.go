// Package outbox implements the durable FIFO queue of mutations recorded
// while the client cannot reach the remote store. Entries are replayed
// strictly in insertion order; the first replay failure defers the whole
// remainder of the queue to the next flush trigger.
package outbox

import (
	"encoding/json"
	"time"
)

// Kind identifies which remote create operation an entry replays. The set
// is closed; Enqueue rejects anything else.
type Kind string

const (
	KindNote       Kind = "note"
	KindBucketItem Kind = "bucket_item"
	KindEvent      Kind = "event"
)

// SyncTag is the background-sync trigger tag registered on enqueue so the
// platform can wake the worker after the enqueuing client is gone.
const SyncTag = "outbox-sync"

// Entry is one pending mutation. Entries are immutable once created and
// exist until their replay is acknowledged, at which point they are removed.
// CreatedAt is used only for ordering, never for conflict resolution.
type Entry struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}
