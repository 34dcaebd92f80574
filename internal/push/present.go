package push

import (
	"context"
	"encoding/json"

	"github.com/duetapp/duet/internal/logging"
	"github.com/duetapp/duet/internal/message"
)

// Presenter displays a notification.
type Presenter interface {
	Present(ctx context.Context, n Notification) error
}

// Broadcaster is the slice of the worker hub the push side needs.
type Broadcaster interface {
	Broadcast(ctx context.Context, m message.Message)
}

// HubPresenter forwards notifications to foreground clients over the hub;
// the foreground owns the actual platform notification surface.
type HubPresenter struct {
	hub Broadcaster
}

func NewHubPresenter(hub Broadcaster) *HubPresenter {
	return &HubPresenter{hub: hub}
}

func (p *HubPresenter) Present(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	p.hub.Broadcast(ctx, message.Message{Type: message.TypeNotify, Notification: data})
	return nil
}

// Show decodes raw and presents the result. Failures are logged and
// absorbed: one push event yields at most one log line, never a panic or a
// propagated error.
func Show(ctx context.Context, p Presenter, raw []byte, log logging.Logger) {
	n := DecodePayload(raw)
	if err := p.Present(ctx, n); err != nil {
		log.Warn(ctx, "failed to present notification", "title", n.Title, "error", err)
	}
}
