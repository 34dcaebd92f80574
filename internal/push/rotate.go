package push

import (
	"context"
	"fmt"

	"github.com/duetapp/duet/internal/logging"
	"github.com/duetapp/duet/internal/message"
	"github.com/duetapp/duet/internal/remote"
)

// SubscribeTransport obtains a fresh endpoint from the push service for a
// new set of subscription keys.
type SubscribeTransport interface {
	Subscribe(ctx context.Context, appServerKey []byte, p256dh, auth string) (endpoint string, err error)
}

// SubscriptionStore persists the subscription row remotely, upserting by
// endpoint.
type SubscriptionStore interface {
	UpsertPushSubscription(ctx context.Context, sub remote.Subscription) error
}

// Rotator re-establishes a subscription the platform invalidated. A
// renewal failure is reported to the foreground, not retried; the user must
// re-enable notifications explicitly.
type Rotator struct {
	transport SubscribeTransport
	store     SubscriptionStore
	hub       Broadcaster
	ua        string
	log       logging.Logger
}

func NewRotator(transport SubscribeTransport, store SubscriptionStore, hub Broadcaster, ua string, log logging.Logger) *Rotator {
	return &Rotator{
		transport: transport,
		store:     store,
		hub:       hub,
		ua:        ua,
		log:       log.With("component", "push"),
	}
}

// Rotate re-subscribes with the application server key recorded on the old
// subscription, pushes the renewed credential to the remote store, and
// tells foreground clients how it went.
func (r *Rotator) Rotate(ctx context.Context, appServerKey []byte) (*Keys, error) {
	keys, sub, err := r.rotate(ctx, appServerKey)
	ok := err == nil
	r.hub.Broadcast(ctx, message.Message{Type: message.TypeSubscriptionRenewed, OK: &ok})
	if err != nil {
		r.log.Warn(ctx, "subscription renewal failed", "error", err)
		return nil, err
	}
	r.log.Info(ctx, "subscription renewed", "endpoint", sub.Endpoint)
	return keys, nil
}

func (r *Rotator) rotate(ctx context.Context, appServerKey []byte) (*Keys, remote.Subscription, error) {
	keys, err := GenerateKeys()
	if err != nil {
		return nil, remote.Subscription{}, err
	}

	endpoint, err := r.transport.Subscribe(ctx, appServerKey, keys.P256dh(), keys.AuthSecret())
	if err != nil {
		return nil, remote.Subscription{}, fmt.Errorf("re-subscribe failed: %w", err)
	}

	sub := remote.Subscription{
		Endpoint: endpoint,
		P256dh:   keys.P256dh(),
		Auth:     keys.AuthSecret(),
		UA:       r.ua,
	}
	if err := r.store.UpsertPushSubscription(ctx, sub); err != nil {
		return nil, remote.Subscription{}, fmt.Errorf("failed to store renewed subscription: %w", err)
	}
	return keys, sub, nil
}
