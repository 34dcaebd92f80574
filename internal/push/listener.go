package push

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"nhooyr.io/websocket"

	"github.com/duetapp/duet/internal/logging"
)

// envelope is what the push relay delivers over the websocket: either a
// push event carrying a (possibly encrypted) payload, or an expiration
// signal for the current subscription.
type envelope struct {
	Type      string `json:"type"` // "push" or "expired"
	Body      string `json:"body,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
}

// Listener keeps a connection to the push relay open and feeds events into
// the presenter and the rotator. It is the worker's stand-in for the
// platform waking a service worker on push.
type Listener struct {
	relayURL     string
	appServerKey []byte
	presenter    Presenter
	rotator      *Rotator
	log          logging.Logger

	mu   sync.Mutex
	keys *Keys
}

func NewListener(relayURL string, appServerKey []byte, keys *Keys, presenter Presenter, rotator *Rotator, log logging.Logger) *Listener {
	return &Listener{
		relayURL:     relayURL,
		appServerKey: appServerKey,
		keys:         keys,
		presenter:    presenter,
		rotator:      rotator,
		log:          log.With("component", "push-listener"),
	}
}

// Run connects and reads until ctx ends, reconnecting with capped
// exponential backoff after connection loss.
func (l *Listener) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // retry until ctx is done

	op := func() error {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			l.log.Warn(ctx, "relay connection lost", "error", err)
			return err
		}
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (l *Listener) listen(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, l.relayURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	l.log.Info(ctx, "connected to push relay", "url", l.relayURL)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		l.handle(ctx, data)
	}
}

func (l *Listener) handle(ctx context.Context, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// Not an envelope; treat it as a bare push body.
		Show(ctx, l.presenter, data, l.log)
		return
	}

	switch env.Type {
	case "push":
		body, err := base64.StdEncoding.DecodeString(env.Body)
		if err != nil {
			body = []byte(env.Body)
		}
		if env.Encrypted {
			body = l.open(ctx, body)
		}
		Show(ctx, l.presenter, body, l.log)
	case "expired":
		keys, err := l.rotator.Rotate(ctx, l.appServerKey)
		if err == nil {
			l.mu.Lock()
			l.keys = keys
			l.mu.Unlock()
		}
	default:
		l.log.Debug(ctx, "ignoring relay frame", "type", env.Type)
	}
}

// open decrypts an encrypted push body, degrading to a generic payload
// when the keys are missing or the ciphertext does not open.
func (l *Listener) open(ctx context.Context, body []byte) []byte {
	l.mu.Lock()
	keys := l.keys
	l.mu.Unlock()

	if keys == nil {
		l.log.Warn(ctx, "encrypted push without subscription keys")
		return []byte("You have a new notification")
	}
	plaintext, err := keys.Decrypt(body)
	if err != nil {
		l.log.Warn(ctx, "failed to decrypt push payload", "error", err)
		return []byte("You have a new notification")
	}
	return plaintext
}
