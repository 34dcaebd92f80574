package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// subscriptionStore mimics the remote side's upsert-by-endpoint semantics.
type subscriptionStore struct {
	mu   sync.Mutex
	rows map[string]Subscription
}

func newSubscriptionServer(t *testing.T) (*httptest.Server, *subscriptionStore) {
	t.Helper()
	store := &subscriptionStore{rows: make(map[string]Subscription)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rest/v1/push_subscriptions", func(w http.ResponseWriter, r *http.Request) {
		var sub Subscription
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		store.mu.Lock()
		store.rows[sub.Endpoint] = sub
		store.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestCreateNote_PostsPayloadWithBearer(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rest/v1/notes", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "session-token")
	err := c.CreateNote(context.Background(), json.RawMessage(`{"content":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "Bearer session-token", gotAuth)
	assert.JSONEq(t, `{"content":"hi"}`, gotBody)
}

func TestCreate_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "row violates policy", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "")
	err := c.CreateEvent(context.Background(), json.RawMessage(`{"title":"x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestUpsertPushSubscription_Idempotent(t *testing.T) {
	srv, store := newSubscriptionServer(t)
	c := New(srv.URL, "tok")
	ctx := context.Background()

	first := Subscription{Endpoint: "https://push/ep1", P256dh: "keyA", Auth: "authA", UA: "worker"}
	require.NoError(t, c.UpsertPushSubscription(ctx, first))

	second := Subscription{Endpoint: "https://push/ep1", P256dh: "keyB", Auth: "authB", UA: "worker"}
	require.NoError(t, c.UpsertPushSubscription(ctx, second))

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.rows, 1, "same endpoint must collapse to one row")
	assert.Equal(t, "keyB", store.rows["https://push/ep1"].P256dh)
	assert.Equal(t, "authB", store.rows["https://push/ep1"].Auth)
}

func TestPing(t *testing.T) {
	srv, _ := newSubscriptionServer(t)

	c := New(srv.URL, "")
	require.NoError(t, c.Ping(context.Background()))

	srv.Close()
	require.Error(t, c.Ping(context.Background()))
}
