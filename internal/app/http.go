package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/duetapp/duet/internal/common"
	"github.com/duetapp/duet/internal/outbox"
	"github.com/duetapp/duet/internal/router"
)

// handler assembles the worker's HTTP surface: the websocket hub, metrics,
// the outbox API, and a caching reverse proxy in front of the application
// origin for everything else.
func (app *App) handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/ws", app.hub)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /outbox/entries", app.handleEnqueue)
	mux.HandleFunc("GET /outbox/entries", app.handleListPending)
	mux.HandleFunc("DELETE /outbox/entries/{id}", app.handleRemove)
	mux.HandleFunc("POST /outbox/flush", app.handleFlush)

	if proxy := app.proxy(); proxy != nil {
		mux.Handle("/", proxy)
	}

	return mux
}

// proxy fronts the application origin with the strategy-dispatching
// transport, so anything fetched through the worker gets cached per its
// request class.
func (app *App) proxy() http.Handler {
	origin, err := url.Parse(app.config.AppOrigin)
	if err != nil {
		return nil
	}
	p := httputil.NewSingleHostReverseProxy(origin)
	p.Transport = router.NewTransport(app.router, app.cache, http.DefaultTransport)
	return p
}

type enqueueRequest struct {
	Kind    outbox.Kind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (app *App) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	id, err := app.queue.Enqueue(r.Context(), req.Kind, req.Payload)
	if err != nil {
		if errors.Is(err, common.ErrUnknownKind) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Schema violations are client errors too; everything else is ours.
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (app *App) handleListPending(w http.ResponseWriter, r *http.Request) {
	entries, err := app.queue.ListPending(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []outbox.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (app *App) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := app.queue.Remove(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := app.queue.Flush(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
