// Package app wires the worker's components together and runs them: the
// sqlite store, the caching reverse proxy, the websocket hub, the outbox,
// the connectivity watcher and the optional push listener.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/duetapp/duet/internal/cache"
	"github.com/duetapp/duet/internal/common"
	"github.com/duetapp/duet/internal/config"
	"github.com/duetapp/duet/internal/localstore"
	"github.com/duetapp/duet/internal/logging"
	"github.com/duetapp/duet/internal/outbox"
	"github.com/duetapp/duet/internal/push"
	"github.com/duetapp/duet/internal/remote"
	"github.com/duetapp/duet/internal/router"
	"github.com/duetapp/duet/internal/worker"
)

// Environment variables consumed at startup. The access token and the
// application server key are session material, not configuration, so they
// never live in the config file.
const (
	EnvAccessToken  = "DUET_ACCESS_TOKEN"
	EnvAppServerKey = "DUET_VAPID_PUBLIC_KEY"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    *localstore.Store
	cache    *cache.Manager
	router   *router.Router
	remote   *remote.Client
	hub      *worker.Hub
	orch     *worker.Orchestrator
	queue    *outbox.Queue
	watcher  *worker.Watcher
	listener *push.Listener
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	ctx := context.Background()

	token := os.Getenv(EnvAccessToken)
	if token != "" {
		if err := remote.CheckToken(token, time.Now()); err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				logger.Warn(ctx, "access token is expired; remote writes will fail until it is refreshed")
			} else {
				return nil, fmt.Errorf("invalid access token: %w", err)
			}
		}
	}

	store, err := localstore.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	rc := remote.New(cfg.RemoteBaseURL, token)
	cm := cache.NewManager(store.DB(), &http.Client{}, cfg.Version, cfg.NetworkFirstTimeout, logger)

	rt, err := router.New(cfg.AppOrigin)
	if err != nil {
		return nil, fmt.Errorf("invalid app origin: %w", err)
	}

	hub := worker.NewHub(logger)
	triggers := worker.NewTriggerRegistry(store.DB())
	orch := worker.NewOrchestrator(cm, store, hub, triggers, cfg.AppOrigin, nil, logger)
	hub.SetDispatcher(orch)

	watcher := worker.NewWatcher(rc, cfg.OnlineCheckInterval, nil, logger)
	queue, err := outbox.NewQueue(store.DB(), rc, triggers, watcher.Online, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init outbox: %w", err)
	}

	app := &App{
		config:  cfg,
		logger:  logger,
		store:   store,
		cache:   cm,
		router:  rt,
		remote:  rc,
		hub:     hub,
		orch:    orch,
		queue:   queue,
		watcher: watcher,
	}
	watcher.SetOnOnline(app.onOnline)

	if cfg.PushRelayURL != "" {
		listener, err := app.initPush(ctx, cfg, hub, rc, logger)
		if err != nil {
			return nil, err
		}
		app.listener = listener
	}

	return app, nil
}

// initPush establishes an initial subscription (best effort) and prepares
// the relay listener.
func (app *App) initPush(ctx context.Context, cfg *config.Config, hub *worker.Hub,
	rc *remote.Client, logger logging.Logger) (*push.Listener, error) {

	appServerKey, err := base64.RawURLEncoding.DecodeString(os.Getenv(EnvAppServerKey))
	if err != nil {
		return nil, fmt.Errorf("malformed %s: %w", EnvAppServerKey, err)
	}

	subscriber := &push.RelaySubscriber{BaseURL: relayHTTPBase(cfg.PushRelayURL)}
	ua := "duet-worker/" + cfg.Version
	rotator := push.NewRotator(subscriber, rc, hub, ua, logger)
	presenter := push.NewHubPresenter(hub)

	// The first subscription goes through the same path as a renewal. A
	// failure here is survivable; the listener starts without keys and
	// encrypted pushes degrade to a generic notification.
	keys, err := rotator.Rotate(ctx, appServerKey)
	if err != nil {
		logger.Warn(ctx, "initial push subscription failed", "error", err)
		keys = nil
	}

	return push.NewListener(cfg.PushRelayURL, appServerKey, keys, presenter, rotator, logger), nil
}

// onOnline flushes the daemon-hosted outbox and then runs the regular
// reconnect choreography.
func (app *App) onOnline(ctx context.Context) {
	if err := app.queue.Flush(ctx); err != nil {
		app.logger.Warn(ctx, "outbox flush failed", "error", err)
	}
	app.orch.OnOnline(ctx)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting worker", "version", app.config.Version, "addr", app.config.ListenAddr)

	app.initSignalHandler(cancelFunc)

	if err := app.orch.Install(ctx); err != nil {
		app.logger.Error(ctx, "install failed", "error", err)
		return
	}
	if err := app.orch.Activate(ctx); err != nil {
		app.logger.Warn(ctx, "activation incomplete", "error", err)
	}

	srv := &http.Server{
		Addr:    app.config.ListenAddr,
		Handler: app.handler(),
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "server failed", "error", err)
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.watcher.Run(ctx)
	}()

	if app.listener != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.listener.Run(ctx); err != nil {
				app.logger.Error(ctx, "push listener stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn(shutdownCtx, "shutdown incomplete", "error", err)
	}
	app.cache.Wait()

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Warn(context.Background(), "failed to close store", "error", err)
	}
	app.logger.Info(context.Background(), "worker stopped")
}

// relayHTTPBase maps the relay's websocket URL to its HTTP surface.
func relayHTTPBase(wsURL string) string {
	s := strings.TrimSuffix(wsURL, "/ws")
	if strings.HasPrefix(s, "wss://") {
		return "https://" + strings.TrimPrefix(s, "wss://")
	}
	if strings.HasPrefix(s, "ws://") {
		return "http://" + strings.TrimPrefix(s, "ws://")
	}
	return s
}
