// ABOUTME: Gateway orchestrator wiring store, services, channel, and HTTP server
// ABOUTME: Manages startup, route registration, health endpoints, and shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/2389/amity-gateway/internal/auth"
	"github.com/2389/amity-gateway/internal/config"
	"github.com/2389/amity-gateway/internal/dedupe"
	"github.com/2389/amity-gateway/internal/friendship"
	"github.com/2389/amity-gateway/internal/messaging"
	"github.com/2389/amity-gateway/internal/registry"
	"github.com/2389/amity-gateway/internal/store"
)

// Gateway orchestrates the amity-gateway server: one HTTP server carrying
// the live channel, the fallback API, and the health endpoints.
type Gateway struct {
	config      *config.Config
	store       store.Store
	registry    *registry.Registry
	friendships *friendship.Service
	messaging   *messaging.Service
	notifier    *Notifier
	ops         *Ops
	channel     *ChannelServer
	dedupe      *dedupe.Cache
	httpServer  *http.Server
	logger      *slog.Logger
}

// initStore creates a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("AMITY_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	reg := registry.NewRegistry(logger.With("component", "registry"))
	notifier := NewNotifier(reg, logger)

	friendships := friendship.New(s, s, logger)
	messages := messaging.New(s, s, logger)
	ops := NewOps(friendships, messages, notifier)

	// Retried channel requests within the TTL ack as already processed
	// instead of applying the mutation twice
	dedupeCache := dedupe.New(5*time.Minute, 100_000)

	gw := &Gateway{
		config:      cfg,
		store:       s,
		registry:    reg,
		friendships: friendships,
		messaging:   messages,
		notifier:    notifier,
		ops:         ops,
		dedupe:      dedupeCache,
		logger:      logger.With("component", "gateway"),
	}

	gw.channel = NewChannelServer(verifier, s, reg, ops, dedupeCache, cfg.Channel, logger)

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	// Live channel - auth happens in-band on the first frame
	mux.Handle("/channel", gw.channel)

	// Fallback API - bearer token required
	authMiddleware := auth.HTTPAuthMiddleware(s, verifier)
	route := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, authMiddleware(handler))
	}

	route("POST /api/friendships", gw.handleFriendshipRequest)
	route("POST /api/friendships/{id}/{action}", gw.handleFriendshipAction)
	route("GET /api/contacts", gw.handleContacts)
	route("GET /api/friends", gw.handleFriends)
	route("POST /api/messages", gw.handleMessages)
	route("GET /api/messages/unread", gw.handleUnread)
	route("/api/messages/{id}", gw.handleMessageByID)
	route("POST /api/messages/{id}/read", gw.handleMarkRead)
	route("GET /api/conversations/{userId}", gw.handleConversation)
	route("POST /api/conversations/{userId}/read", gw.handleConversationRead)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases resources. Live channels are
// torn down by the server shutdown; clients reconnect and re-register.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway", "online_users", g.registry.Count())

	err := g.httpServer.Shutdown(ctx)

	g.dedupe.Close()
	if closeErr := g.store.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}

// Handler exposes the HTTP handler for tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the database is reachable.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := g.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d online)", g.registry.Count())
}
