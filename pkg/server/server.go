// Package server exposes the chat workspace and live conversations over HTTP
// for local browser shells.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-studio/internal/metrics"
	"github.com/vango-go/vai-studio/pkg/config"
	"github.com/vango-go/vai-studio/pkg/core/chat"
	"github.com/vango-go/vai-studio/pkg/core/live"
)

// Deps are the components served by the HTTP surface.
type Deps struct {
	Store *chat.Store
	Turns *chat.TurnController

	// Live is optional. Without it /v1/live answers 404.
	Live live.Connector

	// Metrics is optional. Without it /metrics answers 404.
	Metrics *metrics.Metrics
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	store    *chat.Store
	turns    *chat.TurnController
	live     live.Connector
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	// closing is cancelled on shutdown to end hijacked live connections.
	closing context.Context
	stop    context.CancelFunc
	liveWG  sync.WaitGroup
}

func New(cfg config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	closing, stop := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		mux:     http.NewServeMux(),
		store:   deps.Store,
		turns:   deps.Turns,
		live:    deps.Live,
		metrics: deps.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     sameHostOrigin,
		},
		closing: closing,
		stop:    stop,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("GET /healthz", healthHandler{})
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("GET /v1/chats", s.handleListChats)
	s.mux.HandleFunc("POST /v1/chats", s.handleCreateChat)
	s.mux.HandleFunc("GET /v1/chats/{id}", s.handleGetChat)
	s.mux.HandleFunc("PATCH /v1/chats/{id}", s.handleUpdateChat)
	s.mux.HandleFunc("DELETE /v1/chats/{id}", s.handleDeleteChat)
	s.mux.HandleFunc("GET /v1/search", s.handleSearch)
	s.mux.HandleFunc("POST /v1/chats/{id}/turns", s.handleTurn)
	s.mux.HandleFunc("POST /v1/chats/{id}/messages/{index}/edit", s.handleEdit)
	s.mux.HandleFunc("POST /v1/explore", s.handleExplore)
	s.mux.HandleFunc("POST /v1/credential", s.handleSelectCredential)

	s.mux.HandleFunc("GET /v1/live", s.handleLive)

	s.mux.Handle("/", notFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = recoverPanics(s.logger, h)
	h = accessLog(s.logger, s.metrics, h)
	h = requestID(h)
	return h
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for the configured grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.stop()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down", "grace_period", s.cfg.ShutdownGracePeriod)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGracePeriod)
	defer cancel()

	s.stop()
	err := srv.Shutdown(shutdownCtx)
	s.liveWG.Wait()
	if errors.Is(err, context.DeadlineExceeded) {
		_ = srv.Close()
	}
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return err
}

type healthHandler struct{}

func (healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type notFoundHandler struct{}

func (notFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, notFound("not found"))
}
