package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/BrandonDHaskell/tapbox/internal/metrics"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/mgmt"
)

// Engine is the command side of the device engine.
type Engine interface {
	Submit(ctx context.Context, cmd mgmt.Command) (mgmt.Result, error)
	Snapshot() mgmt.Snapshot
}

type Dependencies struct {
	Logger   *slog.Logger
	Addr     string
	Engine   Engine
	Gatherer prometheus.Gatherer
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	engine     Engine
}

func NewServer(d Dependencies) *Server {
	s := &Server{
		logger: d.Logger,
		engine: d.Engine,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(loggingMiddleware(d.Logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	r.Get("/config", s.handleReadConfig)
	r.Post("/config", s.handleWriteConfig)
	r.Get("/lastuid", s.handleLastTag)

	r.Get("/cards", s.handleListCards)
	r.Post("/cards/add", s.handleAddCard)
	r.Post("/cards/delete", s.handleDeleteCard)
	r.Delete("/cards/{uid}", s.handleDeleteCard)

	r.Get("/cards.txt", s.handleReadCardStore)
	r.Post("/card", s.handleWriteCardStore)
	r.Post("/card/upload", s.handleUploadCardStore)

	r.Get("/activities", s.handleReadActivity)
	r.Post("/activities/delete", s.handleClearActivity)
	r.Get("/activities/delete", s.handleClearActivity)

	r.Get("/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
