// Package server exposes the HTTP API: document intake, status, hybrid query
// and session teardown.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/docchat/config"
	"github.com/mohammad-safakhou/docchat/internal/chunk"
	"github.com/mohammad-safakhou/docchat/internal/embed"
	"github.com/mohammad-safakhou/docchat/internal/extract"
	"github.com/mohammad-safakhou/docchat/internal/search"
	"github.com/mohammad-safakhou/docchat/internal/session"
	"github.com/mohammad-safakhou/docchat/internal/telemetry"
)

// Server wires the pipeline components behind an echo instance.
type Server struct {
	e       *echo.Echo
	cfg     *config.Config
	manager *session.Manager
	logger  *log.Logger

	sweepCancel context.CancelFunc
}

// New builds the full dependency graph from cfg.
func New(cfg *config.Config) (*Server, error) {
	tok, err := chunk.NewTokenizer(cfg.Chunking.TokenizerName)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	provider, err := embed.NewProvider(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	embedSvc := embed.NewService(provider, cfg.Embedding.BatchSize, cfg.Embedding.MaxRetries,
		log.New(log.Writer(), "[EMBED] ", log.LstdFlags))

	var archiver session.Archiver = session.NopArchiver{}
	if cfg.Archive.Enabled {
		archiver, err = session.NewRedisArchiver(cfg.Archive.Addr, cfg.Archive.Password, cfg.Archive.DB, cfg.Session.TTL)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
	}

	metrics := telemetry.New(prometheus.DefaultRegisterer)
	manager := session.NewManager(
		session.Limits{
			MaxFileBytes:    cfg.Upload.MaxFileBytes,
			MaxSessionBytes: cfg.Upload.MaxSessionBytes,
			MaxSessionFiles: cfg.Upload.MaxSessionFiles,
		},
		cfg.Session.TTL,
		extract.New(cfg.Extract.MaxPages, cfg.Extract.MinPageChars),
		chunk.New(tok, cfg.Chunking.WindowTokens, cfg.Chunking.Overlap),
		embedSvc,
		archiver,
		metrics,
		log.New(log.Writer(), "[SESSION] ", log.LstdFlags),
	)
	engine := search.NewEngine(manager, embedSvc, cfg.Retrieval, metrics,
		log.New(log.Writer(), "[SEARCH] ", log.LstdFlags))

	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h := &SessionsHandler{Manager: manager, Engine: engine, MaxFileBytes: cfg.Upload.MaxFileBytes}
	h.Register(e.Group("/api"))

	return &Server{e: e, cfg: cfg, manager: manager, logger: logger}, nil
}

// Start runs the TTL sweeper and blocks serving HTTP on the configured
// address.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.sweepCancel = cancel
	s.manager.StartSweeper(ctx, s.cfg.Session.SweepInterval)
	s.logger.Printf("listening on %s", s.cfg.Server.Address)
	return s.e.Start(s.cfg.Server.Address)
}

// Shutdown stops the listener, the sweeper and every in-flight build.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sweepCancel != nil {
		s.sweepCancel()
	}
	err := s.e.Shutdown(ctx)
	s.manager.Close()
	return err
}
