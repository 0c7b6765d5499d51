// Package server wires the HTTP boundary: two JSON endpoints over the
// session store and the RAG service, with rate limiting, CORS and a single
// error translator.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/docusense/docchat/config"
	"github.com/docusense/docchat/internal/ingest"
	"github.com/docusense/docchat/internal/rag"
	"github.com/docusense/docchat/internal/session"
	"github.com/docusense/docchat/internal/session/inmemory"
	"github.com/docusense/docchat/internal/session/postgres"
	"github.com/docusense/docchat/internal/session/redisstore"
	"github.com/docusense/docchat/provider"
)

// Server holds the echo instance and its collaborators.
type Server struct {
	cfg    *config.Config
	echo   *echo.Echo
	store  session.Store
	logger *log.Logger
}

// New assembles the HTTP boundary around the given store and provider.
func New(cfg *config.Config, st session.Store, prov provider.Provider, logger *log.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{cfg: cfg, echo: e, store: st, logger: logger}
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.General.AllowedOrigin},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Uploads.MaxSizeMB)))
	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(float64(cfg.RateLimit.Requests) / cfg.RateLimit.Window.Seconds()),
			Burst:     cfg.RateLimit.Burst,
			ExpiresIn: cfg.RateLimit.Window,
		}),
	}))

	svc := &rag.Service{
		Provider:      prov,
		TopK:          cfg.Retrieval.TopK,
		HistoryTurns:  cfg.Retrieval.HistoryTurns,
		SummaryChunks: cfg.Retrieval.SummaryChunks,
	}
	ingester := &ingest.Ingester{
		Extractor: ingest.PDFExtractor{},
		MaxSize:   cfg.Uploads.MaxSizeBytes(),
		ChunkSize: cfg.Retrieval.ChunkSize,
		Overlap:   cfg.Retrieval.ChunkOverlap,
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	sh := &SummarizeHandler{
		Store:     st,
		Provider:  prov,
		RAG:       svc,
		Ingester:  ingester,
		UploadDir: cfg.Uploads.Dir,
		MaxSize:   cfg.Uploads.MaxSizeBytes(),
	}
	sh.Register(api)
	ch := &ChatHandler{Store: st, RAG: svc}
	ch.Register(api)

	return s
}

// Run builds concrete dependencies from cfg, starts the background sweeper
// and serves until interrupted.
func Run(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		return fmt.Errorf("creating upload dir: %w", err)
	}

	prov, err := provider.NewProvider(cfg.Providers)
	if err != nil {
		return err
	}
	st, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := New(cfg, st, prov, log.New(log.Writer(), "[HTTP] ", log.LstdFlags))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.RunSweeper(ctx, st, cfg.Sessions.SweepInterval,
		log.New(log.Writer(), "[SWEEP] ", log.LstdFlags),
		func(n int) { sessionsEvictedTotal.Add(float64(n)) })

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
		_ = srv.echo.Shutdown(context.Background())
	}()

	srv.logger.Printf("listening on %s", cfg.General.Listen)
	if err := srv.echo.Start(cfg.General.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newStore(cfg *config.Config) (session.Store, error) {
	logger := log.New(log.Writer(), "[SESSIONS] ", log.LstdFlags)
	switch cfg.Sessions.Store {
	case "inmemory":
		return inmemory.New(cfg.Sessions.TTL, logger), nil
	case "redis":
		r := cfg.Databases.Redis
		return redisstore.New(r.Addr(), r.Pass, r.DB, cfg.Sessions.TTL, logger)
	case "postgres":
		dsn, err := cfg.Databases.Postgres.DSN()
		if err != nil {
			return nil, err
		}
		return postgres.New(dsn, cfg.Sessions.TTL, logger)
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Sessions.Store)
	}
}
