package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/xerrors"

	"exercisetracker/storage"
	"exercisetracker/templates"
	"exercisetracker/tracker"
)

type server struct {
	registry   *tracker.Registry
	aggregator *tracker.Aggregator
	store      storage.Store
	logger     slog.Logger
	gatherer   prometheus.Gatherer
	metrics    *httpMetrics
}

func newServer(store storage.Store, logger slog.Logger, reg *prometheus.Registry, opts tracker.Options) *server {
	opts.Logger = logger
	opts.Metrics = tracker.NewMetrics(reg)
	registry := tracker.NewRegistry(store, opts)
	return &server{
		registry:   registry,
		aggregator: tracker.NewAggregator(registry, store, opts),
		store:      store,
		logger:     logger,
		gatherer:   reg,
		metrics:    newHTTPMetrics(reg),
	}
}

func (s *server) routes(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	if cfg.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
	}

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", s.handleCreateUser)
		r.Get("/", s.handleListUsers)
		r.Post("/{id}/exercises", s.handleRecordExercise)
		r.Get("/{id}/logs", s.handleQueryLog)
	})
	return r
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Root().Render(r.Context(), w); err != nil {
		s.logger.Warn(r.Context(), "render index", slog.Error(err))
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn(r.Context(), "health check failed", slog.Error(err))
		jsonError(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	jsonOK(w, map[string]string{"status": "ok"})
}

func (s *server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.registry.Register(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonOK(w, newUserResponse(user))
}

func (s *server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.registry.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, newUserResponse(u))
	}
	jsonOK(w, resp)
}

func (s *server) handleRecordExercise(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRecordExercise(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ex, err := s.aggregator.RecordExercise(r.Context(), chi.URLParam(r, "id"), tracker.ExerciseInput{
		Description:     req.Description,
		DurationMinutes: int(req.Duration),
		Date:            unixDate(req.Date),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonOK(w, exerciseResponse{
		UserID:          ex.UserID,
		Name:            ex.Name,
		Description:     ex.Description,
		DurationMinutes: ex.DurationMinutes,
		Date:            ex.Date,
	})
}

func (s *server) handleQueryLog(w http.ResponseWriter, r *http.Request) {
	view, err := s.aggregator.QueryLog(r.Context(), chi.URLParam(r, "id"), logQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonOK(w, newLogResponse(view))
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.Make(sloghuman.Sink(os.Stderr))
	if cfg.Verbose {
		logger = logger.Leveled(slog.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN, storage.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		Logger:          logger.Named("storage"),
	})
	if err != nil {
		return xerrors.Errorf("open store: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	srv := newServer(store, logger, reg, tracker.Options{})

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           srv.routes(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()
	logger.Info(ctx, "listening", slog.F("address", httpServer.Addr), slog.F("driver", cfg.DBDriver))

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return xerrors.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return xerrors.Errorf("shutdown: %w", err)
	}
	logger.Info(context.Background(), "server closed")
	return nil
}
