package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DeafMist/doc-enricher/internal/bootstrap"
	"github.com/DeafMist/doc-enricher/internal/config"
	"github.com/DeafMist/doc-enricher/internal/enrich"
	"github.com/DeafMist/doc-enricher/internal/logger"
	"github.com/DeafMist/doc-enricher/internal/metrics"
	"github.com/DeafMist/doc-enricher/internal/models"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	metrics.Register()

	stack := bootstrap.New(cfg.Common, log)
	actions, err := stack.Actions(config.ActionSummary, config.ActionClassify, config.ActionDescribe, config.ActionPrompt)
	if err != nil {
		log.Error("build actions", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{log: log, repo: stack.Repo, actions: actions}

	// An action may wait for a rendition and then for the model.
	writeTimeout := cfg.GenAITimeout + time.Duration(cfg.RenditionMaxAttempts)*cfg.RenditionRetryDelay + 30*time.Second
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type repository interface {
	GetNode(ctx context.Context, id string) (models.Document, error)
	Ping(ctx context.Context) error
}

type server struct {
	log     *slog.Logger
	repo    repository
	actions map[string]enrich.Action
}

type errorResponse struct {
	Error string `json:"error"`
}

type enrichResponse struct {
	Action     string `json:"action"`
	DocumentID string `json:"document_id"`
	Updated    bool   `json:"updated"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/actions/{action}/documents/{id}", s.handleEnrich)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	kind := strings.ToLower(chi.URLParam(r, "action"))
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	action, ok := s.actions[kind]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: models.ErrUnsupportedAction.Error() + ": " + kind})
		return
	}

	doc, err := s.repo.GetNode(r.Context(), id)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, models.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	updated, err := action.Execute(r.Context(), doc)
	if err != nil {
		s.log.Error("enrich document",
			slog.String("action", kind),
			slog.String("document_id", id),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("err", err),
		)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, enrichResponse{Action: kind, DocumentID: id, Updated: updated})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
