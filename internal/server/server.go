// Package server exposes the splitter over HTTP: a synchronous upload-and-
// download endpoint, asynchronous jobs backed by Redis, previews and the
// operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/sheetsplit/internal/config"
	"github.com/local/sheetsplit/internal/limiter"
	"github.com/local/sheetsplit/internal/metrics"
	"github.com/local/sheetsplit/internal/queue"
	"github.com/local/sheetsplit/internal/statuscheck"
	"github.com/local/sheetsplit/internal/storage"
	"github.com/local/sheetsplit/internal/store"
	"github.com/local/sheetsplit/internal/web"
)

type JobQueue interface {
	Enqueue(ctx context.Context, job queue.Job) error
	CancelJob(ctx context.Context, jobID string) error
}

type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// Dependencies wires the server. Jobs and Status may be nil, which disables
// the /jobs endpoints.
type Dependencies struct {
	Config  config.Config
	Jobs    JobQueue
	Status  StatusStore
	Inputs  storage.Store
	Results storage.Store
	Checker *statuscheck.Checker
}

type Server struct {
	deps Dependencies
	web  *web.Web
	sync *limiter.Limiter
}

func New(deps Dependencies) (*Server, error) {
	w, err := web.New()
	if err != nil {
		return nil, err
	}
	return &Server{deps: deps, web: w, sync: limiter.New(deps.Config.Server.MaxConcurrent)}, nil
}

func (s *Server) jobsEnabled() bool {
	return s.deps.Jobs != nil && s.deps.Status != nil && s.deps.Inputs != nil && s.deps.Results != nil
}

// Routes returns the service's handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /static/", s.web.Static())
	mux.HandleFunc("POST /split", s.handleSplit)
	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("GET /jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("GET /jobs/{id}/download", s.handleDownload)
	mux.HandleFunc("GET /jobs/{id}/preview/{page}", s.handlePreview)
	mux.HandleFunc("POST /jobs/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", metrics.Handler())
	return accessLog(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	cfg := s.deps.Config.Server
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Bool("jobs", s.jobsEnabled()).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			return
		}
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.code).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type errorResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, id msgID, args ...any) {
	writeJSON(w, code, errorResp{Error: localize(r, id, args...), Code: string(id)})
}
