package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pricespy/internal/config"
	"github.com/sells-group/pricespy/internal/export"
	"github.com/sells-group/pricespy/internal/model"
	"github.com/sells-group/pricespy/internal/monitoring"
	"github.com/sells-group/pricespy/internal/pipeline"
)

const statusIdle model.RunStatus = "idle"

// apiServer is the HTTP control surface over a single-run Coordinator.
type apiServer struct {
	ctx   context.Context
	cfg   *config.Config
	coord *pipeline.Coordinator
	rec   runRecorder

	// metrics is nil when run history is disabled.
	metrics *monitoring.Collector

	limiter *rate.Limiter
	wg      sync.WaitGroup
}

func newAPIServer(ctx context.Context, c *config.Config, coord *pipeline.Coordinator, rec runRecorder) *apiServer {
	rps := c.Server.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	s := &apiServer{
		ctx:     ctx,
		cfg:     c,
		coord:   coord,
		rec:     rec,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
	if rec.st != nil {
		s.metrics = monitoring.NewCollector(rec.st)
	}
	return s
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.limiter))
		r.Post("/start", s.handleStart)
		r.Get("/status", s.handleStatus)
		r.Get("/download/{filename}", s.handleDownload)
		r.Get("/metrics", s.handleMetrics)
	})
	return r
}

// wait blocks until every run started by this server has been recorded.
func (s *apiServer) wait() {
	s.wg.Wait()
}

type startRequest struct {
	NumPages     *int   `json:"num_pages"`
	OutputFormat string `json:"output_format"`
}

func (s *apiServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pages := 1
	if req.NumPages != nil {
		pages = *req.NumPages
	}
	if req.OutputFormat == "" {
		req.OutputFormat = string(export.FormatCSV)
	}
	format, err := export.ParseFormat(req.OutputFormat)
	if err != nil {
		writeError(w, http.StatusBadRequest, "output_format must be csv or excel")
		return
	}

	// Runs are not tied to the request or to server shutdown; serve waits
	// for them to finish.
	h, err := s.coord.Start(context.WithoutCancel(s.ctx), runOptions(s.cfg, pages), s.finisher(format))
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		writeError(w, http.StatusBadRequest, "Scraping already in progress")
		return
	case errors.Is(err, pipeline.ErrInvalidPageCount):
		writeError(w, http.StatusBadRequest, "Number of pages must be between 1 and 50")
		return
	case err != nil:
		zap.L().Error("api: start run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	s.track(h, pages, format)

	zap.L().Info("api: run started",
		zap.String("run_id", h.ID()),
		zap.Int("pages", pages),
		zap.String("format", string(format)),
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "started",
		"run_id": h.ID(),
	})
}

// track records the run's history once it finishes.
func (s *apiServer) track(h *pipeline.Handle, pages int, format export.Format) {
	ctx := context.WithoutCancel(s.ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.rec.start(ctx, h.ID(), pages, string(format))
		res, err := h.Wait()
		file := h.Snapshot().ResultFile
		if file != "" {
			file = filepath.Join(s.cfg.Export.Dir, file)
		}
		s.rec.finish(ctx, h.ID(), res, file, err)
	}()
}

// finisher exports a finished run into the export directory and returns
// the bare file name, which is what the download endpoint accepts.
func (s *apiServer) finisher(format export.Format) pipeline.FinishFunc {
	return func(_ context.Context, _ string, res *pipeline.Result) (string, error) {
		name := export.ResultFileName(format, time.Now())
		out := export.Write(filepath.Join(s.cfg.Export.Dir, name), format, res.Dataset)
		if !out.OK {
			return "", out.Err
		}
		return name, nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	h := s.coord.Current()
	if h == nil {
		writeJSON(w, http.StatusOK, pipeline.Snapshot{
			Status: statusIdle,
			Logs:   []string{},
		})
		return
	}
	writeJSON(w, http.StatusOK, h.Snapshot())
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}

	lookback := s.cfg.Monitoring.LookbackWindowHours
	if v := r.URL.Query().Get("hours"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h < 0 {
			writeError(w, http.StatusBadRequest, "hours must be a non-negative integer")
			return
		}
		lookback = h
	}

	snap, err := s.metrics.Collect(r.Context(), lookback)
	if err != nil {
		zap.L().Error("api: collect metrics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect metrics")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if !safeFileName(name) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	path := filepath.Join(s.cfg.Export.Dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

// safeFileName accepts a bare file name with no directory components.
func safeFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}

// rateLimit rejects requests beyond the limiter's budget with 429.
func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
