// Package server exposes a completed tradeqc run as a read-only JSON API
// with Prometheus instrumentation. It serves the run summary, instrument
// listings and per-instrument enriched bars from the run's output
// directory.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "tradeqc/internal/errors"
	"tradeqc/internal/exporter"
)

// Server serves the artifacts of one completed run.
type Server struct {
	outDir   string
	logger   *slog.Logger
	metrics  *Metrics
	registry *prometheus.Registry

	mu       sync.Mutex
	artifact *exporter.RunArtifact
}

// New creates a server over the given run output directory. The run
// artifact is loaded lazily on first use so the server can start before
// a run has completed.
func New(outDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	registry := prometheus.NewRegistry()
	return &Server{
		outDir:   outDir,
		logger:   logger.With(slog.String("component", "server")),
		metrics:  NewMetrics(registry),
		registry: registry,
	}
}

// Routes returns the HTTP routes of the results API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", s.GetHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/summary", s.GetSummary)
		r.Get("/instruments", s.GetInstruments)
		r.Route("/instruments/{instrument}", func(r chi.Router) {
			r.Get("/bars", s.GetInstrumentBars)
		})
	})
	return r
}

// ListenAndServe runs the server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("results server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// GetHealth reports liveness.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// GetSummary serves the run summary with cleaning statistics.
func (s *Server) GetSummary(w http.ResponseWriter, r *http.Request) {
	artifact, apiErr := s.loadArtifact()
	if apiErr != nil {
		s.renderError(w, r, apiErr)
		return
	}
	render.JSON(w, r, artifact)
}

// GetInstruments serves the sorted instrument list of the loaded run.
func (s *Server) GetInstruments(w http.ResponseWriter, r *http.Request) {
	artifact, apiErr := s.loadArtifact()
	if apiErr != nil {
		s.renderError(w, r, apiErr)
		return
	}
	instruments := make([]string, 0, len(artifact.Instruments))
	for _, inst := range artifact.Instruments {
		instruments = append(instruments, inst.Instrument)
	}
	sort.Strings(instruments)
	render.JSON(w, r, instruments)
}

// GetInstrumentBars serves one instrument's enriched bars.
func (s *Server) GetInstrumentBars(w http.ResponseWriter, r *http.Request) {
	artifact, apiErr := s.loadArtifact()
	if apiErr != nil {
		s.renderError(w, r, apiErr)
		return
	}

	instrument := chi.URLParam(r, "instrument")
	if !knownInstrument(artifact, instrument) {
		s.renderError(w, r, apierrors.NotFound("unknown instrument "+instrument))
		return
	}

	bars, err := exporter.ReadInstrumentCSV(s.outDir, instrument)
	if err != nil {
		s.logger.Error("failed to read instrument bars",
			slog.String("instrument", instrument),
			slog.Any("error", err))
		s.renderError(w, r, apierrors.ErrInternal)
		return
	}
	render.JSON(w, r, bars)
}

// loadArtifact loads run_summary.json once and caches it, publishing the
// run gauges on first load.
func (s *Server) loadArtifact() (*exporter.RunArtifact, *apierrors.APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact != nil {
		return s.artifact, nil
	}
	artifact, err := exporter.ReadRunArtifact(s.outDir)
	if err != nil {
		s.logger.Warn("run artifact not available", slog.Any("error", err))
		return nil, apierrors.ErrRunNotLoaded
	}
	s.artifact = artifact
	s.metrics.RunTrades.Set(float64(artifact.Cleaning.Kept))
	s.metrics.RunBars.Set(float64(artifact.TotalBars))
	s.metrics.RunAnomalies.Set(float64(artifact.Anomalies))
	return artifact, nil
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError) {
	if err := render.Render(w, r, apiErr); err != nil {
		s.logger.Error("failed to render error response", slog.Any("error", err))
	}
}

func knownInstrument(artifact *exporter.RunArtifact, instrument string) bool {
	for _, inst := range artifact.Instruments {
		if inst.Instrument == instrument {
			return true
		}
	}
	return false
}
