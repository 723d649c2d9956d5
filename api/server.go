// Package api exposes the cutoff pipeline over HTTP as a small JSON service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"godfi/app"
	"godfi/domain/core"
	"godfi/domain/cutoff"
	"godfi/domain/model"
	"godfi/internal"
	apperrors "godfi/internal/errors"
	"godfi/ports"
)

// Runner abstracts the pipeline so handlers can be tested with a stub.
type Runner interface {
	Run(ctx context.Context, req app.Request) (*app.Result, error)
}

// Defaults are the server-side simulation settings applied when a request
// leaves them unset, sourced from the environment configuration.
type Defaults struct {
	Reps     int
	Parallel int
}

// Server routes cutoff computation and run retrieval.
type Server struct {
	router   *chi.Mux
	runner   Runner
	repo     ports.RunRepository // nil disables persistence
	logger   *internal.Logger
	defaults Defaults
}

// NewServer wires the routes over the given collaborators.
func NewServer(runner Runner, repo ports.RunRepository, logger *internal.Logger, defaults Defaults) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		runner:   runner,
		repo:     repo,
		logger:   logger,
		defaults: defaults,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Minute))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/api/cutoffs", s.handleCutoffs)
	s.router.Get("/api/runs/{id}", s.handleGetRun)
	s.router.Get("/api/runs/{id}/report", s.handleRunReport)
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler { return s.router }

type cutoffsRequest struct {
	Model            string          `json:"model,omitempty"`
	Fitted           json.RawMessage `json:"fitted,omitempty"`
	Manual           bool            `json:"manual"`
	SampleSize       int             `json:"sample_size,omitempty"`
	Estimator        string          `json:"estimator,omitempty"`
	Reps             int             `json:"reps,omitempty"`
	Seed             int64           `json:"seed,omitempty"`
	KeepReplications bool            `json:"keep_replications,omitempty"`
}

type cutoffsResponse struct {
	ID       string      `json:"id"`
	Warnings []string    `json:"warnings,omitempty"`
	Run      interface{} `json:"run"`
	// Levels carries the raw replication dataset when requested.
	Levels []cutoff.LevelRun `json:"levels,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCutoffs(w http.ResponseWriter, r *http.Request) {
	var req cutoffsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.New("BAD_REQUEST", "invalid JSON body"))
		return
	}

	reps := req.Reps
	if reps <= 0 {
		reps = s.defaults.Reps
	}

	result, err := s.runner.Run(r.Context(), app.Request{
		Input: model.Input{
			Manual: req.Manual,
			Text:   req.Model,
			Fitted: req.Fitted,
			N:      req.SampleSize,
		},
		Estimator:        req.Estimator,
		Reps:             reps,
		Seed:             req.Seed,
		Parallel:         s.defaults.Parallel,
		KeepReplications: req.KeepReplications,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.repo != nil {
		if err := s.repo.Save(r.Context(), result.Run); err != nil {
			s.logger.Error("failed to persist run %s: %v", result.Run.ID, err)
		}
	}

	writeJSON(w, http.StatusOK, cutoffsResponse{
		ID:       result.Run.ID.String(),
		Warnings: result.Warnings,
		Run:      result.Run,
		Levels:   result.Levels,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.loadRun(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	run, err := s.loadRun(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	md := app.RenderMarkdown(run.Table)
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.CompletePage})
	page := markdown.ToHTML([]byte(md), p, renderer)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

func (s *Server) loadRun(r *http.Request) (*cutoff.Run, error) {
	if s.repo == nil {
		return nil, apperrors.New("PERSISTENCE_DISABLED", "run persistence is not configured")
	}
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		return nil, apperrors.New("BAD_REQUEST", err.Error())
	}
	return s.repo.Get(r.Context(), id)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if s.logger != nil && status >= 500 {
		s.logger.Error("request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{
		"code":  code,
		"error": err.Error(),
	})
}

// classify maps the domain error taxonomy onto HTTP statuses and codes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInputMismatch):
		return http.StatusBadRequest, "INPUT_MISMATCH"
	case errors.Is(err, core.ErrInvalidParameter):
		return http.StatusBadRequest, "INVALID_PARAMETER"
	case errors.Is(err, core.ErrUnsupportedModel):
		return http.StatusBadRequest, "UNSUPPORTED_MODEL"
	case errors.Is(err, core.ErrIdentification):
		return http.StatusBadRequest, "IDENTIFICATION"
	case errors.Is(err, core.ErrInsufficientCandidates):
		return http.StatusBadRequest, "INSUFFICIENT_CANDIDATES"
	case errors.Is(err, core.ErrUnsupportedEstimator):
		return http.StatusBadRequest, "UNSUPPORTED_ESTIMATOR"
	case errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound, "RUN_NOT_FOUND"
	case errors.Is(err, core.ErrSimulationReliability):
		return http.StatusInternalServerError, "SIMULATION_RELIABILITY"
	case apperrors.IsAppError(err):
		code := apperrors.Code(err)
		switch code {
		case "BAD_REQUEST":
			return http.StatusBadRequest, code
		case "PERSISTENCE_DISABLED":
			return http.StatusNotFound, code
		}
		return http.StatusInternalServerError, code
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
