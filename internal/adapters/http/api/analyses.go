package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/servecoach/internal/adapters/repository"
	"github.com/okian/servecoach/internal/adapters/video"
	service "github.com/okian/servecoach/internal/app"
	"github.com/okian/servecoach/internal/domain/serve"
)

// AnalysesHandler handles clip submissions and job lookups.
type AnalysesHandler struct {
	deps           Dependencies
	maxUploadBytes int64
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(deps Dependencies, maxUploadBytes int64) *AnalysesHandler {
	return &AnalysesHandler{deps: deps, maxUploadBytes: maxUploadBytes}
}

type syncResponse struct {
	Provider string               `json:"provider"`
	Result   serve.AnalysisResult `json:"result"`
}

// HandlePostAnalysis handles POST /analyses requests. The body is the raw
// clip; ?sync=true analyzes inline instead of queueing a job.
func (h *AnalysesHandler) HandlePostAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_analysis"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	sync := false
	if raw := r.URL.Query().Get("sync"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeKind(r.Context(), w, WrapKind(op, ErrBadRequest, errors.New("invalid sync flag")))
			return
		}
		sync = v
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeKind(r.Context(), w, WrapKind(op, ErrTooLarge, err))
			return
		}
		writeKind(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	contentType := r.Header.Get("Content-Type")

	if sync {
		h.analyzeInline(r.Context(), w, contentType, data)
		return
	}

	sub, err := h.deps.Submit(r.Context(), contentType, data)
	if err != nil {
		writeKind(r.Context(), w, classify(op, err, ErrInternal))
		return
	}
	status := http.StatusAccepted
	if sub.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, sub)
}

func (h *AnalysesHandler) analyzeInline(ctx context.Context, w http.ResponseWriter, contentType string, data []byte) {
	const op = "api.analyze_sync"
	out, err := h.deps.Analyze(ctx, contentType, data)
	if err != nil {
		writeKind(ctx, w, classify(op, err, ErrAnalysisFailed))
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Provider: out.Provider, Result: out.Result})
}

// HandleGetAnalysis handles GET /analyses/{id} requests.
func (h *AnalysesHandler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_analysis"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/analyses/")
	if id == "" || strings.Contains(id, "/") {
		writeKind(r.Context(), w, NewKind(op, ErrNotFound))
		return
	}

	job, err := h.deps.Job(r.Context(), id)
	if err != nil {
		writeKind(r.Context(), w, classify(op, err, ErrInternal))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ProfilesHandler serves the reference profile table.
type ProfilesHandler struct {
	deps Dependencies
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(deps Dependencies) *ProfilesHandler {
	return &ProfilesHandler{deps: deps}
}

// HandleGetProfiles handles GET /profiles requests.
func (h *ProfilesHandler) HandleGetProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Profiles())
}

// classify tags a service error with its API kind; fallback covers the rest.
func classify(op string, err, fallback error) error {
	switch {
	case errors.Is(err, service.ErrEmptyUpload):
		return WrapKind(op, ErrBadRequest, err)
	case errors.Is(err, video.ErrUnsupportedFormat):
		return WrapKind(op, ErrUnsupportedMedia, err)
	case errors.Is(err, video.ErrTooLarge):
		return WrapKind(op, ErrTooLarge, err)
	case service.IsBackpressure(err):
		return WrapKind(op, ErrBackpressure, err)
	case errors.Is(err, service.ErrNotStarted):
		return WrapKind(op, ErrUnavailable, err)
	case errors.Is(err, repository.ErrNotFound):
		return WrapKind(op, ErrNotFound, err)
	default:
		return WrapKind(op, fallback, err)
	}
}
