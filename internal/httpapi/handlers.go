// Package httpapi is the HTTP Transport & Service Shell (C9): it exposes
// the Request Router over net/http, maps its error taxonomy onto status
// codes, and wraps every route with CORS and access-log middleware in this
// lineage's Handler-struct-plus-ServeMux style.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Borislavv/bracket-bff/internal/domain"
	"github.com/Borislavv/bracket-bff/internal/upstream"
)

// Service is the subset of *router.Router the HTTP layer depends on.
type Service interface {
	Read(ctx context.Context, slug string, refresh bool) (*domain.TournamentResponse, error)
	Refresh(ctx context.Context, slug string) (*domain.TournamentResponse, error)
	Status(ctx context.Context, slug string) (*domain.StatusResponse, error)
}

// Handler holds the dependencies every route needs.
type Handler struct {
	svc         Service
	environment string
	startedAt   time.Time
}

// New builds a Handler bound to svc.
func New(svc Service, environment string) *Handler {
	return &Handler{svc: svc, environment: environment, startedAt: time.Now()}
}

type healthResponse struct {
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
	Environment string `json:"environment"`
}

// Health answers the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Timestamp:   time.Now().Unix(),
		Environment: h.environment,
	})
}

// Tournament serves a read, honoring ?refresh=true.
func (h *Handler) Tournament(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "slug is required")
		return
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	resp, err := h.svc.Read(r.Context(), slug, refresh)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// TournamentRefresh forces a refresh regardless of cache state.
func (h *Handler) TournamentRefresh(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "slug is required")
		return
	}

	resp, err := h.svc.Refresh(r.Context(), slug)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// TournamentCacheStatus reports cache presence without touching upstream.
func (h *Handler) TournamentCacheStatus(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "slug is required")
		return
	}

	resp, err := h.svc.Status(r.Context(), slug)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Routes builds the ServeMux all routes are registered on.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/tournament/{slug}", h.Tournament)
	mux.HandleFunc("POST /api/tournament/{slug}/refresh", h.TournamentRefresh)
	mux.HandleFunc("GET /api/tournament/{slug}/cache-status", h.TournamentCacheStatus)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error  string `json:"error"`
	Source string `json:"source"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message, Source: "backend"})
}

// writeUpstreamError maps the §7 taxonomy onto HTTP status classes. A
// context cancellation is not an upstream classification — it means the
// client gave up, which net/http already handles once the handler returns.
func writeUpstreamError(w http.ResponseWriter, err error) {
	kind, classified := upstream.ClassifyKind(err)
	if !classified {
		writeError(w, http.StatusInternalServerError, "internal error: "+err.Error())
		return
	}

	switch kind {
	case upstream.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case upstream.KindRateLimited, upstream.KindUnavailable, upstream.KindNetwork:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case upstream.KindFatalConfig:
		writeError(w, http.StatusInternalServerError, "upstream misconfigured")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
