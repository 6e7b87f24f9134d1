// Package server exposes group statistics, phrase reconstruction and
// verification over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/reconstruct"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/service"
	apperrors "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/middleware"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// Options configures the router. RateLimit is per client and minute and
// applies to the search and verify routes; zero disables it.
type Options struct {
	RequestTimeout time.Duration
	DefaultTop     int
	RateLimit      int
	CORSOrigins    []string
}

// Handler serves the groupstats API.
type Handler struct {
	svc    *service.Service
	health *health.Checker
	opts   Options
	logger *slog.Logger
}

// New creates a Handler. checker may be nil.
func New(svc *service.Service, checker *health.Checker, opts Options) *Handler {
	if checker == nil {
		checker = health.NewChecker()
	}
	return &Handler{
		svc:    svc,
		health: checker,
		opts:   opts,
		logger: slog.Default().With("component", "http-handler"),
	}
}

// Router builds the route tree. m may be nil to skip request metrics.
func (h *Handler) Router(m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if m != nil {
		r.Use(middleware.Metrics(m))
	}
	r.Use(middleware.CORS(h.opts.CORSOrigins))

	r.Get("/health/live", h.health.LiveHandler())
	r.Get("/health/ready", h.health.ReadyHandler())
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if h.opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(h.opts.RequestTimeout))
		}
		r.Get("/groups/{name}/stats", h.Stats)
		r.Get("/groups/{name}/snapshots", h.Snapshots)
		r.Group(func(r chi.Router) {
			if h.opts.RateLimit > 0 {
				r.Use(middleware.RateLimit(middleware.NewLimiter(h.opts.RateLimit, time.Minute)))
			}
			r.Post("/reconstruct", h.Reconstruct)
			r.Post("/verify", h.Verify)
		})
		r.Get("/cache/stats", h.CacheStats)
		r.Delete("/cache", h.CacheInvalidate)
	})
	return r
}

// Stats serves the report of one group.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	top, err := intParam(r, "top", h.opts.DefaultTop)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	q := r.URL.Query()
	report, err := h.svc.Report(r.Context(), name, top, q.Get("reload") == "true", q.Get("save") == "true")
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// Snapshots lists stored reports of one group.
func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 10)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	snaps, err := h.svc.Snapshots(r.Context(), name, limit)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"group": name, "snapshots": snaps})
}

type reconstructRequest struct {
	Constraints        reconstruct.Constraints `json:"constraints"`
	Group              string                  `json:"group"`
	User               string                  `json:"user"`
	Reload             bool                    `json:"reload"`
	Words              []string                `json:"words"`
	EarlyEmitThreshold *int                    `json:"early_emit_threshold"`
	MaxFrontier        *int                    `json:"max_frontier"`
	Dedupe             *bool                   `json:"dedupe"`
	Publish            bool                    `json:"publish"`
}

// Reconstruct runs a phrase search.
func (h *Handler) Reconstruct(w http.ResponseWriter, r *http.Request) {
	var req reconstructRequest
	if err := decode(w, r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	resp, err := h.svc.Reconstruct(r.Context(), service.Request{
		Constraints:        req.Constraints,
		Group:              req.Group,
		User:               req.User,
		Reload:             req.Reload,
		Words:              req.Words,
		EarlyEmitThreshold: req.EarlyEmitThreshold,
		MaxFrontier:        req.MaxFrontier,
		DedupeStates:       req.Dedupe,
		Publish:            req.Publish,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("reconstruction served",
		"run_id", resp.RunID,
		"candidates", len(resp.Candidates),
		"cache_hit", resp.CacheHit,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

type verifyRequest struct {
	Constraints reconstruct.Constraints `json:"constraints"`
	Group       string                  `json:"group"`
	User        string                  `json:"user"`
	Text        string                  `json:"text"`
	Wildcards   string                  `json:"wildcards"`
}

// Verify checks one phrase against a constraint sequence.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decode(w, r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	v, err := h.svc.Verify(r.Context(), req.Constraints, req.Group, req.User, req.Text, req.Wildcards)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// CacheStats reports candidate cache counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	c := h.svc.Cache()
	if c == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := c.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": hitRate,
	})
}

// CacheInvalidate drops every cached result.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	c := h.svc.Cache()
	if c == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := c.Invalidate(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err)
	}
	return nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%s must be a non-negative integer", name)
	}
	return n, nil
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
