// Package api exposes the tracker engine over HTTP. Every /api route
// requires an authenticated principal, carried as a numeric user id in the
// X-User-ID header (authentication itself is the front proxy's job), and
// admin membership in the roster.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/trackd"
	"github.com/hazyhaar/trackd/internal/fetch"
)

// Handler serves the control API for one Service.
type Handler struct {
	svc    *trackd.Service
	logger *slog.Logger
}

// New creates a Handler. logger defaults to slog.Default().
func New(svc *trackd.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Router builds the route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.requireAdmin)

		r.Get("/status", h.handleStatus)
		r.Post("/checkall", h.handleCheckAll)

		r.Route("/trackers", func(r chi.Router) {
			r.Get("/", h.handleList)
			r.Post("/", h.handleCreate)
			r.Delete("/", h.handleUntrack)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", h.handleDelete)
				r.Post("/pause", h.handlePause)
				r.Post("/resume", h.handleResume)
				r.Post("/check", h.handleCheckNow)
			})
		})

		r.Route("/admins", func(r chi.Router) {
			r.Get("/", h.handleAdmins)
			r.Post("/", h.handleAddAdmin)
			r.Delete("/{id}", h.handleRemoveAdmin)
		})
	})

	return r
}

// requireAdmin extracts the principal and rejects non-admins. The resolved
// principal is threaded to handlers through the request context.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		principal, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || principal <= 0 {
			writeJSONError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
			return
		}
		ok, err := h.svc.IsAdmin(r.Context(), principal)
		if err != nil {
			h.logger.Error("api: admin lookup failed", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			writeJSONError(w, http.StatusForbidden, "not an admin")
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

type createRequest struct {
	URL             string `json:"url"`
	Mode            string `json:"mode"`
	Selector        string `json:"selector,omitempty"`
	IntervalSeconds int64  `json:"interval_secs,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Mode == "" {
		req.Mode = string(fetch.ModeHash)
	}
	mode, err := fetch.ParseMode(req.Mode)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.svc.Create(r.Context(), principalFrom(r.Context()), req.URL, mode, req.Selector, req.IntervalSeconds)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), principalFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trackers": list})
}

func (h *Handler) handleUntrack(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeJSONError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	if err := h.svc.Untrack(r.Context(), principalFrom(r.Context()), url); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.trackerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), principalFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	id, ok := h.trackerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Pause(r.Context(), principalFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	id, ok := h.trackerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Resume(r.Context(), principalFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCheckNow(w http.ResponseWriter, r *http.Request) {
	id, ok := h.trackerID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.CheckNow(r.Context(), principalFrom(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCheckAll(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CheckAll(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Status(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.svc.Admins(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"admins": admins})
}

type adminRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *Handler) handleAddAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID <= 0 {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := h.svc.AddAdmin(r.Context(), principalFrom(r.Context()), req.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleRemoveAdmin(w http.ResponseWriter, r *http.Request) {
	target, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || target <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.svc.RemoveAdmin(r.Context(), principalFrom(r.Context()), target); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) trackerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid tracker id")
		return 0, false
	}
	return id, true
}

// writeError maps service errors onto status codes. Fetch failures surface
// as 502 so callers can distinguish a bad target site from a bad request.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fetchErr *fetch.Error
	switch {
	case errors.Is(err, trackd.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, trackd.ErrAccessDenied):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, trackd.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, trackd.ErrTrackerLimit):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.As(err, &fetchErr), errors.Is(err, trackd.ErrElementNotFound):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("api: request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
