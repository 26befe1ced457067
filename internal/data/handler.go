package data

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/geoapp/geoapp-api/internal/platform/httpx"
	"github.com/geoapp/geoapp-api/internal/rbac"
	"github.com/geoapp/geoapp-api/internal/shared"
)

const maxBodyBytes = 4 << 20

// Handler serves /api/data/{userId}.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes registers data routes on a router whose pattern binds {userId}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequirePolicy(string(rbac.PermReadData))).Get("/", h.get)
	r.With(h.rbac.RequirePolicy(string(rbac.PermWriteData))).Put("/", h.put)
}

// owner resolves {userId} and checks the caller may act on it. Only the
// wildcard reaches another user's series.
func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userId")
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Unauthorized(w)
		return "", false
	}
	if principal.UserID != userID && !rbac.Evaluate(principal.Permissions, rbac.PermAll).Allowed {
		h.logger.Warn("data access denied",
			slog.String("path", r.URL.Path),
			slog.String("user_id", principal.UserID),
		)
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return "", false
	}
	if _, err := uuid.Parse(userID); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "userId must be a UUID")
		return "", false
	}
	return userID, true
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	rng, err := parseRange(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	points, err := h.service.Query(r.Context(), userID, rng)
	if err != nil {
		h.respondError(w, "query data", err)
		return
	}
	httpx.JSON(w, http.StatusOK, points)
}

type writeResponse struct {
	Written int `json:"written"`
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	points, err := decodePoints(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed request body")
		return
	}
	if err := h.service.Write(r.Context(), userID, points); err != nil {
		h.respondError(w, "write data", err)
		return
	}
	httpx.JSON(w, http.StatusOK, writeResponse{Written: len(points)})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	status := httpx.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// decodePoints accepts either one datapoint object or an array of them.
func decodePoints(r *http.Request) ([]Datapoint, error) {
	var raw json.RawMessage
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var points []Datapoint
		if err := dec.Decode(&points); err != nil {
			return nil, err
		}
		return points, nil
	}
	var point Datapoint
	if err := dec.Decode(&point); err != nil {
		return nil, err
	}
	return []Datapoint{point}, nil
}

func parseRange(r *http.Request) (Range, error) {
	var rng Range
	q := r.URL.Query()
	for name, dst := range map[string]*time.Time{"from": &rng.From, "to": &rng.To} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Range{}, fmt.Errorf("%s must be RFC3339", name)
		}
		*dst = t
	}
	return rng, nil
}
