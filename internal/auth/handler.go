package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/geoapp/geoapp-api/internal/platform/httpx"
	"github.com/geoapp/geoapp-api/internal/rbac"
	"github.com/geoapp/geoapp-api/internal/shared"
)

// Handler wires HTTP endpoints for identity and token flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	issuer    *TokenIssuer
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, issuer *TokenIssuer, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		issuer:    issuer,
		rbac:      rbacMW,
		validator: validator.New(),
	}
}

// MountRoutes registers user routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequirePolicy(string(rbac.PermRegister))).Post("/", h.register)
	r.Post("/login", h.login)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireIdentity)
		r.Get("/me", h.me)
		r.Get("/registration-token", h.registrationToken)
		r.Post("/{userId}/token", h.generateToken)
	})
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=256"`
	Password string `json:"password" validate:"required,max=1024"`
}

type generateTokenRequest struct {
	Expiry      string   `json:"expiry" validate:"required"`
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
}

type principalResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	tok, err := h.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(w, r, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tok)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	tok, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(w, r, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tok)
}

func (h *Handler) generateToken(w http.ResponseWriter, r *http.Request) {
	var req generateTokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	lifetime, err := ParseLifetime(req.Expiry)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	tok, err := h.issuer.IssueDelegatedToken(r.Context(), principal, chi.URLParam(r, "userId"), req.Permissions, lifetime)
	if err != nil {
		h.respondError(w, r, "generate token", err)
		return
	}
	h.logger.Info("delegated token issued",
		slog.String("user_id", principal.UserID),
		slog.String("token_id", tok.ID),
		slog.Any("permissions", tok.Permissions),
		slog.Time("expires_at", tok.ExpiresAt),
	)
	httpx.JSON(w, http.StatusOK, tok)
}

func (h *Handler) registrationToken(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	tok, err := h.issuer.IssueAdminRegistrationToken(r.Context(), principal)
	if err != nil {
		h.respondError(w, r, "registration token", err)
		return
	}
	h.logger.Info("registration token issued", slog.String("user_id", principal.UserID), slog.String("token_id", tok.ID))
	httpx.JSON(w, http.StatusOK, tok)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	resp := principalResponse{
		ID:          p.UserID,
		Username:    p.Username,
		Roles:       p.Roles,
		Permissions: p.Permissions,
	}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	if resp.Permissions == nil {
		resp.Permissions = []string{}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "")
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		httpx.Unauthorized(w)
		return
	case errors.Is(err, httpx.ErrForbidden):
		h.logger.Warn(op+" rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	case errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrDuplicate):
	default:
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
