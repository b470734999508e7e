package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"medigraph/internal/profile/models"
	"medigraph/internal/transport/http/shared"
	"medigraph/pkg/domain"
	dErrors "medigraph/pkg/domain-errors"
	"medigraph/pkg/platform/middleware"
)

// Service defines the profile operations the handler needs.
type Service interface {
	Register(ctx context.Context, handle, email, password string) (*models.Profile, error)
	Authenticate(ctx context.Context, handle, password string) (string, error)
	Card(ctx context.Context, id domain.ProfileID) (models.Card, error)
	SetFrozen(ctx context.Context, id domain.ProfileID, frozen bool) error
}

// Handler handles onboarding and profile-card endpoints.
type Handler struct {
	logger    *slog.Logger
	profiles  Service
	validator middleware.TokenValidator
}

func New(profiles Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, profiles: profiles, validator: validator}
}

// Register registers the profile routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/profiles", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Get("/profiles/{id}", h.handleCard)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAuth(h.validator, h.logger))
		admin.Use(middleware.RequireAdmin(h.logger))
		admin.Patch("/profiles/{id}/freeze", h.handleSetFrozen)
	})
}

type registerRequest struct {
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	profile, err := h.profiles.Register(ctx, req.Handle, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "registration failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, registerResponse{
		ID:     profile.ID.String(),
		Handle: profile.Handle,
	})
}

type loginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	token, err := h.profiles.Authenticate(ctx, req.Handle, req.Password)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) handleCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}

	card, err := h.profiles.Card(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, card)
}

type freezeRequest struct {
	Frozen bool `json:"frozen"`
}

func (h *Handler) handleSetFrozen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}

	var req freezeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.profiles.SetFrozen(ctx, id, req.Frozen); err != nil {
		h.logger.ErrorContext(ctx, "set frozen failed",
			"request_id", middleware.GetRequestID(ctx),
			"profile_id", id.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
