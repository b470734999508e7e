package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"medigraph/internal/transport/http/shared"
	"medigraph/internal/verification/models"
	"medigraph/pkg/domain"
	dErrors "medigraph/pkg/domain-errors"
	"medigraph/pkg/platform/middleware"
)

// Service defines the verification operations the handler needs.
type Service interface {
	Submit(ctx context.Context, profileID domain.ProfileID, documentRefs []string) (*models.VerificationRequest, error)
	Resolve(ctx context.Context, requestID domain.VerificationRequestID, decision models.Decision) (*models.VerificationRequest, error)
}

// Handler handles the credential-review endpoints.
type Handler struct {
	logger        *slog.Logger
	verifications Service
	validator     middleware.TokenValidator
}

func New(verifications Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, verifications: verifications, validator: validator}
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(auth chi.Router) {
		auth.Use(middleware.RequireAuth(h.validator, h.logger))
		auth.Post("/verification/requests", h.handleSubmit)

		auth.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireAdmin(h.logger))
			admin.Patch("/verification/requests/{id}", h.handleResolve)
		})
	})
}

type submitRequest struct {
	DocumentRefs []string `json:"document_refs"`
}

type requestResponse struct {
	ID           string     `json:"id"`
	ProfileID    string     `json:"profile_id"`
	DocumentRefs []string   `json:"document_refs"`
	Status       string     `json:"status"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

func toRequestResponse(req *models.VerificationRequest) requestResponse {
	return requestResponse{
		ID:           req.ID.String(),
		ProfileID:    req.ProfileID.String(),
		DocumentRefs: req.DocumentRefs,
		Status:       string(req.Status),
		SubmittedAt:  req.SubmittedAt,
		ResolvedAt:   req.ResolvedAt,
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profileID, err := domain.ParseProfileID(middleware.GetProfileID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	req, err := h.verifications.Submit(ctx, profileID, body.DocumentRefs)
	if err != nil {
		h.logger.WarnContext(ctx, "verification submission failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toRequestResponse(req))
}

type resolveRequest struct {
	Decision string `json:"decision"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, err := domain.ParseVerificationRequestID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid verification request id"))
		return
	}

	var body resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	decision, ok := models.ParseDecision(body.Decision)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "decision must be approve or reject"))
		return
	}

	req, err := h.verifications.Resolve(ctx, requestID, decision)
	if err != nil {
		h.logger.WarnContext(ctx, "verification resolution failed",
			"request_id", middleware.GetRequestID(ctx),
			"verification_request_id", requestID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}
