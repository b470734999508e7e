package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	connmodels "medigraph/internal/connection/models"
	"medigraph/internal/invite/models"
	"medigraph/internal/transport/http/shared"
	"medigraph/pkg/domain"
	dErrors "medigraph/pkg/domain-errors"
	"medigraph/pkg/platform/middleware"
)

// Service defines the invite operations the handler needs.
type Service interface {
	Issue(ctx context.Context, inviterID domain.ProfileID, email *string) (*models.Invite, error)
	Redeem(ctx context.Context, code string, redeemerID domain.ProfileID) (*connmodels.Connection, error)
	URL(code string) string
}

// Handler handles the invite ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	invites   Service
	validator middleware.TokenValidator
}

func New(invites Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, invites: invites, validator: validator}
}

// Register registers the invite routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(auth chi.Router) {
		auth.Use(middleware.RequireAuth(h.validator, h.logger))
		auth.Post("/invites", h.handleIssue)
		auth.Post("/invites/redeem", h.handleRedeem)
	})
}

type issueRequest struct {
	Email *string `json:"email,omitempty"`
}

type issueResponse struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	inviterID, err := domain.ParseProfileID(middleware.GetProfileID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req issueRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	invite, err := h.invites.Issue(ctx, inviterID, req.Email)
	if err != nil {
		h.logger.WarnContext(ctx, "invite issue failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, issueResponse{
		ID:        invite.ID.String(),
		Code:      invite.Code,
		URL:       h.invites.URL(invite.Code),
		ExpiresAt: invite.ExpiresAt,
	})
}

type redeemRequest struct {
	Code string `json:"code"`
}

type connectionResponse struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requester_id"`
	RecipientID string     `json:"recipient_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	redeemerID, err := domain.ParseProfileID(middleware.GetProfileID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	conn, err := h.invites.Redeem(ctx, req.Code, redeemerID)
	if err != nil {
		h.logger.WarnContext(ctx, "invite redemption failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, connectionResponse{
		ID:          conn.ID.String(),
		RequesterID: conn.RequesterID.String(),
		RecipientID: conn.RecipientID.String(),
		Status:      string(conn.Status),
		CreatedAt:   conn.CreatedAt,
		ResolvedAt:  conn.ResolvedAt,
	})
}
