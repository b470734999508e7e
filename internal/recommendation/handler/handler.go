package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"medigraph/internal/transport/http/shared"
	"medigraph/pkg/domain"
	dErrors "medigraph/pkg/domain-errors"
	"medigraph/pkg/fingerprint"
	"medigraph/pkg/platform/middleware"
)

// Service defines the recommendation operation the handler needs.
type Service interface {
	Give(ctx context.Context, profileID domain.ProfileID, recommenderKey string) (created bool, err error)
}

// Handler handles the recommendation endpoint. The route is open: a valid
// bearer token keys the recommendation to the caller's profile, anyone else
// gets a browser-fingerprint key. Keys from the two schemes never collide.
type Handler struct {
	logger    *slog.Logger
	recs      Service
	validator middleware.TokenValidator
	salt      string
}

func New(recs Service, validator middleware.TokenValidator, salt string, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, recs: recs, validator: validator, salt: salt}
}

// Register registers the recommendation route with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/profiles/{id}/recommendations", h.handleGive)
}

type giveResponse struct {
	Created bool `json:"created"`
}

func (h *Handler) handleGive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profileID, err := domain.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}

	key := h.recommenderKey(r)
	created, err := h.recs.Give(ctx, profileID, key)
	if err != nil {
		h.logger.WarnContext(ctx, "recommendation failed",
			"request_id", middleware.GetRequestID(ctx),
			"profile_id", profileID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	shared.WriteJSON(w, status, giveResponse{Created: created})
}

// recommenderKey prefers an authenticated identity and falls back to an
// anonymous fingerprint. An invalid token is treated as anonymous rather
// than rejected so stale sessions can still recommend.
func (h *Handler) recommenderKey(r *http.Request) string {
	const bearerPrefix = "Bearer "
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix); ok && token != "" {
		if claims, err := h.validator.ValidateToken(token); err == nil {
			return "profile:" + claims.ProfileID
		}
	}
	return fingerprint.AnonymousKey(r, h.salt)
}
