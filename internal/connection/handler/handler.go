package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"medigraph/internal/connection/models"
	"medigraph/internal/connection/service"
	"medigraph/internal/transport/http/shared"
	"medigraph/pkg/domain"
	dErrors "medigraph/pkg/domain-errors"
	"medigraph/pkg/platform/middleware"
)

// Service defines the connection-graph operations the handler needs.
type Service interface {
	Request(ctx context.Context, requesterID, recipientID domain.ProfileID) (*models.Connection, error)
	Respond(ctx context.Context, connectionID domain.ConnectionID, actorID domain.ProfileID, action service.Action) (*models.Connection, error)
	List(ctx context.Context, profileID domain.ProfileID) ([]*models.Connection, error)
	ListPending(ctx context.Context, profileID domain.ProfileID) ([]*models.Connection, error)
}

// Handler handles the connection graph endpoints.
type Handler struct {
	logger      *slog.Logger
	connections Service
	validator   middleware.TokenValidator
}

func New(connections Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, connections: connections, validator: validator}
}

// Register registers the connection routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(auth chi.Router) {
		auth.Use(middleware.RequireAuth(h.validator, h.logger))
		auth.Post("/connections", h.handleRequest)
		auth.Patch("/connections/{id}", h.handleRespond)
		auth.Get("/connections", h.handleList)
		auth.Get("/connections/pending", h.handleListPending)
	})
}

type requestBody struct {
	RecipientID string `json:"recipient_id"`
}

type connectionResponse struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requester_id"`
	RecipientID string     `json:"recipient_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func toConnectionResponse(c *models.Connection) connectionResponse {
	return connectionResponse{
		ID:          c.ID.String(),
		RequesterID: c.RequesterID.String(),
		RecipientID: c.RecipientID.String(),
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt,
		ResolvedAt:  c.ResolvedAt,
	}
}

func toConnectionResponses(conns []*models.Connection) []connectionResponse {
	out := make([]connectionResponse, 0, len(conns))
	for _, c := range conns {
		out = append(out, toConnectionResponse(c))
	}
	return out
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requesterID, err := domain.ParseProfileID(middleware.GetProfileID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var body requestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	recipientID, err := domain.ParseProfileID(body.RecipientID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid recipient id"))
		return
	}

	conn, err := h.connections.Request(ctx, requesterID, recipientID)
	if err != nil {
		h.logger.WarnContext(ctx, "connection request failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toConnectionResponse(conn))
}

type respondBody struct {
	Action string `json:"action"`
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, err := domain.ParseProfileID(middleware.GetProfileID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	connectionID, err := domain.ParseConnectionID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid connection id"))
		return
	}

	var body respondBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	action, ok := service.ParseAction(body.Action)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "action must be accept or reject"))
		return
	}

	conn, err := h.connections.Respond(ctx, connectionID, actorID, action)
	if err != nil {
		h.logger.WarnContext(ctx, "connection response failed",
			"request_id", middleware.GetRequestID(ctx),
			"connection_id", connectionID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toConnectionResponse(conn))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profileID, err := domain.ParseProfileID(middleware.GetProfileID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	conns, err := h.connections.List(ctx, profileID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toConnectionResponses(conns))
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profileID, err := domain.ParseProfileID(middleware.GetProfileID(ctx))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	conns, err := h.connections.ListPending(ctx, profileID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toConnectionResponses(conns))
}
