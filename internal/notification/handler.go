package notification

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gestionale/internal/platform/middleware"
	id "gestionale/pkg/domain"
	dErrors "gestionale/pkg/domainerrors"
	"gestionale/pkg/platform/httputil"
)

const defaultInboxLimit = 50

// Inbox is the read side of the in-app channel.
type Inbox interface {
	ListByRecipient(ctx context.Context, recipient id.PersonID, limit int) ([]Payload, error)
}

// Handler serves the caller's in-app inbox.
type Handler struct {
	inbox     Inbox
	logger    *slog.Logger
	validator middleware.ClaimsValidator
}

func NewHandler(inbox Inbox, logger *slog.Logger, validator middleware.ClaimsValidator) *Handler {
	return &Handler{inbox: inbox, logger: logger, validator: validator}
}

func (h *Handler) Register(r chi.Router) {
	r.With(
		middleware.Recovery(h.logger),
		middleware.RequestID,
		middleware.Logger(h.logger),
		middleware.RequireAuth(h.validator, h.logger),
	).Get("/notifications", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	limit := defaultInboxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidationFailed, "limit must be between 1 and 200"))
			return
		}
		limit = parsed
	}

	payloads, err := h.inbox.ListByRecipient(r.Context(), actor.ID, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list notifications",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeUnavailable, "failed to list notifications", err))
		return
	}
	if payloads == nil {
		payloads = []Payload{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"notifications": payloads})
}
