// Package handler is the thin HTTP layer over the lifecycle service. It
// decodes requests, resolves the actor from context and renders domain
// errors; it holds no business logic.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gestionale/internal/disbursement"
	"gestionale/internal/disbursement/service"
	"gestionale/internal/platform/middleware"
	id "gestionale/pkg/domain"
	dErrors "gestionale/pkg/domainerrors"
	"gestionale/pkg/platform/httputil"
)

type Handler struct {
	service   *service.Service
	logger    *slog.Logger
	validator middleware.ClaimsValidator
}

func New(svc *service.Service, logger *slog.Logger, validator middleware.ClaimsValidator) *Handler {
	return &Handler{service: svc, logger: logger, validator: validator}
}

// Register mounts all engine routes behind the shared middleware stack.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.RequireAuth(h.validator, h.logger))

	router.Post("/{selector}", h.handleCreate)
	router.Get("/{selector}", h.handleListMine)
	router.Get("/{selector}/{id}", h.handleGet)
	router.Get("/{selector}/{id}/history", h.handleHistory)
	router.Post("/{selector}/{id}/transition", h.handleTransition)

	router.Get("/communities/{id}/compensations", h.handleListCommunity)
	router.Post("/communities/{id}/approve-all", h.handleApproveAll)
	router.Post("/mark-paid", h.handleMarkPaid)

	r.Mount("/", router)
}

type transitionRequest struct {
	Action           string  `json:"action"`
	Note             string  `json:"note"`
	PaymentReference *string `json:"payment_reference"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, kind, reqID, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidationFailed, "invalid request body"))
		return
	}

	result, err := h.service.Transition(ctx, actor, kind, reqID, disbursement.Action(req.Action), req.Note, req.PaymentReference)
	if err != nil {
		h.logRejection(r, "transition rejected", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"new_state": string(result.NewState)})
}

func (h *Handler) handleListCommunity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	communityID, err := id.ParseCommunityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	state := disbursement.State(r.URL.Query().Get("state"))
	if state != "" && !state.Valid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidationFailed, "unknown state filter"))
		return
	}

	requests, err := h.service.ListCommunity(r.Context(), actor, communityID, state)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toRequestResponse(req))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": out})
}

func (h *Handler) handleApproveAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	communityID, err := id.ParseCommunityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.ApproveAll(ctx, actor, communityID)
	if err != nil {
		h.logRejection(r, "approve-all rejected", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{"updated_count": result.UpdatedCount})
}

type markPaidRequest struct {
	IDs              []string `json:"ids"`
	PaymentReference *string  `json:"payment_reference"`
	Table            string   `json:"table"`
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidationFailed, "invalid request body"))
		return
	}

	kind, ok := disbursement.ParseTableSelector(req.Table)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidationFailed, "unknown table selector"))
		return
	}

	ids := make([]id.RequestID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		reqID, err := id.ParseRequestID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		ids = append(ids, reqID)
	}

	result, err := h.service.MarkPaid(ctx, actor, kind, ids, req.PaymentReference)
	if err != nil {
		h.logRejection(r, "mark-paid rejected", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{"updated_count": result.UpdatedCount})
}

type createRequest struct {
	CommunityID      *string `json:"community_id"`
	GrossAmountCents int64   `json:"gross_amount_cents"`
	NetAmountCents   int64   `json:"net_amount_cents"`
	AmountCents      int64   `json:"amount_cents"`
	Category         string  `json:"category"`
	Description      string  `json:"description"`
	Submit           bool    `json:"submit"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, kind, ok := h.resolveKind(w, r)
	if !ok {
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidationFailed, "invalid request body"))
		return
	}

	input := service.CreateInput{
		Kind:             kind,
		GrossAmountCents: req.GrossAmountCents,
		NetAmountCents:   req.NetAmountCents,
		AmountCents:      req.AmountCents,
		Category:         req.Category,
		Description:      req.Description,
		Submit:           req.Submit,
	}
	if req.CommunityID != nil {
		communityID, err := id.ParseCommunityID(*req.CommunityID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		input.Community = &communityID
	}

	created, err := h.service.Create(ctx, actor, input)
	if err != nil {
		h.logRejection(r, "create rejected", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(created))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, kind, reqID, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}

	req, err := h.service.Get(r.Context(), actor, kind, reqID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	actor, kind, reqID, ok := h.resolveTarget(w, r)
	if !ok {
		return
	}

	entries, err := h.service.History(r.Context(), actor, kind, reqID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	actor, kind, ok := h.resolveKind(w, r)
	if !ok {
		return
	}

	requests, err := h.service.ListMine(r.Context(), actor, kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toRequestResponse(req))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": out})
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (id.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		// Should never happen behind RequireAuth.
		h.logger.ErrorContext(r.Context(), "actor missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.Actor{}, false
	}
	return actor, true
}

func (h *Handler) resolveKind(w http.ResponseWriter, r *http.Request) (id.Actor, disbursement.Kind, bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return id.Actor{}, "", false
	}
	kind, ok := disbursement.ParseTableSelector(chi.URLParam(r, "selector"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "unknown resource"))
		return id.Actor{}, "", false
	}
	return actor, kind, true
}

func (h *Handler) resolveTarget(w http.ResponseWriter, r *http.Request) (id.Actor, disbursement.Kind, id.RequestID, bool) {
	actor, kind, ok := h.resolveKind(w, r)
	if !ok {
		return id.Actor{}, "", id.RequestID{}, false
	}
	reqID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.Actor{}, "", id.RequestID{}, false
	}
	return actor, kind, reqID, true
}

func (h *Handler) logRejection(r *http.Request, msg string, err error) {
	h.logger.WarnContext(r.Context(), msg,
		"error", err.Error(),
		"request_id", middleware.GetRequestID(r.Context()),
	)
}
