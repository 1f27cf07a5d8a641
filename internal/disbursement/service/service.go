// Package service orchestrates the disbursement lifecycle: guard evaluation,
// the conditional state mutation, the audit trail and notification dispatch.
// Handlers stay thin; everything that decides or sequences lives here.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gestionale/internal/community"
	"gestionale/internal/disbursement"
	"gestionale/internal/disbursement/metrics"
	"gestionale/internal/disbursement/store"
	"gestionale/internal/history"
	"gestionale/internal/notification"
	id "gestionale/pkg/domain"
	dErrors "gestionale/pkg/domainerrors"
	"gestionale/pkg/platform/sentinel"
)

const maxPaymentReferenceLen = 64

type Service struct {
	store      store.Store
	grants     community.GrantStore
	history    *history.Recorder
	dispatcher *notification.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func New(
	requests store.Store,
	grants community.GrantStore,
	recorder *history.Recorder,
	dispatcher *notification.Dispatcher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		store:      requests,
		grants:     grants,
		history:    recorder,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// WithClock overrides the service clock; test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInput carries the fields a collaborator supplies when opening a
// request. Submit=false leaves it as a draft.
type CreateInput struct {
	Kind             disbursement.Kind
	Community        *id.CommunityID
	GrossAmountCents int64
	NetAmountCents   int64
	AmountCents      int64
	Category         string
	Description      string
	Submit           bool
}

// Create opens a new request owned by the calling collaborator and writes the
// creation history entry (previous state null).
func (s *Service) Create(ctx context.Context, actor id.Actor, in CreateInput) (*disbursement.Request, error) {
	if !actor.Active || actor.Role != id.RoleCollaboratore {
		return nil, dErrors.New(dErrors.CodeForbidden, "only collaborators open requests")
	}

	switch in.Kind {
	case disbursement.KindCompensation:
		if in.GrossAmountCents <= 0 || in.NetAmountCents <= 0 {
			return nil, dErrors.New(dErrors.CodeValidationFailed, "gross and net amounts must be positive")
		}
		if in.NetAmountCents > in.GrossAmountCents {
			return nil, dErrors.New(dErrors.CodeValidationFailed, "net amount exceeds gross amount")
		}
	case disbursement.KindReimbursement:
		if in.AmountCents <= 0 {
			return nil, dErrors.New(dErrors.CodeValidationFailed, "amount must be positive")
		}
		if in.Community != nil {
			return nil, dErrors.New(dErrors.CodeValidationFailed, "expense reimbursements have no community")
		}
	default:
		return nil, dErrors.New(dErrors.CodeValidationFailed, "unknown entity kind")
	}

	now := s.now()
	state := disbursement.StateBozza
	if in.Submit {
		state = disbursement.StateInAttesa
	}

	req := &disbursement.Request{
		ID:          id.NewRequestID(),
		Kind:        in.Kind,
		OwnerID:     actor.ID,
		Community:   in.Community,
		Category:    in.Category,
		Description: in.Description,
		State:       state,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Kind == disbursement.KindCompensation {
		req.GrossAmountCents = in.GrossAmountCents
		req.NetAmountCents = in.NetAmountCents
	} else {
		req.GrossAmountCents = in.AmountCents
		req.NetAmountCents = in.AmountCents
	}

	if err := s.store.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "failed to create request", err)
	}

	s.history.Record(ctx, history.NewEntry(req, nil, actor, nil, now))
	return req, nil
}

// TransitionResult reports the realized transition.
type TransitionResult struct {
	NewState disbursement.State
}

// Transition runs the full pipeline for one action: guard, conditional
// mutation, audit, dispatch. Audit and dispatch failures never fail the
// call; once the mutation commits the transition is the authoritative fact.
func (s *Service) Transition(ctx context.Context, actor id.Actor, kind disbursement.Kind, reqID id.RequestID, action disbursement.Action, note string, paymentRef *string) (TransitionResult, error) {
	started := s.now()
	result, err := s.transition(ctx, actor, kind, reqID, action, note, paymentRef)
	s.metrics.ObserveTransitionLatency(s.now().Sub(started))
	s.metrics.IncrementOutcome(string(kind), string(action), outcomeLabel(err))
	return result, err
}

func (s *Service) transition(ctx context.Context, actor id.Actor, kind disbursement.Kind, reqID id.RequestID, action disbursement.Action, note string, paymentRef *string) (TransitionResult, error) {
	paymentRef, err := normalizePaymentReference(paymentRef)
	if err != nil {
		return TransitionResult{}, err
	}
	if paymentRef != nil {
		if rule, ok := disbursement.RuleFor(kind, action); ok && !rule.AllowsPaymentRef {
			return TransitionResult{}, dErrors.New(dErrors.CodeValidationFailed, "payment reference not allowed for this action")
		}
	}

	req, err := s.store.Get(ctx, kind, reqID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return TransitionResult{}, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return TransitionResult{}, dErrors.Wrap(dErrors.CodeUnavailable, "failed to load request", err)
	}

	granted, err := s.grantedFor(ctx, actor)
	if err != nil {
		return TransitionResult{}, err
	}

	// A caller without read access gets the same answer as an unknown id.
	if !s.canRead(actor, req, granted) {
		return TransitionResult{}, dErrors.New(dErrors.CodeNotFound, "request not found")
	}

	decision := disbursement.Evaluate(disbursement.GuardInput{
		Actor:        actor,
		Kind:         kind,
		CurrentState: req.State,
		Action:       action,
		Note:         note,
		OwnerID:      req.OwnerID,
		Community:    req.Community,
		Granted:      granted,
	})
	if !decision.Allowed {
		return TransitionResult{}, guardError(decision.Reason)
	}

	now := s.now()
	trimmedNote := strings.TrimSpace(note)
	updated := disbursement.ApplyMutation(*req, action, actor.ID, disbursement.Extra{
		Note:             trimmedNote,
		PaymentReference: paymentRef,
	}, now)

	if err := s.store.Update(ctx, &updated, req.State); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			// Lost the race against a concurrent transition. Same outward
			// signal as a guard state rejection: re-fetch and retry.
			return TransitionResult{}, dErrors.New(dErrors.CodeInvalidState, disbursement.ReasonInvalidState)
		case errors.Is(err, sentinel.ErrNotFound):
			return TransitionResult{}, dErrors.New(dErrors.CodeNotFound, "request not found")
		default:
			return TransitionResult{}, dErrors.Wrap(dErrors.CodeUnavailable, "failed to apply transition", err)
		}
	}

	var notePtr *string
	if trimmedNote != "" {
		notePtr = &trimmedNote
	}
	s.history.Record(ctx, history.NewEntry(&updated, &req.State, actor, notePtr, now))

	s.dispatcher.Dispatch(ctx, notification.Transition{
		Kind:      kind,
		Action:    action,
		OwnerID:   req.OwnerID,
		RequestID: req.ID,
		Note:      trimmedNote,
	})

	return TransitionResult{NewState: updated.State}, nil
}

// Get returns a single request, collapsing missing ids and missing read
// access into the same not-found signal.
func (s *Service) Get(ctx context.Context, actor id.Actor, kind disbursement.Kind, reqID id.RequestID) (*disbursement.Request, error) {
	req, err := s.store.Get(ctx, kind, reqID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "failed to load request", err)
	}
	granted, err := s.grantedFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !s.canRead(actor, req, granted) {
		return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
	}
	return req, nil
}

// History returns the audit trail of a readable request.
func (s *Service) History(ctx context.Context, actor id.Actor, kind disbursement.Kind, reqID id.RequestID) ([]history.Entry, error) {
	if _, err := s.Get(ctx, actor, kind, reqID); err != nil {
		return nil, err
	}
	entries, err := s.history.List(ctx, kind, reqID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "failed to load history", err)
	}
	return entries, nil
}

// ListMine returns the caller's own requests.
func (s *Service) ListMine(ctx context.Context, actor id.Actor, kind disbursement.Kind) ([]*disbursement.Request, error) {
	if !actor.Active {
		return nil, dErrors.New(dErrors.CodeForbidden, "inactive caller")
	}
	out, err := s.store.List(ctx, kind, store.ListFilter{Owner: actor.ID})
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "failed to list requests", err)
	}
	return out, nil
}

// ListCommunity returns a community's compensations for a manager-role
// caller, enforcing the community grant.
func (s *Service) ListCommunity(ctx context.Context, actor id.Actor, communityID id.CommunityID, state disbursement.State) ([]*disbursement.Request, error) {
	if err := s.requireCommunityAuthority(ctx, actor, communityID); err != nil {
		return nil, err
	}
	out, err := s.store.List(ctx, disbursement.KindCompensation, store.ListFilter{Community: communityID, State: state})
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "failed to list requests", err)
	}
	return out, nil
}

// grantedFor loads the community grant set for scoped manager roles; other
// roles never consult it.
func (s *Service) grantedFor(ctx context.Context, actor id.Actor) (map[id.CommunityID]bool, error) {
	if actor.Role != id.RoleResponsabileCompensi {
		return nil, nil
	}
	granted, err := s.grants.Communities(ctx, actor.ID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "failed to load community grants", err)
	}
	return granted, nil
}

// canRead mirrors the guard's scoping rules for the read path: collaborators
// see their own requests, responsabili see requests inside their granted
// communities, amministrazione sees everything.
func (s *Service) canRead(actor id.Actor, req *disbursement.Request, granted map[id.CommunityID]bool) bool {
	if !actor.Active {
		return false
	}
	switch actor.Role {
	case id.RoleAmministrazione:
		return true
	case id.RoleResponsabileCompensi:
		if req.Community == nil {
			return true
		}
		return granted[*req.Community]
	default:
		return req.OwnerID == actor.ID
	}
}

func (s *Service) requireCommunityAuthority(ctx context.Context, actor id.Actor, communityID id.CommunityID) error {
	if !actor.Active || !actor.Role.IsManager() {
		return dErrors.New(dErrors.CodeForbidden, "manager role required")
	}
	if actor.Role == id.RoleResponsabileCompensi {
		granted, err := s.grantedFor(ctx, actor)
		if err != nil {
			return err
		}
		if !granted[communityID] {
			return dErrors.New(dErrors.CodeForbidden, disbursement.ReasonOutOfScope)
		}
	}
	return nil
}

// guardError maps a guard rejection reason to the outward error code.
func guardError(reason string) error {
	switch reason {
	case disbursement.ReasonInvalidState:
		return dErrors.New(dErrors.CodeInvalidState, reason)
	case disbursement.ReasonNotAuthorized, disbursement.ReasonOutOfScope:
		return dErrors.New(dErrors.CodeForbidden, reason)
	default:
		// unknown action, note required
		return dErrors.New(dErrors.CodeValidationFailed, reason)
	}
}

// normalizePaymentReference trims and validates an optional payment
// reference. Empty after trimming means absent.
func normalizePaymentReference(ref *string) (*string, error) {
	if ref == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*ref)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) > maxPaymentReferenceLen {
		return nil, dErrors.New(dErrors.CodeValidationFailed, "payment reference too long")
	}
	for _, r := range trimmed {
		if r < 0x20 || r == 0x7f {
			return nil, dErrors.New(dErrors.CodeValidationFailed, "payment reference contains control characters")
		}
	}
	return &trimmed, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "applied"
	case dErrors.HasCode(err, dErrors.CodeInvalidState):
		return "conflict"
	case dErrors.HasCode(err, dErrors.CodeUnavailable), dErrors.HasCode(err, dErrors.CodeInternal):
		return "error"
	default:
		return "rejected"
	}
}
