package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestionale/internal/community"
	"gestionale/internal/disbursement"
	"gestionale/internal/disbursement/service"
	"gestionale/internal/disbursement/store"
	"gestionale/internal/history"
	"gestionale/internal/notification"
	id "gestionale/pkg/domain"
	"gestionale/pkg/testutil"
)

// stubValidator resolves bearer tokens from a fixed map; no signatures.
type stubValidator struct {
	actors map[string]id.Actor
}

func (v *stubValidator) ValidateToken(token string) (id.Actor, error) {
	actor, ok := v.actors[token]
	if !ok {
		return id.Actor{}, errors.New("unknown token")
	}
	return actor, nil
}

type env struct {
	router   chi.Router
	requests *store.MemoryStore
	grants   *community.MemoryGrants
	tokens   *stubValidator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	requests := store.NewMemoryStore()
	grants := community.NewMemoryGrants()
	dispatcher := notification.NewDispatcher(notification.NewMemorySettings(), notification.NewMemorySink(), nil, logger, nil)
	recorder := history.NewRecorder(history.NewMemoryStore(), logger, nil)
	svc := service.New(requests, grants, recorder, dispatcher, logger, nil)

	tokens := &stubValidator{actors: map[string]id.Actor{}}
	router := chi.NewRouter()
	New(svc, logger, tokens).Register(router)

	return &env{router: router, requests: requests, grants: grants, tokens: tokens}
}

func (e *env) login(role id.Role) (id.Actor, string) {
	actor := id.Actor{ID: id.PersonID(uuid.New()), Role: role, Active: true}
	token := uuid.NewString()
	e.tokens.actors[token] = actor
	return actor, token
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	e.router.ServeHTTP(res, req)
	return res
}

func (e *env) seed(t *testing.T, kind disbursement.Kind, owner id.PersonID, state disbursement.State, comm *id.CommunityID) *disbursement.Request {
	t.Helper()
	now := time.Now().UTC()
	req := &disbursement.Request{
		ID:               id.NewRequestID(),
		Kind:             kind,
		OwnerID:          owner,
		Community:        comm,
		GrossAmountCents: 10000,
		NetAmountCents:   8000,
		State:            state,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, e.requests.Create(context.Background(), req))
	return req
}

func TestHandler_Auth(t *testing.T) {
	e := newEnv(t)

	t.Run("missing token", func(t *testing.T) {
		res := e.do(t, http.MethodGet, "/compensations", "", nil)
		assert.Equal(t, http.StatusUnauthorized, res.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		res := e.do(t, http.MethodGet, "/compensations", "bogus", nil)
		assert.Equal(t, http.StatusUnauthorized, res.Code)
	})
}

func TestHandler_CreateAndRead(t *testing.T) {
	e := newEnv(t)
	_, token := e.login(id.RoleCollaboratore)

	res := e.do(t, http.MethodPost, "/compensations", token, map[string]any{
		"gross_amount_cents": 12000,
		"net_amount_cents":   9000,
		"category":           "docenza",
		"submit":             true,
	})
	require.Equal(t, http.StatusCreated, res.Code)

	var created requestResponse
	testutil.DecodeJSON(t, res, &created)
	assert.Equal(t, "in_attesa", created.State)
	assert.Equal(t, int64(12000), created.GrossAmountCents)

	t.Run("get single", func(t *testing.T) {
		res := e.do(t, http.MethodGet, "/compensations/"+created.ID, token, nil)
		require.Equal(t, http.StatusOK, res.Code)
		var got requestResponse
		testutil.DecodeJSON(t, res, &got)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("list mine", func(t *testing.T) {
		res := e.do(t, http.MethodGet, "/compensations", token, nil)
		require.Equal(t, http.StatusOK, res.Code)
		var body struct {
			Requests []requestResponse `json:"requests"`
		}
		testutil.DecodeJSON(t, res, &body)
		require.Len(t, body.Requests, 1)
	})

	t.Run("unknown selector is 404", func(t *testing.T) {
		res := e.do(t, http.MethodGet, "/invoices", token, nil)
		testutil.AssertErrorCode(t, res, http.StatusNotFound, "not_found")
	})

	t.Run("malformed id is 422", func(t *testing.T) {
		res := e.do(t, http.MethodGet, "/compensations/not-a-uuid", token, nil)
		testutil.AssertErrorCode(t, res, http.StatusUnprocessableEntity, "validation_failed")
	})
}

func TestHandler_Transition(t *testing.T) {
	e := newEnv(t)
	owner, ownerToken := e.login(id.RoleCollaboratore)
	_, adminToken := e.login(id.RoleAmministrazione)
	req := e.seed(t, disbursement.KindReimbursement, owner.ID, disbursement.StateInAttesa, nil)
	path := "/expenses/" + req.ID.String() + "/transition"

	t.Run("approve", func(t *testing.T) {
		res := e.do(t, http.MethodPost, path, adminToken, map[string]any{"action": "approve"})
		require.Equal(t, http.StatusOK, res.Code)
		var body map[string]string
		testutil.DecodeJSON(t, res, &body)
		assert.Equal(t, "approvato", body["new_state"])
	})

	t.Run("wrong state is 409", func(t *testing.T) {
		res := e.do(t, http.MethodPost, path, adminToken, map[string]any{"action": "approve"})
		testutil.AssertErrorCode(t, res, http.StatusConflict, "invalid_state")
	})

	t.Run("collaborator approving is 403", func(t *testing.T) {
		other := e.seed(t, disbursement.KindReimbursement, owner.ID, disbursement.StateInAttesa, nil)
		res := e.do(t, http.MethodPost, "/expenses/"+other.ID.String()+"/transition", ownerToken,
			map[string]any{"action": "approve"})
		testutil.AssertErrorCode(t, res, http.StatusForbidden, "forbidden")
	})

	t.Run("reject without note is 422", func(t *testing.T) {
		other := e.seed(t, disbursement.KindReimbursement, owner.ID, disbursement.StateInAttesa, nil)
		res := e.do(t, http.MethodPost, "/expenses/"+other.ID.String()+"/transition", adminToken,
			map[string]any{"action": "reject"})
		testutil.AssertErrorCode(t, res, http.StatusUnprocessableEntity, "validation_failed")
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		res := e.do(t, http.MethodPost, "/expenses/"+uuid.NewString()+"/transition", adminToken,
			map[string]any{"action": "approve"})
		testutil.AssertErrorCode(t, res, http.StatusNotFound, "not_found")
	})
}

func TestHandler_History(t *testing.T) {
	e := newEnv(t)
	owner, ownerToken := e.login(id.RoleCollaboratore)
	_, adminToken := e.login(id.RoleAmministrazione)
	req := e.seed(t, disbursement.KindCompensation, owner.ID, disbursement.StateInAttesa, nil)

	res := e.do(t, http.MethodPost, "/compensations/"+req.ID.String()+"/transition", adminToken,
		map[string]any{"action": "reject", "note": "Missing receipt"})
	require.Equal(t, http.StatusOK, res.Code)

	res = e.do(t, http.MethodGet, "/compensations/"+req.ID.String()+"/history", ownerToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		History []history.Entry `json:"history"`
	}
	testutil.DecodeJSON(t, res, &body)
	require.Len(t, body.History, 1)
	assert.Equal(t, disbursement.StateInAttesa, *body.History[0].PreviousState)
	assert.Equal(t, disbursement.StateRifiutato, body.History[0].NewState)
	require.NotNil(t, body.History[0].Note)
	assert.Equal(t, "Missing receipt", *body.History[0].Note)
}

func TestHandler_Bulk(t *testing.T) {
	e := newEnv(t)
	owner, _ := e.login(id.RoleCollaboratore)
	boss, bossToken := e.login(id.RoleResponsabileCompensi)
	_, adminToken := e.login(id.RoleAmministrazione)

	comm := id.CommunityID(uuid.New())
	e.grants.Grant(boss.ID, comm)
	for range 2 {
		e.seed(t, disbursement.KindCompensation, owner.ID, disbursement.StateInAttesa, &comm)
	}
	approved := e.seed(t, disbursement.KindCompensation, owner.ID, disbursement.StateApprovato, &comm)

	t.Run("list community compensations", func(t *testing.T) {
		res := e.do(t, http.MethodGet, fmt.Sprintf("/communities/%s/compensations?state=in_attesa", comm.String()), bossToken, nil)
		require.Equal(t, http.StatusOK, res.Code)
		var body struct {
			Requests []requestResponse `json:"requests"`
		}
		testutil.DecodeJSON(t, res, &body)
		assert.Len(t, body.Requests, 2)
	})

	t.Run("list community with unknown state filter is 422", func(t *testing.T) {
		res := e.do(t, http.MethodGet, fmt.Sprintf("/communities/%s/compensations?state=pending", comm.String()), bossToken, nil)
		testutil.AssertErrorCode(t, res, http.StatusUnprocessableEntity, "validation_failed")
	})

	t.Run("approve-all", func(t *testing.T) {
		res := e.do(t, http.MethodPost, fmt.Sprintf("/communities/%s/approve-all", comm.String()), bossToken, nil)
		require.Equal(t, http.StatusOK, res.Code)
		var body map[string]int
		testutil.DecodeJSON(t, res, &body)
		assert.Equal(t, 2, body["updated_count"])
	})

	t.Run("approve-all outside granted community is 403", func(t *testing.T) {
		res := e.do(t, http.MethodPost, fmt.Sprintf("/communities/%s/approve-all", uuid.NewString()), bossToken, nil)
		testutil.AssertErrorCode(t, res, http.StatusForbidden, "forbidden")
	})

	t.Run("mark-paid", func(t *testing.T) {
		res := e.do(t, http.MethodPost, "/mark-paid", adminToken, map[string]any{
			"table":             "compensations",
			"ids":               []string{approved.ID.String()},
			"payment_reference": "SEPA-2026-007",
		})
		require.Equal(t, http.StatusOK, res.Code)
		var body map[string]int
		testutil.DecodeJSON(t, res, &body)
		assert.Equal(t, 1, body["updated_count"])
	})

	t.Run("mark-paid without admin role is 403", func(t *testing.T) {
		res := e.do(t, http.MethodPost, "/mark-paid", bossToken, map[string]any{
			"table": "compensations",
			"ids":   []string{approved.ID.String()},
		})
		testutil.AssertErrorCode(t, res, http.StatusForbidden, "forbidden")
	})

	t.Run("mark-paid with unknown table is 422", func(t *testing.T) {
		res := e.do(t, http.MethodPost, "/mark-paid", adminToken, map[string]any{
			"table": "invoices",
			"ids":   []string{approved.ID.String()},
		})
		testutil.AssertErrorCode(t, res, http.StatusUnprocessableEntity, "validation_failed")
	})
}
