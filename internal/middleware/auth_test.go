package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/moviesaw/auth-service/internal/model"
	"github.com/moviesaw/auth-service/internal/repository"
	"github.com/moviesaw/auth-service/internal/session"
	"github.com/moviesaw/auth-service/internal/utils"
)

type fakeAccounts struct {
	accounts map[uint64]model.Account
}

func (f *fakeAccounts) GetByID(_ context.Context, id uint64) (model.Account, error) {
	if a, ok := f.accounts[id]; ok {
		return a, nil
	}
	return model.Account{}, repository.ErrNotFound
}

type gateFixture struct {
	gate     *Gate
	issuer   *utils.Issuer
	registry *session.Registry
	tracker  *session.Tracker
	accounts *fakeAccounts
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	issuer := utils.NewIssuer("gate-secret", time.Hour)
	registry := session.NewRegistry(rdb, time.Hour)
	tracker := session.NewTracker(rdb, 2, time.Hour)
	accounts := &fakeAccounts{accounts: map[uint64]model.Account{
		1: {ID: 1, Email: "viewer@example.com", Role: model.RoleUser, EmailVerified: true},
	}}

	return &gateFixture{
		gate: &Gate{
			Decoder:     issuer,
			Revocations: registry,
			Sessions:    tracker,
			Accounts:    accounts,
			CookieName:  "token",
		},
		issuer:   issuer,
		registry: registry,
		tracker:  tracker,
		accounts: accounts,
	}
}

// serve runs one request through the gate into a handler that echoes the
// resolved identity.
func (f *gateFixture) serve(t *testing.T, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := f.gate.Middleware()(func(c echo.Context) error {
		id, err := AccountID(c)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
	})
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func assertUniformReject(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	// Every rejection must be indistinguishable from the outside.
	if body["error"] != "not authenticated" {
		t.Fatalf("body = %v, want the uniform rejection", body)
	}
	if len(body) != 1 {
		t.Fatalf("rejection body leaks extra fields: %v", body)
	}
}

func TestGateRejectsMissingToken(t *testing.T) {
	f := newGateFixture(t)
	assertUniformReject(t, f.serve(t, nil))
}

func TestGateRejectsGarbageToken(t *testing.T) {
	f := newGateFixture(t)
	rec := f.serve(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not.a.jwt")
	})
	assertUniformReject(t, rec)
}

func TestGateRejectsExpiredToken(t *testing.T) {
	f := newGateFixture(t)
	expired, err := utils.NewIssuer("gate-secret", -time.Minute).Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec := f.serve(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+expired.Token)
	})
	assertUniformReject(t, rec)
}

func TestGateRejectsRevokedToken(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	tok, err := f.issuer.Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := f.tracker.Admit(ctx, 1, tok.Token); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if err := f.registry.Revoke(ctx, tok.Token, tok.Exp); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	rec := f.serve(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok.Token)
	})
	assertUniformReject(t, rec)
}

func TestGateRejectsUnknownAccount(t *testing.T) {
	f := newGateFixture(t)
	tok, err := f.issuer.Issue(99)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec := f.serve(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok.Token)
	})
	assertUniformReject(t, rec)
}

func TestGateRejectsSupersededSession(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	// Valid signature, live account, never revoked: still rejected once the
	// token falls out of the account's capped membership list.
	old, err := f.issuer.Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := f.tracker.Admit(ctx, 1, old.Token); err != nil {
		t.Fatalf("admit: %v", err)
	}
	for _, newer := range []string{"newer-1", "newer-2"} {
		if err := f.tracker.Admit(ctx, 1, newer); err != nil {
			t.Fatalf("admit %q: %v", newer, err)
		}
	}
	rec := f.serve(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+old.Token)
	})
	assertUniformReject(t, rec)
}

func TestGateAcceptsValidBearerToken(t *testing.T) {
	f := newGateFixture(t)
	tok, err := f.issuer.Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := f.tracker.Admit(context.Background(), 1, tok.Token); err != nil {
		t.Fatalf("admit: %v", err)
	}
	rec := f.serve(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok.Token)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		ID   uint64 `json:"id"`
		Role string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ID != 1 || body.Role != model.RoleUser {
		t.Fatalf("identity = %+v, want account 1 with role %q", body, model.RoleUser)
	}
}

func TestGateAcceptsCookieTransport(t *testing.T) {
	f := newGateFixture(t)
	tok, err := f.issuer.Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := f.tracker.Admit(context.Background(), 1, tok.Token); err != nil {
		t.Fatalf("admit: %v", err)
	}
	rec := f.serve(t, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "token", Value: tok.Token})
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestRequireAdmin(t *testing.T) {
	e := echo.New()
	handler := RequireAdmin()(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	run := func(role string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/v1/admin/accounts/1", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(ctxKeyAccountID, uint64(1))
		c.Set(ctxKeyRole, role)
		if err := handler(c); err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec
	}

	if rec := run(model.RoleUser); rec.Code != http.StatusForbidden {
		t.Fatalf("user role: status = %d, want 403", rec.Code)
	}
	if rec := run(model.RoleAdmin); rec.Code != http.StatusNoContent {
		t.Fatalf("admin role: status = %d, want 204", rec.Code)
	}
}
