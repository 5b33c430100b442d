package middleware

// context.go defines the single canonical contract between the
// authentication gate and downstream handlers: the gate stores the resolved
// account id, role, and the raw bearer token under fixed context keys, and
// handlers read them back through typed helpers instead of re-parsing claims.

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	ctxKeyAccountID = "account_id"
	ctxKeyRole      = "account_role"
	ctxKeyToken     = "session_token"
	ctxKeyTokenExp  = "session_token_exp"
)

// ErrNoIdentity is returned by the context helpers when the gate has not run
// for this request.
var ErrNoIdentity = errors.New("no authenticated identity in context")

// AccountID returns the authenticated account id attached by the gate.
func AccountID(c echo.Context) (uint64, error) {
	id, ok := c.Get(ctxKeyAccountID).(uint64)
	if !ok || id == 0 {
		return 0, ErrNoIdentity
	}
	return id, nil
}

// Role returns the authenticated account's role, or "" when absent.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxKeyRole).(string)
	return r
}

// Token returns the raw bearer token the gate accepted, for logout flows.
func Token(c echo.Context) (string, error) {
	t, ok := c.Get(ctxKeyToken).(string)
	if !ok || t == "" {
		return "", ErrNoIdentity
	}
	return t, nil
}

// TokenExpiry returns the accepted token's expiry as decoded by the gate.
func TokenExpiry(c echo.Context) time.Time {
	exp, _ := c.Get(ctxKeyTokenExp).(time.Time)
	return exp
}
