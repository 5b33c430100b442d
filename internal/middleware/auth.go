package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/moviesaw/auth-service/internal/model"
	"github.com/moviesaw/auth-service/internal/repository"
	"github.com/moviesaw/auth-service/internal/utils"
)

// Internal rejection reasons. These never reach the client; every rejection
// is surfaced as the same 401 body so callers cannot probe which check
// failed, but the precise reason is logged for diagnostics.
const (
	rejectNoToken           = "no_token"
	rejectRevoked           = "revoked"
	rejectInvalidSignature  = "invalid_signature"
	rejectExpired           = "expired"
	rejectAccountNotFound   = "account_not_found"
	rejectSessionSuperseded = "session_superseded"
	rejectStoreFailure      = "store_failure"
)

// TokenDecoder verifies a bearer token's signature and expiry.
type TokenDecoder interface {
	Decode(raw string) (utils.TokenClaims, error)
}

// RevocationChecker answers whether a token was explicitly logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MembershipChecker answers whether a token is still one of the account's
// capped set of current sessions.
type MembershipChecker interface {
	IsMember(ctx context.Context, accountID uint64, token string) (bool, error)
}

// AccountResolver loads the account a decoded token points at.
type AccountResolver interface {
	GetByID(ctx context.Context, id uint64) (model.Account, error)
}

// Gate bundles everything the authentication gate consults before admitting
// a request.
type Gate struct {
	Decoder     TokenDecoder
	Revocations RevocationChecker
	Sessions    MembershipChecker
	Accounts    AccountResolver
	CookieName  string
	Log         *logrus.Logger
}

// Middleware returns the gate as an Echo middleware. The checks run in a
// fixed order: extract, revocation, decode, account resolution, membership.
// Only a token that passes all five attaches an identity to the context.
func (g *Gate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c, g.CookieName)
			if token == "" {
				return g.reject(c, rejectNoToken, nil)
			}

			ctx := c.Request().Context()

			revoked, err := g.Revocations.IsRevoked(ctx, token)
			if err != nil {
				// Fail closed: without the registry we cannot prove the
				// token was not logged out.
				return g.reject(c, rejectStoreFailure, err)
			}
			if revoked {
				return g.reject(c, rejectRevoked, nil)
			}

			claims, err := g.Decoder.Decode(token)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					return g.reject(c, rejectExpired, nil)
				}
				return g.reject(c, rejectInvalidSignature, nil)
			}

			acct, err := g.Accounts.GetByID(ctx, claims.AccountID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return g.reject(c, rejectAccountNotFound, nil)
				}
				return g.reject(c, rejectStoreFailure, err)
			}

			member, err := g.Sessions.IsMember(ctx, acct.ID, token)
			if err != nil {
				return g.reject(c, rejectStoreFailure, err)
			}
			if !member {
				return g.reject(c, rejectSessionSuperseded, nil)
			}

			c.Set(ctxKeyAccountID, acct.ID)
			c.Set(ctxKeyRole, acct.Role)
			c.Set(ctxKeyToken, token)
			c.Set(ctxKeyTokenExp, claims.Exp)
			return next(c)
		}
	}
}

// reject logs the internal reason and answers with the uniform body shared
// by every authentication failure.
func (g *Gate) reject(c echo.Context, reason string, err error) error {
	if g.Log != nil {
		fields := logrus.Fields{
			"reason":    reason,
			"remote_ip": c.RealIP(),
			"path":      c.Request().URL.Path,
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		g.Log.WithFields(fields).Warn("request rejected by auth gate")
	}
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
}

// extractToken pulls the bearer token from the recognized transports: the
// session cookie first, then the Authorization header.
func extractToken(c echo.Context, cookieName string) string {
	if cookieName != "" {
		if ck, err := c.Cookie(cookieName); err == nil && ck.Value != "" {
			return ck.Value
		}
	}
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
