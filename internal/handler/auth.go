package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/moviesaw/auth-service/internal/config"
	"github.com/moviesaw/auth-service/internal/middleware"
	"github.com/moviesaw/auth-service/internal/model"
	"github.com/moviesaw/auth-service/internal/notifier"
	"github.com/moviesaw/auth-service/internal/repository"
	"github.com/moviesaw/auth-service/internal/session"
	"github.com/moviesaw/auth-service/internal/utils"
)

// dbTimeout bounds every store call made from a handler.
const dbTimeout = 5 * time.Second

// AccountStore is the slice of the credential store the handlers consume,
// satisfied by repository.AccountRepo. The indirection keeps the
// registration and verification flows testable against an in-memory store.
type AccountStore interface {
	CreateLocal(ctx context.Context, name, email, password string, cost int) (model.Account, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	FindByEmailAndMethod(ctx context.Context, email, method string) (model.Account, error)
	VerifyPassword(a model.Account, password string) (bool, error)
	RotateVerificationToken(ctx context.Context, id uint64) (string, error)
	ConfirmVerification(ctx context.Context, email, token string) error
	Delete(ctx context.Context, id uint64) error
}

// AuthHandler bundles dependencies for the local-credential endpoints:
// register, login, logout and profile.
type AuthHandler struct {
	Cfg      config.Config
	Accounts AccountStore
	Issuer   *utils.Issuer
	Registry *session.Registry
	Tracker  *session.Tracker
	Mailer   notifier.Notifier
	Log      *logrus.Logger
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type accountView struct {
	ID            uint64 `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Avatar        string `json:"avatar,omitempty"`
	Role          string `json:"role"`
	AuthMethod    string `json:"auth_method"`
	EmailVerified bool   `json:"email_verified"`
}

type sessionResp struct {
	Token   string      `json:"token"`
	Expires time.Time   `json:"expires"`
	User    accountView `json:"user"`
}

func viewOf(a model.Account) accountView {
	return accountView{
		ID:            a.ID,
		Name:          a.Name,
		Email:         a.Email,
		Avatar:        a.Avatar,
		Role:          a.Role,
		AuthMethod:    a.AuthMethod,
		EmailVerified: a.EmailVerified,
	}
}

// Register creates a local account and queues its verification mail. No
// session token is issued: login stays blocked until the email is
// confirmed. Registering an address that already has an unverified local
// account rotates the verification token and resends it instead of
// conflicting; a verified account is a hard conflict.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if existing, err := h.Accounts.FindByEmailAndMethod(ctx, req.Email, model.AuthMethodLocal); err == nil {
		return h.reRegister(c, ctx, existing)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return h.internal(c, "lookup account", err)
	}

	acct, err := h.Accounts.CreateLocal(ctx, strings.TrimSpace(req.Name), req.Email, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateAccount) {
			// Lost a race with a concurrent registration for the same email.
			// The winner's row decides the outcome, exactly as if it had
			// existed before this request started.
			existing, lerr := h.Accounts.FindByEmailAndMethod(ctx, req.Email, model.AuthMethodLocal)
			if lerr != nil {
				return h.internal(c, "resolve winning registration", lerr)
			}
			return h.reRegister(c, ctx, existing)
		}
		return h.internal(c, "create account", err)
	}
	if err := h.sendVerification(ctx, acct.Email, acct.VerificationToken); err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "verification email could not be sent"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"user":    viewOf(acct),
		"message": "verification email sent",
	})
}

// reRegister resolves a registration that hit an existing local account: a
// verified account is a hard conflict, an unverified one gets its pending
// token rotated and re-sent. Shared by the sequential duplicate check and
// the lost-race branch so both interleavings answer identically.
func (h *AuthHandler) reRegister(c echo.Context, ctx context.Context, acct model.Account) error {
	if acct.EmailVerified {
		return c.JSON(http.StatusConflict, echo.Map{"error": "account already exists"})
	}
	token, err := h.Accounts.RotateVerificationToken(ctx, acct.ID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyVerified) {
			// Verified between the lookup and the rotation.
			return c.JSON(http.StatusConflict, echo.Map{"error": "account already exists"})
		}
		return h.internal(c, "rotate verification token", err)
	}
	if err := h.sendVerification(ctx, acct.Email, token); err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "verification email could not be sent"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "verification email re-sent"})
}

// Login authenticates a local account. Verification status is checked
// strictly before the password so the response shape never reveals whether
// the password would have matched for an unverified address.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	acct, err := h.Accounts.FindByEmailAndMethod(ctx, req.Email, model.AuthMethodLocal)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return h.internal(c, "lookup account", err)
	}

	if !acct.EmailVerified {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "email not verified"})
	}

	ok, err := h.Accounts.VerifyPassword(acct, req.Password)
	if err != nil || !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	return h.IssueSession(c, acct)
}

// Logout revokes the current token and removes it from the account's
// session list. Both operations are idempotent, so logging out an already
// revoked token succeeds quietly.
func (h *AuthHandler) Logout(c echo.Context) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	token, err := middleware.Token(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Registry.Revoke(ctx, token, middleware.TokenExpiry(c)); err != nil {
		return h.internal(c, "revoke token", err)
	}
	if err := h.Tracker.Remove(ctx, accountID, token); err != nil {
		return h.internal(c, "drop session membership", err)
	}

	h.clearCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated account, password hash omitted.
func (h *AuthHandler) Me(c echo.Context) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	acct, err := h.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return h.internal(c, "load account", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": viewOf(acct)})
}

// IssueSession mints a token for the account, admits it into the bounded
// session list (evicting the oldest beyond the cap) and delivers it both as
// an HTTP-only cookie and in the JSON body. Shared by the password and
// provider login flows.
func (h *AuthHandler) IssueSession(c echo.Context, acct model.Account) error {
	tok, err := h.Issuer.Issue(acct.ID)
	if err != nil {
		return h.internal(c, "issue token", err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Tracker.Admit(ctx, acct.ID, tok.Token); err != nil {
		return h.internal(c, "admit session", err)
	}

	c.SetCookie(&http.Cookie{
		Name:     h.Cfg.CookieName,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.Exp,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, sessionResp{Token: tok.Token, Expires: tok.Exp, User: viewOf(acct)})
}

func (h *AuthHandler) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.Cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sendVerification renders and dispatches the verification mail through the
// notifier, which applies the bounded retry policy internally.
func (h *AuthHandler) sendVerification(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/verify-email?email=%s&token=%s", h.Cfg.ClientURL, email, token)
	body := fmt.Sprintf("Welcome to Moviesaw! Confirm your email address by opening %s", link)
	if err := h.Mailer.Send(ctx, email, "Verify your email address", body); err != nil {
		h.Log.WithError(err).WithField("to", email).Error("verification mail dispatch failed")
		return err
	}
	return nil
}

// internal logs an unexpected failure with its cause and answers with an
// opaque 500 so no internals leak to the client.
func (h *AuthHandler) internal(c echo.Context, op string, err error) error {
	h.Log.WithError(err).WithField("op", op).Error("internal error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}
