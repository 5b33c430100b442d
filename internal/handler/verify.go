package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/moviesaw/auth-service/internal/model"
	"github.com/moviesaw/auth-service/internal/repository"
)

type verifyEmailReq struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required"`
}
type resendVerificationReq struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyEmail consumes a pending verification token. The token is single
// use: once it confirms, or once a resend replaces it, the old value stops
// matching.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	err := h.Accounts.ConfirmVerification(ctx, strings.ToLower(strings.TrimSpace(req.Email)), req.Token)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
	case errors.Is(err, repository.ErrAlreadyVerified):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already verified"})
	case errors.Is(err, repository.ErrInvalidVerification), errors.Is(err, repository.ErrNotFound):
		// An unknown address and a stale token answer identically.
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid verification token"})
	default:
		return h.internal(c, "confirm verification", err)
	}
}

// ResendVerification rotates the pending token for an unverified local
// account and dispatches it again, invalidating whatever token was mailed
// before. Unknown addresses get the same response as successful resends so
// the endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req resendVerificationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	acct, err := h.Accounts.FindByEmailAndMethod(ctx, email, model.AuthMethodLocal)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"message": "if the address exists, a verification email was sent"})
		}
		return h.internal(c, "lookup account", err)
	}
	if acct.EmailVerified {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already verified"})
	}

	token, err := h.Accounts.RotateVerificationToken(ctx, acct.ID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyVerified) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already verified"})
		}
		return h.internal(c, "rotate verification token", err)
	}
	if err := h.sendVerification(ctx, acct.Email, token); err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "verification email could not be sent"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "if the address exists, a verification email was sent"})
}
