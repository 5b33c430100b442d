package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/moviesaw/auth-service/internal/repository"
	"github.com/moviesaw/auth-service/internal/session"
)

// AdminHandler exposes maintenance operations behind the admin capability
// check. Account deletion reconciles the weak references other stores hold:
// identity links are dropped and the session list cleared, so nothing keeps
// resolving to the removed account.
type AdminHandler struct {
	Auth    *AuthHandler
	Links   *repository.IdentityLinkRepo
	Tracker *session.Tracker
}

// DeleteAccount removes an account and its dependent auth state. Already
// revoked tokens stay in the registry until their retention lapses; any
// still-live token dies at the gate's account-resolution step once the row
// is gone.
func (h *AdminHandler) DeleteAccount(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Auth.Accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return h.Auth.internal(c, "delete account", err)
	}
	if err := h.Links.DeleteForAccount(ctx, id); err != nil {
		return h.Auth.internal(c, "reconcile identity links", err)
	}
	if err := h.Tracker.Clear(ctx, id); err != nil {
		return h.Auth.internal(c, "clear sessions", err)
	}
	return c.NoContent(http.StatusNoContent)
}
