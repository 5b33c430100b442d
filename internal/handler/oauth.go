package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	githubep "golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/moviesaw/auth-service/internal/config"
	"github.com/moviesaw/auth-service/internal/model"
	"github.com/moviesaw/auth-service/internal/repository"
	"github.com/moviesaw/auth-service/internal/service"
)

const githubAPI = "https://api.github.com"

// OAuthHandler implements the Google and GitHub sign-in flows. Both funnel
// into the same merge logic (service.ProviderSignIn) and the same session
// issuance as password login.
type OAuthHandler struct {
	Cfg    config.Config
	Auth   *AuthHandler
	SignIn *service.ProviderSignIn
	Log    *logrus.Logger

	googleCfg      *oauth2.Config
	googleVerifier *oidc.IDTokenVerifier
	githubCfg      *oauth2.Config

	stateCookie string
	nonceCookie string
}

// NewOAuthHandler wires the configured providers. A provider with no client
// id stays nil and its routes answer 404. Google uses OIDC discovery, which
// requires network access at startup.
func NewOAuthHandler(ctx context.Context, cfg config.Config, auth *AuthHandler, signIn *service.ProviderSignIn, log *logrus.Logger) (*OAuthHandler, error) {
	h := &OAuthHandler{
		Cfg:         cfg,
		Auth:        auth,
		SignIn:      signIn,
		Log:         log,
		stateCookie: cfg.CookieName + "_oauth_state",
		nonceCookie: cfg.CookieName + "_oauth_nonce",
	}

	if cfg.GoogleClientID != "" {
		provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
		if err != nil {
			return nil, fmt.Errorf("oidc provider: %w", err)
		}
		h.googleCfg = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.OAuthRedirectBase + "/v1/auth/google/callback",
			Endpoint:     google.Endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		}
		h.googleVerifier = provider.Verifier(&oidc.Config{ClientID: cfg.GoogleClientID})
	}

	if cfg.GitHubClientID != "" {
		h.githubCfg = &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.OAuthRedirectBase + "/v1/auth/github/callback",
			Endpoint:     githubep.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		}
	}

	return h, nil
}

// GoogleLogin starts the Google flow: random state and nonce in HTTP-only
// cookies, then a redirect to the consent screen.
func (h *OAuthHandler) GoogleLogin(c echo.Context) error {
	if h.googleCfg == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "google sign-in disabled"})
	}
	state, err := randomState()
	if err != nil {
		return h.Auth.internal(c, "generate oauth state", err)
	}
	nonce, err := randomState()
	if err != nil {
		return h.Auth.internal(c, "generate oauth nonce", err)
	}
	h.setFlowCookie(c, h.stateCookie, state)
	h.setFlowCookie(c, h.nonceCookie, nonce)

	url := h.googleCfg.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
		oauth2.SetAuthURLParam("nonce", nonce),
	)
	return c.Redirect(http.StatusFound, url)
}

// GoogleCallback verifies the returned id_token (signature, audience,
// nonce) and hands the asserted identity to the merge flow.
func (h *OAuthHandler) GoogleCallback(c echo.Context) error {
	if h.googleCfg == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "google sign-in disabled"})
	}
	code, err := h.takeState(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid oauth callback"})
	}
	expectedNonce := h.takeCookie(c, h.nonceCookie)
	if expectedNonce == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid oauth callback"})
	}

	ctx := c.Request().Context()
	tok, err := h.googleCfg.Exchange(ctx, code)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "code exchange failed"})
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "no id_token in response"})
	}
	idToken, err := h.googleVerifier.Verify(ctx, rawIDToken)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "id_token verification failed"})
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		Nonce         string `json:"nonce"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "invalid id_token claims"})
	}
	if claims.Sub == "" || claims.Email == "" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "incomplete google account"})
	}
	if claims.Nonce == "" || claims.Nonce != expectedNonce {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid nonce"})
	}

	return h.finish(c, service.ExternalIdentity{
		Provider:      model.AuthMethodGoogle,
		Subject:       claims.Sub,
		Email:         claims.Email,
		Name:          claims.Name,
		Avatar:        claims.Picture,
		EmailVerified: claims.EmailVerified,
	})
}

// GitHubLogin starts the GitHub flow with a state cookie.
func (h *OAuthHandler) GitHubLogin(c echo.Context) error {
	if h.githubCfg == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "github sign-in disabled"})
	}
	state, err := randomState()
	if err != nil {
		return h.Auth.internal(c, "generate oauth state", err)
	}
	h.setFlowCookie(c, h.stateCookie, state)
	return c.Redirect(http.StatusFound, h.githubCfg.AuthCodeURL(state))
}

// GitHubCallback exchanges the code, looks up the user and their primary
// email over the REST API, and hands the identity to the merge flow. GitHub
// reports per-address verification, which is what gates auto-linking.
func (h *OAuthHandler) GitHubCallback(c echo.Context) error {
	if h.githubCfg == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "github sign-in disabled"})
	}
	code, err := h.takeState(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid oauth callback"})
	}

	ctx := c.Request().Context()
	tok, err := h.githubCfg.Exchange(ctx, code)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "code exchange failed"})
	}
	client := h.githubCfg.Client(ctx, tok)

	var ghUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, githubAPI+"/user", &ghUser); err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "github user lookup failed"})
	}
	if ghUser.ID == 0 {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "incomplete github account"})
	}

	email, verified := ghUser.Email, false
	var ghEmails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, githubAPI+"/user/emails", &ghEmails); err == nil {
		for _, e := range ghEmails {
			if e.Primary {
				email, verified = e.Email, e.Verified
				break
			}
		}
		if email == "" && len(ghEmails) > 0 {
			email, verified = ghEmails[0].Email, ghEmails[0].Verified
		}
	}
	if email == "" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "github account has no usable email"})
	}

	name := ghUser.Name
	if name == "" {
		name = ghUser.Login
	}
	return h.finish(c, service.ExternalIdentity{
		Provider:      model.AuthMethodGitHub,
		Subject:       strconv.FormatInt(ghUser.ID, 10),
		Email:         email,
		Name:          name,
		Avatar:        ghUser.AvatarURL,
		EmailVerified: verified,
	})
}

// finish runs the merge flow and issues a session for the resolved account.
func (h *OAuthHandler) finish(c echo.Context, id service.ExternalIdentity) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	acct, err := h.SignIn.SignIn(ctx, id)
	switch {
	case err == nil:
		return h.Auth.IssueSession(c, acct)
	case errors.Is(err, service.ErrLinkingRequiresVerification):
		return c.JSON(http.StatusForbidden, echo.Map{
			"error": "an account already exists for this email; sign in with your existing method first",
		})
	case errors.Is(err, repository.ErrAlreadyLinked):
		return c.JSON(http.StatusConflict, echo.Map{"error": "provider identity conflict"})
	default:
		return h.Auth.internal(c, "provider sign-in", err)
	}
}

// takeState validates the state query parameter against the state cookie
// and clears it, returning the authorization code.
func (h *OAuthHandler) takeState(c echo.Context) (string, error) {
	state := c.QueryParam("state")
	code := c.QueryParam("code")
	if state == "" || code == "" {
		return "", errors.New("missing state or code")
	}
	stored := h.takeCookie(c, h.stateCookie)
	if stored == "" || stored != state {
		return "", errors.New("state mismatch")
	}
	return code, nil
}

func (h *OAuthHandler) setFlowCookie(c echo.Context, name, value string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(10 * time.Minute),
	})
}

// takeCookie reads a flow cookie and immediately expires it.
func (h *OAuthHandler) takeCookie(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	if err != nil {
		return ""
	}
	return ck.Value
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// randomState returns 32 bytes of secure randomness, URL-safe encoded.
func randomState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
