package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework used for routing

	"github.com/moviesaw/auth-service/internal/handler"    // handlers implementing the endpoints
	"github.com/moviesaw/auth-service/internal/middleware" // authentication gate, admin check, rate limiter
)

// Deps carries everything route registration needs.
type Deps struct {
	Auth      *handler.AuthHandler
	OAuth     *handler.OAuthHandler
	Admin     *handler.AdminHandler
	Health    *handler.HealthHandler
	Gate      *middleware.Gate
	RateLimit echo.MiddlewareFunc
}

// Register wires all routes. Credential endpoints sit behind the rate
// limiter; everything under the protected group passes the authentication
// gate first, and the admin group adds the capability check on top.
func Register(e *echo.Echo, d Deps) {
	// Liveness/readiness for load balancers and monitoring.
	e.GET("/healthz", d.Health.Health)

	// Unauthenticated flows: register, login, email verification, and the
	// OAuth redirect dance. All of them accept credentials or secrets, so
	// the token-bucket limiter applies.
	g := e.Group("/v1/auth", d.RateLimit)
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/verify-email", d.Auth.VerifyEmail)
	g.POST("/resend-verification", d.Auth.ResendVerification)
	g.GET("/google", d.OAuth.GoogleLogin)
	g.GET("/google/callback", d.OAuth.GoogleCallback)
	g.GET("/github", d.OAuth.GitHubLogin)
	g.GET("/github/callback", d.OAuth.GitHubCallback)

	// Protected endpoints: every request passes the full gate (revocation,
	// signature, expiry, account, membership) before the handler runs.
	auth := e.Group("/v1", d.Gate.Middleware())
	auth.POST("/auth/logout", d.Auth.Logout)
	auth.GET("/me", d.Auth.Me)

	// Admin maintenance, layered behind gate + capability check.
	admin := auth.Group("/admin", middleware.RequireAdmin())
	admin.DELETE("/accounts/:id", d.Admin.DeleteAccount)
}
