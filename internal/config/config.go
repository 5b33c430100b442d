package config // package config loads application configuration from environment variables

import (
	"log"     // log reports configuration errors and halts execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses durations for TTL values
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Required variables are enforced by must() and
// missing values cause the program to exit; optional ones fall back to the
// defaults documented next to each field.
type Config struct {
	Env  string // application environment (dev/test/prod)
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret        string        // secret used to sign session tokens
	SessionTTL       time.Duration // session token lifetime (default 168h)
	SessionCap       int           // max simultaneous sessions per account (default 2)
	RevokedRetention time.Duration // how long revocation records outlive token expiry (default 168h)
	BcryptCost       int           // bcrypt cost for password hashing (default 10)

	CookieName   string // session cookie name (default "token")
	CookieSecure bool   // set the Secure flag on session cookies
	ClientURL    string // frontend origin used in verification links

	GoogleClientID     string // Google OAuth client id (empty disables Google sign-in)
	GoogleClientSecret string // Google OAuth client secret
	GitHubClientID     string // GitHub OAuth client id (empty disables GitHub sign-in)
	GitHubClientSecret string // GitHub OAuth client secret
	OAuthRedirectBase  string // public base URL receiving provider callbacks

	AMQPURL string // RabbitMQ URL for the email queue (empty falls back to log notifier)
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must(); missing values cause
// the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"), // empty allowed
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTSecret:        must("JWT_SECRET"),
		SessionTTL:       envDur("SESSION_TTL", 168*time.Hour),
		SessionCap:       envInt("SESSION_CAP", 2),
		RevokedRetention: envDur("REVOKED_RETENTION", 168*time.Hour),
		BcryptCost:       envInt("BCRYPT_COST", 10),

		CookieName:   envStr("SESSION_COOKIE_NAME", "token"),
		CookieSecure: envBool("SESSION_COOKIE_SECURE", false),
		ClientURL:    envStr("CLIENT_URL", "http://localhost:3000"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		OAuthRedirectBase:  envStr("OAUTH_REDIRECT_BASE", "http://localhost:3001"),

		AMQPURL: os.Getenv("RABBITMQ_URL"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	case "0", "false", "FALSE", "False", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
