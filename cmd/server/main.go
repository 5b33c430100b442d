package main // Entry point package

import (
	"context"
	"time"

	"github.com/joho/godotenv" // loads .env files in development
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/moviesaw/auth-service/internal/config"
	"github.com/moviesaw/auth-service/internal/database"
	"github.com/moviesaw/auth-service/internal/handler"
	"github.com/moviesaw/auth-service/internal/middleware"
	"github.com/moviesaw/auth-service/internal/notifier"
	"github.com/moviesaw/auth-service/internal/queue"
	"github.com/moviesaw/auth-service/internal/repository"
	"github.com/moviesaw/auth-service/internal/router"
	"github.com/moviesaw/auth-service/internal/service"
	"github.com/moviesaw/auth-service/internal/session"
	"github.com/moviesaw/auth-service/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set env vars directly

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()
	if cfg.Env == "dev" {
		log.SetFormatter(&logrus.TextFormatter{})
		log.SetLevel(logrus.DebugLevel)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}

	// Redis backs revocation and session membership; without it the gate
	// cannot prove a token was not logged out, so it is required.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Fatal("redis connection failed")
	}

	accounts := repository.NewAccountRepo(db)
	links := repository.NewIdentityLinkRepo(db)
	issuer := utils.NewIssuer(cfg.JWTSecret, cfg.SessionTTL)
	registry := session.NewRegistry(rdb, cfg.RevokedRetention)
	tracker := session.NewTracker(rdb, cfg.SessionCap, cfg.SessionTTL)

	// Outbound mail: queue-backed when a broker is configured, logged
	// otherwise. The retry decorator only retries transient failures.
	var mail notifier.Notifier
	if cfg.AMQPURL != "" {
		mail = notifier.NewQueueNotifier(cfg.AMQPURL)
		go queue.StartEmailConsumer(cfg.AMQPURL, log)
	} else {
		log.Warn("no RABBITMQ_URL configured, emails go to the application log")
		mail = &notifier.LogNotifier{Logger: log}
	}

	authHandler := &handler.AuthHandler{
		Cfg:      cfg,
		Accounts: accounts,
		Issuer:   issuer,
		Registry: registry,
		Tracker:  tracker,
		Mailer:   notifier.WithRetry(mail, log),
		Log:      log,
	}

	signIn := &service.ProviderSignIn{Accounts: accounts, Links: links, Log: log}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	oauthHandler, err := handler.NewOAuthHandler(ctx, cfg, authHandler, signIn, log)
	if err != nil {
		log.WithError(err).Fatal("oauth provider setup failed")
	}

	gate := &middleware.Gate{
		Decoder:     issuer,
		Revocations: registry,
		Sessions:    tracker,
		Accounts:    accounts,
		CookieName:  cfg.CookieName,
		Log:         log,
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()

	router.Register(e, router.Deps{
		Auth:      authHandler,
		OAuth:     oauthHandler,
		Admin:     &handler.AdminHandler{Auth: authHandler, Links: links, Tracker: tracker},
		Health:    &handler.HealthHandler{DB: db, Redis: rdb},
		Gate:      gate,
		RateLimit: middleware.RateLimit(config.LoadRateLimitConfig(), rdb, log),
	})

	addr := ":" + cfg.Port
	log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
	if err := e.Start(addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
