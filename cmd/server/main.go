package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/venue-scan/internal/config"
	"github.com/iliyamo/venue-scan/internal/database"
	"github.com/iliyamo/venue-scan/internal/handler"
	"github.com/iliyamo/venue-scan/internal/middleware"
	"github.com/iliyamo/venue-scan/internal/model"
	"github.com/iliyamo/venue-scan/internal/queue"
	"github.com/iliyamo/venue-scan/internal/repository"
	"github.com/iliyamo/venue-scan/internal/router"
	"github.com/iliyamo/venue-scan/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	db, err := openDB(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("database: %v", err)
	}

	events := repository.NewEventRepo(db)
	guests := repository.NewGuestRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	perms := repository.NewPermissionRepo(db)
	invitations := repository.NewInvitationRepo(db)

	if err := seedAdmin(cfg, users); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	publisher := service.NewPublisher(cfg.AMQPURL)
	issuer := service.NewTokenIssuer(guests, cfg.QRBaseURL)
	validator := service.NewScanValidator(guests, events, perms, publisher, cfg.ScanAttempts)
	dispatcher := service.NewInvitationService(events, guests, issuer, invitations,
		&service.LogSender{Path: filepath.Join(cfg.LogDir, "invitations.log")})

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.BodyLimit("20M"))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterUsers(e, handler.NewUserHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterEvents(e, router.EventRoutes{
		Events:      handler.NewEventHandler(events, guests, issuer),
		Reports:     handler.NewReportHandler(events, guests),
		Permissions: handler.NewPermissionHandler(events, users, perms),
		Invitations: handler.NewInvitationHandler(events, invitations, publisher, dispatcher),
		Scan:        handler.NewScanHandler(validator),
		RateLimit:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:       middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	}, cfg.JWTSecret)
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runConsumer(ctx, cfg.AMQPURL, queue.CheckedInQueue, "checkin-consumer",
		queue.CheckInLogHandler(filepath.Join(cfg.LogDir, "checkin.log")))
	go runConsumer(ctx, cfg.AMQPURL, queue.InvitationsRequestQueue, "invitation-consumer",
		queue.InvitationHandler(func(ctx context.Context, ev queue.InvitationRequestedEvent) error {
			rep, err := dispatcher.Dispatch(ctx, ev)
			if err == nil {
				log.Printf("invitations: event %s guests=%d sent=%d failed=%d", ev.EventID, rep.Guests, rep.Sent, rep.Failed)
			}
			return err
		}))

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func openDB(cfg config.Config) (*sql.DB, error) {
	if cfg.DBDriver == "sqlite3" {
		return database.OpenSQLite(cfg.DBPath)
	}
	return database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

func runConsumer(ctx context.Context, url, queueName, component string, h queue.Handler) {
	if err := queue.Run(ctx, url, queueName, component, h); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("%s: stopped: %v", component, err)
	}
}

// seedAdmin creates the bootstrap administrator from ADMIN_EMAIL and
// ADMIN_PASSWORD when no account with that email exists.
func seedAdmin(cfg config.Config, users *repository.UserRepo) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := users.GetByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}
	_, err = users.Create(ctx, repository.NewUser{
		Email:     cfg.AdminEmail,
		Password:  cfg.AdminPassword,
		FirstName: "Admin",
		Role:      model.RoleAdmin,
	}, cfg.BcryptCost)
	if err == nil {
		log.Printf("created administrator %s", cfg.AdminEmail)
	}
	return err
}
