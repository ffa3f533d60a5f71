package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/arashfz/cinebook/internal/config"
	"github.com/arashfz/cinebook/internal/database"
	"github.com/arashfz/cinebook/internal/handler"
	"github.com/arashfz/cinebook/internal/logger"
	"github.com/arashfz/cinebook/internal/middleware"
	"github.com/arashfz/cinebook/internal/queue"
	"github.com/arashfz/cinebook/internal/repository"
	"github.com/arashfz/cinebook/internal/reservation"
	"github.com/arashfz/cinebook/internal/router"
)

func main() {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()
	cfg := config.Load()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	defer func() { _ = db.Close() }()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, seat-map cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	screenings := repository.NewScreeningRepo(db)
	bookings := repository.NewBookingRepo(db)

	publisher := queue.NewPublisher(cfg.RabbitURL, log)
	svc := reservation.NewService(screenings, bookings, publisher, rdb, cfg.SeatMapCacheTTL, log)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(users, cfg.JWTSecret, cfg.AccessTTLMin, cfg.BcryptCost), cfg.JWTSecret)
	router.RegisterUsers(e, handler.NewUserHandler(users.Records()), cfg.JWTSecret, limiter)
	router.RegisterScreenings(e, handler.NewScreeningHandler(screenings), cfg.JWTSecret, limiter)
	router.RegisterReservations(e, handler.NewReservationHandler(svc, bookings), cfg.JWTSecret, limiter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := queue.StartConsumer(ctx, cfg.RabbitURL, log)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		return e.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", "error", err)
	}
	log.Info("shutdown complete")
}
