package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/ticket-marketplace/internal/checkout"
	"github.com/iliyamo/ticket-marketplace/internal/config"
	"github.com/iliyamo/ticket-marketplace/internal/database"
	"github.com/iliyamo/ticket-marketplace/internal/handler"
	"github.com/iliyamo/ticket-marketplace/internal/logging"
	"github.com/iliyamo/ticket-marketplace/internal/queue"
	"github.com/iliyamo/ticket-marketplace/internal/repository"
	"github.com/iliyamo/ticket-marketplace/internal/router"
	"github.com/iliyamo/ticket-marketplace/internal/service"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.Env, cfg.LogLevel)
	log := logrus.WithField("env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("migrate schema")
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set; checkout endpoints will fail")
	}
	provider := checkout.NewStripe(cfg.StripeSecretKey, nil)

	events := queue.NewPublisher(cfg.RabbitURL)
	defer events.Close()

	users := repository.NewUserRepo(db)
	tickets := repository.NewTicketRepo(db)
	bookings := repository.NewBookingRepo(db)

	ticketSvc := service.NewTicketService(tickets, cfg.Timezone, cfg.AdvertiseLimit)
	bookingSvc := service.NewBookingService(tickets, bookings, events, cfg.Timezone)
	paymentSvc := service.NewPaymentService(bookings, repository.NewPaymentRepo(db), provider, events,
		service.PaymentConfig{Currency: cfg.CheckoutCurrency, ClientURL: cfg.ClientURL})
	userSvc := service.NewUserService(users, repository.NewVendorRequestRepo(db), events)

	e := router.New(router.Deps{
		Cfg:       cfg,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Redis:     rdb,
		DB:        db,
		Users:     users,
		Auth:      handler.NewAuthHandler(cfg, users, repository.NewTokenRepo(db)),
		Tickets:   handler.NewTicketHandler(ticketSvc),
		Bookings:  handler.NewBookingHandler(bookingSvc),
		Payments:  handler.NewPaymentHandler(paymentSvc),
		Accounts:  handler.NewUserHandler(userSvc),
	})

	audit, err := queue.NewAuditConsumer(cfg.RabbitURL, cfg.AuditLogDir)
	if err != nil {
		log.WithError(err).Fatal("open audit log")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.WithField("addr", addr).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return audit.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped with error")
	}
	log.Info("bye")
}
