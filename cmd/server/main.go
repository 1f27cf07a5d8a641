package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"gestionale/internal/community"
	"gestionale/internal/disbursement/handler"
	disbmetrics "gestionale/internal/disbursement/metrics"
	"gestionale/internal/disbursement/service"
	"gestionale/internal/disbursement/store"
	"gestionale/internal/history"
	"gestionale/internal/identity"
	"gestionale/internal/notification"
	"gestionale/internal/platform/config"
	"gestionale/internal/platform/httpserver"
	"gestionale/internal/platform/logger"
	"gestionale/internal/platform/middleware"
	platformredis "gestionale/internal/platform/redis"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Error("database unreachable", "error", err.Error())
		os.Exit(1)
	}

	// Delivery settings, optionally fronted by Redis.
	var settings notification.SettingsStore = notification.NewPostgresSettings(db)
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		settings = notification.NewCachedSettings(settings, redisClient.Client, cfg.SettingsCacheTTL)
	}

	notifMetrics := notification.NewMetrics()
	emails := make(chan notification.Payload, cfg.EmailQueueSize)
	inbox := notification.NewPostgresInbox(db)
	dispatcher := notification.NewDispatcher(settings, inbox, emails, log, notifMetrics)

	recorder := history.NewRecorder(history.NewPostgres(db), log, history.NewMetrics())

	svc := service.New(
		store.NewPostgres(db),
		community.NewPostgresGrants(db),
		recorder,
		dispatcher,
		log,
		disbmetrics.New(),
	)

	jwtService := identity.NewJWTService(cfg.JWTSigningKey, "gestionale")

	router := chi.NewRouter()
	router.Use(middleware.Timeout(cfg.RequestTimeout))
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	notification.NewHandler(inbox, log, jwtService).Register(router)
	handler.New(svc, log, jwtService).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// Email worker only runs when a broker is configured; the dispatcher
	// still fills the queue either way, so a full queue just drops.
	if cfg.AMQPURL != "" {
		sink, err := notification.NewAMQPSink(cfg.AMQPURL, cfg.NotificationExchange)
		if err != nil {
			log.Error("failed to connect to amqp", "error", err.Error())
			os.Exit(1)
		}
		defer sink.Close()
		worker := notification.NewWorker(sink, emails, log, notifMetrics)
		group.Go(func() error {
			err := worker.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	group.Go(func() error {
		log.Info("starting gestionale", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err.Error())
		os.Exit(1)
	}
}
