// Command server runs the lifeline API: blood request intake, tiered donor
// matching and the notification lifecycle behind one HTTP surface.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"lifeline/internal/donor"
	donorstore "lifeline/internal/donor/store"
	"lifeline/internal/events"
	"lifeline/internal/hospital"
	hospitalstore "lifeline/internal/hospital/store"
	"lifeline/internal/jwttoken"
	"lifeline/internal/matching"
	matchingmetrics "lifeline/internal/matching/metrics"
	"lifeline/internal/notify"
	"lifeline/internal/platform/config"
	"lifeline/internal/platform/httpserver"
	"lifeline/internal/platform/logger"
	"lifeline/internal/platform/metrics"
	platformredis "lifeline/internal/platform/redis"
	"lifeline/internal/request"
	requeststore "lifeline/internal/request/store"
	httpapi "lifeline/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx := context.Background()

	stores, closeStores, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("notification throttle enabled", "ttl", config.NotifyThrottleTTL.String())
	}

	publisher, err := buildPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if redisClient != nil {
		notifier = notify.NewThrottle(notifier, redisClient.Client, config.NotifyThrottleTTL, log)
	}

	requestSvc := request.NewService(stores.requests, stores.hospitals, stores.donations, publisher, log)
	donorSvc := donor.NewService(stores.donors, stores.donorDirectory, log)
	hospitalSvc := hospital.NewService(stores.hospitals, log)
	coordinator := matching.NewCoordinator(
		stores.requests,
		stores.notifications,
		stores.donations,
		stores.donors,
		stores.hospitals,
		matching.NewTieredSelector(stores.donorDirectory),
		notifier,
		publisher,
		matchingmetrics.New(),
		log,
	)

	jwtSvc := jwttoken.NewJWTService(cfg.JWTSigningKey, "lifeline", "lifeline")
	handler := httpapi.NewHandler(requestSvc, donorSvc, hospitalSvc, coordinator, log)
	router := httpapi.NewRouter(handler, jwtSvc, metrics.New(), log)

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// appStores groups the persistence ports main wires together. The donor
// directory is the same store exposed through its read-side interface.
type appStores struct {
	donors         donorstore.Store
	donorDirectory matching.Directory
	hospitals      hospitalstore.Store
	requests       requeststore.RequestStore
	notifications  requeststore.NotificationStore
	donations      requeststore.DonationStore
}

// buildStores picks postgres persistence when a URL is configured and falls
// back to in-memory stores for local runs.
func buildStores(cfg config.Server, log *slog.Logger) (appStores, func(), error) {
	if cfg.PostgresURL == "" {
		log.Warn("no postgres configured, using in-memory stores")
		donors := donorstore.NewInMemory()
		return appStores{
			donors:         donors,
			donorDirectory: donors,
			hospitals:      hospitalstore.NewInMemory(),
			requests:       requeststore.NewInMemoryRequests(),
			notifications:  requeststore.NewInMemoryNotifications(),
			donations:      requeststore.NewInMemoryDonations(),
		}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return appStores{}, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return appStores{}, nil, err
	}
	log.Info("postgres connected")

	donors := donorstore.NewPostgres(db)
	return appStores{
		donors:         donors,
		donorDirectory: donors,
		hospitals:      hospitalstore.NewPostgres(db),
		requests:       requeststore.NewPostgresRequests(db),
		notifications:  requeststore.NewPostgresNotifications(db),
		donations:      requeststore.NewPostgresDonations(db),
	}, func() { db.Close() }, nil
}

// buildPublisher connects to Kafka when brokers are configured; otherwise
// lifecycle events are dropped.
func buildPublisher(ctx context.Context, cfg config.Server, log *slog.Logger) (events.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("no kafka brokers configured, lifecycle events disabled")
		return events.Noop{}, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	publisher, err := events.NewKafkaPublisher(connectCtx, cfg.Kafka, log)
	if err != nil {
		return nil, err
	}
	log.Info("kafka publisher connected", "topic", cfg.Kafka.Topic)
	return publisher, nil
}
