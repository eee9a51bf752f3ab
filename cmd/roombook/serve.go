package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/auth"
	httptransport "github.com/example/campus-rooms/internal/http"
	"github.com/example/campus-rooms/internal/jobs"
	"github.com/example/campus-rooms/internal/metrics"
	"github.com/example/campus-rooms/internal/notify"
	"github.com/example/campus-rooms/internal/persistence/sqlstore"
)

const shutdownTimeout = 10 * time.Second

// app is the wired service graph behind the serve command.
type app struct {
	handler  http.Handler
	sweeper  *jobs.Sweeper
	bookings *application.BookingService
	metrics  *metrics.Metrics
	closers  []func() error
}

func (a *app) close(env environment) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			env.logger.Error("failed to release resource", "error", err)
		}
	}
}

func buildApp(ctx context.Context, env environment, store *sqlstore.Store) (*app, error) {
	cfg, logger := env.cfg, env.logger
	now := time.Now
	a := &app{metrics: metrics.New()}

	var revocations application.TokenRevoker = auth.NewMemoryRevocations(now)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		revocations = auth.NewRedisRevocations(client, now)
		logger.InfoContext(ctx, "token revocations stored in redis", "addr", cfg.RedisAddr)
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	issuer = issuer.WithClock(now)

	var notifier application.EventHandler = notify.Noop
	if cfg.SMTP.Enabled() {
		notifier = notify.NewSMTP(cfg.SMTP, store, logger)
		logger.InfoContext(ctx, "booking notifications enabled", "smtp_host", cfg.SMTP.Host)
	}

	audit := application.NewAuditService(store, now, logger)
	events := application.NewEventBus(logger)
	events.Subscribe(application.NewRoomStatusHandler(store, now, logger))
	events.Subscribe(audit)
	events.Subscribe(notifier)

	authService := application.NewAuthServiceWithLogger(store, issuer, revocations, nil, nil, now, logger)
	a.bookings = application.NewBookingServiceWithLogger(store, store, events, now, logger).WithRecorder(a.metrics)
	rooms := application.NewRoomServiceWithLogger(store, now, logger)

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Auth:          httptransport.NewAuthHandler(authService, logger),
		Bookings:      httptransport.NewBookingHandler(a.bookings, logger),
		Rooms:         httptransport.NewRoomHandler(rooms, a.bookings, logger),
		Departments:   httptransport.NewDepartmentHandler(application.NewDepartmentService(store, now, logger), logger),
		Users:         httptransport.NewUserHandler(application.NewUserService(store, nil, now), logger),
		Maintenance:   httptransport.NewMaintenanceHandler(application.NewMaintenanceService(store, store, events, now, logger), logger),
		Reports:       httptransport.NewReportHandler(application.NewReportService(store, logger), logger),
		Audit:         httptransport.NewAuditHandler(audit, logger),
		Authenticator: authService,
		LoginLimiter:  httptransport.NewLoginLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst, logger),
		Metrics:       a.metrics.Handler(),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			a.metrics.Middleware,
		},
		Logger: logger,
	})
	a.sweeper = jobs.NewSweeper(a.bookings, cfg.SweepInterval, logger).WithRecorder(a.metrics)
	return a, nil
}

// serve runs the HTTP server and the completion sweeper until ctx is cancelled.
func serve(ctx context.Context, env environment) error {
	store, err := openStore(ctx, env)
	if err != nil {
		return err
	}
	defer closeStore(env, store)

	a, err := buildApp(ctx, env, store)
	if err != nil {
		return err
	}
	defer a.close(env)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", env.cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		env.logger.InfoContext(gctx, "room booking API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		env.logger.Info("shutting down")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
