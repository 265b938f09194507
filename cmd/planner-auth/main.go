package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-planner-auth"
	"github.com/goliatone/go-planner-auth/config"
	"github.com/goliatone/go-planner-auth/logging"
	"github.com/goliatone/go-planner-auth/notify"
	"github.com/goliatone/go-planner-auth/observability"
)

type App struct {
	config     *config.Config
	logger     *logging.Logger
	bunDB      *bun.DB
	repo       auth.RepositoryManager
	tokens     *auth.TokenService
	auther     *auth.Auther
	httpAuth   *auth.RouteAuthenticator
	metrics    *observability.Metrics
	dispatcher *notify.Dispatcher
	srv        *fiber.App
	metricsSrv *http.Server
}

func (a *App) GetLogger(name string) *logging.Logger {
	return a.logger.With("component", name)
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := &App{
		config:  cfg,
		logger:  logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat),
		metrics: observability.NewMetrics(),
	}

	auth.SetPasswordCost(cfg.GetBcryptCost())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	steps := []func(context.Context, *App) error{
		WithPersistence,
		WithNotifications,
		WithAuth,
		WithHTTPServer,
		WithMetricsServer,
	}
	for _, step := range steps {
		if err := step(ctx, app); err != nil {
			app.logger.Error("startup failed", "error", err)
			app.Close()
			os.Exit(1)
		}
	}

	go func() {
		app.logger.Info("http server listening", "addr", cfg.Listen)
		if err := app.srv.Listen(cfg.Listen); err != nil {
			app.logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	app.logger.Info("shutting down")
	app.Close()
}

func WithPersistence(ctx context.Context, app *App) error {
	var (
		sqldb *sql.DB
		err   error
	)

	switch app.config.DBDriver {
	case "postgres":
		sqldb, err = sql.Open("pgx", app.config.DBDSN)
		if err != nil {
			return err
		}
		app.bunDB = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err = sql.Open(sqliteshim.ShimName, app.config.DBDSN)
		if err != nil {
			return err
		}
		sqldb.SetMaxOpenConns(1)
		app.bunDB = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if err := app.bunDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	app.repo = auth.NewRepositoryManager(app.bunDB)
	app.repo.MustValidate()

	if err := auth.Bootstrap(ctx, app.repo, app.bunDB); err != nil {
		return err
	}

	app.GetLogger("persistence").Info("schema ready", "driver", app.config.DBDriver)
	return nil
}

func WithNotifications(ctx context.Context, app *App) error {
	logger := app.GetLogger("notify")

	var queue notify.Queue
	switch app.config.NotifyQueue {
	case "redis":
		q, err := notify.NewRedisQueue(ctx, app.config.RedisURL, app.config.QueueKey)
		if err != nil {
			return err
		}
		queue = q
	default:
		queue = notify.NewMemoryQueue(app.config.NotifyBuffer)
	}

	smtp, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:       app.config.SMTPHost,
		User:       app.config.SMTPUser,
		Password:   app.config.SMTPPassword,
		From:       app.config.SMTPFrom,
		SkipVerify: app.config.SMTPSkipVerify,
	})
	if err != nil {
		return err
	}

	var sender notify.Sender = smtp
	if smtp.Disabled() {
		logger.Warn("smtp not configured, notifications are written to stdout")
		sender = notify.NewWriterSender(os.Stdout)
	}

	app.dispatcher = notify.NewDispatcher(queue, sender,
		notify.WithWorkers(app.config.NotifyWorker),
		notify.WithClientURL(app.config.GetClientURL()),
		notify.WithLogger(logger),
		notify.WithResultObserver(app.metrics.NotificationResult),
	)
	app.dispatcher.Start(ctx)

	return nil
}

func WithAuth(ctx context.Context, app *App) error {
	app.tokens = auth.NewTokenService(
		[]byte(app.config.GetSigningKey()),
		auth.WithTokenLogger(app.GetLogger("tokens")),
		auth.WithFailureObserver(app.metrics.TokenFailure),
	)

	app.auther = auth.NewAuthenticator(app.repo.Accounts(), app.tokens, app.config).
		WithLogger(app.GetLogger("auth")).
		WithActivitySink(app.metrics)

	app.httpAuth = auth.NewHTTPAuthenticator(app.tokens, app.config).
		WithLogger(app.GetLogger("http"))

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	app.srv = fiber.New(fiber.Config{
		AppName:               "planner-auth",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})

	app.srv.Use(app.metrics.Middleware())
	app.srv.Use(auth.ErrorTranslator(app.GetLogger("errors")))
	app.srv.Use(app.httpAuth.Middleware())

	auth.RegisterAuthRoutes(app.srv.Group(app.config.GetRoutePrefix()),
		auth.WithRepositoryManager(app.repo),
		auth.WithAuther(app.auther),
		auth.WithHTTPAuthenticator(app.httpAuth),
		auth.WithNotifier(app.dispatcher),
		auth.WithControllerActivitySink(app.metrics),
		auth.WithControllerLogger(app.GetLogger("controller")),
		auth.WithLifecycleConfig(app.config),
		auth.WithDebug(app.config.Debug),
	)

	return nil
}

func WithMetricsServer(ctx context.Context, app *App) error {
	if app.config.MetricsListen == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())

	app.metricsSrv = &http.Server{
		Addr:              app.config.MetricsListen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		app.logger.Info("metrics server listening", "addr", app.config.MetricsListen)
		if err := app.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("metrics server stopped", "error", err)
		}
	}()

	return nil
}

// Close releases everything started during setup, newest first
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.srv != nil {
		if err := a.srv.ShutdownWithContext(ctx); err != nil {
			a.logger.Warn("http shutdown", "error", err)
		}
	}

	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics shutdown", "error", err)
		}
	}

	if a.dispatcher != nil {
		if err := a.dispatcher.Close(); err != nil {
			a.logger.Warn("notification queue close", "error", err)
		}
	}

	if a.bunDB != nil {
		if err := a.bunDB.Close(); err != nil {
			a.logger.Warn("database close", "error", err)
		}
	}
}
