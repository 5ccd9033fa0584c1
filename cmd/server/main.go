package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "github.com/goliatone/go-user-auth"
	"github.com/goliatone/go-user-auth/activitymap"
	"github.com/goliatone/go-user-auth/config"
	"github.com/goliatone/go-user-auth/middleware/notfound"
	"github.com/goliatone/go-user-auth/middleware/static"
	"github.com/goliatone/go-user-auth/persistence"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML configuration")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	lgr := NewLogger(cfg.Logging)
	logger := lgr.GetLogger("server")
	redacted := *cfg
	redacted.Mail.Password = ""
	logger.Debug("configuration loaded", "config", print.MaybePrettyJSON(redacted))

	ctx := context.Background()

	db, err := persistence.Open(ctx, cfg.Database.DSN, persistence.WithDebug(cfg.Database.Debug))
	if err != nil {
		logger.Fatal("failed to open database", "error", err)
	}
	defer db.Close()

	if err := persistence.Migrate(ctx, db, auth.GetMigrationsFS(), lgr.GetLogger("migrations")); err != nil {
		logger.Fatal("failed to migrate database", "error", err)
	}

	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	metrics := auth.NewMetrics(prometheus.DefaultRegisterer)

	var mailer auth.Mailer = auth.NewLogMailer(lgr.GetLogger("mailer"))
	if cfg.Mail.SMTPHost != "" {
		mailer = auth.NewSMTPMailer(auth.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		})
	}

	activity := activitymap.NewSink(activitymap.LogPublisher(lgr.GetLogger("activity")))

	hooks := auth.NewNotificationHooks(cfg, mailer).
		WithLoggerProvider(lgr)

	login := auth.NewCredentialAuthenticator(repo.Users(), repo.AccessTokens(), cfg.GetTokenTTL()).
		WithLoggerProvider(lgr)

	validator := auth.NewTokenValidator(repo.AccessTokens()).
		WithLoggerProvider(lgr)

	var limiter *auth.SignInLimiter
	if cfg.Auth.SignInPerMinute > 0 {
		limiter = auth.NewSignInLimiter(cfg.Auth.SignInPerMinute, cfg.Auth.SignInBurst)
	}

	sessions := auth.NewSessionManager(login, repo.Users(), repo.AccessTokens(), validator).
		WithLoggerProvider(lgr).
		WithSignInLimiter(limiter).
		WithMetrics(metrics).
		WithActivitySink(activity)

	roles := auth.NewRoleAdministrator(repo.Roles(), repo.Users(), repo.RoleMappings()).
		WithLoggerProvider(lgr).
		WithMetrics(metrics).
		WithActivitySink(activity)

	resets := auth.NewRequestPasswordResetHandler(repo, cfg.GetResetTokenTTL()).
		WithLoggerProvider(lgr).
		WithListener(hooks.OnResetPasswordRequest).
		WithMetrics(metrics).
		WithActivitySink(activity)

	finalize := auth.NewFinalizePasswordResetHandler(repo).
		WithLoggerProvider(lgr).
		WithMetrics(metrics).
		WithActivitySink(activity)

	controller := auth.NewHTTPController(sessions, roles, resets, auth.HTTPConfig{AdminRole: cfg.Auth.AdminRole}).
		WithPasswordResetFinalizer(finalize).
		WithLoggerProvider(lgr)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		app := router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: !cfg.Server.Production,
			StrictRouting:     false,
		}))

		app.Use(notfound.New(notfound.Config{
			Page:   cfg.Server.NotFoundPage,
			Logger: lgr.GetLogger("notfound"),
		}))

		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

		staticCfg := static.Config{
			Root:       cfg.Server.StaticRoot,
			Production: cfg.Server.Production,
		}
		app.Get("/", static.Index(staticCfg))
		app.Use(static.New(staticCfg))

		return app
	})

	srv.Router().WithLogger(lgr.GetLogger("router"))
	srv.Router().Use(auth.AccessTokenMiddleware(validator, ""))

	controller.RegisterRoutes(srv.Router())

	logger.Info("starting server", "address", cfg.Address())
	srv.Serve(cfg.Address())

	sig := WaitExitSignal()
	logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down server", "error", err)
	}
}

// NewLogger builds the base logger for the logging section
func NewLogger(cfg config.LoggingConfig) *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithName("auth"),
		glog.WithLoggerTypePretty(),
		glog.WithLevel(levelFor(cfg.Level, glog.Trace, glog.Debug, glog.Info, glog.Warn, glog.Error)),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

func levelFor[L any](level string, trace, debug, info, warn, errorLevel L) L {
	switch strings.ToLower(level) {
	case "trace":
		return trace
	case "debug":
		return debug
	case "warn":
		return warn
	case "error":
		return errorLevel
	default:
		return info
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
