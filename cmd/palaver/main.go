package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/palaver-board/palaver/internal/app"
	"github.com/palaver-board/palaver/internal/auth"
	"github.com/palaver-board/palaver/internal/categories"
	"github.com/palaver-board/palaver/internal/mail"
	"github.com/palaver-board/palaver/internal/observability"
	"github.com/palaver-board/palaver/internal/platform/cache"
	"github.com/palaver-board/palaver/internal/platform/db"
	"github.com/palaver-board/palaver/internal/posts"
	"github.com/palaver-board/palaver/internal/rbac"
	"github.com/palaver-board/palaver/internal/roles"
	"github.com/palaver-board/palaver/internal/shared"
	"github.com/palaver-board/palaver/internal/sse"
	"github.com/palaver-board/palaver/internal/threads"
	"github.com/palaver-board/palaver/internal/users"
	"github.com/palaver-board/palaver/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "palaver_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	jobsInspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsInspector.Close(); err != nil {
			logger.Warn("jobs inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(jobsInspector, logger)

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Source: rbacService, Logger: logger}
	rbacHandler := rbac.NewHandler(logger, rbacService, rbacMiddleware)

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, rbacService, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, rolesRepo, jobsClient, cfg.BaseURL, logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	categoriesService := categories.NewService(categories.NewRepository(dbpool))
	categoriesHandler := categories.NewHandler(logger, categoriesService, rbacMiddleware)

	threadsService := threads.NewService(threads.NewRepository(dbpool), rbacService, auditLogger, logger)
	threadsHandler := threads.NewHandler(logger, threadsService, rbacMiddleware)

	postsService := posts.NewService(posts.NewRepository(dbpool), threadsService)
	postsHandler := posts.NewHandler(logger, postsService, rbacMiddleware)

	dispatcher := sse.NewDispatcher(metrics, logger)
	mailService := mail.NewService(mail.NewRepository(dbpool), usersRepo, dispatcher)
	mailHandler := mail.NewHandler(logger, mailService, rbacMiddleware)

	streamAuth := auth.NewSessionAuthenticator(authRepo)
	mailButtonStream := sse.NewStreamHandler(sse.ChannelMailButton, dispatcher.Registry(sse.ChannelMailButton), streamAuth, cfg.SSEHeartbeat, logger, metrics)
	mailPageStream := sse.NewStreamHandler(sse.ChannelMailPage, dispatcher.Registry(sse.ChannelMailPage), streamAuth, cfg.SSEHeartbeat, logger, metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		Metrics:           metrics,
		AuthHandler:       authHandler,
		RolesHandler:      rolesHandler,
		RBACHandler:       rbacHandler,
		UsersHandler:      usersHandler,
		CategoriesHandler: categoriesHandler,
		ThreadsHandler:    threadsHandler,
		PostsHandler:      postsHandler,
		MailHandler:       mailHandler,
		JobsHandler:       jobsHandler,
		MailButtonStream:  mailButtonStream,
		MailPageStream:    mailPageStream,
	})

	// WriteTimeout stays zero: event stream responses are open-ended
	// and keepalive is handled by heartbeat frames instead. BaseContext
	// ties every request, including open streams, to the signal context
	// so shutdown tears the streams down.
	server := &http.Server{
		Addr:        cfg.AppAddr,
		Handler:     router,
		ReadTimeout: cfg.AppReadTimeout,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
