package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/yukikurage/favor-exchange-api/internal/auth"
	"github.com/yukikurage/favor-exchange-api/internal/config"
	"github.com/yukikurage/favor-exchange-api/internal/database"
	"github.com/yukikurage/favor-exchange-api/internal/handlers"
	"github.com/yukikurage/favor-exchange-api/internal/logging"
	"github.com/yukikurage/favor-exchange-api/internal/middleware"
	"github.com/yukikurage/favor-exchange-api/internal/notify"
	"github.com/yukikurage/favor-exchange-api/internal/repository"
	"github.com/yukikurage/favor-exchange-api/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var (
	cfg    *config.Config
	logger *zap.Logger

	rootCmd = &cobra.Command{
		Use:   "favor-exchange",
		Short: "Favor Exchange API server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()

			var err error
			logger, err = logging.New(cfg.IsProduction(), cfg.LogLevel)
			return err
		},
		RunE: runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE:  runMigrate,
	}

	expireCmd = &cobra.Command{
		Use:   "expire",
		Short: "Move open requests whose time window has passed to EXPIRED",
		RunE:  runExpire,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, expireCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func connect() (*gorm.DB, *repository.Gateway, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}

	policy := repository.DefaultRetryPolicy
	if cfg.DBMaxAttempts > 0 {
		policy.MaxAttempts = uint(cfg.DBMaxAttempts)
	}

	gw := repository.NewGateway(db,
		repository.WithOpener(database.Opener(cfg)),
		repository.WithLogger(logger),
		repository.WithRetryPolicy(policy),
	)
	return db, gw, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	defer func() { _ = logger.Sync() }()

	db, _, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if err := database.MigrateDatabase(db); err != nil {
		return err
	}
	logger.Info("migrations applied", zap.String("driver", cfg.DBDriver))
	return nil
}

func runExpire(cmd *cobra.Command, args []string) error {
	defer func() { _ = logger.Sync() }()

	db, gw, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	requests := services.NewRequestService(gw, notify.NewDispatcher(newNotifier(), logger), logger)
	expired, err := requests.ExpireStale(cmd.Context(), time.Now())
	if err != nil {
		return err
	}
	logger.Info("stale requests expired", zap.Int("count", expired))
	return nil
}

func newNotifier() notify.Notifier {
	if cfg.SMTPHost == "" {
		return notify.NewLogNotifier(logger)
	}
	return notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
}

func runServe(cmd *cobra.Command, args []string) error {
	defer func() { _ = logger.Sync() }()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	db, gw, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if err := database.MigrateDatabase(db); err != nil {
		return err
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return fmt.Errorf("failed to configure tokens: %w", err)
	}

	var revocation *auth.RevocationStore
	if cfg.RedisHost != "" {
		client := auth.NewRedisClient(cfg.RedisAddr(), cfg.RedisPassword)
		defer func() { _ = client.Close() }()
		revocation = auth.NewRevocationStore(client)
	} else {
		logger.Warn("redis not configured, logout will not revoke tokens")
		revocation = auth.NewRevocationStore(nil)
	}

	dispatcher := notify.NewDispatcher(newNotifier(), logger)

	// Initialize services
	authService := services.NewAuthService(gw, tokens, revocation, dispatcher, logger)
	requestService := services.NewRequestService(gw, dispatcher, logger)
	assignmentService := services.NewAssignmentService(gw, dispatcher, logger,
		services.WithOwnerConfirmation(cfg.RequireOwnerConfirmation))
	aiService := services.NewAIService(cfg.OpenAIAPIKey, logger)

	// Initialize router
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), logging.Middleware(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(r, handlers.Handlers{
		Auth:        handlers.NewAuthHandler(authService, cfg.IsProduction()),
		Requests:    handlers.NewRequestHandler(requestService, assignmentService, aiService),
		Assignments: handlers.NewAssignmentHandler(assignmentService),
		Profiles:    handlers.NewProfileHandler(services.NewProfileService(gw), services.NewLedgerService(gw)),
		Health:      handlers.NewHealthHandler(gw, revocation, logger),
	}, authService)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
