package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	cfg "github.com/omnibank/backoffice/config"
	"github.com/omnibank/backoffice/internal/clients"
	"github.com/omnibank/backoffice/internal/handlers"
	"github.com/omnibank/backoffice/internal/ledger"
	"github.com/omnibank/backoffice/internal/notifier"
	"github.com/omnibank/backoffice/internal/usecases"
	"github.com/omnibank/backoffice/internal/usecases/repository"
	"github.com/omnibank/backoffice/internal/workers"
	"github.com/omnibank/backoffice/pkg/database"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 15
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5
)

func main() {
	time.Local = time.UTC

	// Load local overrides before reading configuration
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env file")
	}

	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Info("Starting back office",
		"environment", config.App.Environment,
		"debug", config.App.Debug,
		"server_port", config.HTTP.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrationsPath := "./migrations"
	if workDir, err := os.Getwd(); err == nil {
		if _, err := os.Stat(filepath.Join(workDir, "migrations")); !os.IsNotExist(err) {
			migrationsPath = filepath.Join(workDir, "migrations")
		} else if _, err := os.Stat(filepath.Join(workDir, "..", "migrations")); !os.IsNotExist(err) {
			migrationsPath = filepath.Join(workDir, "..", "migrations")
		}
	}

	// Connect to Database
	pg, err := database.New(config,
		database.MaxPoolSize(config.DB.PoolMax),
		database.ConnTimeout(config.DB.ConnectTimeout),
		database.HealthCheckPeriod(config.DB.HealthCheckPeriod),
	)
	if err != nil {
		logger.Error("postgres connection failed", "error", err)
		return
	}
	defer pg.Close()

	logger.Info("Running database migrations", "path", migrationsPath)
	if err = database.RunMigrations(logger, config.DB.DatabaseURL, migrationsPath); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		log.Fatal(err)
	}

	// Create repositories
	accountsRepository := repository.NewAccountsRepository(logger, pg)
	transfersRepository := repository.NewTransfersRepository(logger, pg)
	depositsRepository := repository.NewDepositsRepository(logger, pg)
	withdrawalsRepository := repository.NewWithdrawalsRepository(logger, pg)
	loansRepository := repository.NewLoansRepository(logger, pg)
	outboxRepository := repository.NewOutboxRepository(logger, pg)
	auditRepository := repository.NewAuditRepository(logger, pg)

	// Notification fan-out
	websocketManager := handlers.NewWebSocketManager(logger)
	emailClient := notifier.NewEmailClient(logger,
		config.Email.APIKey, config.Email.APIURL, config.Email.FromAddress)
	dispatcher := notifier.NewDispatcher(logger, emailClient, websocketManager)

	// Core transition engine and services
	mutator := ledger.NewMutator(logger, accountsRepository)
	engine := usecases.NewEngine(logger, pg.Transactor, mutator,
		auditRepository, outboxRepository, dispatcher)

	transferService := usecases.NewTransferService(engine, transfersRepository)
	depositService := usecases.NewDepositService(engine, depositsRepository)
	withdrawalService := usecases.NewWithdrawalService(engine, withdrawalsRepository)
	loanService := usecases.NewLoanService(logger, engine, loansRepository,
		pg.Transactor, mutator, auditRepository, outboxRepository, dispatcher)
	accountService := usecases.NewAccountService(accountsRepository)

	// Outbox relay to the event bus
	publisher := notifier.NewKafkaPublisher(logger, config.Kafka.Brokers, config.Kafka.Topic)
	defer publisher.Close()

	outboxRelay := workers.NewOutboxRelay(logger, pg.Transactor, outboxRepository, publisher,
		time.Duration(config.Workers.OutboxInterval)*time.Second,
		config.Workers.OutboxBatchSize,
		config.Workers.OutboxMaxAttempts)
	go outboxRelay.Start(ctx)

	// Identity verification for the auth middleware
	identityClient := clients.NewIdentityClient(logger,
		config.Identity.APIKey, config.Identity.APIURL,
		config.Identity.AdminToken, config.Identity.AdminEmail)
	authMiddleware := handlers.NewAuthMiddleware(logger, identityClient)

	// Create handlers
	httpHandler := handlers.NewHTTPHandler(logger,
		transferService, depositService, withdrawalService, loanService, accountService)
	wsHandler := handlers.NewWebSocketHandler(logger, websocketManager)

	router := mux.NewRouter()

	// The live feed and the API sit behind the same auth middleware
	wsRouter := router.PathPrefix("/ws").Subrouter()
	wsRouter.Use(authMiddleware.Handler)
	wsHandler.RegisterRoutes(wsRouter)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(authMiddleware.Handler)
	httpHandler.RegisterRoutes(apiRouter)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
	})
	handler := c.Handler(router)

	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	// Give 5 seconds to complete current requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer cancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server exited properly")
}
