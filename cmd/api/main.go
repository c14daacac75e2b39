package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abkawan/atm-teller/internal/api"
	"github.com/abkawan/atm-teller/internal/config"
	"github.com/abkawan/atm-teller/internal/db"
	"github.com/abkawan/atm-teller/internal/queue"
	"github.com/abkawan/atm-teller/internal/service"
	"github.com/gorilla/mux"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	clock := service.NewSystemClock(cfg.Location)
	locks := service.NewAccountLocks()
	accountService := service.NewAccountService(store, clock, locks)

	if cfg.SeedSampleData {
		sample, err := db.SampleAccounts(clock.Now())
		if err != nil {
			log.Fatalf("Failed to build sample accounts: %v", err)
		}
		added, err := accountService.Seed(ctx, sample)
		if err != nil {
			log.Fatalf("Failed to seed sample accounts: %v", err)
		}
		log.Printf("Seeded %d sample accounts", added)
	}

	if cfg.ResetLockoutsOnStart {
		n, err := accountService.ResetLockouts(ctx)
		if err != nil {
			log.Fatalf("Failed to reset lockouts: %v", err)
		}
		log.Printf("Reset lockouts on %d accounts", n)
	}

	// Connect to MongoDB
	var journalService *service.JournalService
	if cfg.MongoURI != "" {
		log.Println("Connecting to MongoDB...")
		mongodb, err := db.NewMongoDB(cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer mongodb.Close(ctx)

		journalService = service.NewJournalService(nil, mongodb)
	}

	// Connect to RabbitMQ. Without a broker, entries go straight to the journal.
	var publisher service.EntryPublisher
	switch {
	case cfg.RabbitMQURI != "":
		log.Println("Connecting to RabbitMQ...")
		rabbitmq, err := queue.NewRabbitMQ(cfg.RabbitMQURI)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rabbitmq.Close()
		publisher = rabbitmq
	case journalService != nil:
		publisher = journalService
	}

	authService := service.NewAuthService(store, clock, locks)
	engine := service.NewTransactionEngine(store, clock, locks, publisher, cfg.Limits)

	// Create router and set up routes
	router := mux.NewRouter()
	handler := api.NewHandler(accountService, authService, engine, journalService,
		api.WithSessionIdleTimeout(cfg.SessionIdleTimeout))
	api.SetupRoutes(router, handler)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s...", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server shut down successfully")
}

// openStore builds the account store named by STORE_DRIVER
func openStore(ctx context.Context, cfg *config.Config) (service.AccountStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverFile:
		log.Printf("Using file store at %s", cfg.StoreFile)
		store, err := db.NewFileStore(cfg.StoreFile)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case config.DriverPostgres:
		log.Println("Connecting to PostgreSQL...")
		postgres, err := db.NewPostgres(cfg.PostgresURI)
		if err != nil {
			return nil, nil, err
		}

		log.Println("Creating the schema...")
		if err := postgres.InitSchema(ctx); err != nil {
			postgres.Close()
			return nil, nil, err
		}
		return postgres, func() { postgres.Close() }, nil

	default:
		log.Println("Using in-memory store")
		return db.NewMemoryStore(), func() {}, nil
	}
}
