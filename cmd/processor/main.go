package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/abkawan/atm-teller/internal/config"
	"github.com/abkawan/atm-teller/internal/db"
	"github.com/abkawan/atm-teller/internal/queue"
	"github.com/abkawan/atm-teller/internal/service"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.MongoURI == "" || cfg.RabbitMQURI == "" {
		log.Fatalf("MONGO_URI and RABBITMQ_URI are required by the journal processor")
	}

	// Connect to MongoDB
	log.Println("Connecting to MongoDB...")
	mongodb, err := db.NewMongoDB(cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongodb.Close(context.Background())

	// Connect to RabbitMQ
	log.Println("Connecting to RabbitMQ...")
	rabbitmq, err := queue.NewRabbitMQ(cfg.RabbitMQURI)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rabbitmq.Close()

	journalService := service.NewJournalService(rabbitmq, mongodb)

	log.Println("Starting journal processor...")
	done, err := journalService.StartProcessor(ctx)
	if err != nil {
		log.Fatalf("Failed to start journal processor: %v", err)
	}

	log.Println("Journal processor started")

	// Wait for interrupt signal or for the broker to go away
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-done:
		log.Println("Activity consumer closed")
	}

	log.Println("Shutting down processor...")
	cancel() // Cancel context to stop processor
	<-done
	log.Println("Processor shut down successfully")
}
