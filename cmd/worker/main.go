// Command worker consumes domain events from RabbitMQ and sends the
// notifications that must not block the API, such as level-up emails.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ecopoints/internal/config"
	"ecopoints/internal/events"
	"ecopoints/internal/logger"
	"ecopoints/internal/services"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appLogger := logger.New(cfg.App.LogLevel, cfg.App.LogFormat)
	if cfg.RabbitMQ.URL == "" {
		log.Fatal("RABBITMQ_URL is required for the worker")
	}

	mail := services.NewMailService(cfg.Email, cfg.App.SiteURL, appLogger)
	defer mail.Wait()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := events.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, appLogger,
		events.TypeLevelUp, events.TypeUserRegistered)
	appLogger.Info("worker started", slog.String("queue", cfg.RabbitMQ.Queue))
	if err := consumer.Run(ctx, newHandler(mail, appLogger)); err != nil && ctx.Err() == nil {
		log.Fatalf("consumer stopped: %v", err)
	}
	appLogger.Info("worker stopped")
}
