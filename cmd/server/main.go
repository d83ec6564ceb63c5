package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecopoints/internal/config"
	"ecopoints/internal/db"
	"ecopoints/internal/events"
	"ecopoints/internal/handlers"
	"ecopoints/internal/logger"
	"ecopoints/internal/middleware"
	"ecopoints/internal/router"
	"ecopoints/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appLogger := logger.New(cfg.App.LogLevel, cfg.App.LogFormat)
	slog.SetDefault(appLogger)

	// Initialize Database
	db.Init(cfg.Database)

	var pub events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		pub = events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, appLogger)
	} else {
		appLogger.Warn("RABBITMQ_URL not set, domain events are discarded")
	}
	defer pub.Close()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	} else if cfg.RateLimit.Enabled {
		appLogger.Warn("REDIS_ADDR not set, rate limiting disabled")
	}

	loc := cfg.Location()
	mail := services.NewMailService(cfg.Email, cfg.App.SiteURL, appLogger)
	defer mail.Wait()

	ranking, err := services.NewRankingService(db.DB, cfg.Security.RankingMaxSize, cfg.Security.RankingTTL)
	if err != nil {
		log.Fatalf("Failed to create ranking cache: %v", err)
	}
	tokens := services.NewTokenService(db.DB, cfg.Security.JWTSecret, cfg.Security.AccessTTL, cfg.Security.RefreshTTL)
	accounts := services.NewAccountService(db.DB, cfg.Security.BcryptCost, mail, tokens, ranking, pub, appLogger)
	ledger := services.NewLedgerService(db.DB, cfg.Scoring, ranking, pub, appLogger)
	stats := services.NewStatsService(db.DB, loc)
	tasks := services.NewTaskService(db.DB, loc, appLogger)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	if err := tasks.SeedDefaults(bootCtx); err != nil {
		log.Fatalf("Failed to seed default tasks: %v", err)
	}
	if err := accounts.EnsureSuperuser(bootCtx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name); err != nil {
		log.Fatalf("Failed to ensure superuser: %v", err)
	}
	cancelBoot()

	if cfg.App.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(appLogger))

	// Setup Sessions
	store := cookie.NewStore([]byte(cfg.Security.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Security.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.App.Env == "prod",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("ecopoints_session", store))

	r.Use(middleware.LoadUser(accounts, tokens))
	r.Use(middleware.RateLimit(cfg.RateLimit, rdb, appLogger))

	router.RegisterRoutes(r, router.Handlers{
		Health:  handlers.NewHealthHandler(db.DB),
		Auth:    handlers.NewAuthHandler(accounts, tokens, appLogger),
		User:    handlers.NewUserHandler(accounts, stats, appLogger),
		Task:    handlers.NewTaskHandler(tasks, ledger, appLogger),
		Ranking: handlers.NewRankingHandler(ranking, appLogger),
		Admin:   handlers.NewAdminHandler(accounts, tasks, stats, appLogger),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		appLogger.Info("EcoPoints server starting", slog.String("addr", srv.Addr), slog.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}
