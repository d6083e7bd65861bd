package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/showscout/outreach/internal/api"
	"github.com/showscout/outreach/internal/config"
	"github.com/showscout/outreach/internal/counter"
	"github.com/showscout/outreach/internal/drafter"
	"github.com/showscout/outreach/internal/lifecycle"
	"github.com/showscout/outreach/internal/mailbox"
	"github.com/showscout/outreach/internal/mailer"
	"github.com/showscout/outreach/internal/pkg/distlock"
	"github.com/showscout/outreach/internal/repository/postgres"
	"github.com/showscout/outreach/internal/scheduler"
	"github.com/showscout/outreach/internal/sendrules"
)

func main() {
	log.Println("Starting outreach scheduler...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Database connection
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Redis backs the shared daily counter and job locks. Without it the
	// service still runs, single-instance, on in-process fallbacks.
	var redisClient *redis.Client
	var dailyCounter counter.DailyCounter
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Fatalf("Failed to ping redis: %v", err)
		}
		dailyCounter = counter.NewRedisCounter(redisClient, cfg.Outreach.DailyCap)
		log.Println("Connected to redis")
	} else {
		dailyCounter = counter.NewMemCounter(cfg.Outreach.DailyCap)
		log.Println("Redis not configured, using in-process daily counter")
	}

	// Repositories
	prospectRepo := postgres.NewProspectRepo(db)
	touchRepo := postgres.NewTouchRepo(db)
	inboundRepo := postgres.NewInboundRepo(db)
	inbox := mailbox.NewPostgres(db)

	// Outbound mail
	sesMailer, err := mailer.NewSESMailer(context.Background(), mailer.Config{
		Region:      cfg.SES.Region,
		AccessKey:   cfg.SES.AccessKey,
		SecretKey:   cfg.SES.SecretKey,
		FromAddress: cfg.SES.FromAddress,
		FromName:    cfg.SES.FromName,
		Timeout:     cfg.SES.Timeout(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize mailer: %v", err)
	}

	emailDrafter, err := drafter.New(cfg.Templates)
	if err != nil {
		log.Fatalf("Failed to initialize drafter: %v", err)
	}

	// Job service
	engine := lifecycle.NewEngine(lifecycle.Rules{
		FollowUpDelayDays:   cfg.Outreach.FollowUpDelayDays,
		EscalationDelayDays: cfg.Outreach.EscalationDelayDays,
		CloseNoResponseDays: cfg.Outreach.CloseNoResponseDays,
	})
	enforcer := sendrules.NewEnforcer(sendrules.Limits{
		DailyCap:     cfg.Outreach.DailyCap,
		MaxFollowUps: cfg.Outreach.MaxFollowUps,
	})
	service := scheduler.NewService(
		prospectRepo, touchRepo, inbox,
		engine, enforcer, dailyCounter, sesMailer, emailDrafter,
		cfg.Scheduler.SendWorkers,
	)

	locks := func(name string) distlock.Lock {
		return distlock.New(redisClient, db, name, 15*time.Minute)
	}
	sched := scheduler.New(service, cfg.Scheduler.Cron, locks)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Ops HTTP listener: health, stats, mail provider webhooks.
	opsServer := api.NewServer(db, prospectRepo, touchRepo, inboundRepo, dailyCounter)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      opsServer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		log.Printf("Ops listener on %s", cfg.Server.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("Scheduler running...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	sched.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("Scheduler stopped")
}
