package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"smtp-relay/internal/common/logging"
	"smtp-relay/internal/config"
	"smtp-relay/internal/crypto"
	"smtp-relay/internal/handlers"
	"smtp-relay/internal/mailer"
	"smtp-relay/internal/oauth2"
	"smtp-relay/internal/redis"
	"smtp-relay/internal/server"
	"smtp-relay/internal/settings"
	"smtp-relay/internal/stats"
)

func main() {
	// Optional; a missing .env just means plain environment variables
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	store, err := openSettingsStore(cfg)
	if err != nil {
		logger.Error("Failed to open settings store", err)
		os.Exit(1)
	}
	defer store.Close()

	codec := crypto.NewSecretCodec(cfg.SecretKey, logger)

	// Redis backs pending states and stats when configured; the in-memory
	// fallbacks keep a single instance fully functional without it
	var stateStore oauth2.StateStore
	var statsStore stats.Store
	var memoryStates *oauth2.MemoryStateStore

	if cfg.RedisAddress != "" {
		redisDB, _ := strconv.Atoi(cfg.RedisDB)
		client, err := redis.NewClient(redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       redisDB,
		}, logger)
		if err != nil {
			logger.Error("Failed to connect to Redis", err)
			os.Exit(1)
		}
		defer client.Close()
		stateStore = oauth2.NewRedisStateStore(client)
		statsStore = stats.NewRedisStore(client, logger)
	} else {
		memoryStates = oauth2.NewMemoryStateStore()
		stateStore = memoryStates
		statsStore = stats.NewMemoryStore()
	}

	tokens := oauth2.NewTokenStore(store, codec, logger)
	flow := oauth2.NewFlow(tokens, stateStore, cfg.RedirectURL(), logger)
	configurator := mailer.NewConfigurator(store, codec, flow, logger)
	sender := mailer.NewSender(configurator, statsStore, logger)

	h := handlers.New(cfg, store, codec, flow, configurator, sender, statsStore, logger)

	scheduler := cron.New()
	scheduler.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := statsStore.Prune(ctx); err != nil {
			logger.Error("Stats pruning failed", err)
		}
	})
	if memoryStates != nil {
		scheduler.AddFunc("@every 10m", func() {
			memoryStates.Sweep()
		})
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.New(h, cfg, logger)
	srv.Start()
	logger.Info("SMTP relay started",
		logging.String("port", cfg.Port),
		logging.String("redirect_url", cfg.RedirectURL()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", err)
	}
}

func openSettingsStore(cfg *config.Config) (settings.Store, error) {
	switch cfg.DatabaseType {
	case "postgres", "postgresql":
		return settings.OpenPostgres(settings.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDB,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		})
	default:
		return settings.OpenSQLite(cfg.DatabasePath)
	}
}
