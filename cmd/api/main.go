package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vidforge/internal/adapter/queuestore"
	"vidforge/internal/adapter/repo"
	"vidforge/internal/domain"
	"vidforge/internal/http/handlers"
	httpapi "vidforge/internal/http/httpapi"
	"vidforge/internal/infra"
	"vidforge/internal/orchestrator"
	"vidforge/internal/pricing"
	"vidforge/internal/providers/prompt"
	"vidforge/internal/providers/video"
	"vidforge/internal/queue"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	var queueStore domain.QueueStateStore
	if redisClient := infra.NewRedisClient(cfg); redisClient != nil {
		if err := infra.PingRedis(redisClient); err != nil {
			logger.Warn().Err(err).Msg("api: redis unreachable, queue snapshots disabled")
		} else {
			queueStore = queuestore.NewRedisStore(redisClient, 24*time.Hour)
			defer redisClient.Close()
		}
	}

	jobs := repo.NewJobRepository(pool)
	users := repo.NewUserRepository(pool)
	model := pricing.NewModel(pricing.Config{
		BaseCredits:        cfg.BaseCredits,
		CreditUnitPriceUSD: cfg.CreditUnitPriceUSD,
	})

	client := video.NewClient(video.Options{
		APIKey:  cfg.GenerationAPIKey,
		BaseURL: cfg.GenerationBaseURL,
		Logger:  &logger,
	})
	enhancer := prompt.NewRemote(client, prompt.NewStatic(), logger)

	hub := orchestrator.NewHub(ctx, func(octx context.Context, userID string) *orchestrator.Orchestrator {
		return orchestrator.New(octx, orchestrator.Options{
			UserID: userID,
			Config: orchestrator.Config{
				PollInterval:    cfg.PollInterval,
				MaxPollAttempts: cfg.MaxPollAttempts,
				MaxRetries:      cfg.MaxRetries,
			},
			Client:       client,
			Enhancer:     enhancer,
			Jobs:         jobs,
			Entitlements: users,
			QueueStore:   queueStore,
			Pricing:      model,
			Queue:        queue.NewManager(cfg.QueueActiveSlots),
			Logger:       logger,
		})
	})
	defer hub.Close()

	app := handlers.NewApp(logger, hub, model, enhancer, jobs)
	router := httpapi.NewRouter(app, cfg)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
