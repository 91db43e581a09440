package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/auralane/render-service/internal/audio"
	"github.com/auralane/render-service/internal/client"
	"github.com/auralane/render-service/internal/config"
	"github.com/auralane/render-service/internal/events"
	"github.com/auralane/render-service/internal/handler"
	"github.com/auralane/render-service/internal/middleware"
	"github.com/auralane/render-service/internal/provider"
	"github.com/auralane/render-service/internal/service"
	"github.com/auralane/render-service/internal/store"
	"github.com/auralane/render-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	jobStore := store.NewJobStore(redisClient,
		time.Duration(cfg.Render.JobTTLHours)*time.Hour,
		time.Duration(cfg.Render.ClaimLeaseSeconds)*time.Second,
	)

	validate := validator.New()

	hub := events.NewHub()
	go hub.Run()

	// Voice providers. Unconfigured providers stay registered; a call
	// without credentials surfaces as a provider error on the job.
	elevenLabs := provider.NewElevenLabsClient(&cfg.ElevenLabs)
	openAI := provider.NewOpenAIClient(&cfg.OpenAI)
	providers := provider.NewRegistry()
	providers.Register(provider.NameElevenLabs, elevenLabs)
	providers.Register(provider.NameOpenAI, openAI)

	storage, err := client.NewS3Client(&cfg.Storage)
	if err != nil {
		log.Fatalf("Object storage is required: %v", err)
	}

	encoder := audio.NewFFmpegEncoder(cfg.Render.FFmpegBinary)

	renderService := service.NewRenderService(jobStore, asynqClient)
	renderHandler := handler.NewRenderHandler(renderService, validate)

	var authMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		authMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		log.Println("Info: gateway disabled, using dev identity")
		authMiddleware = middleware.DevAuthMiddleware()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    5 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-User-Id",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"elevenlabs": elevenLabs.IsConfigured(),
				"openai":     openAI.IsConfigured(),
				"storage":    storage.IsConfigured(),
			},
			"providers": providers.Names(),
		})
	})

	api := app.Group("/api", authMiddleware)
	render := api.Group("/render")
	render.Post("/start", rateLimiter.RenderLimit(cfg.RateLimit.RenderPerHour), renderHandler.Start)
	render.Get("/status/:jobId", renderHandler.Status)
	render.Post("/cancel/:jobId", rateLimiter.CancelLimit(cfg.RateLimit.CancelPerMin), renderHandler.Cancel)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	// Render worker server and orphaned-claim sweeper.
	renderWorker := worker.NewRenderWorker(jobStore, providers, storage, encoder, hub, cfg.Render.MaxAssetBytes)
	go startWorkerServer(cfg, renderWorker)
	go runSweeper(ctx, renderService, time.Duration(cfg.Render.ClaimLeaseSeconds)*time.Second)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Printf("Render service starting on %s (worker %s)", addr, renderWorker.ID())
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, renderWorker *worker.RenderWorker) {
	logLevel := asynq.InfoLevel
	switch {
	case strings.EqualFold(cfg.Server.LogLevel, "debug"):
		logLevel = asynq.DebugLevel
	case strings.EqualFold(cfg.Server.LogLevel, "warn"):
		logLevel = asynq.WarnLevel
	case strings.EqualFold(cfg.Server.LogLevel, "error"):
		logLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Render.Concurrency,
			Queues: map[string]int{
				service.QueueRender: 10,
			},
			LogLevel: logLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeRender, renderWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

// runSweeper periodically re-enqueues processing jobs whose claim lease
// expired (worker crashed mid-pipeline).
func runSweeper(ctx context.Context, svc *service.RenderService, lease time.Duration) {
	interval := lease / 2
	if interval < 30*time.Second {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		n, err := svc.RequeueStale(ctx)
		if err != nil {
			log.Printf("[sweeper] error: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("[sweeper] requeued %d stale render job(s)", n)
		}
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
