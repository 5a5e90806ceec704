package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/familyos/go-pipeline-service/internal/consumer"
	"github.com/familyos/go-pipeline-service/internal/dlq"
	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/handler"
	"github.com/familyos/go-pipeline-service/internal/metrics"
	"github.com/familyos/go-pipeline-service/internal/middleware"
	"github.com/familyos/go-pipeline-service/internal/push"
	"github.com/familyos/go-pipeline-service/internal/repository"
	"github.com/familyos/go-pipeline-service/internal/scheduler"
	"github.com/familyos/go-pipeline-service/internal/service"
	"github.com/familyos/go-pipeline-service/internal/shared/config"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
	"github.com/familyos/go-pipeline-service/internal/shared/mongodb"
	"github.com/familyos/go-pipeline-service/internal/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Initialize logger
	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting FamilyOS pipeline service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	// Initialize MongoDB
	mongoClient, err := mongodb.NewMongoClient(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer mongoClient.Disconnect(context.Background())

	// Initialize repositories
	jobRepo := repository.NewJobRepository(mongoClient)
	memberRepo := repository.NewMemberRepository(mongoClient)
	deviceRepo := repository.NewDeviceRepository(mongoClient)
	eventRepo := repository.NewEventRepository(mongoClient)
	taskRepo := repository.NewTaskRepository(mongoClient)
	digestRepo := repository.NewDigestRepository(mongoClient)
	conflictRepo := repository.NewConflictRepository(mongoClient)
	prefRepo := repository.NewPreferenceRepository(mongoClient)

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelIndex()
	for name, ensure := range map[string]func(context.Context) error{
		"notification_jobs":        jobRepo.EnsureIndexes,
		"devices":                  deviceRepo.EnsureIndexes,
		"digests":                  digestRepo.EnsureIndexes,
		"notification_preferences": prefRepo.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			log.Fatal("Failed to ensure indexes", "collection", name, "error", err)
		}
	}

	// Initialize services
	sender := push.NewSender(cfg.VAPID)
	audienceService := service.NewAudienceService(memberRepo, deviceRepo, prefRepo, log)
	dispatchService := service.NewDispatchService(jobRepo, audienceService, sender, log,
		cfg.Dispatch.BatchSize, cfg.Dispatch.SendTimeout)
	conflictService := service.NewConflictService(memberRepo, eventRepo, conflictRepo, log)
	digestService := service.NewDigestService(memberRepo, eventRepo, taskRepo, digestRepo, jobRepo, log)
	reminderService := service.NewReminderService(eventRepo, taskRepo, jobRepo, log)
	deadLetterQueue := dlq.NewDeadLetterQueue(jobRepo, log)

	// Initialize HTTP handlers
	pipelineHandler := handler.NewPipelineHandler(dispatchService, conflictService, digestService, reminderService, log)
	deviceHandler := handler.NewDeviceHandler(memberRepo, deviceRepo, log)
	dlqHandler := handler.NewDLQHandler(deadLetterQueue, log)
	preferencesHandler := handler.NewPreferencesHandler(memberRepo, prefRepo, log)

	// Initialize rate limiter for the authenticated surface
	rateLimiter := middleware.NewFamilyRateLimiter(10, 20)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"ok": false, "error": "method not allowed"})
	})

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Pipeline ticks, driven by the in-process scheduler or an
		// external cron hitting them over HTTP
		pipeline := v1.Group("/pipeline")
		{
			pipeline.POST("/dispatch", pipelineHandler.Dispatch)
			pipeline.POST("/conflicts", pipelineHandler.Conflicts)
			pipeline.POST("/digest/daily", pipelineHandler.DigestDaily)
			pipeline.POST("/digest/weekly", pipelineHandler.DigestWeekly)
			pipeline.POST("/reminders", pipelineHandler.Reminders)
		}

		// Authenticated member surface
		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
		authed.Use(middleware.RateLimitMiddleware(rateLimiter))
		{
			authed.POST("/devices/register", deviceHandler.Register)
			authed.GET("/preferences", preferencesHandler.GetPreferences)
			authed.PUT("/preferences", preferencesHandler.UpdatePreference)
		}

		// Dead letter queue
		dlqRoutes := v1.Group("/dlq")
		{
			dlqRoutes.GET("/jobs", dlqHandler.GetFailedJobs)
			dlqRoutes.POST("/jobs/:id/requeue", dlqHandler.RequeueJob)
			dlqRoutes.DELETE("/jobs/:id", dlqHandler.PurgeJob)
		}
	}

	// Start RabbitMQ consumer, restarting on connection loss
	if cfg.RabbitMQ.Enabled {
		go runConsumer(cfg.RabbitMQ.URL, jobRepo, log)
	}

	// Sample queue depth for the metrics endpoint
	go sampleQueueDepth(jobRepo, log)

	// Start the cron scheduler
	if cfg.Scheduler.Enabled {
		pipelineScheduler := scheduler.NewPipelineScheduler(cfg.Scheduler, scheduler.Ticks{
			Dispatch: func(ctx context.Context) error {
				_, err := dispatchService.Dispatch(ctx)
				return err
			},
			Reminders: func(ctx context.Context) error {
				_, err := reminderService.Run(ctx)
				return err
			},
			Conflicts: func(ctx context.Context) error {
				_, err := conflictService.Run(ctx)
				return err
			},
			Daily: func(ctx context.Context) error {
				_, err := digestService.BuildDaily(ctx)
				return err
			},
			Weekly: func(ctx context.Context) error {
				_, err := digestService.BuildWeekly(ctx)
				return err
			},
		}, log)
		if err := pipelineScheduler.Start(); err != nil {
			log.Fatal("Failed to start scheduler", "error", err)
		}
		defer pipelineScheduler.Stop()
	}

	// Start HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Pipeline service started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down pipeline service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Pipeline service stopped")
}

// sampleQueueDepth periodically refreshes the queued-jobs gauge
func sampleQueueDepth(jobs *repository.JobRepository, log *logger.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		depth, err := jobs.CountByStatus(ctx, domain.JobStatusQueued)
		cancel()
		if err != nil {
			log.Warn("Failed to sample queue depth", "error", err)
			continue
		}
		metrics.QueueDepth.Set(float64(depth))
	}
}

// runConsumer keeps the event consumer alive, reconnecting with a fixed
// delay when the broker connection drops
func runConsumer(url string, jobs service.JobStore, log *logger.Logger) {
	for {
		client, err := rabbitmq.NewRabbitMQClient(url)
		if err != nil {
			log.Error("Failed to connect to RabbitMQ, retrying", "error", err)
			time.Sleep(10 * time.Second)
			continue
		}

		eventConsumer := consumer.NewEventConsumer(client, jobs, log)
		if err := eventConsumer.Start(); err != nil {
			log.Error("Event consumer stopped", "error", err)
		}
		client.Close()

		metrics.ConsumerRestarts.Inc()
		time.Sleep(5 * time.Second)
	}
}
