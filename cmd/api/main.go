package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/solvearc/solvearc-api/internal/config"
	"github.com/solvearc/solvearc-api/internal/database"
	"github.com/solvearc/solvearc-api/internal/handler"
	"github.com/solvearc/solvearc-api/internal/middleware"
	"github.com/solvearc/solvearc-api/internal/models"
	"github.com/solvearc/solvearc-api/internal/repository"
	"github.com/solvearc/solvearc-api/internal/router"
	"github.com/solvearc/solvearc-api/internal/service"
	"github.com/solvearc/solvearc-api/pkg/judge"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	provider := config.NewProvider(cfg)

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Problem{},
		&models.TestCase{},
		&models.ProblemSet{},
		&models.ProblemInstance{},
		&models.Submission{},
		&models.ProblemSetEnrollment{},
		&models.EnrollmentCompletion{},
		&models.ReconciliationTask{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	judgeClient, err := judge.NewHTTPClient(judge.Config{
		BaseURL: cfg.JudgeURL,
		Timeout: cfg.JudgeTimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create judge client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	problemRepo := repository.NewProblemRepository(db)
	problemSetRepo := repository.NewProblemSetRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	outboxRepo := repository.NewReconciliationOutboxRepository(db)
	analyticsRepo := repository.NewSetAnalyticsRepository(db)

	events := service.NewGradingEvents(natsConn, cfg.AppEnv+":solvearc", logger)
	reconciler := service.NewReconcilerService(enrollmentRepo, events, logger)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, problemSetRepo, outboxRepo, reconciler, judgeClient, events, validate, logger)
	analyticsService := service.NewSetAnalyticsService(analyticsRepo, problemSetRepo, redisClient, provider.Get().AnalyticsCacheTTL, logger)
	worker := service.NewReconcileWorker(outboxRepo, reconciler, cfg.ReconcileInterval, logger)

	submissionHandler := handler.NewSubmissionHandler(submissionService, validate, logger)
	enrollmentHandler := handler.NewEnrollmentHandler(reconciler, logger)
	analyticsHandler := handler.NewSetAnalyticsHandler(analyticsService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler:   submissionHandler,
		EnrollmentHandler:   enrollmentHandler,
		SetAnalyticsHandler: analyticsHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go worker.Start(workerCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopWorker)
}

func waitForShutdown(app *fiber.App, stopWorker context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
