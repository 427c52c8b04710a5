package main

import (
	"fmt"
	"log"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"fincoach-backend/internal/config"
	"fincoach-backend/internal/controller"
	"fincoach-backend/internal/db"
	"fincoach-backend/internal/llm"
	"fincoach-backend/internal/model"
	"fincoach-backend/internal/repository"
	"fincoach-backend/internal/service"
	logger "fincoach-backend/pkg/logging"
	"fincoach-backend/pkg/middleware"
	"fincoach-backend/utilities"
)

func main() {
	printStartUpBanner()

	// .env is optional; secrets may come from the real environment.
	_ = godotenv.Load()

	// Load XML configuration from file.
	cfg, err := config.LoadConfig("config.xml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.Context.LogDir, cfg.Debug)

	// Initialize DB using the loaded config.
	db.InitDBFromConfig(cfg)
	// Run migrations.
	if err := db.GetDB().AutoMigrate(
		&model.User{},
		&model.Concept{},
		&model.UserConceptKnowledge{},
		&model.AssessmentEvent{},
		&model.UserLearningProfile{},
		&model.UserGoal{},
		&model.UserAccountAggregate{},
		&model.ContentQueueEntry{},
		&model.ContentHistoryEntry{},
		&model.LearningModule{},
		&model.UserLearningProgress{},
		&model.UserXPLedger{},
		&model.QuizResult{},
	); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	if cfg.DB.Initialize {
		seedConcepts()
	}

	// Create repositories.
	conceptRepo := repository.NewConceptRepository()
	knowledgeRepo := repository.NewKnowledgeRepository()
	userRepo := repository.NewUserRepository()
	contentRepo := repository.NewContentRepository()
	progressRepo := repository.NewProgressRepository()

	// Create services.
	llmClient := llm.NewClient(cfg.LLM.URL, cfg.LLM.Model, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
	knowledgeService := service.NewKnowledgeService(knowledgeRepo, conceptRepo, userRepo, cfg.Engine.ConfidenceSmoothing)
	generatorService := service.NewGeneratorService(llmClient, cfg.LLM.RatePerMinute)
	scorerService := service.NewScorerService(contentRepo, knowledgeRepo, userRepo)
	queueService := service.NewQueueService(contentRepo, cfg.Engine.ActivePoolMinimum)
	progressService := service.NewProgressService(
		progressRepo, contentRepo, knowledgeRepo, knowledgeService,
		utilities.GlobalEventBus, cfg.Engine.QuizBasePoints, cfg.Engine.StorageRetryAttempts,
	)
	schedulerService := service.NewSchedulerService(
		knowledgeService, generatorService, scorerService, queueService,
		contentRepo, userRepo,
		cfg.Engine.CooldownHours, cfg.Engine.GenerationCount, cfg.Engine.DeployBatchSize,
		cfg.Engine.ConceptSelectLimit, cfg.Engine.SweepConcurrency, cfg.LLM.TimeoutSeconds,
	)
	reportService := service.NewReportService(progressService, conceptRepo)

	// Completed modules refill the content pool in the background.
	schedulerService.InitEventListeners(utilities.GlobalEventBus)

	// Initialize Gin router.
	r := gin.Default()

	// CORS configuration.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if cfg.RequestDump {
		r.Use(middleware.RequestDumpMiddleware())
	}
	r.Use(utilities.AuthMiddleware())

	controller.RegisterRoutes(r, schedulerService, queueService, progressService, reportService)

	// Start server on the host and port specified in the XML config.
	addr := fmt.Sprintf("%s:%d", cfg.Context.Host, cfg.Context.Port)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func printStartUpBanner() {
	myFigure := figure.NewFigure("FINCOACH", "", true)
	myFigure.Print()

	fmt.Println("======================================================")
	fmt.Printf("FINCOACH API (v%s)\n\n", "1.0.0")
}
