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

	"github.com/tevo-edu/recovery-api/internal/config"
	"github.com/tevo-edu/recovery-api/internal/database"
	"github.com/tevo-edu/recovery-api/internal/handler"
	"github.com/tevo-edu/recovery-api/internal/middleware"
	"github.com/tevo-edu/recovery-api/internal/models"
	"github.com/tevo-edu/recovery-api/internal/repository"
	"github.com/tevo-edu/recovery-api/internal/router"
	"github.com/tevo-edu/recovery-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Program{},
		&models.Subject{},
		&models.CourseGroup{},
		&models.ModuleSchedule{},
		&models.Student{},
		&models.Activity{},
		&models.Grade{},
		&models.FailedSubject{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	validate := validator.New(validator.WithRequiredStructEnabled())

	gradeRepo := repository.NewGradeRepository(db)
	failedSubjectRepo := repository.NewFailedSubjectRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseGroupRepo := repository.NewCourseGroupRepository(db)
	activityLogRepo := repository.NewActivityLogRepository(db)

	auditService := service.NewAuditService(activityLogRepo, logger)
	ledgerService := service.NewLedgerService(gradeRepo, studentRepo, courseGroupRepo, validate, auditService, logger)
	detectorService := service.NewDetectorService(failedSubjectRepo, gradeRepo, courseGroupRepo, cfg.RecoveryExtensionDays, logger)
	recoveryService := service.NewRecoveryService(failedSubjectRepo, validate, redisClient, cfg.PanelCacheTTL, auditService, logger)
	outcomeService := service.NewOutcomeService(studentRepo, courseGroupRepo, gradeRepo, failedSubjectRepo, logger)
	promotionService := service.NewPromotionService(studentRepo, outcomeService, auditService, logger)

	adminRecoveryHandler := handler.NewAdminRecoveryHandler(recoveryService, detectorService, logger)
	teacherRecoveryHandler := handler.NewTeacherRecoveryHandler(recoveryService, logger)
	studentRecoveryHandler := handler.NewStudentRecoveryHandler(recoveryService, ledgerService, logger)
	ledgerHandler := handler.NewLedgerHandler(ledgerService, logger)
	promotionHandler := handler.NewPromotionHandler(promotionService, outcomeService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AdminRecoveryHandler:   adminRecoveryHandler,
		TeacherRecoveryHandler: teacherRecoveryHandler,
		StudentRecoveryHandler: studentRecoveryHandler,
		LedgerHandler:          ledgerHandler,
		PromotionHandler:       promotionHandler,
		JWTMiddleware:          middleware.JWTProtected(cfg.JWTSecret),
	})

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runSweeps(shutdownCtx, recoveryService, detectorService, cfg.SweepInterval, logger)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(shutdownCtx, app)
}

// runSweeps runs the expiry sweep followed by the failed-subject detector on
// a fixed interval until the context is cancelled. Both sweeps are idempotent
// and safe to run concurrently with user-triggered transitions.
func runSweeps(ctx context.Context, recoveries service.RecoveryService, detector service.DetectorService, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if _, err := recoveries.ExpireSweep(ctx, now); err != nil {
				logger.Error().Err(err).Msg("expiry sweep failed")
			}
			if _, err := detector.Run(ctx, now); err != nil {
				logger.Error().Err(err).Msg("detector sweep failed")
			}
		}
	}
}

func waitForShutdown(shutdownCtx context.Context, app *fiber.App) {
	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
