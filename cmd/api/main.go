package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/evalhub/exam-eval-api/api/swagger"
	"github.com/evalhub/exam-eval-api/internal/grading"
	"github.com/evalhub/exam-eval-api/internal/repository"
	"github.com/evalhub/exam-eval-api/internal/router"
	"github.com/evalhub/exam-eval-api/internal/service"
	"github.com/evalhub/exam-eval-api/pkg/cache"
	"github.com/evalhub/exam-eval-api/pkg/config"
	"github.com/evalhub/exam-eval-api/pkg/database"
	"github.com/evalhub/exam-eval-api/pkg/jobs"
	"github.com/evalhub/exam-eval-api/pkg/logger"
	"github.com/evalhub/exam-eval-api/pkg/mail"
	"github.com/evalhub/exam-eval-api/pkg/storage"
)

// @title Exam Evaluation API
// @version 1.0.0
// @description Role-based evaluation workflow for scanned exam papers
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	files, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}

	var mailer mail.Mailer
	if cfg.Mail.SendGridKey != "" {
		mailer = mail.NewSendGrid(cfg.Mail, logr)
	} else {
		logr.Warn("no SendGrid key configured, OTP codes will be logged")
		mailer = mail.NewConsole(logr)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	paperRepo := repository.NewPaperRepository(db)
	spocRepo := repository.NewSpocRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	otpRepo := repository.NewOTPRepository(redisClient)
	reportCache := repository.NewReportCache(redisClient, logr)

	authSvc := service.NewAuthService(userRepo, otpRepo, validate, logr, service.AuthConfig{
		Secret:           cfg.JWT.Secret,
		Expiration:       cfg.JWT.Expiration,
		Issuer:           cfg.JWT.Issuer,
		OTPRequiredRoles: cfg.OTP.RequiredRoles,
	})
	otpSvc := service.NewOTPService(otpRepo, userRepo, mailer, validate, logr, service.OTPConfig{
		CodeTTL:     cfg.OTP.TTL,
		VerifiedTTL: cfg.OTP.VerifiedTTL,
	})

	// The queue handler and the paper service reference each other, so the
	// service variable is declared first and filled in after the queue exists.
	var paperSvc *service.PaperService
	queue := jobs.NewQueue("grading", func(ctx context.Context, job jobs.Job) error {
		paperID, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return paperSvc.ProcessPaper(ctx, paperID)
	}, jobs.QueueConfig{
		Workers:       cfg.Grading.Workers,
		MaxRetries:    cfg.Grading.MaxRetries,
		RetryDelay:    cfg.Grading.RetryDelay,
		Logger:        logr,
		OnDepthChange: metrics.SetQueueDepth,
		OnJobDone:     metrics.RecordJobOutcome,
	})
	paperSvc = service.NewPaperService(paperRepo, userRepo, teacherRepo, files, queue,
		grading.NewStubOCR(), grading.NewStubGrader("", time.Now().UnixNano()), validate, logr)
	queue.Start(ctx)
	defer queue.Stop()

	spocSvc := service.NewSpocService(spocRepo, userRepo, paperRepo, reportCache, validate, logr, cfg.Reports.CacheTTL)
	teacherSvc := service.NewTeacherService(teacherRepo, userRepo, paperRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, userRepo, validate, logr)
	ticketSvc := service.NewTicketService(ticketRepo, subjectRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)

	engine := router.New(router.Deps{
		Config:   cfg,
		Logger:   logr,
		Metrics:  metrics,
		Auth:     authSvc,
		OTP:      otpSvc,
		Papers:   paperSvc,
		Spocs:    spocSvc,
		Teachers: teacherSvc,
		Subjects: subjectSvc,
		Tickets:  ticketSvc,
		Users:    userSvc,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
