package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/Ptt-Alertor/logrus"
	"github.com/google/gops/agent"
	"github.com/robfig/cron/v3"

	"reimburse/internal/api"
	"reimburse/internal/app/attachment"
	"reimburse/internal/app/notify"
	"reimburse/internal/app/service"
	"reimburse/internal/app/worker"
	"reimburse/internal/common/security"
	"reimburse/internal/domain/repository"
	"reimburse/internal/platform/config"
	"reimburse/internal/platform/database"
	"reimburse/internal/platform/logging"
	"reimburse/internal/platform/queue"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info("Configuration loaded.")

	if cfg.GopsEnabled {
		if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
			log.WithError(err).Fatal("gops agent failed to start")
		}
	}

	// 2. Initialize JWT
	tokens, err := security.NewTokenAuthority([]byte(cfg.JWTSecret), cfg.JWTExp)
	if err != nil {
		log.WithError(err).Fatal("JWT initialization failed")
	}

	// 3. Initialize Database
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()
	db, err := database.Open(startupCtx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}
	defer db.Close()
	if err := database.Migrate(startupCtx, db); err != nil {
		log.WithError(err).Fatal("Database migration failed")
	}

	// 4. Initialize Redis
	rdb, err := queue.ConnectRedis(startupCtx, queue.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		log.WithError(err).Fatal("Redis connection failed")
	}
	defer rdb.Close()

	// 5. Initialize Repositories
	accountRepo := repository.NewSQLAccountRepository(db)
	expenseRepo := repository.NewSQLExpenseRepository(db)
	resetTokenRepo := repository.NewRedisResetTokenRepository(rdb)

	// 6. Initialize Services
	intake, err := attachment.NewIntake(attachment.Options{
		Dir:          cfg.UploadDir,
		PublicPrefix: filepath.Base(cfg.UploadDir),
		MaxBytes:     cfg.MaxUploadBytes,
		MaxFiles:     cfg.MaxUploadFiles,
	})
	if err != nil {
		log.WithError(err).Fatal("Upload directory unavailable")
	}
	notificationService := service.NewNotificationService(rdb, cfg.NotificationQueueName)
	authService := service.NewAuthService(accountRepo, resetTokenRepo, tokens, notificationService, service.AuthOptions{
		AllowRoleOnRegister: cfg.AllowRoleOnRegister,
		FrontendURL:         cfg.FrontendURL,
		ResetTTL:            cfg.PasswordResetTTL,
	})
	expenseService := service.NewExpenseService(expenseRepo, intake, notificationService)

	if cfg.SeedUsersPath != "" {
		created, err := authService.SeedAccounts(startupCtx, cfg.SeedUsersPath)
		if err != nil {
			log.WithError(err).Fatal("Seeding accounts failed")
		}
		log.WithField("created", created).Info("Seed accounts loaded.")
	}

	// 7. Initialize Notification Worker and Jobs
	sink := buildSink(cfg)
	notificationWorker := worker.NewNotificationWorker(rdb, expenseRepo, sink, worker.NotificationWorkerOptions{
		QueueName: cfg.NotificationQueueName,
		NotifyTo:  cfg.NotifyTo,
		BaseURL:   cfg.PublicBaseURL,
	})
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go notificationWorker.Start(workerCtx)

	c := cron.New()
	if _, err := c.AddJob(cfg.DigestSchedule, worker.NewPendingDigest(expenseRepo, sink, cfg.NotifyTo)); err != nil {
		log.WithError(err).WithField("schedule", cfg.DigestSchedule).Fatal("Invalid digest schedule")
	}
	c.Start()

	// 8. Initialize Router & HTTP Server
	router := api.NewRouter(tokens, authService, expenseService, api.RouterOptions{
		MaxCreateBody: int64(intake.MaxFiles())*intake.MaxBytes() + 1<<20,
		AccessLog:     true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second, // Uploads may be slow
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.WithField("port", cfg.APIPort).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatalf("Could not listen on %s", cfg.APIPort)
		}
	}()

	<-stop // Wait for interrupt signal

	log.Info("Shutting down server...")
	workerCancel()
	<-c.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	log.Info("Server and worker stopped gracefully.")
}

// buildSink combines every configured delivery channel. A channel that
// fails to initialize is logged and skipped.
func buildSink(cfg *config.Config) notify.Sink {
	var sinks []notify.Sink
	if cfg.SMTPHost != "" {
		smtpSink, err := notify.NewSMTPSink(notify.SMTPOptions{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort,
			Username: cfg.SMTPUsername, Password: cfg.SMTPPassword,
			From: cfg.EmailFrom,
		})
		if err != nil {
			log.WithError(err).Error("SMTP notifications disabled")
		} else {
			sinks = append(sinks, smtpSink)
		}
	}
	if cfg.MailRelayURL != "" {
		sinks = append(sinks, notify.NewRelaySink(cfg.MailRelayURL, cfg.EmailFrom, nil))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID, nil)
		if err != nil {
			log.WithError(err).Error("Telegram notifications disabled")
		} else {
			sinks = append(sinks, tg)
		}
	}
	if len(sinks) == 0 {
		log.Warn("No notification channel configured; notifications will only be logged")
	}
	return notify.Combine(sinks...)
}
