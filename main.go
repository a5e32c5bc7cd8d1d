package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tolik-unicornrider/llm-bias-detector/application/analysis"
	appsession "github.com/tolik-unicornrider/llm-bias-detector/application/session"
	domainpersistence "github.com/tolik-unicornrider/llm-bias-detector/domain/persistence"
	infrapersistence "github.com/tolik-unicornrider/llm-bias-detector/infrastructure/persistence"
	"github.com/tolik-unicornrider/llm-bias-detector/infrastructure/providers"
	"github.com/tolik-unicornrider/llm-bias-detector/infrastructure/telemetry"
	httpiface "github.com/tolik-unicornrider/llm-bias-detector/interfaces/http"
	"github.com/tolik-unicornrider/llm-bias-detector/internal/config"
)

func main() {
	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	setupLogging(cfg.Logging)

	ctx := context.Background()

	var telemetryShutdown telemetry.Shutdown
	if cfg.Telemetry.Enabled {
		telemetryShutdown, err = telemetry.Init(ctx)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize telemetry")
		}
	}

	settings := providers.Settings{
		OpenAIKey:       cfg.Providers.OpenAI.APIKey,
		OpenAIBaseURL:   cfg.Providers.OpenAI.BaseURL,
		OpenAIModel:     cfg.Providers.OpenAI.Model,
		GeminiKey:       cfg.Providers.Gemini.APIKey,
		GeminiBaseURL:   cfg.Providers.Gemini.BaseURL,
		GeminiModel:     cfg.Providers.Gemini.Model,
		EnableBreaker:   cfg.Providers.EnableBreaker,
		EnableTelemetry: cfg.Telemetry.Enabled,
	}
	registry := providers.BuildRegistry(settings)

	// Persistence is optional; the chat works entirely in memory without it.
	var recorder domainpersistence.HistoryRecorder
	var dbHealth httpiface.HealthChecker
	var processorHealth func() domainpersistence.ProcessorHealth
	var processor *infrapersistence.EventProcessor
	var dbManager *infrapersistence.Manager

	if cfg.Database.Enabled {
		dbManager = infrapersistence.NewManager()
		if err := dbManager.Connect(ctx, cfg.Database.DSN); err != nil {
			logrus.WithError(err).Fatal("Failed to connect to database")
		}
		if err := dbManager.Migrate(); err != nil {
			logrus.WithError(err).Fatal("Failed to migrate database")
		}

		sessions, messages, reports := dbManager.GetRepositories()
		processor = infrapersistence.NewEventProcessor(sessions, messages, reports,
			infrapersistence.WithWorkers(cfg.Database.Workers),
			infrapersistence.WithQueueSize(cfg.Database.QueueSize))
		if err := processor.Start(ctx); err != nil {
			logrus.WithError(err).Fatal("Failed to start event processor")
		}

		recorder = infrapersistence.NewRecorder(processor)
		dbHealth = dbManager.Health
		processorHealth = processor.Health
	}

	manager := appsession.NewManager(registry, recorder, cfg.Session.Capacity, cfg.Session.TTL.Std())

	var extractor *analysis.Extractor
	if jc := providers.JSONCompleterFor(registry, settings); jc != nil {
		extractor = analysis.NewExtractor(jc, "")
	}
	analyzer := analysis.NewService(registry, extractor, recorder)

	server := httpiface.NewServer(manager, analyzer, dbHealth, processorHealth)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown failed")
	}
	if processor != nil {
		if err := processor.Stop(); err != nil {
			logrus.WithError(err).Error("Event processor shutdown failed")
		}
	}
	if dbManager != nil {
		if err := dbManager.Close(); err != nil {
			logrus.WithError(err).Error("Database close failed")
		}
	}
	if telemetryShutdown != nil {
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("Telemetry shutdown failed")
		}
	}
	logrus.Info("Shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		logrus.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}
}
