package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/eddiefleurent/utica_condor/internal/config"
	"github.com/eddiefleurent/utica_condor/internal/ledger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Optional .env for POLYGON_API_KEY and friends; the YAML expands them.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg)
	logger.WithFields(logrus.Fields{
		"mode":       cfg.Environment.Mode,
		"strategies": cfg.Runner.StrategiesDir,
	}).Info("Starting condor sweep")

	db, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open run ledger")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Closing run ledger")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, finishing in-flight runs")
		cancel()
	}()

	runner := NewRunner(cfg, db, logger)
	if err := runner.Run(ctx); err != nil {
		logger.WithError(err).Fatal("Sweep failed")
	}

	logger.Info("Sweep complete")
}

// newLogger builds the process logger: stdout always, rotated file when
// configured.
func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.Environment.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Environment.LogFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.Environment.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotated))
	}

	return logger
}
