package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/timmy/docqueue/internal/app"
	"github.com/timmy/docqueue/internal/config"
	"github.com/timmy/docqueue/internal/logger"
)

func main() {
	// Logs go to stderr so stdout carries only the report.
	envCfg := logger.LoadFromEnv()
	envCfg.Output = os.Stderr
	appLogger := logger.NewFromEnv(envCfg)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	queuePath := flag.String("queue", "", "Queue file (overrides queue.path)")
	policy := flag.String("policy", "", "Consumption policy: all, batch or single (overrides queue.policy)")
	batchSize := flag.Int("batch", 0, "Batch size for the batch policy (overrides queue.batch_size)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *queuePath != "" {
		cfg.Queue.Path = *queuePath
	}
	if *policy != "" {
		cfg.Queue.Policy = *policy
	}
	if *batchSize > 0 {
		cfg.Queue.BatchSize = *batchSize
	}

	ctx := logger.SetComponent(appLogger.WithContext(context.Background()), "runqueue")

	a, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize")
	}
	defer a.Close()

	report := a.Processor.Run(ctx)
	fmt.Println(report.Text)

	if report.IsError {
		a.Close()
		logger.Sync()
		os.Exit(1)
	}
}
