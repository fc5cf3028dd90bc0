package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/timmy/docqueue/internal/app"
	"github.com/timmy/docqueue/internal/config"
	"github.com/timmy/docqueue/internal/logger"
	"github.com/timmy/docqueue/internal/mcpserver"
)

func main() {
	// stdout is the MCP transport.
	envCfg := logger.LoadFromEnv()
	envCfg.Output = os.Stderr
	appLogger := logger.NewFromEnv(envCfg)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.SetComponent(appLogger.WithContext(ctx), "mcp")

	a, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize")
	}
	defer a.Close()

	stdioSrv := server.NewStdioServer(mcpserver.NewServer(mcpserver.Deps{Queue: a.Processor}))
	appLogger.Info("MCP server started (stdio transport)")
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.WithError(err).Error("MCP stdio server error")
	}
}
