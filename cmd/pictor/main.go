package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/pictor-io/pictor/internal/command"
	"github.com/pictor-io/pictor/internal/logginglevel"
	"github.com/pictor-io/pictor/internal/opentelemetry"
	"go.uber.org/zap"
)

func main() {
	// Initialize logging
	config := zap.NewProductionConfig()
	config.Level = logginglevel.Level

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	zap.ReplaceGlobals(logger)

	// Set up a signal-interruptible context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Initialize OpenTelemetry
	_, opentelemetryDeinit, err := opentelemetry.Init(ctx)
	if err != nil {
		logger.Sugar().Errorf("failed to initialize OpenTelemetry: %v", err)
		os.Exit(1)
	}
	defer opentelemetryDeinit()

	if err := command.NewRootCommand().ExecuteContext(ctx); err != nil {
		logger.Sugar().Error(err)

		cancel()
		opentelemetryDeinit()

		os.Exit(1)
	}
}
