// Package main is the entry point for the urdf2mjcf converter.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/martinhoang/urdf2mjcf/internal/config"
	"github.com/martinhoang/urdf2mjcf/internal/convert"
	"github.com/martinhoang/urdf2mjcf/internal/logger"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Sugar.Debugf("Config: %+v", cfg)

	// Cancel the run on SIGINT/SIGTERM; stages check at their boundaries.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conv := convert.New(cfg)
	if err := conv.Run(ctx); err != nil {
		logger.Error("conversion failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("conversion complete")
}
