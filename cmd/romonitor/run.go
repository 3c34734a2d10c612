package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/romonitor/internal/logging"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitor until interrupted",
		RunE:  runMonitor,
	}
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("init_failed", zap.Error(err))
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close_error", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	if a.status != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.status.ListenAndServe(ctx, cfg.StatusAddr); err != nil {
				logger.Error("status_api_error", zap.Error(err))
			}
		}()
	}

	a.monitor.Run(ctx)
	wg.Wait()
	return nil
}
