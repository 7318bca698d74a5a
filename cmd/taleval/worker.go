package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taleval/taleval/internal/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a standalone evaluation worker consuming the task queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		if !a.cfg.UseRedisQueue() {
			return errors.New("worker requires a redis queue; configure redis_service.host")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("Starting standalone evaluation worker")
		return a.worker.Run(ctx)
	},
}
