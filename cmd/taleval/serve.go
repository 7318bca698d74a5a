package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taleval/taleval/internal/api"
	benchmarkapi "github.com/taleval/taleval/internal/api/benchmark"
	evaluationapi "github.com/taleval/taleval/internal/api/evaluation"
	"github.com/taleval/taleval/internal/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server with an in-process evaluation worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			if err := a.worker.Run(ctx); err != nil {
				logger.Error("Worker stopped with error", zap.Error(err))
			}
		}()

		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery())
		r.Use(gin.Logger())

		api.SetupRouter(r,
			benchmarkapi.NewHandler(a.dispatcher, a.benchmarks),
			evaluationapi.NewHandler(a.analytics))

		logger.Info("Starting TaleEval API",
			zap.String("addr", a.cfg.GetWebServiceAddr()),
			zap.String("database", a.cfg.Database.Path))

		return r.Run(a.cfg.GetWebServiceAddr())
	},
}
