package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taleval/taleval/internal/pkg/logger"
	"github.com/taleval/taleval/internal/queue"
)

var runOnlyMissing bool

var runCmd = &cobra.Command{
	Use:   "run <benchmark-id>",
	Short: "Execute one benchmark to completion and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		benchmarkID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || benchmarkID <= 0 {
			return fmt.Errorf("invalid benchmark id %q", args[0])
		}

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := context.Background()

		if runOnlyMissing {
			_, err = a.dispatcher.StartMissing(ctx, benchmarkID)
		} else {
			_, err = a.dispatcher.Start(ctx, benchmarkID)
		}
		if err != nil {
			return err
		}

		enqueued, err := a.dispatcher.Dispatch(ctx, benchmarkID, runOnlyMissing)
		if err != nil {
			return err
		}
		logger.Info("Benchmark dispatched",
			zap.Int64("benchmark_id", benchmarkID),
			zap.Int("tasks", enqueued))

		// retries re-enqueue synchronously, so draining until empty covers them
		mem := a.queue.(*queue.Memory)
		processed := a.worker.Drain(ctx, mem)

		b, err := a.benchmarks.Find(ctx, benchmarkID)
		if err != nil {
			return err
		}

		progress := 0
		if b != nil && b.Progress != nil {
			progress = *b.Progress
		}
		failed := 0
		if b != nil {
			failed = len(b.Errors)
		}

		fmt.Printf("Benchmark %d: %d tasks processed, progress %d%%, %d errors\n",
			benchmarkID, processed, progress, failed)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOnlyMissing, "only-missing", false, "evaluate only combinations without a stored result")
}
