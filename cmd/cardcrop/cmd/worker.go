package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/queue"
	"github.com/spf13/cobra"
)

// newWorkerCmd builds the command that consumes crop jobs from Redis.
func (a *app) newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process crop jobs from the Redis queue",
		Long: `Consume crop jobs submitted with "cardcrop enqueue". Each job writes its
crops to the output directory and stores its records in Redis, where
"cardcrop result" reads them back.

Examples:
  cardcrop worker --redis-addr localhost:6379
  cardcrop worker --concurrency 8 --output-dir /data/crops`,
		Args: cobra.NoArgs,
		RunE: a.runWorker,
	}

	f := cmd.Flags()
	f.String("redis-addr", "localhost:6379", "Redis address")
	f.String("queue", "cardcrop", "queue name")
	f.Int("concurrency", 4, "number of jobs processed at once")
	f.StringP("output-dir", "o", "cropped", "default directory for rectified crops")
	f.Bool("multi", false, "crop every card in an image instead of the best one")
	a.bind(cmd, map[string]string{
		"redis-addr":  "queue.redis_addr",
		"queue":       "queue.name",
		"concurrency": "queue.concurrency",
		"output-dir":  "output.dir",
		"multi":       "pipeline.multi_card",
	})
	return cmd
}

func (a *app) runWorker(cmd *cobra.Command, _ []string) error {
	qc := a.cfg.ToQueueConfig()
	if err := qc.Validate(); err != nil {
		return fmt.Errorf("invalid queue config: %w", err)
	}

	pl, cleanup, err := a.newPipeline()
	if err != nil {
		return fmt.Errorf("failed to build card pipeline: %w", err)
	}
	defer cleanup()

	store := queue.NewRedisStore(qc)
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Error closing result store", "error", err)
		}
	}()
	if err := store.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("redis is not reachable at %s: %w", qc.RedisAddr, err)
	}

	out := pipeline.OutputOptions{
		Dir:     a.cfg.Output.Dir,
		Format:  a.cfg.Output.ImageFormat,
		Quality: a.cfg.Output.Quality,
	}
	w := queue.NewWorker(pl, store, out, a.cfg.Pipeline.MultiCard)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	return queue.Run(ctx, qc, w)
}
