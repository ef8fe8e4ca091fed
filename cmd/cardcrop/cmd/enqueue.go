package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/MeKo-Tech/cardcrop/internal/queue"
	"github.com/MeKo-Tech/cardcrop/internal/source"
	"github.com/spf13/cobra"
)

// newEnqueueCmd builds the command that submits crop jobs to the worker queue.
func (a *app) newEnqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue [paths...]",
		Short: "Submit crop jobs for a running worker",
		Long: `Discover images under the given paths and submit one crop job per image.
Each line of output holds a job ID and its source, separated by a tab.

Examples:
  cardcrop enqueue scans/ --recursive
  cardcrop enqueue album.pdf --pages 2-3 --output-dir /data/crops`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runEnqueue,
	}

	f := cmd.Flags()
	f.String("redis-addr", "localhost:6379", "Redis address")
	f.String("queue", "cardcrop", "queue name")
	f.StringP("output-dir", "o", "", "crop directory for these jobs (default: the worker's)")
	f.BoolP("recursive", "r", false, "descend into subdirectories")
	f.StringSlice("include", nil, "only submit files matching these glob patterns")
	f.StringSlice("exclude", nil, "skip files matching these glob patterns")
	f.String("pages", "", "PDF page range, e.g. 1-3,5")
	a.bind(cmd, map[string]string{
		"redis-addr": "queue.redis_addr",
		"queue":      "queue.name",
		"recursive":  "batch.recursive",
		"include":    "batch.include",
		"exclude":    "batch.exclude",
		"pages":      "batch.pages",
	})
	return cmd
}

func (a *app) runEnqueue(cmd *cobra.Command, args []string) error {
	ids, err := source.Discover(args, source.DiscoverOptions{
		Recursive: a.cfg.Batch.Recursive,
		Include:   a.cfg.Batch.Include,
		Exclude:   a.cfg.Batch.Exclude,
		Pages:     a.cfg.Batch.Pages,
	})
	if err != nil {
		return fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(ids) == 0 {
		return errors.New("no image files found")
	}

	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir != "" {
		if outputDir, err = filepath.Abs(outputDir); err != nil {
			return err
		}
	}

	client := queue.NewClient(a.cfg.ToQueueConfig())
	defer func() { _ = client.Close() }()

	for _, id := range ids {
		// Workers may run in another directory.
		abs, err := filepath.Abs(id)
		if err != nil {
			return err
		}
		jobID, err := client.Enqueue(cmd.Context(), abs, outputDir)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", jobID, id)
	}
	return nil
}

// newResultCmd builds the command that prints the stored result of a job.
func (a *app) newResultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result <job-id>",
		Short: "Print the stored records of a crop job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := queue.NewRedisStore(a.cfg.ToQueueConfig())
			defer func() { _ = store.Close() }()

			res, err := store.Load(cmd.Context(), args[0])
			if errors.Is(err, queue.ErrResultNotFound) {
				return fmt.Errorf("no result for job %s (pending, unknown or expired)", args[0])
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
	a.bind(cmd, map[string]string{"redis-addr": "queue.redis_addr"})
	return cmd
}
