package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

// newBatchCmd builds the command that crops every image under directories.
func (a *app) newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [paths...]",
		Short: "Crop every card image under files and directories in parallel",
		Long: `Discover images and PDF pages under the given paths and crop them with a
pool of parallel workers. Failed images are reported as records and do not
stop the run.

Examples:
  cardcrop batch scans/ --recursive
  cardcrop batch scans/ --include '*.jpg' --exclude 'thumb_*'
  cardcrop batch album.pdf --pages 1-4 --format csv --results cards.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.runBatch(cmd, args)
			if err != nil {
				return err
			}
			if len(res.Outcomes) > 0 && res.Failed() == len(res.Outcomes) {
				return errors.New("no image could be cropped")
			}
			return nil
		},
	}
	a.addProcessingFlags(cmd)

	f := cmd.Flags()
	f.BoolP("recursive", "r", false, "descend into subdirectories")
	f.StringSlice("include", nil, "only process files matching these glob patterns")
	f.StringSlice("exclude", nil, "skip files matching these glob patterns")
	f.String("pages", "", "PDF page range, e.g. 1-3,5")
	f.Bool("progress", true, "show a progress bar on stderr")
	f.BoolP("quiet", "q", false, "suppress progress and status messages")
	f.Bool("stats", false, "print processing statistics")
	a.bind(cmd, map[string]string{
		"recursive": "batch.recursive",
		"include":   "batch.include",
		"exclude":   "batch.exclude",
		"pages":     "batch.pages",
		"progress":  "batch.show_progress",
		"stats":     "batch.show_stats",
	})
	return cmd
}
