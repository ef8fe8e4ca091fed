package cmd

import (
	"fmt"
	"runtime"

	"github.com/MeKo-Tech/cardcrop/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: ""},
		Run: func(cmd *cobra.Command, _ []string) {
			v, commit, date := version.Info()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cardcrop %s (commit %s, built %s, %s/%s)\n",
				v, commit, date, runtime.GOOS, runtime.GOARCH)
		},
	}
}
