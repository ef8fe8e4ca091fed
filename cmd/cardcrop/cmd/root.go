// Package cmd implements the cardcrop command line.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/cardcrop/internal/config"
	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/recognizer"
	"github.com/MeKo-Tech/cardcrop/internal/source"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

// app is the state shared by the commands of one invocation.
type app struct {
	cfgFile string
	cfg     *config.Config
	// flag name -> config key, per command
	bindings map[*cobra.Command]map[string]string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{bindings: make(map[*cobra.Command]map[string]string)}

	rootCmd := &cobra.Command{
		Use:   "cardcrop",
		Short: "Card detection and perspective rectification",
		Long: `cardcrop finds card-shaped objects in photographs and scans, and writes
each one as a straightened, fronto-parallel crop.

This tool provides:
- Edge, threshold and optional model based quadrilateral detection
- Fallback reconstruction when no clean quadrilateral is found
- Perspective rectification with configurable margin and border
- Batch processing of directories and PDF pages
- An HTTP API and a Redis backed job worker

Examples:
  cardcrop crop photo.jpg
  cardcrop batch scans/ --recursive --format csv
  cardcrop serve --port 8080`,
		SilenceUsage:      true,
		PersistentPreRunE: a.preRun,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default is cardcrop.yaml in ., $XDG_CONFIG_HOME/cardcrop, /etc/cardcrop)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	a.bind(rootCmd, map[string]string{
		"verbose":    "verbose",
		"log-level":  "log_level",
		"log-format": "log_format",
	})

	rootCmd.AddCommand(
		a.newCropCmd(),
		a.newBatchCmd(),
		a.newServeCmd(),
		a.newWorkerCmd(),
		a.newEnqueueCmd(),
		a.newResultCmd(),
		a.newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	return NewRootCommand().Execute()
}

// bind registers flags of cmd as overrides of configuration keys.
func (a *app) bind(cmd *cobra.Command, flags map[string]string) {
	m := a.bindings[cmd]
	if m == nil {
		m = make(map[string]string, len(flags))
		a.bindings[cmd] = m
	}
	for flag, key := range flags {
		m[flag] = key
	}
}

// preRun loads the configuration with the flags of the running command bound
// on top, then installs the logger.
func (a *app) preRun(cmd *cobra.Command, _ []string) error {
	if _, ok := cmd.Annotations[skipConfig]; ok {
		return nil
	}

	v := viper.New()
	for c := cmd; c != nil; c = c.Parent() {
		for flag, key := range a.bindings[c] {
			f := cmd.Flags().Lookup(flag)
			if f == nil {
				return fmt.Errorf("unknown flag binding %q", flag)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.NewLoaderWithViper(v).LoadFile(a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	a.cfg = cfg
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg))
	return nil
}

// newLogger builds the structured logger selected by the configuration.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch strings.ToLower(cfg.LogLevel) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newRecognizer constructs the text recognizer when enabled.
func (a *app) newRecognizer() (recognizer.Recognizer, error) {
	if !a.cfg.Recognizer.Enabled {
		return nil, nil
	}
	rec, err := recognizer.New(a.cfg.ToRecognizerConfig())
	if errors.Is(err, recognizer.ErrNoBackend) {
		return nil, fmt.Errorf("text recognition was requested: %w", err)
	}
	return rec, err
}

// newPipeline builds a file-loading pipeline from the configuration. The
// returned cleanup closes the pipeline, which owns the recognizer.
func (a *app) newPipeline() (*pipeline.Pipeline, func(), error) {
	pc, err := a.cfg.ToPipelineConfig()
	if err != nil {
		return nil, nil, err
	}
	rec, err := a.newRecognizer()
	if err != nil {
		return nil, nil, err
	}
	b := pipeline.NewBuilder().WithConfig(pc).WithLoader(source.NewLoader())
	if rec != nil {
		b = b.WithRecognizer(rec)
	}
	if a.cfg.Output.DebugDir != "" {
		b = b.WithDebugSink(pipeline.NewDirSink(a.cfg.Output.DebugDir))
	}
	pl, err := b.Build()
	if err != nil {
		if rec != nil {
			_ = rec.Close()
		}
		return nil, nil, err
	}
	cleanup := func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}
	return pl, cleanup, nil
}
