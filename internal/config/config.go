package config

import (
	"errors"
	"fmt"
	"image/color"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/barcode"
	"github.com/MeKo-Tech/cardcrop/internal/batch"
	"github.com/MeKo-Tech/cardcrop/internal/detector"
	"github.com/MeKo-Tech/cardcrop/internal/models"
	"github.com/MeKo-Tech/cardcrop/internal/onnx"
	"github.com/MeKo-Tech/cardcrop/internal/orientation"
	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/queue"
	"github.com/MeKo-Tech/cardcrop/internal/recognizer"
	"github.com/MeKo-Tech/cardcrop/internal/rectify"
	"github.com/MeKo-Tech/cardcrop/internal/server"
)

// DefaultConfig returns the default configuration, built from the component
// defaults so the two never drift apart.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	rect := rectify.DefaultConfig()
	pl := pipeline.DefaultConfig()
	rec := recognizer.DefaultConfig()
	ori := orientation.DefaultConfig()

	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Detector: DetectorConfig{
			BlurKernel:          det.BlurKernel,
			CLAHE:               det.CLAHE,
			CLAHEClipLimit:      det.CLAHEClipLimit,
			CLAHETiles:          det.CLAHETiles,
			CannyLow:            det.CannyLow,
			CannyHigh:           det.CannyHigh,
			CloseKernel:         det.CloseKernel,
			AdaptiveBlock:       det.AdaptiveBlock,
			AdaptiveC:           det.AdaptiveC,
			ApproxEpsilon:       det.ApproxEpsilon,
			MinAreaFrac:         det.MinAreaFrac,
			MaxAreaFrac:         det.MaxAreaFrac,
			FallbackMinAreaFrac: det.FallbackMinAreaFrac,
			BorderTolerancePx:   det.BorderTolerancePx,
			MaxDimension:        det.MaxDimension,
			ModelThreshold:      det.Model.Threshold,
			ModelInputSize:      det.Model.InputSize,
		},
		Rectify: RectifyConfig{
			Margin:          rect.Margin,
			MarginFrac:      rect.MarginFrac,
			MinMarginPx:     rect.MinMarginPx,
			BorderPx:        rect.BorderPx,
			BorderColor:     FormatHexColor(rect.BorderColor),
			BorderSnapFrac:  rect.BorderSnapFrac,
			BorderInsetFrac: rect.BorderInsetFrac,
			MinQuadArea:     rect.MinQuadArea,
			MinCornerDistPx: rect.MinCornerDistPx,
			MaxCondition:    rect.MaxCondition,
			MaxOutputPx:     rect.MaxOutputPx,
		},
		Orientation: OrientationConfig{
			InputSize:           ori.InputSize,
			ConfidenceThreshold: ori.ConfidenceThreshold,
			SquareThreshold:     ori.SquareThreshold,
		},
		Pipeline: PipelineConfig{
			Timeout: pl.Timeout,
			Workers: runtime.NumCPU(),
		},
		Recognizer: RecognizerConfig{
			Languages:     rec.Languages,
			PageSegMode:   rec.PageSegMode,
			NormalizeForm: rec.Clean.NormalizeForm,
		},
		Output: OutputConfig{
			Dir:         "cropped",
			ImageFormat: "png",
			Quality:     95,
			Format:      string(pipeline.FormatJSON),
		},
		Batch: BatchConfig{
			ShowProgress: true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			OverlayEnabled:  true,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 5000,
				MaxDataPerDayMB:   1024,
			},
		},
		Queue: QueueConfig{
			RedisAddr:   "localhost:6379",
			Name:        "cardcrop",
			Concurrency: runtime.NumCPU(),
			ResultTTL:   24 * time.Hour,
		},
	}
}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	validLogFormats := []string{"text", "json"}
	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errs = append(errs, fmt.Errorf("invalid log format: %s (must be one of: %s)", c.LogFormat, strings.Join(validLogFormats, ", ")))
	}

	if _, err := pipeline.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, fmt.Errorf("invalid output format: %w", err))
	}
	if _, err := (pipeline.OutputOptions{Format: c.Output.ImageFormat}).Ext(); err != nil {
		errs = append(errs, err)
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		errs = append(errs, fmt.Errorf("invalid quality: %d (must be between 1 and 100)", c.Output.Quality))
	}

	pl, err := c.ToPipelineConfig()
	if err != nil {
		errs = append(errs, err)
	} else if err := pl.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Pipeline.Workers <= 0 {
		errs = append(errs, fmt.Errorf("invalid pipeline workers: %d (must be positive)", c.Pipeline.Workers))
	}
	for _, path := range c.modelPaths() {
		if err := models.ValidateModelExists(path); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Recognizer.Enabled {
		if err := c.ToRecognizerConfig().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("recognizer: %w", err))
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB))
	}
	if c.Server.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec))
	}
	if c.Queue.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("invalid queue concurrency: %d (must be positive)", c.Queue.Concurrency))
	}
	if c.Queue.ResultTTL <= 0 {
		errs = append(errs, fmt.Errorf("invalid result TTL: %v (must be positive)", c.Queue.ResultTTL))
	}

	return errors.Join(errs...)
}

// modelPaths lists the resolved model files the configuration will load.
func (c *Config) modelPaths() []string {
	var paths []string
	if c.Detector.ModelPath != "" {
		paths = append(paths, models.SegmentationPath(c.ModelsDir, c.Detector.ModelPath))
	}
	if c.Orientation.Enabled && c.Orientation.ModelPath != "" {
		paths = append(paths, models.OrientationPath(c.ModelsDir, c.Orientation.ModelPath))
	}
	return paths
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	border, err := ParseHexColor(c.Rectify.BorderColor)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("invalid border color: %w", err)
	}
	d := c.Detector
	r := c.Rectify
	o := c.Orientation
	b := c.Barcode
	gpu := onnx.GPUConfig{UseGPU: d.GPU, DeviceID: d.GPUDevice}
	return pipeline.Config{
		Detector: detector.Config{
			BlurKernel:          d.BlurKernel,
			CLAHE:               d.CLAHE,
			CLAHEClipLimit:      d.CLAHEClipLimit,
			CLAHETiles:          d.CLAHETiles,
			CannyLow:            d.CannyLow,
			CannyHigh:           d.CannyHigh,
			CloseKernel:         d.CloseKernel,
			AdaptiveBlock:       d.AdaptiveBlock,
			AdaptiveC:           d.AdaptiveC,
			ApproxEpsilon:       d.ApproxEpsilon,
			MinAreaFrac:         d.MinAreaFrac,
			MaxAreaFrac:         d.MaxAreaFrac,
			FallbackMinAreaFrac: d.FallbackMinAreaFrac,
			BorderTolerancePx:   d.BorderTolerancePx,
			MaxDimension:        d.MaxDimension,
			Model: detector.ModelConfig{
				Path:        models.SegmentationPath(c.ModelsDir, d.ModelPath),
				LibraryPath: d.ONNXLibrary,
				InputSize:   d.ModelInputSize,
				Threshold:   d.ModelThreshold,
				NumThreads:  d.NumThreads,
				GPU:         gpu,
			},
		},
		Orientation: orientation.Config{
			Enabled:             o.Enabled,
			ModelPath:           models.OrientationPath(c.ModelsDir, o.ModelPath),
			LibraryPath:         d.ONNXLibrary,
			InputSize:           o.InputSize,
			ConfidenceThreshold: o.ConfidenceThreshold,
			SquareThreshold:     o.SquareThreshold,
			NumThreads:          d.NumThreads,
			GPU:                 gpu,
		},
		Barcode: barcode.Config{
			Enabled:   b.Enabled,
			Formats:   b.Formats,
			TryHarder: b.TryHarder,
			Multi:     b.Multi,
		},
		Rectify: rectify.Config{
			Margin:          r.Margin,
			MarginFrac:      r.MarginFrac,
			MinMarginPx:     r.MinMarginPx,
			BorderPx:        r.BorderPx,
			BorderColor:     border,
			BorderSnapFrac:  r.BorderSnapFrac,
			BorderInsetFrac: r.BorderInsetFrac,
			MinQuadArea:     r.MinQuadArea,
			MinCornerDistPx: r.MinCornerDistPx,
			MaxCondition:    r.MaxCondition,
			MaxOutputPx:     r.MaxOutputPx,
		},
		MultiCard: c.Pipeline.MultiCard,
		Timeout:   c.Pipeline.Timeout,
		Workers:   c.Pipeline.Workers,
	}, nil
}

// ToRecognizerConfig converts the recognizer section.
func (c *Config) ToRecognizerConfig() recognizer.Config {
	rc := recognizer.DefaultConfig()
	rc.Languages = c.Recognizer.Languages
	rc.TessdataPath = c.Recognizer.TessdataPath
	rc.PageSegMode = c.Recognizer.PageSegMode
	if c.Recognizer.NormalizeForm != "" {
		rc.Clean.NormalizeForm = c.Recognizer.NormalizeForm
	}
	return rc
}

// ToBatchConfig converts the config into a batch run configuration.
func (c *Config) ToBatchConfig() (*batch.Config, error) {
	pl, err := c.ToPipelineConfig()
	if err != nil {
		return nil, err
	}
	bc := batch.DefaultConfig()
	bc.Pipeline = pl
	bc.OutputDir = c.Output.Dir
	bc.ImageFormat = c.Output.ImageFormat
	bc.Quality = c.Output.Quality
	bc.Format = c.Output.Format
	bc.DebugDir = c.Output.DebugDir
	bc.OverlayDir = c.Output.OverlayDir
	bc.Recursive = c.Batch.Recursive
	bc.IncludePatterns = c.Batch.Include
	bc.ExcludePatterns = c.Batch.Exclude
	bc.Pages = c.Batch.Pages
	bc.ShowProgress = c.Batch.ShowProgress
	bc.LogProgress = strings.EqualFold(c.LogFormat, "json")
	bc.ShowStats = c.Batch.ShowStats
	return bc, nil
}

// ToServerConfig converts the server section.
func (c *Config) ToServerConfig() server.Config {
	rl := c.Server.RateLimit
	return server.Config{
		Host:           c.Server.Host,
		Port:           c.Server.Port,
		CORSOrigin:     c.Server.CORSOrigin,
		MaxUploadMB:    c.Server.MaxUploadMB,
		TimeoutSec:     c.Server.TimeoutSec,
		OverlayEnabled: c.Server.OverlayEnabled,
		RateLimit: server.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			MaxRequestsPerDay: rl.MaxRequestsPerDay,
			MaxDataPerDayMB:   rl.MaxDataPerDayMB,
		},
	}
}

// ToQueueConfig converts the queue section.
func (c *Config) ToQueueConfig() queue.Config {
	return queue.Config{
		RedisAddr:     c.Queue.RedisAddr,
		RedisPassword: c.Queue.RedisPassword,
		RedisDB:       c.Queue.RedisDB,
		Queue:         c.Queue.Name,
		Concurrency:   c.Queue.Concurrency,
		ResultTTL:     c.Queue.ResultTTL,
	}
}

// ParseHexColor parses colors like "#RRGGBB" or "RRGGBB" into an opaque colour.
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("expected #RRGGBB, got %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("expected #RRGGBB, got %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil //nolint:gosec // masked to 8 bits
}

// FormatHexColor renders c as "#rrggbb".
func FormatHexColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
