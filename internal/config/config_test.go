package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/barcode"
	"github.com/MeKo-Tech/cardcrop/internal/detector"
	"github.com/MeKo-Tech/cardcrop/internal/models"
	"github.com/MeKo-Tech/cardcrop/internal/orientation"
	"github.com/MeKo-Tech/cardcrop/internal/rectify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "#ffffff", cfg.Rectify.BorderColor)
	assert.Equal(t, 24*time.Hour, cfg.Queue.ResultTTL)
}

func TestDefaultConfig_MatchesComponents(t *testing.T) {
	cfg := DefaultConfig()
	pl, err := cfg.ToPipelineConfig()
	require.NoError(t, err)

	want := detector.DefaultConfig()
	assert.Equal(t, want.CannyLow, pl.Detector.CannyLow)
	assert.Equal(t, want.CloseKernel, pl.Detector.CloseKernel)
	assert.Equal(t, want.Model.Threshold, pl.Detector.Model.Threshold)
	assert.False(t, pl.Detector.Model.Enabled())

	wantRect := rectify.DefaultConfig()
	assert.Equal(t, wantRect, pl.Rectify)
}

func TestValidate_CollectsErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "invalid log format"},
		{"output format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"image format", func(c *Config) { c.Output.ImageFormat = "gif" }, "unsupported image format"},
		{"quality", func(c *Config) { c.Output.Quality = 0 }, "invalid quality"},
		{"border color", func(c *Config) { c.Rectify.BorderColor = "white" }, "invalid border color"},
		{"detector", func(c *Config) { c.Detector.BlurKernel = 4 }, "blur kernel"},
		{"workers", func(c *Config) { c.Pipeline.Workers = 0 }, "invalid pipeline workers"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "invalid max upload size"},
		{"queue", func(c *Config) { c.Queue.Concurrency = 0 }, "invalid queue concurrency"},
		{"ttl", func(c *Config) { c.Queue.ResultTTL = 0 }, "invalid result TTL"},
		{"recognizer", func(c *Config) { c.Recognizer.Enabled = true; c.Recognizer.Languages = nil }, "recognition language"},
		{"segmentation model", func(c *Config) { c.Detector.ModelPath = "/nonexistent/seg.onnx" }, "model file not found"},
		{"orientation", func(c *Config) { c.Orientation.Enabled = true; c.Orientation.InputSize = 4 }, "input size"},
		{"orientation model", func(c *Config) { c.Orientation.Enabled = true; c.Orientation.ModelPath = "missing.onnx" }, "model file not found"},
		{"barcode formats", func(c *Config) { c.Barcode.Formats = []string{"morse"} }, "unknown barcode format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	cfg := DefaultConfig()
	cfg.LogLevel = "nope"
	cfg.Server.Port = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
	assert.Contains(t, err.Error(), "invalid server port")
}

func TestToBatchConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Dir = "out"
	cfg.Output.ImageFormat = "jpeg"
	cfg.Batch.Recursive = true
	cfg.Batch.Include = []string{"*.jpg"}
	cfg.Pipeline.MultiCard = true
	cfg.Rectify.BorderColor = "#000000"

	bc, err := cfg.ToBatchConfig()
	require.NoError(t, err)
	assert.Equal(t, "out", bc.OutputDir)
	assert.Equal(t, "jpeg", bc.ImageFormat)
	assert.True(t, bc.Recursive)
	assert.Equal(t, []string{"*.jpg"}, bc.IncludePatterns)
	assert.True(t, bc.Pipeline.MultiCard)
	assert.Equal(t, color.NRGBA{A: 255}, bc.Pipeline.Rectify.BorderColor)
	assert.False(t, bc.LogProgress)
	require.NoError(t, bc.Validate())

	cfg.LogFormat = "JSON"
	bc, err = cfg.ToBatchConfig()
	require.NoError(t, err)
	assert.True(t, bc.LogProgress, "json logs report progress as records")
}

func TestToPipelineConfig_OrientationAndBarcodes(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, models.TypeOrientation, models.Orientation)
	require.NoError(t, os.MkdirAll(filepath.Dir(modelPath), 0o755))
	require.NoError(t, os.WriteFile(modelPath, []byte("onnx"), 0o600))

	cfg := DefaultConfig()
	cfg.ModelsDir = dir
	cfg.Detector.NumThreads = 2
	cfg.Detector.GPU = true
	cfg.Orientation.Enabled = true
	cfg.Orientation.ModelPath = models.Orientation
	cfg.Barcode = BarcodeConfig{Enabled: true, Formats: []string{"qr", "ean13"}, Multi: true}
	require.NoError(t, cfg.Validate())

	pl, err := cfg.ToPipelineConfig()
	require.NoError(t, err)
	assert.True(t, pl.Orientation.Enabled)
	assert.Equal(t, modelPath, pl.Orientation.ModelPath)
	assert.Equal(t, orientation.DefaultConfig().InputSize, pl.Orientation.InputSize)
	assert.Equal(t, 2, pl.Orientation.NumThreads)
	assert.True(t, pl.Orientation.GPU.UseGPU)

	opts, err := pl.Barcode.Options()
	require.NoError(t, err)
	assert.Equal(t, []barcode.Format{barcode.FormatQR, barcode.FormatEAN13}, opts.Formats)
	assert.True(t, opts.Multi)
	assert.True(t, pl.Barcode.Enabled)
}

func TestToRecognizerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Recognizer.Languages = []string{"deu", "eng"}
	cfg.Recognizer.PageSegMode = 6
	cfg.Recognizer.NormalizeForm = "NFKC"
	rc := cfg.ToRecognizerConfig()
	assert.Equal(t, []string{"deu", "eng"}, rc.Languages)
	assert.Equal(t, 6, rc.PageSegMode)
	assert.Equal(t, "NFKC", rc.Clean.NormalizeForm)
	assert.True(t, rc.Clean.CollapseWhitespace)
}

func TestToServerAndQueueConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 9000
	cfg.Server.RateLimit.Enabled = true
	cfg.Queue.Name = "cards"
	cfg.Queue.RedisPassword = "secret"

	sc := cfg.ToServerConfig()
	assert.Equal(t, 9000, sc.Port)
	assert.Equal(t, cfg.Server.MaxUploadMB, sc.MaxUploadMB)
	assert.True(t, sc.RateLimit.Enabled)
	assert.Equal(t, cfg.Server.RateLimit.RequestsPerMinute, sc.RateLimit.RequestsPerMinute)

	qc := cfg.ToQueueConfig()
	assert.Equal(t, "cards", qc.Queue)
	assert.Equal(t, "secret", qc.RedisPassword)
	assert.Equal(t, 24*time.Hour, qc.ResultTTL)
	assert.NoError(t, qc.Validate())
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, G: 128, A: 255}, c)

	c, err = ParseHexColor("00FF00")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, c)
	assert.Equal(t, "#00ff00", FormatHexColor(c))

	for _, bad := range []string{"", "#fff", "zzzzzz", "#1234567"} {
		_, err := ParseHexColor(bad)
		assert.Error(t, err, bad)
	}
}
