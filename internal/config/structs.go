//nolint:lll
package config

import "time"

// Config represents the complete configuration for the cardcrop application.
// It includes settings for all commands (crop, batch, serve, worker) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`

	Detector    DetectorConfig    `mapstructure:"detector" yaml:"detector" json:"detector"`
	Rectify     RectifyConfig     `mapstructure:"rectify" yaml:"rectify" json:"rectify"`
	Orientation OrientationConfig `mapstructure:"orientation" yaml:"orientation" json:"orientation"`
	Barcode     BarcodeConfig     `mapstructure:"barcode" yaml:"barcode" json:"barcode"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Recognizer  RecognizerConfig  `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output" json:"output"`
	Batch       BatchConfig       `mapstructure:"batch" yaml:"batch" json:"batch"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server" json:"server"`
	Queue       QueueConfig       `mapstructure:"queue" yaml:"queue" json:"queue"`
}

// DetectorConfig contains card detection thresholds.
type DetectorConfig struct {
	BlurKernel          int     `mapstructure:"blur_kernel" yaml:"blur_kernel" json:"blur_kernel"`
	CLAHE               bool    `mapstructure:"clahe" yaml:"clahe" json:"clahe"`
	CLAHEClipLimit      float64 `mapstructure:"clahe_clip_limit" yaml:"clahe_clip_limit" json:"clahe_clip_limit"`
	CLAHETiles          int     `mapstructure:"clahe_tiles" yaml:"clahe_tiles" json:"clahe_tiles"`
	CannyLow            float64 `mapstructure:"canny_low" yaml:"canny_low" json:"canny_low"`
	CannyHigh           float64 `mapstructure:"canny_high" yaml:"canny_high" json:"canny_high"`
	CloseKernel         int     `mapstructure:"close_kernel" yaml:"close_kernel" json:"close_kernel"`
	AdaptiveBlock       int     `mapstructure:"adaptive_block" yaml:"adaptive_block" json:"adaptive_block"`
	AdaptiveC           float64 `mapstructure:"adaptive_c" yaml:"adaptive_c" json:"adaptive_c"`
	ApproxEpsilon       float64 `mapstructure:"approx_epsilon" yaml:"approx_epsilon" json:"approx_epsilon"`
	MinAreaFrac         float64 `mapstructure:"min_area_frac" yaml:"min_area_frac" json:"min_area_frac"`
	MaxAreaFrac         float64 `mapstructure:"max_area_frac" yaml:"max_area_frac" json:"max_area_frac"`
	FallbackMinAreaFrac float64 `mapstructure:"fallback_min_area_frac" yaml:"fallback_min_area_frac" json:"fallback_min_area_frac"`
	BorderTolerancePx   float64 `mapstructure:"border_tolerance_px" yaml:"border_tolerance_px" json:"border_tolerance_px"`
	MaxDimension        int     `mapstructure:"max_dimension" yaml:"max_dimension" json:"max_dimension"`

	// Segmentation model edge map
	ModelPath      string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	ModelThreshold float64 `mapstructure:"model_threshold" yaml:"model_threshold" json:"model_threshold"`
	ModelInputSize int     `mapstructure:"model_input_size" yaml:"model_input_size" json:"model_input_size"`
	ONNXLibrary    string  `mapstructure:"onnx_library" yaml:"onnx_library" json:"onnx_library"`
	NumThreads     int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	GPU            bool    `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
	GPUDevice      int     `mapstructure:"gpu_device" yaml:"gpu_device" json:"gpu_device"`
}

// RectifyConfig contains perspective correction settings.
type RectifyConfig struct {
	Margin          bool    `mapstructure:"margin" yaml:"margin" json:"margin"`
	MarginFrac      float64 `mapstructure:"margin_frac" yaml:"margin_frac" json:"margin_frac"`
	MinMarginPx     float64 `mapstructure:"min_margin_px" yaml:"min_margin_px" json:"min_margin_px"`
	BorderPx        int     `mapstructure:"border_px" yaml:"border_px" json:"border_px"`
	BorderColor     string  `mapstructure:"border_color" yaml:"border_color" json:"border_color"`
	BorderSnapFrac  float64 `mapstructure:"border_snap_frac" yaml:"border_snap_frac" json:"border_snap_frac"`
	BorderInsetFrac float64 `mapstructure:"border_inset_frac" yaml:"border_inset_frac" json:"border_inset_frac"`
	MinQuadArea     float64 `mapstructure:"min_quad_area" yaml:"min_quad_area" json:"min_quad_area"`
	MinCornerDistPx float64 `mapstructure:"min_corner_dist_px" yaml:"min_corner_dist_px" json:"min_corner_dist_px"`
	MaxCondition    float64 `mapstructure:"max_condition" yaml:"max_condition" json:"max_condition"`
	MaxOutputPx     int     `mapstructure:"max_output_px" yaml:"max_output_px" json:"max_output_px"`
}

// OrientationConfig contains upright correction settings. The ONNX runtime
// settings are shared with the detector section.
type OrientationConfig struct {
	Enabled             bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ModelPath           string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	InputSize           int     `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold" json:"confidence_threshold"`
	SquareThreshold     float64 `mapstructure:"square_threshold" yaml:"square_threshold" json:"square_threshold"`
}

// BarcodeConfig contains barcode decoding settings.
type BarcodeConfig struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Formats   []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	Multi     bool     `mapstructure:"multi" yaml:"multi" json:"multi"`
}

// PipelineConfig contains run-level settings.
type PipelineConfig struct {
	MultiCard bool          `mapstructure:"multi_card" yaml:"multi_card" json:"multi_card"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Workers   int           `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// RecognizerConfig contains text recognition settings.
type RecognizerConfig struct {
	Enabled       bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Languages     []string `mapstructure:"languages" yaml:"languages" json:"languages"`
	TessdataPath  string   `mapstructure:"tessdata_path" yaml:"tessdata_path" json:"tessdata_path"`
	PageSegMode   int      `mapstructure:"page_seg_mode" yaml:"page_seg_mode" json:"page_seg_mode"`
	NormalizeForm string   `mapstructure:"normalize_form" yaml:"normalize_form" json:"normalize_form"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir" json:"dir"`
	ImageFormat string `mapstructure:"image_format" yaml:"image_format" json:"image_format"`
	Quality     int    `mapstructure:"quality" yaml:"quality" json:"quality"`
	Format      string `mapstructure:"format" yaml:"format" json:"format"`
	DebugDir    string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
	OverlayDir  string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
}

// BatchConfig contains discovery and progress settings.
type BatchConfig struct {
	Recursive    bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include      []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude      []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	Pages        string   `mapstructure:"pages" yaml:"pages" json:"pages"`
	ShowProgress bool     `mapstructure:"show_progress" yaml:"show_progress" json:"show_progress"`
	ShowStats    bool     `mapstructure:"show_stats" yaml:"show_stats" json:"show_stats"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64           `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool            `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// QueueConfig contains the asynchronous job queue settings.
type QueueConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password" json:"-"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db" json:"redis_db"`
	Name          string        `mapstructure:"name" yaml:"name" json:"name"`
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
	ResultTTL     time.Duration `mapstructure:"result_ttl" yaml:"result_ttl" json:"result_ttl"`
}
