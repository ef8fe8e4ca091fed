package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/cardcrop/internal/batch"
	"github.com/spf13/cobra"
)

// newCropCmd builds the command that crops the cards of individual images.
func (a *app) newCropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crop [images...]",
		Short: "Detect and rectify the card in one or more images",
		Long: `Detect the card in each image and write a straightened crop next to the
records describing it.

Supported formats: JPEG, PNG, BMP, TIFF, WebP and PDF pages (file.pdf#2)

Examples:
  cardcrop crop photo.jpg
  cardcrop crop photo.jpg --multi --output-dir crops
  cardcrop crop photo.jpg --orient --barcodes
  cardcrop crop scan.pdf#1 --format csv --results cards.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.runBatch(cmd, args)
			if err != nil {
				return err
			}
			if n := res.Failed(); n > 0 {
				return fmt.Errorf("%d of %d images failed", n, len(res.Outcomes))
			}
			return nil
		},
	}
	a.addProcessingFlags(cmd)
	cmd.Flags().Bool("stats", false, "print processing statistics")
	a.bind(cmd, map[string]string{"stats": "batch.show_stats"})
	return cmd
}

// addProcessingFlags registers the detection, rectification and output flags
// shared by crop and batch.
func (a *app) addProcessingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("output-dir", "o", "cropped", "directory for rectified crops (empty skips writing)")
	f.StringP("format", "f", "json", "record format: json, csv, yaml or text")
	f.String("results", "", "write records to this file instead of stdout")
	f.String("image-format", "png", "crop image format: png or jpeg")
	f.Int("quality", 95, "JPEG quality (1-100)")
	f.Bool("multi", false, "crop every card in an image instead of the best one")
	f.Bool("margin", false, "keep a margin of background around each card")
	f.Int("border-px", 0, "solid border added around each crop in pixels")
	f.String("border-color", "#ffffff", "border color (hex)")
	f.String("debug-dir", "", "write intermediate edge maps and overlays here")
	f.String("overlay-dir", "", "write the detected corners drawn on each source image here")
	f.Duration("timeout", 0, "per-image timeout (0 disables)")
	f.IntP("workers", "w", 0, "number of parallel workers (default: number of CPUs)")
	f.Int("max-dimension", 0, "downscale images whose longer side exceeds this before detection")
	f.Bool("clahe", false, "equalize contrast before edge detection")
	f.String("model", "", "segmentation model used as an extra edge map (ONNX)")
	f.Bool("recognize", false, "recognize the text of each crop")
	f.Bool("orient", false, "turn each crop upright")
	f.String("orientation-model", "", "orientation classifier (ONNX); empty uses a heuristic")
	f.Bool("barcodes", false, "decode barcodes and QR codes on each crop")
	f.StringSlice("barcode-formats", nil, "only decode these symbologies, e.g. qr,ean13")
	f.String("models-dir", "", "directory searched for model files given by name")

	a.bind(cmd, map[string]string{
		"output-dir":        "output.dir",
		"format":            "output.format",
		"image-format":      "output.image_format",
		"quality":           "output.quality",
		"multi":             "pipeline.multi_card",
		"margin":            "rectify.margin",
		"border-px":         "rectify.border_px",
		"border-color":      "rectify.border_color",
		"debug-dir":         "output.debug_dir",
		"overlay-dir":       "output.overlay_dir",
		"timeout":           "pipeline.timeout",
		"workers":           "pipeline.workers",
		"max-dimension":     "detector.max_dimension",
		"clahe":             "detector.clahe",
		"model":             "detector.model_path",
		"recognize":         "recognizer.enabled",
		"orient":            "orientation.enabled",
		"orientation-model": "orientation.model_path",
		"barcodes":          "barcode.enabled",
		"barcode-formats":   "barcode.formats",
		"models-dir":        "models_dir",
	})
}

// runBatch processes args with the loaded configuration and writes the
// records and optional statistics.
func (a *app) runBatch(cmd *cobra.Command, args []string) (*batch.Result, error) {
	bc, err := a.cfg.ToBatchConfig()
	if err != nil {
		return nil, err
	}
	bc.OutputFile, _ = cmd.Flags().GetString("results")
	if q := cmd.Flags().Lookup("quiet"); q != nil {
		bc.Quiet = q.Value.String() == "true"
	}
	if cmd.Flags().Lookup("progress") == nil {
		bc.ShowProgress = false
	}

	rec, err := a.newRecognizer()
	if err != nil {
		return nil, err
	}
	res, err := batch.ProcessBatch(cmd.Context(), args, bc, rec)
	if err != nil {
		return nil, err
	}

	if err := res.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return nil, err
	}
	if bc.ShowStats {
		res.PrintStats(cmd.ErrOrStderr(), bc.Quiet)
	}
	return res, nil
}
