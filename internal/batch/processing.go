package batch

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
)

// collectRecords writes the crops of every outcome and converts it into
// records, in input order.
func collectRecords(ctx context.Context, loader pipeline.Loader, outcomes []pipeline.Outcome,
	config *Config) []pipeline.Record {
	records := make([]pipeline.Record, 0, len(outcomes))
	for _, o := range outcomes {
		records = append(records, saveOutcome(ctx, loader, o, config)...)
	}
	return records
}

// saveOutcome persists the crops and overlay of one image. A write failure
// is logged and leaves the affected output path null.
func saveOutcome(ctx context.Context, loader pipeline.Loader, o pipeline.Outcome, config *Config) []pipeline.Record {
	res := o.Result
	if res == nil {
		res = &pipeline.Result{ID: o.ID}
	}
	if o.Err != nil {
		return pipeline.Records(res, nil, o.Err)
	}

	var outputs []string
	if config.OutputDir != "" {
		paths, err := pipeline.SaveCrops(res, config.outputOptions(), config.Pipeline.MultiCard)
		if err != nil {
			slog.Error("Failed to save crop", "image", o.ID, "error", err)
		}
		outputs = paths
	}

	if config.OverlayDir != "" {
		generateAndSaveOverlay(ctx, loader, res, config.OverlayDir)
	}
	return pipeline.Records(res, outputs, nil)
}

// generateAndSaveOverlay reloads the source and saves it with the detected
// corners drawn on top.
func generateAndSaveOverlay(ctx context.Context, loader pipeline.Loader, res *pipeline.Result, overlayDir string) {
	img, err := loader.Load(ctx, res.ID)
	if err != nil {
		slog.Warn("Failed to reload image for overlay", "image", res.ID, "error", err)
		return
	}
	outPath := filepath.Join(overlayDir, pipeline.SanitizeID(res.ID)+"_overlay.png")
	if err := utils.SaveImage(outPath, pipeline.Overlay(img, res), utils.SaveOptions{}); err != nil {
		slog.Warn("Failed to save overlay", "path", outPath, "error", err)
	}
}
