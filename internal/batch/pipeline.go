package batch

import (
	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/recognizer"
)

// buildPipeline creates a card pipeline from the batch configuration.
func buildPipeline(config *Config, loader pipeline.Loader, rec recognizer.Recognizer) (*pipeline.Pipeline, error) {
	b := pipeline.NewBuilder().
		WithConfig(config.Pipeline).
		WithLoader(loader)
	if rec != nil {
		b = b.WithRecognizer(rec)
	}
	if config.DebugDir != "" {
		b = b.WithDebugSink(pipeline.NewDirSink(config.DebugDir))
	}
	return b.Build()
}
