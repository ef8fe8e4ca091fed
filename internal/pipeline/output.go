package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/cardcrop/internal/utils"
)

// OutputOptions controls how crops are written.
type OutputOptions struct {
	Dir     string
	Format  string // png (default) or jpeg
	Quality int    // JPEG quality
}

// Ext returns the file extension for the output format.
func (o OutputOptions) Ext() (string, error) {
	switch strings.ToLower(o.Format) {
	case "", "png":
		return ".png", nil
	case "jpg", "jpeg":
		return ".jpg", nil
	}
	return "", fmt.Errorf("unsupported image format %q", o.Format)
}

// OutputPath names a crop: <stem>_cropped<ext> for a single card and
// <stem>_card<N><ext> in multi-card runs.
func OutputPath(dir, id string, card int, multi bool, ext string) string {
	stem := SanitizeID(id)
	if multi {
		return filepath.Join(dir, fmt.Sprintf("%s_card%d%s", stem, card, ext))
	}
	return filepath.Join(dir, stem+"_cropped"+ext)
}

// SaveCrops writes every crop of res and returns the paths in crop order.
func SaveCrops(res *Result, opts OutputOptions, multi bool) ([]string, error) {
	ext, err := opts.Ext()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(res.Crops))
	for _, c := range res.Crops {
		path := OutputPath(opts.Dir, res.ID, c.Index, multi, ext)
		if err := utils.SaveImage(path, c.Image, utils.SaveOptions{JPEGQuality: opts.Quality}); err != nil {
			return paths, fmt.Errorf("failed to save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
