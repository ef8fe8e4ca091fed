package pdf

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"3", []int{3}, false},
		{"1-3", []int{1, 2, 3}, false},
		{"1, 4-5", []int{1, 4, 5}, false},
		{"5-2", nil, true},
		{"a", nil, true},
		{"0", nil, true},
		{"2-x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePageRange(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// writeImagePDF builds a one-page PDF from a PNG. Skips when pdfcpu cannot
// import in this environment.
func writeImagePDF(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "card.png")
	require.NoError(t, imaging.Save(imaging.New(120, 80, color.NRGBA{R: 200, G: 200, B: 190, A: 255}), pngPath))
	pdfPath := filepath.Join(dir, "card.pdf")
	if err := api.ImportImagesFile([]string{pngPath}, pdfPath, nil, nil); err != nil {
		t.Skipf("cannot build PDF fixture: %v", err)
	}
	return pdfPath
}

func TestPageImages(t *testing.T) {
	path := writeImagePDF(t)

	n, err := PageCount(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	img, err := FirstImage(path, 1)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 120, 80), img.Bounds())

	_, err = PageImages(path, 0)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestPageImages_PastLastPage(t *testing.T) {
	path := writeImagePDF(t)

	for _, page := range []int{2, 99} {
		_, err := PageImages(path, page)
		require.ErrorIs(t, err, ErrPageOutOfRange, "page %d", page)
	}
}

func TestPageCount_Missing(t *testing.T) {
	_, err := PageCount(filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
}
