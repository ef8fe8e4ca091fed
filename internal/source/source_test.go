package source

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, imaging.Save(imaging.New(w, h, color.NRGBA{R: 10, G: 20, B: 30, A: 255}), path))
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		id      string
		want    Ref
		wantErr bool
	}{
		{"a/photo.jpg", Ref{Path: "a/photo.jpg"}, false},
		{"doc.pdf", Ref{Path: "doc.pdf", Page: 1}, false},
		{"doc.PDF#3", Ref{Path: "doc.PDF", Page: 3}, false},
		{"odd#name.png", Ref{Path: "odd#name.png"}, false},
		{"doc.pdf#0", Ref{}, true},
		{"doc.pdf#x", Ref{}, true},
		{"", Ref{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := ParseRef(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "doc.pdf#2", Ref{Path: "doc.pdf", Page: 2}.String())
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "card.png")
	writePNG(t, path, 64, 48)

	l := NewLoader()
	img, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())

	_, err = l.Load(context.Background(), filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Load(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o600))
	_, err = l.Load(context.Background(), txt)
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 5, 7))))
	img, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())

	_, err = Decode(nil)
	assert.Error(t, err)
	_, err = Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 4, 4)
	writePNG(t, filepath.Join(dir, "a.jpg"), 4, 4)
	writePNG(t, filepath.Join(dir, "skip_me.png"), 4, 4)
	writePNG(t, filepath.Join(dir, "nested", "c.png"), 4, 4)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("#"), 0o600))

	ids, err := Discover([]string{dir}, DiscoverOptions{Exclude: []string{"skip_*"}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png")}, ids)

	ids, err = Discover([]string{dir}, DiscoverOptions{Recursive: true, Include: []string{"*.png"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "nested", "c.png"),
		filepath.Join(dir, "skip_me.png"),
	}, ids)

	ids, err = Discover([]string{"scan.pdf#2"}, DiscoverOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"scan.pdf#2"}, ids)

	_, err = Discover([]string{filepath.Join(dir, "missing")}, DiscoverOptions{})
	assert.Error(t, err)
}
