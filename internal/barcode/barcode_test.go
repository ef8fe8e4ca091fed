package barcode

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// qrCard renders text as a QR code on a white card with a wide quiet zone.
func qrCard(t *testing.T, text string) *image.NRGBA {
	t.Helper()
	m, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 200, 200, nil)
	require.NoError(t, err)

	card := image.NewNRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(card, card.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(card, image.Rect(60, 20, 260, 220), m, image.Point{}, draw.Src)
	return card
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "qr", FormatQR.String())
	assert.Equal(t, "ean13", FormatEAN13.String())
	assert.Equal(t, "format(99)", Format(99).String())

	text, err := FormatCode128.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "code128", string(text))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"qr", FormatQR},
		{"QR", FormatQR},
		{"EAN-13", FormatEAN13},
		{"data_matrix", FormatDataMatrix},
		{" upca ", FormatUPCA},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("unknown")
	require.Error(t, err)
	_, err = ParseFormat("aztec")
	require.Error(t, err)
}

func TestConfigOptions(t *testing.T) {
	opts, err := Config{Formats: []string{"qr", "ean13"}, TryHarder: true}.Options()
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatQR, FormatEAN13}, opts.Formats)
	assert.True(t, opts.TryHarder)
	assert.False(t, opts.Multi)

	require.Error(t, Config{Formats: []string{"morse"}}.Validate())
	require.NoError(t, Config{}.Validate())
}

func TestFormatMappingCoversEverySymbology(t *testing.T) {
	for _, s := range symbologies {
		assert.Equal(t, s.format, formatFromZXing(s.zxing), s.format.String())
	}
	assert.Equal(t, FormatUnknown, formatFromZXing(gozxing.BarcodeFormat_AZTEC))
}

func TestDecode_QRCode(t *testing.T) {
	results, err := New().Decode(context.Background(), qrCard(t, "CARD-0042"), Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, FormatQR, results[0].Format)
	assert.Equal(t, "CARD-0042", results[0].Text)
	assert.NotEmpty(t, results[0].Points)
}

func TestDecode_FormatFilter(t *testing.T) {
	results, err := New().Decode(context.Background(), qrCard(t, "CARD-0042"), Options{Formats: []Format{FormatEAN13}})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDecode_BlankImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 120, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	results, err := New().Decode(context.Background(), img, Options{TryHarder: true})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDecode_Errors(t *testing.T) {
	r := New()
	_, err := r.Decode(context.Background(), nil, Options{})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Decode(ctx, qrCard(t, "x"), Options{})
	require.ErrorIs(t, err, context.Canceled)

	results, err := r.Decode(context.Background(), image.NewNRGBA(image.Rectangle{}), Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDecode_MultipleQRCodes(t *testing.T) {
	card := image.NewNRGBA(image.Rect(0, 0, 560, 260))
	draw.Draw(card, card.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	for i, text := range []string{"CARD-0042", "SET-7"} {
		m, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 200, 200, nil)
		require.NoError(t, err)
		x := 40 + i*280
		draw.Draw(card, image.Rect(x, 30, x+200, 230), m, image.Point{}, draw.Src)
	}

	results, err := New().Decode(context.Background(), card, Options{Formats: []Format{FormatQR}, Multi: true})
	require.NoError(t, err)
	texts := make([]string, 0, len(results))
	for _, r := range results {
		assert.Equal(t, FormatQR, r.Format)
		texts = append(texts, r.Text)
	}
	assert.ElementsMatch(t, []string{"CARD-0042", "SET-7"}, texts)
}

func TestDecode_MultiSingleCode(t *testing.T) {
	results, err := New().Decode(context.Background(), qrCard(t, "CARD-0042"), Options{Multi: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "CARD-0042", results[0].Text)
}
