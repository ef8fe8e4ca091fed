package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/multi"
	qrmulti "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

type hints = map[gozxing.DecodeHintType]interface{}

// zxingReader tries one gozxing reader per requested symbology.
type zxingReader struct{}

type symbology struct {
	format Format
	zxing  gozxing.BarcodeFormat
	reader func() gozxing.Reader
	// multi finds several symbols in one pass; nil falls back to reader.
	multi func() multi.MultipleBarcodeReader
}

// symbologies lists the readers in the order they are tried. 2D codes come
// first because cards usually carry at most one of them.
var symbologies = []symbology{
	{format: FormatQR, zxing: gozxing.BarcodeFormat_QR_CODE, reader: func() gozxing.Reader { return qrcode.NewQRCodeReader() }, multi: qrmulti.NewQRCodeMultiReader},
	{format: FormatDataMatrix, zxing: gozxing.BarcodeFormat_DATA_MATRIX, reader: func() gozxing.Reader { return datamatrix.NewDataMatrixReader() }},
	{format: FormatEAN13, zxing: gozxing.BarcodeFormat_EAN_13, reader: func() gozxing.Reader { return oned.NewEAN13Reader() }},
	{format: FormatEAN8, zxing: gozxing.BarcodeFormat_EAN_8, reader: func() gozxing.Reader { return oned.NewEAN8Reader() }},
	{format: FormatUPCA, zxing: gozxing.BarcodeFormat_UPC_A, reader: func() gozxing.Reader { return oned.NewUPCAReader() }},
	{format: FormatUPCE, zxing: gozxing.BarcodeFormat_UPC_E, reader: func() gozxing.Reader { return oned.NewUPCEReader() }},
	{format: FormatCode128, zxing: gozxing.BarcodeFormat_CODE_128, reader: func() gozxing.Reader { return oned.NewCode128Reader() }},
	{format: FormatCode39, zxing: gozxing.BarcodeFormat_CODE_39, reader: func() gozxing.Reader { return oned.NewCode39Reader() }},
	{format: FormatCode93, zxing: gozxing.BarcodeFormat_CODE_93, reader: func() gozxing.Reader { return oned.NewCode93Reader() }},
	{format: FormatITF, zxing: gozxing.BarcodeFormat_ITF, reader: func() gozxing.Reader { return oned.NewITFReader() }},
	{format: FormatCodabar, zxing: gozxing.BarcodeFormat_CODABAR, reader: func() gozxing.Reader { return oned.NewCodaBarReader() }},
}

// Decode implements Reader.
func (z *zxingReader) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, nil
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to binarize image: %w", err)
	}

	h := hints{}
	if opts.TryHarder {
		h[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	var out []Result
	seen := make(map[string]bool)
	for _, s := range symbologies {
		if len(opts.Formats) > 0 && !slices.Contains(opts.Formats, s.format) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, r := range decodeWith(s, bmp, h, opts.Multi) {
			res := fromZXing(r)
			key := res.Format.String() + "\x00" + res.Text
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, res)
			if !opts.Multi {
				return out, nil
			}
		}
	}
	return out, nil
}

// decodeWith returns nothing when no symbol is found. gozxing reports that
// case as an error.
func decodeWith(s symbology, bmp *gozxing.BinaryBitmap, h hints, many bool) []*gozxing.Result {
	if many && s.multi != nil {
		results, err := s.multi().DecodeMultiple(bmp, h)
		if err != nil {
			return nil
		}
		return results
	}
	res, err := s.reader().Decode(bmp, h)
	if err != nil || res == nil {
		return nil
	}
	return []*gozxing.Result{res}
}

func fromZXing(r *gozxing.Result) Result {
	res := Result{Format: formatFromZXing(r.GetBarcodeFormat()), Text: r.GetText()}
	for _, p := range r.GetResultPoints() {
		if p == nil {
			continue
		}
		res.Points = append(res.Points, Point{X: p.GetX(), Y: p.GetY()})
	}
	return res
}

func formatFromZXing(bf gozxing.BarcodeFormat) Format {
	for _, s := range symbologies {
		if s.zxing == bf {
			return s.format
		}
	}
	return FormatUnknown
}
