// Package barcode decodes 1D and 2D symbols printed on rectified cards.
package barcode

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatCode128
	FormatCode39
	FormatCode93
	FormatEAN8
	FormatEAN13
	FormatUPCA
	FormatUPCE
	FormatITF
	FormatCodabar
)

var formatNames = map[Format]string{
	FormatUnknown:    "unknown",
	FormatQR:         "qr",
	FormatDataMatrix: "datamatrix",
	FormatCode128:    "code128",
	FormatCode39:     "code39",
	FormatCode93:     "code93",
	FormatEAN8:       "ean8",
	FormatEAN13:      "ean13",
	FormatUPCA:       "upca",
	FormatUPCE:       "upce",
	FormatITF:        "itf",
	FormatCodabar:    "codabar",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// MarshalText renders the format name in JSON and YAML output.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// ParseFormat maps a name such as "qr" or "EAN-13" to a Format.
func ParseFormat(s string) (Format, error) {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for f, name := range formatNames {
		if f != FormatUnknown && name == key {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown barcode format %q", s)
}

// Options controls decoding.
type Options struct {
	// Formats constrains the symbologies searched; empty means all.
	Formats []Format
	// TryHarder trades speed for a more exhaustive search.
	TryHarder bool
	// Multi reports every symbol instead of the first one found.
	Multi bool
}

// Point is a key point of a symbol in image coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Result is one decoded symbol.
type Result struct {
	Format Format  `json:"format" yaml:"format"`
	Text   string  `json:"text" yaml:"text"`
	Points []Point `json:"points,omitempty" yaml:"points,omitempty"`
}

// Reader decodes the symbols in an image. An image without symbols yields
// no results and no error.
type Reader interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// Config is the serializable form of Options plus the on switch.
type Config struct {
	Enabled   bool
	Formats   []string
	TryHarder bool
	Multi     bool
}

// Options parses the configured format names.
func (c Config) Options() (Options, error) {
	opts := Options{TryHarder: c.TryHarder, Multi: c.Multi}
	for _, name := range c.Formats {
		f, err := ParseFormat(name)
		if err != nil {
			return Options{}, err
		}
		opts.Formats = append(opts.Formats, f)
	}
	return opts, nil
}

// Validate checks the format names.
func (c Config) Validate() error {
	_, err := c.Options()
	return err
}

// New returns the default pure Go reader.
func New() Reader { return &zxingReader{} }
