// Package source resolves image identifiers: plain image paths and PDF page
// references of the form "file.pdf#<page>".
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/cardcrop/internal/pdf"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"github.com/disintegration/imaging"
)

// ErrNotFound is returned when an identifier does not name an existing file.
var ErrNotFound = errors.New("source not found")

// Ref is a parsed identifier.
type Ref struct {
	Path string
	Page int // 1-based PDF page, 0 for image files
}

// IsPDF reports whether the reference points into a PDF.
func (r Ref) IsPDF() bool { return strings.EqualFold(filepath.Ext(r.Path), ".pdf") }

// String renders the identifier form.
func (r Ref) String() string {
	if r.IsPDF() && r.Page > 0 {
		return r.Path + "#" + strconv.Itoa(r.Page)
	}
	return r.Path
}

// ParseRef splits "file.pdf#3" into path and page. A bare PDF path means
// page 1.
func ParseRef(id string) (Ref, error) {
	if id == "" {
		return Ref{}, errors.New("empty source identifier")
	}
	ref := Ref{Path: id}
	if i := strings.LastIndexByte(id, '#'); i >= 0 && strings.EqualFold(filepath.Ext(id[:i]), ".pdf") {
		page, err := strconv.Atoi(id[i+1:])
		if err != nil || page < 1 {
			return Ref{}, fmt.Errorf("invalid page in %q", id)
		}
		ref.Path, ref.Page = id[:i], page
	}
	if ref.IsPDF() && ref.Page == 0 {
		ref.Page = 1
	}
	return ref, nil
}

// Loader opens identifiers from the local file system.
type Loader struct{}

// NewLoader returns a file system loader.
func NewLoader() *Loader { return &Loader{} }

// Load decodes the image named by id, applying EXIF orientation. PDF
// references yield the first image embedded on the page.
func (l *Loader) Load(ctx context.Context, id string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref, err := ParseRef(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(ref.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.Path)
		}
		return nil, err
	}
	if ref.IsPDF() {
		return pdf.FirstImage(ref.Path, ref.Page)
	}
	img, _, err := utils.LoadImage(ref.Path)
	return img, err
}

// Decode reads an encoded image from memory with EXIF auto-orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &utils.ImageProcessingError{Operation: "decode", Err: err}
	}
	return img, nil
}
