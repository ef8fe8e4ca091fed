// Package pdf pulls embedded raster images out of PDF pages so scanned
// documents can be fed to the card pipeline.
package pdf

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var (
	// ErrNoImages is returned when a page carries no extractable image.
	ErrNoImages = errors.New("pdf: page has no images")
	// ErrPageOutOfRange is returned for pages past the end of the document.
	ErrPageOutOfRange = errors.New("pdf: page out of range")
)

// PageCount returns the number of pages in filename.
func PageCount(filename string) (int, error) {
	n, err := api.PageCountFile(filename)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF %s: %w", filename, err)
	}
	return n, nil
}

// PageImages extracts the images embedded on a 1-based page, in the order
// pdfcpu writes them.
func PageImages(filename string, page int) ([]image.Image, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page %d", ErrPageOutOfRange, page)
	}
	// pdfcpu indexes past the page tree for unknown pages.
	count, err := PageCount(filename)
	if err != nil {
		return nil, err
	}
	if page > count {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, count)
	}
	tempDir, err := os.MkdirTemp("", "cardcrop-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := api.ExtractImagesFile(filename, tempDir, []string{strconv.Itoa(page)}, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from page %d: %w", page, err)
	}

	var paths []string
	err = filepath.WalkDir(tempDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	images := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		img, err := imaging.Open(p)
		if err != nil {
			// pdfcpu also writes raw streams it cannot convert
			continue
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: page %d", ErrNoImages, page)
	}
	return images, nil
}

// FirstImage returns the first image on a page.
func FirstImage(filename string, page int) (image.Image, error) {
	images, err := PageImages(filename, page)
	if err != nil {
		return nil, err
	}
	return images[0], nil
}

// ParsePageRange parses "1-5", "1,3,5" or a mix. Empty means all pages and
// returns nil.
func ParsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}
	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

func parseRangeToken(part string) ([]int, error) {
	lo, hi, isRange := strings.Cut(part, "-")
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil || start < 1 {
		return nil, fmt.Errorf("invalid page number: %q", part)
	}
	if !isRange {
		return []int{start}, nil
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return nil, fmt.Errorf("invalid end page: %q", part)
	}
	if start > end {
		return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out, nil
}
