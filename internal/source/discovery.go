package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/cardcrop/internal/pdf"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
)

// DiscoverOptions controls how arguments expand into identifiers.
type DiscoverOptions struct {
	Recursive bool
	Include   []string // base name globs; empty includes everything
	Exclude   []string
	Pages     string // PDF page range, empty for all pages
}

// Discover expands files, directories and PDFs into identifiers. Directories
// contribute supported images and PDFs in lexical order; PDFs expand to one
// identifier per selected page.
func Discover(args []string, opts DiscoverOptions) ([]string, error) {
	var ids []string
	for _, arg := range args {
		if ref, err := ParseRef(arg); err == nil && ref.IsPDF() && strings.Contains(arg, "#") {
			ids = append(ids, ref.String())
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		var files []string
		if info.IsDir() {
			files, err = walk(arg, opts)
			if err != nil {
				return nil, err
			}
		} else if included(arg, opts) {
			files = []string{arg}
		}
		for _, f := range files {
			expanded, err := expand(f, opts.Pages)
			if err != nil {
				return nil, err
			}
			ids = append(ids, expanded...)
		}
	}
	return ids, nil
}

func walk(dir string, opts DiscoverOptions) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !opts.Recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if supported(path) && included(path, opts) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func supported(path string) bool {
	return utils.IsSupportedImage(path) || strings.EqualFold(filepath.Ext(path), ".pdf")
}

func expand(path, pages string) ([]string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return []string{path}, nil
	}
	selected, err := pdf.ParsePageRange(pages)
	if err != nil {
		return nil, err
	}
	if selected == nil {
		n, err := pdf.PageCount(path)
		if err != nil {
			return nil, err
		}
		for p := 1; p <= n; p++ {
			selected = append(selected, p)
		}
	}
	ids := make([]string, 0, len(selected))
	for _, p := range selected {
		ids = append(ids, Ref{Path: path, Page: p}.String())
	}
	return ids, nil
}

func included(path string, opts DiscoverOptions) bool {
	if matchesAny(path, opts.Exclude) {
		return false
	}
	return len(opts.Include) == 0 || matchesAny(path, opts.Include)
}

func matchesAny(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
