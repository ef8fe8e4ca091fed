package pipeline

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/MeKo-Tech/cardcrop/internal/utils"
)

// DebugSink receives intermediate images of a run: one per edge map, the
// contour overlay after candidate search and the final quad overlay.
// Implementations must be safe for concurrent use.
type DebugSink interface {
	Emit(imageID, stage string, img image.Image)
}

// NopSink discards everything.
type NopSink struct{}

// Emit implements DebugSink.
func (NopSink) Emit(string, string, image.Image) {}

// SinkFunc adapts a function to DebugSink.
type SinkFunc func(imageID, stage string, img image.Image)

// Emit implements DebugSink.
func (f SinkFunc) Emit(imageID, stage string, img image.Image) { f(imageID, stage, img) }

// DirSink writes every image as <dir>/<imageID>_<stage>_<n>.png, where n
// counts emissions per image.
type DirSink struct {
	dir    string
	mu     sync.Mutex
	counts map[string]int
}

// NewDirSink returns a sink writing into dir. The directory is created on
// first use.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir, counts: make(map[string]int)}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeID turns an identifier such as a path or "file.pdf#2" into a
// file name stem.
func SanitizeID(id string) string {
	base := filepath.Base(id)
	base = base[:len(base)-len(filepath.Ext(base))]
	if base == "" || base == "." {
		base = "image"
	}
	if i := indexHash(id); i >= 0 {
		base = stemOf(id[:i]) + "_p" + id[i+1:]
	}
	return unsafeName.ReplaceAllString(base, "_")
}

func indexHash(id string) int {
	for i := len(id) - 1; i >= 0; i-- {
		switch id[i] {
		case '#':
			return i
		case '/', '\\':
			return -1
		}
	}
	return -1
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// Emit implements DebugSink. Write failures are logged, never returned.
func (s *DirSink) Emit(imageID, stage string, img image.Image) {
	stem := SanitizeID(imageID)
	s.mu.Lock()
	key := stem + "_" + stage
	n := s.counts[key]
	s.counts[key] = n + 1
	s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s_%d.png", stem, stage, n))
	if err := utils.SaveImage(path, img, utils.SaveOptions{}); err != nil {
		slog.Warn("Failed to write debug image", "path", path, "error", err)
	}
}
