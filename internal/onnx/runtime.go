// Package onnx wraps ONNX Runtime setup for the optional segmentation model
// used to produce an extra card edge map.
package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

// LibraryEnv names the environment variable that overrides the shared
// library location.
const LibraryEnv = "CARDCROP_ONNXRUNTIME_LIB"

const (
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

// ErrLibraryNotFound is returned when no ONNX Runtime shared library exists
// on any of the searched paths.
var ErrLibraryNotFound = errors.New("onnx runtime library not found")

var initMu sync.Mutex

// libraryName returns the shared library filename for goos.
func libraryName(goos string) (string, error) {
	switch goos {
	case "linux":
		return libLinux, nil
	case "darwin":
		return libDarwin, nil
	case "windows":
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
}

// candidatePaths lists library locations in search order: explicit path,
// environment override, system directories, then ./onnxruntime/lib.
func candidatePaths(explicit string, useGPU bool) []string {
	var paths []string
	if explicit != "" {
		paths = append(paths, explicit)
	}
	if env := os.Getenv(LibraryEnv); env != "" {
		paths = append(paths, env)
	}
	name, err := libraryName(runtime.GOOS)
	if err != nil {
		return paths
	}
	if useGPU {
		paths = append(paths, filepath.Join("/opt/onnxruntime/gpu/lib", name))
	}
	paths = append(paths,
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("/opt/onnxruntime/cpu/lib", name),
		filepath.Join("onnxruntime", "lib", name),
	)
	return paths
}

// ResolveLibraryPath returns the first existing candidate path.
func ResolveLibraryPath(explicit string, useGPU bool) (string, error) {
	for _, p := range candidatePaths(explicit, useGPU) {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", ErrLibraryNotFound
}

// Initialize points onnxruntime_go at the shared library and creates the
// process-wide environment once.
func Initialize(libPath string, useGPU bool) error {
	initMu.Lock()
	defer initMu.Unlock()
	if onnxruntime_go.IsInitialized() {
		return nil
	}
	path, err := ResolveLibraryPath(libPath, useGPU)
	if err != nil {
		return err
	}
	onnxruntime_go.SetSharedLibraryPath(path)
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	slog.Debug("ONNX Runtime initialized", "library", path)
	return nil
}
