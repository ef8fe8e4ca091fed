// Package models resolves the optional ONNX model files.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default model file names.
const (
	Segmentation = "card_segmentation.onnx"
	Orientation  = "card_orientation.onnx"
)

// Model type subdirectories of the organized layout.
const (
	TypeSegmentation = "segmentation"
	TypeOrientation  = "orientation"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "CARDCROP_MODELS_DIR"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// Dir returns the models directory.
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. Project root + default.
func Dir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// Resolve turns a configured model name into a path. Paths with a directory
// component and existing files are returned unchanged. Bare names are looked
// up in the organized layout (dir/type/name), then in the flat layout
// (dir/name). Unresolved names are returned as given so that loading
// reports the missing file.
func Resolve(modelsDir, modelType, name string) string {
	if name == "" {
		return ""
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return name
	}
	if exists(name) {
		return name
	}
	base := Dir(modelsDir)
	if modelType != "" {
		if p := filepath.Join(base, modelType, name); exists(p) {
			return p
		}
	}
	if p := filepath.Join(base, name); exists(p) {
		return p
	}
	return name
}

// SegmentationPath resolves the segmentation model name.
func SegmentationPath(modelsDir, name string) string {
	return Resolve(modelsDir, TypeSegmentation, name)
}

// OrientationPath resolves the orientation model name.
func OrientationPath(modelsDir, name string) string {
	return Resolve(modelsDir, TypeOrientation, name)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if !exists(modelPath) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
