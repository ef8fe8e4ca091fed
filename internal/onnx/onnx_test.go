package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTensor(t *testing.T) {
	tensor, err := NewImageTensor(make([]float32, 3*4*5), 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, tensor.Shape)
	require.NoError(t, VerifyImageTensor(tensor))

	_, err = NewImageTensor(nil, 3, 4, 5)
	assert.Error(t, err)
	_, err = NewImageTensor(make([]float32, 10), 3, 4, 5)
	assert.Error(t, err)
}

func TestValidateNCHW(t *testing.T) {
	tests := []struct {
		name    string
		shape   []int64
		wantErr bool
	}{
		{"valid", []int64{1, 1, 8, 8}, false},
		{"rank 3", []int64{1, 8, 8}, true},
		{"zero dim", []int64{1, 0, 8, 8}, true},
		{"negative dim", []int64{1, 1, -8, 8}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNCHW(tt.shape)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifyImageTensor_LengthMismatch(t *testing.T) {
	err := VerifyImageTensor(Tensor{Data: make([]float32, 3), Shape: []int64{1, 1, 2, 2}})
	assert.Error(t, err)
}

func TestGPUConfigValidate(t *testing.T) {
	assert.NoError(t, GPUConfig{}.Validate())
	assert.NoError(t, GPUConfig{UseGPU: true}.Validate())
	assert.Error(t, GPUConfig{UseGPU: true, DeviceID: -1}.Validate())
}

func TestLibraryName(t *testing.T) {
	for goos, want := range map[string]string{"linux": libLinux, "darwin": libDarwin, "windows": libWindows} {
		got, err := libraryName(goos)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := libraryName("plan9")
	assert.Error(t, err)
}

func TestResolveLibraryPath_Explicit(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	require.NoError(t, os.WriteFile(lib, []byte("fake"), 0o600))

	got, err := ResolveLibraryPath(lib, false)
	require.NoError(t, err)
	assert.Equal(t, lib, got)
}

func TestResolveLibraryPath_EnvOverride(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "custom.so")
	require.NoError(t, os.WriteFile(lib, []byte("fake"), 0o600))
	t.Setenv(LibraryEnv, lib)

	got, err := ResolveLibraryPath(filepath.Join(t.TempDir(), "missing.so"), false)
	require.NoError(t, err)
	assert.Equal(t, lib, got)
}

func TestCandidatePaths_Order(t *testing.T) {
	t.Setenv(LibraryEnv, "/env/lib.so")
	paths := candidatePaths("/explicit/lib.so", true)
	require.GreaterOrEqual(t, len(paths), 2)
	assert.Equal(t, "/explicit/lib.so", paths[0])
	assert.Equal(t, "/env/lib.so", paths[1])
}

func TestNewSession_EmptyPath(t *testing.T) {
	_, err := NewSession(SessionConfig{})
	assert.Error(t, err)
}
