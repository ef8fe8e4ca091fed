//go:build !gocv

package imageops

const backendName = "native"

func newDefaultBackend() Ops { return NewNative() }
