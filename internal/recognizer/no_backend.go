//go:build !tesseract

package recognizer

const backendName = "none"

func newBackend(Config) (Recognizer, error) { return nil, ErrNoBackend }
