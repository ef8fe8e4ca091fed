package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MeKo-Tech/cardcrop/internal/imageops"
	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/testutil"
	"github.com/stretchr/testify/require"
)

// fakeCropper returns a fixed outcome for every image.
type fakeCropper struct {
	mu     sync.Mutex
	crops  []pipeline.Crop
	err    error
	calls  int
	closed bool
}

func (f *fakeCropper) ProcessImage(_ context.Context, id string, img image.Image) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	b := img.Bounds()
	res := &pipeline.Result{ID: id, Width: b.Dx(), Height: b.Dy()}
	if f.err == nil {
		res.Crops = f.crops
	}
	return res, f.err
}

func (f *fakeCropper) Close() error {
	f.closed = true
	return nil
}

func testConfig() Config {
	return Config{CORSOrigin: "*", MaxUploadMB: 10, TimeoutSec: 30, OverlayEnabled: true}
}

// newTestServer serves the routes of a server backed by c.
func newTestServer(t *testing.T, cfg Config, c cropper) (*Server, http.Handler) {
	t.Helper()
	s := NewServer(cfg, c)
	t.Cleanup(func() { _ = s.Close() })
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return s, mux
}

// realCropper builds a pipeline on the pure Go backend.
func realCropper(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.NewBuilder().WithOps(imageops.NewNative()).Build()
	require.NoError(t, err)
	return p
}

func scenePNG(t *testing.T) []byte {
	t.Helper()
	return encodePNG(t, testutil.GenerateScene(testutil.DefaultSceneConfig()))
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fakeCrop() pipeline.Crop {
	return pipeline.Crop{
		Index:  1,
		Image:  image.NewNRGBA(image.Rect(0, 0, 60, 40)),
		Method: "gradient",
		Width:  40,
		Height: 20,
		Border: 10,
	}
}

func multipartRequest(t *testing.T, target, field, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(r).Decode(&v))
	return v
}
