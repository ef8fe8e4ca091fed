package server

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/cardcrop/internal/testutil"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenePDF(t *testing.T) []byte {
	t.Helper()
	dir := t.TempDir()
	pngPath := testutil.WriteScene(t, dir, "card.png", testutil.DefaultSceneConfig())
	pdfPath := filepath.Join(dir, "card.pdf")
	if err := api.ImportImagesFile([]string{pngPath}, pdfPath, nil, nil); err != nil {
		t.Skipf("cannot build PDF fixture: %v", err)
	}
	data, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	return data
}

func TestPdfCropHandler(t *testing.T) {
	_, h := newTestServer(t, testConfig(), realCropper(t))

	rec := serve(h, multipartRequest(t, "/crop/pdf", "pdf", "scan.pdf", scenePDF(t), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeJSON[PDFCropResponse](t, rec.Body)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Pages)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "scan.pdf#1", resp.Records[0].SourcePath)
	assert.True(t, resp.Records[0].Success)
}

func TestPdfCropHandler_MissingPage(t *testing.T) {
	_, h := newTestServer(t, testConfig(), &fakeCropper{})

	rec := serve(h, multipartRequest(t, "/crop/pdf", "pdf", "scan.pdf", scenePDF(t), map[string]string{"pages": "2"}))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJSON[PDFCropResponse](t, rec.Body)
	assert.False(t, resp.Success)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "scan.pdf#2", resp.Records[0].SourcePath)
	assert.Equal(t, "unreadable_image", resp.Records[0].Kind)
}

func TestPdfCropHandler_RequestErrors(t *testing.T) {
	_, h := newTestServer(t, testConfig(), &fakeCropper{})

	rec := serve(h, multipartRequest(t, "/crop/pdf", "pdf", "scan.png", []byte("x"), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, multipartRequest(t, "/crop/pdf", "pdf", "scan.pdf", []byte("not a pdf"), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, multipartRequest(t, "/crop/pdf", "pdf", "scan.pdf", []byte("%PDF"), map[string]string{"pages": "0-1"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
