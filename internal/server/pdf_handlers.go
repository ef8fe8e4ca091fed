package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/pdf"
	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/source"
)

// PDFCropResponse lists the records of every requested page.
type PDFCropResponse struct {
	Success   bool              `json:"success"`
	RequestID string            `json:"request_id,omitempty"`
	Pages     int               `json:"pages"`
	Records   []pipeline.Record `json:"records"`
	Summary   BatchSummary      `json:"summary"`
}

// pdfCropHandler crops the first embedded image of each selected page of an
// uploaded PDF. The "pages" form value takes ranges like "1-3,5".
func (s *Server) pdfCropHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tmpPath, name, pages, err := s.parsePdfRequest(w, r)
	if err != nil {
		cropRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.handleFormParseError(w, r, err)
		return
	}
	defer func() { _ = os.Remove(tmpPath) }()

	ctx, cancel := s.requestContext(r)
	defer cancel()

	loader := source.NewLoader()
	start := time.Now()
	resp := PDFCropResponse{Success: true, RequestID: requestIDFrom(r.Context()), Pages: len(pages)}
	for _, page := range pages {
		id := source.Ref{Path: name, Page: page}.String()
		pageStart := time.Now()

		var res *pipeline.Result
		img, err := loader.Load(ctx, source.Ref{Path: tmpPath, Page: page}.String())
		if err != nil {
			res, err = &pipeline.Result{ID: id}, pipeline.NewError(pipeline.ErrUnreadableImage, pipeline.StageLoad, err)
		} else {
			res, err = s.pipeline.ProcessImage(ctx, id, img)
			if res == nil {
				res = &pipeline.Result{ID: id}
			}
		}
		observeCrop("pdf", res, err, time.Since(pageStart))

		resp.Summary.Total++
		if err != nil {
			resp.Summary.Failed++
		} else {
			resp.Summary.Succeeded++
			resp.Summary.Crops += len(res.Crops)
		}
		resp.Records = append(resp.Records, pipeline.Records(res, nil, err)...)
	}
	resp.Summary.ProcessingMs = time.Since(start).Milliseconds()
	resp.Success = resp.Summary.Failed == 0

	writeJSON(w, http.StatusOK, resp)
}

// parsePdfRequest stores the uploaded "pdf" file in a temporary file and
// resolves the requested pages. The caller removes the file.
func (s *Server) parsePdfRequest(w http.ResponseWriter, r *http.Request) (string, string, []int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", "", nil, err
	}
	file, header, err := r.FormFile("pdf")
	if err != nil {
		return "", "", nil, fmt.Errorf("missing pdf file: %w", err)
	}
	defer func() { _ = file.Close() }()

	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", "", nil, errors.New("uploaded file is not a PDF")
	}

	tmp, err := os.CreateTemp("", "cardcrop-upload-*.pdf")
	if err != nil {
		return "", "", nil, err
	}
	n, err := io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", nil, err
	}
	uploadSizeBytes.Observe(float64(n))

	pages, err := pdf.ParsePageRange(r.FormValue("pages"))
	if err == nil && len(pages) == 0 {
		var count int
		count, err = pdf.PageCount(tmp.Name())
		for p := 1; p <= count; p++ {
			pages = append(pages, p)
		}
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", nil, err
	}
	return tmp.Name(), name, pages, nil
}
