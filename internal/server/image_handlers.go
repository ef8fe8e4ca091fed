package server

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/source"
)

const (
	formatJSON    = "json"
	formatPNG     = "png"
	formatOverlay = "overlay"
)

// cropHandler crops the cards of one uploaded image.
func (s *Server) cropHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatJSON
	}
	switch format {
	case formatJSON, formatPNG:
	case formatOverlay:
		if !s.overlayEnabled {
			writeError(w, r, http.StatusForbidden, errors.New("overlay output is disabled"))
			return
		}
	default:
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("unsupported format %q", format))
		return
	}

	img, name, err := s.parseImageRequest(w, r)
	if err != nil {
		cropRequestsTotal.WithLabelValues("image", "error").Inc()
		s.handleFormParseError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.ProcessImage(ctx, name, img)
	observeCrop("image", res, err, time.Since(start))
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}

	s.writeCropResponse(w, r, format, img, res)
}

// parseImageRequest reads the "image" form file and decodes it.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request) (image.Image, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, "", err
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", fmt.Errorf("missing image file: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	uploadSizeBytes.Observe(float64(len(data)))

	img, err := source.Decode(data)
	if err != nil {
		return nil, "", pipeline.NewError(pipeline.ErrUnreadableImage, pipeline.StageLoad, err)
	}
	return img, header.Filename, nil
}

// handleFormParseError maps upload failures to 413 or 400.
func (s *Server) handleFormParseError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge,
			fmt.Errorf("upload exceeds %d MB", s.maxUploadMB))
		return
	}
	writeError(w, r, http.StatusBadRequest, err)
}

func (s *Server) writeCropResponse(w http.ResponseWriter, r *http.Request, format string, img image.Image, res *pipeline.Result) {
	switch format {
	case formatPNG:
		card := 1
		if v := r.URL.Query().Get("card"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > len(res.Crops) {
				writeError(w, r, http.StatusBadRequest, fmt.Errorf("card must be between 1 and %d", len(res.Crops)))
				return
			}
			card = n
		}
		writePNG(w, res.Crops[card-1].Image)
	case formatOverlay:
		writePNG(w, pipeline.Overlay(img, res))
	default:
		resp := CropResponse{
			Success:   true,
			RequestID: requestIDFrom(r.Context()),
			Width:     res.Width,
			Height:    res.Height,
			Records:   pipeline.Records(res, nil, nil),
		}
		if ok, _ := strconv.ParseBool(r.URL.Query().Get("images")); ok {
			images, err := encodeCrops(res)
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, err)
				return
			}
			resp.Images = images
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writePNG(w http.ResponseWriter, img image.Image) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		http.Error(w, "failed to encode image", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// encodeCrops returns each crop as a base64 PNG.
func encodeCrops(res *pipeline.Result) ([]string, error) {
	out := make([]string, 0, len(res.Crops))
	for _, c := range res.Crops {
		var buf bytes.Buffer
		if err := png.Encode(&buf, c.Image); err != nil {
			return nil, fmt.Errorf("failed to encode crop %d: %w", c.Index, err)
		}
		out = append(out, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	return out, nil
}
