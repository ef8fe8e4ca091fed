package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/source"
)

const maxBatchImages = 10

// BatchImageRequest is one image of a batch. Data is base64 in JSON.
type BatchImageRequest struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// BatchCropRequest is the body of POST /crop/batch.
type BatchCropRequest struct {
	Images []BatchImageRequest `json:"images"`
}

// BatchSummary counts the outcomes of a batch.
type BatchSummary struct {
	Total        int   `json:"total"`
	Succeeded    int   `json:"succeeded"`
	Failed       int   `json:"failed"`
	Crops        int   `json:"crops"`
	ProcessingMs int64 `json:"processing_ms"`
}

// BatchCropResponse holds one or more records per image, in request order.
type BatchCropResponse struct {
	Success   bool              `json:"success"`
	RequestID string            `json:"request_id,omitempty"`
	Records   []pipeline.Record `json:"records"`
	Summary   BatchSummary      `json:"summary"`
}

// batchCropHandler crops every image of a JSON batch. A failed image yields
// a failure record without failing the request.
func (s *Server) batchCropHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB<<20)
	var req BatchCropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleFormParseError(w, r, fmt.Errorf("invalid batch request: %w", err))
		return
	}
	if len(req.Images) == 0 {
		writeError(w, r, http.StatusBadRequest, errors.New("batch contains no images"))
		return
	}
	if len(req.Images) > maxBatchImages {
		writeError(w, r, http.StatusBadRequest,
			fmt.Errorf("batch holds %d images, at most %d allowed", len(req.Images), maxBatchImages))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	resp := BatchCropResponse{Success: true, RequestID: requestIDFrom(r.Context())}
	for i, item := range req.Images {
		name := item.Name
		if name == "" {
			name = fmt.Sprintf("image_%d", i+1)
		}
		uploadSizeBytes.Observe(float64(len(item.Data)))

		itemStart := time.Now()
		res, err := s.processBatchImage(ctx, name, item.Data)
		observeCrop("batch", res, err, time.Since(itemStart))

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

func (s *Server) processBatchImage(ctx context.Context, name string, data []byte) (*pipeline.Result, error) {
	img, err := source.Decode(data)
	if err != nil {
		return &pipeline.Result{ID: name}, pipeline.NewError(pipeline.ErrUnreadableImage, pipeline.StageLoad, err)
	}
	res, err := s.pipeline.ProcessImage(ctx, name, img)
	if res == nil {
		res = &pipeline.Result{ID: name}
	}
	return res, err
}
