package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/barcode"
	"github.com/MeKo-Tech/cardcrop/internal/detector"
	"github.com/MeKo-Tech/cardcrop/internal/orientation"
	"github.com/MeKo-Tech/cardcrop/internal/recognizer"
	"github.com/MeKo-Tech/cardcrop/internal/rectify"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
)

// Crop is one rectified card.
type Crop struct {
	Index           int // 1-based position among the image's crops
	Image           *image.NRGBA
	Corners         utils.Quad // TL,TR,BR,BL in source image coordinates
	Method          string     // winning edge method or fallback strategy
	BorderCorrected bool
	Width           int // card size without border
	Height          int
	Border          int
	Rotation        int // degrees turned counter-clockwise to make the card upright
	Barcodes        []barcode.Result
	Text            *recognizer.Text
}

// Result is the outcome of one image run. Crops is empty on failure.
type Result struct {
	ID       string
	Width    int // source image size
	Height   int
	Crops    []Crop
	Duration time.Duration
}

// StageFunc observes stage transitions of a run.
type StageFunc func(id string, stage Stage)

type stageFuncKey struct{}

// WithStageFunc returns a context that reports stage transitions to fn.
func WithStageFunc(ctx context.Context, fn StageFunc) context.Context {
	return context.WithValue(ctx, stageFuncKey{}, fn)
}

// checkpoint reports the stage and fails with ErrTimeout once ctx is done.
func checkpoint(ctx context.Context, id string, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return NewError(ErrTimeout, stage, err)
	}
	if fn, ok := ctx.Value(stageFuncKey{}).(StageFunc); ok && fn != nil {
		fn(id, stage)
	}
	return nil
}

type pick struct {
	quad   utils.Quad
	method string
}

// Process loads id and runs it under the configured per-image timeout. A
// panic inside the run fails only this image: during loading it is reported
// as ErrUnreadableImage, later as ErrInternal.
func (p *Pipeline) Process(ctx context.Context, id string) (res *Result, err error) {
	stage := StageLoad
	prev, _ := ctx.Value(stageFuncKey{}).(StageFunc)
	ctx = WithStageFunc(ctx, func(id string, s Stage) {
		stage = s
		if prev != nil {
			prev(id, s)
		}
	})
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Image run panicked", "image", id, "stage", stage, "panic", r)
			kind := ErrInternal
			if stage == StageLoad {
				kind = ErrUnreadableImage
			}
			res, err = &Result{ID: id}, NewError(kind, stage, fmt.Errorf("panic: %v", r))
		}
	}()
	return p.process(ctx, id)
}

func (p *Pipeline) process(ctx context.Context, id string) (*Result, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	if err := checkpoint(ctx, id, StageLoad); err != nil {
		return &Result{ID: id}, err
	}
	if p.loader == nil {
		return &Result{ID: id}, NewError(ErrUnreadableImage, StageLoad, errors.New("no loader configured"))
	}
	img, err := p.loader.Load(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return &Result{ID: id, Duration: time.Since(start)}, NewError(ErrTimeout, StageLoad, err)
		}
		return &Result{ID: id, Duration: time.Since(start)}, NewError(ErrUnreadableImage, StageLoad, err)
	}
	res, err := p.ProcessImage(ctx, id, img)
	res.Duration = time.Since(start)
	return res, err
}

// ProcessImage runs detection and rectification on an already decoded
// image. The returned Result is never nil.
func (p *Pipeline) ProcessImage(ctx context.Context, id string, img image.Image) (*Result, error) {
	start := time.Now()
	res := &Result{ID: id}
	err := p.run(ctx, id, img, res)
	res.Duration = time.Since(start)
	if err != nil {
		var pe *Error
		stage := "unknown"
		if errors.As(err, &pe) {
			stage = pe.Stage.String()
		}
		slog.Debug("Image run failed", "image", id, "stage", stage, "error", err)
		return res, err
	}
	slog.Debug("Image run completed", "image", id, "crops", len(res.Crops), "duration", res.Duration)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, id string, img image.Image, res *Result) error {
	if img == nil || img.Bounds().Empty() {
		return NewError(ErrUnreadableImage, StageLoad, errors.New("empty image"))
	}
	b := img.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()

	if err := checkpoint(ctx, id, StagePreprocess); err != nil {
		return err
	}
	working, scale, err := utils.ResizeToMax(img, p.cfg.Detector.MaxDimension)
	if err != nil {
		return NewError(ErrUnreadableImage, StagePreprocess, err)
	}
	gray, err := p.Detector.Preprocess(working)
	if err != nil {
		return NewError(ErrUnreadableImage, StagePreprocess, err)
	}
	wb := gray.Bounds()
	slog.Debug("Preprocessed", "image", id, "stage", StagePreprocess, "width", wb.Dx(), "height", wb.Dy(), "scale", scale)

	if err := checkpoint(ctx, id, StageEdgeMapping); err != nil {
		return err
	}
	maps := p.Detector.EdgeMaps(working, gray)
	for _, m := range maps {
		p.emit(id, "edges_"+string(m.Method), m.Mask)
	}
	frame := p.Detector.NewFrame(wb.Dx(), wb.Dy(), maps)

	if err := checkpoint(ctx, id, StageCandidateSearch); err != nil {
		return err
	}
	picks := p.selectQuads(frame)
	if p.sink != nil {
		var all [][]utils.Point
		for _, cs := range frame.Contours {
			all = append(all, cs...)
		}
		p.emit(id, "contours", RenderContours(working, all))
	}
	if len(picks) == 0 {
		q, name, err := p.runFallbacks(ctx, id, frame)
		if err != nil {
			return err
		}
		picks = append(picks, pick{quad: q, method: name})
	}

	var firstErr error
	for i, pk := range picks {
		crop, err := p.finish(ctx, id, img, working, scale, pk, i+1)
		if err != nil {
			if len(picks) == 1 {
				return err
			}
			slog.Warn("Skipping card", "image", id, "card", i+1, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Crops = append(res.Crops, crop)
	}
	if len(res.Crops) == 0 {
		return firstErr
	}
	return nil
}

func (p *Pipeline) selectQuads(f *detector.Frame) []pick {
	if p.cfg.MultiCard {
		cands := p.Detector.SelectAll(f)
		picks := make([]pick, 0, len(cands))
		for _, c := range cands {
			picks = append(picks, pick{quad: c.Quad(), method: string(c.Method)})
		}
		return picks
	}
	if c, ok := p.Detector.SelectCandidate(f); ok {
		return []pick{{quad: c.Quad(), method: string(c.Method)}}
	}
	return nil
}

func (p *Pipeline) runFallbacks(ctx context.Context, id string, f *detector.Frame) (utils.Quad, string, error) {
	for _, s := range p.Detector.Strategies() {
		if err := checkpoint(ctx, id, StageFallback); err != nil {
			return utils.Quad{}, "", err
		}
		if q, ok := s.Find(f); ok {
			slog.Debug("Fallback succeeded", "image", id, "stage", StageFallback, "method", s.Name)
			return q, s.Name, nil
		}
		slog.Debug("Fallback failed", "image", id, "stage", StageFallback, "method", s.Name)
	}
	if f.ContourCount() == 0 {
		return utils.Quad{}, "", NewError(ErrNoContourFound, StageFallback, nil)
	}
	return utils.Quad{}, "", NewError(ErrNoQuadrilateral, StageFallback, nil)
}

// finish corrects, rescales, warps and optionally reads one quad found in
// working coordinates.
func (p *Pipeline) finish(ctx context.Context, id string, img, working image.Image, scale float64, pk pick, index int) (Crop, error) {
	if err := checkpoint(ctx, id, StageBorderCheck); err != nil {
		return Crop{}, err
	}
	wb := working.Bounds()
	q, corrected := p.Rectifier.CorrectBorder(rectify.OrderCorners(pk.quad), wb.Dx(), wb.Dy())
	if corrected {
		slog.Debug("Whole-frame detection corrected", "image", id, "stage", StageBorderCheck, "method", pk.method)
	}
	if p.sink != nil {
		p.emit(id, "quad", RenderQuads(working, []utils.Quad{q}))
	}
	q = rectify.OrderCorners(q.Scale(scale))

	if err := checkpoint(ctx, id, StageRectify); err != nil {
		return Crop{}, err
	}
	out, err := p.Rectifier.Rectify(img, q)
	if err != nil {
		switch {
		case errors.Is(err, rectify.ErrDegenerate):
			return Crop{}, NewError(ErrDegenerateGeometry, StageRectify, err)
		default:
			return Crop{}, NewError(ErrRectificationFailure, StageRectify, err)
		}
	}
	crop := Crop{
		Index:           index,
		Image:           out.Image,
		Corners:         out.Detected,
		Method:          pk.method,
		BorderCorrected: corrected,
		Width:           out.Width,
		Height:          out.Height,
		Border:          out.Border,
	}
	slog.Debug("Rectified", "image", id, "stage", StageRectify, "method", pk.method, "width", out.Width, "height", out.Height)

	if p.Orienter == nil && p.Barcodes == nil && p.Recognizer == nil {
		return crop, nil
	}
	if err := checkpoint(ctx, id, StageRecognize); err != nil {
		return Crop{}, err
	}
	if p.Orienter != nil {
		p.orient(id, &crop)
	}
	if p.Barcodes != nil {
		codes, err := p.Barcodes.Decode(ctx, crop.Image, p.barcodeOpts)
		if err != nil {
			slog.Warn("Barcode decoding failed", "image", id, "card", index, "error", err)
		} else {
			crop.Barcodes = codes
		}
	}
	if p.Recognizer != nil {
		text, err := p.Recognizer.Recognize(ctx, crop.Image)
		if err != nil {
			slog.Warn("Recognition failed", "image", id, "card", index, "error", err)
		} else {
			crop.Text = &text
		}
	}
	return crop, nil
}

// orient turns the crop upright. Corners keep their source image order.
func (p *Pipeline) orient(id string, c *Crop) {
	res, err := p.Orienter.Predict(c.Image)
	if err != nil {
		slog.Warn("Orientation failed", "image", id, "card", c.Index, "error", err)
		return
	}
	angle := orientation.Normalize(res.Angle)
	if angle == 0 {
		return
	}
	c.Image = orientation.Correct(c.Image, angle)
	if orientation.SwapsAxes(angle) {
		c.Width, c.Height = c.Height, c.Width
	}
	c.Rotation = angle
	slog.Debug("Crop turned upright", "image", id, "card", c.Index, "angle", angle, "confidence", res.Confidence)
}

func (p *Pipeline) emit(id, stage string, img image.Image) {
	if p.sink == nil || img == nil {
		return
	}
	p.sink.Emit(id, stage, img)
}
