package pipeline

import (
	"errors"
	"fmt"
)

// Failure kinds. Match them with errors.Is against a returned *Error.
var (
	ErrUnreadableImage      = errors.New("unreadable image")
	ErrNoContourFound       = errors.New("no contour found")
	ErrNoQuadrilateral      = errors.New("no quadrilateral candidate")
	ErrDegenerateGeometry   = errors.New("degenerate geometry")
	ErrRectificationFailure = errors.New("rectification failure")
	ErrTimeout              = errors.New("timeout")
	// ErrInternal marks a run that panicked after loading.
	ErrInternal             = errors.New("internal error")
)

// Stage identifies a step of a single image run.
type Stage int

const (
	StageLoad Stage = iota
	StagePreprocess
	StageEdgeMapping
	StageCandidateSearch
	StageFallback
	StageBorderCheck
	StageRectify
	StageRecognize
	StageDone
)

var stageNames = [...]string{
	StageLoad:            "loading",
	StagePreprocess:      "preprocessing",
	StageEdgeMapping:     "edge_mapping",
	StageCandidateSearch: "candidate_search",
	StageFallback:        "fallback",
	StageBorderCheck:     "border_check",
	StageRectify:         "rectify",
	StageRecognize:       "recognize",
	StageDone:            "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// MarshalText renders the stage name in JSON, YAML and CSV output.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Error is a failed image run.
type Error struct {
	Kind  error
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds a failure of the given kind at stage.
func NewError(kind error, stage Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// StageOf returns the stage recorded in err, if any.
func StageOf(err error) (Stage, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Stage, true
	}
	return 0, false
}

// KindName returns a stable snake_case name for the failure kind of err.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnreadableImage):
		return "unreadable_image"
	case errors.Is(err, ErrNoContourFound):
		return "no_contour_found"
	case errors.Is(err, ErrNoQuadrilateral):
		return "no_quadrilateral_candidate"
	case errors.Is(err, ErrDegenerateGeometry):
		return "degenerate_geometry"
	case errors.Is(err, ErrRectificationFailure):
		return "rectification_failure"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	}
	return "internal"
}
