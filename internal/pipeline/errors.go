package pipeline

import (
	"context"
	"errors"

	"github.com/ashokgit/videoresizer-api/internal/geometry"
	"github.com/ashokgit/videoresizer-api/internal/media"
	"github.com/ashokgit/videoresizer-api/internal/resource"
)

// Kind partitions pipeline failures by what the caller can do about them.
type Kind string

const (
	// KindInvalidInput covers unusable requests: missing files, unsupported
	// container formats, empty time ranges, non-positive ratios.
	KindInvalidInput Kind = "invalid_input"
	// KindProbeFailure covers unreadable stream metadata.
	KindProbeFailure Kind = "probe_failure"
	// KindResourceExhaustion covers memory shortage, detected up front or
	// during an encode.
	KindResourceExhaustion Kind = "resource_exhaustion"
	// KindStageFailure covers everything else a stage can do wrong.
	KindStageFailure Kind = "stage_failure"
	// KindTimeout reports an exceeded wall-clock budget.
	KindTimeout Kind = "timeout"
)

// Stage identifies the pipeline step a failure belongs to.
type Stage string

const (
	StageTimeCrop  Stage = "time_crop"
	StageResize    Stage = "resize"
	StageConcat    Stage = "concatenate"
	StageWatermark Stage = "watermark"
	StageFinalize  Stage = "finalize"
)

// Operator guidance attached to resource and timeout failures.
const (
	hintLowerResolution = "try using lower resolution videos"
	hintShorterClips    = "try using lower resolution videos or shorter clips"
)

// Error is the failure type every pipeline entry point returns. Kind drives
// caller handling, Stage locates the failure, and Hint carries operator
// guidance when there is any.
type Error struct {
	Kind  Kind
	Stage Stage // empty when the failure precedes the stages
	Hint  string
	Err   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg += " at " + string(e.Stage)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify wraps a stage error with the kind a caller should react to.
// Sentinels from the media and geometry layers map to invalid input or
// probe failures; memory exhaustion is kept distinct so callers can
// suggest resolution reduction.
func classify(stage Stage, err error) *Error {
	var pipeErr *Error
	if errors.As(err, &pipeErr) {
		return pipeErr
	}

	var memErr *resource.InsufficientMemoryError
	switch {
	case errors.Is(err, media.ErrOutOfMemory) || errors.As(err, &memErr):
		return &Error{Kind: KindResourceExhaustion, Stage: stage, Hint: hintLowerResolution, Err: err}
	case errors.Is(err, media.ErrInputNotFound),
		errors.Is(err, media.ErrUnsupportedFormat),
		errors.Is(err, media.ErrInvalidTimeRange),
		errors.Is(err, media.ErrUnknownResizeMethod),
		errors.Is(err, media.ErrInvalidColor),
		errors.Is(err, media.ErrTooFewClips),
		errors.Is(err, geometry.ErrInvalidRatio):
		return &Error{Kind: KindInvalidInput, Stage: stage, Err: err}
	case errors.Is(err, media.ErrProbeFailed),
		errors.Is(err, media.ErrNoVideoStream):
		return &Error{Kind: KindProbeFailure, Stage: stage, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Stage: stage, Hint: hintShorterClips, Err: err}
	default:
		return &Error{Kind: KindStageFailure, Stage: stage, Err: err}
	}
}
