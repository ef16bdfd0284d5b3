package pipeline

import (
	"context"
	"errors"

	"panel-extract/internal/detect"
	"panel-extract/internal/quality"
	"panel-extract/internal/rectify"
	"panel-extract/internal/segment"
)

// Failure taxonomy. Package-level sentinels are re-exported so callers only
// need this package to classify an error.
var (
	ErrUnusableImage      = quality.ErrUnusableImage
	ErrNoValidRegion      = detect.ErrNoValidRegion
	ErrNoDetection        = detect.ErrNoDetection
	ErrDegenerateGeometry = rectify.ErrDegenerateGeometry
	ErrModelUnavailable   = segment.ErrModelUnavailable
	ErrIOFailure          = errors.New("io failure")
	ErrTimeout            = errors.New("timeout")
)

// Reason names the taxonomy entry err belongs to.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, ErrUnusableImage):
		return "UnusableImage"
	case errors.Is(err, ErrDegenerateGeometry):
		return "DegenerateGeometry"
	case errors.Is(err, ErrIOFailure):
		return "IOFailure"
	case errors.Is(err, ErrModelUnavailable):
		return "ModelUnavailable"
	case errors.Is(err, ErrNoDetection):
		return "NoDetection"
	case errors.Is(err, ErrNoValidRegion):
		return "NoValidRegion"
	default:
		return "Internal"
	}
}
