package segment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"panel-extract/internal/logger"

	"gocv.io/x/gocv"
)

// Options selects a segmentation backend. A model path wins over a URL.
type Options struct {
	ModelPath   string
	LibraryPath string
	URL         string
	Timeout     time.Duration
}

// Enabled reports whether any backend is configured.
func (o Options) Enabled() bool {
	return o.ModelPath != "" || o.URL != ""
}

// Open builds the configured backend.
func Open(opts Options, log *logger.Logger) (Segmenter, error) {
	switch {
	case opts.ModelPath != "":
		return NewONNX(opts.ModelPath, opts.LibraryPath, log)
	case opts.URL != "":
		return NewRemote(opts.URL, opts.Timeout, log), nil
	default:
		return nil, fmt.Errorf("%w: neither a model path nor an inference URL is set", ErrModelUnavailable)
	}
}

var (
	sharedOnce sync.Once
	shared     Segmenter
	sharedErr  error
)

// Shared returns the process-wide segmenter, opening it on the first call.
// Later calls return the same handle (or error) regardless of opts.
func Shared(opts Options, log *logger.Logger) (Segmenter, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = Open(opts, log)
	})
	return shared, sharedErr
}

// Func adapts a function to the Segmenter interface.
type Func func(ctx context.Context, img gocv.Mat, conf float64) ([]Mask, error)

// Detect implements Segmenter.
func (f Func) Detect(ctx context.Context, img gocv.Mat, conf float64) ([]Mask, error) {
	return f(ctx, img, conf)
}
