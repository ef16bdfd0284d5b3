// Package segment provides the panel segmentation capability consumed by the
// model-based detection strategy.
package segment

import (
	"context"
	"errors"
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// ErrModelUnavailable is returned when no model is configured or it cannot
// be loaded or reached.
var ErrModelUnavailable = errors.New("segmentation model unavailable")

// Mask is one segmented instance at the resolution of the image it was
// detected on.
type Mask struct {
	Data       gocv.Mat // CV_8UC1, 0 or 255
	Confidence float64
	Box        image.Rectangle
}

// Close releases the mask raster.
func (m *Mask) Close() error {
	return m.Data.Close()
}

// Segmenter detects panel instances in a BGR image. Masks below conf are
// dropped; an empty result is not an error.
type Segmenter interface {
	Detect(ctx context.Context, img gocv.Mat, conf float64) ([]Mask, error)
}

// CloseAll releases every mask.
func CloseAll(masks []Mask) {
	for i := range masks {
		masks[i].Close()
	}
}

// SortByConfidence orders masks by descending confidence, keeping the
// input order between equal scores.
func SortByConfidence(masks []Mask) {
	sort.SliceStable(masks, func(i, j int) bool {
		return masks[i].Confidence > masks[j].Confidence
	})
}
