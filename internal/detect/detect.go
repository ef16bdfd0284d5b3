// Package detect implements the panel localization strategies. Every
// strategy reads an immutable source image and either returns a candidate
// region or an error wrapping ErrNoValidRegion / ErrNoDetection, letting the
// caller move on to the next strategy.
package detect

import (
	"context"
	"errors"
	"fmt"
	"math"

	"panel-extract/internal/contour"
	"panel-extract/pkg/geometry"

	"gocv.io/x/gocv"
)

var (
	// ErrNoValidRegion means no contour or pixel region cleared the
	// strategy's thresholds.
	ErrNoValidRegion = errors.New("no valid region")

	// ErrNoDetection means the segmentation model returned no instance.
	ErrNoDetection = errors.New("no detection")
)

// Kind tags which half of a Result is set.
type Kind int

const (
	// KindQuad results carry four ordered corners to rectify.
	KindQuad Kind = iota
	// KindCrop results carry an already cropped image.
	KindCrop
)

func (k Kind) String() string {
	if k == KindCrop {
		return "crop"
	}
	return "quad"
}

// Result is a detection candidate: either a quadrilateral or a direct crop,
// never both.
type Result struct {
	Kind     Kind
	Strategy string

	// KindQuad
	Quad   geometry.Quad
	Clamp  geometry.AspectClamp
	MinDim int

	// KindCrop
	Crop   gocv.Mat
	Region geometry.RectInt

	// Diagnostics
	ContourArea  float64
	Confidence   float64 // model confidence, segmentation only
	MaskCoverage float64 // percent of the frame covered by the mask
}

// Close releases the crop, if any.
func (r *Result) Close() {
	if r.Kind == KindCrop {
		r.Crop.Close()
	}
}

// Strategy locates the panel in src.
type Strategy interface {
	Name() string
	Detect(ctx context.Context, src gocv.Mat) (Result, error)
}

func noRegion(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNoValidRegion, fmt.Sprintf(format, args...))
}

// frameLimits returns the strict contour area bounds for a frame.
func frameLimits(src gocv.Mat, minFrac, maxFrac float64) (float64, float64) {
	total := float64(src.Rows() * src.Cols())
	maxArea := math.Inf(1)
	if maxFrac > 0 {
		maxArea = maxFrac * total
	}
	return minFrac * total, maxArea
}

// quadResult packages q after checking the clamped rectified size against
// minDim, so undersized candidates fail here instead of in the rectifier.
func quadResult(name string, q geometry.Quad, clamp geometry.AspectClamp, minDim int, area float64) (Result, error) {
	w, h := clamp.Apply(q.EdgeSize())
	if w <= 0 || h <= 0 || w < minDim || h < minDim {
		return Result{}, noRegion("%s: rectified size %dx%d below %d", name, w, h, minDim)
	}
	return Result{
		Kind:        KindQuad,
		Strategy:    name,
		Quad:        q,
		Clamp:       clamp,
		MinDim:      minDim,
		ContourArea: area,
	}, nil
}

// cropResult copies region out of src.
func cropResult(name string, src gocv.Mat, region geometry.RectInt) (Result, error) {
	if region.Empty() {
		return Result{}, noRegion("%s: empty region", name)
	}
	roi := src.Region(region.Image())
	defer roi.Close()
	return Result{
		Kind:     KindCrop,
		Strategy: name,
		Crop:     roi.Clone(),
		Region:   region,
	}, nil
}

// largestContour picks the largest external contour of bin with area
// strictly inside (minArea, maxArea) and converts it with toQuad.
func largestContour(name string, bin gocv.Mat, minArea, maxArea float64,
	toQuad func(gocv.PointVector) geometry.Quad, clamp geometry.AspectClamp, minDim int) (Result, error) {
	contours := contour.Find(bin)
	defer contours.Close()
	if contours.Size() == 0 {
		return Result{}, noRegion("%s: no contours", name)
	}

	idx, area := contour.Largest(contours, minArea, maxArea)
	if idx < 0 {
		return Result{}, noRegion("%s: no contour with area in (%.0f, %.0f)", name, minArea, maxArea)
	}
	return quadResult(name, toQuad(contours.At(idx)), clamp, minDim, area)
}

// extentCrop crops the bounding box of gray pixels above level, grown by
// margin. The box must hold at least minPixels pixels and must not cover
// maxFrac of the frame.
func extentCrop(name string, src, gray gocv.Mat, level uint8, minPixels, margin int, maxFrac float64) (Result, error) {
	b := contour.BrightBounds(gray, level)
	if b.Count < minPixels {
		return Result{}, noRegion("%s: %d pixels above %d, need %d", name, b.Count, level, minPixels)
	}

	rows, cols := src.Rows(), src.Cols()
	box := geometry.RectInt{X: b.MinX, Y: b.MinY, Width: b.MaxX - b.MinX, Height: b.MaxY - b.MinY}
	if maxFrac > 0 && float64((box.Width+1)*(box.Height+1)) >= maxFrac*float64(rows*cols) {
		return Result{}, noRegion("%s: bright pixels span the whole frame", name)
	}
	return cropResult(name, src, box.Expand(margin, cols-1, rows-1))
}
