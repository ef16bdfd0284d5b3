// Package rectify warps a quadrilateral panel region to an upright rectangle.
package rectify

import (
	"errors"
	"fmt"
	"image"

	"panel-extract/pkg/geometry"

	"gocv.io/x/gocv"
)

// ErrDegenerateGeometry is returned when the target rectangle is empty, too
// small, or the corners do not define a projective transform.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// Result is a freshly allocated rectified image.
type Result struct {
	Image      gocv.Mat
	Width      int
	Height     int
	Homography geometry.Homography // source to destination
}

// Close releases the image.
func (r *Result) Close() error {
	return r.Image.Close()
}

// Size returns the target size for q: the longer opposite edges, truncated,
// then clamped.
func Size(q geometry.Quad, clamp geometry.AspectClamp) (int, int) {
	return clamp.Apply(q.EdgeSize())
}

// Warp maps q onto the rectangle (0,0)-(w-1,h-1) and resamples src into a
// w x h image. Either side below minDim is an error.
func Warp(src gocv.Mat, q geometry.Quad, clamp geometry.AspectClamp, minDim int) (Result, error) {
	if src.Empty() {
		return Result{}, fmt.Errorf("%w: empty source image", ErrDegenerateGeometry)
	}
	w, h := Size(q, clamp)
	if w <= 0 || h <= 0 {
		return Result{}, fmt.Errorf("%w: target size %dx%d", ErrDegenerateGeometry, w, h)
	}
	if w < minDim || h < minDim {
		return Result{}, fmt.Errorf("%w: target size %dx%d below minimum %d", ErrDegenerateGeometry, w, h, minDim)
	}

	hm, err := geometry.ComputeHomography(q, geometry.DestinationRect(w, h))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDegenerateGeometry, err)
	}

	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer m.Close()
	for i, v := range hm {
		m.SetDoubleAt(i/3, i%3, v)
	}

	dst := gocv.NewMat()
	gocv.WarpPerspective(src, &dst, m, image.Point{X: w, Y: h})

	return Result{Image: dst, Width: w, Height: h, Homography: hm}, nil
}
