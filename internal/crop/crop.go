// Package crop judges candidate crops and tightens them: the
// reasonableness check, the coarse boundary rescue and the fine trim of
// dark margins.
package crop

import (
	"errors"
	"fmt"

	"panel-extract/internal/config"
	"panel-extract/internal/contour"
	"panel-extract/internal/imageio"
	"panel-extract/pkg/geometry"

	"gocv.io/x/gocv"
)

// ErrNoRescue is returned when the coarse threshold finds no region large
// enough to stand in for the panel.
var ErrNoRescue = errors.New("boundary rescue found no region")

// Verdict is the outcome of Validate.
type Verdict struct {
	OK     bool
	Reason string
}

func (v Verdict) String() string {
	if v.OK {
		return "reasonable"
	}
	return v.Reason
}

// Validate checks a w x h crop of an origW x origH image against p.
func Validate(w, h, origW, origH int, p config.ValidationProfile) Verdict {
	if w < p.MinSide || h < p.MinSide {
		return Verdict{Reason: fmt.Sprintf("too small: %dx%d, minimum side %d", w, h, p.MinSide)}
	}
	if origW <= 0 || origH <= 0 {
		return Verdict{Reason: "original image is empty"}
	}
	ratio := float64(w*h) / float64(origW*origH)
	if ratio < p.MinAreaRatio {
		return Verdict{Reason: fmt.Sprintf("area ratio %.3f below %.2f", ratio, p.MinAreaRatio)}
	}
	aspect := float64(h) / float64(w)
	if aspect < p.AspectMin || aspect > p.AspectMax {
		return Verdict{Reason: fmt.Sprintf("aspect h/w %.2f outside [%.2f, %.2f]", aspect, p.AspectMin, p.AspectMax)}
	}
	return Verdict{OK: true}
}

// ValidateImage is Validate over the sizes of two images.
func ValidateImage(candidate, original gocv.Mat, p config.ValidationProfile) Verdict {
	return Validate(candidate.Cols(), candidate.Rows(), original.Cols(), original.Rows(), p)
}

// Rescue thresholds src coarsely and crops the bounding rectangle of the
// largest region, grown by a margin. The rectangle must span more than
// p.MinSpan of each side and its contour must cover less than maxFrac of
// the frame.
func Rescue(src gocv.Mat, p config.RescueParams, maxFrac float64) (gocv.Mat, geometry.RectInt, error) {
	gray := imageio.Gray(src)
	defer gray.Close()
	bin := contour.Binary(gray, p.Threshold)
	defer bin.Close()

	contours := contour.Find(bin)
	defer contours.Close()

	rows, cols := src.Rows(), src.Cols()
	maxArea := float64(rows*cols) * maxFrac
	if maxFrac <= 0 {
		maxArea = float64(rows*cols) + 1
	}
	idx, _ := contour.Largest(contours, -1, maxArea)
	if idx < 0 {
		return gocv.NewMat(), geometry.RectInt{}, fmt.Errorf("%w: no contour", ErrNoRescue)
	}

	r := geometry.RectFromImage(gocv.BoundingRect(contours.At(idx)))
	if float64(r.Width) <= float64(cols)*p.MinSpan || float64(r.Height) <= float64(rows)*p.MinSpan {
		return gocv.NewMat(), geometry.RectInt{}, fmt.Errorf("%w: region %dx%d spans too little of %dx%d",
			ErrNoRescue, r.Width, r.Height, cols, rows)
	}

	region := r.Expand(p.Margin, cols-1, rows-1)
	if region.Empty() {
		return gocv.NewMat(), geometry.RectInt{}, fmt.Errorf("%w: empty region", ErrNoRescue)
	}
	roi := src.Region(region.Image())
	defer roi.Close()
	return roi.Clone(), region, nil
}

// Trim crops img to the inclusive bounding box of gray pixels above
// p.Threshold. When no pixel qualifies it returns an unchanged copy.
func Trim(img gocv.Mat, p config.TrimParams) (gocv.Mat, geometry.RectInt) {
	full := geometry.RectInt{Width: img.Cols(), Height: img.Rows()}

	gray := imageio.Gray(img)
	defer gray.Close()
	b := contour.BrightBounds(gray, p.Threshold)
	if b.Count == 0 {
		return img.Clone(), full
	}

	box := geometry.RectInt{X: b.MinX, Y: b.MinY, Width: b.MaxX - b.MinX + 1, Height: b.MaxY - b.MinY + 1}
	if box == full {
		return img.Clone(), full
	}
	roi := img.Region(box.Image())
	defer roi.Close()
	return roi.Clone(), box
}
