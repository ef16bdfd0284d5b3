// Package contour holds the contour and binary-mask helpers shared by the
// detection strategies and the crop validator.
package contour

import (
	"image"
	"math"

	"panel-extract/pkg/geometry"

	"gocv.io/x/gocv"
)

// Find returns the external contours of a binary image.
func Find(bin gocv.Mat) gocv.PointsVector {
	return gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
}

// Largest returns the index and area of the largest contour whose area is
// strictly between minArea and maxArea. Equal areas keep the contour found
// first. Returns -1 when nothing qualifies.
func Largest(contours gocv.PointsVector, minArea, maxArea float64) (int, float64) {
	bestIdx := -1
	var bestArea float64
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area <= minArea || area >= maxArea {
			continue
		}
		if bestIdx < 0 || area > bestArea {
			bestIdx = i
			bestArea = area
		}
	}
	return bestIdx, bestArea
}

// Quad reduces a contour to four ordered corners. The contour is
// approximated with epsilon = epsFrac * perimeter; more than four vertices
// fall back to the minimum-area rectangle of the approximation, fewer than
// four to the contour's bounding rectangle. The vertex count of the
// approximation is returned alongside.
func Quad(c gocv.PointVector, epsFrac float64) (geometry.Quad, int) {
	epsilon := epsFrac * gocv.ArcLength(c, true)
	approx := gocv.ApproxPolyDP(c, epsilon, true)
	defer approx.Close()

	n := approx.Size()
	var pts []geometry.Point2D
	switch {
	case n > 4:
		pts = geometry.FromImagePoints(gocv.MinAreaRect(approx).Points)
	case n < 4:
		pts = geometry.RectFromImage(gocv.BoundingRect(c)).Corners().Points()
	default:
		pts = geometry.FromImagePoints(approx.ToPoints())
	}

	q, _ := geometry.OrderCorners(pts)
	return q, n
}

// ApproxQuad tries each epsilon fraction in order and returns the first
// approximation with exactly four vertices.
func ApproxQuad(c gocv.PointVector, epsFracs []float64) (geometry.Quad, float64, bool) {
	perimeter := gocv.ArcLength(c, true)
	for _, eps := range epsFracs {
		approx := gocv.ApproxPolyDP(c, eps*perimeter, true)
		if approx.Size() == 4 {
			q, _ := geometry.OrderCorners(geometry.FromImagePoints(approx.ToPoints()))
			approx.Close()
			return q, eps, true
		}
		approx.Close()
	}
	return geometry.Quad{}, 0, false
}

// BoxQuad returns the ordered corners of the contour's minimum-area rectangle.
func BoxQuad(c gocv.PointVector) geometry.Quad {
	q, _ := geometry.OrderCorners(geometry.FromImagePoints(gocv.MinAreaRect(c).Points))
	return q
}

// Elongation returns long side / short side of the contour's minimum-area
// rectangle, or +Inf for a degenerate rectangle.
func Elongation(c gocv.PointVector) float64 {
	r := gocv.MinAreaRect(c)
	long, short := float64(max(r.Width, r.Height)), float64(min(r.Width, r.Height))
	if short <= 0 {
		return math.Inf(1)
	}
	return long / short
}

// Morph applies op with a k x k rectangular kernel and returns a new Mat.
func Morph(src gocv.Mat, op gocv.MorphType, k int) gocv.Mat {
	dst := gocv.NewMat()
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: k, Y: k})
	defer kernel.Close()
	gocv.MorphologyEx(src, &dst, op, kernel)
	return dst
}

// Binary thresholds gray at level (pixels > level become 255).
func Binary(gray gocv.Mat, level uint8) gocv.Mat {
	bin := gocv.NewMat()
	gocv.Threshold(gray, &bin, float32(level), 255, gocv.ThresholdBinary)
	return bin
}

// Bounds is the inclusive bounding box of the pixels above a threshold.
type Bounds struct {
	MinX, MinY int
	MaxX, MaxY int
	Count      int
}

// BrightBounds scans a single-channel image for pixels above level.
func BrightBounds(gray gocv.Mat, level uint8) Bounds {
	rows, cols := gray.Rows(), gray.Cols()
	data := gray.ToBytes()

	b := Bounds{MinX: cols, MinY: rows, MaxX: -1, MaxY: -1}
	for y := 0; y < rows; y++ {
		row := data[y*cols : (y+1)*cols]
		for x, v := range row {
			if v <= level {
				continue
			}
			b.Count++
			if x < b.MinX {
				b.MinX = x
			}
			if x > b.MaxX {
				b.MaxX = x
			}
			if y < b.MinY {
				b.MinY = y
			}
			if y > b.MaxY {
				b.MaxY = y
			}
		}
	}
	return b
}
