// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"image"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// ImagePoint truncates the point to integer pixel coordinates.
func (p Point2D) ImagePoint() image.Point {
	return image.Point{X: int(p.X), Y: int(p.Y)}
}

// FromImagePoints converts integer contour points to Point2D.
func FromImagePoints(pts []image.Point) []Point2D {
	out := make([]Point2D, len(pts))
	for i, pt := range pts {
		out[i] = Point2D{X: float64(pt.X), Y: float64(pt.Y)}
	}
	return out
}

// RectInt represents a rectangle with integer coordinates.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RectFromImage converts an image.Rectangle.
func RectFromImage(r image.Rectangle) RectInt {
	return RectInt{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Expand grows the rectangle by margin on every side and clamps it to
// [0, maxX] x [0, maxY]. The far corner is exclusive.
func (r RectInt) Expand(margin, maxX, maxY int) RectInt {
	x0 := max(0, r.X-margin)
	y0 := max(0, r.Y-margin)
	x1 := min(maxX, r.X+r.Width+margin)
	y1 := min(maxY, r.Y+r.Height+margin)
	return RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Image returns the rectangle as an image.Rectangle.
func (r RectInt) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether the rectangle has no area.
func (r RectInt) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Corners returns the four corners of the rectangle as a Quad, in
// TL, TR, BR, BL order.
func (r RectInt) Corners() Quad {
	x0, y0 := float64(r.X), float64(r.Y)
	x1, y1 := float64(r.X+r.Width), float64(r.Y+r.Height)
	return Quad{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}
