package geometry

import (
	"fmt"
	"strconv"
	"strings"
)

// Quad holds four corners in canonical order: top-left, top-right,
// bottom-right, bottom-left.
type Quad [4]Point2D

// Corner indices within a Quad.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// OrderCorners orders four points as TL, TR, BR, BL.
// TL has the smallest x+y and BR the largest; TR has the smallest y-x and
// BL the largest. Ties resolve to the earliest input point.
func OrderCorners(pts []Point2D) (Quad, error) {
	if len(pts) != 4 {
		return Quad{}, fmt.Errorf("need exactly 4 points, got %d", len(pts))
	}

	tl, br, tr, bl := 0, 0, 0, 0
	for i := 1; i < 4; i++ {
		s := pts[i].X + pts[i].Y
		d := pts[i].Y - pts[i].X
		if s < pts[tl].X+pts[tl].Y {
			tl = i
		}
		if s > pts[br].X+pts[br].Y {
			br = i
		}
		if d < pts[tr].Y-pts[tr].X {
			tr = i
		}
		if d > pts[bl].Y-pts[bl].X {
			bl = i
		}
	}

	return Quad{pts[tl], pts[tr], pts[br], pts[bl]}, nil
}

// Points returns the corners as a slice.
func (q Quad) Points() []Point2D {
	return []Point2D{q[0], q[1], q[2], q[3]}
}

// Distinct reports whether all four corners are different points.
func (q Quad) Distinct() bool {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if q[i] == q[j] {
				return false
			}
		}
	}
	return true
}

// EdgeSize returns the destination rectangle size for the quad: the longer
// of the top and bottom edges by the longer of the left and right edges,
// both truncated to integers.
func (q Quad) EdgeSize() (width, height int) {
	top := q[TopRight].Distance(q[TopLeft])
	bottom := q[BottomRight].Distance(q[BottomLeft])
	left := q[BottomLeft].Distance(q[TopLeft])
	right := q[BottomRight].Distance(q[TopRight])
	return int(max(top, bottom)), int(max(left, right))
}

// Area returns the quad's polygon area.
func (q Quad) Area() float64 {
	return PolygonArea(q.Points())
}

// DestinationRect returns the canonical target corners
// (0,0), (w-1,0), (w-1,h-1), (0,h-1).
func DestinationRect(width, height int) Quad {
	w := float64(width - 1)
	h := float64(height - 1)
	return Quad{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
}

// AspectClamp bounds width/height of a rectified region.
// A zero value disables clamping.
type AspectClamp struct {
	Min float64 // Lowest allowed width/height
	Max float64 // Highest allowed width/height
}

// Enabled reports whether the clamp has bounds set.
func (c AspectClamp) Enabled() bool {
	return c.Min > 0 && c.Max > 0
}

// Apply clamps (width, height). When width/height falls under Min the
// width is widened to height*Min; above Max the height becomes width/Max.
func (c AspectClamp) Apply(width, height int) (int, int) {
	if !c.Enabled() || width <= 0 || height <= 0 {
		return width, height
	}
	ratio := float64(width) / float64(height)
	if ratio < c.Min {
		width = int(float64(height) * c.Min)
	} else if ratio > c.Max {
		height = int(float64(width) / c.Max)
	}
	return width, height
}

// ParseQuad parses "x1_y1,x2_y2,x3_y3,x4_y4" into four points, in input
// order.
func ParseQuad(s string) ([]Point2D, error) {
	pairs := strings.Split(strings.TrimSpace(s), ",")
	if len(pairs) != 4 {
		return nil, fmt.Errorf("expected exactly 4 points, got %d", len(pairs))
	}

	pts := make([]Point2D, 0, 4)
	for _, pair := range pairs {
		xy := strings.Split(strings.TrimSpace(pair), "_")
		if len(xy) != 2 {
			return nil, fmt.Errorf("invalid point %q", pair)
		}
		x, err := strconv.ParseFloat(xy[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid x in %q: %w", pair, err)
		}
		y, err := strconv.ParseFloat(xy[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid y in %q: %w", pair, err)
		}
		pts = append(pts, Point2D{X: x, Y: y})
	}
	return pts, nil
}
