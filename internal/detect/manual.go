package detect

import (
	"context"
	"fmt"

	"panel-extract/internal/rectify"
	"panel-extract/pkg/geometry"

	"gocv.io/x/gocv"
)

// Manual returns operator-supplied corners, reordered, without clamping.
// Corners that do not order into a convex quadrilateral are rejected as
// degenerate geometry.
type Manual struct {
	Points []geometry.Point2D
}

func (m Manual) Name() string { return "manual" }

func (m Manual) Detect(ctx context.Context, src gocv.Mat) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	q, err := geometry.OrderCorners(m.Points)
	if err != nil {
		return Result{}, fmt.Errorf("%w: manual: %v", rectify.ErrDegenerateGeometry, err)
	}
	switch {
	case !q.Distinct():
		return Result{}, fmt.Errorf("%w: manual: corners %v order to a repeated corner", rectify.ErrDegenerateGeometry, q)
	case q.Area() < 1:
		return Result{}, fmt.Errorf("%w: manual: corners %v enclose no area", rectify.ErrDegenerateGeometry, q)
	case !geometry.IsConvex(q.Points()):
		return Result{}, fmt.Errorf("%w: manual: corners %v are not convex", rectify.ErrDegenerateGeometry, q)
	}
	return Result{
		Kind:     KindQuad,
		Strategy: m.Name(),
		Quad:     q,
		MinDim:   1,
	}, nil
}
