package detect

import (
	"context"
	"fmt"
	"image"
	"math"

	"panel-extract/internal/config"
	"panel-extract/internal/contour"
	"panel-extract/internal/debugdump"
	"panel-extract/internal/segment"
	"panel-extract/pkg/geometry"

	"gocv.io/x/gocv"
)

// Segment localizes the panel from the most confident instance mask of a
// segmentation model. With RejectElongated set, regions whose long side
// reaches Params.MaxElongation times the short side are discarded; only
// electroluminescence plans set it.
type Segment struct {
	Model           segment.Segmenter
	Params          config.SegmentParams
	RejectElongated bool
	Debug           *debugdump.Dir
}

func (s Segment) Name() string { return "segment" }

func (s Segment) Detect(ctx context.Context, src gocv.Mat) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if s.Model == nil {
		return Result{}, fmt.Errorf("%w: no segmenter", segment.ErrModelUnavailable)
	}
	p := s.Params

	masks, err := s.Model.Detect(ctx, src, p.Confidence)
	if err != nil {
		return Result{}, err
	}
	defer segment.CloseAll(masks)
	if len(masks) == 0 {
		return Result{}, fmt.Errorf("%w: no mask above confidence %.2f", ErrNoDetection, p.Confidence)
	}

	best := 0
	for i, m := range masks {
		s.Debug.Save(fmt.Sprintf("03_mask_%d.jpg", i), m.Data)
		if m.Confidence > masks[best].Confidence {
			best = i
		}
	}
	mask := masks[best]

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mask.Data, &resized, image.Pt(src.Cols(), src.Rows()), 0, 0, gocv.InterpolationNearestNeighbor)
	s.Debug.Save("04_mask_resized.jpg", resized)
	s.Debug.SaveMaskOverlay("05_mask_overlay.jpg", src, resized)

	bin := contour.Binary(resized, p.MaskThreshold)
	defer bin.Close()
	coverage := 100 * float64(gocv.CountNonZero(bin)) / float64(bin.Rows()*bin.Cols())

	contours := contour.Find(bin)
	defer contours.Close()
	idx, area := contour.Largest(contours, 0, math.Inf(1))
	s.Debug.SaveContours("06_all_contours.jpg", src, contours, idx)
	if idx < 0 {
		return Result{}, noRegion("segment: mask has no contour")
	}
	if area < p.MinArea {
		return Result{}, noRegion("segment: contour area %.0f below %.0f", area, p.MinArea)
	}

	c := contours.At(idx)
	if e := contour.Elongation(c); s.RejectElongated && e >= p.MaxElongation {
		return Result{}, noRegion("segment: region elongation %.2f", e)
	}

	q, _, ok := contour.ApproxQuad(c, p.Epsilons)
	if !ok {
		q = contour.BoxQuad(c)
	}

	res, err := quadResult(s.Name(), q, geometry.AspectClamp{}, p.MinDim, area)
	if err != nil {
		return Result{}, err
	}
	res.Confidence = mask.Confidence
	res.MaskCoverage = coverage
	return res, nil
}
