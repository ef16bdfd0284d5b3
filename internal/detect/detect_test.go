package detect

import (
	"context"
	"image"
	"testing"

	"panel-extract/internal/config"
	"panel-extract/internal/quality"
	"panel-extract/internal/rectify"
	"panel-extract/internal/segment"
	"panel-extract/internal/testimg"
	"panel-extract/pkg/colorutil"
	"panel-extract/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func assertQuadNear(t *testing.T, want, got geometry.Quad, tol float64) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i].X, got[i].X, tol, "corner %d x", i)
		assert.InDelta(t, want[i].Y, got[i].Y, tol, "corner %d y", i)
	}
}

func TestManual(t *testing.T) {
	src := testimg.Uniform(100, 100, 100)
	defer src.Close()

	pts := []geometry.Point2D{{X: 90, Y: 80}, {X: 10, Y: 10}, {X: 10, Y: 85}, {X: 95, Y: 5}}
	res, err := Manual{Points: pts}.Detect(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, KindQuad, res.Kind)
	assert.Equal(t, "manual", res.Strategy)
	assert.False(t, res.Clamp.Enabled())
	assert.Equal(t, geometry.Quad{{X: 10, Y: 10}, {X: 95, Y: 5}, {X: 90, Y: 80}, {X: 10, Y: 85}}, res.Quad)

	_, err = Manual{Points: pts[:3]}.Detect(context.Background(), src)
	assert.ErrorIs(t, err, rectify.ErrDegenerateGeometry)
}

func TestManualRejectsDegenerateCorners(t *testing.T) {
	src := testimg.Uniform(100, 300, 300)
	defer src.Close()

	tests := []struct {
		name string
		pts  []geometry.Point2D
		msg  string
	}{
		// BR and BL resolve to the same input point
		{"repeated corner", []geometry.Point2D{{X: 0, Y: 0}, {X: 100, Y: 80}, {X: 100, Y: 200}, {X: 0, Y: 100}}, "repeated corner"},
		{"collinear", []geometry.Point2D{{X: 0, Y: 0}, {X: 50, Y: 10}, {X: 100, Y: 20}, {X: 150, Y: 30}}, ""},
		{"identical", []geometry.Point2D{{X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}}, "repeated corner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Manual{Points: tt.pts}.Detect(context.Background(), src)
			require.Error(t, err)
			assert.ErrorIs(t, err, rectify.ErrDegenerateGeometry)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestAdaptiveFindsTiltedPanel(t *testing.T) {
	src := testimg.TiltedPanel(8)
	defer src.Close()

	p := config.DefaultParams()
	res, err := Adaptive{Params: p.Adaptive, MaxRegionFraction: p.MaxRegionFraction}.Detect(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, KindQuad, res.Kind)
	assert.Equal(t, "adaptive", res.Strategy)
	assert.Equal(t, p.Adaptive.Clamp, res.Clamp)
	assertQuadNear(t, testimg.RotatedRect(200, 300, 220, 360, 8), res.Quad, 12)
	assert.Greater(t, res.ContourArea, 0.05*400*600)
}

func TestAdaptiveRejectsSmallPanel(t *testing.T) {
	src := testimg.Uniform(40, 200, 200)
	defer src.Close()
	testimg.FillRect(&src, image.Rect(70, 70, 140, 140), 200)

	p := config.DefaultParams()
	_, err := Adaptive{Params: p.Adaptive, MaxRegionFraction: p.MaxRegionFraction}.Detect(context.Background(), src)
	assert.ErrorIs(t, err, ErrNoValidRegion)
}

func TestOtsuFindsTiltedPanel(t *testing.T) {
	src := testimg.TiltedPanel(-6)
	defer src.Close()

	p := config.DefaultParams()
	res, err := Otsu{Params: p.Otsu, MaxRegionFraction: p.MaxRegionFraction}.Detect(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "otsu", res.Strategy)
	assertQuadNear(t, testimg.RotatedRect(200, 300, 220, 360, -6), res.Quad, 6)
}

func TestExtentCropsBrightRegion(t *testing.T) {
	src := testimg.ELPanel()
	defer src.Close()

	p := config.DefaultParams()
	res, err := Extent{Params: p.Extent, MaxRegionFraction: p.MaxRegionFraction}.Detect(context.Background(), src)
	require.NoError(t, err)
	defer res.Close()

	assert.Equal(t, KindCrop, res.Kind)
	assert.Equal(t, geometry.RectInt{X: 125, Y: 165, Width: 149, Height: 269}, res.Region)
	assert.Equal(t, 149, res.Crop.Cols())
	assert.Equal(t, 269, res.Crop.Rows())
}

func TestExtentFailures(t *testing.T) {
	p := config.DefaultParams()
	s := Extent{Params: p.Extent, MaxRegionFraction: p.MaxRegionFraction}

	dark := testimg.Uniform(5, 100, 100)
	defer dark.Close()
	_, err := s.Detect(context.Background(), dark)
	assert.ErrorIs(t, err, ErrNoValidRegion)

	gray := testimg.Uniform(128, 100, 100)
	defer gray.Close()
	_, err = s.Detect(context.Background(), gray)
	assert.ErrorIs(t, err, ErrNoValidRegion)
}

func TestHeuristicsFailOnUniformGray(t *testing.T) {
	src := testimg.Uniform(128, 300, 200)
	defer src.Close()

	p := config.DefaultParams()
	for _, s := range Plan(quality.Standard, PlanOptions{Params: p}) {
		t.Run(s.Name(), func(t *testing.T) {
			_, err := s.Detect(context.Background(), src)
			assert.ErrorIs(t, err, ErrNoValidRegion)
		})
	}
}

func TestHeuristicsFailOnNoisyGray(t *testing.T) {
	src := testimg.NoisyGray(128, 600, 400, 7)
	defer src.Close()

	p := config.DefaultParams()
	for _, s := range Plan(quality.Standard, PlanOptions{Params: p}) {
		t.Run(s.Name(), func(t *testing.T) {
			res, err := s.Detect(context.Background(), src)
			assert.ErrorIs(t, err, ErrNoValidRegion)
			assert.Empty(t, res.Strategy)
		})
	}
}

func TestELFindsPanel(t *testing.T) {
	src := testimg.ELPanel()
	defer src.Close()

	p := config.DefaultParams()
	res, err := EL{Params: p.EL, MaxRegionFraction: p.MaxRegionFraction}.Detect(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, KindQuad, res.Kind)
	assert.Equal(t, "el", res.Strategy)
	want := geometry.RectInt{X: 130, Y: 170, Width: 139, Height: 259}.Corners()
	assertQuadNear(t, want, res.Quad, 3)
}

func TestELFallsBackToExtent(t *testing.T) {
	src := testimg.Uniform(8, 600, 400)
	defer src.Close()
	// 1600 bright pixels: below the contour area floor, above the extent floor
	testimg.FillRect(&src, image.Rect(100, 100, 140, 140), 210)

	p := config.DefaultParams()
	res, err := EL{Params: p.EL, MaxRegionFraction: p.MaxRegionFraction}.Detect(context.Background(), src)
	require.NoError(t, err)
	defer res.Close()

	assert.Equal(t, KindCrop, res.Kind)
	assert.Equal(t, "el", res.Strategy)
	assert.Equal(t, geometry.RectInt{X: 90, Y: 90, Width: 59, Height: 59}, res.Region)
}

func maskSegmenter(q geometry.Quad, conf float64) segment.Func {
	return func(ctx context.Context, img gocv.Mat, c float64) ([]segment.Mask, error) {
		data := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), img.Rows(), img.Cols(), gocv.MatTypeCV8UC1)
		pts := make([]image.Point, 4)
		for i, p := range q {
			pts[i] = p.ImagePoint()
		}
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
		defer pv.Close()
		gocv.FillPoly(&data, pv, colorutil.White)
		return []segment.Mask{
			{Data: gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), img.Rows(), img.Cols(), gocv.MatTypeCV8UC1), Confidence: conf / 2},
			{Data: data, Confidence: conf},
		}, nil
	}
}

func TestSegmentUsesMostConfidentMask(t *testing.T) {
	src := testimg.TiltedPanel(5)
	defer src.Close()

	want := testimg.RotatedRect(200, 300, 220, 360, 5)
	p := config.DefaultParams()
	res, err := Segment{Model: maskSegmenter(want, 0.87), Params: p.Segment}.Detect(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, "segment", res.Strategy)
	assert.Equal(t, 0.87, res.Confidence)
	assert.False(t, res.Clamp.Enabled())
	assert.Equal(t, p.Segment.MinDim, res.MinDim)
	assert.InDelta(t, 100*220*360/(400*600.0), res.MaskCoverage, 1)
	assertQuadNear(t, want, res.Quad, 3)
}

func TestSegmentFailures(t *testing.T) {
	src := testimg.TiltedPanel(0)
	defer src.Close()
	p := config.DefaultParams()

	empty := segment.Func(func(ctx context.Context, img gocv.Mat, c float64) ([]segment.Mask, error) {
		return nil, nil
	})
	_, err := Segment{Model: empty, Params: p.Segment}.Detect(context.Background(), src)
	assert.ErrorIs(t, err, ErrNoDetection)

	_, err = Segment{Params: p.Segment}.Detect(context.Background(), src)
	assert.ErrorIs(t, err, segment.ErrModelUnavailable)

	sliver := geometry.RectInt{X: 20, Y: 250, Width: 360, Height: 40}.Corners()
	_, err = Segment{Model: maskSegmenter(sliver, 0.9), Params: p.Segment, RejectElongated: true}.Detect(context.Background(), src)
	assert.ErrorIs(t, err, ErrNoValidRegion, "elongation 9 is not an EL panel")

	tiny := geometry.RectInt{X: 20, Y: 20, Width: 20, Height: 20}.Corners()
	_, err = Segment{Model: maskSegmenter(tiny, 0.9), Params: p.Segment}.Detect(context.Background(), src)
	assert.ErrorIs(t, err, ErrNoValidRegion)
}

func TestSegmentElongationOnlyForEL(t *testing.T) {
	src := testimg.TiltedPanel(0)
	defer src.Close()
	p := config.DefaultParams()
	sliver := geometry.RectInt{X: 20, Y: 250, Width: 360, Height: 60}.Corners()
	model := maskSegmenter(sliver, 0.9)

	find := func(typ quality.ImageType) (Result, error) {
		plan := Plan(typ, PlanOptions{Params: p, Model: model, PreferModel: true})
		require.Equal(t, "segment", plan[0].Name())
		return plan[0].Detect(context.Background(), src)
	}

	res, err := find(quality.Standard)
	require.NoError(t, err, "a long standard panel is kept")
	assert.Equal(t, "segment", res.Strategy)
	assert.InDelta(t, 360, res.Quad[1].X-res.Quad[0].X, 3)

	_, err = find(quality.Electroluminescence)
	assert.ErrorIs(t, err, ErrNoValidRegion)
}

func TestDetectHonoursCancelledContext(t *testing.T) {
	src := testimg.TiltedPanel(0)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := config.DefaultParams()
	_, err := Adaptive{Params: p.Adaptive}.Detect(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlan(t *testing.T) {
	p := config.DefaultParams()
	model := segment.Func(func(ctx context.Context, img gocv.Mat, c float64) ([]segment.Mask, error) { return nil, nil })

	tests := []struct {
		name string
		typ  quality.ImageType
		opts PlanOptions
		want []string
	}{
		{"standard", quality.Standard, PlanOptions{Params: p}, []string{"adaptive", "otsu", "extent"}},
		{"EL", quality.Electroluminescence, PlanOptions{Params: p}, []string{"el", "adaptive", "otsu", "extent"}},
		{"model last", quality.Standard, PlanOptions{Params: p, Model: model}, []string{"adaptive", "otsu", "extent", "segment"}},
		{"model first", quality.Electroluminescence, PlanOptions{Params: p, Model: model, PreferModel: true}, []string{"segment", "el", "adaptive", "otsu", "extent"}},
		{"manual only", quality.Standard, PlanOptions{Params: p, Model: model, Points: make([]geometry.Point2D, 4)}, []string{"manual"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Names(Plan(tt.typ, tt.opts)))
		})
	}
}
