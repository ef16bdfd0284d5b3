package detect

import (
	"context"
	"image"

	"panel-extract/internal/config"
	"panel-extract/internal/contour"
	"panel-extract/internal/imageio"
	"panel-extract/pkg/geometry"

	"gocv.io/x/gocv"
)

// Adaptive finds the panel outline with a local Gaussian threshold. Edges
// on the dark side of the panel boundary survive the inverted threshold
// and closing joins them into one ring.
type Adaptive struct {
	Params            config.AdaptiveParams
	MaxRegionFraction float64
}

func (a Adaptive) Name() string { return "adaptive" }

func (a Adaptive) Detect(ctx context.Context, src gocv.Mat) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	p := a.Params

	gray := imageio.Gray(src)
	defer gray.Close()

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.AdaptiveThreshold(gray, &bin, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, p.BlockSize, p.C)
	gocv.BitwiseNot(bin, &bin)

	closed := contour.Morph(bin, gocv.MorphClose, p.CloseKernel)
	defer closed.Close()

	minArea, maxArea := frameLimits(src, p.AreaFraction, a.MaxRegionFraction)
	return largestContour(a.Name(), closed, minArea, maxArea, func(c gocv.PointVector) geometry.Quad {
		q, _ := contour.Quad(c, p.Epsilon)
		return q
	}, p.Clamp, p.MinDim)
}

// Otsu boosts contrast, binarizes with a global Otsu threshold and boxes
// the largest region with its minimum-area rectangle.
type Otsu struct {
	Params            config.OtsuParams
	MaxRegionFraction float64
}

func (o Otsu) Name() string { return "otsu" }

func (o Otsu) Detect(ctx context.Context, src gocv.Mat) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	p := o.Params

	boosted := gocv.NewMat()
	defer boosted.Close()
	gocv.ConvertScaleAbs(src, &boosted, p.Alpha, p.Beta)

	gray := imageio.Gray(boosted)
	defer gray.Close()

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(gray, &bin, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	closed := contour.Morph(bin, gocv.MorphClose, p.CloseKernel)
	defer closed.Close()

	minArea, maxArea := frameLimits(src, p.AreaFraction, o.MaxRegionFraction)
	return largestContour(o.Name(), closed, minArea, maxArea, contour.BoxQuad, p.Clamp, p.MinDim)
}

// Extent crops the bounding box of every pixel above a low gray level.
type Extent struct {
	Params            config.ExtentParams
	MaxRegionFraction float64
}

func (e Extent) Name() string { return "extent" }

func (e Extent) Detect(ctx context.Context, src gocv.Mat) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	gray := imageio.Gray(src)
	defer gray.Close()
	return extentCrop(e.Name(), src, gray, e.Params.Threshold, e.Params.MinPixels, e.Params.Margin, e.MaxRegionFraction)
}

// EL is tuned for electroluminescence captures: a bright panel on a near
// black background. Blur and Otsu isolate the lit cells, a wide closing
// bridges the dark busbars between them. When no region qualifies it falls
// back to a pixel-extent crop with a margin proportional to the image.
type EL struct {
	Params            config.ELParams
	MaxRegionFraction float64
}

func (e EL) Name() string { return "el" }

func (e EL) Detect(ctx context.Context, src gocv.Mat) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	p := e.Params

	gray := imageio.Gray(src)
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(p.BlurKernel, p.BlurKernel), 0, 0, gocv.BorderDefault)

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(blurred, &bin, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	closed := contour.Morph(bin, gocv.MorphClose, p.CloseKernel)
	defer closed.Close()
	opened := contour.Morph(closed, gocv.MorphOpen, p.OpenKernel)
	defer opened.Close()

	minArea, maxArea := frameLimits(src, p.AreaFraction, e.MaxRegionFraction)
	res, err := largestContour(e.Name(), opened, minArea, maxArea, func(c gocv.PointVector) geometry.Quad {
		q, _ := contour.Quad(c, p.Epsilon)
		return q
	}, p.Clamp, p.MinDim)
	if err == nil {
		return res, nil
	}

	margin := max(p.ExtentMinMargin, int(float64(min(src.Rows(), src.Cols()))*p.ExtentMarginFraction))
	return extentCrop(e.Name(), src, gray, p.ExtentThreshold, p.ExtentMinPixels, margin, e.MaxRegionFraction)
}
