package config

import "panel-extract/pkg/geometry"

// Params collects every detection, validation and enhancement threshold.
type Params struct {
	Gate     GateParams
	Classify ClassifyParams
	Adaptive AdaptiveParams
	Otsu     OtsuParams
	Extent   ExtentParams
	EL       ELParams
	Segment  SegmentParams
	Rescue   RescueParams
	Trim     TrimParams

	// Crop validation windows per image type
	ValidateStandard ValidationProfile
	ValidateEL       ValidationProfile

	// Enhancement profiles per image type
	EnhanceStandard EnhanceProfile
	EnhanceEL       EnhanceProfile

	// Gray level above which a pixel counts toward integrity
	IntegrityLevel uint8

	// Contours covering more than this fraction of the frame are rejected;
	// a binarization with no background has not found a boundary.
	MaxRegionFraction float64
}

// GateParams rejects near-uniform black or white images.
type GateParams struct {
	DarkMean   float64 // mean gray below this is "black"
	BrightMean float64 // mean gray above this is "white"
	MaxStdDev  float64 // only when stddev is below this
}

// ClassifyParams decides between standard and EL images from the histogram.
type ClassifyParams struct {
	BlackLevel  int     // buckets [0, BlackLevel) count as black
	BrightLevel int     // buckets [BrightLevel, 256) count as bright
	BlackRatio  float64 // EL requires black fraction above this
	BrightRatio float64 // and bright fraction above this
}

// AdaptiveParams drives the local-threshold contour strategy.
type AdaptiveParams struct {
	BlockSize    int     // Gaussian neighbourhood, odd
	C            float32 // constant subtracted from the weighted mean
	CloseKernel  int     // square closing kernel side
	AreaFraction float64 // contour area must exceed this share of the frame
	Epsilon      float64 // approxPolyDP epsilon as a share of the perimeter
	Clamp        geometry.AspectClamp
	MinDim       int
}

// OtsuParams drives the global-threshold contour strategy.
type OtsuParams struct {
	Alpha        float64 // contrast gain before thresholding
	Beta         float64 // brightness offset before thresholding
	CloseKernel  int
	AreaFraction float64
	Clamp        geometry.AspectClamp
	MinDim       int
}

// ExtentParams drives the bright-pixel bounding box fallback.
type ExtentParams struct {
	Threshold uint8
	MinPixels int
	Margin    int
}

// ELParams drives the electroluminescence strategy.
type ELParams struct {
	BlurKernel   int
	CloseKernel  int
	OpenKernel   int
	AreaFraction float64
	Epsilon      float64
	Clamp        geometry.AspectClamp
	MinDim       int

	// Pixel-extent fallback inside the EL strategy
	ExtentThreshold      uint8
	ExtentMinPixels      int
	ExtentMarginFraction float64 // of the short image side
	ExtentMinMargin      int
}

// SegmentParams drives the model-segmentation strategy.
type SegmentParams struct {
	Confidence    float64   // default model confidence threshold
	Epsilons      []float64 // tried in order; the first 4-vertex result wins
	MinArea       float64   // absolute contour area floor in pixels
	MaxElongation float64   // discard when long/short side reaches this
	MinDim        int
	MaskThreshold uint8   // resized mask values above this are foreground
	DarkMean      float64 // rectified mean gray under this triggers min-max normalization
}

// RescueParams drives the coarse boundary rescue pass.
type RescueParams struct {
	Threshold uint8
	MinSpan   float64 // bounding rect must exceed this share of each side
	Margin    int
}

// TrimParams drives the post-crop fine trim.
type TrimParams struct {
	Threshold uint8
}

// ValidationProfile is the window a reasonable crop must fall into.
type ValidationProfile struct {
	MinSide      int
	MinAreaRatio float64 // crop area / original area
	AspectMin    float64 // height / width
	AspectMax    float64
}

// EnhanceProfile is the brightness and local-contrast setting.
type EnhanceProfile struct {
	ValueOffset uint8
	ClipLimit   float64
	TileGrid    int
}

// DefaultParams returns the tuned thresholds.
func DefaultParams() Params {
	return Params{
		Gate: GateParams{
			DarkMean:   5,
			BrightMean: 250,
			MaxStdDev:  3,
		},
		Classify: ClassifyParams{
			BlackLevel:  50,
			BrightLevel: 150,
			BlackRatio:  0.6,
			BrightRatio: 0.1,
		},
		Adaptive: AdaptiveParams{
			BlockSize:    11,
			C:            2,
			CloseKernel:  5,
			AreaFraction: 0.05, // tightest; this is the primary method
			Epsilon:      0.02,
			Clamp:        geometry.AspectClamp{Min: 0.5, Max: 2.0},
			MinDim:       100,
		},
		Otsu: OtsuParams{
			Alpha:        1.3,
			Beta:         15,
			CloseKernel:  5,
			AreaFraction: 0.02,
			Clamp:        geometry.AspectClamp{Min: 0.5, Max: 2.0},
			MinDim:       100,
		},
		Extent: ExtentParams{
			Threshold: 15,
			MinPixels: 100,
			Margin:    5,
		},
		EL: ELParams{
			BlurKernel:           5,
			CloseKernel:          15,
			OpenKernel:           5,
			AreaFraction:         0.01,
			Epsilon:              0.02,
			Clamp:                geometry.AspectClamp{Min: 0.4, Max: 3.0},
			MinDim:               50,
			ExtentThreshold:      20,
			ExtentMinPixels:      1000,
			ExtentMarginFraction: 0.02,
			ExtentMinMargin:      10,
		},
		Segment: SegmentParams{
			Confidence:    0.5,
			Epsilons:      []float64{0.01, 0.02, 0.03, 0.05},
			MinArea:       1000,
			MaxElongation: 5,
			MinDim:        50,
			MaskThreshold: 127,
			DarkMean:      30,
		},
		Rescue: RescueParams{
			Threshold: 30,
			MinSpan:   0.3,
			Margin:    10,
		},
		Trim: TrimParams{
			Threshold: 15,
		},
		ValidateStandard: ValidationProfile{
			MinSide:      100,
			MinAreaRatio: 0.2,
			AspectMin:    0.8,
			AspectMax:    2.5,
		},
		ValidateEL: ValidationProfile{
			MinSide:      100,
			MinAreaRatio: 0.05,
			AspectMin:    0.3,
			AspectMax:    4.0,
		},
		EnhanceStandard: EnhanceProfile{
			ValueOffset: 30,
			ClipLimit:   2.0,
			TileGrid:    8,
		},
		EnhanceEL: EnhanceProfile{
			ValueOffset: 20,
			ClipLimit:   1.5,
			TileGrid:    8,
		},
		IntegrityLevel:    30,
		MaxRegionFraction: 0.98,
	}
}

// WithConfidence returns a copy of params with a different model confidence.
func (p Params) WithConfidence(conf float64) Params {
	if conf > 0 {
		p.Segment.Confidence = conf
	}
	return p
}
