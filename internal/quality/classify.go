package quality

import (
	"panel-extract/internal/config"
	"panel-extract/internal/imageio"

	"gocv.io/x/gocv"
)

// ImageType distinguishes regular photographs from electroluminescence captures.
type ImageType int

const (
	Standard ImageType = iota
	Electroluminescence
)

func (t ImageType) String() string {
	switch t {
	case Electroluminescence:
		return "EL"
	default:
		return "standard"
	}
}

// Classification is the classifier verdict plus the ratios it was based on.
type Classification struct {
	Type        ImageType
	BlackRatio  float64
	BrightRatio float64
}

// Histogram returns the 256-bucket grayscale histogram of img.
func Histogram(img gocv.Mat) [256]int {
	gray := imageio.Gray(img)
	defer gray.Close()

	var hist [256]int
	for _, v := range gray.ToBytes() {
		hist[v]++
	}
	return hist
}

// Classify labels img as EL when the histogram is dominated by dark pixels
// with a meaningful bright population; otherwise Standard.
func Classify(img gocv.Mat, p config.ClassifyParams) Classification {
	hist := Histogram(img)

	var total, black, bright int
	for level, n := range hist {
		total += n
		if level < p.BlackLevel {
			black += n
		}
		if level >= p.BrightLevel {
			bright += n
		}
	}
	if total == 0 {
		return Classification{Type: Standard}
	}

	c := Classification{
		BlackRatio:  float64(black) / float64(total),
		BrightRatio: float64(bright) / float64(total),
	}
	if c.BlackRatio > p.BlackRatio && c.BrightRatio > p.BrightRatio {
		c.Type = Electroluminescence
	}
	return c
}
