package quality

import (
	"math"

	"panel-extract/internal/imageio"

	"gocv.io/x/gocv"
)

// Metrics summarizes a finished panel crop.
type Metrics struct {
	Integrity  float64 `json:"integridad"`  // % of gray pixels above the integrity level
	Luminosity float64 `json:"luminosidad"` // mean HSV value channel
	Uniformity float64 `json:"uniformidad"` // stddev of gray values
}

// Measure computes the metrics of the final enhanced image.
func Measure(img gocv.Mat, integrityLevel uint8) Metrics {
	if img.Empty() {
		return Metrics{}
	}

	gray := imageio.Gray(img)
	defer gray.Close()

	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(gray, &bright, float32(integrityLevel), 255, gocv.ThresholdBinary)
	total := gray.Rows() * gray.Cols()
	integrity := 100 * float64(gocv.CountNonZero(bright)) / float64(total)

	_, std := GrayStats(gray)

	return Metrics{
		Integrity:  round(integrity, 2),
		Luminosity: round(meanValue(img), 5),
		Uniformity: round(std, 3),
	}
}

// meanValue returns the mean of the V channel in HSV space.
func meanValue(img gocv.Mat) float64 {
	if img.Channels() == 1 {
		return img.Mean().Val1
	}
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	channels := gocv.Split(hsv)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	return channels[2].Mean().Val1
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
