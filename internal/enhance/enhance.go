// Package enhance applies brightness and local contrast normalization to a
// rectified panel crop.
package enhance

import (
	"fmt"
	"image"

	"panel-extract/internal/config"

	"gocv.io/x/gocv"
)

// Apply boosts the HSV value channel by p.ValueOffset (saturating at 255),
// equalizes it with CLAHE and converts back to BGR. It always returns a new
// Mat; when any step fails the result is an unmodified copy of img.
func Apply(img gocv.Mat, p config.EnhanceProfile) gocv.Mat {
	out, err := apply(img, p)
	if err != nil {
		return img.Clone()
	}
	return out
}

func apply(img gocv.Mat, p config.EnhanceProfile) (gocv.Mat, error) {
	if img.Empty() || img.Channels() != 3 {
		return gocv.NewMat(), fmt.Errorf("enhance expects a 3-channel image, got %d channels", img.Channels())
	}
	if p.TileGrid <= 0 {
		return gocv.NewMat(), fmt.Errorf("invalid tile grid %d", p.TileGrid)
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

	value := channels[2]
	value.AddUChar(p.ValueOffset)

	clahe := gocv.NewCLAHEWithParams(p.ClipLimit, image.Point{X: p.TileGrid, Y: p.TileGrid})
	defer clahe.Close()
	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe.Apply(value, &equalized)
	equalized.CopyTo(&channels[2])

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge(channels, &merged)

	out := gocv.NewMat()
	gocv.CvtColor(merged, &out, gocv.ColorHSVToBGR)
	return out, nil
}

// NormalizeDark stretches img to the full 0-255 range when its mean gray
// level is below darkMean. It returns a new Mat and whether it stretched.
func NormalizeDark(img gocv.Mat, meanGray, darkMean float64) (gocv.Mat, bool) {
	if meanGray >= darkMean {
		return img.Clone(), false
	}
	out := gocv.NewMat()
	gocv.Normalize(img, &out, 0, 255, gocv.NormMinMax)
	return out, true
}
