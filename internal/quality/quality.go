// Package quality gates unusable inputs, classifies image type and computes
// the integrity, luminosity and uniformity metrics of a finished crop.
package quality

import (
	"errors"
	"fmt"

	"panel-extract/internal/config"
	"panel-extract/internal/imageio"

	"gocv.io/x/gocv"
)

// ErrUnusableImage is returned for near-uniform black or white images.
var ErrUnusableImage = errors.New("unusable image")

// GrayStats returns the mean and population standard deviation of the
// grayscale image.
func GrayStats(img gocv.Mat) (mean, stddev float64) {
	gray := imageio.Gray(img)
	defer gray.Close()

	meanMat := gocv.NewMat()
	defer meanMat.Close()
	stdMat := gocv.NewMat()
	defer stdMat.Close()
	gocv.MeanStdDev(gray, &meanMat, &stdMat)

	return meanMat.GetDoubleAt(0, 0), stdMat.GetDoubleAt(0, 0)
}

// CheckUsable rejects images that are almost entirely black or white.
func CheckUsable(img gocv.Mat, p config.GateParams) error {
	if img.Empty() {
		return fmt.Errorf("%w: empty image", ErrUnusableImage)
	}
	mean, std := GrayStats(img)
	if mean < p.DarkMean && std < p.MaxStdDev {
		return fmt.Errorf("%w: image is completely black (mean %.2f, std %.2f)", ErrUnusableImage, mean, std)
	}
	if mean > p.BrightMean && std < p.MaxStdDev {
		return fmt.Errorf("%w: image is completely white or overexposed (mean %.2f, std %.2f)", ErrUnusableImage, mean, std)
	}
	return nil
}
