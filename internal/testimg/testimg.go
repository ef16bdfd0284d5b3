// Package testimg builds synthetic panel photographs for tests.
package testimg

import (
	"image"
	"image/color"
	"math"
	"math/rand"

	"panel-extract/pkg/geometry"

	"gocv.io/x/gocv"
)

// Uniform returns a rows x cols BGR image filled with gray level v.
func Uniform(v float64, rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), rows, cols, gocv.MatTypeCV8UC3)
}

// NoisyGray returns a rows x cols BGR image whose gray levels are mean-1
// or mean+1 at random, so the standard deviation is 1. The same seed gives
// the same image.
func NoisyGray(mean float64, rows, cols int, seed int64) gocv.Mat {
	rng := rand.New(rand.NewSource(seed))
	lo, hi := uint8(mean-1), uint8(mean+1)
	buf := make([]byte, rows*cols*3)
	for i := 0; i < len(buf); i += 3 {
		v := lo
		if rng.Intn(2) == 1 {
			v = hi
		}
		buf[i], buf[i+1], buf[i+2] = v, v, v
	}
	img, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, buf)
	if err != nil {
		panic(err)
	}
	return img
}

// FillRect paints r (exclusive of Max) with gray level v.
func FillRect(img *gocv.Mat, r image.Rectangle, v float64) {
	roi := img.Region(r)
	defer roi.Close()
	roi.SetTo(gocv.NewScalar(v, v, v, 0))
}

// FillQuad paints the polygon q with gray level v.
func FillQuad(img *gocv.Mat, q geometry.Quad, v float64) {
	pts := make([]image.Point, 4)
	for i, p := range q {
		pts[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	c := uint8(v)
	gocv.FillPoly(img, pv, color.RGBA{R: c, G: c, B: c, A: 255})
}

// RotatedRect returns the corners of a w x h rectangle centred on (cx, cy)
// and rotated by deg degrees, in TL, TR, BR, BL order for small angles.
func RotatedRect(cx, cy, w, h, deg float64) geometry.Quad {
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	corners := [4][2]float64{{-w / 2, -h / 2}, {w / 2, -h / 2}, {w / 2, h / 2}, {-w / 2, h / 2}}
	var q geometry.Quad
	for i, c := range corners {
		q[i] = geometry.Point2D{
			X: cx + c[0]*cos - c[1]*sin,
			Y: cy + c[0]*sin + c[1]*cos,
		}
	}
	return q
}

// TiltedPanel returns a 400x600 (w x h) photograph: a bright textured
// panel rotated by deg degrees on a darker, but not black, background.
func TiltedPanel(deg float64) gocv.Mat {
	img := Uniform(60, 600, 400)
	q := RotatedRect(200, 300, 220, 360, deg)
	FillQuad(&img, q, 170)
	// Cell grid lines so the panel interior is not flat
	for y := 160; y < 440; y += 40 {
		FillRect(&img, image.Rect(150, y, 250, y+2), 140)
	}
	return img
}

// ELPanel returns a 400x600 (w x h) electroluminescence-like capture: a
// bright panel covering ~17% of the frame on a near-black background.
func ELPanel() gocv.Mat {
	img := Uniform(8, 600, 400)
	FillRect(&img, image.Rect(130, 170, 270, 430), 210)
	// Dark busbars as in a real EL capture
	FillRect(&img, image.Rect(130, 250, 270, 253), 90)
	FillRect(&img, image.Rect(130, 340, 270, 343), 90)
	return img
}
