// Package colorutil provides shared color utilities for debug overlays.
package colorutil

import (
	"image/color"
)

// Common overlay colors. gocv converts color.RGBA to BGR scalars itself.
var (
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Red   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Cyan  = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	Blue  = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)
