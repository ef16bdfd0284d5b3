// Package debugdump writes numbered intermediate images of a pipeline run
// to a directory for offline inspection. A nil *Dir is valid and discards
// everything.
package debugdump

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"panel-extract/internal/logger"
	"panel-extract/pkg/colorutil"
	"panel-extract/pkg/geometry"

	"gocv.io/x/gocv"
)

// Dir is a debug output directory.
type Dir struct {
	path string
	log  *logger.Logger
}

// New creates the directory. An empty path returns nil (dumping disabled).
func New(path string, log *logger.Logger) (*Dir, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create debug dir: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dir{path: path, log: log}, nil
}

// Path returns the directory, or "" when dumping is disabled.
func (d *Dir) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

// Enabled reports whether dumps are written.
func (d *Dir) Enabled() bool {
	return d != nil
}

// Save writes img under name. Failures are logged, never returned.
func (d *Dir) Save(name string, img gocv.Mat) {
	if d == nil || img.Empty() {
		return
	}
	path := filepath.Join(d.path, name)
	if !gocv.IMWrite(path, img) {
		d.log.Warning("debug", "failed to write debug image", map[string]interface{}{"path": path})
		return
	}
	d.log.Debug("debug", "saved debug image", map[string]interface{}{"path": path})
}

// SaveContours draws every contour on a copy of img, the selected one in
// green and the rest in blue.
func (d *Dir) SaveContours(name string, img gocv.Mat, contours gocv.PointsVector, selected int) {
	if d == nil {
		return
	}
	canvas := img.Clone()
	defer canvas.Close()
	for i := 0; i < contours.Size(); i++ {
		c := colorutil.Blue
		if i == selected {
			c = colorutil.Green
		}
		gocv.DrawContours(&canvas, contours, i, c, 3)
	}
	d.Save(name, canvas)
}

// SaveQuad marks the four corners of q on a copy of img with their index.
func (d *Dir) SaveQuad(name string, img gocv.Mat, q geometry.Quad) {
	if d == nil {
		return
	}
	canvas := img.Clone()
	defer canvas.Close()
	colors := []color.RGBA{colorutil.Blue, colorutil.Green, colorutil.Red, colorutil.Cyan}
	for i, p := range q {
		pt := p.ImagePoint()
		gocv.Circle(&canvas, pt, 15, colors[i], -1)
		gocv.PutText(&canvas, fmt.Sprint(i), pt.Add(image.Pt(20, 20)),
			gocv.FontHersheySimplex, 1, colorutil.White, 2)
	}
	d.Save(name, canvas)
}

// SaveMaskOverlay paints mask pixels above 127 red on a copy of img.
func (d *Dir) SaveMaskOverlay(name string, img, mask gocv.Mat) {
	if d == nil {
		return
	}
	canvas := img.Clone()
	defer canvas.Close()

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(mask, &bin, 127, 255, gocv.ThresholdBinary)

	red := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), img.Rows(), img.Cols(), gocv.MatTypeCV8UC3)
	defer red.Close()
	red.CopyToWithMask(&canvas, bin)
	d.Save(name, canvas)
}
