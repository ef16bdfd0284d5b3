// Package imageio loads, converts and saves images as BGR gocv.Mat values.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnreadable is returned when a file exists but cannot be decoded.
var ErrUnreadable = errors.New("unreadable image")

// Load reads an image file as a 3-channel BGR Mat.
// OpenCV decodes first; formats the local OpenCV build lacks go through
// the Go decoders.
func Load(path string) (gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to open image: %w", err)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if !mat.Empty() {
		return mat, nil
	}
	mat.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to open image: %w", err)
	}
	return Decode(data)
}

// Decode converts encoded image bytes to a BGR Mat.
func Decode(data []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	mat.Close()

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return ToMat(img)
}

// Save writes mat to path, creating parent directories as needed.
func Save(path string, mat gocv.Mat) error {
	if mat.Empty() {
		return errors.New("refusing to save empty image")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("failed to write image: %s", path)
	}
	return nil
}

// Encode returns mat encoded in the format implied by ext (".jpg", ".png").
func Encode(mat gocv.Mat, ext string) ([]byte, error) {
	format := gocv.JPEGFileExt
	switch strings.ToLower(ext) {
	case ".png":
		format = gocv.PNGFileExt
	case ".jpg", ".jpeg", "":
	default:
		return nil, fmt.Errorf("unsupported output format %q", ext)
	}

	buf, err := gocv.IMEncode(format, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// NormalizeOrientation rotates landscape images 90° clockwise so panels are
// always processed in portrait. It returns a new Mat and whether it rotated.
func NormalizeOrientation(mat gocv.Mat) (gocv.Mat, bool) {
	if mat.Cols() <= mat.Rows() {
		return mat.Clone(), false
	}
	dst := gocv.NewMat()
	gocv.Rotate(mat, &dst, gocv.Rotate90Clockwise)
	return dst, true
}

// Gray returns a single-channel copy of mat.
func Gray(mat gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if mat.Channels() == 1 {
		mat.CopyTo(&gray)
		return gray
	}
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	return gray
}
