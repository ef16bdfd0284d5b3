package debugdump

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"panel-extract/internal/testimg"
	"panel-extract/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNilDirIsNoop(t *testing.T) {
	var d *Dir
	img := testimg.Uniform(10, 10, 10)
	defer img.Close()

	assert.False(t, d.Enabled())
	assert.Equal(t, "", d.Path())
	assert.NotPanics(t, func() {
		d.Save("x.jpg", img)
		d.SaveQuad("q.jpg", img, geometry.DestinationRect(5, 5))
		d.SaveHistogram("h.png", [256]int{}, 50, 150)
	})
}

func TestNewEmptyPathDisables(t *testing.T) {
	d, err := New("", nil)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestSaveWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "debug")
	d, err := New(dir, nil)
	require.NoError(t, err)

	img := testimg.TiltedPanel(8)
	defer img.Close()

	d.Save("01_original.jpg", img)
	d.SaveQuad("09_transform_points.jpg", img, testimg.RotatedRect(200, 300, 220, 360, 8))

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), img.Rows(), img.Cols(), gocv.MatTypeCV8UC1)
	defer mask.Close()
	d.SaveMaskOverlay("05_mask_overlay.jpg", img, mask)

	var hist [256]int
	hist[60] = 1000
	hist[170] = 300
	d.SaveHistogram("histogram.png", hist, 50, 150)

	for _, name := range []string{"01_original.jpg", "09_transform_points.jpg", "05_mask_overlay.jpg", "histogram.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}

func TestRenderHistogramPNG(t *testing.T) {
	var hist [256]int
	for i := range hist {
		hist[i] = i
	}
	var buf bytes.Buffer
	require.NoError(t, RenderHistogram(hist, 50, 150, &buf))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, buf.Bytes()[:4])
}
