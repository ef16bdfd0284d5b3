package enhance

import (
	"image"
	"testing"

	"panel-extract/internal/config"
	"panel-extract/internal/testimg"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestApplyBrightens(t *testing.T) {
	img := testimg.Uniform(80, 64, 64)
	defer img.Close()
	testimg.FillRect(&img, image.Rect(0, 0, 32, 64), 40)

	for name, profile := range map[string]config.EnhanceProfile{
		"standard": config.DefaultParams().EnhanceStandard,
		"el":       config.DefaultParams().EnhanceEL,
	} {
		t.Run(name, func(t *testing.T) {
			out := Apply(img, profile)
			defer out.Close()

			assert.Equal(t, img.Rows(), out.Rows())
			assert.Equal(t, img.Cols(), out.Cols())
			assert.Equal(t, 3, out.Channels())
			assert.Greater(t, out.Mean().Val1, img.Mean().Val1)
		})
	}
}

func TestApplySaturates(t *testing.T) {
	img := testimg.Uniform(250, 32, 32)
	defer img.Close()

	out := Apply(img, config.DefaultParams().EnhanceStandard)
	defer out.Close()

	// 250 + 30 clips at 255 rather than wrapping around to a dark value
	assert.GreaterOrEqual(t, out.Mean().Val1, 250.0)
}

func TestApplyFallsBackOnBadInput(t *testing.T) {
	gray := gocv.NewMatWithSize(16, 16, gocv.MatTypeCV8UC1)
	defer gray.Close()
	gray.SetTo(gocv.NewScalar(50, 0, 0, 0))

	out := Apply(gray, config.DefaultParams().EnhanceStandard)
	defer out.Close()
	assert.Equal(t, 1, out.Channels())
	assert.Equal(t, 50.0, out.Mean().Val1)
}

func TestNormalizeDark(t *testing.T) {
	img := testimg.Uniform(5, 10, 10)
	defer img.Close()
	testimg.FillRect(&img, image.Rect(0, 0, 5, 10), 20)

	out, ok := NormalizeDark(img, 12.5, 30)
	defer out.Close()
	assert.True(t, ok)
	assert.Equal(t, uint8(255), out.GetUCharAt(0, 0))
	assert.Equal(t, uint8(0), out.GetUCharAt(0, 9*3))

	same, ok := NormalizeDark(img, 45, 30)
	defer same.Close()
	assert.False(t, ok)
}
