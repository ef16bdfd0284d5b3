package segment

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"panel-extract/internal/testimg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestIoU(t *testing.T) {
	a := image.Rect(0, 0, 10, 10)
	assert.Equal(t, float32(1), iou(a, a))
	assert.Equal(t, float32(0), iou(a, image.Rect(20, 20, 30, 30)))
	assert.InDelta(t, 25.0/175.0, iou(a, image.Rect(5, 5, 15, 15)), 1e-6)
}

func TestNMSKeepsBestOfOverlapping(t *testing.T) {
	dets := []candidate{
		{box: image.Rect(0, 0, 100, 100), score: 0.6},
		{box: image.Rect(2, 2, 102, 102), score: 0.9},
		{box: image.Rect(300, 300, 400, 400), score: 0.7},
	}
	kept := nms(dets, 0.45)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].score)
	assert.Equal(t, float32(0.7), kept[1].score)
}

func TestLetterboxPortrait(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 800))
	lb := letterbox(src, inputSize)

	assert.Equal(t, 0.8, lb.scale)
	assert.Equal(t, 320, lb.newW)
	assert.Equal(t, 640, lb.newH)
	assert.Equal(t, 160, lb.padX)
	assert.Equal(t, 0, lb.padY)
	assert.Equal(t, image.Rect(0, 0, 640, 640), lb.img.Bounds())

	// padding is gray, content is the (black) source
	assert.Equal(t, uint8(padGray), lb.img.Pix[0])
	assert.Equal(t, uint8(0), lb.img.Pix[(320*640+320)*4])

	back := lb.toSource(image.Rect(160, 0, 480, 640), 400, 800)
	assert.Equal(t, image.Rect(0, 0, 400, 800), back)

	tensor := lb.tensor()
	assert.Len(t, tensor, 3*640*640)
	assert.InDelta(t, float32(padGray)/255, tensor[0], 1e-6)
}

func TestDecode(t *testing.T) {
	const n, nm = 2, 1
	// channels: cx, cy, w, h, class0, coeff0
	preds := make([]float32, 6*n)
	set := func(c, i int, v float32) { preds[c*n+i] = v }
	set(0, 0, 320)
	set(1, 0, 320)
	set(2, 0, 200)
	set(3, 0, 400)
	set(4, 0, 0.9)
	set(5, 0, 10)
	// second box below the confidence threshold
	set(0, 1, 100)
	set(1, 1, 100)
	set(2, 1, 50)
	set(3, 1, 50)
	set(4, 1, 0.3)
	set(5, 1, 10)

	protos := make([]float32, nm*160*160)
	for i := range protos {
		protos[i] = 1
	}

	lb := letterboxed{
		img:   image.NewNRGBA(image.Rect(0, 0, inputSize, inputSize)),
		scale: 1, newW: inputSize, newH: inputSize,
	}
	masks, err := decode(preds, []int64{1, 6, n}, protos, []int64{1, nm, 160, 160}, lb, 0.5, 640, 640)
	require.NoError(t, err)
	defer CloseAll(masks)

	require.Len(t, masks, 1)
	m := masks[0]
	assert.InDelta(t, 0.9, m.Confidence, 1e-6)
	assert.Equal(t, image.Rect(220, 120, 420, 520), m.Box)
	assert.Equal(t, 640, m.Data.Cols())
	assert.Equal(t, 640, m.Data.Rows())
	assert.InDelta(t, 200*400, gocv.CountNonZero(m.Data), 200*4+400*4)
	assert.Equal(t, uint8(0), m.Data.GetUCharAt(10, 10))
	assert.Equal(t, uint8(255), m.Data.GetUCharAt(320, 320))
}

func TestDecodeRejectsBadShapes(t *testing.T) {
	_, err := decode(nil, []int64{1, 5}, nil, []int64{1, 32, 160, 160}, letterboxed{}, 0.5, 10, 10)
	assert.Error(t, err)

	_, err = decode(make([]float32, 36), []int64{1, 36, 1}, make([]float32, 32*4), []int64{1, 32, 2, 2}, letterboxed{}, 0.5, 10, 10)
	assert.Error(t, err, "no room for class scores")
}

func TestRemoteDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		assert.NoError(t, err)
		assert.Equal(t, "0.5", r.FormValue("confidence"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"detections": []map[string]interface{}{
				{"confidence": 0.6, "polygon": [][2]float64{{10, 10}, {50, 10}, {50, 80}, {10, 80}}},
				{"confidence": 0.95, "polygon": [][2]float64{{100, 20}, {180, 20}, {180, 150}, {100, 150}}},
				{"confidence": 0.2, "polygon": [][2]float64{{0, 0}, {5, 0}, {5, 5}}},
			},
		})
	}))
	defer srv.Close()

	img := testimg.Uniform(100, 200, 200)
	defer img.Close()

	r := NewRemote(srv.URL, 5*time.Second, nil)
	masks, err := r.Detect(context.Background(), img, 0.5)
	require.NoError(t, err)
	defer CloseAll(masks)

	require.Len(t, masks, 2)
	assert.Equal(t, 0.95, masks[0].Confidence)
	assert.Equal(t, image.Rect(100, 20, 181, 151), masks[0].Box)
	assert.Equal(t, uint8(255), masks[0].Data.GetUCharAt(80, 140))
	assert.Equal(t, uint8(0), masks[0].Data.GetUCharAt(40, 30))
}

func TestRemoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	img := testimg.Uniform(100, 50, 50)
	defer img.Close()

	_, err := NewRemote(srv.URL, time.Second, nil).Detect(context.Background(), img, 0.5)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestOpenWithoutBackend(t *testing.T) {
	_, err := Open(Options{}, nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = NewONNX("/nonexistent/model.onnx", "", nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestFuncAdapter(t *testing.T) {
	called := false
	var s Segmenter = Func(func(ctx context.Context, img gocv.Mat, conf float64) ([]Mask, error) {
		called = true
		return nil, errors.New("boom")
	})
	_, err := s.Detect(context.Background(), gocv.NewMat(), 0.5)
	assert.Error(t, err)
	assert.True(t, called)
}
