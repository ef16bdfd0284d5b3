package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"panel-extract/internal/imageio"
	"panel-extract/internal/logger"

	"gocv.io/x/gocv"
)

// Remote calls an HTTP inference service that accepts a multipart image
// upload and answers with polygon detections:
//
//	{"detections": [{"confidence": 0.91, "polygon": [[x, y], ...]}]}
type Remote struct {
	url    string
	client *http.Client
	log    *logger.Logger
}

type remoteResponse struct {
	Detections []struct {
		Confidence float64      `json:"confidence"`
		Polygon    [][2]float64 `json:"polygon"`
	} `json:"detections"`
}

// NewRemote returns a client for the service at url.
func NewRemote(url string, timeout time.Duration, log *logger.Logger) *Remote {
	if log == nil {
		log = logger.Nop()
	}
	return &Remote{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Detect implements Segmenter.
func (r *Remote) Detect(ctx context.Context, img gocv.Mat, conf float64) ([]Mask, error) {
	data, err := imageio.Encode(img, ".jpg")
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.WriteField("confidence", strconv.FormatFloat(conf, 'f', -1, 64)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: inference service returned %d: %s", ErrModelUnavailable, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}

	var masks []Mask
	for _, det := range decoded.Detections {
		if det.Confidence < conf || len(det.Polygon) < 3 {
			continue
		}
		masks = append(masks, polygonMask(det.Polygon, det.Confidence, img.Cols(), img.Rows()))
	}
	SortByConfidence(masks)

	r.log.Debug("segment", "remote inference complete", map[string]interface{}{
		"detections": len(decoded.Detections),
		"masks":      len(masks),
	})
	return masks, nil
}

// polygonMask rasterizes poly into a w x h binary mask.
func polygonMask(poly [][2]float64, conf float64, w, h int) Mask {
	pts := make([]image.Point, len(poly))
	bounds := image.Rectangle{Min: image.Pt(math.MaxInt, math.MaxInt), Max: image.Pt(math.MinInt, math.MinInt)}
	for i, p := range poly {
		pt := image.Pt(int(math.Round(p[0])), int(math.Round(p[1])))
		pts[i] = pt
		bounds.Min.X = min(bounds.Min.X, pt.X)
		bounds.Min.Y = min(bounds.Min.Y, pt.Y)
		bounds.Max.X = max(bounds.Max.X, pt.X+1)
		bounds.Max.Y = max(bounds.Max.Y, pt.Y+1)
	}

	data := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8UC1)
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	gocv.FillPoly(&data, pv, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	return Mask{
		Data:       data,
		Confidence: conf,
		Box:        bounds.Intersect(image.Rect(0, 0, w, h)),
	}
}
