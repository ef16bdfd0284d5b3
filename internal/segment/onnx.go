package segment

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sync"

	"panel-extract/internal/imageio"
	"panel-extract/internal/logger"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// YOLOv8-seg export geometry.
const (
	inputSize    = 640
	nmsThreshold = 0.45
	padGray      = 114
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// initRuntime loads the onnxruntime shared library once per process.
func initRuntime(libPath string) error {
	runtimeOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		runtimeErr = ort.InitializeEnvironment()
	})
	return runtimeErr
}

// ONNX runs a YOLOv8 segmentation model exported to ONNX.
type ONNX struct {
	modelPath   string
	inputName   string
	outputNames []string
	options     *ort.SessionOptions
	session     *ort.DynamicAdvancedSession
	log         *logger.Logger

	// onnxruntime sessions are not documented as reentrant
	mu sync.Mutex
}

// NewONNX loads the model at modelPath. libPath locates the onnxruntime
// shared library; empty uses the platform default.
func NewONNX(modelPath, libPath string, log *logger.Logger) (*ONNX, error) {
	if log == nil {
		log = logger.Nop()
	}
	if modelPath == "" {
		return nil, fmt.Errorf("%w: no model path configured", ErrModelUnavailable)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if err := initRuntime(libPath); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize onnxruntime: %v", ErrModelUnavailable, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read model info: %v", ErrModelUnavailable, err)
	}
	if len(inputs) != 1 || len(outputs) < 2 {
		return nil, fmt.Errorf("%w: expected 1 input and 2 outputs, got %d and %d",
			ErrModelUnavailable, len(inputs), len(outputs))
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	_ = options.SetGraphOptimizationLevel(ort.GraphOptimizationLevel(99))

	o := &ONNX{
		modelPath:   modelPath,
		inputName:   inputs[0].Name,
		outputNames: []string{outputs[0].Name, outputs[1].Name},
		options:     options,
		log:         log,
	}
	o.session, err = ort.NewDynamicAdvancedSession(modelPath, []string{o.inputName}, o.outputNames, options)
	if err != nil {
		options.Destroy()
		return nil, fmt.Errorf("%w: failed to create session: %v", ErrModelUnavailable, err)
	}

	log.Info("segment", "model loaded", map[string]interface{}{
		"model":   modelPath,
		"input":   o.inputName,
		"outputs": o.outputNames,
	})
	return o, nil
}

// ModelPath returns the loaded model file.
func (o *ONNX) ModelPath() string {
	return o.modelPath
}

// Close releases the session.
func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != nil {
		o.session.Destroy()
		o.session = nil
	}
	if o.options != nil {
		o.options.Destroy()
		o.options = nil
	}
	return nil
}

// Detect implements Segmenter.
func (o *ONNX) Detect(ctx context.Context, img gocv.Mat, conf float64) ([]Mask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	rgb, err := imageio.ToImage(img)
	if err != nil {
		return nil, err
	}
	lb := letterbox(rgb, inputSize)

	input, err := ort.NewTensor(ort.NewShape(1, 3, inputSize, inputSize), lb.tensor())
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil, nil}
	o.mu.Lock()
	if o.session == nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: session closed", ErrModelUnavailable)
	}
	err = o.session.Run([]ort.Value{input}, outputs)
	o.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	for _, v := range outputs {
		if v != nil {
			defer v.Destroy()
		}
	}

	preds, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unsupported prediction output type %T", outputs[0])
	}
	protos, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unsupported prototype output type %T", outputs[1])
	}

	masks, err := decode(preds.GetData(), []int64(preds.GetShape()), protos.GetData(), []int64(protos.GetShape()),
		lb, float32(conf), img.Cols(), img.Rows())
	if err != nil {
		return nil, err
	}
	o.log.Debug("segment", "inference complete", map[string]interface{}{"masks": len(masks)})
	return masks, nil
}

// letterboxed is an image scaled to fit a square canvas with gray padding.
type letterboxed struct {
	img        *image.NRGBA
	scale      float64
	padX, padY int
	newW, newH int
}

func letterbox(src image.Image, size int) letterboxed {
	b := src.Bounds()
	scale := math.Min(float64(size)/float64(b.Dx()), float64(size)/float64(b.Dy()))
	newW := max(1, int(math.Round(float64(b.Dx())*scale)))
	newH := max(1, int(math.Round(float64(b.Dy())*scale)))

	resized := imaging.Resize(src, newW, newH, imaging.Linear)
	canvas := imaging.New(size, size, color.NRGBA{R: padGray, G: padGray, B: padGray, A: 255})
	padX := (size - newW) / 2
	padY := (size - newH) / 2
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return letterboxed{img: canvas, scale: scale, padX: padX, padY: padY, newW: newW, newH: newH}
}

// tensor returns the canvas as planar RGB scaled to [0, 1].
func (l letterboxed) tensor() []float32 {
	w, h := l.img.Bounds().Dx(), l.img.Bounds().Dy()
	plane := w * h
	out := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := l.img.Pix[y*l.img.Stride:]
		for x := 0; x < w; x++ {
			i := y*w + x
			out[i] = float32(row[x*4]) / 255
			out[plane+i] = float32(row[x*4+1]) / 255
			out[2*plane+i] = float32(row[x*4+2]) / 255
		}
	}
	return out
}

// toSource maps a letterbox-space rectangle back to the source image,
// clamped to its bounds.
func (l letterboxed) toSource(r image.Rectangle, w, h int) image.Rectangle {
	x0 := int(float64(r.Min.X-l.padX) / l.scale)
	y0 := int(float64(r.Min.Y-l.padY) / l.scale)
	x1 := int(float64(r.Max.X-l.padX) / l.scale)
	y1 := int(float64(r.Max.Y-l.padY) / l.scale)
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, w, h))
}

// decode turns the raw detection head ([1, 4+nc+nm, N]) and prototype
// masks ([1, nm, ph, pw]) into source-resolution masks sorted by confidence.
func decode(preds []float32, predShape []int64, protos []float32, protoShape []int64,
	lb letterboxed, conf float32, srcW, srcH int) ([]Mask, error) {
	if len(predShape) != 3 || len(protoShape) != 4 {
		return nil, fmt.Errorf("unexpected output ranks %d and %d", len(predShape), len(protoShape))
	}
	channels, n := int(predShape[1]), int(predShape[2])
	nm, ph, pw := int(protoShape[1]), int(protoShape[2]), int(protoShape[3])
	nc := channels - 4 - nm
	if nc < 1 {
		return nil, fmt.Errorf("prediction has %d channels, too few for %d mask coefficients", channels, nm)
	}
	if len(preds) < channels*n || len(protos) < nm*ph*pw {
		return nil, fmt.Errorf("output tensors shorter than their shapes")
	}

	var dets []candidate
	for i := 0; i < n; i++ {
		var score float32
		for c := 4; c < 4+nc; c++ {
			if s := preds[c*n+i]; s > score {
				score = s
			}
		}
		if score < conf {
			continue
		}
		cx, cy := preds[i], preds[n+i]
		w, h := preds[2*n+i], preds[3*n+i]
		coeffs := make([]float32, nm)
		for k := 0; k < nm; k++ {
			coeffs[k] = preds[(4+nc+k)*n+i]
		}
		dets = append(dets, candidate{
			box:    image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)),
			score:  score,
			coeffs: coeffs,
		})
	}

	kept := nms(dets, nmsThreshold)
	masks := make([]Mask, 0, len(kept))
	for _, d := range kept {
		data := buildMask(d, protos, nm, ph, pw, lb, srcW, srcH)
		masks = append(masks, Mask{
			Data:       data,
			Confidence: float64(d.score),
			Box:        lb.toSource(d.box, srcW, srcH),
		})
	}
	SortByConfidence(masks)
	return masks, nil
}

// buildMask evaluates sigmoid(coeffs . protos) inside the detection box,
// removes the letterbox padding and resizes to the source resolution.
func buildMask(d candidate, protos []float32, nm, ph, pw int, lb letterboxed, srcW, srcH int) gocv.Mat {
	size := lb.img.Bounds().Dx()
	sx := float64(pw) / float64(size)
	sy := float64(ph) / float64(size)

	proto := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), ph, pw, gocv.MatTypeCV8UC1)
	defer proto.Close()

	box := image.Rect(
		int(float64(d.box.Min.X)*sx), int(float64(d.box.Min.Y)*sy),
		int(math.Ceil(float64(d.box.Max.X)*sx)), int(math.Ceil(float64(d.box.Max.Y)*sy)),
	).Intersect(image.Rect(0, 0, pw, ph))

	plane := ph * pw
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			var v float32
			for k := 0; k < nm; k++ {
				v += d.coeffs[k] * protos[k*plane+y*pw+x]
			}
			if sigmoid(v) > 0.5 {
				proto.SetUCharAt(y, x, 255)
			}
		}
	}

	content := image.Rect(
		int(float64(lb.padX)*sx), int(float64(lb.padY)*sy),
		int(math.Ceil(float64(lb.padX+lb.newW)*sx)), int(math.Ceil(float64(lb.padY+lb.newH)*sy)),
	).Intersect(image.Rect(0, 0, pw, ph))

	roi := proto.Region(content)
	defer roi.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(roi, &resized, image.Pt(srcW, srcH), 0, 0, gocv.InterpolationLinear)

	out := gocv.NewMat()
	gocv.Threshold(resized, &out, 127, 255, gocv.ThresholdBinary)
	return out
}

func sigmoid(v float32) float64 {
	return 1 / (1 + math.Exp(-float64(v)))
}
