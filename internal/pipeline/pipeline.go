// Package pipeline runs one panel extraction end to end: quality gate,
// orientation, classification, the detection cascade, validation,
// rectification, refinement, enhancement and metrics.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"panel-extract/internal/config"
	"panel-extract/internal/crop"
	"panel-extract/internal/debugdump"
	"panel-extract/internal/detect"
	"panel-extract/internal/enhance"
	"panel-extract/internal/imageio"
	"panel-extract/internal/logger"
	"panel-extract/internal/quality"
	"panel-extract/internal/rectify"
	"panel-extract/internal/segment"
	"panel-extract/pkg/geometry"

	"gocv.io/x/gocv"
)

// Request is one invocation.
type Request struct {
	Input    string
	Output   string
	Points   []geometry.Point2D // operator corners; skips detection
	DebugDir string             // overrides the configured debug directory
}

// Attempt records what one strategy produced.
type Attempt struct {
	Strategy string `json:"strategy"`
	Error    string `json:"error,omitempty"`
	Verdict  string `json:"verdict,omitempty"`
}

// Result describes a successful invocation.
type Result struct {
	Metrics        quality.Metrics
	Classification quality.Classification
	Rotated        bool

	Strategy     string
	Kind         detect.Kind
	Verdict      crop.Verdict
	Rescued      bool
	Trimmed      bool
	Normalized   bool
	Confidence   float64
	ContourArea  float64
	MaskCoverage float64

	// Size of the candidate before trimming
	TransformWidth  int
	TransformHeight int
	MeanBrightness  float64

	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int

	Attempts []Attempt
	States   []string
	DebugDir string
}

// Type is the classified image type.
func (r *Result) Type() quality.ImageType {
	return r.Classification.Type
}

// Reduction is the percentage of original pixels cut away.
func (r *Result) Reduction() float64 {
	orig := float64(r.OriginalWidth * r.OriginalHeight)
	if orig == 0 {
		return 0
	}
	return 100 * (orig - float64(r.Width*r.Height)) / orig
}

// Error is a failed invocation together with the states it went through.
type Error struct {
	Err    error
	States []string
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Processor runs invocations. It is safe for concurrent use; every
// invocation allocates its own images.
type Processor struct {
	cfg   config.Config
	model segment.Segmenter
	log   *logger.Logger
}

// New returns a Processor. model may be nil, which disables the
// segmentation strategy.
func New(cfg config.Config, model segment.Segmenter, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{cfg: cfg, model: model, log: log}
}

// Config returns the processor's configuration.
func (p *Processor) Config() config.Config {
	return p.cfg
}

func (p *Processor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.Timeout)
}

// Run loads req.Input, processes it and writes the enhanced panel to
// req.Output.
func (p *Processor) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	t := newTrail(p.log, req.Input)
	src, err := imageio.Load(req.Input)
	if err != nil {
		return nil, t.fail(fmt.Errorf("%w: %v", ErrIOFailure, err))
	}
	defer src.Close()

	debugDir := req.DebugDir
	if debugDir == "" {
		debugDir = p.cfg.DebugDir
	}
	dbg, err := debugdump.New(debugDir, p.log)
	if err != nil {
		p.log.Warning("pipeline", "debug output disabled", map[string]interface{}{"error": err.Error()})
	}

	res, out, err := p.process(ctx, t, src, req.Points, dbg)
	if err != nil {
		out.Close()
		return nil, err
	}
	defer out.Close()

	if err := imageio.Save(req.Output, out); err != nil {
		return nil, t.fail(fmt.Errorf("%w: %v", ErrIOFailure, err))
	}
	t.enter(StateReported, "")
	res.States = t.steps

	p.log.Info("pipeline", "panel extracted", map[string]interface{}{
		"input":    req.Input,
		"output":   req.Output,
		"strategy": res.Strategy,
		"type":     res.Type().String(),
		"size":     fmt.Sprintf("%dx%d", res.Width, res.Height),
	})
	return res, nil
}

// Process runs the pipeline on an in-memory image and returns the enhanced
// panel. The caller owns the returned Mat.
func (p *Processor) Process(ctx context.Context, src gocv.Mat, points []geometry.Point2D) (*Result, gocv.Mat, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	t := newTrail(p.log, "memory")
	res, out, err := p.process(ctx, t, src, points, nil)
	if err != nil {
		return nil, out, err
	}
	t.enter(StateReported, "")
	res.States = t.steps
	return res, out, nil
}

// checkpoint converts an expired context into ErrTimeout.
func checkpoint(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return err
	}
}

func (p *Processor) process(ctx context.Context, t *trail, src gocv.Mat, points []geometry.Point2D, dbg *debugdump.Dir) (*Result, gocv.Mat, error) {
	params := p.cfg.Params
	res := &Result{
		OriginalWidth:  src.Cols(),
		OriginalHeight: src.Rows(),
		DebugDir:       dbg.Path(),
	}

	t.enter(StateLoaded, "")
	dbg.Save("01_original.jpg", src)

	if err := checkpoint(ctx); err != nil {
		return nil, gocv.NewMat(), t.fail(err)
	}
	if err := quality.CheckUsable(src, params.Gate); err != nil {
		return nil, gocv.NewMat(), t.fail(err)
	}
	t.enter(StateQualityChecked, "")

	work, rotated := imageio.NormalizeOrientation(src)
	defer work.Close()
	res.Rotated = rotated
	if rotated {
		dbg.Save("02_rotated.jpg", work)
	}

	res.Classification = quality.Classify(work, params.Classify)
	t.enter(StateClassified, res.Type().String())
	if dbg.Enabled() {
		dbg.SaveHistogram("histogram.png", quality.Histogram(work), params.Classify.BlackLevel, params.Classify.BrightLevel)
	}

	plan := detect.Plan(res.Type(), detect.PlanOptions{
		Params:      params,
		Points:      points,
		Model:       p.model,
		PreferModel: p.cfg.PreferModel,
		Debug:       dbg,
	})
	p.log.Debug("pipeline", "detection plan", map[string]interface{}{"strategies": detect.Names(plan)})

	c, err := p.cascade(ctx, t, work, plan, res)
	if err != nil {
		return nil, gocv.NewMat(), t.fail(err)
	}
	defer c.Close()

	res.Strategy = c.det.Strategy
	res.Kind = c.det.Kind
	res.Verdict = c.verdict
	res.Rescued = c.rescued
	res.Confidence = c.det.Confidence
	res.ContourArea = c.det.ContourArea
	res.MaskCoverage = c.det.MaskCoverage
	res.TransformWidth = c.img.Cols()
	res.TransformHeight = c.img.Rows()

	if c.det.Kind == detect.KindQuad {
		t.enter(StateRectified, "")
		dbg.SaveQuad("09_transform_points.jpg", work, c.det.Quad)
	}
	dbg.Save("10_warped.jpg", c.img)

	var cur gocv.Mat
	if c.verdict.OK {
		var box geometry.RectInt
		cur, box = crop.Trim(c.img, params.Trim)
		res.Trimmed = box.Width != c.img.Cols() || box.Height != c.img.Rows()
	} else {
		cur = c.img.Clone()
	}
	defer func() { cur.Close() }()
	t.enter(StateRefined, "")

	if err := checkpoint(ctx); err != nil {
		return nil, gocv.NewMat(), t.fail(err)
	}

	res.MeanBrightness, _ = quality.GrayStats(cur)
	if c.det.Strategy == "segment" {
		normalized, ok := enhance.NormalizeDark(cur, res.MeanBrightness, params.Segment.DarkMean)
		cur.Close()
		cur = normalized
		res.Normalized = ok
		if ok {
			dbg.Save("11_normalized.jpg", cur)
		}
	}

	profile := params.EnhanceStandard
	if res.Type() == quality.Electroluminescence {
		profile = params.EnhanceEL
	}
	out := enhance.Apply(cur, profile)
	t.enter(StateEnhanced, "")
	dbg.Save("12_enhanced.jpg", out)

	res.Metrics = quality.Measure(out, params.IntegrityLevel)
	res.Width = out.Cols()
	res.Height = out.Rows()
	return res, out, nil
}

// candidate is a detection materialized as an image.
type candidate struct {
	det     detect.Result
	img     gocv.Mat
	verdict crop.Verdict
	rescued bool
}

func (c *candidate) Close() {
	if c != nil {
		c.img.Close()
	}
}

// materialize rectifies quad results; crop results already are images.
func materialize(work gocv.Mat, det detect.Result) (*candidate, error) {
	if det.Kind == detect.KindCrop {
		return &candidate{det: det, img: det.Crop}, nil
	}
	r, err := rectify.Warp(work, det.Quad, det.Clamp, det.MinDim)
	if err != nil {
		return nil, err
	}
	return &candidate{det: det, img: r.Image}, nil
}

// cascade runs plan in order and returns the first reasonable candidate.
// Unreasonable candidates are kept as a fallback; when the plan runs out
// the boundary rescue gets one try before the fallback is used. In strict
// mode only reasonable candidates are returned.
func (p *Processor) cascade(ctx context.Context, t *trail, work gocv.Mat, plan []detect.Strategy, res *Result) (*candidate, error) {
	params := p.cfg.Params
	profile := params.ValidateStandard
	if res.Type() == quality.Electroluminescence {
		profile = params.ValidateEL
	}

	var fallback *candidate
	for _, s := range plan {
		if err := checkpoint(ctx); err != nil {
			fallback.Close()
			return nil, err
		}
		t.enter(StateDetecting, s.Name())
		_, manual := s.(detect.Manual)

		det, err := s.Detect(ctx, work)
		if err != nil {
			if cerr := checkpoint(ctx); cerr != nil {
				fallback.Close()
				return nil, cerr
			}
			// Operator corners are final; Manual reports them as degenerate geometry.
			if manual {
				fallback.Close()
				return nil, err
			}
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name(), Error: err.Error()})
			p.log.Debug("pipeline", "strategy failed", map[string]interface{}{"strategy": s.Name(), "error": err.Error()})
			continue
		}

		t.enter(StateValidating, s.Name())
		c, err := materialize(work, det)
		if err != nil {
			if manual {
				fallback.Close()
				return nil, err
			}
			res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name(), Error: err.Error()})
			continue
		}

		c.verdict = crop.ValidateImage(c.img, work, profile)
		res.Attempts = append(res.Attempts, Attempt{Strategy: s.Name(), Verdict: c.verdict.String()})
		// Operator corners are final.
		if c.verdict.OK || manual {
			fallback.Close()
			return c, nil
		}
		p.log.Debug("pipeline", "unreasonable crop", map[string]interface{}{"strategy": s.Name(), "reason": c.verdict.Reason})
		if fallback == nil {
			fallback = c
		} else {
			c.Close()
		}
	}

	t.enter(StateValidating, "rescue")
	img, region, err := crop.Rescue(work, params.Rescue, params.MaxRegionFraction)
	if err == nil {
		rc := &candidate{
			det:     detect.Result{Kind: detect.KindCrop, Strategy: "rescue", Crop: img, Region: region},
			img:     img,
			rescued: true,
		}
		rc.verdict = crop.ValidateImage(img, work, profile)
		res.Attempts = append(res.Attempts, Attempt{Strategy: "rescue", Verdict: rc.verdict.String()})
		if rc.verdict.OK || !p.cfg.Strict {
			fallback.Close()
			return rc, nil
		}
		rc.Close()
	} else {
		res.Attempts = append(res.Attempts, Attempt{Strategy: "rescue", Error: err.Error()})
	}

	if fallback != nil && !p.cfg.Strict {
		return fallback, nil
	}
	fallback.Close()
	return nil, fmt.Errorf("%w: none of %d strategies produced a reasonable crop", ErrNoValidRegion, len(plan))
}
