// Command panelcrop extracts a solar panel from a photograph and prints a
// JSON report on stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"panel-extract/internal/config"
	"panel-extract/internal/logger"
	"panel-extract/internal/pipeline"
	"panel-extract/internal/report"
	"panel-extract/internal/segment"
	"panel-extract/internal/storage"
	"panel-extract/internal/version"
	"panel-extract/pkg/geometry"
)

type options struct {
	input, output string
	configPath    string
	points        string
	verbose       bool
	showVersion   bool
	cfg           config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// parseArgs builds the configuration. Flags override the config file, which
// overrides the environment.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("panelcrop", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: panelcrop [flags] <input> <output>")
		fs.PrintDefaults()
	}

	def := config.Default()
	rows := fs.Int("rows", def.Rows, "Panel cell rows, echoed in the report")
	cols := fs.Int("cols", def.Columns, "Panel cell columns, echoed in the report")
	confidence := fs.Float64("confidence", def.Confidence, "Segmentation confidence threshold")
	model := fs.String("model", "", "ONNX segmentation model; enables the segmentation report")
	onnxLib := fs.String("onnx-lib", "", "Path to the onnxruntime shared library")
	inferenceURL := fs.String("inference-url", "", "Remote segmentation endpoint used when no model is set")
	preferModel := fs.Bool("prefer-model", false, "Run segmentation before the heuristic strategies")
	debugDir := fs.String("debug-dir", "", "Write intermediate images to this directory")
	timeout := fs.Duration("timeout", def.Timeout, "Per-image processing timeout")
	strict := fs.Bool("strict", false, "Fail instead of accepting an unreasonable crop")

	var o options
	fs.StringVar(&o.points, "points", "", `Manual corners "x1_y1,x2_y2,x3_y3,x4_y4"; skips detection`)
	fs.StringVar(&o.configPath, "config", "", "JSON config file (default "+config.DefaultPath()+")")
	fs.BoolVar(&o.verbose, "v", false, "Verbose logging on stderr")
	fs.BoolVar(&o.showVersion, "version", false, "Print the version and exit")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.showVersion {
		return o, nil
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return o, errors.New("expected <input> and <output>")
	}
	o.input, o.output = fs.Arg(0), fs.Arg(1)

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return o, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rows":
			cfg.Rows = *rows
		case "cols":
			cfg.Columns = *cols
		case "confidence":
			cfg.Confidence = *confidence
			cfg.Params = cfg.Params.WithConfidence(*confidence)
		case "model":
			cfg.ModelPath = *model
		case "onnx-lib":
			cfg.OnnxLibrary = *onnxLib
		case "inference-url":
			cfg.InferenceURL = *inferenceURL
		case "prefer-model":
			cfg.PreferModel = *preferModel
		case "debug-dir":
			cfg.DebugDir = *debugDir
		case "timeout":
			cfg.Timeout = *timeout
		case "strict":
			cfg.Strict = *strict
		}
	})
	if err := cfg.Validate(); err != nil {
		return o, err
	}
	o.cfg = cfg
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return report.Exit(stdout, stderr, report.Failure{Error: err.Error()}, 1)
	}
	if o.showVersion {
		if _, err := fmt.Fprintln(stdout, version.String()); err != nil {
			return 1
		}
		return 0
	}

	log := logger.ForCLI(stderr, o.verbose)
	segmented := o.cfg.SegmentationEnabled()

	res, err := extract(ctx, o, log)
	if err != nil {
		if segmented {
			return report.Exit(stdout, stderr, report.NewSegmentationFailure(err), 1)
		}
		return report.Exit(stdout, stderr, report.NewFailure(err), 1)
	}

	layout := report.Layout{Rows: o.cfg.Rows, Columns: o.cfg.Columns}
	if segmented {
		return report.Exit(stdout, stderr, report.NewSegmentation(res, layout, o.cfg.ModelPath), 0)
	}
	return report.Exit(stdout, stderr, report.NewStandard(res, layout), 0)
}

func extract(ctx context.Context, o options, log *logger.Logger) (*pipeline.Result, error) {
	var points []geometry.Point2D
	if o.points != "" {
		pts, err := geometry.ParseQuad(o.points)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pipeline.ErrDegenerateGeometry, err)
		}
		points = pts
	}

	var model segment.Segmenter
	if o.cfg.SegmentationEnabled() {
		m, err := segment.Shared(segment.Options{
			ModelPath:   o.cfg.ModelPath,
			LibraryPath: o.cfg.OnnxLibrary,
			URL:         o.cfg.InferenceURL,
			Timeout:     o.cfg.Timeout,
		}, log)
		if err != nil {
			log.Warning("panelcrop", "segmentation disabled", map[string]interface{}{"error": err.Error()})
		} else {
			model = m
			if c, ok := m.(io.Closer); ok {
				defer c.Close()
			}
		}
	}

	input, output := o.input, o.output
	var s3 *storage.S3
	if storage.IsRemote(input) || storage.IsRemote(output) {
		tmp, err := os.MkdirTemp("", "panelcrop-")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pipeline.ErrIOFailure, err)
		}
		defer os.RemoveAll(tmp)

		s3, err = storage.NewS3(o.cfg.S3Endpoint, o.cfg.S3Region, log)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pipeline.ErrIOFailure, err)
		}
		if input, err = s3.Fetch(ctx, input, tmp); err != nil {
			return nil, fmt.Errorf("%w: %v", pipeline.ErrIOFailure, err)
		}
		if output, err = storage.StagingPath(output, tmp); err != nil {
			return nil, fmt.Errorf("%w: %v", pipeline.ErrIOFailure, err)
		}
	}

	start := time.Now()
	p := pipeline.New(o.cfg, model, log)
	res, err := p.Run(ctx, pipeline.Request{Input: input, Output: output, Points: points})
	if err != nil {
		return nil, err
	}

	if s3 != nil {
		if err := s3.Publish(ctx, output, o.output); err != nil {
			return nil, fmt.Errorf("%w: %v", pipeline.ErrIOFailure, err)
		}
	}
	log.Debug("panelcrop", "done", map[string]interface{}{"elapsed": time.Since(start).String()})
	return res, nil
}
