// Command panelbatch runs the extraction pipeline over many images on a
// worker pool. It prints one JSON line per input followed by a summary line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"panel-extract/internal/config"
	"panel-extract/internal/logger"
	"panel-extract/internal/pipeline"
	"panel-extract/internal/report"
	"panel-extract/internal/segment"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("panelbatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: panelbatch [flags] <inputs...>")
		fs.PrintDefaults()
	}
	workers := fs.Int("workers", 0, "Concurrent images (default: number of CPUs)")
	outDir := fs.String("out", "out", "Directory for the extracted panels")
	configPath := fs.String("config", "", "JSON config file")
	debugDir := fs.String("debug-dir", "", "Write intermediate images to per-input sub-directories")
	strict := fs.Bool("strict", false, "Fail instead of accepting an unreasonable crop")
	verbose := fs.Bool("v", false, "Verbose logging on stderr")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	log := logger.ForCLI(stderr, *verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("panelbatch", err, nil)
		return 1
	}
	if *debugDir != "" {
		cfg.DebugDir = *debugDir
	}
	if *strict {
		cfg.Strict = true
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	var model segment.Segmenter
	if cfg.SegmentationEnabled() {
		m, err := segment.Shared(segment.Options{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.OnnxLibrary,
			URL:         cfg.InferenceURL,
			Timeout:     cfg.Timeout,
		}, log)
		if err != nil {
			log.Warning("panelbatch", "segmentation disabled", map[string]interface{}{"error": err.Error()})
		} else {
			model = m
		}
	}

	jobs := pipeline.NewJobs(fs.Args(), *outDir)
	results := pipeline.New(cfg, model, log).Batch(ctx, jobs, cfg.Workers)

	code := 0
	layout := report.Layout{Rows: cfg.Rows, Columns: cfg.Columns}
	for _, r := range results {
		if err := report.Write(stdout, report.NewBatchLine(r, layout)); err != nil {
			log.Error("panelbatch", err, map[string]interface{}{"input": r.Input})
			code = 1
		}
	}

	summary := pipeline.Summarize(results)
	if err := report.Write(stdout, struct {
		Summary pipeline.Summary `json:"summary"`
	}{summary}); err != nil {
		log.Error("panelbatch", err, nil)
		code = 1
	}
	log.Info("panelbatch", "batch finished", map[string]interface{}{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	})

	if summary.Failed > 0 {
		return 1
	}
	return code
}
