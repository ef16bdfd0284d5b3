// Command manualcrop rectifies an image using four operator-supplied corners.
//
//	manualcrop <input> <output> "x1_y1,x2_y2,x3_y3,x4_y4"
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"panel-extract/internal/detect"
	"panel-extract/internal/imageio"
	"panel-extract/internal/logger"
	"panel-extract/internal/rectify"
	"panel-extract/internal/report"
	"panel-extract/pkg/geometry"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) != 3 {
		fmt.Fprintln(stderr, `Usage: manualcrop <input> <output> "x1_y1,x2_y2,x3_y3,x4_y4"`)
		return report.Exit(stdout, stderr, report.Failure{Error: "expected <input> <output> <points>"}, 1)
	}
	log := logger.ForCLI(stderr, false)

	width, height, err := crop(args[0], args[1], args[2])
	if err != nil {
		log.Error("manualcrop", err, map[string]interface{}{"input": args[0]})
		return report.Exit(stdout, stderr, report.Failure{Error: err.Error()}, 1)
	}
	log.Info("manualcrop", "rectified", map[string]interface{}{"input": args[0], "width": width, "height": height})
	return report.Exit(stdout, stderr, report.Manual{OK: true, Width: width, Height: height}, 0)
}

// crop warps the quadrilateral to its own edge lengths, without clamping.
func crop(input, output, points string) (int, int, error) {
	pts, err := geometry.ParseQuad(points)
	if err != nil {
		return 0, 0, err
	}

	src, err := imageio.Load(input)
	if err != nil {
		return 0, 0, err
	}
	defer src.Close()

	det, err := detect.Manual{Points: pts}.Detect(context.Background(), src)
	if err != nil {
		return 0, 0, err
	}
	r, err := rectify.Warp(src, det.Quad, det.Clamp, det.MinDim)
	if err != nil {
		return 0, 0, err
	}
	defer r.Close()

	if err := imageio.Save(output, r.Image); err != nil {
		return 0, 0, fmt.Errorf("failed to save output: %w", err)
	}
	return r.Width, r.Height, nil
}
