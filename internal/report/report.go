// Package report builds the JSON documents printed by the command line tools.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"panel-extract/internal/pipeline"
	"panel-extract/internal/quality"
	"panel-extract/internal/version"
)

// Methods reported by the segmentation document.
const (
	MethodSegmentation       = "yolo_segmentation"
	MethodSegmentationFailed = "yolo_segmentation_failed"
	methodHeuristicPrefix    = "heuristic_"
)

// Layout is the cell grid reported back to the caller. It is echoed, not
// measured.
type Layout struct {
	Rows    int
	Columns int
}

// Standard is the heuristic success document.
type Standard struct {
	quality.Metrics
	Rows        int    `json:"filas"`
	Columns     int    `json:"columnas"`
	Microcracks int    `json:"microgrietas"`
	Fingers     int    `json:"fingers"`
	BlackEdges  int    `json:"black_edges"`
	Intensity   int    `json:"intensidad"`
	ImageType   string `json:"tipo_imagen"`
}

// NewStandard builds the heuristic document. Defect counts are always zero.
func NewStandard(res *pipeline.Result, layout Layout) Standard {
	return Standard{
		Metrics:   res.Metrics,
		Rows:      layout.Rows,
		Columns:   layout.Columns,
		ImageType: res.Type().String(),
	}
}

// DebugInfo carries the diagnostics of a segmentation run.
type DebugInfo struct {
	Strategy           string             `json:"strategy"`
	MaskAreaPercentage float64            `json:"mask_area_percentage"`
	ContourArea        float64            `json:"contour_area"`
	TransformWidth     int                `json:"transform_width"`
	TransformHeight    int                `json:"transform_height"`
	MeanBrightness     float64            `json:"mean_brightness"`
	Normalized         bool               `json:"normalized"`
	Rescued            bool               `json:"rescued"`
	Verdict            string             `json:"verdict"`
	DebugDir           string             `json:"debug_dir,omitempty"`
	States             []string           `json:"states"`
	Attempts           []pipeline.Attempt `json:"attempts"`
}

// Segmentation is the model-path success document.
type Segmentation struct {
	Success    bool    `json:"success"`
	Method     string  `json:"method"`
	ModelPath  string  `json:"model_path"`
	Confidence float64 `json:"confidence"`
	quality.Metrics
	Rows             int       `json:"filas"`
	Columns          int       `json:"columnas"`
	Rotated          bool      `json:"imagen_rotada"`
	Reduction        string    `json:"reduccion_tamaño"`
	Dimensions       string    `json:"dimensiones_finales"`
	AlgorithmVersion string    `json:"algorithm_version"`
	Processed        bool      `json:"procesamiento_exitoso"`
	ImageType        string    `json:"tipo_imagen"`
	Debug            DebugInfo `json:"debug_info"`
}

// NewSegmentation builds the model-path document. When a heuristic strategy
// won instead of the model, the method and algorithm say so.
func NewSegmentation(res *pipeline.Result, layout Layout, modelPath string) Segmentation {
	method := MethodSegmentation
	algorithm := version.SegmentationAlgorithm
	if res.Strategy != "segment" {
		method = methodHeuristicPrefix + res.Strategy
		algorithm = version.Algorithm
	}
	return Segmentation{
		Success:          true,
		Method:           method,
		ModelPath:        modelPath,
		Confidence:       res.Confidence,
		Metrics:          res.Metrics,
		Rows:             layout.Rows,
		Columns:          layout.Columns,
		Rotated:          res.Rotated,
		Reduction:        fmt.Sprintf("%.1f%%", res.Reduction()),
		Dimensions:       fmt.Sprintf("%dx%d", res.Width, res.Height),
		AlgorithmVersion: algorithm,
		Processed:        true,
		ImageType:        res.Type().String(),
		Debug: DebugInfo{
			Strategy:           res.Strategy,
			MaskAreaPercentage: res.MaskCoverage,
			ContourArea:        res.ContourArea,
			TransformWidth:     res.TransformWidth,
			TransformHeight:    res.TransformHeight,
			MeanBrightness:     res.MeanBrightness,
			Normalized:         res.Normalized,
			Rescued:            res.Rescued,
			Verdict:            res.Verdict.String(),
			DebugDir:           res.DebugDir,
			States:             res.States,
			Attempts:           res.Attempts,
		},
	}
}

// Failure is the heuristic failure document.
type Failure struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// NewFailure builds the heuristic failure document.
func NewFailure(err error) Failure {
	return Failure{Error: err.Error(), Reason: pipeline.Reason(err)}
}

// SegmentationFailure is the model-path failure document. Traceback holds
// the state trail.
type SegmentationFailure struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	Method    string `json:"method"`
	Traceback string `json:"traceback"`
}

// NewSegmentationFailure builds the model-path failure document.
func NewSegmentationFailure(err error) SegmentationFailure {
	return SegmentationFailure{
		Error:     err.Error(),
		Reason:    pipeline.Reason(err),
		Method:    MethodSegmentationFailed,
		Traceback: Trail(err),
	}
}

// Trail returns the states a failed run went through, or "" when err
// carries none.
func Trail(err error) string {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		return ""
	}
	return strings.Join(perr.States, " -> ")
}

// Manual is the manualcrop success document.
type Manual struct {
	OK     bool `json:"ok"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
}

// BatchLine is one line of panelbatch output.
type BatchLine struct {
	Input  string      `json:"input"`
	Output string      `json:"output"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// NewBatchLine builds the line for one batch job.
func NewBatchLine(jr pipeline.JobResult, layout Layout) BatchLine {
	line := BatchLine{Input: jr.Input, Output: jr.Output}
	if jr.Err != nil {
		line.Error = jr.Err.Error()
		line.Reason = pipeline.Reason(jr.Err)
		return line
	}
	line.Result = NewStandard(jr.Result, layout)
	return line
}

// Write encodes v as one line of JSON. HTML characters are left unescaped.
func Write(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Exit writes v to w and returns code, or 1 when the write fails. The write
// error is reported on errw.
func Exit(w, errw io.Writer, v interface{}, code int) int {
	if err := Write(w, v); err != nil {
		fmt.Fprintf(errw, "failed to write result: %v\n", err)
		return 1
	}
	return code
}
