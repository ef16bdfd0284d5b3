package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"panel-extract/internal/crop"
	"panel-extract/internal/pipeline"
	"panel-extract/internal/quality"
	"panel-extract/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		Metrics:        quality.Metrics{Integrity: 97.5, Luminosity: 142.25, Uniformity: 31.2},
		Classification: quality.Classification{Type: quality.Electroluminescence},
		Rotated:        true,
		Strategy:       "segment",
		Verdict:        crop.Verdict{OK: true},
		Confidence:     0.87,
		ContourArea:    51234,
		MaskCoverage:   42.5,
		OriginalWidth:  400,
		OriginalHeight: 600,
		Width:          200,
		Height:         300,
		States:         []string{"Loaded", "Reported"},
		Attempts:       []pipeline.Attempt{{Strategy: "segment", Verdict: "reasonable"}},
	}
}

func decode(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, v))
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestStandardDocument(t *testing.T) {
	m := decode(t, NewStandard(sampleResult(), Layout{Rows: 10, Columns: 6}))

	assert.Equal(t, 97.5, m["integridad"])
	assert.Equal(t, 142.25, m["luminosidad"])
	assert.Equal(t, 31.2, m["uniformidad"])
	assert.Equal(t, 10.0, m["filas"])
	assert.Equal(t, 6.0, m["columnas"])
	assert.Equal(t, "EL", m["tipo_imagen"])
	for _, k := range []string{"microgrietas", "fingers", "black_edges", "intensidad"} {
		assert.Equal(t, 0.0, m[k], k)
	}
	assert.Len(t, m, 11)
}

func TestSegmentationDocument(t *testing.T) {
	m := decode(t, NewSegmentation(sampleResult(), Layout{Rows: 24, Columns: 6}, "/models/panel.onnx"))

	assert.Equal(t, true, m["success"])
	assert.Equal(t, MethodSegmentation, m["method"])
	assert.Equal(t, "/models/panel.onnx", m["model_path"])
	assert.Equal(t, 0.87, m["confidence"])
	assert.Equal(t, true, m["imagen_rotada"])
	assert.Equal(t, "75.0%", m["reduccion_tamaño"])
	assert.Equal(t, "200x300", m["dimensiones_finales"])
	assert.Equal(t, version.SegmentationAlgorithm, m["algorithm_version"])
	assert.Equal(t, true, m["procesamiento_exitoso"])
	assert.Equal(t, 97.5, m["integridad"])

	debug, ok := m["debug_info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 42.5, debug["mask_area_percentage"])
	assert.Equal(t, "reasonable", debug["verdict"])
	assert.NotContains(t, debug, "debug_dir")
}

func TestSegmentationDocumentHeuristicWinner(t *testing.T) {
	res := sampleResult()
	res.Strategy = "adaptive"

	doc := NewSegmentation(res, Layout{Rows: 10, Columns: 6}, "m.onnx")
	assert.Equal(t, "heuristic_adaptive", doc.Method)
	assert.Equal(t, version.Algorithm, doc.AlgorithmVersion)
}

func TestFailureDocuments(t *testing.T) {
	err := &pipeline.Error{
		Err:    fmt.Errorf("%w: nothing found", pipeline.ErrNoValidRegion),
		States: []string{"Loaded", "QualityChecked", "Failed(NoValidRegion)"},
	}

	f := decode(t, NewFailure(err))
	assert.Equal(t, "no valid region: nothing found", f["error"])
	assert.Equal(t, "NoValidRegion", f["reason"])

	sf := decode(t, NewSegmentationFailure(err))
	assert.Equal(t, false, sf["success"])
	assert.Equal(t, MethodSegmentationFailed, sf["method"])
	assert.Equal(t, "Loaded -> QualityChecked -> Failed(NoValidRegion)", sf["traceback"])
}

func TestTrailWithoutStates(t *testing.T) {
	assert.Empty(t, Trail(errors.New("plain")))
}

func TestBatchLine(t *testing.T) {
	ok := NewBatchLine(pipeline.JobResult{Job: pipeline.Job{Input: "a.jpg", Output: "out/a.jpg"}, Result: sampleResult()}, Layout{Rows: 10, Columns: 6})
	m := decode(t, ok)
	assert.Equal(t, "a.jpg", m["input"])
	assert.NotContains(t, m, "error")
	assert.Equal(t, "EL", m["result"].(map[string]interface{})["tipo_imagen"])

	failed := NewBatchLine(pipeline.JobResult{Job: pipeline.Job{Input: "b.jpg"}, Err: pipeline.ErrUnusableImage}, Layout{})
	m = decode(t, failed)
	assert.Equal(t, "UnusableImage", m["reason"])
	assert.NotContains(t, m, "result")
}

func TestWriteDoesNotEscapeHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Failure{Error: "a < b"}))
	assert.Equal(t, "{\"error\":\"a < b\"}\n", buf.String())
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("stdout closed") }

func TestExit(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 0, Exit(&out, &errOut, Manual{OK: true, Width: 2, Height: 3}, 0))
	assert.Equal(t, "{\"ok\":true,\"width\":2,\"height\":3}\n", out.String())

	assert.Equal(t, 1, Exit(brokenWriter{}, &errOut, Manual{OK: true}, 0))
	assert.Contains(t, errOut.String(), "stdout closed")
}
