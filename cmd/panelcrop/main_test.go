package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"panel-extract/internal/imageio"
	"panel-extract/internal/testimg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	src := testimg.TiltedPanel(6)
	defer src.Close()
	path := filepath.Join(dir, "panel.png")
	require.NoError(t, imageio.Save(path, src))
	return path
}

func TestParseArgsFlagsOverrideConfig(t *testing.T) {
	t.Setenv("DEFAULT_PANEL_ROWS", "24")
	var stderr bytes.Buffer

	o, err := parseArgs([]string{"-cols", "12", "-timeout", "5s", "-strict", "in.jpg", "out.jpg"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "in.jpg", o.input)
	assert.Equal(t, "out.jpg", o.output)
	assert.Equal(t, 24, o.cfg.Rows)
	assert.Equal(t, 12, o.cfg.Columns)
	assert.Equal(t, 5*time.Second, o.cfg.Timeout)
	assert.True(t, o.cfg.Strict)
}

func TestParseArgsRejectsBadInput(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseArgs([]string{"only-one.jpg"}, &stderr)
	assert.Error(t, err)

	_, err = parseArgs([]string{"-confidence", "3", "a.jpg", "b.jpg"}, &stderr)
	assert.Error(t, err)
}

func TestRunStandardReport(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"-rows", "8", input, filepath.Join(dir, "out.jpg")}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
	assert.Equal(t, 8.0, doc["filas"])
	assert.Equal(t, "standard", doc["tipo_imagen"])
	assert.Contains(t, doc, "integridad")
	assert.NotContains(t, doc, "success")
}

func TestRunFailureReport(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{filepath.Join(dir, "missing.jpg"), filepath.Join(dir, "out.jpg")}, &stdout, &stderr)
	assert.Equal(t, 1, code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
	assert.Equal(t, "IOFailure", doc["reason"])
	assert.NotEmpty(t, doc["error"])
}

func TestRunBadPoints(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"-points", "1_2,3_4", input, filepath.Join(dir, "out.jpg")}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "DegenerateGeometry")
}

func TestRunUniformGrayFails(t *testing.T) {
	dir := t.TempDir()
	gray := testimg.Uniform(128, 600, 400)
	defer gray.Close()
	input := filepath.Join(dir, "gray.png")
	require.NoError(t, imageio.Save(input, gray))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{input, filepath.Join(dir, "out.jpg")}, &stdout, &stderr)
	assert.Equal(t, 1, code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
	assert.Equal(t, "NoValidRegion", doc["reason"])
	assert.Contains(t, doc["error"], "no valid region")
}
