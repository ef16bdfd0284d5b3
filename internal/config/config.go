// Package config holds runtime settings and detection thresholds.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const configFile = "config.json"

// Config is the runtime configuration of one process.
// Precedence: defaults, then environment, then config file, then CLI flags.
type Config struct {
	Rows       int     `json:"rows"`
	Columns    int     `json:"columns"`
	Confidence float64 `json:"confidence"`

	ModelPath    string `json:"model_path"`    // ONNX segmentation model; empty disables it
	OnnxLibrary  string `json:"onnx_library"`  // path to the onnxruntime shared library
	InferenceURL string `json:"inference_url"` // remote segmentation service, used when no model path is set
	PreferModel  bool   `json:"prefer_model"`  // run segmentation before the heuristic strategies

	Timeout  time.Duration `json:"-"`
	Strict   bool          `json:"strict"` // fail instead of accepting an unreasonable crop
	DebugDir string        `json:"debug_dir"`
	Workers  int           `json:"workers"`

	S3Endpoint string `json:"s3_endpoint"`
	S3Region   string `json:"s3_region"`

	Params Params `json:"-"`
}

// fileConfig mirrors Config for JSON decoding; the timeout is stored in seconds.
type fileConfig struct {
	Config
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Rows:       10,
		Columns:    6,
		Confidence: 0.5,
		Timeout:    120 * time.Second,
		S3Region:   "us-east-1",
		Params:     DefaultParams(),
	}
}

// FromEnv returns Default() overlaid with environment variables.
func FromEnv() Config {
	c := Default()
	c.Rows = getEnvInt("DEFAULT_PANEL_ROWS", c.Rows)
	c.Columns = getEnvInt("DEFAULT_PANEL_COLUMNS", c.Columns)
	c.Confidence = getEnvFloat("YOLO_DEFAULT_CONFIDENCE", c.Confidence)
	c.ModelPath = getEnv("YOLO_MODEL_PATH", c.ModelPath)
	c.OnnxLibrary = getEnv("ONNXRUNTIME_LIB", c.OnnxLibrary)
	c.InferenceURL = getEnv("INFERENCE_URL", c.InferenceURL)
	c.S3Endpoint = getEnv("S3_ENDPOINT", c.S3Endpoint)
	c.S3Region = getEnv("S3_REGION", c.S3Region)
	if secs := getEnvFloat("YOLO_TIMEOUT_SECONDS", 0); secs > 0 {
		c.Timeout = time.Duration(secs * float64(time.Second))
	}
	c.Params = c.Params.WithConfidence(c.Confidence)
	return c
}

// DefaultPath returns ~/.config/panel-extract/config.json.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "panel-extract", configFile)
}

// Load returns FromEnv() overlaid with the config file at path, or with the
// default file when path is empty.
func Load(path string) (Config, error) {
	c := FromEnv()
	if path == "" {
		return c.LoadFile(DefaultPath(), false)
	}
	return c.LoadFile(path, true)
}

// LoadFile overlays c with the JSON file at path. A missing file at the
// default location is not an error; a missing explicit path is.
func (c Config) LoadFile(path string, explicit bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, fmt.Errorf("failed to read config: %w", err)
	}

	fc := fileConfig{Config: c}
	if err := json.Unmarshal(data, &fc); err != nil {
		return c, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	out := fc.Config
	out.Params = c.Params
	if fc.TimeoutSeconds > 0 {
		out.Timeout = time.Duration(fc.TimeoutSeconds * float64(time.Second))
	}
	out.Params = out.Params.WithConfidence(out.Confidence)
	return out, nil
}

// Validate checks the values a run depends on.
func (c Config) Validate() error {
	if c.Rows <= 0 || c.Columns <= 0 {
		return fmt.Errorf("rows and columns must be positive, got %dx%d", c.Rows, c.Columns)
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence must be in (0, 1], got %g", c.Confidence)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// SegmentationEnabled reports whether any segmentation backend is configured.
func (c Config) SegmentationEnabled() bool {
	return c.ModelPath != "" || c.InferenceURL != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
