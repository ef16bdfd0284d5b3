// Package version provides build-time version information.
package version

// These variables are set at build time using -ldflags
var (
	// Version is the semantic version
	Version = "1.0.0"

	// BuildTime is the UTC time when the binary was built
	BuildTime = "unknown"

	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// Algorithm identifies the extraction pipeline in result reports.
const Algorithm = "panel_cascade_v2"

// SegmentationAlgorithm identifies the model-based path in result reports.
const SegmentationAlgorithm = "yolo_v8_segmentation"

// String returns "Version (GitCommit, BuildTime)".
func String() string {
	return Version + " (" + GitCommit + ", " + BuildTime + ")"
}
