package debugdump

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// SaveHistogram renders a 256-bucket gray histogram to name as PNG, with
// vertical markers at the classifier's black and bright levels.
func (d *Dir) SaveHistogram(name string, hist [256]int, blackLevel, brightLevel int) {
	if d == nil {
		return
	}
	path := filepath.Join(d.path, name)
	f, err := os.Create(path)
	if err != nil {
		d.log.Warning("debug", "failed to create histogram file", map[string]interface{}{"path": path, "error": err.Error()})
		return
	}
	defer f.Close()

	if err := RenderHistogram(hist, blackLevel, brightLevel, f); err != nil {
		d.log.Warning("debug", "failed to render histogram", map[string]interface{}{"path": path, "error": err.Error()})
	}
}

// RenderHistogram writes the histogram chart as PNG to w.
func RenderHistogram(hist [256]int, blackLevel, brightLevel int, w io.Writer) error {
	xvalues := make([]float64, 256)
	yvalues := make([]float64, 256)
	var peak float64
	for i, n := range hist {
		xvalues[i] = float64(i)
		yvalues[i] = float64(n)
		if yvalues[i] > peak {
			peak = yvalues[i]
		}
	}
	if peak == 0 {
		peak = 1
	}

	histSeries := chart.ContinuousSeries{
		Name:    "pixels",
		XValues: xvalues,
		YValues: yvalues,
		Style: chart.Style{
			StrokeColor: chart.ColorBlue,
			FillColor:   chart.ColorBlue.WithAlpha(64),
		},
	}

	graph := chart.Chart{
		Title:      "Gray histogram",
		TitleStyle: chart.Shown(),
		Width:      800,
		Height:     400,
		XAxis: chart.XAxis{
			Name:      "Gray level",
			NameStyle: chart.Shown(),
			Style:     chart.Shown(),
			Range: &chart.ContinuousRange{
				Min: 0.0,
				Max: 255.0,
			},
		},
		YAxis: chart.YAxis{
			Name:      "Pixels",
			NameStyle: chart.Shown(),
			Style:     chart.Shown(),
			Range: &chart.ContinuousRange{
				Min: 0.0,
				Max: peak,
			},
		},
		Series: []chart.Series{
			histSeries,
			createMarker(float64(blackLevel), peak, chart.ColorAlternateGray),
			createMarker(float64(brightLevel), peak, chart.ColorAlternateGreen),
		},
	}
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render histogram: %w", err)
	}
	return nil
}

func createMarker(x, height float64, c drawing.Color) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		XValues: []float64{x, x},
		YValues: []float64{0, height},
		Style: chart.Style{
			StrokeColor:     c,
			StrokeDashArray: []float64{5.0, 5.0},
		},
	}
}
