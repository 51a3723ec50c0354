package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"cyclescan/internal/cycle"
)

var cycleBand = drawing.Color{R: 255, G: 165, B: 0, A: 77}

// writePriceChart plots closes with each cycle shaded from start to end.
func writePriceChart(path string, series cycle.Series, cycles []cycle.Cycle) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, series.Len())
	closes := make([]float64, series.Len())
	top := 0.0
	for i, obs := range series.Observations {
		x[i] = obs.Date
		closes[i] = obs.Close.InexactFloat64()
		if closes[i] > top {
			top = closes[i]
		}
	}

	bands := make([]chart.Series, 0, len(cycles)+1)
	for _, c := range cycles {
		bands = append(bands, chart.TimeSeries{
			XValues: []time.Time{c.StartDate, c.EndDate},
			YValues: []float64{top, top},
			Style: chart.Style{
				StrokeColor: drawing.ColorTransparent,
				FillColor:   cycleBand,
			},
		})
	}
	bands = append(bands, chart.TimeSeries{
		Name:    "Close Price",
		XValues: x,
		YValues: closes,
	})

	graph := chart.Chart{
		Title:  series.Instrument,
		Width:  1280,
		Height: 600,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Close",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: bands,
	}

	return renderPNG(path, graph.Render)
}

// writeMonthHistogram renders a Jan..Dec bar chart of cycle start counts.
func writeMonthHistogram(path, title string, dist cycle.MonthDistribution) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	bars := make([]chart.Value, 0, 12)
	for m := time.January; m <= time.December; m++ {
		bars = append(bars, chart.Value{Label: cycle.ShortMonthName(m), Value: float64(dist.Count(m))})
	}

	graph := chart.BarChart{
		Title:    title,
		Width:    1024,
		Height:   400,
		BarWidth: 50,
		Bars:     bars,
	}
	return renderPNG(path, graph.Render)
}

func renderPNG(path string, render func(chart.RendererProvider, io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	return render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
