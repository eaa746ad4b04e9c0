package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/melodist/pkg/note"
)

const (
	minSymbolSize   = 6
	symbolPerBeat   = 12
	maxSymbolSize   = 40
	plotHeight      = "500px"
	plotWidth       = "100%"
	seriesNameFmt   = "variant %d"
	axisColor       = "#888"
	gridColor       = "#333"
	labelColorMuted = "#aaa"
)

// WritePlot renders each line as one series of a piano-roll scatter chart:
// x is the onset in quarter notes, y the MIDI key, and point size follows
// the sounding duration. Rests are skipped.
func WritePlot(w io.Writer, title string, lines ...*note.Line) error {
	scatter := charts.NewScatter()

	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: plotWidth, Height: plotHeight}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(len(lines) > 1)}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "Quarter",
			Type:      "value",
			AxisLabel: &opts.AxisLabel{Color: labelColorMuted},
			AxisLine:  &opts.AxisLine{LineStyle: &opts.LineStyle{Color: axisColor}},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "Key",
			Type:      "value",
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: labelColorMuted},
			SplitLine: &opts.SplitLine{LineStyle: &opts.LineStyle{Color: gridColor}},
		}),
	)

	for i, l := range lines {
		scatter.AddSeries(fmt.Sprintf(seriesNameFmt, i), rollPoints(l))
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("rendering plot: %w", err)
	}

	return nil
}

func rollPoints(l *note.Line) []opts.ScatterData {
	ids := l.AllNotes()
	points := make([]opts.ScatterData, 0, len(ids))

	for _, id := range ids {
		p, ok := l.Pitch(id)
		if !ok {
			continue
		}

		onset := l.AbsolutePosition(id).Float64() * quarters
		beats := l.Duration(id).Float64() * quarters
		size := min(max(int(beats*symbolPerBeat), minSymbolSize), maxSymbolSize)

		points = append(points, opts.ScatterData{
			Name:       p.String(),
			Value:      []any{onset, p.Chromatic() + middleCOffset, p.String()},
			SymbolSize: size,
		})
	}

	return points
}
