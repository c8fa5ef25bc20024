package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderReport writes an HTML page with lap-time and sector-time charts for
// doc.
func RenderReport(w io.Writer, doc *Document) error {
	labels := make([]string, len(doc.Laps))
	lapTimes := make([]opts.BarData, len(doc.Laps))
	for i, lap := range doc.Laps {
		labels[i] = fmt.Sprintf("Lap %d", lap.LapNumber)
		var v interface{}
		if lap.LapTime != nil {
			v = *lap.LapTime
		}
		lapTimes[i] = opts.BarData{Value: v}
	}

	subtitle := fmt.Sprintf("%s / %s", doc.Track.TrackName, doc.Meta.SessionName)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: doc.Meta.SessionName, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Lap times", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "s", Scale: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).
		AddSeries("lap time", lapTimes,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Sector times", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "s", Scale: opts.Bool(true)}),
	)
	line.SetXAxis(labels)
	for k := 0; k < doc.Track.SectorCount; k++ {
		data := make([]opts.LineData, len(doc.Laps))
		for i, lap := range doc.Laps {
			var v interface{}
			if k < len(lap.SectorTimes) && lap.SectorTimes[k] != nil {
				v = *lap.SectorTimes[k]
			}
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(fmt.Sprintf("S%d", k+1), data)
	}

	page := components.NewPage()
	page.PageTitle = doc.Meta.SessionName
	page.AddCharts(bar, line)
	return page.Render(w)
}
