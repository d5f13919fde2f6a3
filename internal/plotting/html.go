package plotting

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/shower.report/internal/analysis"
)

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

// ldfChart builds an interactive LDF comparison with a log density axis.
func ldfChart(series []LDFSeries, rMax float64) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Lateral Distribution Function", Width: "1000px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Lateral Distribution Function", Subtitle: fmt.Sprintf("series=%d r_max=%g m", len(series), rMax)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: 0, Max: rMax, Name: "r (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "log", Name: "density (m⁻²)", NameLocation: "middle", NameGap: 40}),
	)

	for _, s := range series {
		data := make([]opts.ScatterData, 0, len(s.LDF.Centres))
		for i, d := range s.LDF.Density {
			if d <= 0 {
				continue
			}
			data = append(data, opts.ScatterData{Value: []interface{}{s.LDF.Centres[i], d}})
		}
		scatter.AddSeries(s.Label, data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(primaryColor(s.Primary))}),
		)
	}
	return scatter
}

// xmaxChart plots mean X_max per primary against log10(E/GeV).
func xmaxChart(series []analysis.XmaxSeries) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1000px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Depth of shower maximum"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "log10(E/GeV)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "X_max (g/cm²)", NameLocation: "middle", NameGap: 40}),
	)
	for _, s := range series {
		data := make([]opts.ScatterData, len(s.Points))
		for i, p := range s.Points {
			data[i] = opts.ScatterData{Value: []interface{}{p.LogEGeV, p.Mean, p.StdErr}}
		}
		scatter.AddSeries(s.Primary.String(), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(primaryColor(s.Primary))}),
		)
	}
	return scatter
}

// RenderReport writes an HTML page with the LDF comparison and, when xmax
// is non-empty, the X_max chart.
func RenderReport(w io.Writer, ldf []LDFSeries, rMax float64, xmax []analysis.XmaxSeries) error {
	page := components.NewPage()
	page.PageTitle = "Shower report"
	page.AddCharts(ldfChart(ldf, rMax))
	if len(xmax) > 0 {
		page.AddCharts(xmaxChart(xmax))
	}
	return page.Render(w)
}

// Report renders RenderReport's page to path.
func (pl *Plotter) Report(path string, ldf []LDFSeries, rMax float64, xmax []analysis.XmaxSeries) error {
	var buf bytes.Buffer
	if err := RenderReport(&buf, ldf, rMax, xmax); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return pl.write(path, &buf)
}
