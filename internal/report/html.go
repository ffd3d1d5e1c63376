package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/occupancy/internal/sampler"
)

// DefaultBins is the histogram bin count used by WriteHTML.
const DefaultBins = 30

// WriteHTML renders a page with a trace chart and a posterior histogram for
// every parameter of res.
func WriteHTML(w io.Writer, title string, res *sampler.Result, sums []sampler.Summary) error {
	if res == nil || len(res.Chains) == 0 {
		return fmt.Errorf("html report: no chains")
	}

	page := components.NewPage()
	page.PageTitle = title

	for j, name := range res.Names {
		subtitle := ""
		if j < len(sums) {
			s := sums[j]
			subtitle = fmt.Sprintf("mean=%.4f sd=%.4f 95%%=[%.4f, %.4f] rhat=%.3f", s.Mean, s.SD, s.Q025, s.Q975, s.RHat)
		}
		page.AddCharts(traceChart(res, j, name, subtitle), histogramChart(res.Pooled(j), name))
	}

	return page.Render(w)
}

func traceChart(res *sampler.Result, j int, name, subtitle string) *charts.Line {
	longest := 0
	for _, c := range res.Chains {
		longest = max(longest, len(c.Draws))
	}
	x := make([]string, longest)
	for k := range x {
		x[k] = strconv.Itoa(k)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Trace - " + name, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
	)
	line.SetXAxis(x)
	for _, c := range res.Chains {
		series := c.Series(j)
		data := make([]opts.LineData, len(series))
		for k, v := range series {
			data[k] = opts.LineData{Value: v}
		}
		line.AddSeries(fmt.Sprintf("chain %d", c.ID), data)
	}
	return line
}

func histogramChart(values []float64, name string) *charts.Bar {
	labels, counts := Histogram(values, DefaultBins)
	data := make([]opts.BarData, len(counts))
	for i, c := range counts {
		data[i] = opts.BarData{Value: c}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Posterior - " + name, Subtitle: fmt.Sprintf("%d draws", len(values))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries(name, data)
	return bar
}

// Histogram bins values into bins equal-width bins and returns the bin
// midpoints as labels with their counts.
func Histogram(values []float64, bins int) (labels []string, counts []float64) {
	if len(values) == 0 || bins < 1 {
		return nil, nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi == lo {
		lo, hi = lo-0.5, hi+0.5
	}
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram needs every value strictly below the last divider.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts = stat.Histogram(nil, dividers, sorted, nil)
	labels = make([]string, bins)
	for i := range labels {
		labels[i] = strconv.FormatFloat((dividers[i]+dividers[i+1])/2, 'f', 3, 64)
	}
	return labels, counts
}
