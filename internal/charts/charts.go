// Package charts renders dashboard projections to PNG with go-chart.
package charts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"salarydash/internal/models"
	"slices"

	"github.com/wcharczuk/go-chart/v2"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to display")

const (
	width      = 900
	height     = 480
	barSpacing = 4
)

var titleStyle = chart.Style{FontSize: 14}

// Bin counts values into n equal-width bins spanning [min, max].
// The maximum lands in the last bin. NaN and infinite values are ignored.
// It returns the bin lower edges and counts.
func Bin(values []float64, n int) (edges []float64, counts []int) {
	values = slices.DeleteFunc(slices.Clone(values), func(v float64) bool {
		return math.IsNaN(v) || math.IsInf(v, 0)
	})
	if len(values) == 0 || n <= 0 {
		return []float64{}, []int{}
	}

	lo, hi := slices.Min(values), slices.Max(values)
	step := (hi - lo) / float64(n)

	edges = make([]float64, n)
	counts = make([]int, n)
	for i := range edges {
		edges[i] = lo + float64(i)*step
	}
	for _, v := range values {
		idx := 0
		if step > 0 {
			idx = int((v - lo) / step)
		}
		if idx >= n {
			idx = n - 1
		}
		counts[idx]++
	}
	return edges, counts
}

// RolesBar draws mean salary per role.
func RolesBar(w io.Writer, roles []models.RoleMean) error {
	if len(roles) == 0 {
		return ErrNoData
	}
	bars := make([]chart.Value, len(roles))
	for i, r := range roles {
		bars[i] = chart.Value{Label: r.Role, Value: r.Mean}
	}
	return renderBars(w, "Top 10 roles by mean salary (USD)", bars)
}

// SalaryHistogram bins the salaries and draws one bar per bin.
func SalaryHistogram(w io.Writer, spec models.HistogramSpec) error {
	edges, counts := Bin(spec.Values, spec.Bins)
	if len(counts) == 0 {
		return ErrNoData
	}
	bars := make([]chart.Value, len(counts))
	for i, c := range counts {
		bars[i] = chart.Value{Label: fmt.Sprintf("%.0fk", edges[i]/1000), Value: float64(c)}
	}
	return renderBars(w, "Annual salary distribution (USD)", bars)
}

// RemotePie draws the share of each remote mode with percent labels.
func RemotePie(w io.Writer, counts []models.RemoteCount) error {
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	if total == 0 {
		return ErrNoData
	}
	values := make([]chart.Value, len(counts))
	for i, c := range counts {
		pct := float64(c.Count) / float64(total) * 100
		values[i] = chart.Value{Label: fmt.Sprintf("%s %.1f%%", c.Mode, pct), Value: float64(c.Count)}
	}
	pie := chart.PieChart{
		Title:      "Work arrangement share",
		TitleStyle: titleStyle,
		Width:      height,
		Height:     height,
		Values:     values,
	}
	return pie.Render(chart.PNG, w)
}

// CountryBar draws the per-country mean for the focus role, sorted by code.
func CountryBar(w io.Writer, role string, means map[string]float64) error {
	if len(means) == 0 {
		return ErrNoData
	}
	codes := make([]string, 0, len(means))
	for c := range means {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	bars := make([]chart.Value, len(codes))
	for i, c := range codes {
		bars[i] = chart.Value{Label: c, Value: means[c]}
	}
	return renderBars(w, fmt.Sprintf("Mean %s salary by country (USD)", role), bars)
}

func renderBars(w io.Writer, title string, bars []chart.Value) error {
	top := 0.0
	for _, b := range bars {
		top = math.Max(top, b.Value)
	}
	if top == 0 {
		top = 1
	}
	barWidth := max(4, (width-120)/len(bars)-barSpacing)

	bc := chart.BarChart{
		Title:      title,
		TitleStyle: titleStyle,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Bars: bars,
	}
	return bc.Render(chart.PNG, w)
}
