package flightlog

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// defaultChartPoints bounds the number of points sent to the browser.
const defaultChartPoints = 4000

// RenderChart writes an HTML page with interactive altitude and command
// charts for a session. maxPoints <= 0 selects the default.
func RenderChart(w io.Writer, s Session, frames []Frame, transitions []Transition, maxPoints int) error {
	if maxPoints <= 0 {
		maxPoints = defaultChartPoints
	}
	stride := 1
	if len(frames) > maxPoints {
		stride = int(math.Ceil(float64(len(frames)) / float64(maxPoints)))
	}

	var (
		x     []string
		alt   []opts.LineData
		climb []opts.LineData
		cmds  [][]opts.LineData
	)
	for i := 0; i < len(frames); i += stride {
		f := frames[i]
		x = append(x, fmt.Sprintf("%.3f", f.SimTime.Seconds()))
		alt = append(alt, opts.LineData{Value: f.Altitude()})
		climb = append(climb, opts.LineData{Value: -f.Velocity[2]})
		for len(cmds) < len(f.Commands) {
			cmds = append(cmds, make([]opts.LineData, len(x)-1))
		}
		for r := range cmds {
			v := 0.0
			if r < len(f.Commands) {
				v = f.Commands[r]
			}
			cmds[r] = append(cmds[r], opts.LineData{Value: v})
		}
	}

	subtitle := fmt.Sprintf("session=%s frames=%d stride=%d", s.ID, len(frames), stride)

	altChart := charts.NewLine()
	altChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Flight log", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: s.Name + " altitude", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "m, m/s"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	altChart.SetXAxis(x).
		AddSeries("altitude", alt, transitionMarks(x, frames, transitions, stride)...).
		AddSeries("climb rate", climb)

	cmdChart := charts.NewLine()
	cmdChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: s.Name + " commanded rate"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "rad/s"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	cmdChart.SetXAxis(x)
	for r, data := range cmds {
		cmdChart.AddSeries(fmt.Sprintf("rotor %d", r), data)
	}

	page := components.NewPage()
	page.PageTitle = "Flight log " + s.ID
	page.AddCharts(altChart, cmdChart)
	return page.Render(w)
}

// transitionMarks places a vertical mark line at the first plotted sample at
// or after each transition.
func transitionMarks(x []string, frames []Frame, transitions []Transition, stride int) []charts.SeriesOpts {
	var marks []charts.SeriesOpts
	for _, t := range transitions {
		for i := 0; i < len(frames); i += stride {
			if frames[i].SimTime >= t.SimTime {
				marks = append(marks, charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{
					Name:  t.Kind,
					XAxis: x[i/stride],
				}))
				break
			}
		}
	}
	return marks
}
