package flightlog

import (
	"fmt"
	"io"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// AltitudePlot plots altitude and vertical speed (both positive up) against
// simulation time, with the link transitions as vertical markers.
func AltitudePlot(title string, frames []Frame, transitions []Transition) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title + " - Altitude"
	p.X.Label.Text = "Sim time (s)"
	p.Y.Label.Text = "m, m/s"

	alt := make(plotter.XYs, len(frames))
	climb := make(plotter.XYs, len(frames))
	for i, f := range frames {
		t := f.SimTime.Seconds()
		alt[i] = plotter.XY{X: t, Y: f.Altitude()}
		climb[i] = plotter.XY{X: t, Y: -f.Velocity[2]}
	}

	if len(frames) > 0 {
		altLine, err := plotter.NewLine(alt)
		if err != nil {
			return nil, fmt.Errorf("altitude line: %w", err)
		}
		altLine.Width = vg.Points(1)
		altLine.Color = plotutil.Color(0)
		p.Add(altLine)
		p.Legend.Add("altitude", altLine)

		climbLine, err := plotter.NewLine(climb)
		if err != nil {
			return nil, fmt.Errorf("climb line: %w", err)
		}
		climbLine.Width = vg.Points(1)
		climbLine.Color = plotutil.Color(1)
		p.Add(climbLine)
		p.Legend.Add("climb rate", climbLine)
	}

	if err := addTransitionMarkers(p, frames, transitions); err != nil {
		return nil, err
	}
	configureLegend(p)
	return p, nil
}

// CommandPlot plots the commanded rate of every actuator against simulation
// time.
func CommandPlot(title string, frames []Frame) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title + " - Commanded rate"
	p.X.Label.Text = "Sim time (s)"
	p.Y.Label.Text = "rad/s"

	n := 0
	for _, f := range frames {
		n = max(n, len(f.Commands))
	}
	for r := 0; r < n; r++ {
		pts := make(plotter.XYs, 0, len(frames))
		for _, f := range frames {
			if r < len(f.Commands) {
				pts = append(pts, plotter.XY{X: f.SimTime.Seconds(), Y: f.Commands[r]})
			}
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("rotor %d: %w", r, err)
		}
		line.Width = vg.Points(1)
		line.Color = plotutil.Color(r)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("rotor %d", r), line)
	}
	configureLegend(p)
	return p, nil
}

func addTransitionMarkers(p *plot.Plot, frames []Frame, transitions []Transition) error {
	if len(transitions) == 0 || len(frames) == 0 {
		return nil
	}
	lo, hi := frames[0].Altitude(), frames[0].Altitude()
	for _, f := range frames {
		lo = min(lo, f.Altitude(), -f.Velocity[2])
		hi = max(hi, f.Altitude(), -f.Velocity[2])
	}
	if lo == hi {
		hi = lo + 1
	}
	for _, t := range transitions {
		x := t.SimTime.Seconds()
		marker, err := plotter.NewLine(plotter.XYs{{X: x, Y: lo}, {X: x, Y: hi}})
		if err != nil {
			return fmt.Errorf("transition marker: %w", err)
		}
		marker.Width = vg.Points(0.5)
		marker.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
		if t.Kind == "online" {
			marker.Color = plotutil.Color(2)
		} else {
			marker.Color = plotutil.Color(3)
		}
		p.Add(marker)
	}
	return nil
}

func configureLegend(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}

// SavePlots renders the altitude and command plots of a session as PNG files
// in dir and returns their paths.
func SavePlots(dir, prefix string, frames []Frame, transitions []Transition) ([]string, error) {
	alt, err := AltitudePlot(prefix, frames, transitions)
	if err != nil {
		return nil, err
	}
	cmd, err := CommandPlot(prefix, frames)
	if err != nil {
		return nil, err
	}

	altFile := filepath.Join(dir, prefix+"_altitude.png")
	if err := alt.Save(plotWidth, plotHeight, altFile); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", altFile, err)
	}
	cmdFile := filepath.Join(dir, prefix+"_commands.png")
	if err := cmd.Save(plotWidth, plotHeight, cmdFile); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", cmdFile, err)
	}
	return []string{altFile, cmdFile}, nil
}

// WritePNG renders p as PNG to w.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
