// Command flightlog-plot renders a session from a flight log database as
// PNG plots and, optionally, an interactive HTML chart.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/flight.bridge/internal/flightlog"
	"github.com/banshee-data/flight.bridge/internal/version"
)

var (
	dbPath      = flag.String("db", "flightlog.db", "Flight log database")
	sessionID   = flag.String("session", "", "Session id (default: latest)")
	outDir      = flag.String("out", ".", "Directory for the PNG plots")
	htmlPath    = flag.String("html", "", "Also write an HTML chart to this file")
	list        = flag.Bool("list", false, "List sessions and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("flightlog-plot"))
		return
	}

	l, err := flightlog.Open(*dbPath, flightlog.Options{})
	if err != nil {
		log.Fatalf("failed to open flight log: %v", err)
	}
	defer l.Close()

	if *list {
		if err := listSessions(os.Stdout, l); err != nil {
			log.Fatalf("failed to list sessions: %v", err)
		}
		return
	}

	files, err := render(l, *sessionID, *outDir, *htmlPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	for _, f := range files {
		log.Printf("wrote %s", f)
	}
}

func listSessions(w io.Writer, l *flightlog.Log) error {
	sessions, err := l.Sessions()
	if err != nil {
		return err
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %-12s %2d actuators  %6d frames  %s\n",
			s.ID, s.Name, s.Actuators, s.Frames, s.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// render writes the plots for one session and returns the files written.
func render(l *flightlog.Log, id, dir, html string) ([]string, error) {
	var (
		s   flightlog.Session
		err error
	)
	if id == "" {
		s, err = l.LatestSession()
		if err != nil {
			return nil, fmt.Errorf("no sessions in %s: %w", l.Path(), err)
		}
	} else {
		sessions, err := l.Sessions()
		if err != nil {
			return nil, err
		}
		for _, c := range sessions {
			if c.ID == id {
				s = c
			}
		}
		if s.ID == "" {
			return nil, fmt.Errorf("session %s not found", id)
		}
	}

	frames, err := l.Frames(s.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load frames: %w", err)
	}
	transitions, err := l.Transitions(s.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transitions: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	prefix := fmt.Sprintf("%s_%.8s", s.Name, s.ID)
	files, err := flightlog.SavePlots(dir, prefix, frames, transitions)
	if err != nil {
		return nil, err
	}

	if html != "" {
		f, err := os.Create(html)
		if err != nil {
			return nil, err
		}
		if err := flightlog.RenderChart(f, s, frames, transitions, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to render chart: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		files = append(files, filepath.Clean(html))
	}
	return files, nil
}
