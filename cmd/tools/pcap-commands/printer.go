package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/capture"
)

var errLimit = errors.New("limit reached")

type printer struct {
	w      io.Writer
	format string
	csv    *csv.Writer
	json   *json.Encoder
	header bool
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	p := &printer{w: w, format: format}
	switch format {
	case "text":
	case "csv":
		p.csv = csv.NewWriter(w)
	case "json":
		p.json = json.NewEncoder(w)
	default:
		return nil, fmt.Errorf("unknown format %q (want text, csv or json)", format)
	}
	return p, nil
}

type jsonCommand struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Src       string    `json:"src"`
	Dst       string    `json:"dst"`
	Size      int       `json:"size"`
	Values    []float32 `json:"values,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func (p *printer) print(c capture.Command) error {
	switch p.format {
	case "csv":
		if !p.header {
			p.header = true
			if err := p.csv.Write([]string{"index", "timestamp", "src", "dst", "size", "error", "values"}); err != nil {
				return err
			}
		}
		errText := ""
		if c.Err != nil {
			errText = c.Err.Error()
		}
		return p.csv.Write([]string{
			strconv.Itoa(c.Index),
			c.Timestamp.UTC().Format(time.RFC3339Nano),
			c.Src, c.Dst,
			strconv.Itoa(c.Size),
			errText,
			joinValues(c.Values, ";"),
		})
	case "json":
		jc := jsonCommand{Index: c.Index, Timestamp: c.Timestamp.UTC(), Src: c.Src, Dst: c.Dst, Size: c.Size, Values: c.Values}
		if c.Err != nil {
			jc.Error = c.Err.Error()
		}
		return p.json.Encode(jc)
	default:
		if c.Err != nil {
			_, err := fmt.Fprintf(p.w, "#%d %s %s -> %s %dB REJECTED: %v\n",
				c.Index, c.Timestamp.UTC().Format("15:04:05.000000"), c.Src, c.Dst, c.Size, c.Err)
			return err
		}
		_, err := fmt.Fprintf(p.w, "#%d %s %s -> %s %dB [%s]\n",
			c.Index, c.Timestamp.UTC().Format("15:04:05.000000"), c.Src, c.Dst, c.Size, joinValues(c.Values, " "))
		return err
	}
}

func (p *printer) flush() error {
	if p.csv != nil {
		p.csv.Flush()
		return p.csv.Error()
	}
	return nil
}

func joinValues(vals []float32, sep string) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return strings.Join(parts, sep)
}
