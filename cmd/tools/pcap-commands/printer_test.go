package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/capture"
	"github.com/banshee-data/flight.bridge/internal/bridge/wire"
)

var (
	ts       = time.Date(2025, 6, 1, 12, 0, 0, 1000, time.UTC)
	accepted = capture.Command{Index: 1, Timestamp: ts, Src: "127.0.0.1:9003", Dst: "127.0.0.1:9002", Size: 16, Values: []float32{0.5, 0.25, 1, 0}}
	rejected = capture.Command{Index: 3, Timestamp: ts, Src: "127.0.0.1:9003", Dst: "127.0.0.1:9002", Size: 12, Err: wire.ErrUndersized}
)

func TestPrinter_Text(t *testing.T) {
	var buf bytes.Buffer
	p, err := newPrinter(&buf, "text")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.print(accepted); err != nil {
		t.Fatal(err)
	}
	if err := p.print(rejected); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if want := "#1 12:00:00.000001 127.0.0.1:9003 -> 127.0.0.1:9002 16B [0.5 0.25 1 0]"; lines[0] != want {
		t.Errorf("line 0 = %q, want %q", lines[0], want)
	}
	if !strings.Contains(lines[1], "REJECTED") {
		t.Errorf("line 1 = %q, want a rejection", lines[1])
	}
}

func TestPrinter_CSV(t *testing.T) {
	var buf bytes.Buffer
	p, err := newPrinter(&buf, "csv")
	if err != nil {
		t.Fatal(err)
	}
	p.print(accepted)
	p.print(rejected)
	if err := p.flush(); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2", len(lines))
	}
	if lines[0] != "index,timestamp,src,dst,size,error,values" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ",16,,0.5;0.25;1;0") {
		t.Errorf("row 1 = %q", lines[1])
	}
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	p, err := newPrinter(&buf, "json")
	if err != nil {
		t.Fatal(err)
	}
	p.print(accepted)
	p.print(rejected)

	dec := json.NewDecoder(&buf)
	var first, second jsonCommand
	if err := dec.Decode(&first); err != nil {
		t.Fatal(err)
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatal(err)
	}
	if len(first.Values) != 4 || first.Error != "" {
		t.Errorf("first = %+v", first)
	}
	if second.Error == "" || second.Values != nil {
		t.Errorf("second = %+v", second)
	}
}

func TestNewPrinter_UnknownFormat(t *testing.T) {
	if _, err := newPrinter(&bytes.Buffer{}, "xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
