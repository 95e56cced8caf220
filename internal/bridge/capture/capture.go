// Package capture decodes command datagrams from packet captures so a
// recorded controller session can be inspected offline. Both pcap and
// pcapng files are read with the pure-Go pcapgo readers.
package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/wire"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Options selects which datagrams are decoded.
type Options struct {
	// Port is the UDP destination port of command datagrams. 0 matches any.
	Port int
	// Actuators is the configured actuator count used for the size check.
	// 0 decodes every slot present.
	Actuators int
	Codec     wire.Codec
}

// Command is one decoded datagram.
type Command struct {
	Index     int
	Timestamp time.Time
	Src, Dst  string
	Size      int
	Values    []float32
	// Err is set for datagrams the bridge would reject.
	Err error
}

// Stats summarises one pass over a capture.
type Stats struct {
	Packets  int // all packets in the capture
	Matched  int // UDP packets to the selected port
	Rejected int
	First    time.Time
	Last     time.Time
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// ReadFile opens path and calls Read.
func ReadFile(ctx context.Context, path string, opts Options, fn func(Command) error) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	defer f.Close()
	return Read(ctx, f, opts, fn)
}

// Read decodes every matching datagram in r and passes it to fn. A non-nil
// error from fn stops the pass and is returned.
func Read(ctx context.Context, r io.Reader, opts Options, fn func(Command) error) (Stats, error) {
	var stats Stats

	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return stats, fmt.Errorf("failed to read capture header: %w", err)
	}
	var src packetReader
	if bytes.Equal(magic, pcapngMagic) {
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return stats, fmt.Errorf("failed to open capture: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		data, ci, err := src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		cmd, ok := decodePacket(data, src.LinkType(), opts)
		if !ok {
			continue
		}
		stats.Matched++
		if stats.First.IsZero() {
			stats.First = ci.Timestamp
		}
		stats.Last = ci.Timestamp
		if cmd.Err != nil {
			stats.Rejected++
		}
		cmd.Index = stats.Packets
		cmd.Timestamp = ci.Timestamp
		if err := fn(cmd); err != nil {
			return stats, err
		}
	}
}

func decodePacket(data []byte, lt layers.LinkType, opts Options) (Command, bool) {
	packet := gopacket.NewPacket(data, lt, gopacket.NoCopy)
	udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok {
		return Command{}, false
	}
	if opts.Port != 0 && int(udp.DstPort) != opts.Port {
		return Command{}, false
	}

	cmd := Command{Size: len(udp.Payload)}
	if net := packet.NetworkLayer(); net != nil {
		cmd.Src = fmt.Sprintf("%s:%d", net.NetworkFlow().Src(), udp.SrcPort)
		cmd.Dst = fmt.Sprintf("%s:%d", net.NetworkFlow().Dst(), udp.DstPort)
	}

	n := opts.Actuators
	if n == 0 {
		n = min(len(udp.Payload)/4, wire.MaxActuators)
	}
	var p wire.CommandPacket
	if err := opts.Codec.DecodeCommand(udp.Payload, n, &p); err != nil {
		cmd.Err = err
		return cmd, true
	}
	cmd.Values = append([]float32(nil), p.MotorSpeed[:n]...)
	return cmd, true
}
