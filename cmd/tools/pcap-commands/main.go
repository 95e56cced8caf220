// Command pcap-commands prints the motor command datagrams found in a pcap or
// pcapng capture, flagging the ones a bridge would reject.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/flight.bridge/internal/bridge/capture"
	"github.com/banshee-data/flight.bridge/internal/bridge/wire"
	"github.com/banshee-data/flight.bridge/internal/config"
	"github.com/banshee-data/flight.bridge/internal/version"
)

var (
	pcapFile    = flag.String("pcap", "", "Capture file (.pcap or .pcapng)")
	configPath  = flag.String("config", "", "Bridge config; sets port, actuator count and byte order")
	port        = flag.Int("port", 9002, "Command UDP port (0 matches any)")
	actuators   = flag.Int("actuators", 0, "Actuator count for the size check (0 decodes every slot present)")
	byteOrder   = flag.String("byte-order", "native", "Wire byte order: native, little or big")
	format      = flag.String("format", "text", "Output format: text, csv or json")
	limit       = flag.Int("limit", 0, "Stop after this many matched datagrams (0 for all)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("pcap-commands"))
		return
	}
	if *pcapFile == "" {
		log.Fatal("-pcap is required")
	}

	order, err := wire.ParseByteOrder(*byteOrder)
	if err != nil {
		log.Fatalf("%v", err)
	}
	opts := capture.Options{Port: *port, Actuators: *actuators, Codec: wire.NewCodec(order)}
	if *configPath != "" {
		cfg, err := config.LoadBridgeConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		opts.Port = cfg.GetListenPort()
		opts.Actuators = len(cfg.Rotors)
		opts.Codec = wire.NewCodec(cfg.GetByteOrder())
	}

	p, err := newPrinter(os.Stdout, *format)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := 0
	stats, err := capture.ReadFile(ctx, *pcapFile, opts, func(c capture.Command) error {
		n++
		if *limit > 0 && n > *limit {
			return errLimit
		}
		return p.print(c)
	})
	if flushErr := p.flush(); flushErr != nil {
		log.Printf("failed to flush output: %v", flushErr)
	}
	if err != nil && err != errLimit {
		log.Fatalf("failed to read capture: %v", err)
	}
	log.Printf("%d packets, %d command datagrams, %d rejected, span %v",
		stats.Packets, stats.Matched, stats.Rejected, stats.Last.Sub(stats.First))
}
