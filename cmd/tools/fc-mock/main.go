// Command fc-mock is a stand-in flight controller for exercising the bridge
// end to end. It answers every telemetry packet with one motor command and
// holds the vehicle at a fixed altitude.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/transport"
	"github.com/banshee-data/flight.bridge/internal/bridge/wire"
	"github.com/banshee-data/flight.bridge/internal/version"
	"github.com/fatih/color"
)

var (
	listenAddr  = flag.String("listen-addr", "127.0.0.1", "Address to receive telemetry on")
	listenPort  = flag.Int("listen-port", 9003, "Port to receive telemetry on")
	bridgeAddr  = flag.String("bridge-addr", "127.0.0.1", "Bridge command address")
	bridgePort  = flag.Int("bridge-port", 9002, "Bridge command port")
	actuators   = flag.Int("actuators", 4, "Number of motor channels")
	altitude    = flag.Float64("altitude", 2, "Altitude to hold, m")
	hover       = flag.Float64("hover", 0.57, "Normalized hover command")
	byteOrder   = flag.String("byte-order", "native", "Wire byte order: native, little or big")
	idle        = flag.Duration("idle", 100*time.Millisecond, "Resend the last command after this long without telemetry")
	statusEvery = flag.Duration("status-every", time.Second, "Console status interval")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

var (
	colorOnline  = color.New(color.FgGreen, color.Bold)
	colorWaiting = color.New(color.FgYellow)
	colorValue   = color.New(color.FgCyan)
	colorError   = color.New(color.FgRed)
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("fc-mock"))
		return
	}
	if *actuators < 1 || *actuators > wire.MaxActuators {
		log.Fatalf("actuators must be between 1 and %d", wire.MaxActuators)
	}
	order, err := wire.ParseByteOrder(*byteOrder)
	if err != nil {
		log.Fatalf("%v", err)
	}

	in, err := transport.Bind(*listenAddr, *listenPort)
	if err != nil {
		log.Fatalf("failed to bind telemetry port: %v", err)
	}
	defer in.Close()
	out, err := transport.Connect(*bridgeAddr, *bridgePort)
	if err != nil {
		log.Fatalf("failed to connect to bridge: %v", err)
	}
	defer out.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fc := &flightController{
		in:    in,
		out:   out,
		codec: wire.NewCodec(order),
		ctl:   newController(*actuators, *altitude, *hover),
		idle:  *idle,
	}
	log.Printf("%s: telemetry on %s:%d, commands to %s:%d", version.String("fc-mock"), *listenAddr, *listenPort, *bridgeAddr, *bridgePort)

	lastStatus := time.Now()
	for ctx.Err() == nil {
		if err := fc.step(); err != nil {
			colorError.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if time.Since(lastStatus) >= *statusEvery {
			fc.printStatus()
			lastStatus = time.Now()
		}
	}
	log.Printf("stopped after %d telemetry packets", fc.received)
}

// flightController owns the sockets and the last command sent.
type flightController struct {
	in, out transport.Endpoint
	codec   wire.Codec
	ctl     *controller
	idle    time.Duration

	buf      [2 * wire.TelemetrySize]byte
	cmd      wire.CommandPacket
	last     wire.TelemetryPacket
	received uint64
	invalid  uint64
	online   bool
}

// step waits for one telemetry packet and answers it. Without telemetry the
// previous command is resent so an offline bridge can come online.
func (f *flightController) step() error {
	n, err := f.in.Receive(f.buf[:], f.idle)
	if errors.Is(err, transport.ErrTimeout) {
		f.online = false
		return f.send()
	}
	if err != nil {
		return err
	}
	pkt, err := f.codec.DecodeTelemetry(f.buf[:n])
	if err != nil {
		f.invalid++
		return err
	}
	f.received++
	f.online = true
	f.last = pkt

	for i, v := range f.ctl.update(pkt) {
		f.cmd.MotorSpeed[i] = v
	}
	return f.send()
}

func (f *flightController) send() error {
	_, err := f.out.Send(f.codec.EncodeCommand(&f.cmd))
	return err
}

func (f *flightController) printStatus() {
	if !f.online {
		colorWaiting.Printf("waiting for telemetry (received %d)\n", f.received)
		return
	}
	colorOnline.Print("ONLINE ")
	fmt.Printf("t=%.2fs alt=", f.last.Timestamp)
	colorValue.Printf("%.2fm", -f.last.Position[2])
	fmt.Printf(" target=%.2fm vz=%.2fm/s cmd=%.3f\n", f.ctl.target, -f.last.Velocity[2], f.cmd.MotorSpeed[0])
}
