// Command sitl-bridge flies the built-in multirotor model against an external
// flight controller over the bridge's UDP protocol, in real time.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge"
	"github.com/banshee-data/flight.bridge/internal/bridge/fault"
	"github.com/banshee-data/flight.bridge/internal/config"
	"github.com/banshee-data/flight.bridge/internal/flightlog"
	"github.com/banshee-data/flight.bridge/internal/monitoring"
	"github.com/banshee-data/flight.bridge/internal/sim"
	"github.com/banshee-data/flight.bridge/internal/version"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Bridge configuration file (.json, .yaml)")
	listen      = flag.String("listen", "127.0.0.1:8081", "Debug HTTP listen address (empty disables)")
	step        = flag.Duration("step", time.Millisecond, "Physics step")
	speed       = flag.Float64("speed", 1, "Real-time factor (0 runs as fast as possible)")
	maxSteps    = flag.Uint64("steps", 0, "Stop after this many steps (0 runs until interrupted)")
	statusEvery = flag.Duration("status-every", 5*time.Second, "Simulation time between status log lines (0 disables)")
	logPath     = flag.String("flightlog", "", "Record the flight to this sqlite database")
	decimate    = flag.Int("decimate", 10, "Record every Nth telemetry sample")
	recordQueue = flag.Int("record-queue", 4096, "Flight log entries buffered ahead of sqlite (0 writes inside the tick)")
	logFile     = flag.String("log-file", "", "Also write logs to this file, rotated")
	debug       = flag.Bool("debug", false, "Enable per-tick debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func setupLogging() {
	if *logFile == "" {
		return
	}
	log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   *logFile,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}))
}

// startupFailure describes an activation error and picks the exit code.
// Fatal fault kinds carry a hint.
func startupFailure(what string, err error) (string, int) {
	msg := fmt.Sprintf("failed to %s (%s fault): %v", what, fault.Kind(err), err)
	if !fault.Fatal(err) {
		return msg, 1
	}
	if errors.Is(err, fault.ErrConfiguration) {
		return msg + "\nhint: check " + *configPath, 2
	}
	return msg + "\nhint: another process may own the listen port", 3
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("sitl-bridge"))
		return
	}
	setupLogging()
	monitoring.SetDebug(*debug)
	log.Print(version.String("sitl-bridge"))

	cfg, err := config.LoadBridgeConfig(*configPath)
	if err != nil {
		msg, code := startupFailure("load config", err)
		log.Print(msg)
		os.Exit(code)
	}

	world := sim.NewWorld(sim.Iris())

	var rec bridge.Recorder
	var flog *flightlog.Log
	var queue *bridge.RecorderQueue
	if *logPath != "" {
		flog, err = flightlog.Open(*logPath, flightlog.Options{Decimate: *decimate})
		if err != nil {
			log.Fatalf("failed to open flight log: %v", err)
		}
		defer flog.Close()
		if _, err := flog.StartSession(cfg.GetName(), len(cfg.Rotors)); err != nil {
			log.Fatalf("failed to start flight log session: %v", err)
		}
		rec = flog
		if *recordQueue > 0 {
			queue = bridge.NewRecorderQueue(cfg.GetName(), flog, *recordQueue)
			defer queue.Close()
			rec = queue
		}
	}

	b, err := bridge.New(cfg, bridge.Options{Model: world, IMU: world.IMU(), Recorder: rec})
	if err != nil {
		msg, code := startupFailure("start bridge", err)
		log.Print(msg)
		if queue != nil {
			queue.Close()
		}
		if flog != nil {
			flog.Close()
		}
		os.Exit(code)
	}
	defer b.Close()

	r := newRunner(world, b, *step, nil)
	r.speed = *speed
	r.maxSteps = *maxSteps
	if *statusEvery > 0 && *step > 0 {
		r.statusEvery = uint64(*statusEvery / *step)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listen != "" {
		mux := http.NewServeMux()
		b.AttachAdminRoutes(mux)
		r.attachAdminRoutes(mux)
		if flog != nil {
			if err := flog.AttachAdminRoutes(mux); err != nil {
				log.Printf("flight log debug routes disabled: %v", err)
			}
		}
		server := &http.Server{Addr: *listen, Handler: mux}

		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("debug server failed: %v", err)
				}
			}()
			log.Printf("debug pages at http://%s/debug/", *listen)

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
				server.Close()
			}
		}()
	}

	err = r.run(ctx)
	stop()
	wg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("simulation stopped: %v", err)
	}
	st := b.Status()
	log.Printf("[%s] stopped after %d ticks, %d telemetry packets sent", st.Name, st.Ticks, st.TelemetrySent)
	if queue != nil {
		queue.Close()
		qs := queue.Stats()
		log.Printf("[%s] flight log: %d entries written, %d dropped, %d failed", st.Name, qs.Written, qs.Dropped, qs.Errors)
	}
}
