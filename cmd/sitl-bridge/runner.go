package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge"
	"github.com/banshee-data/flight.bridge/internal/monitoring"
	"github.com/banshee-data/flight.bridge/internal/sim"
	"github.com/banshee-data/flight.bridge/internal/timeutil"
	"tailscale.com/tsweb"
)

// runner drives the world and the bridge in lockstep: every step the bridge
// ticks at the new simulation time and then the world integrates one step.
type runner struct {
	world  *sim.World
	bridge *bridge.Bridge
	clock  *timeutil.SimClock
	wall   timeutil.Clock

	// speed is the real-time factor; zero or less runs unpaced.
	speed float64
	// maxSteps stops the run after this many steps; zero runs until cancelled.
	maxSteps uint64
	// statusEvery logs a status line every this many steps; zero disables it.
	statusEvery uint64

	resets chan struct{}
}

func newRunner(world *sim.World, b *bridge.Bridge, step time.Duration, wall timeutil.Clock) *runner {
	if wall == nil {
		wall = timeutil.RealClock{}
	}
	return &runner{
		world:  world,
		bridge: b,
		clock:  timeutil.NewSimClock(step),
		wall:   wall,
		speed:  1,
		resets: make(chan struct{}, 1),
	}
}

// step advances simulation time by one step.
func (r *runner) step() bridge.TickResult {
	t := r.clock.Step()
	res := r.bridge.Tick(t)
	r.world.Step(r.clock.StepSize().Seconds())

	if r.statusEvery > 0 && r.clock.Steps()%r.statusEvery == 0 {
		st := r.bridge.Status()
		pose := r.world.WorldPose()
		monitoring.Logf("[%s] t=%v online=%v alt=%.2fm sent=%d", st.Name, t, st.Online, pose.Pos.Z, st.TelemetrySent)
	}
	return res
}

// reset puts the world and the simulation clock back to zero. The bridge
// sees simulation time go backwards and re-arms its timing gate.
func (r *runner) reset() {
	r.world.Reset()
	r.clock.Reset()
	monitoring.Logf("world reset")
}

// requestReset asks a running loop to reset before its next step.
func (r *runner) requestReset() {
	select {
	case r.resets <- struct{}{}:
	default:
	}
}

func (r *runner) done() bool {
	return r.maxSteps > 0 && r.clock.Steps() >= r.maxSteps
}

// run steps until ctx is cancelled or maxSteps is reached.
func (r *runner) run(ctx context.Context) error {
	if r.speed <= 0 {
		for !r.done() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.resets:
				r.reset()
			default:
				r.step()
			}
		}
		return nil
	}

	period := time.Duration(float64(r.clock.StepSize()) / r.speed)
	if period <= 0 {
		return fmt.Errorf("step %v at speed %g is too short to pace", r.clock.StepSize(), r.speed)
	}
	ticker := r.wall.NewTicker(period)
	defer ticker.Stop()
	for !r.done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.resets:
			r.reset()
		case <-ticker.C():
			r.step()
		}
	}
	return nil
}

// attachAdminRoutes adds a world reset button to the debug page.
func (r *runner) attachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("sim-reset", "Reset the simulated world (POST)", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		r.requestReset()
		fmt.Fprintln(w, "reset requested")
	})
}
