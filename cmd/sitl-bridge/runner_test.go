package main

import (
	"context"
	"encoding/binary"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge"
	"github.com/banshee-data/flight.bridge/internal/bridge/transport"
	"github.com/banshee-data/flight.bridge/internal/config"
	"github.com/banshee-data/flight.bridge/internal/monitoring"
	"github.com/banshee-data/flight.bridge/internal/sim"
	"github.com/banshee-data/flight.bridge/internal/testutil"
	"github.com/banshee-data/flight.bridge/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	monitoring.SetLogger(nil)
}

func newTestRunner(t *testing.T, wall timeutil.Clock) (*runner, *transport.MockFactory) {
	t.Helper()
	world := sim.NewWorld(sim.Iris())
	f := transport.NewMockFactory()
	b, err := bridge.New(config.DefaultBridgeConfig(4), bridge.Options{Model: world, IMU: world.IMU(), Factory: f})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return newRunner(world, b, time.Millisecond, wall), f
}

func command(v float32, n int) []byte {
	b := make([]byte, 0, 4*n)
	for i := 0; i < n; i++ {
		b = binary.NativeEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

func TestRunner_StepTicksThenIntegrates(t *testing.T) {
	r, f := newTestRunner(t, nil)

	f.In.Push(command(0.6, 4))
	res := r.step()
	assert.True(t, res.Ran)
	assert.True(t, res.Sent)
	assert.Equal(t, time.Millisecond, r.clock.Now())
	assert.Equal(t, 1, f.Out.SentCount())

	// The force applied during the tick acted on the first world step.
	j, ok := r.world.Joint("rotor_0")
	require.True(t, ok)
	assert.Greater(t, j.Velocity(0), 0.0)
}

func TestRunner_OfflineSendsNothing(t *testing.T) {
	r, f := newTestRunner(t, nil)
	r.speed = 0
	r.maxSteps = 5

	require.NoError(t, r.run(context.Background()))
	assert.Equal(t, uint64(5), r.clock.Steps())
	assert.Equal(t, 0, f.Out.SentCount())
	assert.True(t, r.world.OnGround())
}

func TestRunner_ResetRearmsBridge(t *testing.T) {
	r, f := newTestRunner(t, nil)
	for i := 0; i < 3; i++ {
		f.In.Push(command(0.6, 4))
		r.step()
	}
	require.Equal(t, 3, f.Out.SentCount())

	r.reset()
	assert.Equal(t, time.Duration(0), r.clock.Now())
	assert.True(t, r.world.OnGround())

	// 1ms after a reset is not after the 3ms the bridge last saw...
	f.In.Push(command(0.6, 4))
	res := r.step()
	assert.False(t, res.Ran)
	// ...but the gate was re-armed at 1ms, so 2ms runs.
	res = r.step()
	assert.True(t, res.Ran)
	assert.Equal(t, 4, f.Out.SentCount())
}

func TestRunner_PacedByWallClock(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	r, _ := newTestRunner(t, clock)
	r.speed = 2 // 1ms steps every 500µs
	r.maxSteps = 3

	done := make(chan error, 1)
	go func() { done <- r.run(context.Background()) }()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.Equal(t, uint64(3), r.clock.Steps())
			return
		case <-deadline:
			t.Fatal("paced run did not finish")
		default:
			clock.Advance(500 * time.Microsecond)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRunner_Cancelled(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	r.speed = 0
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.run(ctx), context.Canceled)
}

func TestRunner_ResetRoute(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	mux := http.NewServeMux()
	r.attachAdminRoutes(mux)

	w := testutil.ServeDebug(mux, http.MethodGet, "/debug/sim-reset")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Len(t, r.resets, 0)

	w = testutil.ServeDebug(mux, http.MethodPost, "/debug/sim-reset")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, r.resets, 1)

	// A second request while one is pending is coalesced.
	testutil.ServeDebug(mux, http.MethodPost, "/debug/sim-reset")
	assert.Len(t, r.resets, 1)
}
