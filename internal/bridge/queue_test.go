package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/link"
	"github.com/banshee-data/flight.bridge/internal/bridge/physics"
	"github.com/banshee-data/flight.bridge/internal/bridge/transport"
	"github.com/banshee-data/flight.bridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowRecorder blocks every call until release is closed.
type slowRecorder struct {
	entered chan struct{}
	release chan struct{}
	err     error

	mu          sync.Mutex
	times       []time.Duration
	transitions []link.Transition
}

func newSlowRecorder() *slowRecorder {
	return &slowRecorder{entered: make(chan struct{}, 64), release: make(chan struct{})}
}

func (r *slowRecorder) Record(s Sample) error {
	r.entered <- struct{}{}
	<-r.release
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, s.SimTime)
	return r.err
}

func (r *slowRecorder) RecordTransition(_ time.Duration, t link.Transition) error {
	r.entered <- struct{}{}
	<-r.release
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
	return r.err
}

func (r *slowRecorder) recorded() ([]time.Duration, []link.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.times, r.transitions
}

func TestRecorderQueue_DropsWhenFull(t *testing.T) {
	slow := newSlowRecorder()
	q := NewRecorderQueue("test", slow, 2)

	require.NoError(t, q.Record(Sample{SimTime: ms(1)}))
	<-slow.entered // worker holds the first sample

	require.NoError(t, q.Record(Sample{SimTime: ms(2)}))
	require.NoError(t, q.Record(Sample{SimTime: ms(3)}))
	assert.ErrorIs(t, q.Record(Sample{SimTime: ms(4)}), ErrQueueFull)

	close(slow.release)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	times, _ := slow.recorded()
	assert.Equal(t, []time.Duration{ms(1), ms(2), ms(3)}, times)
	assert.Equal(t, QueueStats{Written: 3, Dropped: 1}, q.Stats())
	assert.ErrorIs(t, q.Record(Sample{SimTime: ms(5)}), ErrQueueClosed)
}

func TestRecorderQueue_CountsRecorderErrors(t *testing.T) {
	slow := newSlowRecorder()
	slow.err = errors.New("disk full")
	close(slow.release)
	q := NewRecorderQueue("test", slow, 4)

	require.NoError(t, q.Record(Sample{SimTime: ms(1)}))
	require.NoError(t, q.RecordTransition(ms(1), link.WentOnline))
	require.NoError(t, q.Close())

	assert.Equal(t, QueueStats{Errors: 2}, q.Stats())
}

func TestTick_QueuedRecorderDoesNotStall(t *testing.T) {
	slow := newSlowRecorder()
	q := NewRecorderQueue("test", slow, 8)

	cfg := config.DefaultBridgeConfig(1)
	f := transport.NewMockFactory()
	b, err := New(cfg, Options{
		Model:    physics.NewMockModel(cfg.Rotors[0].JointName),
		IMU:      &physics.MockIMU{},
		Factory:  f,
		Recorder: q,
	})
	require.NoError(t, err)
	defer b.Close()

	// The recorder is blocked for all three ticks.
	for i := 1; i <= 3; i++ {
		f.In.Push(command(0.1))
		require.True(t, b.Tick(ms(i)).Sent, "tick %d", i)
	}
	assert.Zero(t, b.Status().RecorderErrors)

	close(slow.release)
	require.NoError(t, q.Close())
	times, transitions := slow.recorded()
	assert.Equal(t, []time.Duration{ms(1), ms(2), ms(3)}, times)
	assert.Equal(t, []link.Transition{link.WentOnline}, transitions)
}
