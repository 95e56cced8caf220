package bridge

import (
	"slices"

	"github.com/banshee-data/flight.bridge/internal/bridge/link"
)

// RotorStatus is a snapshot of one rotor.
type RotorStatus struct {
	ID            int     `json:"id"`
	Channel       int     `json:"channel"`
	Joint         string  `json:"joint"`
	Type          string  `json:"type"`
	CommandedRate float64 `json:"commanded_rate"`
	Target        float64 `json:"target"`
	Measured      float64 `json:"measured"`
	Filtered      float64 `json:"filtered"`
	Force         float64 `json:"force"`
	Integral      float64 `json:"integral"`
}

// Status is a point-in-time snapshot of a Bridge.
type Status struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Online          bool          `json:"online"`
	TimeoutCount    int           `json:"timeout_count"`
	TimeoutMaxCount int           `json:"timeout_max_count"`
	LastUpdate      float64       `json:"last_update_s"`
	Ticks           uint64        `json:"ticks"`
	Link            link.Stats    `json:"link"`
	TelemetrySent   uint64        `json:"telemetry_sent"`
	TelemetryFailed uint64        `json:"telemetry_failed"`
	RecorderErrors  uint64        `json:"recorder_errors"`
	Listen          string        `json:"listen"`
	Closed          bool          `json:"closed"`
	Rotors          []RotorStatus `json:"rotors"`
}

// Status returns the snapshot published by the last Tick. It does not wait
// for a Tick in progress.
func (b *Bridge) Status() Status {
	b.statusMu.RLock()
	defer b.statusMu.RUnlock()
	s := b.status
	s.Rotors = slices.Clone(s.Rotors)
	return s
}

// publish replaces the status snapshot. Callers hold b.mu or own b.
func (b *Bridge) publish() {
	s := b.snapshot()
	b.statusMu.Lock()
	b.status = s
	b.statusMu.Unlock()
}

func (b *Bridge) snapshot() Status {
	sent, failed := b.enc.Counters()
	s := Status{
		ID:              b.id.String(),
		Name:            b.name,
		Online:          b.link.Online(),
		TimeoutCount:    b.link.TimeoutCount(),
		TimeoutMaxCount: b.link.TimeoutMaxCount(),
		LastUpdate:      b.lastUpdate.Seconds(),
		Ticks:           b.ticks,
		Link:            b.link.Stats(),
		TelemetrySent:   sent,
		TelemetryFailed: failed,
		RecorderErrors:  b.recErrors,
		Closed:          b.closed,
		Rotors:          make([]RotorStatus, len(b.rotors)),
	}
	if addr := b.in.LocalAddr(); addr != nil {
		s.Listen = addr.String()
	}
	for i, r := range b.rotors {
		s.Rotors[i] = RotorStatus{
			ID:            r.ID,
			Channel:       r.Channel,
			Joint:         r.JointName,
			Type:          r.Type.String(),
			CommandedRate: r.CommandedRate,
			Target:        r.Target(),
			Measured:      r.Measured,
			Filtered:      r.Filtered,
			Force:         r.Force,
			Integral:      r.PID.Integral(),
		}
	}
	return s
}
