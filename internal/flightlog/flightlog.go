// Package flightlog stores bridge telemetry and link transitions in sqlite so
// a flight can be inspected after the fact, or live through tailsql.
package flightlog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge"
	"github.com/banshee-data/flight.bridge/internal/bridge/link"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("flightlog: no active session")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Options tunes what gets written.
type Options struct {
	// Decimate keeps every Nth sample. Values below 2 keep everything.
	Decimate int
}

// Log is a flight log database. It implements bridge.Recorder.
type Log struct {
	*sql.DB
	path string
	opts Options

	mu      sync.Mutex
	session uuid.UUID
	seen    uint64
	written uint64
}

var _ bridge.Recorder = (*Log)(nil)

// Open opens (or creates) the database at path and migrates it to the latest
// schema.
func Open(path string, opts Options) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	l := &Log{DB: db, path: path, opts: opts}
	if err := l.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the database path given to Open.
func (l *Log) Path() string { return l.path }

// StartSession begins a new session; subsequent samples are attributed to it.
func (l *Log) StartSession(name string, actuators int) (uuid.UUID, error) {
	id := uuid.New()
	if _, err := l.Exec(
		`INSERT INTO sessions (session_id, name, actuators) VALUES (?, ?, ?)`,
		id.String(), name, actuators,
	); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert session: %w", err)
	}

	l.mu.Lock()
	l.session = id
	l.seen, l.written = 0, 0
	l.mu.Unlock()

	log.Printf("flightlog: started session %s (%s, %d actuators)", id, name, actuators)
	return id, nil
}

// Session returns the active session id, or uuid.Nil.
func (l *Log) Session() uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// Record writes one telemetry sample, subject to decimation.
func (l *Log) Record(s bridge.Sample) error {
	l.mu.Lock()
	session := l.session
	if session == uuid.Nil {
		l.mu.Unlock()
		return ErrNoSession
	}
	l.seen++
	keep := l.opts.Decimate < 2 || (l.seen-1)%uint64(l.opts.Decimate) == 0
	l.mu.Unlock()
	if !keep {
		return nil
	}

	commands, err := json.Marshal(s.Commands)
	if err != nil {
		return err
	}
	forces, err := json.Marshal(s.Forces)
	if err != nil {
		return err
	}
	t := s.Telemetry
	_, err = l.Exec(`INSERT INTO frames (
			session_id, sim_time_ns,
			gyro_x, gyro_y, gyro_z, accel_x, accel_y, accel_z,
			quat_w, quat_x, quat_y, quat_z,
			vel_n, vel_e, vel_d, pos_n, pos_e, pos_d,
			commands_json, forces_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.String(), int64(s.SimTime),
		t.AngularVelocity[0], t.AngularVelocity[1], t.AngularVelocity[2],
		t.LinearAcceleration[0], t.LinearAcceleration[1], t.LinearAcceleration[2],
		t.Orientation[0], t.Orientation[1], t.Orientation[2], t.Orientation[3],
		t.Velocity[0], t.Velocity[1], t.Velocity[2],
		t.Position[0], t.Position[1], t.Position[2],
		string(commands), string(forces),
	)
	if err != nil {
		return fmt.Errorf("failed to insert frame: %w", err)
	}

	l.mu.Lock()
	l.written++
	l.mu.Unlock()
	return nil
}

// RecordTransition writes a link transition. NoTransition is ignored.
func (l *Log) RecordTransition(simTime time.Duration, t link.Transition) error {
	if t == link.NoTransition {
		return nil
	}
	session := l.Session()
	if session == uuid.Nil {
		return ErrNoSession
	}
	if _, err := l.Exec(
		`INSERT INTO transitions (session_id, sim_time_ns, kind) VALUES (?, ?, ?)`,
		session.String(), int64(simTime), t.String(),
	); err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}
	return nil
}

// Counts returns the samples seen and written in the active session.
func (l *Log) Counts() (seen, written uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen, l.written
}
