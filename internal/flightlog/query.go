package flightlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Session is one recorded bridge run.
type Session struct {
	ID        string    `json:"session_id"`
	Name      string    `json:"name"`
	Actuators int       `json:"actuators"`
	StartedAt time.Time `json:"started_at"`
	Frames    int       `json:"frames"`
}

// Frame is one stored telemetry sample.
type Frame struct {
	SimTime            time.Duration `json:"sim_time"`
	AngularVelocity    [3]float64    `json:"angular_velocity"`
	LinearAcceleration [3]float64    `json:"linear_acceleration"`
	Orientation        [4]float64    `json:"orientation"`
	Velocity           [3]float64    `json:"velocity"`
	Position           [3]float64    `json:"position"`
	Commands           []float64     `json:"commands"`
	Forces             []float64     `json:"forces"`
}

// Altitude is the height above the reference, positive up.
func (f Frame) Altitude() float64 { return -f.Position[2] }

// Transition is one stored link transition.
type Transition struct {
	SimTime time.Duration `json:"sim_time"`
	Kind    string        `json:"kind"`
}

// Sessions lists sessions, newest first.
func (l *Log) Sessions() ([]Session, error) {
	rows, err := l.Query(`SELECT s.session_id, s.name, s.actuators, s.started_at,
			(SELECT COUNT(*) FROM frames f WHERE f.session_id = s.session_id)
		FROM sessions s ORDER BY s.started_at DESC, s.rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Name, &s.Actuators, &s.StartedAt, &s.Frames); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// LatestSession returns the most recently started session.
func (l *Log) LatestSession() (Session, error) {
	sessions, err := l.Sessions()
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, sql.ErrNoRows
	}
	return sessions[0], nil
}

// Frames returns up to limit frames of a session in simulation-time order.
// A limit of zero or less returns all frames.
func (l *Log) Frames(sessionID string, limit int) ([]Frame, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.Query(`SELECT sim_time_ns,
			gyro_x, gyro_y, gyro_z, accel_x, accel_y, accel_z,
			quat_w, quat_x, quat_y, quat_z,
			vel_n, vel_e, vel_d, pos_n, pos_e, pos_d,
			commands_json, forces_json
		FROM frames WHERE session_id = ? ORDER BY sim_time_ns, frame_id LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var (
			f                Frame
			simTime          int64
			commands, forces sql.NullString
		)
		if err := rows.Scan(&simTime,
			&f.AngularVelocity[0], &f.AngularVelocity[1], &f.AngularVelocity[2],
			&f.LinearAcceleration[0], &f.LinearAcceleration[1], &f.LinearAcceleration[2],
			&f.Orientation[0], &f.Orientation[1], &f.Orientation[2], &f.Orientation[3],
			&f.Velocity[0], &f.Velocity[1], &f.Velocity[2],
			&f.Position[0], &f.Position[1], &f.Position[2],
			&commands, &forces,
		); err != nil {
			return nil, err
		}
		f.SimTime = time.Duration(simTime)
		if err := unmarshalFloats(commands, &f.Commands); err != nil {
			return nil, fmt.Errorf("frame at %v: commands: %w", f.SimTime, err)
		}
		if err := unmarshalFloats(forces, &f.Forces); err != nil {
			return nil, fmt.Errorf("frame at %v: forces: %w", f.SimTime, err)
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// Transitions returns the link transitions of a session in order.
func (l *Log) Transitions(sessionID string) ([]Transition, error) {
	rows, err := l.Query(`SELECT sim_time_ns, kind FROM transitions
		WHERE session_id = ? ORDER BY sim_time_ns, transition_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			t       Transition
			simTime int64
		)
		if err := rows.Scan(&simTime, &t.Kind); err != nil {
			return nil, err
		}
		t.SimTime = time.Duration(simTime)
		out = append(out, t)
	}
	return out, rows.Err()
}

func unmarshalFloats(s sql.NullString, dst *[]float64) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}
