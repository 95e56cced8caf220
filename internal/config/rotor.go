package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/flight.bridge/internal/bridge/fault"
	"gopkg.in/yaml.v3"
)

// Control types accepted by the type key.
const (
	ControlVelocity = "velocity"
	ControlPosition = "position"
	ControlEffort   = "effort"
)

// RotorConfig describes one actuator.
type RotorConfig struct {
	ID        *int   `json:"id,omitempty" yaml:"id,omitempty"`
	Channel   *int   `json:"channel,omitempty" yaml:"channel,omitempty"`
	JointName string `json:"joint_name" yaml:"joint_name"`

	Type     *string `json:"type,omitempty" yaml:"type,omitempty"`
	UseForce *bool   `json:"use_force,omitempty" yaml:"use_force,omitempty"`

	TurningDirection *TurningDirection `json:"turning_direction,omitempty" yaml:"turning_direction,omitempty"`
	Multiplier       *float64          `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	Offset           *float64          `json:"offset,omitempty" yaml:"offset,omitempty"`

	MaxAngularRate *float64 `json:"max_angular_rate,omitempty" yaml:"max_angular_rate,omitempty"`
	Slowdown       *float64 `json:"rotor_velocity_slowdown_sim,omitempty" yaml:"rotor_velocity_slowdown_sim,omitempty"`

	FrequencyCutoff *float64 `json:"frequency_cutoff,omitempty" yaml:"frequency_cutoff,omitempty"`
	SamplingRate    *float64 `json:"sampling_rate,omitempty" yaml:"sampling_rate,omitempty"`

	// Legacy velocity PID keys.
	VelPGain  *float64 `json:"vel_p_gain,omitempty" yaml:"vel_p_gain,omitempty"`
	VelIGain  *float64 `json:"vel_i_gain,omitempty" yaml:"vel_i_gain,omitempty"`
	VelDGain  *float64 `json:"vel_d_gain,omitempty" yaml:"vel_d_gain,omitempty"`
	VelIMax   *float64 `json:"vel_i_max,omitempty" yaml:"vel_i_max,omitempty"`
	VelIMin   *float64 `json:"vel_i_min,omitempty" yaml:"vel_i_min,omitempty"`
	VelCmdMax *float64 `json:"vel_cmd_max,omitempty" yaml:"vel_cmd_max,omitempty"`
	VelCmdMin *float64 `json:"vel_cmd_min,omitempty" yaml:"vel_cmd_min,omitempty"`

	// PID keys; take precedence over the vel_* keys.
	PGain  *float64 `json:"p_gain,omitempty" yaml:"p_gain,omitempty"`
	IGain  *float64 `json:"i_gain,omitempty" yaml:"i_gain,omitempty"`
	DGain  *float64 `json:"d_gain,omitempty" yaml:"d_gain,omitempty"`
	IMax   *float64 `json:"i_max,omitempty" yaml:"i_max,omitempty"`
	IMin   *float64 `json:"i_min,omitempty" yaml:"i_min,omitempty"`
	CmdMax *float64 `json:"cmd_max,omitempty" yaml:"cmd_max,omitempty"`
	CmdMin *float64 `json:"cmd_min,omitempty" yaml:"cmd_min,omitempty"`
}

// PIDGains is the resolved gain set of one rotor.
type PIDGains struct {
	P, I, D    float64
	IMax, IMin float64
	CmdMax     float64
	CmdMin     float64
}

// TurningDirection is a direction sign. It decodes from "cw" (-1), "ccw"
// (+1) or any number.
type TurningDirection float64

func parseTurningDirection(s string) (TurningDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cw":
		return -1, nil
	case "ccw":
		return 1, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("turning_direction must be cw, ccw or a number, got %q", s)
	}
	return TurningDirection(v), nil
}

// UnmarshalJSON accepts a string or a number.
func (d *TurningDirection) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := parseTurningDirection(s)
		if err != nil {
			return err
		}
		*d = v
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("turning_direction must be cw, ccw or a number: %w", err)
	}
	*d = TurningDirection(f)
	return nil
}

// UnmarshalYAML accepts a scalar cw, ccw or number.
func (d *TurningDirection) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("turning_direction must be a scalar, line %d", n.Line)
	}
	v, err := parseTurningDirection(n.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Validate checks one rotor entry.
func (r *RotorConfig) Validate() error {
	if r.JointName == "" {
		return fmt.Errorf("%w: joint_name is required", fault.ErrConfiguration)
	}
	switch r.GetType() {
	case ControlVelocity, ControlPosition, ControlEffort:
	default:
		return fmt.Errorf("%w: unknown control type %q", fault.ErrConfiguration, r.GetType())
	}
	if r.Slowdown != nil && *r.Slowdown == 0 {
		return fmt.Errorf("%w: rotor_velocity_slowdown_sim must be non-zero", fault.ErrConfiguration)
	}
	if r.SamplingRate != nil && *r.SamplingRate <= 0 {
		return fmt.Errorf("%w: sampling_rate must be positive, got %f", fault.ErrConfiguration, *r.SamplingRate)
	}
	if r.FrequencyCutoff != nil && *r.FrequencyCutoff < 0 {
		return fmt.Errorf("%w: frequency_cutoff must be non-negative, got %f", fault.ErrConfiguration, *r.FrequencyCutoff)
	}
	if r.ID != nil && *r.ID < 0 {
		return fmt.Errorf("%w: id must be non-negative, got %d", fault.ErrConfiguration, *r.ID)
	}
	if r.Channel != nil && *r.Channel < 0 {
		return fmt.Errorf("%w: channel must be non-negative, got %d", fault.ErrConfiguration, *r.Channel)
	}
	return nil
}

// GetID returns the configured id, or index when unset.
func (r *RotorConfig) GetID(index int) int {
	if r.ID == nil {
		return index
	}
	return *r.ID
}

// GetChannel returns the command packet slot, or index when unset.
func (r *RotorConfig) GetChannel(index int) int {
	if r.Channel == nil {
		return index
	}
	return *r.Channel
}

// GetType returns the control type or the default.
func (r *RotorConfig) GetType() string {
	if r.Type == nil || *r.Type == "" {
		return ControlVelocity
	}
	return strings.ToLower(*r.Type)
}

// GetUseForce returns the use_force value or the default.
func (r *RotorConfig) GetUseForce() bool {
	if r.UseForce == nil {
		return true
	}
	return *r.UseForce
}

// HasDirection reports whether multiplier or turning_direction was given.
func (r *RotorConfig) HasDirection() bool {
	return r.Multiplier != nil || r.TurningDirection != nil
}

// GetMultiplier returns multiplier, then turning_direction, then 1.
func (r *RotorConfig) GetMultiplier() float64 {
	if r.Multiplier != nil {
		return *r.Multiplier
	}
	if r.TurningDirection != nil {
		return float64(*r.TurningDirection)
	}
	return 1
}

// GetOffset returns the offset value or the default.
func (r *RotorConfig) GetOffset() float64 {
	if r.Offset == nil {
		return 0
	}
	return *r.Offset
}

// GetMaxAngularRate returns the max_angular_rate value or the default.
func (r *RotorConfig) GetMaxAngularRate() float64 {
	if r.MaxAngularRate == nil {
		return 838
	}
	return *r.MaxAngularRate
}

// GetSlowdown returns the rotor_velocity_slowdown_sim value or the default.
func (r *RotorConfig) GetSlowdown() float64 {
	if r.Slowdown == nil {
		return 1
	}
	return *r.Slowdown
}

// GetFrequencyCutoff returns the frequency_cutoff value or the default.
func (r *RotorConfig) GetFrequencyCutoff() float64 {
	if r.FrequencyCutoff == nil {
		return 5
	}
	return *r.FrequencyCutoff
}

// GetSamplingRate returns the sampling_rate value or the default.
func (r *RotorConfig) GetSamplingRate() float64 {
	if r.SamplingRate == nil {
		return 0.2
	}
	return *r.SamplingRate
}

// GetPIDGains resolves the gain set: p_gain style keys first, then vel_*
// keys, then defaults p=0.1 i=0 d=0 imax=0 imin=0 cmd in [-1, 1].
func (r *RotorConfig) GetPIDGains() PIDGains {
	pick := func(primary, legacy *float64, def float64) float64 {
		if primary != nil {
			return *primary
		}
		if legacy != nil {
			return *legacy
		}
		return def
	}
	return PIDGains{
		P:      pick(r.PGain, r.VelPGain, 0.1),
		I:      pick(r.IGain, r.VelIGain, 0),
		D:      pick(r.DGain, r.VelDGain, 0),
		IMax:   pick(r.IMax, r.VelIMax, 0),
		IMin:   pick(r.IMin, r.VelIMin, 0),
		CmdMax: pick(r.CmdMax, r.VelCmdMax, 1),
		CmdMin: pick(r.CmdMin, r.VelCmdMin, -1),
	}
}
