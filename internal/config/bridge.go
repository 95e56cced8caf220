// Package config loads the bridge configuration. Every optional field is a
// pointer so an omitted key can be told apart from a zero value; the Get*
// accessors return the documented default for omitted keys.
package config

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/fault"
	"github.com/banshee-data/flight.bridge/internal/bridge/wire"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the default quadcopter configuration.
const DefaultConfigPath = "config/bridge.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// BridgeConfig is the root configuration of one bridge instance.
type BridgeConfig struct {
	Name *string `json:"name,omitempty" yaml:"name,omitempty"`

	// Transport
	ListenAddr *string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	ListenPort *int    `json:"listen_port,omitempty" yaml:"listen_port,omitempty"`
	FDMAddr    *string `json:"fdm_addr,omitempty" yaml:"fdm_addr,omitempty"`
	FDMPort    *int    `json:"fdm_port,omitempty" yaml:"fdm_port,omitempty"`
	ByteOrder  *string `json:"byte_order,omitempty" yaml:"byte_order,omitempty"` // native, little or big

	// Liveness
	ConnectionTimeoutMaxCount *int    `json:"connection_timeout_max_count,omitempty" yaml:"connection_timeout_max_count,omitempty"`
	OfflineReceiveTimeout     *string `json:"offline_receive_timeout,omitempty" yaml:"offline_receive_timeout,omitempty"` // duration string like "1ms"
	OnlineReceiveTimeout      *string `json:"online_receive_timeout,omitempty" yaml:"online_receive_timeout,omitempty"`
	ResetPIDOnDisconnect      *bool   `json:"reset_pid_on_disconnect,omitempty" yaml:"reset_pid_on_disconnect,omitempty"`

	// Sensors and frames
	IMUName         *string     `json:"imu_name,omitempty" yaml:"imu_name,omitempty"`
	GazeboToNED     *PoseConfig `json:"gazebo_to_ned,omitempty" yaml:"gazebo_to_ned,omitempty"`
	ModelToAirplane *PoseConfig `json:"model_to_airplane,omitempty" yaml:"model_to_airplane,omitempty"`

	Rotors []RotorConfig `json:"rotors" yaml:"rotors"`
}

// PoseConfig is a position and roll/pitch/yaw in radians.
type PoseConfig struct {
	XYZ [3]float64 `json:"xyz" yaml:"xyz"`
	RPY [3]float64 `json:"rpy" yaml:"rpy"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyBridgeConfig returns a BridgeConfig with all fields unset.
func EmptyBridgeConfig() *BridgeConfig {
	return &BridgeConfig{}
}

// DefaultBridgeConfig returns a config with every default filled in and n
// rotors named rotor_0 … rotor_{n-1}, alternating ccw and cw.
func DefaultBridgeConfig(n int) *BridgeConfig {
	c := &BridgeConfig{
		Name:                      ptrString("iris"),
		ListenAddr:                ptrString("127.0.0.1"),
		ListenPort:                ptrInt(9002),
		FDMAddr:                   ptrString("127.0.0.1"),
		FDMPort:                   ptrInt(9003),
		ByteOrder:                 ptrString("native"),
		ConnectionTimeoutMaxCount: ptrInt(10),
		OfflineReceiveTimeout:     ptrString("1ms"),
		OnlineReceiveTimeout:      ptrString("1s"),
		ResetPIDOnDisconnect:      ptrBool(false),
		IMUName:                   ptrString("imu_sensor"),
	}
	for i := 0; i < n; i++ {
		dir := TurningDirection(1)
		if i%2 == 1 {
			dir = -1
		}
		c.Rotors = append(c.Rotors, RotorConfig{
			ID:               ptrInt(i),
			JointName:        fmt.Sprintf("rotor_%d", i),
			TurningDirection: &dir,
		})
	}
	return c
}

// LoadBridgeConfig loads a BridgeConfig from a .json, .yaml or .yml file.
// Fields omitted from the file fall back to the Get* defaults.
func LoadBridgeConfig(path string) (*BridgeConfig, error) {
	cleanPath := filepath.Clean(path)
	format := strings.TrimPrefix(filepath.Ext(cleanPath), ".")
	switch format {
	case "json", "yaml", "yml":
	default:
		return nil, fmt.Errorf("%w: config file must have .json, .yaml or .yml extension, got %q", fault.ErrConfiguration, filepath.Ext(cleanPath))
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat config file: %v", fault.ErrConfiguration, err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("%w: config file too large: %d bytes (max %d)", fault.ErrConfiguration, fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", fault.ErrConfiguration, err)
	}
	return ParseBridgeConfig(data, format)
}

// ParseBridgeConfig parses and validates data in the given format.
func ParseBridgeConfig(data []byte, format string) (*BridgeConfig, error) {
	cfg := EmptyBridgeConfig()
	switch format {
	case "json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config JSON: %v", fault.ErrConfiguration, err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config YAML: %v", fault.ErrConfiguration, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown config format %q", fault.ErrConfiguration, format)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching parent
// directories. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *BridgeConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/bridge/*
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadBridgeConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. All errors wrap
// fault.ErrConfiguration.
func (c *BridgeConfig) Validate() error {
	if c.ListenPort != nil && (*c.ListenPort < 0 || *c.ListenPort > 65535) {
		return fmt.Errorf("%w: listen_port out of range: %d", fault.ErrConfiguration, *c.ListenPort)
	}
	if c.FDMPort != nil && (*c.FDMPort <= 0 || *c.FDMPort > 65535) {
		return fmt.Errorf("%w: fdm_port out of range: %d", fault.ErrConfiguration, *c.FDMPort)
	}
	if c.ConnectionTimeoutMaxCount != nil && *c.ConnectionTimeoutMaxCount < 0 {
		return fmt.Errorf("%w: connection_timeout_max_count must be non-negative, got %d", fault.ErrConfiguration, *c.ConnectionTimeoutMaxCount)
	}
	for name, v := range map[string]*string{
		"offline_receive_timeout": c.OfflineReceiveTimeout,
		"online_receive_timeout":  c.OnlineReceiveTimeout,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("%w: invalid %s '%s': %v", fault.ErrConfiguration, name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %s", fault.ErrConfiguration, name, d)
		}
	}
	if c.ByteOrder != nil {
		if _, err := wire.ParseByteOrder(*c.ByteOrder); err != nil {
			return err
		}
	}

	if len(c.Rotors) == 0 {
		return fmt.Errorf("%w: at least one rotor is required", fault.ErrConfiguration)
	}
	if len(c.Rotors) > wire.MaxActuators {
		return fmt.Errorf("%w: %d rotors configured, command packet holds %d", fault.ErrConfiguration, len(c.Rotors), wire.MaxActuators)
	}
	seen := make(map[int]bool, len(c.Rotors))
	for i := range c.Rotors {
		r := &c.Rotors[i]
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rotor %d: %w", i, err)
		}
		id := r.GetID(i)
		if seen[id] {
			return fmt.Errorf("%w: rotor %d: duplicate id %d", fault.ErrConfiguration, i, id)
		}
		seen[id] = true
	}
	return nil
}

// GetName returns the instance name used as a log prefix.
func (c *BridgeConfig) GetName() string {
	if c.Name == nil || *c.Name == "" {
		return "bridge"
	}
	return *c.Name
}

// GetListenAddr returns the listen_addr value or the default.
func (c *BridgeConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return "127.0.0.1"
	}
	return *c.ListenAddr
}

// GetListenPort returns the listen_port value or the default.
func (c *BridgeConfig) GetListenPort() int {
	if c.ListenPort == nil {
		return 9002
	}
	return *c.ListenPort
}

// GetFDMAddr returns the fdm_addr value or the default.
func (c *BridgeConfig) GetFDMAddr() string {
	if c.FDMAddr == nil || *c.FDMAddr == "" {
		return "127.0.0.1"
	}
	return *c.FDMAddr
}

// GetFDMPort returns the fdm_port value or the default.
func (c *BridgeConfig) GetFDMPort() int {
	if c.FDMPort == nil {
		return 9003
	}
	return *c.FDMPort
}

// GetByteOrder returns the wire byte order. Invalid names fall back to the
// host order; Validate reports them.
func (c *BridgeConfig) GetByteOrder() binary.ByteOrder {
	if c.ByteOrder == nil {
		return binary.NativeEndian
	}
	o, err := wire.ParseByteOrder(*c.ByteOrder)
	if err != nil {
		return binary.NativeEndian
	}
	return o
}

// GetConnectionTimeoutMaxCount returns the connection_timeout_max_count value or the default.
func (c *BridgeConfig) GetConnectionTimeoutMaxCount() int {
	if c.ConnectionTimeoutMaxCount == nil {
		return 10
	}
	return *c.ConnectionTimeoutMaxCount
}

// GetOfflineReceiveTimeout parses and returns the offline receive wait.
func (c *BridgeConfig) GetOfflineReceiveTimeout() time.Duration {
	return parseDurationOr(c.OfflineReceiveTimeout, time.Millisecond)
}

// GetOnlineReceiveTimeout parses and returns the online receive wait.
func (c *BridgeConfig) GetOnlineReceiveTimeout() time.Duration {
	return parseDurationOr(c.OnlineReceiveTimeout, time.Second)
}

// GetResetPIDOnDisconnect returns the reset_pid_on_disconnect value or the default.
func (c *BridgeConfig) GetResetPIDOnDisconnect() bool {
	if c.ResetPIDOnDisconnect == nil {
		return false // default: integrators survive a disconnect
	}
	return *c.ResetPIDOnDisconnect
}

// GetIMUName returns the imu_name value or the default.
func (c *BridgeConfig) GetIMUName() string {
	if c.IMUName == nil || *c.IMUName == "" {
		return "imu_sensor"
	}
	return *c.IMUName
}

// GetGazeboToNED returns the reference pose removed from every vehicle
// pose. Defaults to a pi roll.
func (c *BridgeConfig) GetGazeboToNED() PoseConfig {
	if c.GazeboToNED == nil {
		return PoseConfig{RPY: [3]float64{math.Pi, 0, 0}}
	}
	return *c.GazeboToNED
}

// GetModelToAirplane returns the body offset composed with the vehicle
// pose. Defaults to GetGazeboToNED.
func (c *BridgeConfig) GetModelToAirplane() PoseConfig {
	if c.ModelToAirplane == nil {
		return c.GetGazeboToNED()
	}
	return *c.ModelToAirplane
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
