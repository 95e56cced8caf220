package config

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/flight.bridge/internal/bridge/fault"
)

func TestEmptyBridgeConfig_Defaults(t *testing.T) {
	cfg := EmptyBridgeConfig()

	if cfg.GetName() != "bridge" {
		t.Errorf("GetName() = %q, want bridge", cfg.GetName())
	}
	if cfg.GetListenAddr() != "127.0.0.1" || cfg.GetListenPort() != 9002 {
		t.Errorf("listen = %s:%d, want 127.0.0.1:9002", cfg.GetListenAddr(), cfg.GetListenPort())
	}
	if cfg.GetFDMAddr() != "127.0.0.1" || cfg.GetFDMPort() != 9003 {
		t.Errorf("fdm = %s:%d, want 127.0.0.1:9003", cfg.GetFDMAddr(), cfg.GetFDMPort())
	}
	if cfg.GetConnectionTimeoutMaxCount() != 10 {
		t.Errorf("GetConnectionTimeoutMaxCount() = %d, want 10", cfg.GetConnectionTimeoutMaxCount())
	}
	if cfg.GetOfflineReceiveTimeout() != time.Millisecond {
		t.Errorf("GetOfflineReceiveTimeout() = %v, want 1ms", cfg.GetOfflineReceiveTimeout())
	}
	if cfg.GetOnlineReceiveTimeout() != time.Second {
		t.Errorf("GetOnlineReceiveTimeout() = %v, want 1s", cfg.GetOnlineReceiveTimeout())
	}
	if cfg.GetResetPIDOnDisconnect() {
		t.Error("GetResetPIDOnDisconnect() = true, want false")
	}
	if cfg.GetIMUName() != "imu_sensor" {
		t.Errorf("GetIMUName() = %q, want imu_sensor", cfg.GetIMUName())
	}
	if cfg.GetByteOrder() != binary.NativeEndian {
		t.Errorf("GetByteOrder() = %v, want native", cfg.GetByteOrder())
	}
	if g := cfg.GetGazeboToNED(); g.RPY[0] != math.Pi || g.XYZ != [3]float64{} {
		t.Errorf("GetGazeboToNED() = %+v", g)
	}
	if cfg.GetModelToAirplane() != cfg.GetGazeboToNED() {
		t.Error("GetModelToAirplane() should default to GetGazeboToNED()")
	}
}

func TestDefaultBridgeConfig(t *testing.T) {
	cfg := DefaultBridgeConfig(4)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(cfg.Rotors) != 4 {
		t.Fatalf("rotors = %d, want 4", len(cfg.Rotors))
	}
	if cfg.Rotors[0].GetMultiplier() != 1 || cfg.Rotors[1].GetMultiplier() != -1 {
		t.Errorf("multipliers = %v, %v", cfg.Rotors[0].GetMultiplier(), cfg.Rotors[1].GetMultiplier())
	}
	if cfg.Rotors[3].JointName != "rotor_3" {
		t.Errorf("joint name = %q", cfg.Rotors[3].JointName)
	}
}

func TestLoadBridgeConfig_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bridge.json")

	testJSON := `{
  "listen_port": 19002,
  "fdm_addr": "10.0.0.2",
  "connection_timeout_max_count": 3,
  "online_receive_timeout": "250ms",
  "byte_order": "little",
  "reset_pid_on_disconnect": true,
  "rotors": [
    {"joint_name": "front_right", "turning_direction": "cw", "vel_p_gain": 0.02},
    {"joint_name": "back_left", "turning_direction": 0.5, "p_gain": 0.3, "vel_p_gain": 0.02}
  ]
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadBridgeConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetListenPort() != 19002 {
		t.Errorf("GetListenPort() = %d, want 19002", cfg.GetListenPort())
	}
	if cfg.GetFDMAddr() != "10.0.0.2" {
		t.Errorf("GetFDMAddr() = %q", cfg.GetFDMAddr())
	}
	if cfg.GetConnectionTimeoutMaxCount() != 3 {
		t.Errorf("GetConnectionTimeoutMaxCount() = %d, want 3", cfg.GetConnectionTimeoutMaxCount())
	}
	if cfg.GetOnlineReceiveTimeout() != 250*time.Millisecond {
		t.Errorf("GetOnlineReceiveTimeout() = %v", cfg.GetOnlineReceiveTimeout())
	}
	if cfg.GetByteOrder() != binary.LittleEndian {
		t.Errorf("GetByteOrder() = %v, want little", cfg.GetByteOrder())
	}
	if !cfg.GetResetPIDOnDisconnect() {
		t.Error("GetResetPIDOnDisconnect() = false, want true")
	}

	if got := cfg.Rotors[0].GetMultiplier(); got != -1 {
		t.Errorf("rotor 0 multiplier = %v, want -1", got)
	}
	if got := cfg.Rotors[1].GetMultiplier(); got != 0.5 {
		t.Errorf("rotor 1 multiplier = %v, want 0.5", got)
	}
	if got := cfg.Rotors[0].GetPIDGains().P; got != 0.02 {
		t.Errorf("rotor 0 P = %v, want 0.02", got)
	}
	if got := cfg.Rotors[1].GetPIDGains().P; got != 0.3 {
		t.Errorf("rotor 1 P = %v, want 0.3 (p_gain wins over vel_p_gain)", got)
	}
}

func TestLoadBridgeConfig_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bridge.yaml")
	testYAML := `
name: hexa
fdm_port: 9100
model_to_airplane:
  xyz: [0, 0, 0.1]
  rpy: [0, 0, 1.5]
rotors:
  - joint_name: r0
    turning_direction: ccw
    type: effort
    use_force: false
  - joint_name: r1
    id: 7
    channel: 4
    multiplier: -2
    turning_direction: cw
`
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadBridgeConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetName() != "hexa" || cfg.GetFDMPort() != 9100 {
		t.Errorf("name/port = %s/%d", cfg.GetName(), cfg.GetFDMPort())
	}
	if m := cfg.GetModelToAirplane(); m.XYZ[2] != 0.1 || m.RPY[2] != 1.5 {
		t.Errorf("GetModelToAirplane() = %+v", m)
	}

	r0, r1 := cfg.Rotors[0], cfg.Rotors[1]
	if r0.GetType() != ControlEffort || r0.GetUseForce() {
		t.Errorf("rotor 0 type/use_force = %s/%v", r0.GetType(), r0.GetUseForce())
	}
	if r1.GetID(1) != 7 || r1.GetChannel(1) != 4 {
		t.Errorf("rotor 1 id/channel = %d/%d", r1.GetID(1), r1.GetChannel(1))
	}
	if r1.GetMultiplier() != -2 {
		t.Errorf("rotor 1 multiplier = %v, want -2 (multiplier overrides turning_direction)", r1.GetMultiplier())
	}
}

func TestLoadBridgeConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, content string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantMsg string
	}{
		{"wrong extension", write("bridge.txt", "{}"), "extension"},
		{"missing file", filepath.Join(tmpDir, "nope.json"), "stat"},
		{"bad json", write("bad.json", "{"), "parse config JSON"},
		{"bad yaml", write("bad.yaml", "rotors: [\n"), "parse config YAML"},
		{"bad direction", write("dir.json", `{"rotors":[{"joint_name":"a","turning_direction":"sideways"}]}`), "turning_direction"},
		{"no rotors", write("none.json", `{}`), "at least one rotor"},
		{"too large", write("big.json", strings.Repeat(" ", maxFileSize+1)), "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBridgeConfig(tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, fault.ErrConfiguration) {
				t.Errorf("error %v does not wrap ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *BridgeConfig { return DefaultBridgeConfig(2) }

	tests := []struct {
		name   string
		mutate func(c *BridgeConfig)
	}{
		{"listen port", func(c *BridgeConfig) { c.ListenPort = ptrInt(70000) }},
		{"fdm port zero", func(c *BridgeConfig) { c.FDMPort = ptrInt(0) }},
		{"negative timeout count", func(c *BridgeConfig) { c.ConnectionTimeoutMaxCount = ptrInt(-1) }},
		{"bad duration", func(c *BridgeConfig) { c.OnlineReceiveTimeout = ptrString("soon") }},
		{"negative duration", func(c *BridgeConfig) { c.OfflineReceiveTimeout = ptrString("-1ms") }},
		{"byte order", func(c *BridgeConfig) { c.ByteOrder = ptrString("pdp") }},
		{"missing joint", func(c *BridgeConfig) { c.Rotors[1].JointName = "" }},
		{"zero slowdown", func(c *BridgeConfig) { c.Rotors[0].Slowdown = ptrFloat64(0) }},
		{"bad type", func(c *BridgeConfig) { c.Rotors[0].Type = ptrString("thrust") }},
		{"zero sampling rate", func(c *BridgeConfig) { c.Rotors[0].SamplingRate = ptrFloat64(0) }},
		{"negative cutoff", func(c *BridgeConfig) { c.Rotors[0].FrequencyCutoff = ptrFloat64(-1) }},
		{"negative channel", func(c *BridgeConfig) { c.Rotors[0].Channel = ptrInt(-1) }},
		{"duplicate id", func(c *BridgeConfig) { c.Rotors[1].ID = ptrInt(0) }},
		{"too many rotors", func(c *BridgeConfig) { *c = *DefaultBridgeConfig(256) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if !errors.Is(err, fault.ErrConfiguration) {
				t.Errorf("Validate() = %v, want configuration error", err)
			}
		})
	}

	if err := DefaultBridgeConfig(255).Validate(); err != nil {
		t.Errorf("255 rotors should be accepted: %v", err)
	}
}

func TestGetPIDGains(t *testing.T) {
	var r RotorConfig
	got := r.GetPIDGains()
	want := PIDGains{P: 0.1, CmdMax: 1, CmdMin: -1}
	if got != want {
		t.Errorf("defaults = %+v, want %+v", got, want)
	}

	r.VelIGain = ptrFloat64(0.5)
	r.VelIMax = ptrFloat64(2)
	r.IMax = ptrFloat64(3)
	got = r.GetPIDGains()
	if got.I != 0.5 || got.IMax != 3 {
		t.Errorf("resolved = %+v", got)
	}
}

func TestRotorDefaults(t *testing.T) {
	var r RotorConfig
	if r.GetMaxAngularRate() != 838 {
		t.Errorf("GetMaxAngularRate() = %v", r.GetMaxAngularRate())
	}
	if r.GetSlowdown() != 1 {
		t.Errorf("GetSlowdown() = %v", r.GetSlowdown())
	}
	if r.GetFrequencyCutoff() != 5 || r.GetSamplingRate() != 0.2 {
		t.Errorf("filter = %v/%v", r.GetFrequencyCutoff(), r.GetSamplingRate())
	}
	if r.GetMultiplier() != 1 || r.HasDirection() {
		t.Errorf("multiplier = %v, HasDirection = %v", r.GetMultiplier(), r.HasDirection())
	}
	if !r.GetUseForce() || r.GetType() != ControlVelocity || r.GetOffset() != 0 {
		t.Errorf("use_force/type/offset = %v/%s/%v", r.GetUseForce(), r.GetType(), r.GetOffset())
	}
	if r.GetID(3) != 3 || r.GetChannel(3) != 3 {
		t.Errorf("id/channel = %d/%d", r.GetID(3), r.GetChannel(3))
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if len(cfg.Rotors) != 4 {
		t.Fatalf("rotors = %d, want 4", len(cfg.Rotors))
	}
	if cfg.Rotors[2].GetMultiplier() != -1 || cfg.Rotors[2].GetSlowdown() != 10 {
		t.Errorf("rotor 2 = %+v", cfg.Rotors[2])
	}
}
