package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "engine.toml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
[engine]
fixed_step = 0.02
max_catch_up_steps = 8
frame_interval = "10ms"
workers = 4

[physics]
gravity = [0.0, -1.62, 0.0]

[render]
enabled = false

[telemetry]
enabled = true
flush_every = 30

[logging]
format = "json"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.FixedStep != 0.02 || cfg.Engine.MaxCatchUpSteps != 8 || cfg.Engine.Workers != 4 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.FrameInterval != 10*time.Millisecond {
		t.Errorf("frame_interval = %v", cfg.Engine.FrameInterval)
	}
	if cfg.Physics.Gravity != [3]float64{0, -1.62, 0} {
		t.Errorf("gravity = %v", cfg.Physics.Gravity)
	}
	if cfg.Render.Enabled || cfg.Render.Scale != 2 {
		t.Errorf("render = %+v", cfg.Render)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.FlushEvery != 30 || cfg.Telemetry.MaxConns != 4 {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
	// untouched keys keep their defaults
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Physics.LayersFile != "data/yaml/layers.yaml" || cfg.Scripting.Dir != "scripts" {
		t.Error("defaults lost")
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name, body, want string
	}{
		{"syntax", "[engine\n", "parse config"},
		{"zero step", "[engine]\nfixed_step = 0.0\n", "fixed_step"},
		{"negative cap", "[engine]\nmax_catch_up_steps = -1\n", "max_catch_up_steps"},
		{"no workers", "[engine]\nworkers = 0\n", "workers"},
		{"flush", "[telemetry]\nenabled = true\nflush_every = 0\n", "flush_every"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, c.body))
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Errorf("err = %v, want mention of %q", err, c.want)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().validate(); err != nil {
		t.Fatal(err)
	}
	if Default() == Default() {
		t.Error("Default shares state between calls")
	}
}
