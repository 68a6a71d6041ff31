package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigEnv(t *testing.T) {
	var out Config

	_ = os.Setenv("SOLIVE_LIVE_FANOUT", "3")
	defer func() { _ = os.Unsetenv("SOLIVE_LIVE_FANOUT") }()
	_ = os.Setenv("SOLIVE_MEETING_GLOBALPRODUCERBROADCAST", "true")
	defer func() { _ = os.Unsetenv("SOLIVE_MEETING_GLOBALPRODUCERBROADCAST") }()

	if _, err := LoadConfig(&out, ""); err != nil {
		t.Fatal(err)
	}

	if out.Live.FanOut != 3 {
		t.Errorf("fan-out %v is not 3", out.Live.FanOut)
	}
	if !out.Meeting.GlobalProducerBroadcast {
		t.Errorf("global producer broadcast should be enabled from env")
	}
	if len(out.Webrtc.GetCodecs()) != 2 {
		t.Errorf("expected two router codecs, got %v", out.Webrtc.GetCodecs())
	}
}

func TestConfigCustomFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.yaml")
	data := []byte("live:\n  fanOut: 2\nmeeting:\n  engineTimeout: 3s\nstorage:\n  path: x.db\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatal(err)
	}

	var out Config
	if _, err := LoadConfig(&out, file); err != nil {
		t.Fatal(err)
	}
	out.expandSpecialTags()

	tests := []struct {
		name string
		ok   bool
	}{
		{"fan-out", out.Live.FanOut == 2},
		{"engine timeout", out.Meeting.EngineTimeout == 3*time.Second},
		{"storage path", out.Storage.Path == "x.db"},
		{"default address", out.Server.Address == ":8000"},
		{"default gather timeout", out.Webrtc.GatherTimeout == 5*time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.ok {
				t.Errorf("unexpected value in %+v", out)
			}
		})
	}
}

func TestExpandSpecialTags(t *testing.T) {
	c := Config{}
	c.expandSpecialTags()
	if c.Live.FanOut != 1 {
		t.Errorf("fan-out should be clamped to 1, got %v", c.Live.FanOut)
	}
	if c.Meeting.EngineTimeout != 10*time.Second {
		t.Errorf("engine timeout should fall back to 10s, got %v", c.Meeting.EngineTimeout)
	}
}
