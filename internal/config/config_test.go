package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/packetloom/tracecore/internal/core"
)

func validConfig() GlobalConfig {
	return GlobalConfig{
		WorkerCount:     2,
		IntervalSeconds: 60,
		InputSources: []SourceConfig{
			{Name: "replay", Type: "file", FilePath: "/tmp/capture.pcap"},
		},
	}
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*GlobalConfig)
	}{
		{"zero worker_count", func(c *GlobalConfig) { c.WorkerCount = 0 }},
		{"zero interval_seconds", func(c *GlobalConfig) { c.IntervalSeconds = 0 }},
		{"no input sources", func(c *GlobalConfig) { c.InputSources = nil }},
		{"live source without device", func(c *GlobalConfig) {
			c.InputSources = []SourceConfig{{Name: "eth", Type: "live"}}
		}},
		{"file source without path", func(c *GlobalConfig) {
			c.InputSources = []SourceConfig{{Name: "replay", Type: "file"}}
		}},
		{"unknown source type", func(c *GlobalConfig) {
			c.InputSources = []SourceConfig{{Name: "x", Type: "carrier-pigeon"}}
		}},
		{"inverted bounds", func(c *GlobalConfig) {
			c.BoundStartEpoch = 200
			c.BoundEndEpoch = 100
		}},
		{"unknown log mode", func(c *GlobalConfig) { c.Log.Mode = "carrier-pigeon" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("error should wrap ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracecore.yaml")
	doc := `
tracecore:
  worker_count: 4
  interval_seconds: 300
  rotate_every_n_intervals: 2
  bound_end_epoch: 1700000000
  remove_spoofed: true
  bpf_expression: "udp port 53"
  input_sources:
    - name: replay
      type: file
      file_path: /tmp/capture.pcap
  tagging:
    enabled: true
    prefix_asn:
      enabled: true
  active_plugins:
    - name: trafficstats
      options:
        output_path: /tmp/trafficstats.jsonl
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorkerCount != 4 || cfg.IntervalSeconds != 300 || cfg.RotateEveryNIntervals != 2 {
		t.Errorf("got worker_count=%d interval_seconds=%d rotate=%d", cfg.WorkerCount, cfg.IntervalSeconds, cfg.RotateEveryNIntervals)
	}
	if cfg.BoundEndEpoch != 1700000000 {
		t.Errorf("got bound_end_epoch=%d", cfg.BoundEndEpoch)
	}
	if !cfg.RemoveSpoofed || cfg.RemoveErratic {
		t.Errorf("got remove_spoofed=%v remove_erratic=%v", cfg.RemoveSpoofed, cfg.RemoveErratic)
	}
	if cfg.BPFExpression != "udp port 53" {
		t.Errorf("got bpf_expression=%q", cfg.BPFExpression)
	}
	if len(cfg.InputSources) != 1 || cfg.InputSources[0].FilePath != "/tmp/capture.pcap" {
		t.Errorf("got input_sources=%+v", cfg.InputSources)
	}
	if !cfg.Tagging.Enabled || !cfg.Tagging.PrefixASN.Enabled || cfg.Tagging.GeoPrimary.Enabled {
		t.Errorf("got tagging=%+v", cfg.Tagging)
	}
	if len(cfg.ActivePlugins) != 1 || cfg.ActivePlugins[0].Name != "trafficstats" {
		t.Errorf("got active_plugins=%+v", cfg.ActivePlugins)
	}
	if cfg.Log.Mode != "stderr" {
		t.Errorf("default log mode should be stderr, got %q", cfg.Log.Mode)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != ":9091" {
		t.Errorf("metrics defaults not applied: %+v", cfg.Metrics)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("error should wrap ErrConfigInvalid, got %v", err)
	}
}
