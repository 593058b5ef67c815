package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Consensus.RoundInterval.Duration() != 5*time.Minute {
		t.Errorf("round interval = %s, want 5m", cfg.Consensus.RoundInterval)
	}
	if cfg.Consensus.CollectionWindow.Duration() != 30*time.Second {
		t.Errorf("collection window = %s, want 30s", cfg.Consensus.CollectionWindow)
	}
	if cfg.Consensus.MinParticipants != 2 {
		t.Errorf("min participants = %d, want 2", cfg.Consensus.MinParticipants)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
consensus:
  round_interval: 10m
  collection_window: 45s
probe:
  stun_servers:
    - stun1.example.com:3478
    - stun2.example.com:3478
  probe_count: 5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Consensus.RoundInterval.Duration() != 10*time.Minute {
		t.Errorf("round interval = %s, want 10m", cfg.Consensus.RoundInterval)
	}
	if cfg.Consensus.CollectionWindow.Duration() != 45*time.Second {
		t.Errorf("collection window = %s, want 45s", cfg.Consensus.CollectionWindow)
	}
	// 未覆盖的字段保持默认
	if cfg.Consensus.MetricsCapacity != DefaultMetricsCapacity {
		t.Errorf("metrics capacity = %d, want default %d", cfg.Consensus.MetricsCapacity, DefaultMetricsCapacity)
	}
	if len(cfg.Probe.STUNServers) != 2 {
		t.Errorf("stun servers = %v", cfg.Probe.STUNServers)
	}
	if cfg.Probe.ProbeCount != 5 {
		t.Errorf("probe count = %d, want 5", cfg.Probe.ProbeCount)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
consensus:
  round_interval: 10s
  collection_window: 30s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error: window >= interval")
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := &Config{
		Consensus: ConsensusConfig{
			RoundInterval:    Duration(-time.Second),
			CollectionWindow: 0,
			MinParticipants:  1,
			MetricsCapacity:  0,
		},
		Probe: ProbeConfig{
			Timeout:    0,
			ProbeCount: 0,
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"round_interval",
		"collection_window",
		"min_participants",
		"metrics_capacity",
		"probe.timeout",
		"probe_count",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}
}

func TestDuration_YAMLFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	// 数字按纳秒解析
	content := `
consensus:
  round_interval: 300000000000
  collection_window: 30s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Consensus.RoundInterval.Duration() != 5*time.Minute {
		t.Errorf("round interval = %s, want 5m", cfg.Consensus.RoundInterval)
	}
}
