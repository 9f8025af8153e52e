package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempINI(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.ini")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesOnlyPresentKeys(t *testing.T) {
	path := writeTempINI(t, `
[network]
url = 10.0.0.5
port_tcp_up = 7001

[log]
level = debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Network.URL != "10.0.0.5" || cfg.Network.PortTCPUp != 7001 {
		t.Fatalf("network keys not overridden: %+v", cfg.Network)
	}
	// Untouched network key keeps its default.
	if cfg.Network.PortTCPDown != DefaultConfig().Network.PortTCPDown {
		t.Fatalf("unset key should keep default, got %d", cfg.Network.PortTCPDown)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected log.level override, got %q", cfg.Log.Level)
	}
	if cfg.Log.Output != DefaultConfig().Log.Output {
		t.Fatalf("unset log.output should keep default, got %q", cfg.Log.Output)
	}
}

func TestLoadParsesCoresAppList(t *testing.T) {
	path := writeTempINI(t, `
[cpu]
core_system = 0
core_network = 1
core_gateway = 2
cores_app = 3,4,5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	want := []int{3, 4, 5}
	if len(cfg.CPU.CoresApp) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.CPU.CoresApp)
	}
	for i := range want {
		if cfg.CPU.CoresApp[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, cfg.CPU.CoresApp)
		}
	}
	if cfg.AppShardCount() != 3 {
		t.Fatalf("expected 3 app shards, got %d", cfg.AppShardCount())
	}
}

func TestLoadRejectsOverlappingCorePlacement(t *testing.T) {
	path := writeTempINI(t, `
[cpu]
core_system = 0
core_network = 0
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for overlapping core assignment")
	}
}

func TestDefaultConfigHasSingleAppShard(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.AppShardCount() != 1 {
		t.Fatalf("expected default shard count 1, got %d", cfg.AppShardCount())
	}
}
