// Package config loads the INI-like configuration spec.md §6
// enumerates: network.*, cpu.*, rates.*, shm.*, log.*. Grounded on the
// original's common/src/config/config.hpp key surface and, for the
// loader itself, on the rest of the retrieval pack's use of
// github.com/spf13/viper for INI/ENV configuration (SPEC_FULL.md §6
// DOMAIN STACK). DefaultConfig follows the teacher's
// risk.DefaultConfig()/disruptor.DefaultConfig() convention: a plain
// struct literal of sane defaults, with viper only overriding keys
// actually present in the file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Network holds the network.* keys.
type Network struct {
	URL         string
	PortTCPUp   int
	PortTCPDown int
	PortUDP     int
}

// CPU holds the cpu.* keys. CoresApp is comma-separated in the file,
// parsed into a slice.
type CPU struct {
	CoreSystem  int
	CoreNetwork int
	CoreGateway int
	CoresApp    []int
}

// Rates holds the rates.* keys, all in microseconds/milliseconds as
// named.
type Rates struct {
	PriceFeedRateUs int
	MonitorRateMs   int
	TelemetryMs     int
}

// SHM holds the shm.* keys.
type SHM struct {
	Upstream   string
	Downstream string
	Telemetry  string
	Size       int
}

// Log holds the log.* keys.
type Log struct {
	Output string
	Level  string
}

// Config is the full, validated configuration surface.
type Config struct {
	Network Network
	CPU     CPU
	Rates   Rates
	SHM     SHM
	Log     Log
}

// DefaultConfig returns the defaults used when a key is absent from the
// loaded file — single app shard, loopback networking, conservative
// rates, no shared memory by default (sockets only).
func DefaultConfig() Config {
	return Config{
		Network: Network{
			URL:         "127.0.0.1",
			PortTCPUp:   9001,
			PortTCPDown: 9002,
			PortUDP:     9003,
		},
		CPU: CPU{
			CoreSystem:  -1,
			CoreNetwork: -1,
			CoreGateway: -1,
			CoresApp:    nil,
		},
		Rates: Rates{
			PriceFeedRateUs: 50000,
			MonitorRateMs:   1000,
			TelemetryMs:     1000,
		},
		SHM: SHM{
			Upstream:   "",
			Downstream: "",
			Telemetry:  "",
			Size:       0,
		},
		Log: Log{
			Output: "stdout",
			Level:  "info",
		},
	}
}

// Load reads path (an INI file) with viper, overlaying onto
// DefaultConfig, and validates the core placement invariant (spec.md
// §5: system/network/gateway/app cores must be pairwise disjoint).
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	apply(v, &cfg)

	if err := validateCorePlacement(cfg.CPU); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func apply(v *viper.Viper, cfg *Config) {
	setString(v, "network.url", &cfg.Network.URL)
	setInt(v, "network.port_tcp_up", &cfg.Network.PortTCPUp)
	setInt(v, "network.port_tcp_down", &cfg.Network.PortTCPDown)
	setInt(v, "network.port_udp", &cfg.Network.PortUDP)

	setInt(v, "cpu.core_system", &cfg.CPU.CoreSystem)
	setInt(v, "cpu.core_network", &cfg.CPU.CoreNetwork)
	setInt(v, "cpu.core_gateway", &cfg.CPU.CoreGateway)
	if v.IsSet("cpu.cores_app") {
		cfg.CPU.CoresApp = parseIntList(v.GetString("cpu.cores_app"))
	}

	setInt(v, "rates.price_feed_rate_us", &cfg.Rates.PriceFeedRateUs)
	setInt(v, "rates.monitor_rate_ms", &cfg.Rates.MonitorRateMs)
	setInt(v, "rates.telemetry_ms", &cfg.Rates.TelemetryMs)

	setString(v, "shm.shm_upstream", &cfg.SHM.Upstream)
	setString(v, "shm.shm_downstream", &cfg.SHM.Downstream)
	setString(v, "shm.shm_telemetry", &cfg.SHM.Telemetry)
	setInt(v, "shm.shm_size", &cfg.SHM.Size)

	setString(v, "log.output", &cfg.Log.Output)
	setString(v, "log.level", &cfg.Log.Level)
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func parseIntList(s string) []int {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(p, "%d", &n); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func validateCorePlacement(c CPU) error {
	seen := make(map[int]string, 3+len(c.CoresApp))
	check := func(core int, name string) error {
		if core < 0 {
			return nil
		}
		if owner, ok := seen[core]; ok {
			return fmt.Errorf("config: core %d assigned to both %s and %s", core, owner, name)
		}
		seen[core] = name
		return nil
	}
	if err := check(c.CoreSystem, "cpu.core_system"); err != nil {
		return err
	}
	if err := check(c.CoreNetwork, "cpu.core_network"); err != nil {
		return err
	}
	if err := check(c.CoreGateway, "cpu.core_gateway"); err != nil {
		return err
	}
	for i, core := range c.CoresApp {
		if err := check(core, fmt.Sprintf("cpu.cores_app[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// AppShardCount returns how many app shards the configuration implies
// (spec.md §4.14: W = cores_app.size(), defaulting to 1 if unset).
func (c Config) AppShardCount() int {
	if len(c.CPU.CoresApp) == 0 {
		return 1
	}
	return len(c.CPU.CoresApp)
}
