package device

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
)

// DefaultPort is the ZKTeco terminal listening port.
const DefaultPort = 4370

// Pool is the registry of configured terminals. Configurations are loaded
// once at startup and never mutated; Slots are created lazily on first
// access and cached for the life of the pool.
type Pool struct {
	dialer  Dialer
	keys    []string // fleet file order, drives scheduler staggering
	devices map[string]Config

	mu    sync.Mutex
	slots map[string]*Slot
}

// fleetFile is the machines YAML shape:
//
//	devices:
//	  tmi:
//	    ip: 10.0.0.1
//	    port: 4370
//
// Unknown fields are ignored.
type fleetFile struct {
	Devices yaml.Node `yaml:"devices"`
}

// NewPool loads the fleet YAML at path and builds the registry.
// A missing ip for any device fails with ErrInvalidConfig.
func NewPool(path string, dialer Dialer) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidConfig, path, err)
	}
	p, err := parseFleet(data, dialer)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded devices", "count", len(p.keys), "path", path)
	return p, nil
}

// parseFleet builds a pool from raw YAML, preserving document order of the
// device keys.
func parseFleet(data []byte, dialer Dialer) (*Pool, error) {
	var f fleetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	p := &Pool{
		dialer:  dialer,
		devices: make(map[string]Config),
		slots:   make(map[string]*Slot),
	}

	if f.Devices.Kind == 0 {
		return p, nil
	}
	if f.Devices.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: devices must be a map", ErrInvalidConfig)
	}

	// Mapping node content alternates key, value.
	for i := 0; i+1 < len(f.Devices.Content); i += 2 {
		key := f.Devices.Content[i].Value

		cfg := Config{Port: DefaultPort}
		if err := f.Devices.Content[i+1].Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%w: device %q: %v", ErrInvalidConfig, key, err)
		}
		if cfg.IP == "" {
			return nil, fmt.Errorf("%w: device %q: missing ip", ErrInvalidConfig, key)
		}
		cfg.Key = key
		if cfg.Name == "" {
			cfg.Name = key
		}
		if cfg.Port == 0 {
			cfg.Port = DefaultPort
		}

		p.keys = append(p.keys, key)
		p.devices[key] = cfg
	}

	return p, nil
}

// NewPoolFromConfigs builds a pool from pre-parsed configurations in the
// given order, bypassing the fleet file.
func NewPoolFromConfigs(cfgs []Config, dialer Dialer) (*Pool, error) {
	p := &Pool{
		dialer:  dialer,
		devices: make(map[string]Config),
		slots:   make(map[string]*Slot),
	}
	for _, cfg := range cfgs {
		if cfg.Key == "" {
			return nil, fmt.Errorf("%w: empty device key", ErrInvalidConfig)
		}
		if cfg.IP == "" {
			return nil, fmt.Errorf("%w: device %q: missing ip", ErrInvalidConfig, cfg.Key)
		}
		if cfg.Name == "" {
			cfg.Name = cfg.Key
		}
		if cfg.Port == 0 {
			cfg.Port = DefaultPort
		}
		p.keys = append(p.keys, cfg.Key)
		p.devices[cfg.Key] = cfg
	}
	return p, nil
}

// Keys returns the device keys in fleet file order.
func (p *Pool) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Config returns the configuration for a device key.
func (p *Pool) Config(key string) (Config, error) {
	cfg, ok := p.devices[key]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownDevice, key)
	}
	return cfg, nil
}

// Client returns the Slot guarding the given device, creating it on first
// access.
func (p *Pool) Client(key string) (*Slot, error) {
	cfg, ok := p.devices[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, key)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	slot, ok := p.slots[key]
	if !ok {
		slot = newSlot(cfg, p.dialer)
		p.slots[key] = slot
	}
	return slot, nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
