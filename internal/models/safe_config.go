// Package models defines the core data structures for the A10 exporter application.
package models

import (
	"fmt"
	"os"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// SafeConfig provides thread-safe access to configuration.
// It uses RWMutex to allow concurrent reads while serializing writes.
// Pattern from Prometheus blackbox_exporter.
//
// SafeConfig is the exporter's credential store: every login looks the host up
// through it, so operators can add appliances or rotate passwords via SIGHUP or
// by editing the config file, without restarting the exporter.
//
// Usage:
//
//	safeCfg := NewSafeConfig(cfg)
//
//	// Read (concurrent-safe)
//	creds, ok := safeCfg.Credentials("10.0.0.1")
//
//	// Reload (validates before applying)
//	changed, err := safeCfg.ReloadConfig("/path/to/config.json")
type SafeConfig struct {
	mu sync.RWMutex
	C  *Config
}

// NewSafeConfig creates a new SafeConfig with the provided initial config.
// The config is stored by reference; the caller should not modify it after
// passing it to NewSafeConfig.
func NewSafeConfig(cfg *Config) *SafeConfig {
	return &SafeConfig{
		C: cfg,
	}
}

// Get returns the current configuration (read-locked).
// The returned pointer is safe to use until the next reload.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.C
}

// Credentials returns the login configured for host in the current configuration.
func (sc *SafeConfig) Credentials(host string) (HostCredentials, bool) {
	return sc.Get().Credentials(host)
}

// ReloadConfig loads and validates a new configuration from the file.
// Validation happens BEFORE acquiring write lock (fail-fast pattern).
// This ensures invalid configurations never affect the running exporter.
//
// Returns:
//   - changedHosts: sorted hosts that were added, removed, or had their credentials changed
//   - err: error if file cannot be read or validation fails
//
// Tokens already cached for a changed host are not dropped; they are replaced
// the next time the appliance rejects them.
func (sc *SafeConfig) ReloadConfig(configPath string) (changedHosts []string, err error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	var newCfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&newCfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := newCfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Write lock only for the pointer swap
	sc.mu.Lock()
	old := sc.C
	sc.C = &newCfg
	sc.mu.Unlock()

	changedHosts = diffHosts(old, &newCfg)

	log.Info("Configuration reloaded successfully")
	if len(changedHosts) > 0 {
		log.Infof("Appliance credentials changed for: %v", changedHosts)
	}

	return changedHosts, nil
}

func diffHosts(old, updated *Config) []string {
	changed := make(map[string]struct{})
	var oldHosts map[string]HostCredentials
	if old != nil {
		oldHosts = old.Hosts
	}
	for host, creds := range updated.Hosts {
		if prev, ok := oldHosts[host]; !ok || prev != creds {
			changed[host] = struct{}{}
		}
	}
	for host := range oldHosts {
		if _, ok := updated.Hosts[host]; !ok {
			changed[host] = struct{}{}
		}
	}

	hosts := make([]string, 0, len(changed))
	for host := range changed {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}
