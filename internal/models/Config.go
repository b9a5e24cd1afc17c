// Package models defines the core data structures for the A10 exporter application.
// It includes the configuration model (appliance credentials, logging, HTTP server
// and OpenTelemetry settings) and the thread-safe wrapper used for hot reload.
package models

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Default values applied by SetDefaults for optional configuration fields.
const (
	DefaultServerHost   = "0.0.0.0"
	DefaultServerPort   = "7070"
	DefaultServerURI    = "/metrics"
	DefaultLogFile      = "logs.log"
	DefaultLogLevel     = "INFO"
	DefaultSamplingRate = 1.0
)

// HostCredentials holds the AXAPI login for a single appliance.
type HostCredentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config represents the complete application configuration for the A10 exporter.
//
// The file is usually JSON (config.json). It is decoded with a YAML decoder, so
// YAML files work as well (block-style YAML must be indented with spaces).
type Config struct {
	// Hosts maps an appliance address (IP, hostname or host:port) to its credentials.
	Hosts map[string]HostCredentials `yaml:"hosts"`

	Log struct {
		LogFile  string `yaml:"log_file"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"log"`

	Server struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
		URI  string `yaml:"uri"`
		// StatsTimeout optionally bounds each stats request (e.g. "30s").
		// Empty means the request is only bounded by the scrape itself.
		StatsTimeout string `yaml:"statsTimeout"`
	} `yaml:"server"`

	OpenTelemetry struct {
		Enabled      bool    `yaml:"enabled"`
		Endpoint     string  `yaml:"endpoint"`
		Insecure     bool    `yaml:"insecure"`
		SamplingRate float64 `yaml:"samplingRate"`
	} `yaml:"opentelemetry"`
}

// SetDefaults sets default values for optional configuration fields.
// This method is called automatically by Validate() before validation checks.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == "" {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.URI == "" {
		c.Server.URI = DefaultServerURI
	}
	if c.Log.LogFile == "" {
		c.Log.LogFile = DefaultLogFile
	}
	if c.Log.LogLevel == "" {
		c.Log.LogLevel = DefaultLogLevel
	}
	if c.OpenTelemetry.Enabled && c.OpenTelemetry.SamplingRate == 0 {
		c.OpenTelemetry.SamplingRate = DefaultSamplingRate
	}
}

// Validate checks if the configuration is valid and returns an error if not.
// It checks:
//   - at least one appliance host is configured
//   - server port range (1-65535) and URI format
//   - stats timeout format, when set
//   - OpenTelemetry endpoint and sampling rate, when enabled
//
// Empty usernames or passwords are accepted here: the appliance rejects them
// at login time and the exporter logs a warning before trying.
//
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	c.SetDefaults()

	if len(c.Hosts) == 0 {
		return errors.New("at least one host is required in 'hosts'")
	}
	for host := range c.Hosts {
		if strings.TrimSpace(host) == "" {
			return errors.New("host name must not be empty")
		}
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.URI, "/") || c.Server.URI == "/" {
		return fmt.Errorf("invalid server URI: %q (must start with / and not be the root path)", c.Server.URI)
	}
	if c.Server.StatsTimeout != "" {
		if d, err := time.ParseDuration(c.Server.StatsTimeout); err != nil || d < 0 {
			return fmt.Errorf("invalid stats timeout: %q", c.Server.StatsTimeout)
		}
	}

	if c.OpenTelemetry.Enabled {
		if c.OpenTelemetry.Endpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when enabled")
		}
		if c.OpenTelemetry.SamplingRate < 0 || c.OpenTelemetry.SamplingRate > 1 {
			return fmt.Errorf("invalid OpenTelemetry sampling rate: %v (must be between 0.0 and 1.0)", c.OpenTelemetry.SamplingRate)
		}
	}

	return nil
}

// Credentials returns the configured login for host.
// The boolean is false when the host is not present in the configuration.
func (c *Config) Credentials(host string) (HostCredentials, bool) {
	creds, ok := c.Hosts[host]
	return creds, ok
}

// HostNames returns the configured appliance addresses in sorted order.
func (c *Config) HostNames() []string {
	names := make([]string, 0, len(c.Hosts))
	for host := range c.Hosts {
		names = append(names, host)
	}
	sort.Strings(names)
	return names
}

// GetServerAddress returns the complete server address for HTTP server binding.
// Format: host:port
//
// Example: "0.0.0.0:7070"
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// GetStatsTimeout returns the per-request stats timeout, or zero when unset.
func (c *Config) GetStatsTimeout() time.Duration {
	if c.Server.StatsTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Server.StatsTimeout)
	if err != nil {
		return 0
	}
	return d
}

// IsOTelEnabled reports whether OpenTelemetry tracing is configured.
func (c *Config) IsOTelEnabled() bool {
	return c.OpenTelemetry.Enabled
}

// MaskPassword returns a masked version of a password for safe logging.
// Shows the first and last character with asterisks in between.
//
// Example: "a10secret" -> "a****t"
//
// For passwords shorter than 4 characters, returns "****".
func MaskPassword(password string) string {
	if len(password) < 4 {
		return "****"
	}
	return password[:1] + "****" + password[len(password)-1:]
}
