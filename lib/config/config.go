// Package config loads process-wide RustConn settings the way the ambient
// stack loads configuration elsewhere in this codebase: a YAML file decoded
// with gopkg.in/yaml.v3, defaulted and validated by a single
// CheckAndSetDefaults method.
package config

import (
	"os"
	"time"

	"github.com/gravitational/trace"
	"gopkg.in/yaml.v3"

	"github.com/gravitational/rustconn/lib/vault"
)

// Settings is the top-level process configuration.
type Settings struct {
	StorePath        string        `yaml:"store_path"`
	PreferredBackend string        `yaml:"preferred_backend"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	CacheCapacity    int           `yaml:"cache_capacity"`

	RDP RDPSettings `yaml:"rdp"`
}

// RDPSettings configures lib/rdp's reconnect policy at the process level;
// per-connection overrides still come from types.Connection.RDP.
type RDPSettings struct {
	ReconnectMaxAttempts int           `yaml:"reconnect_max_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
}

// CheckAndSetDefaults fills in the zero-value defaults used when a field is
// absent from the YAML document.
func (s *Settings) CheckAndSetDefaults() error {
	if s.StorePath == "" {
		return trace.BadParameter("config: store_path is required")
	}
	if s.PreferredBackend == "" {
		s.PreferredBackend = string(vault.KindLibSecret)
	}
	if s.CacheTTL <= 0 {
		s.CacheTTL = 5 * time.Minute
	}
	if s.CacheCapacity <= 0 {
		s.CacheCapacity = 1024
	}
	if s.RDP.ReconnectMaxAttempts <= 0 {
		s.RDP.ReconnectMaxAttempts = 5
	}
	if s.RDP.ReconnectBaseDelay <= 0 {
		s.RDP.ReconnectBaseDelay = 500 * time.Millisecond
	}
	if s.RDP.ReconnectMaxDelay <= 0 {
		s.RDP.ReconnectMaxDelay = 30 * time.Second
	}
	return nil
}

// Load reads and validates Settings from path.
func Load(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := s.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &s, nil
}
