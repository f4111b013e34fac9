// Package config loads the JSON file describing a Client's connection,
// credentials, logging level and metrics exporter: a JSON-friendly shape
// converted into the types the rest of the library actually uses, with
// defaults applied before the file is read and validation applied after.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oarkflow/smpp-esme/pkg/smpp"
)

// ClientFileConfig is the JSON structure of a config file on disk. Durations
// are plain strings (e.g. "30s") via smpp.Duration so the file stays
// hand-editable; TLSConfig, SequenceGenerator, Logger and MetricsCollector
// are not expressible in JSON and are left for the caller to attach to the
// smpp.Config this produces.
type ClientFileConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	UseTLS        bool `json:"use_tls"`
	TLSSkipVerify bool `json:"tls_skip_verify"`

	SystemID     string `json:"system_id"`
	Password     string `json:"password"`
	SystemType   string `json:"system_type"`
	BindType     string `json:"bind_type"`
	AddrTON      byte   `json:"addr_ton"`
	AddrNPI      byte   `json:"addr_npi"`
	AddressRange string `json:"address_range"`

	InterfaceVersion byte `json:"interface_version"`

	ConnectTimeout smpp.Duration `json:"connect_timeout"`
	ReadTimeout    smpp.Duration `json:"read_timeout"`
	WriteTimeout   smpp.Duration `json:"write_timeout"`

	EnquireLinkInterval smpp.Duration `json:"enquire_link_interval"`

	// SequenceFile, when set, persists the last-issued sequence number so a
	// restarted client resumes counting instead of starting over.
	SequenceFile string `json:"sequence_file"`

	// SubmitTPS, when positive, paces outbound submits to at most this many
	// per second.
	SubmitTPS int `json:"submit_tps"`

	Logging LoggingConfig `json:"logging"`
	Metrics MetricsConfig `json:"metrics"`
}

// LoggingConfig controls internal/logger's verbosity; it carries no
// format/output knobs because logger.NewDefaultLogger, which the harness
// builds from it, always writes lines to stderr.
type LoggingConfig struct {
	Level string `json:"level"`
}

// MetricsConfig controls whether internal/metrics starts its Prometheus
// /metrics HTTP server and on which port.
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// ToClientConfig converts the file config into an smpp.Config. The caller
// still attaches SequenceGenerator, Logger, MetricsCollector and (if
// UseTLS) a *tls.Config after this call, since none of those are
// JSON-expressible.
func (f *ClientFileConfig) ToClientConfig() smpp.Config {
	return smpp.Config{
		Host:             f.Host,
		Port:             f.Port,
		UseTLS:           f.UseTLS,
		SystemID:         f.SystemID,
		Password:         f.Password,
		SystemType:       f.SystemType,
		AddrTON:          f.AddrTON,
		AddrNPI:          f.AddrNPI,
		AddressRange:     f.AddressRange,
		InterfaceVersion: f.InterfaceVersion,
		ConnectTimeout:   f.ConnectTimeout.Duration,
		ReadTimeout:      f.ReadTimeout.Duration,
		WriteTimeout:     f.WriteTimeout.Duration,
	}
}

// Manager loads, validates and (optionally) persists a ClientFileConfig.
type Manager struct {
	path   string
	config *ClientFileConfig
}

// NewManager creates a Manager reading from (and, on Save, writing to) path.
// An empty path means Load never reads a file and validates the defaults
// alone, which fail validation because they carry no system_id.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Load reads the config file at m's path, if any, over top of
// DefaultFileConfig(), and validates the result.
func (m *Manager) Load() (*ClientFileConfig, error) {
	cfg := DefaultFileConfig()

	if m.path != "" && fileExists(m.path) {
		data, err := os.ReadFile(m.path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", m.path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", m.path, err)
		}
	}

	m.config = cfg
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// Save writes m's current config to m's path as indented JSON.
func (m *Manager) Save() error {
	if m.config == nil {
		return fmt.Errorf("config: nothing loaded to save")
	}
	if m.path == "" {
		return fmt.Errorf("config: no path configured")
	}
	return writeJSONFile(m.path, m.config)
}

// Validate checks the fields a Client cannot sensibly start without.
func (m *Manager) Validate() error {
	if m.config == nil {
		return fmt.Errorf("config is nil")
	}
	c := m.config

	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.SystemID == "" {
		return fmt.Errorf("system_id cannot be empty")
	}

	validBindTypes := map[string]bool{"transmitter": true, "receiver": true, "transceiver": true}
	if c.BindType != "" && !validBindTypes[c.BindType] {
		return fmt.Errorf("invalid bind_type: %s", c.BindType)
	}

	if c.ConnectTimeout.Duration <= 0 {
		return fmt.Errorf("connect_timeout must be positive: %v", c.ConnectTimeout.Duration)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}

	if c.SubmitTPS < 0 {
		return fmt.Errorf("submit_tps cannot be negative: %d", c.SubmitTPS)
	}

	return nil
}

// DefaultFileConfig returns the defaults a config file starts from before
// the file on disk overrides them field by field.
func DefaultFileConfig() *ClientFileConfig {
	return &ClientFileConfig{
		Host:                "localhost",
		Port:                2775,
		SystemType:          "SMPP",
		BindType:            "transceiver",
		InterfaceVersion:    smpp.SMPPVersion,
		ConnectTimeout:      smpp.Duration{Duration: 10e9},
		ReadTimeout:         smpp.Duration{Duration: 30e9},
		WriteTimeout:        smpp.Duration{Duration: 10e9},
		EnquireLinkInterval: smpp.Duration{Duration: 30e9},
		Logging:             LoggingConfig{Level: "info"},
		Metrics:             MetricsConfig{Enabled: false, Port: 9090},
	}
}

// CreateDefaultFile writes DefaultFileConfig() to path, creating parent
// directories as needed, for callers bootstrapping a new deployment.
func CreateDefaultFile(path string) error {
	return writeJSONFile(path, DefaultFileConfig())
}

func writeJSONFile(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
