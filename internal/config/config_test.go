package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultFileConfig()
	if cfg.Host != "localhost" || cfg.Port != 2775 {
		t.Errorf("defaults = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.ConnectTimeout.Duration != 10*time.Second {
		t.Errorf("connect_timeout = %v", cfg.ConnectTimeout.Duration)
	}

	// defaults alone don't validate: system_id must come from the file
	if _, err := NewManager("").Load(); err == nil {
		t.Error("Load with no file and no system_id succeeded")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	body := `{
		"host": "smsc.example.net",
		"port": 2776,
		"system_id": "esme1",
		"password": "pw",
		"bind_type": "receiver",
		"read_timeout": "45s",
		"submit_tps": 25,
		"logging": {"level": "debug"}
	}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "smsc.example.net" || cfg.Port != 2776 {
		t.Errorf("host/port = %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.ReadTimeout.Duration != 45*time.Second {
		t.Errorf("read_timeout = %v, want 45s", cfg.ReadTimeout.Duration)
	}
	if cfg.SubmitTPS != 25 {
		t.Errorf("submit_tps = %d", cfg.SubmitTPS)
	}
	// fields absent from the file keep their defaults
	if cfg.WriteTimeout.Duration != 10*time.Second {
		t.Errorf("write_timeout = %v, want default 10s", cfg.WriteTimeout.Duration)
	}

	clientCfg := cfg.ToClientConfig()
	if clientCfg.Host != "smsc.example.net" || clientCfg.ReadTimeout != 45*time.Second {
		t.Errorf("ToClientConfig lost fields: %+v", clientCfg)
	}
}

func TestValidate(t *testing.T) {
	bad := []func(c *ClientFileConfig){
		func(c *ClientFileConfig) { c.Host = "" },
		func(c *ClientFileConfig) { c.Port = 0 },
		func(c *ClientFileConfig) { c.Port = 70000 },
		func(c *ClientFileConfig) { c.SystemID = "" },
		func(c *ClientFileConfig) { c.BindType = "both" },
		func(c *ClientFileConfig) { c.ConnectTimeout.Duration = 0 },
		func(c *ClientFileConfig) { c.Logging.Level = "loud" },
		func(c *ClientFileConfig) { c.Metrics.Enabled = true; c.Metrics.Port = -1 },
		func(c *ClientFileConfig) { c.SubmitTPS = -5 },
	}
	for i, mutate := range bad {
		cfg := DefaultFileConfig()
		cfg.SystemID = "esme1"
		mutate(cfg)
		m := &Manager{config: cfg}
		if err := m.Validate(); err == nil {
			t.Errorf("case %d: Validate accepted an invalid config", i)
		}
	}
}

func TestCreateDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "client.json")
	if err := CreateDefaultFile(path); err != nil {
		t.Fatalf("CreateDefaultFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var cfg ClientFileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written file is not valid JSON: %v", err)
	}
	if cfg.BindType != "transceiver" {
		t.Errorf("bind_type = %q", cfg.BindType)
	}
}
