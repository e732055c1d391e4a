package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ListenAddr() != "127.0.0.1:8080" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1:8080", cfg.ListenAddr())
	}
	if cfg.Tags.MaxRecent != 20 {
		t.Errorf("Tags.MaxRecent = %d, want 20", cfg.Tags.MaxRecent)
	}
	if len(cfg.Tags.Defaults) != 5 {
		t.Errorf("Tags.Defaults = %v, want 5 entries", cfg.Tags.Defaults)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexus.toml")
	content := `
[server]
port = 9090

[llm]
provider = "ollama"
ollama_model = "llama3.2"

[tags]
max_recent = 10
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	// Unset keys keep their defaults.
	if cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("Bind = %q, want default", cfg.Server.Bind)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", cfg.LLM.Provider)
	}
	if cfg.Tags.MaxRecent != 10 {
		t.Errorf("MaxRecent = %d, want 10", cfg.Tags.MaxRecent)
	}
}

func TestLoadBadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexus.toml")
	if err := os.WriteFile(path, []byte("[server\nport="), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load succeeded on malformed TOML")
	}
}
