package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTP.Port != defaultPort {
		t.Fatalf("expected default port %d, got %d", defaultPort, cfg.HTTP.Port)
	}
	if cfg.Store.Path != defaultStorePath {
		t.Fatalf("expected default store path, got %q", cfg.Store.Path)
	}
	if cfg.Store.Directed {
		t.Fatal("store must default to undirected")
	}
	if cfg.Mirror.URI != "" {
		t.Fatal("mirroring must be disabled by default")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "knotwork.yaml")
	content := `
http:
  port: 9191
  metricsEnabled: true
store:
  path: /tmp/graph.json
  directed: true
logging:
  level: debug
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTP.Port != 9191 || !cfg.HTTP.MetricsEnabled {
		t.Fatalf("unexpected http config: %+v", cfg.HTTP)
	}
	if cfg.Store.Path != "/tmp/graph.json" || !cfg.Store.Directed {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "knotwork.yaml")
	if err := os.WriteFile(file, []byte("store:\n  path: from-file.json\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("STORE_PATH", "from-env.json")
	t.Setenv("SERVER_PORT", "8181")

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "from-env.json" {
		t.Fatalf("environment must win over the file, got %q", cfg.Store.Path)
	}
	if cfg.HTTP.Port != 8181 {
		t.Fatalf("expected env port, got %d", cfg.HTTP.Port)
	}
}

func TestLoadRejectsExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("an explicitly named missing file must fail")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "70000")
	if _, err := Load(""); err == nil {
		t.Fatal("out-of-range port must fail")
	}
}
