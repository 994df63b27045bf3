package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, "127.0.0.1:8080")
	}
	if cfg.Server.RequestTimeout != "30s" {
		t.Errorf("Server.RequestTimeout = %q, want %q", cfg.Server.RequestTimeout, "30s")
	}
	if !cfg.Server.AllowAllOrigins() {
		t.Errorf("AllowedOrigins = %v, want the allow-all default", cfg.Server.AllowedOrigins)
	}
	if cfg.Session.Timeout != "30m" {
		t.Errorf("Session.Timeout = %q, want %q", cfg.Session.Timeout, "30m")
	}
	if cfg.Session.EventRetention != 256 {
		t.Errorf("Session.EventRetention = %d, want 256", cfg.Session.EventRetention)
	}
	if !cfg.Transports.Streamable {
		t.Error("Transports.Streamable should default to true when nothing is configured")
	}
	if cfg.Transports.Stdio || cfg.Transports.SSE {
		t.Error("Stdio/SSE should stay disabled by default")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should default to true")
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Server: ServerConfig{
			Addr:           ":9090",
			AllowedOrigins: []string{"https://example.com"},
		},
		Session: SessionConfig{
			Timeout:        "1h",
			EventRetention: 32,
		},
		Transports: TransportsConfig{Stdio: true},
	}
	cfg.SetDefaults()

	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr was overwritten: got %q, want %q", cfg.Server.Addr, ":9090")
	}
	if cfg.Server.AllowAllOrigins() {
		t.Error("AllowedOrigins was overwritten with the allow-all default")
	}
	if cfg.Session.Timeout != "1h" {
		t.Errorf("Session.Timeout was overwritten: got %q, want %q", cfg.Session.Timeout, "1h")
	}
	if cfg.Session.EventRetention != 32 {
		t.Errorf("Session.EventRetention was overwritten: got %d, want 32", cfg.Session.EventRetention)
	}
	if !cfg.Transports.Stdio {
		t.Error("Transports.Stdio was cleared")
	}
	if cfg.Transports.Streamable {
		t.Error("Transports.Streamable should not be defaulted on when stdio is explicitly set")
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mcpcore.yaml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mcpcore.yml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Simulate the binary: a file named "mcpcore" with no extension.
	_ = os.WriteFile(filepath.Join(dir, "mcpcore"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "mcpcore.yaml")
	ymlPath := filepath.Join(dir, "mcpcore.yml")
	_ = os.WriteFile(yamlPath, []byte("server:\n  addr: :8080\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("server:\n  addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
