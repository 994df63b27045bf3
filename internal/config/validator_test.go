package config

import (
	"strings"
	"testing"
)

// minimalValidConfig returns a minimal valid Config for testing.
func minimalValidConfig() *Config {
	cfg := &Config{
		Transports: TransportsConfig{Streamable: true},
	}
	cfg.SetDefaults()
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_ZeroConfig(t *testing.T) {
	t.Parallel()

	// Simulate running "mcpcore serve" with no config file at all.
	cfg := &Config{}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() zero-config unexpected error: %v", err)
	}
	if !cfg.Transports.Streamable {
		t.Error("zero-config should default to the streamable-HTTP transport")
	}
}

func TestValidate_StdioCombinedWithSSE(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Transports = TransportsConfig{Stdio: true, SSE: true}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "stdio cannot be combined") {
		t.Errorf("error = %q, want to contain 'stdio cannot be combined'", err.Error())
	}
}

func TestValidate_StdioCombinedWithStreamable(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Transports = TransportsConfig{Stdio: true, Streamable: true}

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for stdio+streamable, got nil")
	}
}

func TestValidate_StdioAlone(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Transports = TransportsConfig{Stdio: true}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with stdio alone unexpected error: %v", err)
	}
}

func TestValidate_AllowedOriginsWildcard(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.AllowedOrigins = []string{"*"}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with wildcard origin unexpected error: %v", err)
	}
}

func TestValidate_AllowedOriginsExplicitList(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.AllowedOrigins = []string{"https://example.com", "https://admin.example.com"}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with explicit origin list unexpected error: %v", err)
	}
}

func TestValidate_InvalidAllowedOrigin(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.AllowedOrigins = []string{"not-an-origin"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for malformed origin, got nil")
	}
	if !strings.Contains(err.Error(), "AllowedOrigins") {
		t.Errorf("error = %q, want to contain 'AllowedOrigins'", err.Error())
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.LogLevel = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for invalid log level, got nil")
	}
}

func TestValidate_InvalidMetricsExporter(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Metrics.Exporter = "datadog"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for unsupported metrics exporter, got nil")
	}
}

func TestValidate_StdoutMetricsExporter(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Metrics.Exporter = "stdout"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with stdout exporter unexpected error: %v", err)
	}
}

func TestAllowAllOrigins(t *testing.T) {
	t.Parallel()

	cfg := ServerConfig{AllowedOrigins: []string{"*"}}
	if !cfg.AllowAllOrigins() {
		t.Error("AllowAllOrigins() = false, want true for [\"*\"]")
	}

	cfg.AllowedOrigins = []string{"https://example.com"}
	if cfg.AllowAllOrigins() {
		t.Error("AllowAllOrigins() = true, want false for an explicit list")
	}
}
