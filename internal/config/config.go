// Package config provides configuration types for mcpcore, the MCP server
// framework's reference binary.
//
// The schema is intentionally small: this module is a framework, not a
// deployment. It configures transport selection, session lifetime, event
// retention, and observability — never tool/resource/prompt behavior, which
// is the embedder's concern.
package config

import "github.com/spf13/viper"

// Config is the top-level configuration for mcpcore.
type Config struct {
	// Server configures the HTTP listener shared by the SSE and
	// streamable-HTTP transports.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Session configures protocol-session lifetime.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Transports selects which inbound transports are active.
	Transports TransportsConfig `yaml:"transports" mapstructure:"transports"`

	// Metrics configures the Prometheus endpoint and the optional
	// alternate OpenTelemetry metrics exporter.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Tracing configures the OpenTelemetry trace exporter.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// LogLevel sets the minimum slog level: "debug", "info", "warn", "error".
	// Defaults to "info" if empty.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// DevMode switches logging to debug level for local development. It
	// does not change the origin allow-list and never disables validation.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the address to listen on (e.g., "127.0.0.1:8080", ":8080").
	// Defaults to "127.0.0.1:8080" if empty.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`

	// PathPrefix is prepended to every mounted transport path
	// (e.g. "" mounts streamable-HTTP at "/mcp"; "/api" mounts it at
	// "/api/mcp"). Defaults to "" if empty.
	PathPrefix string `yaml:"path_prefix" mapstructure:"path_prefix"`

	// AllowedOrigins restricts the Origin header accepted by the SSE and
	// streamable-HTTP transports. The single-element list ["*"] (the
	// default) allows every origin; any other list is an explicit
	// allowlist. An empty request Origin header is always accepted,
	// matching same-process and server-to-server callers that send none.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins" validate:"omitempty,dive,allowed_origin"`

	// RequestTimeout is the default deadline for server-initiated
	// (outbound) requests whose caller sets none (e.g. "30s").
	// Defaults to "30s" if not specified.
	RequestTimeout string `yaml:"request_timeout" mapstructure:"request_timeout" validate:"omitempty"`
}

// SessionConfig configures the Session Manager.
type SessionConfig struct {
	// Timeout is the idle duration before a session is swept (e.g. "30m").
	// Defaults to "30m" if not specified.
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`

	// EventRetention is the number of SSE events retained per session for
	// Last-Event-ID resumability. Defaults to 256 if not specified or 0.
	EventRetention int `yaml:"event_retention" mapstructure:"event_retention" validate:"omitempty,min=1"`
}

// TransportsConfig selects which inbound transports mcpcore serves.
// Stdio is mutually exclusive with the two HTTP-based transports: a stdio
// process has exactly one peer on its own stdin/stdout and cannot also
// bind a listening socket in the same invocation.
type TransportsConfig struct {
	// Stdio enables the newline-delimited JSON stdio transport.
	Stdio bool `yaml:"stdio" mapstructure:"stdio"`

	// SSE enables the legacy two-endpoint (GET /sse, POST /message) transport.
	SSE bool `yaml:"sse" mapstructure:"sse"`

	// Streamable enables the single-endpoint streamable-HTTP transport.
	Streamable bool `yaml:"streamable" mapstructure:"streamable"`
}

// MetricsConfig configures observability export.
type MetricsConfig struct {
	// Enabled mounts the Prometheus /metrics endpoint. Default: true.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Exporter selects an additional OpenTelemetry metrics exporter run
	// alongside the Prometheus endpoint. Valid values: "" (none, default)
	// or "stdout" (periodic dump via stdoutmetric, for local development).
	Exporter string `yaml:"exporter" mapstructure:"exporter" validate:"omitempty,oneof=stdout"`
}

// TracingConfig configures the OpenTelemetry trace exporter.
type TracingConfig struct {
	// Enabled wires a stdouttrace exporter around Dispatcher
	// spans. Default: false — tracing has a per-span allocation cost that
	// should be opt-in outside development.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// SetDefaults applies sensible default values to the configuration. Called
// after Viper unmarshalling and before validation so required fields are
// satisfied by defaults rather than failing validation.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.RequestTimeout == "" {
		c.Server.RequestTimeout = "30s"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	if c.Session.Timeout == "" {
		c.Session.Timeout = "30m"
	}
	if c.Session.EventRetention == 0 {
		c.Session.EventRetention = 256
	}

	// Transport default: if the user configured none at all, serve
	// streamable-HTTP — the primary transport for networked deployments.
	if !c.Transports.Stdio && !c.Transports.SSE && !c.Transports.Streamable {
		c.Transports.Streamable = true
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	// Metrics default on: observability is not opt-in for the Prometheus
	// endpoint. viper.IsSet distinguishes "not set" (zero value) from
	// "explicitly false".
	if !viper.IsSet("metrics.enabled") {
		c.Metrics.Enabled = true
	}
}

// AllowAllOrigins reports whether AllowedOrigins is the wildcard default,
// letting callers skip building an allowlist set entirely.
func (c *ServerConfig) AllowAllOrigins() bool {
	return len(c.AllowedOrigins) == 1 && c.AllowedOrigins[0] == "*"
}
