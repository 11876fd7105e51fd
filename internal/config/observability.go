package config

// TelemetryConfig holds OTLP tracing configuration.
//
// Spans are exported over OTLP/HTTP to a local collector.
// See internal/observability for setup.
type TelemetryConfig struct {
	// Enabled turns span export on (default: false)
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Endpoint is the OTLP/HTTP collector endpoint (default: localhost:4318)
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the reported service name (default: ferrite)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}
