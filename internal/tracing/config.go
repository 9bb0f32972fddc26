package tracing

// TracingConfig configures the OTLP trace pipeline
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the collector host:port
	Endpoint string
	// Insecure disables transport security towards the collector
	Insecure bool
	Headers  map[string]string
	// ExporterType is "grpc" (default) or "http"
	ExporterType string

	// SampleRatio is the fraction of root traces kept, clamped to [0, 1].
	// Children follow their parent's decision.
	SampleRatio float64

	// Attributes are added to the resource, e.g. the upstream URL
	Attributes map[string]string
}

// DefaultTracingConfig returns a disabled configuration for the engine
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:    "schemaui",
		ServiceVersion: "dev",
		ExporterType:   "grpc",
		SampleRatio:    1.0,
	}
}

func (c TracingConfig) ratio() float64 {
	switch {
	case c.SampleRatio <= 0:
		return 0
	case c.SampleRatio >= 1:
		return 1
	default:
		return c.SampleRatio
	}
}
