package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearInstrumentationEnv blanks every variable DefaultConfig reads so the
// host environment cannot leak into assertions.
func clearInstrumentationEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OTEL_SERVICE_NAME", "OTEL_SERVICE_INSTANCE_ID", "K8S_NAMESPACE", "POD_NAMESPACE",
		"K8S_POD_NAME", "HOSTNAME", "INSTRUMENTATION_ENABLED", "METRICS_EXPORTER",
		"TRACING_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_TRACES_SAMPLER_ARG", "PROMETHEUS_ENDPOINT", "METRICS_DETAILED_LABELS",
		"PUBLISH_AUDIT_ENABLED", "PUBLISH_AUDIT_INCLUDE_TEXT",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	clearInstrumentationEnv(t)

	config := DefaultConfig()

	assert.Equal(t, "newsletterpost", config.ServiceName)
	assert.True(t, config.Enabled)
	assert.Equal(t, ExporterPrometheus, config.MetricsExporter)
	assert.Equal(t, ExporterNone, config.TracingExporter)
	assert.Equal(t, 0.1, config.TraceSamplingRate)
	assert.Equal(t, "/metrics", config.PrometheusEndpoint)
	assert.False(t, config.DetailedLabels)
	assert.True(t, config.PublishAudit.Enabled)
	assert.False(t, config.PublishAudit.IncludeText)
	assert.Empty(t, config.LabelName, "label comes from the app config, not the environment")
	require.NoError(t, config.Validate())
}

func TestDefaultConfig_FromEnv(t *testing.T) {
	clearInstrumentationEnv(t)
	t.Setenv("OTEL_SERVICE_NAME", "newsletterpost-staging")
	t.Setenv("POD_NAMESPACE", "newsletter")
	t.Setenv("METRICS_EXPORTER", ExporterOTLP)
	t.Setenv("TRACING_EXPORTER", ExporterOTLP)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4318")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")
	t.Setenv("METRICS_DETAILED_LABELS", "true")
	t.Setenv("PUBLISH_AUDIT_INCLUDE_TEXT", "true")

	config := DefaultConfig()

	assert.Equal(t, "newsletterpost-staging", config.ServiceName)
	assert.Equal(t, "newsletter", config.K8sNamespace)
	assert.Equal(t, ExporterOTLP, config.MetricsExporter)
	assert.Equal(t, "otel-collector:4318", config.OTLPEndpoint)
	assert.Equal(t, 0.5, config.TraceSamplingRate)
	assert.True(t, config.DetailedLabels)
	assert.True(t, config.PublishAudit.IncludeText)
	require.NoError(t, config.Validate())
}

func TestDefaultConfig_MalformedValuesFallBack(t *testing.T) {
	clearInstrumentationEnv(t)
	t.Setenv("INSTRUMENTATION_ENABLED", "sometimes")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "ten percent")

	config := DefaultConfig()

	assert.True(t, config.Enabled)
	assert.Equal(t, 0.1, config.TraceSamplingRate)
}

func TestDefaultConfig_Disabled(t *testing.T) {
	clearInstrumentationEnv(t)
	t.Setenv("INSTRUMENTATION_ENABLED", "false")

	assert.False(t, DefaultConfig().Enabled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "prometheus",
			config: Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone},
		},
		{
			name:   "otlp traces with endpoint",
			config: Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterOTLP, OTLPEndpoint: "localhost:4318"},
		},
		{
			name:   "zero value",
			config: Config{},
		},
		{
			name:    "negative sampling rate",
			config:  Config{TraceSamplingRate: -0.5},
			wantErr: "sampling rate",
		},
		{
			name:    "sampling rate above one",
			config:  Config{TraceSamplingRate: 1.5},
			wantErr: "sampling rate",
		},
		{
			name:    "unknown metrics exporter",
			config:  Config{MetricsExporter: "statsd"},
			wantErr: "invalid metrics exporter",
		},
		{
			name:    "unknown tracing exporter",
			config:  Config{TracingExporter: "zipkin"},
			wantErr: "invalid tracing exporter",
		},
		{
			name:    "otlp traces without endpoint",
			config:  Config{TracingExporter: ExporterOTLP},
			wantErr: "OTLP endpoint is required",
		},
		{
			name:    "otlp metrics without endpoint",
			config:  Config{MetricsExporter: ExporterOTLP},
			wantErr: "OTLP endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
