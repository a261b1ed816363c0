package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// manualMetrics builds a recorder backed by a manual reader so tests can
// inspect what the views produce.
func manualMetrics(t *testing.T, detailedLabels bool) (*Metrics, *metric.ManualReader) {
	t.Helper()

	reader := metric.NewManualReader()
	mp := newMeterProvider(resource.Empty(), reader, detailedLabels)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("newsletterpost-test"))
	require.NoError(t, err)
	return m, reader
}

func collectMetric(t *testing.T, reader *metric.ManualReader, name string) metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Metrics{}
}

func TestMetricViews_HistogramBuckets(t *testing.T) {
	m, reader := manualMetrics(t, false)
	ctx := context.Background()

	m.RecordLLMRequest(ctx, ServiceGroq, "deepseek-r1-distill-llama-70b", StatusSuccess, 12*time.Second)
	m.RecordStage(ctx, StagePublish, StatusSuccess, 300*time.Millisecond)

	for _, name := range []string{"llm_request_duration_seconds", "pipeline_stage_duration_seconds"} {
		t.Run(name, func(t *testing.T) {
			hist, ok := collectMetric(t, reader, name).Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			require.Len(t, hist.DataPoints, 1)
			assert.Equal(t, histogramBuckets[name], hist.DataPoints[0].Bounds)
			assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
		})
	}
}

func TestMetricViews_ArticleHost(t *testing.T) {
	tests := []struct {
		name     string
		detailed bool
		wantHost bool
	}{
		{name: "dropped by default", detailed: false, wantHost: false},
		{name: "kept with detailed labels", detailed: true, wantHost: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, reader := manualMetrics(t, tt.detailed)
			m.RecordPipelineRun(context.Background(), StatusSuccess, "www.heise.de")

			sum, ok := collectMetric(t, reader, "pipeline_runs_total").Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)

			point := sum.DataPoints[0]
			assert.Equal(t, int64(1), point.Value)

			status, ok := point.Attributes.Value(attribute.Key(attrStatus))
			require.True(t, ok)
			assert.Equal(t, StatusSuccess, status.AsString())

			host, ok := point.Attributes.Value(attribute.Key(attrHost))
			assert.Equal(t, tt.wantHost, ok)
			if tt.wantHost {
				assert.Equal(t, "www.heise.de", host.AsString())
			}
		})
	}
}

func TestMetricViews_HostlessRunsShareSeries(t *testing.T) {
	m, reader := manualMetrics(t, false)
	ctx := context.Background()

	m.RecordPipelineRun(ctx, StatusSuccess, "a.example")
	m.RecordPipelineRun(ctx, StatusSuccess, "b.example")

	sum := collectMetric(t, reader, "pipeline_runs_total").Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}

func TestNewResource(t *testing.T) {
	res, err := newResource(context.Background(), Config{
		ServiceName:       "newsletterpost",
		ServiceVersion:    "1.2.3",
		ServiceInstanceID: "newsletterpost-7d9f",
		K8sNamespace:      "newsletter",
		LabelName:         "Newsletter/Heise",
		DryRun:            true,
	})
	require.NoError(t, err)

	attrs := res.Set()
	want := map[attribute.Key]string{
		semconv.ServiceNameKey:       "newsletterpost",
		semconv.ServiceVersionKey:    "1.2.3",
		semconv.ServiceInstanceIDKey: "newsletterpost-7d9f",
		semconv.K8SNamespaceNameKey:  "newsletter",
		ResourceLabel:                "Newsletter/Heise",
	}
	for key, value := range want {
		got, ok := attrs.Value(key)
		require.True(t, ok, "missing %s", key)
		assert.Equal(t, value, got.AsString(), key)
	}

	dryRun, ok := attrs.Value(ResourceDryRun)
	require.True(t, ok)
	assert.True(t, dryRun.AsBool())
}

func TestNewResource_WithoutLabel(t *testing.T) {
	res, err := newResource(context.Background(), Config{ServiceName: "newsletterpost"})
	require.NoError(t, err)

	_, ok := res.Set().Value(ResourceLabel)
	assert.False(t, ok)

	_, ok = res.Set().Value(semconv.ServiceInstanceIDKey)
	assert.True(t, ok, "instance id falls back to the hostname")
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name           string
		config         Config
		wantErr        string
		wantEnabled    bool
		wantPrometheus bool
	}{
		{
			name:   "disabled",
			config: Config{Enabled: false},
		},
		{
			name:           "prometheus without tracing",
			config:         Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone},
			wantEnabled:    true,
			wantPrometheus: true,
		},
		{
			name:        "stdout",
			config:      Config{Enabled: true, MetricsExporter: ExporterStdout, TracingExporter: ExporterStdout},
			wantEnabled: true,
		},
		{
			name:    "unknown metrics exporter",
			config:  Config{Enabled: true, MetricsExporter: "statsd", TracingExporter: ExporterNone},
			wantErr: "unsupported metrics exporter",
		},
		{
			name:    "unknown tracing exporter",
			config:  Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: "jaeger"},
			wantErr: "unsupported tracing exporter",
		},
		{
			name:    "otlp tracing without endpoint",
			config:  Config{Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: ExporterOTLP},
			wantErr: "OTLP endpoint is required",
		},
		{
			name:    "otlp metrics without endpoint",
			config:  Config{Enabled: true, MetricsExporter: ExporterOTLP, TracingExporter: ExporterNone},
			wantErr: "OTLP endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tt.config.ServiceName = "newsletterpost"
			tt.config.LabelName = "Newsletter"
			provider, err := NewProvider(ctx, tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer func() { assert.NoError(t, provider.Shutdown(ctx)) }()

			assert.Equal(t, tt.wantEnabled, provider.Enabled())
			assert.Equal(t, tt.wantPrometheus, provider.HasPrometheusExporter())
			assert.NotNil(t, provider.Metrics())
			assert.NotNil(t, provider.Tracer("pipeline"))
		})
	}
}

func TestNewSpanExporter_NoneMeansNoExporter(t *testing.T) {
	for _, name := range []string{ExporterNone, ""} {
		exporter, err := newSpanExporter(context.Background(), Config{TracingExporter: name})
		require.NoError(t, err)
		assert.Nil(t, exporter)
	}
}

func TestProvider_DisabledTracerDoesNotRecord(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	_, span := provider.Tracer("pipeline").Start(context.Background(), "pipeline.extract")
	defer span.End()
	assert.False(t, span.IsRecording())
}
