// Package instrumentation provides OpenTelemetry metrics and tracing for the
// newsletter-to-LinkedIn pipeline.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// External API Metrics:
//   - api_operations_total: Counter of Gmail, LinkedIn and web operations by service, operation, status
//   - api_operation_duration_seconds: Histogram of external API operation durations
//
// LLM Metrics:
//   - llm_requests_total: Counter of chat completions by provider, model, status
//   - llm_request_duration_seconds: Histogram of chat completion durations
//
// Pipeline Metrics:
//   - pipeline_runs_total: Counter of runs by status (success, error, skipped)
//   - pipeline_stage_duration_seconds: Histogram of per-stage durations
//   - oauth_token_refresh_total: Counter of Google token refreshes by result
//
// Histogram buckets are set by views registered in NewProvider. The article
// host label on pipeline_runs_total is filtered out by a view unless
// METRICS_DETAILED_LABELS is true.
//
// # Resource
//
// Besides service name, version and instance, every export carries
// newsletter.label (the watched Gmail label) and newsletter.dry_run.
//
// # Tracing
//
// Spans are created for each pipeline stage (pipeline.<stage>) and for each
// external call (<service>.<operation>, e.g. gmail.get or linkedin.create).
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: newsletterpost)
//   - PUBLISH_AUDIT_ENABLED / PUBLISH_AUDIT_INCLUDE_TEXT: publish audit trail
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	m := provider.Metrics()
//	m.RecordAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationGet, "success", time.Since(start))
package instrumentation
