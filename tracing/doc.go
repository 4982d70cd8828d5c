// Package tracing wraps OpenTelemetry so the scheduler loop can open a
// span per operation without depending on the SDK directly. Until Init
// (or InitWithExporter) is called every span is a no-op.
package tracing
