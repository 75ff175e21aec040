// Package instrumentation provides optional OpenTelemetry metrics and
// tracing for the OAuth front door.
//
// Instrumentation is off by default: when disabled (or when no
// Instrumentation is configured at all) no-op providers are used and the
// overhead is effectively zero. Exporter wiring is left to the embedding
// application via the Resource and provider hooks.
package instrumentation
