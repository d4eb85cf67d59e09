// Package telemetry installs OpenTelemetry trace and metric providers that
// export over OTLP.
//
// Packages instrument themselves through the otel globals (otel.Tracer,
// otel.Meter). Until New installs real providers those calls are no-ops, so
// telemetry stays off unless configured:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc          # or http/protobuf
//	  insecure: true
//	  sampling_rate: 1.0
//
// Telemetry failures never stop the process. If an exporter cannot be
// created the instance is marked degraded and the no-op providers remain.
//
// Use NewTestTelemetry for in-memory spans and metrics in tests.
package telemetry
