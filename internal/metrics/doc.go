// Package metrics provides observability hooks for the census service.
//
// The package follows the Null Object pattern: components take a Recorder
// through dependency injection and default to NoopRecorder, so callers never
// nil-check before recording. Swapping in PrometheusRecorder activates real
// collection without touching call sites:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	srv := server.New(cfg, store, server.Options{Recorder: recorder, Registry: registry})
//
// The admin listener exposes the registry via HTTPHandler on /metrics. All
// Recorder implementations are safe to call on nil receivers, so a partially
// constructed component cannot panic in a metrics path.
package metrics
