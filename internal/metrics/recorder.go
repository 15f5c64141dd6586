package metrics

import "time"

// ResultLabel enumerates request outcome categories for counters.
type ResultLabel string

const (
	ResultAccepted ResultLabel = "accepted"
	ResultRejected ResultLabel = "rejected"
	ResultError    ResultLabel = "error"
)

// Recorder defines the observability hooks the census service emits.
// Implementations must tolerate nil receivers so optional injection never
// needs guarding at call sites.
type Recorder interface {
	IncRequest(endpoint string, result ResultLabel)
	ObserveRequestDuration(endpoint string, d time.Duration)
	SetPopulation(channel string, machines int64)
	IncPublished(success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) IncRequest(string, ResultLabel)               {}
func (NoopRecorder) ObserveRequestDuration(string, time.Duration) {}
func (NoopRecorder) SetPopulation(string, int64)                  {}
func (NoopRecorder) IncPublished(bool)                            {}
