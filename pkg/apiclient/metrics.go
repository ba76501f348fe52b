package apiclient

import (
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// Counter names recorded by the client.
const (
	EventRequestSent     = "request.sent"
	EventRequestRetry    = "request.retry"
	EventRefreshSuccess  = "refresh.success"
	EventRefreshFailure  = "refresh.failure"
	EventRefreshCoalesce = "refresh.coalesced"
)

// MetricsRecorder increments counters for client events.
type MetricsRecorder interface {
	Increment(event string)
}

type noopMetrics struct{}

func (noopMetrics) Increment(string) {}

// CounterMetrics counts client events in memory. Events outside the client's own set are
// tallied together under Other.
type CounterMetrics struct {
	sent      atomic.Int64
	retried   atomic.Int64
	refreshed atomic.Int64
	failed    atomic.Int64
	coalesced atomic.Int64
	other     atomic.Int64
}

// NewCounterMetrics constructs an in-memory metrics recorder.
func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{}
}

// Increment increases the counter for the given event.
func (recorder *CounterMetrics) Increment(event string) {
	recorder.counter(event).Add(1)
}

// Count returns the current value for the given event.
func (recorder *CounterMetrics) Count(event string) int64 {
	return recorder.counter(event).Load()
}

// Totals reads every counter at once.
func (recorder *CounterMetrics) Totals() Totals {
	return Totals{
		Sent:          recorder.sent.Load(),
		Retried:       recorder.retried.Load(),
		Refreshed:     recorder.refreshed.Load(),
		RefreshFailed: recorder.failed.Load(),
		Coalesced:     recorder.coalesced.Load(),
		Other:         recorder.other.Load(),
	}
}

func (recorder *CounterMetrics) counter(event string) *atomic.Int64 {
	switch event {
	case EventRequestSent:
		return &recorder.sent
	case EventRequestRetry:
		return &recorder.retried
	case EventRefreshSuccess:
		return &recorder.refreshed
	case EventRefreshFailure:
		return &recorder.failed
	case EventRefreshCoalesce:
		return &recorder.coalesced
	default:
		return &recorder.other
	}
}

// Totals is a point-in-time copy of CounterMetrics.
type Totals struct {
	Sent          int64
	Retried       int64
	Refreshed     int64
	RefreshFailed int64
	Coalesced     int64
	Other         int64
}

// MarshalLogObject renders the totals as a zap object keyed by event name.
func (totals Totals) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddInt64(EventRequestSent, totals.Sent)
	encoder.AddInt64(EventRequestRetry, totals.Retried)
	encoder.AddInt64(EventRefreshSuccess, totals.Refreshed)
	encoder.AddInt64(EventRefreshFailure, totals.RefreshFailed)
	encoder.AddInt64(EventRefreshCoalesce, totals.Coalesced)
	if totals.Other > 0 {
		encoder.AddInt64("other", totals.Other)
	}
	return nil
}
