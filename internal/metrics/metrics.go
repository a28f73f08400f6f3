package metrics

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// Package metrics provides a small instrumentation surface with a no-op
// default. A Prometheus-backed recorder is installed when
// METRICS_PROMETHEUS is set.

// Recorder receives counters and timings for store operations and tool calls.
type Recorder interface {
	IncStoreOpTotal(op string, success bool)
	ObserveStoreOpSeconds(op string, success bool, seconds float64)
	IncToolCallTotal(tool string, success bool)
	ObserveToolCallSeconds(tool string, success bool, seconds float64)
}

type noopRecorder struct{}

func (noopRecorder) IncStoreOpTotal(string, bool)                 {}
func (noopRecorder) ObserveStoreOpSeconds(string, bool, float64)  {}
func (noopRecorder) IncToolCallTotal(string, bool)                {}
func (noopRecorder) ObserveToolCallSeconds(string, bool, float64) {}

var (
	recMu    sync.RWMutex
	recorder Recorder = noopRecorder{}
)

// Default returns the current recorder.
func Default() Recorder {
	recMu.RLock()
	defer recMu.RUnlock()
	return recorder
}

// SetRecorder swaps the global recorder implementation.
func SetRecorder(r Recorder) {
	recMu.Lock()
	defer recMu.Unlock()
	recorder = r
}

// TimeOp times a store operation. Call the returned func when the op completes.
func TimeOp(op string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncStoreOpTotal(op, success)
		Default().ObserveStoreOpSeconds(op, success, dur)
	}
}

// TimeTool times a tool invocation end to end.
func TimeTool(tool string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncToolCallTotal(tool, success)
		Default().ObserveToolCallSeconds(tool, success, dur)
	}
}

// InitFromEnv installs the Prometheus recorder when METRICS_PROMETHEUS is
// set, exposing /metrics and /healthz on METRICS_ADDR (default :9090).
func InitFromEnv() {
	if os.Getenv("METRICS_PROMETHEUS") == "" {
		return
	}
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	if err := enablePrometheus(addr); err != nil {
		slog.Error("metrics exporter disabled", "addr", addr, "error", err)
	}
}
