// Package metrics is a small facade over a pluggable metrics backend.
// The default backend discards everything, so domain code can emit
// unconditionally.
package metrics

import (
	"sync"
	"time"
)

// Labels tags a metric sample.
type Labels map[string]string

// Backend receives metric samples. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer samples.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend replaces the active backend. Passing nil restores the
// discarding default.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func active() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter on the active backend.
func IncCounter(name string, delta float64, labels Labels) {
	active().IncCounter(name, delta, labels)
}

// ObserveHistogram records one histogram sample on the active backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	active().ObserveHistogram(name, value, labels)
}

// Flush drains the active backend if it buffers samples.
func Flush() error {
	if f, ok := active().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordImport emits the standard per-file import metrics: one file
// counter labelled with the outcome state, the inserted record count,
// and the wall-clock duration of the attempt.
func RecordImport(state string, records int64, elapsed time.Duration) {
	b := active()
	b.IncCounter("import_files_total", 1, Labels{"state": state})
	if records > 0 {
		b.IncCounter("import_records_total", float64(records), Labels{"state": state})
	}
	b.ObserveHistogram("import_file_duration_seconds", elapsed.Seconds(), Labels{"state": state})
}
