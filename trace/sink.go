// Package trace implements the CSV persistence layer of spec.md §6
// (C14): three stable-format tables per FNB scheduler, injected as a
// Sink so the core scheduling path (network, router) stays kernel- and
// I/O-agnostic (Design Notes §9).
package trace

// Sink receives per-scheduler samples as the simulation runs. A NopSink
// is the default: the core library never requires one.
type Sink interface {
	// RecordBuffer persists one <name>_Buffers.csv row. FIFO schedulers
	// pass zero for maxP/minTh/maxTh; CSVSink renders those as blank.
	RecordBuffer(name string, clock, maxP, minTh, maxTh, avg float64, queueSize int)
	// RecordDrop persists one <name>_DroppedPkts.csv row: the running
	// total of packets dropped as of the given sampling interval.
	// network.Scheduler calls it once per drop.
	RecordDrop(name string, interval, dropped int)
	// RecordBufferSize persists one <name>_MaxBufferSize.csv row for the
	// given sampling interval.
	RecordBufferSize(name string, interval, size int)
}

// NopSink discards every sample. It is the zero-value-friendly default
// for any component constructed without an explicit Sink.
type NopSink struct{}

func (NopSink) RecordBuffer(string, float64, float64, float64, float64, float64, int) {}
func (NopSink) RecordDrop(string, int, int)                                           {}
func (NopSink) RecordBufferSize(string, int, int)                                     {}
