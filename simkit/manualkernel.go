package simkit

import "container/heap"

// ManualKernel is a minimal, deterministic Kernel implementation used by
// package tests and by the demo CLI (config/cmd), grounded on the
// teacher's EventHeap discipline: ties at the same timestamp are broken
// by insertion order (FIFO), matching spec.md §5's ordering guarantees.
// It is NOT the production discrete-event kernel (that remains an
// external collaborator, spec.md §1) — it exists only so this module's
// tests and demo can drive entities without depending on one.
type ManualKernel struct {
	clock float64
	seq   uint64
	pq    manualEventQueue
}

// NewManualKernel creates a ManualKernel starting at time 0.
func NewManualKernel() *ManualKernel {
	k := &ManualKernel{}
	heap.Init(&k.pq)
	return k
}

type manualEntry struct {
	time float64
	seq  uint64
	ev   Event
}

type manualEventQueue []manualEntry

func (q manualEventQueue) Len() int { return len(q) }
func (q manualEventQueue) Less(i, j int) bool {
	if q[i].time != q[j].time {
		return q[i].time < q[j].time
	}
	return q[i].seq < q[j].seq
}
func (q manualEventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *manualEventQueue) Push(x any)    { *q = append(*q, x.(manualEntry)) }
func (q *manualEventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Clock implements Kernel.
func (k *ManualKernel) Clock() float64 { return k.clock }

// Schedule implements Kernel. delay must be >= 0.
func (k *ManualKernel) Schedule(delay float64, ev Event) {
	heap.Push(&k.pq, manualEntry{time: k.clock + delay, seq: k.seq, ev: ev})
	k.seq++
}

// Len reports the number of pending events.
func (k *ManualKernel) Len() int { return k.pq.Len() }

// Pop removes and returns the earliest pending event, advancing the
// clock to its time. Returns ok=false when the queue is empty.
func (k *ManualKernel) Pop() (Event, bool) {
	if k.pq.Len() == 0 {
		return Event{}, false
	}
	entry := heap.Pop(&k.pq).(manualEntry)
	k.clock = entry.time
	return entry.ev, true
}

// Run drains the queue, dispatching each event to ctx.Registry's matching
// entity, stopping early if dispatch returns an error.
func (k *ManualKernel) Run(ctx *SimContext) error {
	for {
		ev, ok := k.Pop()
		if !ok {
			return nil
		}
		e, found := ctx.Registry.Lookup(ev.Dest)
		if !found {
			continue
		}
		if err := e.HandleEvent(ctx, ev); err != nil {
			return err
		}
	}
}
