package network

import (
	"sort"

	"github.com/krfmo/gridsim/simkit"
	"github.com/krfmo/gridsim/trace"
)

type flowKey struct {
	src, dest simkit.EntityID
	class     int
}

type queueEntry struct {
	pkt    Packet
	finish float64
	seq    uint64
}

// Scheduler is a single FNB outport: an SCFQ queue of packets with a
// pluggable drop discipline, whitelist-protected rescue, and a
// deduplicated drop-notification side-channel (spec.md §4.7). One
// Scheduler instance serves one outgoing link.
type Scheduler struct {
	id          simkit.EntityID
	ctx         *simkit.SimContext
	classWeight map[int]float64
	drop        DropDiscipline
	whitelist   *simkit.Whitelist

	queue      []queueEntry
	flowFinish map[flowKey]float64
	cf         float64
	seq        uint64

	notified     map[string]bool // objectId+"|"+userId dedup
	droppedCount int

	sink         trace.Sink
	dropInterval int
	sizeInterval int
}

// NewScheduler creates an FNB scheduler for one outport. A nil sink
// defaults to trace.NopSink{}, matching C14's "core stays I/O-agnostic"
// requirement (SPEC_FULL.md §4.14).
func NewScheduler(id simkit.EntityID, ctx *simkit.SimContext, classWeight map[int]float64, drop DropDiscipline, sink trace.Sink) *Scheduler {
	if sink == nil {
		sink = trace.NopSink{}
	}
	return &Scheduler{
		id:          id,
		ctx:         ctx,
		classWeight: classWeight,
		drop:        drop,
		whitelist:   ctx.Whitelist,
		flowFinish:  make(map[flowKey]float64),
		notified:    make(map[string]bool),
		sink:        sink,
	}
}

func (s *Scheduler) clock() float64 {
	if s.ctx == nil {
		return 0
	}
	return s.ctx.Clock()
}

// Len reports the number of packets currently queued.
func (s *Scheduler) Len() int { return len(s.queue) }

// Idle reports whether the queue is currently empty.
func (s *Scheduler) Idle() bool { return len(s.queue) == 0 }

func (s *Scheduler) weight(class int) float64 {
	if w, ok := s.classWeight[class]; ok && w > 0 {
		return w
	}
	return 1
}

func (s *Scheduler) isWhitelisted(pkt Packet) bool {
	return s.whitelist != nil && (s.whitelist.Contains(pkt.Src) || s.whitelist.Contains(pkt.Dest))
}

// insert computes the SCFQ finish-time tag for pkt and inserts it in
// sorted order (spec.md §4.7): pktTime = max(prevFlowTime, CF) +
// size/weight[class]; the flow's reference becomes pktTime.
func (s *Scheduler) insert(pkt Packet) {
	key := flowKey{src: pkt.Src, dest: pkt.Dest, class: pkt.ClassType}
	prev := s.flowFinish[key]
	base := s.cf
	if prev >= s.cf {
		base = prev
	}
	finish := base + float64(pkt.Size)/s.weight(pkt.ClassType)
	s.flowFinish[key] = finish

	e := queueEntry{pkt: pkt, finish: finish, seq: s.seq}
	s.seq++
	idx := sort.Search(len(s.queue), func(i int) bool {
		if s.queue[i].finish != finish {
			return s.queue[i].finish > finish
		}
		return s.queue[i].seq > e.seq
	})
	s.queue = append(s.queue, queueEntry{})
	copy(s.queue[idx+1:], s.queue[idx:])
	s.queue[idx] = e
}

// evictData removes the oldest packet whose source and destination are
// both non-whitelisted, making room for a rescued control packet.
// Reports whether an evictable packet was found.
func (s *Scheduler) evictData() bool {
	victim := -1
	for i, e := range s.queue {
		if s.isWhitelisted(e.pkt) {
			continue
		}
		if victim < 0 || e.seq < s.queue[victim].seq {
			victim = i
		}
	}
	if victim < 0 {
		return false
	}
	s.queue = append(s.queue[:victim], s.queue[victim+1:]...)
	return true
}

// Enqueue admits pkt per the configured drop discipline. A whitelisted
// packet that would be dropped triggers an eviction rescue instead; if
// no data packet is evictable, a fatal ControlPlaneLostError is
// returned. A dropped non-whitelisted packet is recorded (and, unless
// junk, notified) with no error.
func (s *Scheduler) Enqueue(pkt Packet) error {
	admit := s.drop.Admit(s.clock(), len(s.queue))
	if !admit {
		if s.isWhitelisted(pkt) {
			if !s.evictData() {
				return &ControlPlaneLostError{SchedulerID: s.id, Packet: pkt}
			}
		} else {
			s.recordDrop(pkt)
			return nil
		}
	}
	s.insert(pkt)
	s.sampleBuffers()
	return nil
}

// Peek returns the head of the SCFQ queue without removing it.
func (s *Scheduler) Peek() (Packet, bool) {
	if len(s.queue) == 0 {
		return Packet{}, false
	}
	return s.queue[0].pkt, true
}

// Dequeue pops the head of the SCFQ queue, advancing CF to its finish
// tag (spec.md §4.7).
func (s *Scheduler) Dequeue() (Packet, bool) {
	if len(s.queue) == 0 {
		return Packet{}, false
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	s.cf = e.finish
	s.sampleBuffers()
	return e.pkt, true
}

// sampleBuffers persists one row of the per-scheduler Buffers and
// MaxBufferSize tables (spec.md §6) after every state-changing queue
// operation.
func (s *Scheduler) sampleBuffers() {
	st := s.Stats()
	s.sink.RecordBuffer(string(s.id), s.clock(), st.MaxP, st.MinTh, st.MaxTh, st.Avg, st.QueueSize)
	s.sizeInterval++
	s.sink.RecordBufferSize(string(s.id), s.sizeInterval, st.QueueSize)
}

// recordDrop counts the drop and, unless pkt is junk traffic, emits a
// deduplicated PACKET_DROPPED side-channel event to the source's output
// port (spec.md §4.7, Testable Property 6).
func (s *Scheduler) recordDrop(pkt Packet) {
	s.droppedCount++
	s.dropInterval++
	s.sink.RecordDrop(string(s.id), s.dropInterval, s.droppedCount)
	if pkt.IsJunk {
		return
	}
	key := pkt.ObjectID + "|" + string(pkt.UserID)
	if s.notified[key] {
		return
	}
	s.notified[key] = true
	if s.ctx == nil {
		return
	}
	s.ctx.Schedule(simkit.ScheduleNow, simkit.Event{
		Tag:  simkit.TagPacketDropped,
		Src:  s.id,
		Dest: simkit.EntityID(string(pkt.Src) + ".out"),
		Data: PacketDropped{ObjectID: pkt.ObjectID, UserID: pkt.UserID, IsFile: pkt.IsFile},
	})
}

// DroppedCount reports the total number of packets dropped so far.
func (s *Scheduler) DroppedCount() int { return s.droppedCount }

// Stats exposes the drop discipline's current snapshot plus queue
// length, for CSV trace output (spec.md §6).
func (s *Scheduler) Stats() Stats {
	st := s.drop.Stats()
	st.QueueSize = len(s.queue)
	return st
}

// Adapt runs the drop discipline's periodic self-update when it
// supports one (ARED); a no-op for FIFO/RED.
func (s *Scheduler) Adapt() {
	if a, ok := s.drop.(interface{ Adapt() }); ok {
		a.Adapt()
	}
}
