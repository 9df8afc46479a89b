// Package ioport implements the I/O ports of spec.md §4.9 (C9): output
// port packetization and input port reassembly-by-count, the boundary
// between an entity's logical messages and the network's fragments.
package ioport

import (
	"math"

	"github.com/krfmo/gridsim/network"
	"github.com/krfmo/gridsim/simkit"
)

// Message is a logical end-to-end unit an entity hands to its output
// port: size in bytes (used to compute fragmentation and send delay) and
// the inner event to deliver whole, once reassembled, at the destination.
type Message struct {
	Dest      simkit.EntityID
	ObjectID  string
	UserID    simkit.EntityID
	IsFile    bool
	IsJunk    bool
	ClassType int
	Size      int64
	Inner     simkit.Event // delivered to Dest's owning entity once reassembled
}

// OutputPort packetizes outbound messages and forwards fragments toward
// router (its first-hop entity id, usually a router's id).
type OutputPort struct {
	id       simkit.EntityID
	ctx      *simkit.SimContext
	owner    simkit.EntityID
	router   simkit.EntityID
	mtu      int
	baudRate float64
}

// NewOutputPort creates the output port for owner, fragmenting messages
// to mtu-sized packets and forwarding every fragment toward router.
func NewOutputPort(owner simkit.EntityID, ctx *simkit.SimContext, router simkit.EntityID, mtu int, baudRate float64) *OutputPort {
	return &OutputPort{
		id:       simkit.EntityID(string(owner) + ".out"),
		ctx:      ctx,
		owner:    owner,
		router:   router,
		mtu:      mtu,
		baudRate: baudRate,
	}
}

func (o *OutputPort) ID() simkit.EntityID { return o.id }

// Send implements spec.md §4.9's output-port packetization: numPkts =
// ceil(size/MTU), with numPkts-1 empty packets and a final packet
// carrying the full end-to-end record (here, the deferred Inner event).
func (o *OutputPort) Send(msg Message) {
	mtu := o.mtu
	if mtu <= 0 {
		mtu = 1
	}
	numPkts := int(math.Ceil(float64(msg.Size) / float64(mtu)))
	if numPkts < 1 {
		numPkts = 1
	}
	for i := 0; i < numPkts; i++ {
		pkt := network.Packet{
			Src: o.owner, Dest: msg.Dest,
			ObjectID: msg.ObjectID, UserID: msg.UserID,
			IsFile: msg.IsFile, IsJunk: msg.IsJunk, ClassType: msg.ClassType,
			SeqNum: i, Total: numPkts, Size: int64(mtu),
		}
		if i == numPkts-1 {
			pkt.Size = msg.Size - int64(mtu)*int64(numPkts-1)
			pkt.Payload = msg.Inner
		}
		delay := float64(i) * float64(mtu) * 8 / o.baudRate
		if o.ctx != nil {
			o.ctx.Schedule(delay, simkit.Event{Tag: simkit.TagPktForward, Src: o.id, Dest: o.router, Data: pkt})
		}
	}
}

// onPacketDropped implements spec.md §4.7's translation step: a
// PACKET_DROPPED side-channel notification becomes a typed failure event
// to the object's user.
func (o *OutputPort) onPacketDropped(d network.PacketDropped) {
	tag := simkit.TagGridletFailedBecausePacketDropped
	if d.IsFile {
		tag = simkit.TagFileFailedBecausePacketDropped
	}
	if o.ctx != nil {
		o.ctx.Schedule(simkit.ScheduleNow, simkit.Event{Tag: tag, Src: o.id, Dest: d.UserID, Data: d.ObjectID})
	}
}

// HandleEvent implements simkit.Entity.
func (o *OutputPort) HandleEvent(ctx *simkit.SimContext, ev simkit.Event) error {
	switch ev.Tag {
	case simkit.TagPacketDropped:
		o.onPacketDropped(ev.Data.(network.PacketDropped))
	}
	return nil
}

type reassemblyKey struct {
	src      simkit.EntityID
	objectID string
}

type reassembly struct {
	expectedTotal int
	arrived       int
}

// InputPort reassembles incoming fragments by count and, once complete,
// dispatches the carried event to its owner. A fragment lost in transit
// (arrived < expectedTotal at the final, payload-bearing fragment)
// leaves the message silently discarded (spec.md §4.9).
type InputPort struct {
	id    simkit.EntityID
	ctx   *simkit.SimContext
	owner simkit.EntityID

	pending map[reassemblyKey]*reassembly
}

// NewInputPort creates the input port for owner.
func NewInputPort(owner simkit.EntityID, ctx *simkit.SimContext) *InputPort {
	return &InputPort{
		id:      simkit.EntityID(string(owner) + ".in"),
		ctx:     ctx,
		owner:   owner,
		pending: make(map[reassemblyKey]*reassembly),
	}
}

func (p *InputPort) ID() simkit.EntityID { return p.id }

// onFragment implements reassembly-by-count.
func (p *InputPort) onFragment(pkt network.Packet) {
	key := reassemblyKey{src: pkt.Src, objectID: pkt.ObjectID}
	r, ok := p.pending[key]
	if !ok {
		r = &reassembly{expectedTotal: pkt.Total}
		p.pending[key] = r
	}
	r.arrived++

	if pkt.Payload == nil {
		return // non-final fragment: count it and wait
	}

	delete(p.pending, key)
	if r.arrived != r.expectedTotal {
		return // corrupted: some fragment was dropped in transit
	}
	inner, ok := pkt.Payload.(simkit.Event)
	if !ok {
		return
	}
	if p.ctx != nil {
		p.ctx.Schedule(simkit.ScheduleNow, simkit.Event{Tag: inner.Tag, Src: inner.Src, Dest: p.owner, Data: inner.Data})
	}
}

// HandleEvent implements simkit.Entity.
func (p *InputPort) HandleEvent(ctx *simkit.SimContext, ev simkit.Event) error {
	if ev.Tag == simkit.TagPktForward {
		p.onFragment(ev.Data.(network.Packet))
	}
	return nil
}
