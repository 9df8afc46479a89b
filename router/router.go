// Package router implements the FNB router of spec.md §4.8 (C8): a link
// table, a per-link scheduler table, a RIP-style hop-count forwarding
// table, packet fragmentation on forward, and periodic ARED adaptation.
package router

import (
	"math"

	"github.com/krfmo/gridsim/network"
	"github.com/krfmo/gridsim/simkit"
)

// MaxHopCount bounds how far a route advertisement propagates before
// being ignored (spec.md §4.8's RIP-style protocol).
const MaxHopCount = 16

// Advertisement is the ROUTER_AD payload: "I can reach Host in HopCount
// hops."
type Advertisement struct {
	Host     simkit.EntityID
	HopCount int
}

type forwardEntry struct {
	NextHop  simkit.EntityID
	HopCount int
}

// dequeueTick is a router's self-event to pop and send the next fragment
// once a link scheduler goes from idle to non-idle.
type dequeueTick struct {
	Link string
}

// Router is one FNB router entity.
type Router struct {
	id  simkit.EntityID
	ctx *simkit.SimContext

	linkName   map[simkit.EntityID]string // neighbour router id -> link name
	schedulers map[string]*network.Scheduler
	baudRate   map[string]float64
	mtu        map[string]int
	busy       map[string]bool // true while a dequeue self-event is already pending

	forward map[simkit.EntityID]forwardEntry
	hosts   map[simkit.EntityID]bool

	maxHopCount int
}

// NewRouter creates an empty router with no neighbours or hosts yet.
func NewRouter(id simkit.EntityID, ctx *simkit.SimContext) *Router {
	return &Router{
		id:          id,
		ctx:         ctx,
		linkName:    make(map[simkit.EntityID]string),
		schedulers:  make(map[string]*network.Scheduler),
		baudRate:    make(map[string]float64),
		mtu:         make(map[string]int),
		busy:        make(map[string]bool),
		forward:     make(map[simkit.EntityID]forwardEntry),
		hosts:       make(map[simkit.EntityID]bool),
		maxHopCount: MaxHopCount,
	}
}

func (r *Router) ID() simkit.EntityID { return r.id }

func (r *Router) clock() float64 {
	if r.ctx == nil {
		return 0
	}
	return r.ctx.Clock()
}

func (r *Router) sendTo(dest simkit.EntityID, tag simkit.Tag, data any) {
	if r.ctx == nil {
		return
	}
	r.ctx.Schedule(simkit.ScheduleNow, simkit.Event{Tag: tag, Src: r.id, Dest: dest, Data: data})
}

// AddNeighbour attaches a link to another router, with its own outgoing
// scheduler, MTU and baud rate.
func (r *Router) AddNeighbour(neighbour simkit.EntityID, linkName string, sched *network.Scheduler, mtu int, baudRate float64) {
	r.linkName[neighbour] = linkName
	r.schedulers[linkName] = sched
	r.mtu[linkName] = mtu
	r.baudRate[linkName] = baudRate
}

// AddHost registers a directly-attached host, reachable in zero hops via
// itself. It sends no advertisement; Start advertises hosts to neighbours.
func (r *Router) AddHost(host simkit.EntityID, linkName string, sched *network.Scheduler, mtu int, baudRate float64) {
	r.hosts[host] = true
	r.linkName[host] = linkName
	r.schedulers[linkName] = sched
	r.mtu[linkName] = mtu
	r.baudRate[linkName] = baudRate
	r.forward[host] = forwardEntry{NextHop: host, HopCount: 0}
}

// Start advertises every directly-attached host to every neighbour
// router (spec.md §4.8: "on startup, each router advertises its attached
// hosts to neighbours").
func (r *Router) Start() {
	for host := range r.hosts {
		for neighbour := range r.linkName {
			if r.hosts[neighbour] {
				continue // hosts don't run the routing protocol
			}
			r.sendTo(neighbour, simkit.TagRouterAd, Advertisement{Host: host, HopCount: 1})
		}
	}
}

// onAdvertisement implements the RIP-style update-and-flood step.
func (r *Router) onAdvertisement(from simkit.EntityID, ad Advertisement) {
	if ad.HopCount > r.maxHopCount {
		return
	}
	cur, known := r.forward[ad.Host]
	if known && cur.HopCount <= ad.HopCount {
		return
	}
	r.forward[ad.Host] = forwardEntry{NextHop: from, HopCount: ad.HopCount}
	for neighbour := range r.linkName {
		if neighbour == from || r.hosts[neighbour] {
			continue
		}
		r.sendTo(neighbour, simkit.TagRouterAd, Advertisement{Host: ad.Host, HopCount: ad.HopCount + 1})
	}
}

// onForward fragments pkt into ceil(size/MTU) chunks (only the last
// carrying the payload) and enqueues each on the outgoing link's
// scheduler, kicking off a dequeue loop if the link was idle (spec.md
// §4.8).
func (r *Router) onForward(pkt network.Packet) error {
	entry, ok := r.forward[pkt.Dest]
	if !ok {
		return nil // no route known yet; packet silently has nowhere to go
	}
	linkName, ok := r.linkName[entry.NextHop]
	if !ok {
		return nil
	}
	sched := r.schedulers[linkName]
	mtu := r.mtu[linkName]
	if mtu <= 0 {
		mtu = 1
	}

	numPkts := int(math.Ceil(float64(pkt.Size) / float64(mtu)))
	if numPkts < 1 {
		numPkts = 1
	}
	for i := 0; i < numPkts; i++ {
		frag := pkt
		frag.SeqNum = i
		frag.Total = numPkts
		frag.Size = int64(mtu)
		if i == numPkts-1 {
			remainder := pkt.Size - int64(mtu)*int64(numPkts-1)
			frag.Size = remainder
		} else {
			frag.Payload = nil
		}
		if err := sched.Enqueue(frag); err != nil {
			return err
		}
	}
	r.kick(linkName)
	return nil
}

// kick schedules a dequeue self-event for linkName if one isn't already
// pending (spec.md §4.8: "when the scheduler was idle, schedule a
// self-event after size*8/baudRate to dequeue and send on the link").
func (r *Router) kick(linkName string) {
	if r.busy[linkName] {
		return
	}
	sched := r.schedulers[linkName]
	if sched == nil || sched.Idle() {
		return
	}
	head, ok := sched.Peek()
	if !ok {
		return
	}
	r.busy[linkName] = true
	delay := float64(head.Size) * 8 / r.baudRate[linkName]
	if r.ctx != nil {
		r.ctx.Schedule(delay, simkit.Event{Tag: simkit.TagUptSchedule, Src: r.id, Dest: r.id, Data: dequeueTick{Link: linkName}})
	}
}

// onDequeueTick pops one packet off linkName's scheduler, sends it
// onward (to the next hop's router, or to the destination host's input
// port if this is the last hop), and reschedules itself after a
// link-serialization delay if more packets remain.
func (r *Router) onDequeueTick(linkName string) {
	sched := r.schedulers[linkName]
	if sched == nil {
		return
	}
	pkt, ok := sched.Dequeue()
	if !ok {
		r.busy[linkName] = false
		return
	}

	entry := r.forward[pkt.Dest]
	if entry.HopCount == 0 {
		r.sendTo(simkit.EntityID(string(pkt.Dest)+".in"), simkit.TagPktForward, pkt)
	} else {
		r.sendTo(entry.NextHop, simkit.TagPktForward, pkt)
	}

	if sched.Idle() {
		r.busy[linkName] = false
		return
	}
	delay := float64(pkt.Size) * 8 / r.baudRate[linkName]
	if r.ctx != nil {
		r.ctx.Schedule(delay, simkit.Event{Tag: simkit.TagUptSchedule, Src: r.id, Dest: r.id, Data: dequeueTick{Link: linkName}})
	}
}

// AdaptSchedulers runs the periodic ARED-adaptation pass across every
// outgoing link scheduler (spec.md §4.8).
func (r *Router) AdaptSchedulers() {
	for _, sched := range r.schedulers {
		sched.Adapt()
	}
}

// HandleEvent implements simkit.Entity.
func (r *Router) HandleEvent(ctx *simkit.SimContext, ev simkit.Event) error {
	switch ev.Tag {
	case simkit.TagRouterAd:
		r.onAdvertisement(ev.Src, ev.Data.(Advertisement))
		return nil
	case simkit.TagPktForward:
		return r.onForward(ev.Data.(network.Packet))
	case simkit.TagUptSchedule:
		switch sig := ev.Data.(type) {
		case dequeueTick:
			r.onDequeueTick(sig.Link)
		}
		return nil
	case simkit.TagAredAdapt:
		r.AdaptSchedulers()
		return nil
	default:
		return nil
	}
}
