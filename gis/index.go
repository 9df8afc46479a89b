// Package gis implements the regional/global index entity of spec.md
// §4.12 (C12): a pure registry lookup answering the INQUIRY_* event
// family, with no scheduling logic of its own.
package gis

import "github.com/krfmo/gridsim/simkit"

// ResourceInfo is what an Index knows about one registered resource:
// whether it accepts advance reservations and whether it hosts replica
// storage (the two filtered-list dimensions spec.md's INQUIRY_* family
// distinguishes).
type ResourceInfo struct {
	ID            simkit.EntityID
	SupportsAR    bool
	HostsReplicas bool
}

// InquiryResult is the reply payload for every INQUIRY_* tag: the
// filtered id list the requester asked for.
type InquiryResult struct {
	IDs []simkit.EntityID
}

// Index is one regional GIS entity. A global query fans out to every
// peer regional Index registered via AddRegionalPeer, merging results —
// this is what distinguishes INQUIRY_LOCAL_* from INQUIRY_GLOBAL_*.
type Index struct {
	id        simkit.EntityID
	ctx       *simkit.SimContext
	resources map[simkit.EntityID]ResourceInfo
	peers     []simkit.EntityID
}

// NewIndex creates an empty regional index.
func NewIndex(id simkit.EntityID, ctx *simkit.SimContext) *Index {
	return &Index{id: id, ctx: ctx, resources: make(map[simkit.EntityID]ResourceInfo)}
}

func (g *Index) ID() simkit.EntityID { return g.id }

// AddResource registers a resource this index knows about locally.
func (g *Index) AddResource(info ResourceInfo) {
	g.resources[info.ID] = info
}

// RemoveResource forgets a previously-registered resource.
func (g *Index) RemoveResource(id simkit.EntityID) {
	delete(g.resources, id)
}

// AddRegionalPeer registers another region's Index entity id, to be
// fanned out to on a GLOBAL inquiry.
func (g *Index) AddRegionalPeer(id simkit.EntityID) {
	g.peers = append(g.peers, id)
}

func (g *Index) localList(filter func(ResourceInfo) bool) []simkit.EntityID {
	ids := make([]simkit.EntityID, 0, len(g.resources))
	for _, info := range g.resources {
		if filter == nil || filter(info) {
			ids = append(ids, info.ID)
		}
	}
	return ids
}

// globalList merges this region's local list with every registered
// peer's local list, resolved directly through the shared SimContext
// registry (spec.md §4.12: "grounded on the same registry abstraction as
// C11" — peers are looked up in-process, not over a simulated network
// hop).
func (g *Index) globalList(filter func(ResourceInfo) bool) []simkit.EntityID {
	ids := g.localList(filter)
	if g.ctx == nil {
		return ids
	}
	for _, peerID := range g.peers {
		e, ok := g.ctx.Registry.Lookup(peerID)
		if !ok {
			continue
		}
		peer, ok := e.(*Index)
		if !ok {
			continue
		}
		ids = append(ids, peer.localList(filter)...)
	}
	return ids
}

func hostsReplicas(info ResourceInfo) bool { return info.HostsReplicas }
func supportsAR(info ResourceInfo) bool    { return info.SupportsAR }

func (g *Index) reply(ev simkit.Event, ids []simkit.EntityID) {
	if g.ctx == nil {
		return
	}
	g.ctx.Schedule(simkit.ScheduleNow, simkit.Event{
		Tag: ev.Tag, Src: g.id, Dest: ev.Src, Data: InquiryResult{IDs: ids},
	})
}

// HandleEvent implements simkit.Entity, answering every INQUIRY_* tag of
// spec.md §6 by replying to ev.Src with the matching filtered id list.
func (g *Index) HandleEvent(_ *simkit.SimContext, ev simkit.Event) error {
	switch ev.Tag {
	case simkit.TagInquiryLocalResourceList:
		g.reply(ev, g.localList(nil))
	case simkit.TagInquiryLocalResourceAR:
		g.reply(ev, g.localList(supportsAR))
	case simkit.TagInquiryGlobalResourceList:
		g.reply(ev, g.globalList(nil))
	case simkit.TagInquiryGlobalResourceAR:
		g.reply(ev, g.globalList(supportsAR))
	case simkit.TagInquiryLocalRCList:
		g.reply(ev, g.localList(hostsReplicas))
	case simkit.TagInquiryGlobalRCList:
		g.reply(ev, g.globalList(hostsReplicas))
	case simkit.TagInquiryRegionalGIS:
		ids := make([]simkit.EntityID, 0, len(g.peers)+1)
		ids = append(ids, g.id)
		ids = append(ids, g.peers...)
		g.reply(ev, ids)
	}
	return nil
}
