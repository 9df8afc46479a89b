// Package network implements the FNB packet scheduler of spec.md §4.7
// (C7): a per-outport SCFQ queue with a pluggable drop discipline
// (FIFO/RED/ARED), whitelist-protected control-packet rescue, and a
// deduplicated drop-notification side-channel.
package network

import "github.com/krfmo/gridsim/simkit"

// Packet is one link-level fragment of a logical end-to-end message.
// ObjectID identifies the logical message (a gridlet id or file name) so
// drop notifications and reassembly can be correlated across its
// fragments; UserID is who gets told if the message fails in transit.
type Packet struct {
	Src       simkit.EntityID
	Dest      simkit.EntityID
	ObjectID  string
	UserID    simkit.EntityID
	IsFile    bool
	IsJunk    bool // background/filler traffic: exempt from drop notification
	ClassType int
	Size      int64 // bytes
	SeqNum    int   // fragment index, 0-based
	Total     int   // total fragments this ObjectID was split into
	Payload   any   // non-nil only on the final (SeqNum == Total-1) fragment
}

// PacketDropped is the PACKET_DROPPED side-channel payload sent to a
// dropped packet's source output port (spec.md §4.7).
type PacketDropped struct {
	ObjectID string
	UserID   simkit.EntityID
	IsFile   bool
}

// ControlPlaneLostError reports that a whitelisted packet could not be
// rescued by evicting a data packet (spec.md §7's ControlPlaneLost kind).
// It is fatal: the caller should terminate the simulation.
type ControlPlaneLostError struct {
	SchedulerID simkit.EntityID
	Packet      Packet
}

func (e *ControlPlaneLostError) Error() string {
	return "network: control-plane packet lost at scheduler " + string(e.SchedulerID) +
		": no evictable data packet to rescue " + e.Packet.ObjectID
}
