package job

import "github.com/krfmo/gridsim/peset"

// ReservationStatus is a reservation's lifecycle state (spec.md §3, §4.5):
// NOT_COMMITTED -> (COMMITTED -> IN_PROGRESS -> FINISHED) | CANCELLED | EXPIRED.
// REQUESTED and FAILED are transient/failure states a create attempt may
// pass through before a Reservation record even exists.
type ReservationStatus string

const (
	ReservationNotCommitted ReservationStatus = "NOT_COMMITTED"
	ReservationCommitted    ReservationStatus = "COMMITTED"
	ReservationInProgress   ReservationStatus = "IN_PROGRESS"
	ReservationFinished     ReservationStatus = "FINISHED"
	ReservationCancelled    ReservationStatus = "CANCELLED"
	ReservationExpired      ReservationStatus = "EXPIRED"
	ReservationFailed       ReservationStatus = "FAILED"
)

// Reservation is the server-side record of an advance reservation
// (spec.md §3). It owns a slab of PEs in the profile; jobs bound to it
// via ReservationID consume ranges out of that slab.
type Reservation struct {
	ID              string
	UserID          string
	StartTime       float64
	Duration        float64
	NumPE           int
	Status          ReservationStatus
	ExpiryTime      float64
	AllocatedRanges peset.List
	RemainingPE     int
	RemainingTime   float64
	// BoundJobIDs records the ids of jobs bound to this reservation;
	// reservation.Manager's finish and Cancel do not consult it.
	BoundJobIDs []string
}

// IsTerminal reports whether the reservation has reached a final status.
func (r *Reservation) IsTerminal() bool {
	switch r.Status {
	case ReservationFinished, ReservationCancelled, ReservationExpired, ReservationFailed:
		return true
	default:
		return false
	}
}

// CanAccept reports whether the reservation can still accept a job
// consuming reqPE PEs for reqTime starting at now (spec.md §4.4.5): it
// must be committed or already in progress, must have already reached
// its own StartTime (a reservation's slab isn't carved out of the shared
// profile until then — binding a job to it any earlier would double-book
// those PEs against whatever ordinary job the profile still considers
// them free for), and must have enough PEs and wall-clock time left
// before StartTime+Duration. RemainingTime is refreshed as a side effect
// so a caller inspecting the reservation afterward sees its current
// remaining window rather than a value frozen at creation time.
func (r *Reservation) CanAccept(now float64, reqPE int, reqTime float64) bool {
	if r.Status != ReservationCommitted && r.Status != ReservationInProgress {
		return false
	}
	if now < r.StartTime {
		return false
	}
	remaining := r.StartTime + r.Duration - now
	if remaining < 0 {
		remaining = 0
	}
	r.RemainingTime = remaining
	return r.RemainingPE >= reqPE && remaining >= reqTime
}
