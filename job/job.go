// Package job defines the server-side job record and the forecast-time
// formula shared by every scheduling policy (spec.md §3, §4.3).
package job

import (
	"math"

	"github.com/krfmo/gridsim/peset"
	"github.com/krfmo/gridsim/simkit"
)

// Status is a job's lifecycle state (spec.md §3):
// READY -> QUEUED -> INEXEC -> (SUCCESS | FAILED | CANCELLED).
type Status string

const (
	StatusReady     Status = "READY"
	StatusQueued    Status = "QUEUED"
	StatusInExec    Status = "INEXEC"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Job is the server-side record of a submitted gridlet.
type Job struct {
	ID             string
	UserID         simkit.EntityID
	Length         float64 // MI (million instructions)
	NumPE          int
	Status         Status
	SubmissionTime float64
	StartTime      float64 // meaningful once QUEUED (reserved) or INEXEC
	FinishTime     float64
	AllocatedRanges peset.List // non-empty only while QUEUED or INEXEC
	PartitionID    string
	Priority       int
	ReservationID  string // "" if not bound to a reservation
	RequiredFiles  []string
}

// ForecastExecutionTime computes runTime = max(1, ceil(length/rating))
// (spec.md §4.3). The scheduler never assumes any relationship between
// this forecast and the job's actual run time.
func ForecastExecutionTime(rating, length float64) float64 {
	if rating <= 0 {
		return 1
	}
	t := math.Ceil(length / rating)
	if t < 1 {
		return 1
	}
	return t
}

// IsActive reports whether the job currently holds a profile reservation
// (QUEUED) or is running (INEXEC) — the only states where AllocatedRanges
// is meaningful.
func (j *Job) IsActive() bool {
	return j.Status == StatusQueued || j.Status == StatusInExec
}

// IsTerminal reports whether the job has reached a final status.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
