// Package policy implements the five scheduling policies of spec.md
// §4.4, all built on peset/profile/job. Following Design Notes §9, the
// policies share structure through composition (an embedded core, not a
// base class): Aggressive, Conservative, Selective and ARConservative
// embed core for the common waiting/running-list and profile
// bookkeeping, and add only the logic that differs. MultiPartition books
// against a profile.Partitioned and keeps its own lists.
package policy

import (
	"fmt"

	"github.com/krfmo/gridsim/job"
	"github.com/krfmo/gridsim/simkit"
)

// Snapshot is a read-only view of a policy's waiting/running lists, used
// by tests and the demo CLI's reporting.
type Snapshot struct {
	Waiting []*job.Job
	Running []*job.Job
}

// Policy is the capability set every scheduling policy implements.
type Policy interface {
	simkit.Entity
	// Submit validates and admits j. A job rejected at submission (more
	// PEs than the resource or partition offers, no matching partition,
	// an unknown reservation, or a reservation that has not started or
	// cannot hold it) gets j.Status FAILED and an error. An admitted job,
	// started or queued, returns nil with its placement in j.Status.
	Submit(j *job.Job) error
	// Cancel moves a waiting or running job to CANCELLED, releases its
	// profile allocation, and returns it. Returns an error if jobID is
	// unknown (NotFound).
	Cancel(jobID string) (*job.Job, error)
	Snapshot() Snapshot
}

// unsupportedOpError is returned for the move/pause/resume operations
// every policy rejects (spec.md §4.4.6); the policy also records a
// warning for each, readable through its Warnings method.
type unsupportedOpError struct {
	op string
}

func (e *unsupportedOpError) Error() string {
	return fmt.Sprintf("policy: %s is not supported (job migration/pause/resume are non-goals)", e.op)
}

// NotFoundError reports that a job or reservation id is unknown to the
// policy (spec.md §7 NotFound).
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("policy: unknown job %q", e.JobID) }
