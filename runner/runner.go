// Package runner wires a config.Scenario into a simkit.ManualKernel run:
// it is the demo harness the run command in cmd/root.go drives, exercising the same
// construction sequence a production deployment would use (one
// scheduling policy per resource, an optional reservation manager
// sharing its profile, jobs and reservations submitted as scheduled
// events) without depending on any concrete external kernel.
package runner

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/krfmo/gridsim/config"
	"github.com/krfmo/gridsim/job"
	"github.com/krfmo/gridsim/peset"
	"github.com/krfmo/gridsim/policy"
	"github.com/krfmo/gridsim/profile"
	"github.com/krfmo/gridsim/reservation"
	"github.com/krfmo/gridsim/simkit"
)

// resourcePolicyProfile is satisfied by every policy built on core
// (Aggressive, Conservative, Selective, ARConservative) and exposes the
// profile.Profile a reservation.Manager must share to keep booked slabs
// visible to ordinary scheduling.
type resourcePolicyProfile interface {
	Profile() *profile.Profile
}

// reservationStoreRef is a forward reference that breaks the
// construction cycle between ARConservative (which needs a
// policy.ReservationStore at construction) and reservation.Manager
// (which needs the policy's own shared profile.Profile instance,
// obtained only after the policy already exists). ref.mgr is set once
// the manager is built; Lookup before that point reports not-found.
type reservationStoreRef struct {
	mgr *reservation.Manager
}

func (r *reservationStoreRef) Lookup(id string) (*job.Reservation, bool) {
	if r.mgr == nil {
		return nil, false
	}
	return r.mgr.Lookup(id)
}

// ResourceResult is one resource's end-of-run policy snapshot.
type ResourceResult struct {
	ID       string
	Snapshot policy.Snapshot
	Warnings []string
}

// Result is the outcome of a completed scenario run.
type Result struct {
	Resources []ResourceResult
}

// Summary renders a short human-readable report, one line per resource
// plus one per job still running or waiting at the end of the run and
// one per recorded warning, for the CLI to print to stdout. Jobs that
// completed are not listed.
func (r *Result) Summary() []string {
	var lines []string
	for _, res := range r.Resources {
		lines = append(lines, fmt.Sprintf("resource %s: %d running, %d waiting", res.ID, len(res.Snapshot.Running), len(res.Snapshot.Waiting)))
		all := append(append([]*job.Job{}, res.Snapshot.Running...), res.Snapshot.Waiting...)
		sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
		for _, j := range all {
			lines = append(lines, fmt.Sprintf("  job %s: status=%s start=%.0f finish=%.0f", j.ID, j.Status, j.StartTime, j.FinishTime))
		}
		for _, w := range res.Warnings {
			lines = append(lines, "  warning: "+w)
		}
	}
	return lines
}

type builtResource struct {
	pol policy.Policy
	mgr *reservation.Manager
}

// Run constructs every resource named in scenario, submits its jobs and
// reservations as scheduled events, drains the kernel to completion, and
// returns a snapshot of each resource. Scenarios describe scheduling
// resources only; the network/storage side of this repo (C6-C9) is
// exercised by its own package tests, not by this YAML format — see
// SPEC_FULL.md §4.13 and DESIGN.md.
func Run(scenario *config.Scenario) (*Result, error) {
	k := simkit.NewManualKernel()
	ctx := simkit.NewSimContext(k)

	resources := make(map[string]*builtResource, len(scenario.Resources))
	for _, rs := range scenario.Resources {
		built, err := buildResource(ctx, rs)
		if err != nil {
			return nil, err
		}
		ctx.Registry.Register(built.pol)
		if built.mgr != nil {
			ctx.Registry.Register(built.mgr)
		}
		resources[rs.ID] = built
	}

	for _, rv := range scenario.Reservations {
		built, ok := resources[rv.Resource]
		if !ok || built.mgr == nil {
			logrus.Warnf("reservation %q: resource %q has no reservation manager (policy does not support reservations); skipped", rv.ID, rv.Resource)
			continue
		}
		rec := &job.Reservation{
			ID:        rv.ID,
			UserID:    rv.UserID,
			StartTime: rv.StartTime,
			Duration:  rv.Duration,
			NumPE:     rv.NumPE,
		}
		// Create immediately and commit at StartTime itself (ahead of the
		// start signal Create schedules for that same instant), so the
		// reservation passes through NOT_COMMITTED like a genuine
		// advance booking rather than auto-committing (Manager.Create
		// only auto-commits when StartTime==now, i.e. an immediate
		// reservation). A reservation requested for "now" (StartTime 0)
		// skips the separate commit: it is already COMMITTED on Create.
		ctx.Schedule(simkit.ScheduleNow, simkit.Event{Tag: simkit.TagResCreate, Dest: managerID(rv.Resource), Data: rec})
		if rv.StartTime > 0 {
			ctx.Schedule(rv.StartTime, simkit.Event{Tag: simkit.TagResCommit, Dest: managerID(rv.Resource), Data: rv.ID})
		}
	}

	for _, js := range scenario.Jobs {
		if _, ok := resources[js.Resource]; !ok {
			return nil, fmt.Errorf("job %q: unknown resource %q", js.ID, js.Resource)
		}
		j := &job.Job{
			ID:             js.ID,
			UserID:         simkit.EntityID(js.UserID),
			NumPE:          js.NumPE,
			Length:         js.Length,
			Priority:       js.Priority,
			SubmissionTime: js.SubmissionTime,
			ReservationID:  js.ReservationID,
			RequiredFiles:  js.RequiredFiles,
			PartitionID:    js.Partition, // multipartition hint; partitionMatcher below reads and clears it
			Status:         job.StatusReady,
		}
		ctx.Schedule(js.SubmissionTime, simkit.Event{Tag: simkit.TagGridletSubmit, Dest: simkit.EntityID(js.Resource), Data: j})
	}

	if err := k.Run(ctx); err != nil {
		return nil, fmt.Errorf("kernel run: %w", err)
	}

	result := &Result{}
	ids := make([]string, 0, len(resources))
	for id := range resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		res := resources[id]
		var warnings []string
		if w, ok := res.pol.(interface{ Warnings() []string }); ok {
			warnings = w.Warnings()
		}
		result.Resources = append(result.Resources, ResourceResult{
			ID:       id,
			Snapshot: res.pol.Snapshot(),
			Warnings: warnings,
		})
	}
	return result, nil
}

func managerID(resourceID string) simkit.EntityID {
	return simkit.EntityID(resourceID + "-resv")
}

func buildResource(ctx *simkit.SimContext, rs config.ResourceSpec) (*builtResource, error) {
	id := simkit.EntityID(rs.ID)
	rating := rs.Rating
	if rating <= 0 {
		rating = 1
	}
	commitPeriod := rs.CommitPeriod
	if commitPeriod <= 0 {
		commitPeriod = 1800
	}

	switch rs.Policy {
	case "aggressive":
		p := policy.NewAggressive(id, ctx, rs.TotalPE, rating, nil)
		return &builtResource{pol: p, mgr: shareReservationManager(ctx, id, commitPeriod, p, nil)}, nil
	case "conservative":
		p := policy.NewConservative(id, ctx, rs.TotalPE, rating)
		return &builtResource{pol: p, mgr: shareReservationManager(ctx, id, commitPeriod, p, p)}, nil
	case "selective":
		p := policy.NewSelective(id, ctx, rs.TotalPE, rating, nil)
		return &builtResource{pol: p, mgr: shareReservationManager(ctx, id, commitPeriod, p, nil)}, nil
	case "multipartition":
		if rs.TotalPE <= 0 {
			return nil, fmt.Errorf("resource %q: total_pe must be positive", rs.ID)
		}
		slabs, order, sizes := multiPartitionSlabs(rs)
		matcher := partitionMatcher(order, sizes)
		borrowing := rs.AllowBorrowing == nil || *rs.AllowBorrowing
		returnJob := rs.ReturnJob == nil || *rs.ReturnJob
		p := policy.NewMultiPartition(id, ctx, slabs, rating, borrowing, returnJob, matcher, nil)
		// MultiPartition books against a profile.Partitioned, not the
		// plain profile.Profile reservation.Manager shares with the
		// other four policies, so reservations against a multipartition
		// resource are not wired here; see DESIGN.md.
		return &builtResource{pol: p}, nil
	case "arconservative":
		ref := &reservationStoreRef{}
		p := policy.NewARConservative(id, ctx, rs.TotalPE, rating, ref)
		mgr := shareReservationManager(ctx, id, commitPeriod, p, p)
		ref.mgr = mgr
		return &builtResource{pol: p, mgr: mgr}, nil
	default:
		return nil, fmt.Errorf("resource %q: unknown policy %q", rs.ID, rs.Policy)
	}
}

// multiPartitionSlabs turns a ResourceSpec's declared partitions into the
// named, disjoint PE slabs policy.NewMultiPartition expects, falling back
// to one "default" partition spanning every PE when the scenario names
// none (config.Scenario.Validate already checked declared sizes sum to
// TotalPE). order preserves declaration order; sizes feeds
// partitionMatcher's first-fit fallback.
func multiPartitionSlabs(rs config.ResourceSpec) (slabs map[string]peset.List, order []string, sizes map[string]int) {
	if len(rs.Partitions) == 0 {
		slab := map[string]peset.List{"default": peset.Of(peset.Range{From: 0, To: rs.TotalPE - 1})}
		return slab, []string{"default"}, map[string]int{"default": rs.TotalPE}
	}
	slabs = make(map[string]peset.List, len(rs.Partitions))
	sizes = make(map[string]int, len(rs.Partitions))
	from := 0
	for _, part := range rs.Partitions {
		to := from + part.Size - 1
		slabs[part.ID] = peset.Of(peset.Range{From: from, To: to, QueueID: part.ID})
		sizes[part.ID] = part.Size
		order = append(order, part.ID)
		from = to + 1
	}
	return slabs, order, sizes
}

// partitionMatcher honors a job's explicit Partition hint (carried in
// job.Job.PartitionID by Run, ahead of the policy overwriting that same
// field with its match result) when it names a declared partition, and
// otherwise first-fits the job into the first partition whose own
// capacity could ever hold it, falling back to the last partition
// declared (letting MultiPartition.Submit's own capacity/returnJob check
// decide the job's fate) when none is big enough alone.
func partitionMatcher(order []string, sizes map[string]int) profile.PartitionMatcher {
	known := make(map[string]bool, len(order))
	for _, id := range order {
		known[id] = true
	}
	return func(item any) (string, bool) {
		if len(order) == 0 {
			return "", false
		}
		j, ok := item.(*job.Job)
		if !ok {
			return "", false
		}
		if j.PartitionID != "" && known[j.PartitionID] {
			return j.PartitionID, true
		}
		for _, id := range order {
			if sizes[id] >= j.NumPE {
				return id, true
			}
		}
		return order[len(order)-1], true
	}
}

// shareReservationManager builds a reservation.Manager bound to the
// exact profile.Profile instance withProfile's policy already reads
// from, so a committed reservation's slab is immediately reflected in
// that policy's own availability checks. compressor may be nil for
// policies that never compress (Aggressive, Selective).
func shareReservationManager(ctx *simkit.SimContext, id simkit.EntityID, commitPeriod float64, withProfile resourcePolicyProfile, compressor reservation.ScheduleCompressor) *reservation.Manager {
	return reservation.NewManager(managerID(string(id)), ctx, withProfile.Profile(), commitPeriod, compressor)
}
