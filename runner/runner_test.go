package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krfmo/gridsim/config"
	"github.com/krfmo/gridsim/job"
)

func TestRunAggressiveTwoJobsBothSucceed(t *testing.T) {
	scenario := &config.Scenario{
		Resources: []config.ResourceSpec{
			{ID: "r1", TotalPE: 10, Policy: "aggressive", Rating: 1},
		},
		Jobs: []config.JobSpec{
			{ID: "j1", Resource: "r1", NumPE: 4, Length: 5, SubmissionTime: 0},
			{ID: "j2", Resource: "r1", NumPE: 4, Length: 5, SubmissionTime: 0},
		},
	}
	require.NoError(t, scenario.Validate())

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Resources, 1)
	res := result.Resources[0]
	assert.Equal(t, "r1", res.ID)
	assert.Empty(t, res.Snapshot.Waiting)
	assert.Empty(t, res.Snapshot.Running, "both jobs should have completed by end of run")
}

func TestRunConservativeDrainsBothJobsEvenWhenOneMustQueue(t *testing.T) {
	// r1 has only enough PEs for one of the two jobs at a time, so the
	// second is booked a future start by Conservative instead of
	// running concurrently; the kernel still drains to both completing.
	scenario := &config.Scenario{
		Resources: []config.ResourceSpec{
			{ID: "r1", TotalPE: 4, Policy: "conservative", Rating: 1},
		},
		Jobs: []config.JobSpec{
			{ID: "big1", Resource: "r1", NumPE: 4, Length: 10, SubmissionTime: 0},
			{ID: "big2", Resource: "r1", NumPE: 4, Length: 10, SubmissionTime: 0},
		},
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	res := result.Resources[0]
	assert.Empty(t, res.Snapshot.Running)
	assert.Empty(t, res.Snapshot.Waiting)
}

func TestRunARConservativeBindsJobToReservation(t *testing.T) {
	scenario := &config.Scenario{
		Resources: []config.ResourceSpec{
			{ID: "r1", TotalPE: 50, Policy: "arconservative", Rating: 1},
		},
		Reservations: []config.ReservationSpec{
			{ID: "res1", Resource: "r1", NumPE: 30, StartTime: 0, Duration: 100},
		},
		Jobs: []config.JobSpec{
			{ID: "bound", Resource: "r1", NumPE: 10, Length: 5, SubmissionTime: 0, ReservationID: "res1"},
		},
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	res := result.Resources[0]
	all := append(append([]*job.Job{}, res.Snapshot.Running...), res.Snapshot.Waiting...)
	require.Len(t, all, 0, "the job finishes (length 5) well before the reservation's 100-unit duration expires")
}

func TestRunRejectsUnknownResourceReference(t *testing.T) {
	scenario := &config.Scenario{
		Resources: []config.ResourceSpec{{ID: "r1", TotalPE: 4, Policy: "aggressive"}},
		Jobs:      []config.JobSpec{{ID: "j1", Resource: "ghost", NumPE: 1, Length: 1}},
	}
	_, err := Run(scenario)
	assert.Error(t, err)
}

func TestRunMultiPartitionHonorsDeclaredPartitionsAndBorrowingKnob(t *testing.T) {
	no := false
	scenario := &config.Scenario{
		Resources: []config.ResourceSpec{
			{
				ID: "r1", TotalPE: 16, Policy: "multipartition", Rating: 1,
				AllowBorrowing: &no,
				Partitions:     []config.PartitionSpec{{ID: "A", Size: 10}, {ID: "B", Size: 6}},
			},
		},
		Jobs: []config.JobSpec{
			{ID: "a1", Resource: "r1", NumPE: 10, Length: 5, SubmissionTime: 0, Partition: "A"},
			{ID: "b1", Resource: "r1", NumPE: 6, Length: 5, SubmissionTime: 0, Partition: "B"},
		},
	}
	require.NoError(t, scenario.Validate())
	result, err := Run(scenario)
	require.NoError(t, err)
	res := result.Resources[0]
	assert.Empty(t, res.Snapshot.Waiting)
	assert.Empty(t, res.Snapshot.Running, "both jobs fit their own declared partition and complete by end of run")
}

func TestRunMultiPartitionReturnJobFalseQueuesOverCapacityJobInstead(t *testing.T) {
	no := false
	scenario := &config.Scenario{
		Resources: []config.ResourceSpec{
			{
				ID: "r1", TotalPE: 16, Policy: "multipartition", Rating: 1,
				AllowBorrowing: &no,
				ReturnJob:      &no,
				Partitions:     []config.PartitionSpec{{ID: "A", Size: 10}, {ID: "B", Size: 6}},
			},
		},
		Jobs: []config.JobSpec{
			{ID: "big", Resource: "r1", NumPE: 12, Length: 5, SubmissionTime: 0, Partition: "A"},
		},
	}
	require.NoError(t, scenario.Validate())
	result, err := Run(scenario)
	require.NoError(t, err)
	res := result.Resources[0]
	require.Len(t, res.Snapshot.Waiting, 1, "returnJob=false must queue rather than fail the over-capacity job")
	assert.Equal(t, job.StatusQueued, res.Snapshot.Waiting[0].Status)
	assert.NotEmpty(t, res.Warnings)
}

func TestRunSkipsReservationOnUnsupportedPolicy(t *testing.T) {
	scenario := &config.Scenario{
		Resources: []config.ResourceSpec{{ID: "r1", TotalPE: 4, Policy: "multipartition"}},
		Reservations: []config.ReservationSpec{
			{ID: "res1", Resource: "r1", NumPE: 2, StartTime: 10, Duration: 5},
		},
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.Len(t, result.Resources, 1)
}
