package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepairChunkRegression_FixesWrapAroundBug(t *testing.T) {
	entries := []TracedScheduleEntry{
		{Thread: 1, StartInstruction: DefaultChunkSize - 10},
		{Thread: 2, StartInstruction: 5}, // wrapped: really DefaultChunkSize + 5
		{Thread: 1, StartInstruction: 20},
	}
	got, err := repairChunkRegression(entries)
	require.NoError(t, err)
	require.Equal(t, DefaultChunkSize+5, got[1].StartInstruction)
	require.Equal(t, DefaultChunkSize+20, got[2].StartInstruction)
}

func TestRepairChunkRegression_RejectsGenuineRegression(t *testing.T) {
	entries := []TracedScheduleEntry{
		{Thread: 1, StartInstruction: 100},
		{Thread: 2, StartInstruction: 50}, // regression nowhere near a chunk boundary
	}
	_, err := repairChunkRegression(entries)
	require.Error(t, err)
}

func TestDedupeZeroInstructionEntries_KeepsLaterDuplicate(t *testing.T) {
	entries := []TracedScheduleEntry{
		{Thread: 1, StartInstruction: 0, Timestamp: 1},
		{Thread: 1, StartInstruction: 0, Timestamp: 2},
		{Thread: 2, StartInstruction: 100, Timestamp: 3},
	}
	got := dedupeZeroInstructionEntries(entries)
	require.Len(t, got, 2)
	require.Equal(t, uint64(2), got[0].Timestamp)
}

func TestCollapseConsecutiveSameInput_MergesRuns(t *testing.T) {
	entries := []TracedScheduleEntry{
		{Thread: 1, StartInstruction: 0},
		{Thread: 1, StartInstruction: 10},
		{Thread: 2, StartInstruction: 20},
		{Thread: 2, StartInstruction: 30},
		{Thread: 1, StartInstruction: 40},
	}
	got := collapseConsecutiveSameInput(entries)
	require.Len(t, got, 3)
	require.Equal(t, uint64(1), got[0].Thread)
	require.Equal(t, uint64(2), got[1].Thread)
	require.Equal(t, uint64(1), got[2].Thread)
}

func TestGroupByCPU_SortsByCPUID(t *testing.T) {
	entries := []TracedScheduleEntry{
		{Thread: 1, CPU: 2, StartInstruction: 0},
		{Thread: 2, CPU: 0, StartInstruction: 0},
		{Thread: 3, CPU: 1, StartInstruction: 0},
	}
	cpus, byCPU, err := groupByCPU(entries)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 2}, cpus)
	require.Len(t, byCPU[0], 1)
}

func TestBuildSegmentLogsFromTraced_ProducesValidDefaultSegments(t *testing.T) {
	entries := []TracedScheduleEntry{
		{Thread: 100, CPU: 0, StartInstruction: 0, Timestamp: 1},
		{Thread: 101, CPU: 0, StartInstruction: 1000, Timestamp: 2},
		{Thread: 100, CPU: 0, StartInstruction: 2000, Timestamp: 3},
	}
	tidToInput := map[uint64]int{100: 0, 101: 1}

	logs, err := BuildSegmentLogsFromTraced(entries, tidToInput)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	log := logs[0]
	require.Equal(t, SegmentVersion, log[0].Type)
	require.Equal(t, SegmentFooter, log[len(log)-1].Type)
	require.NoError(t, validateSegmentLog(log))

	middle := log[1 : len(log)-1]
	require.Len(t, middle, 3)
	require.Equal(t, uint64(0), middle[0].Key)
	require.Equal(t, uint64(1000), middle[0].StopInstruction)
	require.Equal(t, uint64(1), middle[1].Key)
	require.Equal(t, uint64(2000), middle[1].StopInstruction)
}

func TestBuildSegmentLogsFromTraced_SkipsUnknownThreads(t *testing.T) {
	entries := []TracedScheduleEntry{
		{Thread: 999, CPU: 0, StartInstruction: 0, Timestamp: 1},
	}
	logs, err := BuildSegmentLogsFromTraced(entries, map[uint64]int{100: 0})
	require.NoError(t, err)
	require.Len(t, logs[0], 2) // Version + Footer only
}
