package scheduler

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, numOutputs int, numInputs int) (*Scheduler, []*Input) {
	opts := DefaultOptions()
	opts.NumOutputs = numOutputs
	s, err := NewScheduler(opts)
	require.NoError(t, err)

	var specs []InputSpec
	for i := 0; i < numInputs; i++ {
		specs = append(specs, InputSpec{
			Workload: "wl",
			Tid:      int64(100 + i),
			Pid:      1,
			Reader:   newFakeReader(NewMemrefInstruction(int64(100+i), 1, 0x1000, 4)),
		})
	}
	require.NoError(t, s.Init(context.Background(), specs))
	return s, s.inputs
}

func TestPickToAnyOutput_AssignsReadyInputToIdleOutput(t *testing.T) {
	s, inputs := newTestScheduler(t, 1, 2)
	o := s.outputs[0]
	status := s.pickNextInput(o, 0)
	require.Equal(t, StatusOK, status)
	require.NotNil(t, o.curInput)
	require.Contains(t, inputs, o.curInput)
}

func TestPickToAnyOutput_IdleWhenReadyQueueEmptyButInputsLive(t *testing.T) {
	s, _ := newTestScheduler(t, 2, 1)
	o0, o1 := s.outputs[0], s.outputs[1]
	require.Equal(t, StatusOK, s.pickNextInput(o0, 0))
	require.NotNil(t, o0.curInput)
	// Only one input exists and o0 already holds it; o1 has nothing eligible.
	require.Equal(t, StatusIdle, s.pickNextInput(o1, 0))
	require.Nil(t, o1.curInput)
}

func TestPickToAnyOutput_EOFWhenNoLiveInputsRemain(t *testing.T) {
	s, inputs := newTestScheduler(t, 1, 1)
	o := s.outputs[0]
	require.Equal(t, StatusOK, s.pickNextInput(o, 0))
	inputs[0].atEOF = true
	s.decrementLiveInputCount()
	status := s.pickNextInput(o, 0)
	require.Equal(t, StatusEOF, status)
	require.True(t, o.atEOF)
}

func TestPickToAnyOutput_BlockedTimeStampedOnOutgoing(t *testing.T) {
	s, inputs := newTestScheduler(t, 2, 2)
	o0 := s.outputs[0]
	require.Equal(t, StatusOK, s.pickNextInput(o0, 0))
	outgoing := o0.curInput
	require.Equal(t, StatusOK, s.pickNextInput(o0, 500))
	require.Equal(t, int64(500), outgoing.blockedTime)
	_ = inputs
}

func TestPickToAnyOutput_DirectSwitchFromReadyQueue(t *testing.T) {
	s, inputs := newTestScheduler(t, 1, 2)
	o := s.outputs[0]
	require.Equal(t, StatusOK, s.pickNextInput(o, 0))
	outgoing := o.curInput
	var target *Input
	for _, in := range inputs {
		if in != outgoing {
			target = in
		}
	}
	outgoing.switchToInput = target
	status := s.pickNextInput(o, 0)
	require.Equal(t, StatusOK, status)
	require.Equal(t, target, o.curInput)
	require.Equal(t, uint64(1), o.Stat(StatDirectSwitchSuccesses))
}

func TestPickToAnyOutput_DirectSwitchMissFallsBackToNormalSelection(t *testing.T) {
	s, inputs := newTestScheduler(t, 1, 2)
	o := s.outputs[0]
	require.Equal(t, StatusOK, s.pickNextInput(o, 0))
	outgoing := o.curInput
	var other *Input
	for _, in := range inputs {
		if in != outgoing {
			other = in
		}
	}
	// phantom is in no queue (it was never registered), so this is a miss;
	// other is still in the ready queue and is picked instead.
	phantom := NewInput(99, "wl", 999, 1, newFakeReader(), nil)
	outgoing.switchToInput = phantom
	status := s.pickNextInput(o, 0)
	require.Equal(t, StatusOK, status)
	require.True(t, phantom.skipNextUnscheduled)
	require.Equal(t, other, o.curInput)
}

func TestPickConsistent_NeverMigrates(t *testing.T) {
	opts := DefaultOptions()
	opts.Mapping = MappingToConsistentOutput
	opts.NumOutputs = 2
	s, err := NewScheduler(opts)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background(), []InputSpec{
		{Workload: "wl", Tid: 100, Pid: 1, Reader: newFakeReader()},
		{Workload: "wl", Tid: 101, Pid: 1, Reader: newFakeReader()},
	}))
	require.Equal(t, s.inputs[0], s.outputs[0].curInput)
	require.Equal(t, s.inputs[1], s.outputs[1].curInput)

	status := s.pickConsistent(s.outputs[0])
	require.Equal(t, StatusOK, status)

	s.outputs[0].curInput.atEOF = true
	status = s.pickConsistent(s.outputs[0])
	require.Equal(t, StatusEOF, status)
}

func TestPickTimestampOrdered_PicksEarliestTimestampFirst(t *testing.T) {
	opts := DefaultOptions()
	opts.Mapping = MappingTimestampOrdered
	opts.NumOutputs = 1
	s, err := NewScheduler(opts)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background(), []InputSpec{
		{Workload: "wl", Tid: 100, Pid: 1, Reader: newFakeReader()},
		{Workload: "wl", Tid: 101, Pid: 1, Reader: newFakeReader()},
	}))
	s.inputs[0].orderByTimestamp = true
	s.inputs[0].nextTimestamp = 500
	s.inputs[1].orderByTimestamp = true
	s.inputs[1].nextTimestamp = 10

	o := s.outputs[0]
	status := s.pickTimestampOrdered(o)
	require.Equal(t, StatusOK, status)
	require.Equal(t, s.inputs[1], o.curInput)
}

func TestPickAsPreviously_DrivesFromSegmentLog(t *testing.T) {
	opts := DefaultOptions()
	opts.Mapping = MappingAsPreviously
	var replayBuf bytes.Buffer
	w := newSegmentStreamWriter(&replayBuf)
	require.NoError(t, w.WriteSegment(Segment{Type: SegmentVersion, Key: VersionCurrent}))
	require.NoError(t, w.WriteSegment(Segment{Type: SegmentDefault, Key: 0, Value: 0, StopInstruction: 1000}))
	require.NoError(t, w.WriteSegment(Segment{Type: SegmentFooter}))
	require.NoError(t, w.Close())
	opts.ScheduleReplayIstream = bytes.NewReader(replayBuf.Bytes())
	opts.NumOutputs = 1

	s, err := NewScheduler(opts)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background(), []InputSpec{
		{Workload: "wl", Tid: 100, Pid: 1, Reader: newFakeReader()},
	}))

	o := s.outputs[0]
	status := s.pickAsPreviously(o)
	require.Equal(t, StatusOK, status)
	require.Equal(t, s.inputs[0], o.curInput)

	status = s.pickAsPreviously(o) // hits Footer
	require.Equal(t, StatusEOF, status)
	require.True(t, o.atEOF)
}

func TestFlushUnscheduled_MovesEveryEntryToReadyQueue(t *testing.T) {
	s, inputs := newTestScheduler(t, 1, 2)
	for _, in := range inputs {
		s.readyQ.erase(in)
		in.unscheduled = true
		s.unscheduledQ.push(in)
	}
	require.Equal(t, 2, s.unscheduledQ.Len())
	s.flushUnscheduled()
	require.Equal(t, 0, s.unscheduledQ.Len())
	require.Equal(t, 2, s.readyQ.Len())
	for _, in := range inputs {
		require.False(t, in.unscheduled)
	}
}
