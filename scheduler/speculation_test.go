package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartStopSpeculation_RestoresPC(t *testing.T) {
	o := NewOutput(0)
	o.speculatePC = 0x1000
	o.StartSpeculation(0x2000, false)
	require.True(t, o.inSpeculation())
	require.Equal(t, uint64(0x2000), o.speculatePC)

	require.NoError(t, o.StopSpeculation())
	require.False(t, o.inSpeculation())
	require.Equal(t, uint64(0x1000), o.speculatePC)
}

func TestStartSpeculation_NestedResumePoints(t *testing.T) {
	o := NewOutput(0)
	o.speculatePC = 0x1000
	o.StartSpeculation(0x2000, false)
	o.StartSpeculation(0x3000, false)
	require.Equal(t, uint64(0x3000), o.speculatePC)

	require.NoError(t, o.StopSpeculation())
	require.Equal(t, uint64(0x2000), o.speculatePC)
	require.True(t, o.inSpeculation())

	require.NoError(t, o.StopSpeculation())
	require.Equal(t, uint64(0x1000), o.speculatePC)
	require.False(t, o.inSpeculation())
}

func TestStopSpeculation_ErrorsWithoutActiveSpeculation(t *testing.T) {
	o := NewOutput(0)
	err := o.StopSpeculation()
	require.Error(t, err)
	require.True(t, AsError(err, KindInvalid))
}

func TestStartSpeculation_RequeuesPendingRecord(t *testing.T) {
	o := NewOutput(0)
	in := NewInput(0, "wl", 1, 1, newFakeReader(), nil)
	o.curInput = in
	pending := NewMemrefInstruction(1, 1, 0x1000, 4)
	o.lastRecord = pending

	o.StartSpeculation(0x5000, true)
	rec, ok := in.peekFront()
	require.True(t, ok)
	require.Equal(t, pending, rec)
}

func TestSpeculateNext_AdvancesPCViaSpeculator(t *testing.T) {
	o := NewOutput(0)
	o.StartSpeculation(0x1000, false)
	spec := NopSpeculator{Tid: 1, Pid: 1}

	rec, err := o.speculateNext(spec)
	require.NoError(t, err)
	require.True(t, rec.IsInstr())
	require.Equal(t, uint64(0x1000), rec.PC())
	require.Equal(t, uint64(0x1001), o.speculatePC)
}
