package scheduler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScheduleRecorder_OnSwitchClosesPriorSegment(t *testing.T) {
	r := newScheduleRecorder()
	inA := newTestInputWithReader(0, nil)
	inB := newTestInputWithReader(1, nil)

	r.onSwitch(inA, 0, 10)
	r.onSwitch(inB, 500, 20)

	require.Len(t, r.segs, 3) // Version, inA's Default, inB's Default
	require.Equal(t, uint64(500), r.segs[1].StopInstruction)
	require.Equal(t, uint64(1), r.segs[2].Key)
}

func TestScheduleRecorder_OnROISkipInsertsDummyDefaultWhenFirst(t *testing.T) {
	r := newScheduleRecorder()
	in := newTestInputWithReader(0, nil)

	r.onROISkip(in, 10, 100, 5)
	require.Len(t, r.segs, 4) // Version, dummy Default(0,0), Skip, Default(100)
	require.Equal(t, SegmentDefault, r.segs[1].Type)
	require.Zero(t, r.segs[1].Value)
	require.Equal(t, SegmentSkip, r.segs[2].Type)
	require.Equal(t, uint64(10), r.segs[2].Value)
	require.Equal(t, uint64(100), r.segs[2].StopInstruction)
	require.Equal(t, uint64(100), r.segs[3].Value)
}

func TestScheduleRecorder_OnSyntheticEndClosesAndMarksEnd(t *testing.T) {
	r := newScheduleRecorder()
	in := newTestInputWithReader(0, nil)
	r.onSwitch(in, 0, 1)
	r.onSyntheticEnd(in, 900, 50)

	last := r.segs[len(r.segs)-1]
	require.Equal(t, SegmentSyntheticEnd, last.Type)
	require.Equal(t, uint64(900), r.segs[len(r.segs)-2].StopInstruction)
}

func TestScheduleRecorder_IdleMergesConsecutiveCalls(t *testing.T) {
	r := newScheduleRecorder()
	r.onIdleStart(10)
	r.onIdleStart(15) // no-op: already open
	r.onIdleEnd(40)

	idleSegs := 0
	for _, s := range r.segs {
		if s.Type == SegmentIdle {
			idleSegs++
		}
	}
	require.Equal(t, 1, idleSegs)

	for _, s := range r.segs {
		if s.Type == SegmentIdle {
			require.Equal(t, uint64(30), s.Value)
		}
	}
}

func TestScheduleRecorder_FlushWritesValidSegmentLog(t *testing.T) {
	r := newScheduleRecorder()
	in := newTestInputWithReader(0, nil)
	r.onSwitch(in, 0, 1)

	var buf bytes.Buffer
	require.NoError(t, r.flush(&buf, 1000))

	segs, err := ReadAllSegments(&buf)
	require.NoError(t, err)
	require.Equal(t, SegmentVersion, segs[0].Type)
	require.Equal(t, SegmentFooter, segs[len(segs)-1].Type)
}
