package scheduler

import "io"

// scheduleRecorder accumulates one output's segment log as the dispatcher
// makes decisions (§4.10). It is attached to an Output when
// Options.ScheduleRecordOstream is set.
type scheduleRecorder struct {
	segs       []Segment
	openIdx    int // index of the currently-open (unclosed) segment, or -1
	idleOpen   bool
}

func newScheduleRecorder() *scheduleRecorder {
	r := &scheduleRecorder{openIdx: -1}
	r.segs = append(r.segs, Segment{Type: SegmentVersion, Key: VersionCurrent})
	return r
}

// onSwitch closes the currently open segment (stamping its stop_instruction)
// and opens a new Default segment for newInput starting at its current
// instruction ordinal (§4.10).
func (r *scheduleRecorder) onSwitch(newInput *Input, stopInstr uint64, now uint64) {
	r.closeOpen(stopInstr)
	r.segs = append(r.segs, Segment{
		Type:      SegmentDefault,
		Key:       uint64(newInput.index),
		Value:     newInput.instructionOrdinal(),
		Timestamp: now,
	})
	r.openIdx = len(r.segs) - 1
	r.idleOpen = false
}

// onROISkip records a Skip(start,stop) + Default(stop) pair (§4.10). If
// this is the very first entry after the leading Version segment, a dummy
// Default(0,0) is inserted first so a segment log never begins with a Skip.
func (r *scheduleRecorder) onROISkip(in *Input, start, stop, now uint64) {
	if len(r.segs) == 1 { // only the Version segment so far
		r.segs = append(r.segs, Segment{Type: SegmentDefault, Key: uint64(in.index)})
	} else {
		r.closeOpen(start)
	}
	r.segs = append(r.segs, Segment{
		Type: SegmentSkip, Key: uint64(in.index), Value: start, StopInstruction: stop, Timestamp: now,
	})
	r.segs = append(r.segs, Segment{
		Type: SegmentDefault, Key: uint64(in.index), Value: stop, Timestamp: now,
	})
	r.openIdx = len(r.segs) - 1
	r.idleOpen = false
}

// onSyntheticEnd records a SyntheticEnd segment when an input's ROIs are
// exhausted (§4.8, §4.10).
func (r *scheduleRecorder) onSyntheticEnd(in *Input, stopInstr, now uint64) {
	r.closeOpen(stopInstr)
	r.segs = append(r.segs, Segment{Type: SegmentSyntheticEnd, Key: uint64(in.index), Timestamp: now})
	r.openIdx = -1
}

// onIdleStart opens (or extends) an Idle segment. Consecutive idles are
// merged by extending idle_duration rather than appending a new segment
// (§3 invariant 8, §4.10).
func (r *scheduleRecorder) onIdleStart(now uint64) {
	if r.idleOpen {
		return
	}
	// An Idle segment that has just ended is reopened and extended rather
	// than followed by a second, adjacent Idle segment.
	if n := len(r.segs); r.segs[n-1].Type == SegmentIdle {
		r.openIdx = n - 1
		r.idleOpen = true
		return
	}
	r.closeOpen(0)
	r.segs = append(r.segs, Segment{Type: SegmentIdle, Timestamp: now})
	r.openIdx = len(r.segs) - 1
	r.idleOpen = true
}

// onIdleEnd fills in the idle_duration of the open Idle segment.
func (r *scheduleRecorder) onIdleEnd(now uint64) {
	if !r.idleOpen || r.openIdx < 0 {
		return
	}
	r.segs[r.openIdx].Value = now - r.segs[r.openIdx].Timestamp
	r.idleOpen = false
	r.openIdx = -1
}

func (r *scheduleRecorder) closeOpen(stopInstr uint64) {
	if r.openIdx < 0 {
		return
	}
	r.segs[r.openIdx].StopInstruction = stopInstr
	r.openIdx = -1
}

// finish closes any still-open segment and appends the trailing Footer
// (§6: "a Footer is the last").
func (r *scheduleRecorder) finish(stopInstr uint64) []Segment {
	r.closeOpen(stopInstr)
	r.segs = append(r.segs, Segment{Type: SegmentFooter})
	return r.segs
}

// flush appends the recorder's segments, Version through Footer, to w as
// one snappy-framed run; the run is not named as an "output.%04d" component.
func (r *scheduleRecorder) flush(w io.Writer, stopInstr uint64) error {
	segs := r.finish(stopInstr)
	sw := newSegmentStreamWriter(w)
	for _, s := range segs {
		if err := sw.WriteSegment(s); err != nil {
			return err
		}
	}
	return sw.Close()
}
