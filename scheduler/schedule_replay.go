package scheduler

// replayCursor walks one output's recorded segment list during AsPreviously
// replay (§4.10). Output keeps the segments in record and the cursor in
// replayCursor.
type replayCursor struct {
	segs []Segment
	idx  int
}

func newReplayCursor(segs []Segment) *replayCursor {
	return &replayCursor{segs: segs}
}

// current returns the segment the cursor is positioned at, skipping the
// leading Version entry transparently. The trailing Footer is returned like
// any other segment, so the caller sees where the log ends.
func (c *replayCursor) current() (Segment, bool) {
	for c.idx < len(c.segs) {
		seg := c.segs[c.idx]
		if seg.Type == SegmentVersion {
			c.idx++
			continue
		}
		return seg, true
	}
	return Segment{}, false
}

func (c *replayCursor) advance() { c.idx++ }

func (c *replayCursor) done() bool {
	_, ok := c.current()
	return !ok
}

// inputBehindSegment reports whether in's current instruction ordinal has
// not yet reached seg.Value (start_instruction), meaning another output
// still owns it and this output must wait (§4.10).
func inputBehindSegment(in *Input, seg Segment) bool {
	return in.instructionOrdinal() < seg.Value
}

// segmentReachedStop reports whether in's reader has reached the segment's
// stop_instruction bound, meaning this output needs a new input (§4.4 step
// 5: "In AsPreviously, cross-check the recorded segment bounds").
func segmentReachedStop(in *Input, seg Segment) bool {
	return seg.StopInstruction != 0 && in.reader.InstructionOrdinal() >= seg.StopInstruction
}
