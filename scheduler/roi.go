package scheduler

import "context"

// roiAdvanceOutcome is the result of advanceRegionOfInterest.
type roiAdvanceOutcome int

const (
	roiInRange roiAdvanceOutcome = iota
	roiSkippedAhead
	roiEnteredRegion
	roiExhausted
	roiInvalidRange
)

// validateRegions enforces §3 invariant 5: strictly ordered, non-overlapping
// ranges with at least a one-instruction gap, start_instruction >= 1.
func validateRegions(rois []RegionOfInterest) error {
	for i, r := range rois {
		if r.Start < 1 {
			return errInvalidParameter("region %d: start_instruction must be >= 1, got %d", i, r.Start)
		}
		if r.Stop != 0 && r.Stop <= r.Start {
			return errInvalidParameter("region %d: stop_instruction %d must exceed start_instruction %d", i, r.Stop, r.Start)
		}
		if i > 0 {
			prev := rois[i-1]
			if prev.Stop == 0 {
				return errInvalidParameter("region %d: an open-ended region cannot be followed by another region", i-1)
			}
			if r.Start <= prev.Stop {
				return errInvalidParameter("region %d overlaps region %d: gap of at least one instruction required", i, i-1)
			}
		}
	}
	return nil
}

// advanceRegionOfInterest implements §4.8. It must be called with in.lock
// held. windowRecord, when non-nil, is a synthesized WindowId marker that
// the caller should deliver instead of (ahead of) the pending candidate.
func (s *Scheduler) advanceRegionOfInterest(ctx context.Context, in *Input, candidate Record) (outcome roiAdvanceOutcome, windowRecord Record, err error) {
	region, ok := in.curROI()
	if !ok {
		return roiExhausted, nil, nil
	}
	cur := in.instructionOrdinal()

	if region.Stop != 0 && cur > region.Stop {
		in.curRegion++
		if _, ok := in.curROI(); !ok {
			in.atEOF = true
			in.pushBack(NewThreadExit(in.tid, in.pid))
			return roiExhausted, nil, nil
		}
		in.inCurRegion = false
		return s.advanceRegionOfInterest(ctx, in, candidate)
	}

	if cur >= region.Start {
		entering := !in.inCurRegion
		in.inCurRegion = true
		if !entering || (in.curRegion == 0 && !s.opts.EmitWindowIDForFirstRegion) {
			return roiInRange, nil, nil
		}
		// Landed on a later region's start without needing a skip (e.g. a
		// region immediately follows the previous one's stop). There's no
		// gap to report, but the caller still gets a WindowId marker so it
		// knows it has crossed into a new region.
		if candidate != nil {
			in.pushFront(candidate)
		}
		win := NewWindowMarker(int64(in.curRegion), in.tid, in.pid)
		return roiEnteredRegion, win, nil
	}

	// Not yet in range: push the candidate back, synthesize a WindowId
	// marker (suppressed for region 0 unless overridden), and skip ahead.
	if candidate != nil {
		in.pushFront(candidate)
	}
	var win Record
	if in.curRegion > 0 || s.opts.EmitWindowIDForFirstRegion {
		win = NewWindowMarker(int64(in.curRegion), in.tid, in.pid)
	}
	readerInstr := in.reader.InstructionOrdinal()
	skipAmount := region.Start - readerInstr - 1
	outc, serr := s.skipInstructions(ctx, in, skipAmount)
	if serr != nil {
		return roiInvalidRange, nil, serr
	}
	if outc == roiExhausted {
		return roiExhausted, nil, nil
	}
	// The skip leaves the reader just before region.Start, so the region is
	// entered here and win is its only WindowId marker.
	in.inCurRegion = true
	return roiSkippedAhead, win, nil
}

// skipInstructions implements §4.8's skip_instructions: clears the input
// queue (there must be no mid-queue instruction per invariant 4, aside from
// the one candidate already pushed back by the caller), asks the reader to
// skip, and resets instrs_pre_read.
func (s *Scheduler) skipInstructions(ctx context.Context, in *Input, n uint64) (roiAdvanceOutcome, error) {
	// Index 0 may legitimately be the one candidate the caller just pushed
	// back ahead of the skip; anything behind it must not be an instruction.
	for i, rec := range in.queue {
		if i > 0 && rec.IsInstr() {
			panic("skipInstructions: queue holds an instruction record mid-skip")
		}
	}
	in.queue = nil
	outcome, err := in.reader.SkipInstructions(ctx, n)
	in.instrsPreRead = 0
	switch outcome {
	case SkipOK:
		return roiInRange, nil
	case SkipEOF:
		if n == SkipToEOF {
			in.atEOF = true
			return roiExhausted, nil
		}
		return roiExhausted, errRangeInvalid("skip_instructions: reached EOF on a bounded skip of %d", n)
	case SkipOutOfBounds:
		return roiInvalidRange, errRangeInvalid("skip_instructions: skip of %d landed out of bounds", n)
	default:
		return roiInvalidRange, err
	}
}
