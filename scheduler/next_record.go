package scheduler

import (
	"context"
	"sync/atomic"
)

// NextRecord is the per-output streaming iterator of §4.4. It is the
// caller-facing "next_record" operation of §6: OK delivers rec, Wait/Idle
// ask the caller to retry, Skipped/EOF/Invalid are terminal or near-
// terminal for this call. Once an output has returned EOF, subsequent
// calls continue to return EOF (§7).
func (s *Scheduler) NextRecord(ctx context.Context, outputIdx int, curTime int64) (Record, Status, error) {
	o := s.outputs[outputIdx]
	o.curTime = curTime

	if o.atEOF {
		return nil, StatusEOF, nil
	}
	if !o.active {
		return nil, StatusIdle, nil
	}

	for {
		if o.inSpeculation() {
			if s.speculator == nil {
				return nil, StatusInvalid, errInvalid("speculation active but no speculator configured")
			}
			rec, err := o.speculateNext(s.speculator)
			if err != nil {
				return nil, StatusInvalid, err
			}
			o.deliverRecord(rec)
			return rec, StatusOK, nil
		}

		if o.curInput == nil {
			status := s.pickNextInput(o, 0)
			if status != StatusOK {
				return nil, status, nil
			}
			continue
		}

		rec, status, err := s.deliverFromInput(ctx, o, o.curInput)
		if err != nil {
			return nil, StatusInvalid, err
		}
		switch status {
		case StatusOK:
			o.deliverRecord(rec)
			return rec, StatusOK, nil
		case StatusWait, StatusSkipped:
			return nil, status, nil
		case StatusEOF:
			if o.atEOF {
				return nil, StatusEOF, nil
			}
			// The just-finished input hit EOF and a new one was installed;
			// retry delivery from o.curInput.
			continue
		default:
			return nil, status, nil
		}
	}
}

// deliverFromInput implements §4.4 steps 4-7 for a single input already
// selected as o.curInput. It returns StatusEOF (meaning "dispatch again",
// handled by the caller's loop) when the input or the dispatcher requested
// a new input and one was installed synchronously, or Wait/Skipped when the
// caller must retry later.
func (s *Scheduler) deliverFromInput(ctx context.Context, o *Output, in *Input) (Record, Status, error) {
	in.lock.Lock()

	rec, fromQueue, err := s.nextCandidate(ctx, in)
	if err != nil {
		in.lock.Unlock()
		return nil, StatusInvalid, err
	}
	if rec == nil {
		// Reader EOF: mark this input done and ask for a fresh pick.
		in.atEOF = true
		wasLive := !in.atEOFAlreadyCounted
		in.atEOFAlreadyCounted = true
		in.lock.Unlock()
		if wasLive {
			s.decrementLiveInputCount()
		}
		status := s.pickNextInput(o, 0)
		if status == StatusOK {
			return nil, StatusEOF, nil // caller loop re-reads via new o.curInput
		}
		return nil, status, nil
	}

	prev := o.lastRecord
	boundary := rec.IsInstrBoundary(prev)

	if !fromQueue && boundary {
		in.instrsPreRead = 0
	}
	if fromQueue && rec.IsInstr() && in.instrsPreRead > 0 {
		// The reader already counted this instruction toward
		// instruction_ordinal when it was first read; it is now being
		// exposed to a caller, so it leaves the pre-read count (invariant 3).
		in.instrsPreRead--
	}

	needNew := false
	var blockedTime int64

	o.postMarkerAdvance()

	if rec.Kind() == RecordMarker {
		nn, bt := s.processMarker(o, in, rec)
		needNew = needNew || nn
		if bt > 0 {
			blockedTime = bt
		}
	}

	if s.opts.Mapping == MappingAsPreviously && o.replayCursor != nil {
		if seg, ok := o.replayCursor.current(); ok && seg.Type == SegmentDefault && segmentReachedStop(in, seg) {
			needNew = true
		}
	}

	if s.opts.Mapping == MappingToAnyOutput && boundary && !o.inKernelCode && !o.inContextSwitchCode {
		if quantumCheck(in, o.curTime, &s.opts) {
			o.bumpStat(StatQuantumPreempts)
			needNew = true
		}
		if in.processingSyscall && rec.IsInstr() {
			postTS := in.reader.LastTimestamp()
			hasTS := in.reader.Version() >= TraceVersionFrequentTimestamps
			sw, bt := syscallIncursSwitch(in, postTS, hasTS, &s.opts)
			in.processingSyscall = false
			in.processingMaybeBlockingSyscall = false
			if sw {
				needNew = true
				blockedTime = bt
			}
		}
		in.syscallTimeoutArg = 0
	}

	if in.roiEnabled && !needNew && !rec.Synthetic() {
		outcome, win, rerr := s.advanceRegionOfInterest(ctx, in, rec)
		if rerr != nil {
			in.lock.Unlock()
			return nil, StatusInvalid, rerr
		}
		switch outcome {
		case roiExhausted:
			// The candidate that crossed the last region's bound was
			// discarded; a ThreadExit was queued in its place. Retry
			// delivery on the same input to hand that back instead.
			in.lock.Unlock()
			return s.deliverFromInput(ctx, o, in)
		case roiSkippedAhead:
			// The candidate was below the region's start and was discarded
			// by skip_instructions along with the rest of the queue; a
			// window marker, if any, is delivered now, otherwise retry to
			// pick up the freshly in-range record the skip landed on.
			if win != nil {
				in.lock.Unlock()
				return win, StatusOK, nil
			}
			in.lock.Unlock()
			return s.deliverFromInput(ctx, o, in)
		case roiEnteredRegion:
			// No skip was needed: the candidate was already at or past a
			// later region's start. The candidate was pushed back so the
			// window marker can be delivered first.
			in.lock.Unlock()
			return win, StatusOK, nil
		}
	}

	if needNew {
		// A marker's side effects (direct switch, unschedule) are fully
		// applied by processMarker in one shot; redelivering it later would
		// re-trigger them. Only an undelivered instruction is deferred, and
		// only then does its quantum increment need discharging.
		deferred := rec.Kind() != RecordMarker
		if deferred {
			in.pushFront(rec)
			if rec.IsInstr() {
				in.instrsPreRead++
			}
		}
		in.lock.Unlock()
		if deferred {
			dischargeQuantumOnSwitch(in, &s.opts)
		}
		status := s.pickNextInput(o, blockedTime)
		if status == StatusOK {
			return nil, StatusEOF, nil
		}
		return nil, status, nil
	}

	in.lock.Unlock()

	return rec, StatusOK, nil
}

// nextCandidate drains the front of in's queue, else advances the reader,
// honoring needs_advance so the first record after init is not skipped
// (§4.4 step 4). Returns (nil, false, nil) at clean EOF.
func (s *Scheduler) nextCandidate(ctx context.Context, in *Input) (Record, bool, error) {
	if rec, ok := in.popFront(); ok {
		return rec, true, nil
	}
	if in.atEOF {
		return nil, false, nil
	}
	if err := s.ensureInit(ctx, in); err != nil {
		return nil, false, err
	}
	if in.needsAdvance {
		in.needsAdvance = false
	}
	rec, ok, err := in.reader.Next(ctx)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return rec, false, nil
}

func (s *Scheduler) decrementLiveInputCount() {
	atomic.AddInt64(&s.liveInputCount, -1)
}
