package scheduler

import (
	"container/heap"
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// pickNextInput implements §4.3's pick_next_input for ToAnyOutput, and the
// simpler static/replay variants for the other four mapping modes. It
// installs a new cur_input on o (possibly nil, meaning Idle/EOF) and
// returns the outcome.
func (s *Scheduler) pickNextInput(o *Output, blockedTime int64) Status {
	switch s.opts.Mapping {
	case MappingToConsistentOutput:
		return s.pickConsistent(o)
	case MappingAsPreviously:
		return s.pickAsPreviously(o)
	case MappingTimestampOrdered:
		return s.pickTimestampOrdered(o)
	default:
		return s.pickToAnyOutput(o, blockedTime)
	}
}

// pickToAnyOutput is the dynamic dispatch algorithm of §4.3.
func (s *Scheduler) pickToAnyOutput(o *Output, blockedTime int64) Status {
	s.schedLock.Lock()
	defer s.schedLock.Unlock()

	outgoing := o.curInput

	// Step 1: stamp blocked_time on the outgoing input unless already set.
	if blockedTime > 0 && outgoing != nil {
		withInput(outgoing, func() {
			if outgoing.blockedTime == 0 {
				outgoing.blockedTime = blockedTime
				outgoing.blockedStartTime = o.curTime
			}
		})
	}

	// Step 2: honor a pending direct-switch request on the outgoing input.
	if outgoing != nil {
		var target *Input
		withInput(outgoing, func() { target = outgoing.switchToInput; outgoing.switchToInput = nil })
		if target != nil {
			if s.readyQ.erase(target) {
				return s.completeDirectSwitch(o, outgoing, target, false)
			}
			if s.unscheduledQ.erase(target) {
				withInput(target, func() { target.unscheduled = false })
				return s.completeDirectSwitch(o, outgoing, target, true)
			}
			if s.opts.Verbosity >= 1 {
				logDirectSwitchMiss(target)
			}
			withInput(target, func() { target.skipNextUnscheduled = true })
			// fall through to normal selection below
		}
	}

	now := o.curTime
	if s.readyQ.Len() == 0 && blockedTime == 0 && !s.readyQ.hasEligible(o.index, now) {
		if outgoing == nil || outgoing.atEOF {
			return s.handleEmptyReady(o)
		}
		s.bumpSwitchStat(o, outgoing, outgoing)
		return StatusOK
	}

	s.requeueOutgoing(outgoing)

	var picked *Input
	var ok bool
	if s.opts.RandomizeNextInput {
		picked, ok = s.readyQ.randomEntry(o.index, s.rng)
	} else {
		picked, ok = s.readyQ.popEligible(o.index, now)
	}
	if !ok {
		return s.handleEmptyReady(o)
	}
	s.installCurInput(o, picked)
	s.bumpSwitchStat(o, outgoing, picked)
	if picked != outgoing && picked.prevOutput != nil && picked.prevOutput != o {
		o.bumpStat(StatMigrations)
	}
	return StatusOK
}

func (s *Scheduler) completeDirectSwitch(o *Output, outgoing, target *Input, wasUnscheduled bool) Status {
	withInput(target, func() { target.blockedTime = 0; target.blockedStartTime = 0 })
	o.bumpStat(StatDirectSwitchSuccesses)
	if target.prevOutput != nil && target.prevOutput != o {
		o.bumpStat(StatMigrations)
	}
	s.requeueOutgoing(outgoing)
	s.installCurInput(o, target)
	return StatusOK
}

// requeueOutgoing returns the input an output is giving up to whichever
// queue matches its state (§3 invariant 6): unscheduled inputs go to the
// unscheduled queue, everything else still live goes to the ready queue.
func (s *Scheduler) requeueOutgoing(outgoing *Input) {
	if outgoing == nil || outgoing.atEOF {
		return
	}
	if outgoing.unscheduled {
		s.unscheduledQ.push(outgoing)
		return
	}
	s.readyQ.push(outgoing)
}

// handleEmptyReady implements the EOF/idle terminal logic of §4.9 for
// ToAnyOutput.
func (s *Scheduler) handleEmptyReady(o *Output) Status {
	if atomic.LoadInt64(&s.liveInputCount) == 0 {
		o.curInput = nil
		o.atEOF = true
		return StatusEOF
	}
	if s.unscheduledQ.Len() > 0 {
		if !o.waiting {
			o.waiting = true
			o.waitStart = o.curTime
		} else if o.curTime-o.waitStart >= s.opts.BlockTimeMaxUs*s.opts.TimeUnitsPerUs {
			s.flushUnscheduled()
			o.waiting = false
			picked, ok := s.readyQ.popEligible(o.index, o.curTime)
			if ok {
				s.installCurInput(o, picked)
				return StatusOK
			}
		}
		o.curInput = nil
		return StatusIdle
	}
	o.curInput = nil
	return StatusIdle
}

// flushUnscheduled moves every unscheduled input back to the ready queue,
// breaking hangs caused by a missing schedule/direct-switch target (§4.9,
// §8 scenario 6).
func (s *Scheduler) flushUnscheduled() {
	for _, in := range s.unscheduledQ.drainAll() {
		withInput(in, func() {
			in.unscheduled = false
			in.blockedTime = 0
			in.blockedStartTime = 0
		})
		s.readyQ.push(in)
	}
}

func (s *Scheduler) installCurInput(o *Output, in *Input) {
	o.prevInput = o.curInput
	o.curInput = in
	in.prevOutput = o
	if s.recorders != nil && s.recorders[o.index] != nil {
		r := s.recorders[o.index]
		// The segment being closed belongs to the input that ran before, so
		// its stop_instruction is that input's ordinal.
		stop := uint64(0)
		if r.openIdx >= 0 && r.segs[r.openIdx].Type == SegmentDefault {
			stop = s.inputs[r.segs[r.openIdx].Key].instructionOrdinal()
		}
		r.onSwitch(in, stop, uint64(o.curTime))
	}
	if len(s.switchSequence) > 0 {
		s.injectSwitchSequence(o, o.prevInput, in)
	}
}

func (s *Scheduler) bumpSwitchStat(o *Output, outgoing, incoming *Input) {
	switch {
	case outgoing == incoming && outgoing != nil:
		o.bumpStat(StatSwitchNop)
	case outgoing != nil && incoming != nil:
		o.bumpStat(StatSwitchInToIn)
	case outgoing != nil && incoming == nil:
		o.bumpStat(StatSwitchInToIdle)
	case outgoing == nil && incoming != nil:
		o.bumpStat(StatSwitchIdleToIn)
	}
}

// pickConsistent never migrates: an output either keeps its statically
// assigned input or is EOF (§4.1 ToConsistentOutput).
func (s *Scheduler) pickConsistent(o *Output) Status {
	if o.curInput == nil || o.curInput.atEOF {
		o.curInput = nil
		return StatusEOF
	}
	return StatusOK
}

// pickAsPreviously drives an output purely from its recorded segment log
// (§4.1, §4.10).
func (s *Scheduler) pickAsPreviously(o *Output) Status {
	if o.replayCursor == nil {
		o.replayCursor = newReplayCursor(o.record)
	}
	seg, ok := o.replayCursor.current()
	if !ok {
		o.curInput = nil
		o.atEOF = true
		atomic.AddInt64(&s.liveReplayOutputCount, -1)
		return StatusEOF
	}
	switch seg.Type {
	case SegmentFooter:
		o.replayCursor.advance()
		o.curInput = nil
		o.atEOF = true
		atomic.AddInt64(&s.liveReplayOutputCount, -1)
		return StatusEOF
	case SegmentIdle:
		if !o.waiting {
			o.waiting = true
			o.waitStart = o.curTime
		}
		if uint64(o.curTime-o.waitStart) >= seg.Value {
			o.waiting = false
			o.replayCursor.advance()
			return s.pickAsPreviously(o)
		}
		return StatusIdle
	case SegmentSyntheticEnd:
		in := s.inputs[seg.Key]
		withInput(in, func() { in.pushBack(NewThreadExit(in.tid, in.pid)) })
		o.replayCursor.advance()
		s.installCurInput(o, in)
		return StatusOK
	case SegmentSkip:
		in := s.inputs[seg.Key]
		if _, err := s.skipInstructions(context.Background(), in, seg.StopInstruction-seg.Value); err != nil {
			return StatusInvalid
		}
		o.replayCursor.advance()
		return s.pickAsPreviously(o)
	case SegmentDefault:
		in := s.inputs[seg.Key]
		if inputBehindSegment(in, seg) {
			return StatusWait
		}
		o.replayCursor.advance()
		s.installCurInput(o, in)
		return StatusOK
	default:
		return StatusInvalid
	}
}

// pickTimestampOrdered implements the single-output TimestampOrdered mode
// (DEPENDENCY_TIMESTAMPS with a single output, §4.1): a serial ordering of
// inputs by next timestamp, reusing the ready queue's timestamp ordering.
// That ordering covers only inputs whose orderByTimestamp and nextTimestamp
// fields are set; no reader path in this package sets them, so inputs left
// unset are taken in queue order.
func (s *Scheduler) pickTimestampOrdered(o *Output) Status {
	s.schedLock.Lock()
	defer s.schedLock.Unlock()
	if o.curInput != nil && !o.curInput.atEOF {
		s.readyQ.push(o.curInput)
	}
	// Queued inputs' timestamps can change while they wait, so the heap
	// order is rebuilt before taking the earliest.
	heap.Init(s.readyQ)
	picked, ok := s.readyQ.popTop()
	if !ok {
		if atomic.LoadInt64(&s.liveInputCount) == 0 {
			o.curInput = nil
			o.atEOF = true
			return StatusEOF
		}
		o.curInput = nil
		return StatusIdle
	}
	s.installCurInput(o, picked)
	return StatusOK
}

func logDirectSwitchMiss(target *Input) {
	logrus.Debugf("direct switch miss: target tid=%d not found in ready or unscheduled queue", target.tid)
}
