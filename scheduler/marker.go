package scheduler

import "github.com/sirupsen/logrus"

// processMarker applies the side effects of §4.6 for a marker record just
// read from in, while in's lock is held by the caller (deliverFromInput in
// next_record.go). It may request a new input via the
// returned needNewInput/blockedTime, mirroring the in/out contract of the
// other record-processing steps in §4.4.
func (s *Scheduler) processMarker(o *Output, in *Input, rec Record) (needNewInput bool, blockedTime int64) {
	kind, val, ok := rec.MarkerInfo()
	if !ok {
		return false, 0
	}
	switch kind {
	case MarkerSyscall:
		in.processingSyscall = true
		in.processingMaybeBlockingSyscall = false
		in.preSyscallTimestamp = in.reader.LastTimestamp()
	case MarkerMaybeBlockingSyscall:
		in.processingSyscall = true
		in.processingMaybeBlockingSyscall = true
		in.preSyscallTimestamp = in.reader.LastTimestamp()
	case MarkerContextSwitchStart:
		o.inContextSwitchCode = true
		o.inKernelCode = true
	case MarkerContextSwitchEnd:
		// Deferred: the end marker itself is still "inside" the sequence;
		// clearing happens when the *next* record is processed (§4.6).
		o.hitSwitchCodeEnd = true
	case MarkerSyscallTraceStart:
		o.inKernelCode = true
	case MarkerSyscallTraceEnd:
		o.inKernelCode = false
	case MarkerSyscallArgTimeout:
		in.syscallTimeoutArg = uint64(val)
	case MarkerDirectThreadSwitch:
		if !s.opts.HonorDirectSwitches {
			return false, 0
		}
		return s.handleDirectThreadSwitch(in, val), 0
	case MarkerSyscallUnschedule:
		if !s.opts.HonorDirectSwitches {
			return false, 0
		}
		return s.handleUnschedule(in), 0
	case MarkerSyscallSchedule:
		if !s.opts.HonorDirectSwitches {
			return false, 0
		}
		s.handleSyscallSchedule(in, val)
	}
	return false, 0
}

// postMarkerAdvance clears the deferred in_context_switch_code flag after
// the record following a ContextSwitchEnd marker has been processed (§4.6).
func (o *Output) postMarkerAdvance() {
	if o.hitSwitchCodeEnd {
		o.inContextSwitchCode = false
		o.hitSwitchCodeEnd = false
	}
}

// handleDirectThreadSwitch implements the DirectThreadSwitch(target_tid)
// case of §4.6.
func (s *Scheduler) handleDirectThreadSwitch(in *Input, targetTid int64) bool {
	in.lock.Unlock()
	s.schedLock.Lock()
	in.switchToInput = nil
	if target, ok := s.tid2input[tidKey{Workload: in.workload, Tid: targetTid}]; ok {
		in.switchToInput = target
	}
	s.schedLock.Unlock()
	in.lock.Lock()
	// Count a direct-switch attempt regardless of hit/miss; the output's
	// stat belongs to the caller (the dispatcher bumps it on selection),
	// but the attempt itself is counted here at marker-processing time.
	if in.prevOutput != nil {
		in.prevOutput.bumpStat(StatDirectSwitchAttempts)
	}
	if in.skipNextUnscheduled {
		in.skipNextUnscheduled = false
		return false
	}
	in.unscheduled = true
	if in.syscallTimeoutArg > 0 {
		in.blockedTime = scale(int64(in.syscallTimeoutArg), &s.opts)
		in.blockedStartTime = in.blockedStartTimeNow()
	}
	return true
}

// blockedStartTimeNow reports the wall/sim time to stamp as
// blocked_start_time; it is the last output time this input ran on.
func (in *Input) blockedStartTimeNow() int64 {
	if in.prevOutput != nil {
		return in.prevOutput.curTime
	}
	return 0
}

// handleUnschedule implements SyscallUnschedule (§4.6): same logic as a
// direct switch but without a target. Returns whether a new input must now
// be dispatched for the output running in.
func (s *Scheduler) handleUnschedule(in *Input) bool {
	if in.skipNextUnscheduled {
		// §9 open question: treated as a no-op in either direction; we
		// follow the observed behavior of simply consuming the flag.
		in.skipNextUnscheduled = false
		return false
	}
	in.unscheduled = true
	if in.syscallTimeoutArg > 0 {
		in.blockedTime = scale(int64(in.syscallTimeoutArg), &s.opts)
		in.blockedStartTime = in.blockedStartTimeNow()
	}
	return true
}

// handleSyscallSchedule implements SyscallSchedule(target_tid) (§4.6). The
// caller (processMarker) holds in's lock on entry; per §5's lock ordering
// rule that lock is released before sched_lock and the target's lock are
// acquired, and reacquired before returning.
func (s *Scheduler) handleSyscallSchedule(in *Input, targetTid int64) {
	target, ok := s.tid2input[tidKey{Workload: in.workload, Tid: targetTid}]
	if !ok {
		if s.opts.Verbosity >= 1 {
			logrus.Debugf("SyscallSchedule: unknown target tid %d for workload %s", targetTid, in.workload)
		}
		return
	}

	in.lock.Unlock()
	s.schedLock.Lock()
	target.lock.Lock()

	if target.unscheduled {
		target.unscheduled = false
		if s.unscheduledQ.erase(target) {
			s.readyQ.push(target)
		}
		target.blockedTime = 0
		target.blockedStartTime = 0
	} else {
		target.skipNextUnscheduled = true
	}

	target.lock.Unlock()
	s.schedLock.Unlock()
	in.lock.Lock()
}
