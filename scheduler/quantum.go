package scheduler

// clampInt64 bounds x to [lo, hi].
func clampInt64(x, lo, hi int64) int64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// scale converts a latency (in the caller's micro-second-ish units) into
// blocked output time, per §4.7: scale(x) = clamp(x * multiplier, 0, max_us) * time_units_per_us.
func scale(latency int64, opts *Options) int64 {
	scaled := int64(float64(latency) * opts.BlockTimeMultiplier)
	scaled = clampInt64(scaled, 0, opts.BlockTimeMaxUs)
	return scaled * opts.TimeUnitsPerUs
}

// quantumCheck implements §4.5: instruction- or time-based quantum
// accounting at an instruction boundary. It returns true when the input
// should be preempted, in which case the accounting counter has already
// been reset and the output's quantum-preempt stat should be bumped by the
// caller.
func quantumCheck(in *Input, curTime int64, opts *Options) bool {
	switch opts.QuantumUnit {
	case QuantumInstructions:
		in.instrsInQuantum++
		if in.instrsInQuantum > opts.QuantumDurationInstrs {
			in.instrsInQuantum = 0
			return true
		}
		return false
	case QuantumTime:
		in.timeInQuantumDelta = curTime - in.prevTimeInQuantum
		in.timeSpentInQuantum += in.timeInQuantumDelta
		in.prevTimeInQuantum = curTime
		if opts.TimeUnitsPerUs > 0 && in.timeSpentInQuantum/opts.TimeUnitsPerUs >= opts.QuantumDurationUs {
			in.timeSpentInQuantum = 0
			return true
		}
		return false
	default:
		return false
	}
}

// dischargeQuantumOnSwitch undoes the just-applied quantum accounting on the
// outgoing input when a switch actually occurs, so the instruction (or time
// delta) that triggered the switch is not double-charged the next time this
// input runs (§4.5). For QuantumTime this subtracts back the exact delta
// quantumCheck just added; if the switch was itself the preemption (the
// counter was already reset to 0), timeInQuantumDelta now exceeds
// timeSpentInQuantum and the discharge is skipped, mirroring the original's
// guard against discharging an already-reset counter.
func dischargeQuantumOnSwitch(in *Input, opts *Options) {
	switch opts.QuantumUnit {
	case QuantumInstructions:
		if in.instrsInQuantum > 0 {
			in.instrsInQuantum--
		}
	case QuantumTime:
		if in.timeSpentInQuantum >= in.timeInQuantumDelta {
			in.timeSpentInQuantum -= in.timeInQuantumDelta
		}
	}
}

// syscallIncursSwitch implements §4.7's blocking model. hasTimestamps is
// false for legacy traces that don't bracket syscalls with timestamps.
// It returns whether the input should yield and, if so, the blocked_time to
// stamp on it (already scaled into output time units).
func syscallIncursSwitch(in *Input, postTimestamp uint64, hasTimestamps bool, opts *Options) (switchNow bool, blockedTime int64) {
	if !hasTimestamps {
		if in.processingMaybeBlockingSyscall {
			return true, int64(opts.BlockingSwitchThreshold)
		}
		return false, 0
	}
	latency := int64(postTimestamp) - int64(in.preSyscallTimestamp)
	if latency < 0 {
		latency = 0
	}
	threshold := int64(opts.SyscallSwitchThreshold)
	if in.processingMaybeBlockingSyscall {
		threshold = int64(opts.BlockingSwitchThreshold)
	}
	if latency < threshold {
		return false, 0
	}
	return true, scale(latency, opts)
}
