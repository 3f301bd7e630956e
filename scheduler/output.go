package scheduler

// StatCounter indexes the per-output stats counters (§3).
type StatCounter int

const (
	StatSwitchInToIn StatCounter = iota
	StatSwitchInToIdle
	StatSwitchIdleToIn
	StatSwitchNop
	StatQuantumPreempts
	StatDirectSwitchAttempts
	StatDirectSwitchSuccesses
	StatMigrations
	numStatCounters
)

// SegmentType is the kind of a Segment in a per-output schedule log (§3, §6).
type SegmentType int

const (
	SegmentVersion SegmentType = iota
	SegmentDefault
	SegmentSkip
	SegmentSyntheticEnd
	SegmentIdle
	SegmentFooter
)

// Segment is a recorded/replayed schedule-segment entry.
type Segment struct {
	Type            SegmentType
	Key             uint64 // input index OR version number
	Value           uint64 // start_instruction OR idle_duration
	StopInstruction uint64
	Timestamp       uint64
}

// Output is one simulated core consuming scheduled records (§3).
type Output struct {
	index int

	curInput  *Input
	prevInput *Input
	active    bool
	waiting   bool
	waitStart int64
	atEOF     bool

	curTime             int64
	inKernelCode        bool
	inContextSwitchCode bool
	hitSwitchCodeEnd    bool

	specStack  []uint64
	speculatePC uint64

	record       []Segment // replay source (AsPreviously), set at Init
	replayCursor *replayCursor
	asTracedCPUID int64

	stats [numStatCounters]uint64

	lastRecord Record
	instrsDelivered uint64

	// recording state (when the scheduler is configured to record)
	recording     []Segment
	recordingOpen bool
}

// NewOutput constructs an Output in its initial, active, idle state.
func NewOutput(index int) *Output {
	return &Output{index: index, active: true, asTracedCPUID: -1}
}

func (o *Output) Index() int { return o.index }

func (o *Output) Active() bool { return o.active }

// SetActive deactivates/reactivates an output (ToAnyOutput only, §6).
func (o *Output) SetActive(active bool) {
	o.active = active
}

func (o *Output) Stat(c StatCounter) uint64 { return o.stats[c] }

func (o *Output) bumpStat(c StatCounter) { o.stats[c]++ }

// inSpeculation reports whether the output is currently delegating to the
// speculator (§4.12).
func (o *Output) inSpeculation() bool { return len(o.specStack) > 0 }

// streamInput is the input whose reader backs this output's stream
// accessors: the one currently running, or the last one that ran if the
// output is between inputs (e.g. at EOF), matching the original's pattern
// of a stream's fields tracking whichever input last fed it.
func (o *Output) streamInput() *Input {
	if o.curInput != nil {
		return o.curInput
	}
	return o.prevInput
}

// InstructionOrdinal, RecordOrdinal, Tid, Pid, LastTimestamp, Version,
// FileType, CacheLineSize, ChunkInstrCount and PageSize are the per-output
// stream accessors of §6, proxied through to the input currently (or most
// recently) feeding this output. Before any input has run they report zero,
// except Tid and Pid, which report -1.
func (o *Output) InstructionOrdinal() uint64 {
	if in := o.streamInput(); in != nil {
		return in.instructionOrdinal()
	}
	return 0
}

func (o *Output) RecordOrdinal() uint64 {
	if in := o.streamInput(); in != nil {
		return in.reader.RecordOrdinal()
	}
	return 0
}

func (o *Output) Tid() int64 {
	if in := o.streamInput(); in != nil {
		return in.tid
	}
	return -1
}

func (o *Output) Pid() int64 {
	if in := o.streamInput(); in != nil {
		return in.pid
	}
	return -1
}

// CPUID reports asTracedCPUID, the as-traced cpuid slot of this output. It
// starts at -1 and no mapping mode, ToRecordedOutput included, assigns it,
// so CPUID reports -1.
func (o *Output) CPUID() int64 { return o.asTracedCPUID }

// ShardIndex is the ordinal of the input currently (or most recently)
// feeding this output, the "shard index" accessor of §6.
func (o *Output) ShardIndex() int {
	if in := o.streamInput(); in != nil {
		return in.index
	}
	return -1
}

func (o *Output) LastTimestamp() uint64 {
	if in := o.streamInput(); in != nil {
		return in.reader.LastTimestamp()
	}
	return 0
}

func (o *Output) Version() uint64 {
	if in := o.streamInput(); in != nil {
		return in.reader.Version()
	}
	return 0
}

func (o *Output) FileType() uint64 {
	if in := o.streamInput(); in != nil {
		return in.reader.FileType()
	}
	return 0
}

func (o *Output) CacheLineSize() uint64 {
	if in := o.streamInput(); in != nil {
		return in.reader.CacheLineSize()
	}
	return 0
}

func (o *Output) ChunkInstrCount() uint64 {
	if in := o.streamInput(); in != nil {
		return in.reader.ChunkInstrCount()
	}
	return 0
}

func (o *Output) PageSize() uint64 {
	if in := o.streamInput(); in != nil {
		return in.reader.PageSize()
	}
	return 0
}

// deliverRecord records rec as the last record returned to the caller and,
// if it's an instruction, bumps the output's delivered-instruction count --
// the per-output analog of a stream's instruction ordinal (§6), and the
// correct proxy for "has this output delivered an instruction yet" (§4.11),
// unlike a bare lastRecord != nil check which is also true for markers.
func (o *Output) deliverRecord(rec Record) {
	o.lastRecord = rec
	if rec.IsInstr() {
		o.instrsDelivered++
	}
}
