package scheduler

import (
	"sync"
)

// RegionOfInterest is an instruction range, 1-based, that includes both its
// start and its stop instruction; stop_instruction == 0 means "runs to EOF"
// (§3 invariant 5).
type RegionOfInterest struct {
	Start uint64 // start_instruction, >= 1
	Stop  uint64 // stop_instruction; 0 means EOF
}

// tidKey identifies an input by (workload, tid), the key tid2input is
// indexed by (§3).
type tidKey struct {
	Workload string
	Tid      int64
}

// Input is one logical thread trace fed to the scheduler (§3). All mutable
// state is guarded by lock; reader operations are only ever performed while
// holding lock, never concurrently with sched_lock (§5).
type Input struct {
	lock sync.Mutex

	index    int
	workload string
	tid      int64
	pid      int64

	reader Reader

	queue []Record // front = next to deliver (invariant 4)

	regionsOfInterest []RegionOfInterest
	curRegion         int
	inCurRegion       bool
	roiEnabled        bool

	instrsInQuantum     int64
	timeSpentInQuantum  int64
	prevTimeInQuantum   int64
	timeInQuantumDelta  int64

	processingSyscall            bool
	processingMaybeBlockingSyscall bool
	preSyscallTimestamp           uint64
	syscallTimeoutArg             uint64

	priority         int64
	binding          map[int]bool // empty/nil = any output
	queueCounter     uint64
	blockedTime      int64
	blockedStartTime int64
	unscheduled      bool
	skipNextUnscheduled bool
	switchToInput    *Input
	prevOutput       *Output
	baseTimestamp    uint64
	nextTimestamp    uint64
	orderByTimestamp bool

	atEOF             bool
	atEOFAlreadyCounted bool
	needsInit         bool
	needsAdvance      bool
	needsROI          bool
	instrsPreRead      uint64
	curFromQueue      bool
	switchingPreInstr  bool
	hasModifier        bool

	lastHeaderTid int64
	lastHeaderPid int64
}

// NewInput constructs an Input in its not-yet-initialized state. reader is
// not touched until Init is called (possibly lazily, on first use).
func NewInput(index int, workload string, tid, pid int64, reader Reader, rois []RegionOfInterest) *Input {
	in := &Input{
		index:         index,
		workload:      workload,
		tid:           tid,
		pid:           pid,
		reader:        reader,
		regionsOfInterest: rois,
		roiEnabled:    len(rois) > 0,
		needsInit:     true,
		needsAdvance:  true,
		needsROI:      len(rois) > 0,
		priority:      0,
		lastHeaderTid: tid,
		lastHeaderPid: pid,
	}
	return in
}

func (in *Input) Index() int       { return in.index }
func (in *Input) Workload() string { return in.workload }
func (in *Input) Tid() int64       { return in.tid }
func (in *Input) Pid() int64       { return in.pid }

// AllowsOutput reports whether binding permits running on output idx.
func (in *Input) AllowsOutput(idx int) bool {
	if len(in.binding) == 0 {
		return true
	}
	return in.binding[idx]
}

// SetBinding restricts this input to the given set of output ordinals; an
// empty set means "any output".
func (in *Input) SetBinding(outputs ...int) {
	if len(outputs) == 0 {
		in.binding = nil
		return
	}
	in.binding = make(map[int]bool, len(outputs))
	for _, o := range outputs {
		in.binding[o] = true
	}
}

// pushFront puts rec back at the head of the queue, e.g. when re-dispatch
// is required after a record was already peeked.
func (in *Input) pushFront(rec Record) {
	in.queue = append([]Record{rec}, in.queue...)
}

// pushFrontMany pushes a sequence of records to the front, preserving their
// relative order, in one bulk operation (used by switch-sequence
// injection, §4.11).
func (in *Input) pushFrontMany(recs []Record) {
	in.queue = append(append([]Record{}, recs...), in.queue...)
}

// pushBack appends rec to the tail of the queue (synthetic ROI/thread-exit
// records that should be delivered after whatever is already queued).
func (in *Input) pushBack(rec Record) {
	in.queue = append(in.queue, rec)
}

func (in *Input) popFront() (Record, bool) {
	if len(in.queue) == 0 {
		return nil, false
	}
	rec := in.queue[0]
	in.queue = in.queue[1:]
	return rec, true
}

func (in *Input) peekFront() (Record, bool) {
	if len(in.queue) == 0 {
		return nil, false
	}
	return in.queue[0], true
}

// instructionOrdinal is the number of instructions exposed to callers so
// far, reader.InstructionOrdinal() - instrs_pre_read (invariant 3).
func (in *Input) instructionOrdinal() uint64 {
	ord := in.reader.InstructionOrdinal()
	if ord < in.instrsPreRead {
		return 0
	}
	return ord - in.instrsPreRead
}

func (in *Input) curROI() (RegionOfInterest, bool) {
	if in.curRegion < 0 || in.curRegion >= len(in.regionsOfInterest) {
		return RegionOfInterest{}, false
	}
	return in.regionsOfInterest[in.curRegion], true
}
