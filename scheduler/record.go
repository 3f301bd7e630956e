package scheduler

// RecordKind is the tag of the Record union (§3).
type RecordKind int

const (
	RecordInvalid RecordKind = iota
	RecordInstruction
	RecordEncoding
	RecordMarker
	RecordTimestamp
	RecordThreadStart
	RecordThreadExit
)

// MarkerKind enumerates the marker kinds the core cares about (§3).
type MarkerKind int

const (
	MarkerTimestamp MarkerKind = iota
	MarkerVersion
	MarkerFileType
	MarkerCacheLineSize
	MarkerChunkInstrCount
	MarkerPageSize
	MarkerSyscall
	MarkerMaybeBlockingSyscall
	MarkerSyscallUnschedule
	MarkerSyscallSchedule
	MarkerSyscallArgTimeout
	MarkerDirectThreadSwitch
	MarkerContextSwitchStart
	MarkerContextSwitchEnd
	MarkerSyscallTraceStart
	MarkerSyscallTraceEnd
	MarkerWindowID
)

// ContextSwitchKind distinguishes the two injected switch sequences (§4.11).
type ContextSwitchKind int

const (
	SwitchThread ContextSwitchKind = iota
	SwitchProcess
)

// Record is the capability set both concrete schemas (memref and raw entry)
// implement, per the §9 re-architecture guidance: a small interface instead
// of templated specializations per schema.
type Record interface {
	Kind() RecordKind
	IsInstr() bool
	IsEncoding() bool
	IsMarker(kind MarkerKind, value int64) bool
	// MarkerInfo reports the marker kind/value carried by this record, if any.
	MarkerInfo() (kind MarkerKind, value int64, ok bool)
	IsTimestamp(value uint64) bool
	// IsInstrBoundary reports whether this record starts a new instruction,
	// given the immediately preceding record (needed because some schemas
	// carry encoding records ahead of the instruction they describe).
	IsInstrBoundary(prev Record) bool
	IsNonMarkerHeader() bool
	IsInvalid() bool

	Tid() int64
	Pid() int64
	PC() uint64
	Size() int
	Timestamp() uint64

	// Synthetic reports whether this record was injected by the scheduler
	// rather than produced by a reader; synthetic records never advance
	// stream ordinals (§4.11, GLOSSARY).
	Synthetic() bool
	// WithTid returns a copy of this record retagged to tid, used when
	// injecting switch-sequence records onto an incoming input's queue.
	WithTid(tid int64) Record
}

// NewInvalidRecord returns the schema-agnostic invalid record.
func NewInvalidRecord() Record { return invalidRecord{} }

type invalidRecord struct{}

func (invalidRecord) Kind() RecordKind                               { return RecordInvalid }
func (invalidRecord) IsInstr() bool                                  { return false }
func (invalidRecord) IsEncoding() bool                               { return false }
func (invalidRecord) IsMarker(MarkerKind, int64) bool                { return false }
func (invalidRecord) MarkerInfo() (MarkerKind, int64, bool)          { return 0, 0, false }
func (invalidRecord) IsTimestamp(uint64) bool                        { return false }
func (invalidRecord) IsInstrBoundary(Record) bool                    { return false }
func (invalidRecord) IsNonMarkerHeader() bool                        { return false }
func (invalidRecord) IsInvalid() bool                                { return true }
func (invalidRecord) Tid() int64                                     { return -1 }
func (invalidRecord) Pid() int64                                     { return -1 }
func (invalidRecord) PC() uint64                                     { return 0 }
func (invalidRecord) Size() int                                      { return 0 }
func (invalidRecord) Timestamp() uint64                              { return 0 }
func (invalidRecord) Synthetic() bool                                { return false }
func (r invalidRecord) WithTid(int64) Record                         { return r }

// NewThreadExit synthesizes a ThreadExit record for tid, used by ROI
// exhaustion (§4.8) and traced-schedule SyntheticEnd segments (§4.10).
func NewThreadExit(tid, pid int64) Record {
	return &syntheticRecord{kind: RecordThreadExit, tid: tid, pid: pid}
}

// NewWindowMarker synthesizes a WindowId(n) marker record, used by ROI
// advancement (§4.8) when crossing into a new region.
func NewWindowMarker(n int64, tid, pid int64) Record {
	return &syntheticRecord{kind: RecordMarker, markerKind: MarkerWindowID, markerVal: n, tid: tid, pid: pid}
}

// syntheticRecord backs scheduler-injected records: thread exits, window
// markers, and (retagged) switch-sequence records. It never advances reader
// ordinals.
type syntheticRecord struct {
	kind       RecordKind
	markerKind MarkerKind
	markerVal  int64
	tid, pid   int64
	pc         uint64
	size       int
	ts         uint64
}

func (r *syntheticRecord) Kind() RecordKind { return r.kind }
func (r *syntheticRecord) IsInstr() bool    { return r.kind == RecordInstruction }
func (r *syntheticRecord) IsEncoding() bool { return r.kind == RecordEncoding }
func (r *syntheticRecord) IsMarker(kind MarkerKind, value int64) bool {
	return r.kind == RecordMarker && r.markerKind == kind && r.markerVal == value
}
func (r *syntheticRecord) MarkerInfo() (MarkerKind, int64, bool) {
	if r.kind != RecordMarker {
		return 0, 0, false
	}
	return r.markerKind, r.markerVal, true
}
func (r *syntheticRecord) IsTimestamp(value uint64) bool {
	return r.kind == RecordTimestamp && r.ts == value
}
func (r *syntheticRecord) IsInstrBoundary(prev Record) bool {
	return r.kind == RecordInstruction && (prev == nil || !prev.IsEncoding())
}
func (r *syntheticRecord) IsNonMarkerHeader() bool { return r.kind == RecordThreadStart }
func (r *syntheticRecord) IsInvalid() bool         { return r.kind == RecordInvalid }
func (r *syntheticRecord) Tid() int64              { return r.tid }
func (r *syntheticRecord) Pid() int64              { return r.pid }
func (r *syntheticRecord) PC() uint64              { return r.pc }
func (r *syntheticRecord) Size() int               { return r.size }
func (r *syntheticRecord) Timestamp() uint64       { return r.ts }
func (r *syntheticRecord) Synthetic() bool         { return true }
func (r *syntheticRecord) WithTid(tid int64) Record {
	cp := *r
	cp.tid = tid
	return &cp
}
