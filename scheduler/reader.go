package scheduler

import "context"

// SkipOutcome is the result of a Reader.SkipInstructions call (§4.8).
type SkipOutcome int

const (
	SkipOK SkipOutcome = iota
	SkipEOF
	SkipOutOfBounds
)

// Reader is a lazy, stateful producer of Records (§6). Concrete decoders
// and decompressors are external collaborators; the scheduler only depends
// on this interface.
type Reader interface {
	// Init performs any blocking setup (opening files, priming buffers)
	// required before Next can be called. May block waiting on producer
	// data for streaming readers.
	Init(ctx context.Context) error

	// Next advances the reader and returns the next record. ok is false
	// and err is nil at a clean end of stream.
	Next(ctx context.Context) (rec Record, ok bool, err error)

	RecordOrdinal() uint64
	InstructionOrdinal() uint64
	LastTimestamp() uint64
	FirstTimestamp() uint64
	Version() uint64
	FileType() uint64
	CacheLineSize() uint64
	ChunkInstrCount() uint64
	PageSize() uint64

	IsRecordSynthetic() bool
	IsRecordKernel() bool

	// SkipInstructions asks the reader to skip ahead by n instructions.
	// n == SkipToEOF is the sentinel requesting an unbounded skip to end
	// of stream.
	SkipInstructions(ctx context.Context, n uint64) (SkipOutcome, error)
}

// SkipToEOF is the sentinel value requesting an unbounded skip to end of
// stream rather than a bounded one (§4.8, §7 RangeInvalid vs Skipped).
const SkipToEOF = ^uint64(0)

// TraceVersionFrequentTimestamps is the trace format version at and above
// which a trace brackets syscalls with timestamp records closely enough to
// measure syscall latency (§4.7). Readers on an older version are "legacy"
// traces and fall back to the maybe-blocking-syscall-only switch heuristic.
const TraceVersionFrequentTimestamps uint64 = 3

// Speculator is the external speculation front-end collaborator (§4.12,
// §6). Given a PC and the previously delivered record, it returns the next
// synthetic instruction record and the PC to resume at next time.
type Speculator interface {
	Next(pc uint64, prev Record) (rec Record, nextPC uint64, err error)
}

// NopSpeculator always returns a single-byte nop-shaped instruction at pc,
// advancing pc by one each call. It backs the SpeculateNops option.
type NopSpeculator struct {
	Tid, Pid int64
}

func (s NopSpeculator) Next(pc uint64, _ Record) (Record, uint64, error) {
	rec := &syntheticRecord{kind: RecordInstruction, tid: s.Tid, pid: s.Pid, pc: pc, size: 1}
	return rec, pc + 1, nil
}

// DirectoryEnumerator lists input files under a workload path, excluding
// auxiliary files (serial/CPU schedule files, module list, function list,
// encoding file) per §6.
type DirectoryEnumerator interface {
	ListInputFiles(workloadPath string) ([]string, error)
}

// auxiliarySuffixes names the non-input files a DirectoryEnumerator must
// skip when listing a workload directory.
var auxiliarySuffixes = []string{
	".serial_schedule",
	".cpu_schedule",
	"modules.log",
	"funclist",
	"encoding.bin",
}

// IsAuxiliaryInputFile reports whether name looks like one of the
// non-trace files that live alongside per-thread trace shards in a
// workload directory.
func IsAuxiliaryInputFile(name string) bool {
	for _, suf := range auxiliarySuffixes {
		if len(name) >= len(suf) && name[len(name)-len(suf):] == suf {
			return true
		}
	}
	return false
}
