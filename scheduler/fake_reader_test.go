package scheduler

import "context"

// fakeReader is a minimal in-memory Reader backing scheduler tests that
// need a real (instruction_ordinal, skip) contract without a trace file on
// disk, the way the teacher's tests build in-memory request/queue fixtures
// instead of loading CSVs.
type fakeReader struct {
	recs []Record
	pos  int

	instrOrd uint64
	recOrd   uint64
	lastTS   uint64
	version  uint64
}

func newFakeReader(recs ...Record) *fakeReader {
	return &fakeReader{recs: recs}
}

// withVersion sets the trace format version a fakeReader reports, for tests
// exercising the legacy-vs-modern branch of §4.7.
func (r *fakeReader) withVersion(v uint64) *fakeReader {
	r.version = v
	return r
}

func (r *fakeReader) Init(ctx context.Context) error { return nil }

func (r *fakeReader) Next(ctx context.Context) (Record, bool, error) {
	if r.pos >= len(r.recs) {
		return nil, false, nil
	}
	rec := r.recs[r.pos]
	r.pos++
	r.recOrd++
	if rec.IsInstr() {
		r.instrOrd++
	}
	if rec.Kind() == RecordTimestamp {
		r.lastTS = rec.Timestamp()
	}
	return rec, true, nil
}

func (r *fakeReader) RecordOrdinal() uint64      { return r.recOrd }
func (r *fakeReader) InstructionOrdinal() uint64 { return r.instrOrd }
func (r *fakeReader) LastTimestamp() uint64      { return r.lastTS }
func (r *fakeReader) FirstTimestamp() uint64     { return 0 }
func (r *fakeReader) Version() uint64            { return r.version }
func (r *fakeReader) FileType() uint64           { return 0 }
func (r *fakeReader) CacheLineSize() uint64      { return 0 }
func (r *fakeReader) ChunkInstrCount() uint64    { return 0 }
func (r *fakeReader) PageSize() uint64           { return 0 }
func (r *fakeReader) IsRecordSynthetic() bool    { return false }
func (r *fakeReader) IsRecordKernel() bool       { return false }

// newTestInputWithReader builds an Input wired to a fakeReader, for tests
// that need instructionOrdinal()/SkipInstructions to behave like a real
// trace.
func newTestInputWithReader(index int, rois []RegionOfInterest, recs ...Record) *Input {
	in := NewInput(index, "wl", int64(100+index), 1, newFakeReader(recs...), rois)
	return in
}

func (r *fakeReader) SkipInstructions(ctx context.Context, n uint64) (SkipOutcome, error) {
	if n == SkipToEOF {
		for r.pos < len(r.recs) {
			r.Next(ctx)
		}
		return SkipEOF, nil
	}
	var skipped uint64
	for skipped < n {
		rec, ok, _ := r.Next(ctx)
		if !ok {
			return SkipEOF, nil
		}
		if rec.IsInstr() {
			skipped++
		}
	}
	return SkipOK, nil
}
