package scheduler

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"

	"github.com/golang/snappy"
)

// fileRecordWireSize is the on-disk size of one memref-schema record: a
// kind tag, pc, size, marker kind, marker value, timestamp. The layout
// mirrors schedule_io.go's fixed-width little-endian convention rather
// than DynamoRIO's own trace_entry_t, since the scheduler only ever needs
// a Reader that satisfies the Record contract of §3/§9.
const fileRecordWireSize = 1 + 8 + 4 + 1 + 8 + 8

// FileReader is the default file-backed Reader (§6): it decodes a single
// per-thread shard file written in the fixed-width record format above,
// snappy-compressed the same way schedule_io.go frames its segment logs.
type FileReader struct {
	path string
	tid  int64
	pid  int64

	f *os.File
	r *bufio.Reader

	recordOrdinal      uint64
	instructionOrdinal uint64
	lastTimestamp      uint64
	firstTimestamp     uint64
	sawFirstTimestamp  bool

	version         uint64
	fileType        uint64
	cacheLineSize   uint64
	chunkInstrCount uint64
	pageSize        uint64
}

// NewFileReader constructs a FileReader for the shard at path, tagging
// every record it decodes with tid/pid (the memref schema carries no
// thread/process identity of its own in this encoding).
func NewFileReader(path string, tid, pid int64) *FileReader {
	return &FileReader{path: path, tid: tid, pid: pid}
}

func (fr *FileReader) Init(ctx context.Context) error {
	f, err := os.Open(fr.path)
	if err != nil {
		return errFileOpen(fr.path, err)
	}
	fr.f = f
	fr.r = bufio.NewReader(snappy.NewReader(f))
	return nil
}

func (fr *FileReader) Next(ctx context.Context) (Record, bool, error) {
	var buf [fileRecordWireSize]byte
	if _, err := io.ReadFull(fr.r, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, false, nil
		}
		return nil, false, errFileRead(fr.path, err)
	}
	kind := RecordKind(buf[0])
	pc := binary.LittleEndian.Uint64(buf[1:9])
	size := int(binary.LittleEndian.Uint32(buf[9:13]))
	markerKind := MarkerKind(buf[13])
	markerVal := int64(binary.LittleEndian.Uint64(buf[14:22]))
	ts := binary.LittleEndian.Uint64(buf[22:30])

	fr.recordOrdinal++

	var rec *MemrefRecord
	switch kind {
	case RecordInstruction:
		rec = NewMemrefInstruction(fr.tid, fr.pid, pc, size)
		fr.instructionOrdinal++
	case RecordMarker:
		rec = NewMemrefMarker(fr.tid, fr.pid, markerKind, markerVal)
		switch markerKind {
		case MarkerVersion:
			fr.version = uint64(markerVal)
		case MarkerFileType:
			fr.fileType = uint64(markerVal)
		case MarkerCacheLineSize:
			fr.cacheLineSize = uint64(markerVal)
		case MarkerChunkInstrCount:
			fr.chunkInstrCount = uint64(markerVal)
		case MarkerPageSize:
			fr.pageSize = uint64(markerVal)
		}
	case RecordTimestamp:
		rec = NewMemrefTimestamp(fr.tid, fr.pid, ts)
		fr.lastTimestamp = ts
		if !fr.sawFirstTimestamp {
			fr.firstTimestamp = ts
			fr.sawFirstTimestamp = true
		}
	default:
		return nil, false, errInvalid("file reader %s: unknown record kind %d", fr.path, kind)
	}
	return rec, true, nil
}

func (fr *FileReader) RecordOrdinal() uint64       { return fr.recordOrdinal }
func (fr *FileReader) InstructionOrdinal() uint64  { return fr.instructionOrdinal }
func (fr *FileReader) LastTimestamp() uint64       { return fr.lastTimestamp }
func (fr *FileReader) FirstTimestamp() uint64      { return fr.firstTimestamp }
func (fr *FileReader) Version() uint64             { return fr.version }
func (fr *FileReader) FileType() uint64            { return fr.fileType }
func (fr *FileReader) CacheLineSize() uint64       { return fr.cacheLineSize }
func (fr *FileReader) ChunkInstrCount() uint64     { return fr.chunkInstrCount }
func (fr *FileReader) PageSize() uint64            { return fr.pageSize }
func (fr *FileReader) IsRecordSynthetic() bool     { return false }
func (fr *FileReader) IsRecordKernel() bool        { return false }

// SkipInstructions advances past n instructions by decoding and discarding
// records, since the fixed-width shard format carries no seek index. A
// real deployment would maintain a chunk index; this keeps the contract of
// §4.8 correct without depending on one.
func (fr *FileReader) SkipInstructions(ctx context.Context, n uint64) (SkipOutcome, error) {
	if n == SkipToEOF {
		for {
			_, ok, err := fr.Next(ctx)
			if err != nil {
				return SkipOutOfBounds, err
			}
			if !ok {
				return SkipEOF, nil
			}
		}
	}
	var skipped uint64
	for skipped < n {
		rec, ok, err := fr.Next(ctx)
		if err != nil {
			return SkipOutOfBounds, err
		}
		if !ok {
			return SkipEOF, nil
		}
		if rec.IsInstr() {
			skipped++
		}
	}
	return SkipOK, nil
}

func (fr *FileReader) Close() error {
	if fr.f != nil {
		return fr.f.Close()
	}
	return nil
}
