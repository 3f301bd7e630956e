package scheduler

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
)

// VersionCurrent is the on-disk schedule-file format version written in the
// first Version segment of every recorded output log (§6).
const VersionCurrent uint64 = 2

// segmentWire is the bit-exact, little-endian on-disk layout of a
// schedule_segment (§6):
//
//	segment := { type: u32, key: u64, value: u64, stop_instruction: u64, timestamp: u64 }
const segmentWireSize = 4 + 8 + 8 + 8 + 8

func encodeSegment(buf []byte, seg Segment) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(seg.Type))
	binary.LittleEndian.PutUint64(buf[4:12], seg.Key)
	binary.LittleEndian.PutUint64(buf[12:20], seg.Value)
	binary.LittleEndian.PutUint64(buf[20:28], seg.StopInstruction)
	binary.LittleEndian.PutUint64(buf[28:36], seg.Timestamp)
}

func decodeSegment(buf []byte) Segment {
	return Segment{
		Type:            SegmentType(binary.LittleEndian.Uint32(buf[0:4])),
		Key:             binary.LittleEndian.Uint64(buf[4:12]),
		Value:           binary.LittleEndian.Uint64(buf[12:20]),
		StopInstruction: binary.LittleEndian.Uint64(buf[20:28]),
		Timestamp:       binary.LittleEndian.Uint64(buf[28:36]),
	}
}

// segmentStreamWriter writes one output's segment log as a snappy-framed
// run of the bit-exact binary layout, the way gotraceui frames its own
// trace blocks with snappy before writing them out. Runs of several outputs
// follow one another on the same stream; they carry no component names
// such as "output.%04d", and replay tells them apart by their leading
// Version segment.
type segmentStreamWriter struct {
	w *snappy.Writer
}

func newSegmentStreamWriter(dst io.Writer) *segmentStreamWriter {
	return &segmentStreamWriter{w: snappy.NewBufferedWriter(dst)}
}

func (sw *segmentStreamWriter) WriteSegment(seg Segment) error {
	var buf [segmentWireSize]byte
	encodeSegment(buf[:], seg)
	if _, err := sw.w.Write(buf[:]); err != nil {
		return errFileWrite("schedule segment", err)
	}
	return nil
}

func (sw *segmentStreamWriter) Close() error { return sw.w.Close() }

// segmentStreamReader reads a decompressed segment stream back into
// Segment values.
type segmentStreamReader struct {
	r *bufio.Reader
}

func newSegmentStreamReader(src io.Reader) *segmentStreamReader {
	return &segmentStreamReader{r: bufio.NewReader(snappy.NewReader(src))}
}

// ReadSegment reads the next segment, returning io.EOF when the stream is
// exhausted cleanly.
func (sr *segmentStreamReader) ReadSegment() (Segment, error) {
	var buf [segmentWireSize]byte
	if _, err := io.ReadFull(sr.r, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Segment{}, io.EOF
		}
		return Segment{}, errFileRead("schedule segment", err)
	}
	return decodeSegment(buf[:]), nil
}

// ReadAllSegments reads every segment until EOF, validating that the
// stream starts with Version and ends with Footer and that no two Idle
// segments are consecutive (§6, §8).
func ReadAllSegments(src io.Reader) ([]Segment, error) {
	sr := newSegmentStreamReader(src)
	var segs []Segment
	for {
		seg, err := sr.ReadSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	if err := validateSegmentLog(segs); err != nil {
		return nil, err
	}
	return segs, nil
}

// validateSegmentLog is the "replay-file checker" of §6: it rejects logs
// missing a leading Version, a trailing Footer, or containing two
// consecutive Idle segments.
func validateSegmentLog(segs []Segment) error {
	if len(segs) == 0 {
		return errInvalid("empty schedule segment log")
	}
	if segs[0].Type != SegmentVersion {
		return errInvalid("schedule segment log must begin with a Version segment")
	}
	if segs[len(segs)-1].Type != SegmentFooter {
		return errInvalid("schedule segment log must end with a Footer segment")
	}
	for i := 1; i < len(segs); i++ {
		if segs[i].Type == SegmentIdle && segs[i-1].Type == SegmentIdle {
			return errInvalid("consecutive Idle segments at index %d", i)
		}
	}
	return nil
}

// traceEntryWireSize is the bit-exact size of a traced-schedule entry (§6):
//
//	entry := { thread: u64, cpu: u32, start_instruction: u64, timestamp: u64 }
const traceEntryWireSize = 8 + 4 + 8 + 8

// TracedScheduleEntry is one entry of a traced-CPU-schedule archive (§3,
// §6, §4.10).
type TracedScheduleEntry struct {
	Thread           uint64
	CPU              uint32
	StartInstruction uint64
	Timestamp        uint64
}

func decodeTracedEntry(buf []byte) TracedScheduleEntry {
	return TracedScheduleEntry{
		Thread:           binary.LittleEndian.Uint64(buf[0:8]),
		CPU:              binary.LittleEndian.Uint32(buf[8:12]),
		StartInstruction: binary.LittleEndian.Uint64(buf[12:20]),
		Timestamp:        binary.LittleEndian.Uint64(buf[20:28]),
	}
}

// ReadTracedScheduleEntries reads every traced-schedule entry from an
// uncompressed per-cpu stream (§6, §4.10).
func ReadTracedScheduleEntries(src io.Reader) ([]TracedScheduleEntry, error) {
	r := bufio.NewReader(src)
	var entries []TracedScheduleEntry
	buf := make([]byte, traceEntryWireSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, errFileRead("traced schedule entry", err)
		}
		entries = append(entries, decodeTracedEntry(buf))
	}
	return entries, nil
}
