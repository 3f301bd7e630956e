package scheduler

import "sort"

// DefaultChunkSize is the historical fixed chunk size (in instructions)
// behind the traced-schedule modulo-chunk corruption repair heuristic
// (§4.10, §9, SPEC_FULL "Supplemented features"). It is the original
// scheduler's DEFAULT_CHUNK_SIZE constant.
const DefaultChunkSize uint64 = 10_000_000

// repairChunkRegression detects and repairs the historical
// modulo-chunk-size corruption in a per-CPU sequence of traced-schedule
// entries: a newly observed start_instruction that appears to have wrapped
// around a chunk boundary is detected when it regresses (is less than the
// previous one) and the previous start is more than half a chunk in, then
// repaired by adding the chunk size back. A regression that doesn't fit
// that shape is a genuine error, reported as Invalid rather than guessed
// at (§9 design note).
func repairChunkRegression(entries []TracedScheduleEntry) ([]TracedScheduleEntry, error) {
	out := make([]TracedScheduleEntry, len(entries))
	copy(out, entries)
	var addToStart uint64
	for i := 1; i < len(out); i++ {
		prevRawStart := entries[i-1].StartInstruction
		curRaw := entries[i].StartInstruction
		if curRaw < prevRawStart {
			if prevRawStart*2 > DefaultChunkSize {
				addToStart += DefaultChunkSize
			} else {
				return nil, errInvalid(
					"traced schedule entry %d: start_instruction regressed from %d to %d and does not fit the known chunk-size bug",
					i, prevRawStart, curRaw)
			}
		}
		out[i].StartInstruction = curRaw + addToStart
	}
	return out, nil
}

// dedupeZeroInstructionEntries removes zero-instruction duplicate entries
// from a per-CPU sequence, keeping the later one (§4.10).
func dedupeZeroInstructionEntries(entries []TracedScheduleEntry) []TracedScheduleEntry {
	out := entries[:0:0]
	for i, e := range entries {
		if i+1 < len(entries) && entries[i+1].StartInstruction == e.StartInstruction &&
			entries[i+1].Thread == e.Thread {
			continue // a later duplicate with the same start exists; keep that one
		}
		out = append(out, e)
	}
	return out
}

// collapseConsecutiveSameInput merges consecutive entries for the same
// thread on the same CPU into one (§4.10).
func collapseConsecutiveSameInput(entries []TracedScheduleEntry) []TracedScheduleEntry {
	var out []TracedScheduleEntry
	for _, e := range entries {
		if n := len(out); n > 0 && out[n-1].Thread == e.Thread {
			continue
		}
		out = append(out, e)
	}
	return out
}

// groupByCPU groups entries by CPU, repairing and cleaning each CPU's
// sequence independently, then returns CPUs sorted by cpuid for natural
// ordering (§4.10: "sort outputs by cpuid for natural ordering").
func groupByCPU(entries []TracedScheduleEntry) ([]uint32, map[uint32][]TracedScheduleEntry, error) {
	byCPU := make(map[uint32][]TracedScheduleEntry)
	for _, e := range entries {
		byCPU[e.CPU] = append(byCPU[e.CPU], e)
	}
	var cpus []uint32
	for cpu, seq := range byCPU {
		repaired, err := repairChunkRegression(seq)
		if err != nil {
			return nil, nil, err
		}
		repaired = dedupeZeroInstructionEntries(repaired)
		repaired = collapseConsecutiveSameInput(repaired)
		byCPU[cpu] = repaired
		cpus = append(cpus, cpu)
	}
	sort.Slice(cpus, func(i, j int) bool { return cpus[i] < cpus[j] })
	return cpus, byCPU, nil
}

// BuildSegmentLogsFromTraced translates a traced-CPU-schedule archive into
// a per-output Default segment log, suitable for feeding AsPreviously
// (ToRecordedOutput, §4.1, §4.10). tidToInput maps a traced thread id to
// its Input index.
func BuildSegmentLogsFromTraced(entries []TracedScheduleEntry, tidToInput map[uint64]int) ([][]Segment, error) {
	cpus, byCPU, err := groupByCPU(entries)
	if err != nil {
		return nil, err
	}
	logs := make([][]Segment, len(cpus))
	for i, cpu := range cpus {
		seq := byCPU[cpu]
		segs := []Segment{{Type: SegmentVersion, Key: VersionCurrent}}
		for j, e := range seq {
			idx, ok := tidToInput[e.Thread]
			if !ok {
				continue
			}
			seg := Segment{Type: SegmentDefault, Key: uint64(idx), Value: e.StartInstruction, Timestamp: e.Timestamp}
			if j+1 < len(seq) {
				seg.StopInstruction = seq[j+1].StartInstruction
			}
			segs = append(segs, seg)
		}
		segs = append(segs, Segment{Type: SegmentFooter})
		logs[i] = segs
	}
	return logs, nil
}
