package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// InputSpec describes one input shard to be registered with a Scheduler at
// Init time: its identity, its reader, and any ROI restriction.
type InputSpec struct {
	Workload string
	Tid      int64
	Pid      int64
	Reader   Reader
	ROIs     []RegionOfInterest
	Priority int64
	Binding  []int
}

// Scheduler is the engine of §3/§4: it multiplexes a set of Inputs onto a
// fixed set of Outputs. One Scheduler is single-initialized via Init, then
// repeatedly queried via NextRecord until every output reports EOF.
type Scheduler struct {
	opts Options

	inputs  []*Input
	outputs []*Output

	readyQ       *inputQueue
	unscheduledQ *inputQueue
	readyCounter uint64
	unschedCounter uint64

	tid2input map[tidKey]*Input

	switchSequence map[ContextSwitchKind][]Record

	liveInputCount        int64 // atomic
	liveReplayOutputCount int64 // atomic
	numBlocked            int64 // atomic

	schedLock sync.Mutex

	rng *rand.Rand

	recorders []*scheduleRecorder // per output, nil unless recording
	speculator Speculator
}

// NewScheduler validates opts and constructs an un-initialized Scheduler.
func NewScheduler(opts Options) (*Scheduler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		opts:      opts,
		tid2input: make(map[tidKey]*Input),
		rng:       rand.New(rand.NewSource(1)),
	}
	s.readyQ = newInputQueue(&s.readyCounter)
	s.unscheduledQ = newInputQueue(&s.unschedCounter)
	if opts.SpeculateNops {
		s.speculator = NopSpeculator{}
	}
	return s, nil
}

// SetSwitchSequence registers the records to inject on a switch of the
// given kind (§4.11). Passing no records for a kind disables injection for
// that kind; passing none at all disables the feature entirely.
func (s *Scheduler) SetSwitchSequence(kind ContextSwitchKind, records []Record) {
	if s.switchSequence == nil {
		s.switchSequence = make(map[ContextSwitchKind][]Record)
	}
	s.switchSequence[kind] = records
}

// SetSpeculator overrides the default speculator (nil disables speculation
// entirely, even if SpeculateNops was set).
func (s *Scheduler) SetSpeculator(spec Speculator) { s.speculator = spec }

// Init registers inputs, builds outputs, and performs mode-specific setup
// (§3 Lifecycle, §4.1). It must be called exactly once before NextRecord.
func (s *Scheduler) Init(ctx context.Context, specs []InputSpec) error {
	for _, roi := range specs {
		if err := validateRegions(roi.ROIs); err != nil {
			return err
		}
	}
	for i, spec := range specs {
		in := NewInput(i, spec.Workload, spec.Tid, spec.Pid, spec.Reader, spec.ROIs)
		in.priority = spec.Priority
		in.SetBinding(spec.Binding...)
		s.inputs = append(s.inputs, in)
		s.tid2input[tidKey{Workload: spec.Workload, Tid: spec.Tid}] = in
	}
	atomic.StoreInt64(&s.liveInputCount, int64(len(s.inputs)))

	if s.opts.ReadInputsInInit {
		for _, in := range s.inputs {
			if err := s.ensureInit(ctx, in); err != nil {
				return err
			}
		}
	}

	for i := 0; i < s.opts.NumOutputs; i++ {
		s.outputs = append(s.outputs, NewOutput(i))
	}
	if s.opts.ScheduleRecordOstream != nil {
		s.recorders = make([]*scheduleRecorder, len(s.outputs))
		for i := range s.outputs {
			s.recorders[i] = newScheduleRecorder()
		}
	}

	switch s.opts.Mapping {
	case MappingToAnyOutput, MappingTimestampOrdered:
		for _, in := range s.inputs {
			s.readyQ.push(in)
		}
	case MappingToConsistentOutput:
		for i, in := range s.inputs {
			out := s.outputs[i%len(s.outputs)]
			in.prevOutput = out
			out.curInput = in
		}
	case MappingAsPreviously:
		if err := s.initAsPreviously(); err != nil {
			return err
		}
	case MappingToRecordedOutput:
		if err := s.initToRecordedOutput(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) initAsPreviously() error {
	segs, err := ReadAllSegments(s.opts.ScheduleReplayIstream)
	if err != nil {
		return err
	}
	// A single combined stream holds consecutive per-output Version..Footer
	// runs; split on Version boundaries so each output gets its own cursor.
	perOutput := splitSegmentsByOutput(segs, len(s.outputs))
	for i, out := range s.outputs {
		if i < len(perOutput) {
			out.record = perOutput[i]
		}
	}
	atomic.StoreInt64(&s.liveReplayOutputCount, int64(len(s.outputs)))
	return nil
}

func splitSegmentsByOutput(segs []Segment, numOutputs int) [][]Segment {
	var runs [][]Segment
	var cur []Segment
	for _, seg := range segs {
		if seg.Type == SegmentVersion && len(cur) > 0 {
			runs = append(runs, cur)
			cur = nil
		}
		cur = append(cur, seg)
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	for len(runs) < numOutputs {
		runs = append(runs, []Segment{{Type: SegmentVersion, Key: VersionCurrent}, {Type: SegmentFooter}})
	}
	return runs
}

func (s *Scheduler) initToRecordedOutput() error {
	entries, err := ReadTracedScheduleEntries(s.opts.ReplayAsTracedIstream)
	if err != nil {
		return err
	}
	tidToInput := make(map[uint64]int, len(s.inputs))
	for _, in := range s.inputs {
		tidToInput[uint64(in.tid)] = in.index
	}
	logs, err := BuildSegmentLogsFromTraced(entries, tidToInput)
	if err != nil {
		return err
	}
	if len(logs) > len(s.outputs) {
		logrus.Warnf("to-recorded-output: traced schedule has %d cpus but only %d outputs configured; extra cpus dropped", len(logs), len(s.outputs))
		logs = logs[:len(s.outputs)]
	}
	for i, log := range logs {
		s.outputs[i].record = log
	}
	atomic.StoreInt64(&s.liveReplayOutputCount, int64(len(logs)))
	// ToRecordedOutput is translated to AsPreviously for the remainder of
	// the run (§4.1).
	s.opts.Mapping = MappingAsPreviously
	return nil
}

// ensureInit lazily initializes in's reader on first use (§3 Lifecycle),
// may block per §5.
func (s *Scheduler) ensureInit(ctx context.Context, in *Input) error {
	if !in.needsInit {
		return nil
	}
	if err := in.reader.Init(ctx); err != nil {
		return errFileOpen("input reader", err)
	}
	in.needsInit = false
	return nil
}

// Input returns the nth registered input (0-based), for callers that need
// direct access, e.g. to look one up for SetBinding after Init.
func (s *Scheduler) Input(i int) *Input { return s.inputs[i] }

// NumOutputs returns the number of configured outputs.
func (s *Scheduler) NumOutputs() int { return len(s.outputs) }

// Output returns the nth output (0-based), for callers that need direct
// access to its accessor suite or to drive speculation (§6).
func (s *Scheduler) Output(i int) *Output { return s.outputs[i] }

// OutputStat returns one of an output's per-stat counters (§6).
func (s *Scheduler) OutputStat(outputIdx int, c StatCounter) uint64 {
	return s.outputs[outputIdx].Stat(c)
}

// UnreadLastRecord implements the §6 unread_last_record operation: it pushes
// the record most recently returned by NextRecord for this output back onto
// the front of its current input's queue, so the next NextRecord call
// redelivers it. It is Invalid to call with no last record or while the
// output is speculating (§7), and NotImplemented for the low-level (raw
// entry) schema, which can't represent an un-consumed tid/pid header (§6).
func (s *Scheduler) UnreadLastRecord(outputIdx int) (Status, error) {
	o := s.outputs[outputIdx]
	if o.lastRecord == nil {
		return StatusInvalid, errInvalid("unread_last_record called with no last record")
	}
	if o.inSpeculation() {
		return StatusInvalid, errInvalid("unread_last_record called during speculation")
	}
	if _, ok := o.lastRecord.(*RawEntryRecord); ok {
		return StatusNotImplemented, errNotImplemented("unread_last_record")
	}
	if o.curInput == nil {
		return StatusInvalid, errInvalid("unread_last_record: output has no current input")
	}

	rec := o.lastRecord
	if rec.IsInstr() && o.instrsDelivered > 0 {
		o.instrsDelivered--
	}
	withInput(o.curInput, func() {
		o.curInput.pushFront(rec)
	})
	o.lastRecord = nil
	return StatusOK, nil
}

// SetOutputActive implements the §6 set_active accessor (ToAnyOutput only).
func (s *Scheduler) SetOutputActive(outputIdx int, active bool) {
	s.outputs[outputIdx].SetActive(active)
}

// FinishRecording flushes every output's recorded segment log to
// Options.ScheduleRecordOstream, writing the logs one after another in
// output order on that single stream; no per-output "output.%04d"
// component names are written (§6). Call after all outputs have returned
// EOF.
func (s *Scheduler) FinishRecording() error {
	if s.opts.ScheduleRecordOstream == nil {
		return nil
	}
	for i, rec := range s.recorders {
		if rec == nil {
			continue
		}
		stop := uint64(0)
		if in := s.outputs[i].curInput; in != nil {
			stop = in.instructionOrdinal()
		}
		if err := rec.flush(s.opts.ScheduleRecordOstream, stop); err != nil {
			return err
		}
	}
	return nil
}
