package scheduler

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// MappingMode selects one of the five scheduling policies (§4.1).
type MappingMode string

const (
	MappingAsPreviously       MappingMode = "as-previously"
	MappingToAnyOutput        MappingMode = "to-any-output"
	MappingToConsistentOutput MappingMode = "to-consistent-output"
	MappingToRecordedOutput   MappingMode = "to-recorded-output"
	MappingTimestampOrdered   MappingMode = "timestamp-ordered"
)

// ValidMappingModes is the set of recognized mapping mode names.
var ValidMappingModes = map[MappingMode]bool{
	MappingAsPreviously:       true,
	MappingToAnyOutput:        true,
	MappingToConsistentOutput: true,
	MappingToRecordedOutput:   true,
	MappingTimestampOrdered:   true,
}

// Deps names the cross-input ordering dependency mode (§6 deps option).
// Validate checks its value; no scheduling path reads it, and timestamp
// ordering is chosen by MappingTimestampOrdered instead.
type Deps string

const (
	DepsIgnore     Deps = "ignore"
	DepsTimestamps Deps = "timestamps"
)

// QuantumUnit selects instruction- or time-based quantum accounting (§4.5).
type QuantumUnit string

const (
	QuantumInstructions QuantumUnit = "instructions"
	QuantumTime         QuantumUnit = "time"
)

// Options configures a Scheduler. Fields are grouped by concern, the way
// the teacher groups KVCacheConfig/BatchConfig/PolicyConfig (§6).
type Options struct {
	Mapping MappingMode `yaml:"mapping"`
	Deps    Deps        `yaml:"deps"`

	QuantumUnit            QuantumUnit `yaml:"quantum_unit"`
	QuantumDurationInstrs  int64       `yaml:"quantum_duration_instrs"`
	QuantumDurationUs      int64       `yaml:"quantum_duration_us"`
	TimeUnitsPerUs         int64       `yaml:"time_units_per_us"`

	BlockTimeMultiplier     float64 `yaml:"block_time_multiplier"`
	BlockTimeMaxUs          int64   `yaml:"block_time_max_us"`
	BlockingSwitchThreshold uint64  `yaml:"blocking_switch_threshold"`
	SyscallSwitchThreshold  uint64  `yaml:"syscall_switch_threshold"`

	HonorDirectSwitches bool `yaml:"honor_direct_switches"`
	RandomizeNextInput  bool `yaml:"randomize_next_input"`

	ReadInputsInInit    bool `yaml:"read_inputs_in_init"`
	SingleLockstepOutput bool `yaml:"single_lockstep_output"`

	UseInputOrdinals       bool `yaml:"use_input_ordinals"`
	UseSingleInputOrdinals bool `yaml:"use_single_input_ordinals"`
	SpeculateNops          bool `yaml:"speculate_nops"`

	// EmitWindowIDForFirstRegion resolves the §9 Open Question: the
	// original scheduler suppresses WindowId(0) for the very first ROI.
	// Defaults false to match observed behavior; set true to opt back in.
	EmitWindowIDForFirstRegion bool `yaml:"emit_window_id_for_first_region"`

	NumOutputs int `yaml:"num_outputs"`

	ScheduleRecordOstream io.Writer `yaml:"-"`
	ScheduleReplayIstream io.Reader `yaml:"-"`
	ReplayAsTracedIstream io.Reader `yaml:"-"`
	KernelSwitchReader    Reader    `yaml:"-"`

	// Verbosity gates non-fatal diagnostic logging (§7): 0 = silent.
	Verbosity int `yaml:"verbosity"`
}

// DefaultOptions returns an Options populated with the scheduler's default
// constants, matching the ToAnyOutput fast path used by most callers.
func DefaultOptions() Options {
	return Options{
		Mapping:                 MappingToAnyOutput,
		Deps:                    DepsIgnore,
		QuantumUnit:             QuantumInstructions,
		QuantumDurationInstrs:   10_000_000,
		QuantumDurationUs:       1000,
		TimeUnitsPerUs:          1,
		BlockTimeMultiplier:     1.0,
		BlockTimeMaxUs:          250_000,
		BlockingSwitchThreshold: 100,
		SyscallSwitchThreshold:  500,
		HonorDirectSwitches:     true,
		NumOutputs:              1,
	}
}

// LoadOptionsYAML reads and parses a YAML options file, layering it over
// DefaultOptions (unset YAML fields keep their default).
func LoadOptionsYAML(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errFileOpen(path, err)
	}
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, newError(KindFileRead, "parsing options yaml "+path, err)
	}
	return &opts, nil
}

// Validate checks option combinations for internal consistency (§7
// InvalidParameter).
func (o *Options) Validate() error {
	if !ValidMappingModes[o.Mapping] {
		return errInvalidParameter("unknown mapping mode %q", o.Mapping)
	}
	if o.Deps != DepsIgnore && o.Deps != DepsTimestamps {
		return errInvalidParameter("unknown deps mode %q", o.Deps)
	}
	if o.QuantumUnit != QuantumInstructions && o.QuantumUnit != QuantumTime {
		return errInvalidParameter("unknown quantum unit %q", o.QuantumUnit)
	}
	if o.NumOutputs <= 0 {
		return errInvalidParameter("num_outputs must be positive, got %d", o.NumOutputs)
	}
	if o.Mapping == MappingTimestampOrdered && o.NumOutputs != 1 {
		return errInvalidParameter("timestamp-ordered mapping requires exactly one output, got %d", o.NumOutputs)
	}
	if o.Mapping == MappingAsPreviously && o.ScheduleReplayIstream == nil {
		return errInvalidParameter("as-previously mapping requires schedule_replay_istream")
	}
	if o.Mapping == MappingToRecordedOutput && o.ReplayAsTracedIstream == nil {
		return errInvalidParameter("to-recorded-output mapping requires replay_as_traced_istream")
	}
	if o.QuantumUnit == QuantumInstructions && o.QuantumDurationInstrs <= 0 {
		return errInvalidParameter("quantum_duration_instrs must be positive, got %d", o.QuantumDurationInstrs)
	}
	if o.QuantumUnit == QuantumTime && (o.QuantumDurationUs <= 0 || o.TimeUnitsPerUs <= 0) {
		return errInvalidParameter("quantum_duration_us and time_units_per_us must be positive for time quanta")
	}
	if o.BlockTimeMaxUs < 0 {
		return errInvalidParameter("block_time_max_us must be non-negative, got %d", o.BlockTimeMaxUs)
	}
	if o.BlockTimeMultiplier < 0 {
		return errInvalidParameter("block_time_multiplier must be non-negative, got %f", o.BlockTimeMultiplier)
	}
	return nil
}

func (o *Options) String() string {
	return fmt.Sprintf("Options{mapping=%s deps=%s quantum=%s outputs=%d}", o.Mapping, o.Deps, o.QuantumUnit, o.NumOutputs)
}
