package scheduler

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestScale_ClampsToBlockTimeMax(t *testing.T) {
	opts := DefaultOptions()
	opts.BlockTimeMultiplier = 2.0
	opts.BlockTimeMaxUs = 1000
	opts.TimeUnitsPerUs = 1

	got := scale(10_000, &opts)
	require.Equal(t, int64(1000), got, "scale must clamp to block_time_max_us")
}

func TestScale_AppliesTimeUnitsPerUs(t *testing.T) {
	opts := DefaultOptions()
	opts.BlockTimeMultiplier = 1.0
	opts.BlockTimeMaxUs = 1_000_000
	opts.TimeUnitsPerUs = 4

	got := scale(100, &opts)
	assert.Equal(t, int64(400), got)
}

// TestScale_PercentileSanity cross-checks a batch of scaled latencies
// against gonum's percentile helper, the way the teacher's latency-model
// tests sanity-check a distribution rather than a single point value.
func TestScale_PercentileSanity(t *testing.T) {
	opts := DefaultOptions()
	opts.BlockTimeMultiplier = 1.0
	opts.BlockTimeMaxUs = 500
	opts.TimeUnitsPerUs = 1

	latencies := []int64{10, 50, 100, 400, 900, 1500}
	scaled := make([]float64, len(latencies))
	for i, l := range latencies {
		scaled[i] = float64(scale(l, &opts))
	}

	sort.Float64s(scaled)
	median := stat.Quantile(0.5, stat.Empirical, scaled, nil)
	require.LessOrEqual(t, median, float64(opts.BlockTimeMaxUs))
	require.GreaterOrEqual(t, median, 0.0)
}

func TestQuantumCheck_InstructionsPreemptsAfterThreshold(t *testing.T) {
	opts := DefaultOptions()
	opts.QuantumUnit = QuantumInstructions
	opts.QuantumDurationInstrs = 3
	in := newTestInput(0, 1)

	var preempted bool
	for i := 0; i < 4; i++ {
		if quantumCheck(in, 0, &opts) {
			preempted = true
			break
		}
	}
	assert.True(t, preempted, "expected a preempt within quantum_duration_instrs+1 calls")
	assert.Zero(t, in.instrsInQuantum, "counter must reset on preempt")
}

func TestQuantumCheck_TimeBased(t *testing.T) {
	opts := DefaultOptions()
	opts.QuantumUnit = QuantumTime
	opts.QuantumDurationUs = 10
	opts.TimeUnitsPerUs = 1
	in := newTestInput(0, 1)

	assert.False(t, quantumCheck(in, 5, &opts))
	assert.True(t, quantumCheck(in, 20, &opts))
}

func TestDischargeQuantumOnSwitch_Instructions(t *testing.T) {
	opts := DefaultOptions()
	opts.QuantumUnit = QuantumInstructions
	opts.QuantumDurationInstrs = 100
	in := newTestInput(0, 1)

	quantumCheck(in, 0, &opts)
	quantumCheck(in, 0, &opts)
	require.Equal(t, int64(2), in.instrsInQuantum)

	dischargeQuantumOnSwitch(in, &opts)
	require.Equal(t, int64(1), in.instrsInQuantum, "discharge must undo exactly the last increment")
}

func TestDischargeQuantumOnSwitch_InstructionsNoUnderflow(t *testing.T) {
	opts := DefaultOptions()
	opts.QuantumUnit = QuantumInstructions
	in := newTestInput(0, 1)

	dischargeQuantumOnSwitch(in, &opts)
	require.Zero(t, in.instrsInQuantum, "discharge on an already-zero counter must not go negative")
}

func TestDischargeQuantumOnSwitch_Time(t *testing.T) {
	opts := DefaultOptions()
	opts.QuantumUnit = QuantumTime
	opts.QuantumDurationUs = 1000
	opts.TimeUnitsPerUs = 1
	in := newTestInput(0, 1)

	quantumCheck(in, 5, &opts)  // delta 5
	quantumCheck(in, 12, &opts) // delta 7, now the one a switch would discharge
	require.Equal(t, int64(12), in.timeSpentInQuantum)

	dischargeQuantumOnSwitch(in, &opts)
	require.Equal(t, int64(5), in.timeSpentInQuantum, "discharge must undo only the latest delta")
}

func TestDischargeQuantumOnSwitch_TimeSkippedAfterPreempt(t *testing.T) {
	opts := DefaultOptions()
	opts.QuantumUnit = QuantumTime
	opts.QuantumDurationUs = 10
	opts.TimeUnitsPerUs = 1
	in := newTestInput(0, 1)

	require.True(t, quantumCheck(in, 20, &opts), "expected a preempt")
	require.Zero(t, in.timeSpentInQuantum, "counter must reset on preempt")

	// A discharge for the same boundary that caused the preempt must not
	// drive the already-reset counter negative.
	dischargeQuantumOnSwitch(in, &opts)
	require.Zero(t, in.timeSpentInQuantum)
}

func TestSyscallIncursSwitch_LegacyNoTimestamps(t *testing.T) {
	opts := DefaultOptions()
	in := newTestInput(0, 1)
	in.processingMaybeBlockingSyscall = true

	sw, bt := syscallIncursSwitch(in, 0, false, &opts)
	require.True(t, sw)
	require.Equal(t, int64(opts.BlockingSwitchThreshold), bt)
}

func TestSyscallIncursSwitch_BelowThresholdNoSwitch(t *testing.T) {
	opts := DefaultOptions()
	in := newTestInput(0, 1)
	in.preSyscallTimestamp = 1000
	in.processingMaybeBlockingSyscall = false

	sw, _ := syscallIncursSwitch(in, 1000+opts.SyscallSwitchThreshold-1, true, &opts)
	require.False(t, sw)
}
