package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zzyNorthPole/dynamorio/scheduler"
)

// buildInputSpecs enumerates workloadDir with an FSDirectoryEnumerator and
// opens a FileReader for each shard, inferring tid/pid from the filename
// convention "<pid>.<tid>.trace" the way the teacher's workload loader
// infers request fields from its CSV/ShareGPT inputs.
func buildInputSpecs(workloadDir string) ([]scheduler.InputSpec, error) {
	files, err := (scheduler.FSDirectoryEnumerator{}).ListInputFiles(workloadDir)
	if err != nil {
		return nil, err
	}
	specs := make([]scheduler.InputSpec, 0, len(files))
	for _, f := range files {
		pid, tid, err := parseShardName(f)
		if err != nil {
			return nil, fmt.Errorf("parsing shard name %s: %w", f, err)
		}
		specs = append(specs, scheduler.InputSpec{
			Workload: workloadDir,
			Tid:      tid,
			Pid:      pid,
			Reader:   scheduler.NewFileReader(f, tid, pid),
		})
	}
	return specs, nil
}

// parseShardName extracts (pid, tid) from a "<pid>.<tid>.trace" shard
// filename.
func parseShardName(path string) (pid, tid int64, err error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.Split(base, ".")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("expected <pid>.<tid>.<ext>, got %q", base)
	}
	pid, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	tid, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return pid, tid, nil
}

// drainOutputs runs every output of sched to EOF via NextRecord, counting
// delivered records per output (§4.4/§4.9 main loop, driven the way a
// caller like a simulator would).
func drainOutputs(ctx context.Context, sched *scheduler.Scheduler) ([]uint64, error) {
	counts := make([]uint64, sched.NumOutputs())
	done := make([]bool, sched.NumOutputs())
	remaining := sched.NumOutputs()
	var curTime int64
	for remaining > 0 {
		progressed := false
		for i := 0; i < sched.NumOutputs(); i++ {
			if done[i] {
				continue
			}
			_, status, err := sched.NextRecord(ctx, i, curTime)
			if err != nil {
				return nil, err
			}
			switch status {
			case scheduler.StatusOK:
				counts[i]++
				progressed = true
			case scheduler.StatusEOF:
				done[i] = true
				remaining--
				progressed = true
			case scheduler.StatusSkipped:
				progressed = true
			}
		}
		curTime++
		if !progressed {
			logrus.Debugf("drainOutputs: no output progressed at curTime=%d, %d outputs still pending", curTime, remaining)
		}
	}
	return counts, nil
}
