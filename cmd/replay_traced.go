package cmd

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzyNorthPole/dynamorio/scheduler"
)

var (
	replayTracedWorkloadDir string
	replayTracedConfigPath  string
	replayTracedInPath      string
)

// replayTracedCmd drives a scheduler in ToRecordedOutput mode from a
// hardware-traced CPU schedule, repairing the historical chunk-size
// corruption of §4.10/SUPPLEMENTED FEATURES before replay.
var replayTracedCmd = &cobra.Command{
	Use:   "replay-traced",
	Short: "Replay a workload against a hardware-traced CPU schedule",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := loadOptions(replayTracedConfigPath)
		if err != nil {
			logrus.Fatalf("loading options: %v", err)
		}

		in, err := os.Open(replayTracedInPath)
		if err != nil {
			logrus.Fatalf("opening traced schedule %s: %v", replayTracedInPath, err)
		}
		defer in.Close()
		opts.ReplayAsTracedIstream = in
		opts.Mapping = scheduler.MappingToRecordedOutput

		sched, err := scheduler.NewScheduler(*opts)
		if err != nil {
			logrus.Fatalf("constructing scheduler: %v", err)
		}
		specs, err := buildInputSpecs(replayTracedWorkloadDir)
		if err != nil {
			logrus.Fatalf("enumerating workload %s: %v", replayTracedWorkloadDir, err)
		}
		ctx := context.Background()
		if err := sched.Init(ctx, specs); err != nil {
			logrus.Fatalf("initializing scheduler: %v", err)
		}
		counts, err := drainOutputs(ctx, sched)
		if err != nil {
			logrus.Fatalf("replaying traced schedule: %v", err)
		}
		for i, n := range counts {
			logrus.Infof("cpu %d: replayed %d records", i, n)
		}
	},
}

func init() {
	replayTracedCmd.Flags().StringVar(&replayTracedWorkloadDir, "workload", "", "Directory of per-thread trace shard files")
	replayTracedCmd.Flags().StringVar(&replayTracedConfigPath, "config", "", "Path to a scheduler options YAML file")
	replayTracedCmd.Flags().StringVar(&replayTracedInPath, "traced-schedule-in", "", "Path to a hardware traced-CPU-schedule file")
	replayTracedCmd.MarkFlagRequired("workload")
	replayTracedCmd.MarkFlagRequired("traced-schedule-in")
}
