package cmd

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzyNorthPole/dynamorio/scheduler"
)

var (
	replayWorkloadDir string
	replayConfigPath  string
	replayInPath      string
)

// replayCmd drives a scheduler in AsPreviously mode from a segment log
// produced by `record`, reproducing the exact same per-output schedule
// (§4.1, §4.10).
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a previously recorded schedule bit-for-bit",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := loadOptions(replayConfigPath)
		if err != nil {
			logrus.Fatalf("loading options: %v", err)
		}
		opts.Mapping = scheduler.MappingAsPreviously

		in, err := os.Open(replayInPath)
		if err != nil {
			logrus.Fatalf("opening schedule log %s: %v", replayInPath, err)
		}
		defer in.Close()
		opts.ScheduleReplayIstream = in

		sched, err := scheduler.NewScheduler(*opts)
		if err != nil {
			logrus.Fatalf("constructing scheduler: %v", err)
		}
		specs, err := buildInputSpecs(replayWorkloadDir)
		if err != nil {
			logrus.Fatalf("enumerating workload %s: %v", replayWorkloadDir, err)
		}
		ctx := context.Background()
		if err := sched.Init(ctx, specs); err != nil {
			logrus.Fatalf("initializing scheduler: %v", err)
		}
		counts, err := drainOutputs(ctx, sched)
		if err != nil {
			logrus.Fatalf("replaying schedule: %v", err)
		}
		for i, n := range counts {
			logrus.Infof("output %d: replayed %d records", i, n)
		}
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayWorkloadDir, "workload", "", "Directory of per-thread trace shard files")
	replayCmd.Flags().StringVar(&replayConfigPath, "config", "", "Path to a scheduler options YAML file")
	replayCmd.Flags().StringVar(&replayInPath, "schedule-in", "schedule.bin", "Path to a recorded segment log")
	replayCmd.MarkFlagRequired("workload")
}
