package cmd

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzyNorthPole/dynamorio/scheduler"
)

var (
	recordWorkloadDir string
	recordConfigPath  string
	recordNumOutputs  int
	recordOutPath     string
)

// recordCmd runs a ToAnyOutput schedule while recording the resulting
// per-output segment log, so a later `replay` run can reproduce it
// bit-for-bit (§4.10, §6).
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Run a schedule once and record it for later replay",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := loadOptions(recordConfigPath)
		if err != nil {
			logrus.Fatalf("loading options: %v", err)
		}
		if cmd.Flags().Changed("num-outputs") {
			opts.NumOutputs = recordNumOutputs
		}
		opts.Mapping = scheduler.MappingToAnyOutput

		out, err := os.Create(recordOutPath)
		if err != nil {
			logrus.Fatalf("creating schedule output %s: %v", recordOutPath, err)
		}
		defer out.Close()
		opts.ScheduleRecordOstream = out

		sched, err := scheduler.NewScheduler(*opts)
		if err != nil {
			logrus.Fatalf("constructing scheduler: %v", err)
		}
		specs, err := buildInputSpecs(recordWorkloadDir)
		if err != nil {
			logrus.Fatalf("enumerating workload %s: %v", recordWorkloadDir, err)
		}
		ctx := context.Background()
		if err := sched.Init(ctx, specs); err != nil {
			logrus.Fatalf("initializing scheduler: %v", err)
		}
		counts, err := drainOutputs(ctx, sched)
		if err != nil {
			logrus.Fatalf("running schedule: %v", err)
		}
		if err := sched.FinishRecording(); err != nil {
			logrus.Fatalf("flushing schedule recording: %v", err)
		}
		for i, n := range counts {
			logrus.Infof("output %d: delivered %d records", i, n)
		}
		logrus.Infof("schedule recorded to %s", recordOutPath)
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordWorkloadDir, "workload", "", "Directory of per-thread trace shard files")
	recordCmd.Flags().StringVar(&recordConfigPath, "config", "", "Path to a scheduler options YAML file")
	recordCmd.Flags().IntVar(&recordNumOutputs, "num-outputs", 1, "Number of simulated cores")
	recordCmd.Flags().StringVar(&recordOutPath, "schedule-out", "schedule.bin", "Path to write the recorded segment log")
	recordCmd.MarkFlagRequired("workload")
}
