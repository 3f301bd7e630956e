package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzyNorthPole/dynamorio/scheduler"
)

var (
	runWorkloadDir string
	runConfigPath  string
	runNumOutputs  int
	runMapping     string
)

// runCmd drives a scheduler over a workload directory to EOF on every
// output, the way the teacher's runCmd drives a simulator to its horizon.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Schedule a workload's per-thread traces onto simulated cores",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := loadOptions(runConfigPath)
		if err != nil {
			logrus.Fatalf("loading options: %v", err)
		}
		if cmd.Flags().Changed("num-outputs") {
			opts.NumOutputs = runNumOutputs
		}
		if cmd.Flags().Changed("mapping") {
			opts.Mapping = scheduler.MappingMode(runMapping)
		}

		sched, err := scheduler.NewScheduler(*opts)
		if err != nil {
			logrus.Fatalf("constructing scheduler: %v", err)
		}
		specs, err := buildInputSpecs(runWorkloadDir)
		if err != nil {
			logrus.Fatalf("enumerating workload %s: %v", runWorkloadDir, err)
		}
		ctx := context.Background()
		if err := sched.Init(ctx, specs); err != nil {
			logrus.Fatalf("initializing scheduler: %v", err)
		}

		counts, err := drainOutputs(ctx, sched)
		if err != nil {
			logrus.Fatalf("running schedule: %v", err)
		}
		for i, n := range counts {
			logrus.Infof("output %d: delivered %d records, quantum preempts=%d, migrations=%d",
				i, n,
				sched.OutputStat(i, scheduler.StatQuantumPreempts),
				sched.OutputStat(i, scheduler.StatMigrations))
		}
	},
}

func loadOptions(path string) (*scheduler.Options, error) {
	if path == "" {
		opts := scheduler.DefaultOptions()
		return &opts, nil
	}
	return scheduler.LoadOptionsYAML(path)
}

func init() {
	runCmd.Flags().StringVar(&runWorkloadDir, "workload", "", "Directory of per-thread trace shard files")
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to a scheduler options YAML file")
	runCmd.Flags().IntVar(&runNumOutputs, "num-outputs", 1, "Number of simulated cores")
	runCmd.Flags().StringVar(&runMapping, "mapping", string(scheduler.MappingToAnyOutput), "Mapping mode: as-previously, to-any-output, to-consistent-output, to-recorded-output, timestamp-ordered")
	runCmd.MarkFlagRequired("workload")
}
