package experiments

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"electricchair/analysis"
	"electricchair/config"
	"electricchair/experiments/metrics"
	"electricchair/meta"
	"electricchair/reach"
)

const StatesPerRun = 5000 // Per worker configuration

var workerConfigs = []int{1, 2, 4, 8, 16, 32}

// RunWorkerScalingExperiment measures analyzer throughput as the solver
// worker pool grows. Every configuration solves the same budget of states
// from the same reachability data into its own scratch store, so the runs
// are comparable.
func RunWorkerScalingExperiment(cfg config.Config) error {
	reachStore := reach.NewStore(cfg.Analysis.StateHashDirectory, meta.ReachChunkSize)

	writer, err := metrics.NewWriter()
	if err != nil {
		return err
	}

	runRows := []metrics.RunRow{}
	turnRows := []metrics.TurnRow{}

	log.Info().Msg("starting worker scaling experiment...")

	for i, goroutines := range workerConfigs {
		log.Info().Msgf("starting run %d of %d with %d workers...", i+1, len(workerConfigs), goroutines)

		scratch, err := os.MkdirTemp("", "electricchair-scaling-*")
		if err != nil {
			return fmt.Errorf("failed to create scratch directory: %w", err)
		}

		runCfg := cfg
		runCfg.Analysis.OutputDirectory = scratch

		collector := metrics.NewCollector()
		driver := analysis.NewDriver(runCfg, reachStore,
			analysis.WithCollector(collector),
			analysis.WithGoroutines(goroutines))

		if err := driver.Init(); err != nil {
			return err
		}
		processed, err := driver.Run(context.Background(), StatesPerRun)
		if err != nil {
			return err
		}

		run := collector.CompleteRun(processed)
		runRows = append(runRows, metrics.RunRow{ID: i + 1, RunRecord: run})
		for _, turn := range collector.TurnRecords() {
			turnRows = append(turnRows, metrics.TurnRow{Run: i + 1, TurnRecord: turn})
		}

		log.Info().Msgf("run %d processed %d states in %s", i+1, processed, run.Duration)

		if err := os.RemoveAll(scratch); err != nil {
			return fmt.Errorf("failed to remove scratch directory: %w", err)
		}
	}

	if err := writer.WriteRunRecords(runRows); err != nil {
		return err
	}
	if err := writer.WriteTurnRecords(turnRows); err != nil {
		return err
	}

	log.Info().Msg("finished worker scaling experiment.")
	return nil
}
