package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"electricchair/analysis"
	"electricchair/config"
	"electricchair/experiments"
	"electricchair/meta"
	"electricchair/reach"
)

type options struct {
	num        int
	initMode   bool
	statusMode bool
	clearMode  bool
	configMode bool
	enumerate  bool
	experiment bool
	drawValue  float64
	drawSet    bool
	configFile string
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	opts := parseFlags()
	if err := run(opts); err != nil {
		log.Error().Err(err).Msg("analyzer failed")
		os.Exit(1)
	}
}

func parseFlags() options {
	opts := options{}

	flag.IntVar(&opts.num, "num", 1000, "solve up to this many states")
	flag.IntVar(&opts.num, "n", 1000, "shorthand for -num")
	flag.BoolVar(&opts.initMode, "init", false, "load reachability metadata and initialize progress")
	flag.BoolVar(&opts.initMode, "i", false, "shorthand for -init")
	flag.BoolVar(&opts.statusMode, "status", false, "print the progress summary")
	flag.BoolVar(&opts.statusMode, "s", false, "shorthand for -status")
	flag.BoolVar(&opts.clearMode, "clear", false, "delete strategy outputs and reset progress")
	flag.BoolVar(&opts.clearMode, "c", false, "shorthand for -clear")
	flag.BoolVar(&opts.configMode, "config", false, "print the resolved configuration")
	flag.BoolVar(&opts.enumerate, "enumerate", false, "run the reachability enumeration pass")
	flag.BoolVar(&opts.enumerate, "e", false, "shorthand for -enumerate")
	flag.BoolVar(&opts.experiment, "experiment", false, "run the worker scaling experiment")
	flag.BoolVar(&opts.experiment, "x", false, "shorthand for -experiment")
	flag.Float64Var(&opts.drawValue, "draw-value", 0, "override the draw payoff")
	flag.Float64Var(&opts.drawValue, "d", 0, "shorthand for -draw-value")
	flag.StringVar(&opts.configFile, "config-file", "", "path to the JSON configuration document")
	flag.StringVar(&opts.configFile, "f", "", "shorthand for -config-file")
	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "draw-value" || f.Name == "d" {
			opts.drawSet = true
		}
	})
	return opts
}

func run(opts options) error {
	modes := 0
	for _, on := range []bool{opts.initMode, opts.statusMode, opts.clearMode, opts.configMode, opts.enumerate, opts.experiment} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return fmt.Errorf("modes are mutually exclusive, pick one of -init, -status, -clear, -config, -enumerate, -experiment")
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if opts.drawSet {
		cfg.Evaluation.Draw = opts.drawValue
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reachStore := reach.NewStore(cfg.Analysis.StateHashDirectory, meta.ReachChunkSize)
	driver := analysis.NewDriver(cfg, reachStore)

	switch {
	case opts.configMode:
		fmt.Println(cfg)
		return nil
	case opts.enumerate:
		return reach.NewEnumerator(reachStore).Run(ctx)
	case opts.experiment:
		return experiments.RunWorkerScalingExperiment(cfg)
	case opts.initMode:
		return driver.Init()
	case opts.statusMode:
		return printStatus(driver)
	case opts.clearMode:
		return driver.Clear()
	default:
		processed, err := driver.Run(ctx, opts.num)
		if err != nil {
			return err
		}
		fmt.Printf("Processed %d states.\n", processed)
		return nil
	}
}

func printStatus(driver *analysis.Driver) error {
	progress, err := driver.Status()
	if err != nil {
		return err
	}
	if len(progress.TotalStates) == 0 {
		fmt.Println("No progress record. Run with -init first.")
		return nil
	}

	fmt.Println("turn  analyzed     total")
	for turn := 0; turn < meta.MaxTurns; turn++ {
		total := progress.Total(turn)
		if total == 0 {
			continue
		}
		fmt.Printf("%4d  %8d  %8d\n", turn, progress.Analyzed(turn), total)
	}
	fmt.Printf("remaining: %d states\n", progress.Remaining())
	fmt.Printf("complete: %v (last updated %s)\n", progress.IsComplete, progress.LastUpdated.Format("2006-01-02 15:04:05"))
	return nil
}
