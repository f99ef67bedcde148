package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"electricchair/config"
	"electricchair/experiments/metrics"
	"electricchair/game"
	"electricchair/meta"
	"electricchair/reach"
	"electricchair/solver"
)

type Option func(d *Driver)

// WithCollector plugs in a metrics collector; the default discards.
func WithCollector(c metrics.Collector) Option {
	return func(d *Driver) {
		d.collector = c
	}
}

// WithGoroutines overrides the configured solver worker count.
func WithGoroutines(goroutines int) Option {
	return func(d *Driver) {
		if goroutines > 0 {
			d.goroutines = goroutines
		}
	}
}

// Driver walks the reachable turns in strictly decreasing order and stores
// an equilibrium strategy for every state: terminal states get their
// terminal value directly, in-progress states go through the LP solver with
// the turn above preloaded as the successor oracle.
type Driver struct {
	cfg        config.Config
	reach      *reach.Store
	store      *Store
	goroutines int
	collector  metrics.Collector
}

func NewDriver(cfg config.Config, reachStore *reach.Store, options ...Option) *Driver {
	d := &Driver{
		cfg:        cfg,
		reach:      reachStore,
		store:      NewStore(cfg.Analysis.OutputDirectory, meta.StrategyChunkSize, meta.StrategyLRUChunks),
		goroutines: cfg.Analysis.Goroutines,
		collector:  metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

func (d *Driver) progressPath() string {
	return filepath.Join(d.cfg.Analysis.OutputDirectory, "progress.json")
}

// Init populates the progress record from the enumerator's metadata and
// rescans the store for already-analyzed counts.
func (d *Driver) Init() error {
	p := NewProgress()
	found := 0
	for turn := 0; turn < meta.MaxTurns; turn++ {
		m, ok, err := d.reach.Meta(turn)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		found++
		p.SetTotal(turn, m.TotalCount)

		analyzed, err := d.store.Count(turn)
		if err != nil {
			return err
		}
		p.SetAnalyzed(turn, analyzed)
	}
	if found == 0 {
		return fmt.Errorf("no reachability metadata under %s, enumerate first", d.cfg.Analysis.StateHashDirectory)
	}

	if err := os.MkdirAll(d.cfg.Analysis.OutputDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := p.Save(d.progressPath()); err != nil {
		return err
	}
	log.Info().Int("turns", found).Int("states", p.Remaining()).Msg("progress initialized")
	return nil
}

// Status returns the current progress record.
func (d *Driver) Status() (*Progress, error) {
	return LoadProgress(d.progressPath())
}

// Clear deletes every stored strategy and the progress record.
func (d *Driver) Clear() error {
	if err := os.RemoveAll(d.cfg.Analysis.OutputDirectory); err != nil {
		return fmt.Errorf("failed to clear output directory: %w", err)
	}
	d.store = NewStore(d.cfg.Analysis.OutputDirectory, meta.StrategyChunkSize, meta.StrategyLRUChunks)
	log.Info().Str("dir", d.cfg.Analysis.OutputDirectory).Msg("analysis outputs cleared")
	return nil
}

// Strategy returns the stored strategy for an encoded state, or nil when
// the state has not been analyzed.
func (d *Driver) Strategy(h game.StateHash) (*solver.Strategy, error) {
	return d.store.Get(h)
}

// Run processes up to maxStates states (0 = unlimited) in backward
// induction order and returns how many it stored. Cancellation flushes the
// current batch and exits cleanly; resuming continues from the progress
// record.
func (d *Driver) Run(ctx context.Context, maxStates int) (int, error) {
	p, err := LoadProgress(d.progressPath())
	if err != nil {
		return 0, err
	}
	if len(p.TotalStates) == 0 {
		return 0, fmt.Errorf("progress record is empty, initialize first")
	}

	d.collector.StartRun(d.goroutines, d.cfg.Analysis.MaxBatchSize)
	processed := 0

	for turn := meta.MaxTurns - 1; turn >= 0; turn-- {
		total := p.Total(turn)
		if total == 0 || p.Analyzed(turn) >= total {
			continue
		}
		if maxStates > 0 && processed >= maxStates {
			break
		}

		budget := 0
		if maxStates > 0 {
			budget = maxStates - processed
		}
		n, err := d.runTurn(ctx, p, turn, budget)
		processed += n
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info().Int("processed", processed).Msg("stopped on cancellation")
				return processed, nil
			}
			return processed, err
		}
		if turn+1 < meta.MaxTurns {
			// The turn above is no longer anyone's successor set.
			d.store.Release(turn + 1)
		}
	}

	if err := p.Save(d.progressPath()); err != nil {
		return processed, err
	}
	d.collector.CompleteRun(processed)
	log.Info().Int("processed", processed).Bool("complete", p.IsComplete).Msg("analysis run finished")
	return processed, nil
}

// runTurn stores strategies for up to budget (0 = unlimited) unanalyzed
// states of one turn. Writes happen in ascending hash order so chunk
// assignment, and therefore the on-disk layout, is independent of worker
// scheduling.
func (d *Driver) runTurn(ctx context.Context, p *Progress, turn, budget int) (int, error) {
	hashes, err := d.reach.LoadTurn(turn)
	if err != nil {
		return 0, err
	}

	var values map[game.StateHash]float64
	if turn+1 < meta.MaxTurns {
		values, err = d.store.LoadTurnValues(turn + 1)
		if err != nil {
			return 0, err
		}
	}
	oracle := solver.OracleFunc(func(h game.StateHash) (float64, bool) {
		v, ok := values[h]
		return v, ok
	})

	todo := make([]game.StateHash, 0, len(hashes))
	for _, h := range hashes {
		ok, err := d.store.Contains(h)
		if err != nil {
			return 0, err
		}
		if !ok {
			todo = append(todo, h)
		}
	}
	if budget > 0 && len(todo) > budget {
		todo = todo[:budget]
	}

	d.collector.StartTurn(turn)
	log.Info().Int("turn", turn).Int("todo", len(todo)).Int("total", len(hashes)).Msg("processing turn")

	processed := 0
	for start := 0; start < len(todo); start += d.cfg.Analysis.MaxBatchSize {
		select {
		case <-ctx.Done():
			d.collector.CompleteTurn(processed)
			return processed, ctx.Err()
		default:
		}

		end := min(start+d.cfg.Analysis.MaxBatchSize, len(todo))
		batch := todo[start:end]

		results, err := d.solveBatch(batch, oracle)
		if err != nil {
			d.collector.CompleteTurn(processed)
			return processed, err
		}

		for i, h := range batch {
			if err := d.store.Put(h, results[i]); err != nil {
				return processed, err
			}
			processed++
			if processed%d.cfg.Analysis.SaveInterval == 0 {
				if err := d.checkpoint(p, turn); err != nil {
					return processed, err
				}
			}
		}
		if err := d.checkpoint(p, turn); err != nil {
			return processed, err
		}
	}

	d.collector.CompleteTurn(processed)
	log.Info().Int("turn", turn).Int("processed", processed).Msg("turn done")
	return processed, nil
}

func (d *Driver) checkpoint(p *Progress, turn int) error {
	if err := d.store.Flush(turn); err != nil {
		return err
	}
	analyzed, err := d.store.Count(turn)
	if err != nil {
		return err
	}
	p.SetAnalyzed(turn, analyzed)
	return p.Save(d.progressPath())
}

// solveBatch fans the batch out to the worker pool and reassembles results
// in batch order. Any solver error poisons the whole batch.
func (d *Driver) solveBatch(batch []game.StateHash, oracle solver.Oracle) ([]solver.Strategy, error) {
	scfg := solver.Config{
		DrawValue:       d.cfg.Evaluation.Draw,
		PrecisionDigits: d.cfg.Analysis.PrecisionDigits,
	}

	type job struct {
		i int
		h game.StateHash
	}
	type outcome struct {
		i   int
		s   solver.Strategy
		err error
	}

	jobs := make(chan job, len(batch))
	outcomes := make(chan outcome, len(batch))

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for j := range jobs {
			gs := game.Decode(j.h)
			if gs.Status() != game.InProgress {
				d.collector.AddTerminal()
				outcomes <- outcome{i: j.i, s: solver.TerminalStrategy(gs, scfg)}
				continue
			}
			s, err := solver.Solve(gs, oracle, scfg)
			if err != nil {
				outcomes <- outcome{i: j.i, err: err}
				continue
			}
			d.collector.AddSolved()
			outcomes <- outcome{i: j.i, s: s}
		}
	}

	workers := min(d.goroutines, len(batch))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go worker()
	}
	for i, h := range batch {
		jobs <- job{i: i, h: h}
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	results := make([]solver.Strategy, len(batch))
	var firstErr error
	for o := range outcomes {
		if o.err != nil && firstErr == nil {
			firstErr = o.err
		}
		results[o.i] = o.s
	}
	return results, firstErr
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
