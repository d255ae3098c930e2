package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/zoosearch/internal/fly"
	"github.com/san-kum/zoosearch/internal/hologram"
)

// Engine is what the orchestrator needs from a compiled oscillator.
type Engine interface {
	fly.Stepper
	ResetProgram()
	SelectChannel(ch int) error
	CompilePostfix(postfix string) error
	Describe() string
}

// EngineFactory builds a fresh engine with the search's physical parameters.
// It is called once per worker.
type EngineFactory func() (Engine, error)

// GridFactory builds the occupancy grid a worker tallies into.
type GridFactory func() (*hologram.Grid, error)

type Config struct {
	Fly fly.Config
	// StopOnFault makes a faulted candidate a hit. When false faults are
	// collected in Summary.Faults and the search moves on.
	StopOnFault bool
	Workers     int
}

// Outcome is one classified candidate.
type Outcome struct {
	Index   int
	Triple  Triple
	Result  fly.Result
	Program string
	// Grid is the occupancy of the run. Nil for ledger replays.
	Grid *hologram.Grid
	// Cached is set when the classification came from the ledger.
	Cached bool
}

type Summary struct {
	Total     int
	Evaluated int
	Cached    int
	Counts    map[fly.Behavior]int
	Faults    []Outcome
	Hit       *Outcome
}

// Progress is reported to observers after every candidate.
type Progress struct {
	Index     int
	Total     int
	Evaluated int
	Triple    Triple
	Behavior  fly.Behavior
	Cached    bool
}

type Observer interface {
	OnCandidate(p Progress)
}

type ObserverFunc func(p Progress)

func (f ObserverFunc) OnCandidate(p Progress) { f(p) }

type Orchestrator struct {
	cfg       Config
	newEngine EngineFactory
	newGrid   GridFactory
	ledger    Ledger
	progress  io.Writer
	observers []Observer
	log       *zap.Logger

	mu sync.Mutex
}

type Option func(*Orchestrator)

func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

func WithLedger(l Ledger) Option { return func(o *Orchestrator) { o.ledger = l } }

// WithProgress writes one line per candidate to w.
func WithProgress(w io.Writer) Option { return func(o *Orchestrator) { o.progress = w } }

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

func WithGrid(f GridFactory) Option { return func(o *Orchestrator) { o.newGrid = f } }

func New(cfg Config, factory EngineFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		newEngine: factory,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run searches the product of pool. Exhausting the product without a hit is
// a successful outcome with a nil Summary.Hit. Compile errors abort the
// search.
func (o *Orchestrator) Run(ctx context.Context, pool []string) (*Summary, error) {
	if o.newEngine == nil {
		return nil, errors.New("search: no engine factory")
	}
	if err := o.cfg.Fly.Validate(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	prod := NewProduct(pool)
	workers := o.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if total := prod.Len(); workers > total {
		workers = max(total, 1)
	}

	o.log.Info("search started",
		zap.Int("pool", prod.PoolSize()),
		zap.Int("candidates", prod.Len()),
		zap.Int("workers", workers),
		zap.Int("steps_per_run", o.cfg.Fly.Steps()),
		zap.Bool("stop_on_fault", o.cfg.StopOnFault))

	var (
		sum *Summary
		err error
	)
	if workers == 1 {
		sum, err = o.runSequential(ctx, prod)
	} else {
		sum, err = o.runParallel(ctx, prod, workers)
	}
	if err != nil {
		return nil, err
	}

	if sum.Hit != nil {
		o.log.Info("hit found",
			zap.Int("index", sum.Hit.Index),
			zap.Stringer("triple", sum.Hit.Triple),
			zap.Stringer("behavior", sum.Hit.Result.Behavior),
			zap.Int("evaluated", sum.Evaluated))
	} else {
		o.log.Info("search exhausted without a hit",
			zap.Int("evaluated", sum.Evaluated),
			zap.Int("faults", len(sum.Faults)))
	}
	return sum, nil
}

func newSummary(total int) *Summary {
	return &Summary{Total: total, Counts: make(map[fly.Behavior]int)}
}

type worker struct {
	eng  Engine
	grid *hologram.Grid
}

func (o *Orchestrator) newWorker() (*worker, error) {
	eng, err := o.newEngine()
	if err != nil {
		return nil, fmt.Errorf("search: engine: %w", err)
	}
	w := &worker{eng: eng}
	if o.newGrid != nil {
		if w.grid, err = o.newGrid(); err != nil {
			return nil, fmt.Errorf("search: grid: %w", err)
		}
	}
	return w, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, prod Product) (*Summary, error) {
	sum := newSummary(prod.Len())
	if sum.Total == 0 {
		return sum, nil
	}
	w, err := o.newWorker()
	if err != nil {
		return nil, err
	}

	for i := 0; i < sum.Total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := o.evaluate(ctx, w, i, prod.At(i))
		if err != nil {
			return nil, err
		}
		o.account(sum, out)

		if out.Result.IsHit(o.cfg.StopOnFault) {
			sum.Hit = &out
			return sum, nil
		}
		if out.Result.Behavior == fly.Fault {
			out.Grid = nil
			sum.Faults = append(sum.Faults, out)
		}
	}
	return sum, nil
}

// runParallel hands out indices in increasing order. Outcomes are accounted
// in index order and never past the lowest stopping index (hit or error), so
// the summary and progress match runSequential. Candidates already in flight
// beyond that index still reach the ledger.
func (o *Orchestrator) runParallel(ctx context.Context, prod Product, workers int) (*Summary, error) {
	sum := newSummary(prod.Len())
	total := int64(sum.Total)

	var (
		next    atomic.Int64
		limit   atomic.Int64
		mu      sync.Mutex
		cursor  int
		pending = make(map[int]Outcome)
		fails   = make(map[int]error)
	)
	limit.Store(total)
	// lower and flush run under mu.
	lower := func(i int64) {
		if i < limit.Load() {
			limit.Store(i)
		}
	}
	flush := func() {
		for int64(cursor) <= limit.Load() {
			out, ok := pending[cursor]
			if !ok {
				return
			}
			delete(pending, cursor)
			o.account(sum, out)
			if out.Result.IsHit(o.cfg.StopOnFault) {
				sum.Hit = &out
			} else if out.Result.Behavior == fly.Fault {
				sum.Faults = append(sum.Faults, out)
			}
			cursor++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for n := 0; n < workers; n++ {
		g.Go(func() error {
			w, err := o.newWorker()
			if err != nil {
				return err
			}
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				i := next.Add(1) - 1
				if i >= limit.Load() {
					return nil
				}

				out, err := o.evaluate(gctx, w, int(i), prod.At(int(i)))
				if cerr := gctx.Err(); err != nil && cerr != nil {
					return cerr
				}
				mu.Lock()
				if err != nil {
					fails[int(i)] = err
					lower(i)
					mu.Unlock()
					return nil
				}
				hit := out.Result.IsHit(o.cfg.StopOnFault)
				if hit {
					lower(i)
				} else {
					out.Grid = nil
				}
				pending[int(i)] = out
				flush()
				mu.Unlock()

				if hit {
					// The grid now belongs to the outcome.
					return nil
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err, ok := fails[int(limit.Load())]; ok {
		return nil, err
	}
	return sum, nil
}

// evaluate compiles and classifies one candidate. Only compile and ledger
// failures are returned; runtime faults are part of the outcome.
func (o *Orchestrator) evaluate(ctx context.Context, w *worker, idx int, t Triple) (Outcome, error) {
	w.eng.ResetProgram()
	for ch, src := range t {
		if err := w.eng.SelectChannel(ch); err != nil {
			return Outcome{}, err
		}
		if err := w.eng.CompilePostfix(src); err != nil {
			return Outcome{}, fmt.Errorf("candidate %d %s: %w", idx, t, err)
		}
	}

	out := Outcome{Index: idx, Triple: t}

	if o.ledger != nil {
		entry, ok, err := o.ledger.Lookup(ctx, t)
		if err != nil {
			return Outcome{}, fmt.Errorf("ledger lookup: %w", err)
		}
		if ok {
			out.Cached = true
			out.Result = fly.Result{Behavior: entry.Behavior, Box: entry.Box, Steps: entry.Steps}
			if entry.Fault != "" {
				out.Result.Err = errors.New(entry.Fault)
			}
			out.Program = w.eng.Describe()
			return out, nil
		}
	}

	if w.grid != nil {
		w.grid.Reset()
	}
	res, err := fly.FlyContext(ctx, w.eng, o.cfg.Fly, w.grid)
	if err != nil {
		return Outcome{}, err
	}
	out.Result = res
	out.Grid = w.grid
	out.Program = w.eng.Describe()

	if o.ledger != nil {
		if err := o.ledger.Record(ctx, entryFromOutcome(out)); err != nil {
			return Outcome{}, fmt.Errorf("ledger record: %w", err)
		}
	}
	return out, nil
}

// account updates the counters and reports progress. Callers serialise it.
func (o *Orchestrator) account(sum *Summary, out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sum.Evaluated++
	if out.Cached {
		sum.Cached++
	}
	sum.Counts[out.Result.Behavior]++

	fields := []zap.Field{
		zap.Int("index", out.Index),
		zap.Stringer("triple", out.Triple),
		zap.Stringer("behavior", out.Result.Behavior),
		zap.Int("steps", out.Result.Steps),
		zap.Bool("cached", out.Cached),
	}
	if out.Result.Behavior == fly.Fault {
		o.log.Warn("candidate faulted", append(fields, zap.Error(out.Result.Err))...)
	} else {
		o.log.Debug("candidate classified", fields...)
	}

	if o.progress != nil {
		mark := ""
		if out.Cached {
			mark = " (ledger)"
		}
		fmt.Fprintf(o.progress, "%d/%d %s -> %s%s\n", out.Index+1, sum.Total, out.Triple, out.Result.Behavior, mark)
	}
	p := Progress{
		Index:     out.Index,
		Total:     sum.Total,
		Evaluated: sum.Evaluated,
		Triple:    out.Triple,
		Behavior:  out.Result.Behavior,
		Cached:    out.Cached,
	}
	for _, obs := range o.observers {
		obs.OnCandidate(p)
	}
}
