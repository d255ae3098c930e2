package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/zoosearch/internal/config"
	"github.com/san-kum/zoosearch/internal/engine"
	"github.com/san-kum/zoosearch/internal/expr"
	"github.com/san-kum/zoosearch/internal/fly"
	"github.com/san-kum/zoosearch/internal/hologram"
	"github.com/san-kum/zoosearch/internal/ledger"
	"github.com/san-kum/zoosearch/internal/search"
	"github.com/san-kum/zoosearch/internal/storage"
	"github.com/san-kum/zoosearch/internal/tui"
)

var (
	searchWorkers int
	searchResume  bool
	searchTUI     bool
	searchQuiet   bool
	searchNoStore bool
	stopOnFault   bool
)

func newSearchCmd() *cobra.Command {
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "fly every candidate triple until one does not diverge",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  runSearch,
	}
	searchCmd.Flags().IntVar(&searchWorkers, "workers", 0, "parallel workers (overrides workers)")
	searchCmd.Flags().BoolVar(&searchResume, "resume", false, "reuse classifications recorded in the ledger")
	searchCmd.Flags().BoolVar(&searchTUI, "tui", false, "show a live dashboard")
	searchCmd.Flags().BoolVar(&searchQuiet, "quiet", false, "no per-candidate progress lines")
	searchCmd.Flags().BoolVar(&searchNoStore, "no-store", false, "do not save the hit")
	searchCmd.Flags().BoolVar(&stopOnFault, "stop-on-fault", true, "treat a faulted candidate as a hit (overrides stop_on_fault)")
	return searchCmd
}

// recordOnly keeps writing the ledger without replaying it.
type recordOnly struct{ *ledger.Ledger }

func (recordOnly) Lookup(context.Context, search.Triple) (search.Entry, bool, error) {
	return search.Entry{}, false, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if cmd.Flags().Changed("workers") {
		cfg.Workers = searchWorkers
	}
	if cmd.Flags().Changed("stop-on-fault") {
		cfg.StopOnFault = stopOnFault
	}
	if err := cfg.Validate(); err != nil {
		return usageError{err}
	}

	enum, err := expr.NewEnumerator(cfg.Alphabet, cfg.CacheOpCount)
	if err != nil {
		return err
	}
	pool := expr.Candidates(enum, cfg.MinOpCount, cfg.MaxOpCount, cfg.StateSymbols)
	total := search.NewProduct(pool).Len()

	led, err := ledger.Open(cfg.DataDir, cfg.Scope())
	if err != nil {
		return err
	}
	defer led.Close()

	var book search.Ledger = recordOnly{led}
	if searchResume {
		book = led
	}

	params := cfg.EngineParams()
	opts := []search.Option{
		search.WithLogger(log),
		search.WithLedger(book),
		search.WithGrid(cfg.NewGrid),
	}
	if !searchQuiet && !searchTUI {
		opts = append(opts, search.WithProgress(out))
	}
	factory := func() (search.Engine, error) { return engine.New(params, log) }
	searchCfg := search.Config{Fly: cfg.FlyConfig(), StopOnFault: cfg.StopOnFault, Workers: cfg.Workers}

	fmt.Fprintln(out, headerStyle.Render("zoosearch search"))
	fmt.Fprintf(out, "%s%d expressions, %d candidates, %d steps each\n",
		labelStyle.Render("pool"), len(pool), total, searchCfg.Fly.Steps())
	fmt.Fprintf(out, "%s%s\n\n", labelStyle.Render("ledger"), led.Path())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var sum *search.Summary
	if searchTUI {
		title := fmt.Sprintf("%d candidates", total)
		sum, err = tui.Run(ctx, title, total, func(ctx context.Context, obs search.Observer) (*search.Summary, error) {
			return search.New(searchCfg, factory, append(opts, search.WithObserver(obs))...).Run(ctx, pool)
		})
	} else {
		sum, err = search.New(searchCfg, factory, opts...).Run(ctx, pool)
	}
	if err != nil {
		return err
	}

	printSummary(out, sum)
	if sum.Hit == nil || searchNoStore {
		return nil
	}

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}
	id, err := st.Save(sum.Hit, runParams(cfg))
	if err != nil {
		return fmt.Errorf("saving hit: %w", err)
	}
	log.Info("hit saved", zap.String("id", id), zap.Int("index", sum.Hit.Index))
	fmt.Fprintf(out, "%s%s\n", labelStyle.Render("saved"), id)
	return nil
}

func printSummary(w io.Writer, sum *search.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("summary"))
	fmt.Fprintf(w, "%s%d/%d (%d from ledger)\n", labelStyle.Render("evaluated"), sum.Evaluated, sum.Total, sum.Cached)
	for b := fly.Stable; b <= fly.Fault; b++ {
		fmt.Fprintf(w, "%s%d\n", labelStyle.Render(b.String()), sum.Counts[b])
	}
	for _, f := range sum.Faults {
		fmt.Fprintf(w, "%s#%d %s: %v\n", warnStyle.Render("fault "), f.Index, f.Triple, f.Result.FaultCause())
	}

	h := sum.Hit
	if h == nil {
		fmt.Fprintln(w, "\nno candidate survived")
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, hitStyle.Render(fmt.Sprintf("hit #%d: %s", h.Index, h.Result.Behavior)))
	fmt.Fprintln(w, h.Triple)
	fmt.Fprint(w, h.Program)
	fmt.Fprintf(w, "%s%d\n", labelStyle.Render("steps"), h.Result.Steps)
	fmt.Fprintf(w, "%s%s\n", labelStyle.Render("box"), h.Result.Box)
	if h.Result.Err != nil {
		fmt.Fprintf(w, "%s%v\n", labelStyle.Render("fault"), h.Result.Err)
	}
	if h.Grid != nil {
		if m, err := h.Grid.DensityMap(hologram.Z); err == nil {
			fmt.Fprint(w, m)
		}
	}
}

// runParams snapshots the settings a hit was found under.
func runParams(c *config.Config) storage.RunParams {
	p := storage.RunParams{
		Alphabet:            c.Alphabet,
		StateSymbols:        c.StateSymbols,
		Integrator:          c.Integrator,
		SampleRate:          c.SampleRate,
		Duration:            c.Duration,
		Bound:               c.Bound,
		FixedPointTolerance: c.FixedPointTolerance,
		InitialPosition:     c.EngineParams().InitialPosition,
	}
	if eng, err := engine.New(c.EngineParams(), nil); err == nil {
		p.Constants = eng.GetParams()
	}
	return p
}

func newHitsCmd() *cobra.Command {
	hitsCmd := &cobra.Command{
		Use:   "hits",
		Short: "list saved hits",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			hits, err := storage.New(cfg.DataDir).List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintln(out, "no hits found")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tINDEX\tBEHAVIOR\tVX\tVY\tVZ")
			for _, h := range hits {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					h.ID, h.Timestamp.Format("2006-01-02 15:04:05"), h.Index, h.Behavior,
					h.Expressions[0], h.Expressions[1], h.Expressions[2])
			}
			return w.Flush()
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "print a saved hit",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(cfg.DataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render("hit "+meta.ID))
			fmt.Fprintf(out, "%s%s\n", labelStyle.Render("found"), meta.Timestamp.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "%s%d %s\n", labelStyle.Render("candidate"), meta.Index, search.Triple(meta.Expressions))
			fmt.Fprintf(out, "%s%s after %d steps\n", labelStyle.Render("behavior"), meta.Behavior, meta.Steps)
			fmt.Fprintf(out, "%s%s\n", labelStyle.Render("box"), meta.Box)
			fmt.Fprint(out, meta.Program)

			density, err := st.LoadDensity(args[0])
			if errors.Is(err, storage.ErrNoOccupancy) {
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprint(out, density)
			return nil
		},
	}
	hitsCmd.AddCommand(showCmd)
	return hitsCmd
}

var ledgerBehavior string

func newLedgerCmd() *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "inspect the classifications recorded for the current configuration",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			led, err := ledger.Open(cfg.DataDir, cfg.Scope())
			if err != nil {
				return err
			}
			defer led.Close()

			filter := fly.Behavior(-1)
			if ledgerBehavior != "" {
				if filter, err = fly.ParseBehavior(ledgerBehavior); err != nil {
					return usageError{err}
				}
			}

			ctx := cmd.Context()
			counts, err := led.Counts(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var parts []string
			for b := fly.Stable; b <= fly.Fault; b++ {
				parts = append(parts, fmt.Sprintf("%s=%d", b, counts[b]))
			}
			fmt.Fprintf(out, "%s%s\n", labelStyle.Render("recorded"), strings.Join(parts, " "))
			if ledgerBehavior == "" {
				return nil
			}

			entries, err := led.List(ctx, filter)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tVX\tVY\tVZ\tSTEPS\tFAULT")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", e.Index, e.Triple[0], e.Triple[1], e.Triple[2], e.Steps, e.Fault)
			}
			return w.Flush()
		},
	}
	ledgerCmd.Flags().StringVar(&ledgerBehavior, "behavior", "", "list entries with this behavior: stable, fixed_point, diverge, fault")

	ledgerCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "forget the classifications recorded for the current configuration",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			led, err := ledger.Open(cfg.DataDir, cfg.Scope())
			if err != nil {
				return err
			}
			defer led.Close()
			if err := led.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ledger cleared")
			return nil
		},
	})
	return ledgerCmd
}
