package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/zoosearch/internal/analysis"
	"github.com/san-kum/zoosearch/internal/config"
	"github.com/san-kum/zoosearch/internal/dynamo"
	"github.com/san-kum/zoosearch/internal/engine"
	"github.com/san-kum/zoosearch/internal/export"
	"github.com/san-kum/zoosearch/internal/fly"
	"github.com/san-kum/zoosearch/internal/hologram"
	"github.com/san-kum/zoosearch/internal/integrators"
)

const (
	traceDt      = 0.01
	traceSamples = 400
)

var (
	flyPostfix   string
	flyDuration  float64
	flyLyapunov  bool
	flyPlot      bool
	flySVG       string
	flyTraceSVG  string
	flyAxis      int
	sweepParam   string
	sweepFrom    float64
	sweepTo      float64
	sweepSteps   int
	sweepAxis    int
	sweepRecord  float64
	sweepWarmup  float64
	sweepPlotted bool
)

// target is a compiled system plus the configuration it runs under.
type target struct {
	name    string
	cfg     *config.Config
	sources [3]string
	postfix bool
}

func resolveTarget(args []string) (*target, error) {
	if flyPostfix != "" {
		parts := strings.Split(flyPostfix, ",")
		if len(parts) != engine.Channels {
			return nil, usageError{fmt.Errorf("--postfix needs %d comma-separated expressions, got %d", engine.Channels, len(parts))}
		}
		t := &target{name: "candidate", cfg: cfg, postfix: true}
		for i, p := range parts {
			t.sources[i] = strings.TrimSpace(p)
		}
		return t, nil
	}

	name := "rucklidge"
	if len(args) > 0 {
		name = args[0]
	}
	p := config.GetPreset(name)
	if p == nil {
		return nil, usageError{fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())}
	}
	return &target{name: name, cfg: p.Apply(cfg), sources: p.Expressions}, nil
}

// build returns a freshly compiled engine at the initial position.
func (t *target) build() (*engine.Engine, error) {
	eng, err := engine.New(t.cfg.EngineParams(), log)
	if err != nil {
		return nil, err
	}
	for ch, src := range t.sources {
		if err := eng.SelectChannel(ch); err != nil {
			return nil, err
		}
		if t.postfix {
			err = eng.CompilePostfix(src)
		} else {
			err = eng.Compile(src)
		}
		if err != nil {
			return nil, err
		}
	}
	return eng, nil
}

func (t *target) initialState() dynamo.State {
	ip := t.cfg.EngineParams().InitialPosition
	return dynamo.State{ip[0], ip[1], ip[2]}
}

func newFlyCmd() *cobra.Command {
	flyCmd := &cobra.Command{
		Use:   "fly [preset]",
		Short: "classify one system and show its attractor",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE:  runFly,
	}
	flyCmd.Flags().StringVar(&flyPostfix, "postfix", "", "fly a candidate given as vx,vy,vz postfix expressions instead of a preset")
	flyCmd.Flags().Float64Var(&flyDuration, "duration", 0, "simulated seconds (overrides duration)")
	flyCmd.Flags().BoolVar(&flyLyapunov, "lyapunov", false, "estimate the largest Lyapunov exponent")
	flyCmd.Flags().BoolVar(&flyPlot, "plot", true, "plot each axis against time")
	flyCmd.Flags().StringVar(&flySVG, "svg", "", "write the occupancy projection as svg")
	flyCmd.Flags().StringVar(&flyTraceSVG, "trace-svg", "", "write the x-z trajectory as svg")
	flyCmd.Flags().IntVar(&flyAxis, "axis", hologram.Z, "axis collapsed by the density map: 0, 1 or 2")
	return flyCmd
}

func runFly(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	t, err := resolveTarget(args)
	if err != nil {
		return err
	}
	if flyDuration > 0 {
		t.cfg.Duration = flyDuration
	}
	if err := t.cfg.FlyConfig().Validate(); err != nil {
		return usageError{err}
	}

	eng, err := t.build()
	if err != nil {
		return err
	}
	grid, err := t.cfg.NewGrid()
	if err != nil {
		return err
	}

	fc := t.cfg.FlyConfig()
	log.Info("flying", zap.String("system", t.name), zap.Int("steps", fc.Steps()))
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	res, err := fly.FlyContext(ctx, eng, fc, grid)
	stop()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, headerStyle.Render("zoosearch fly "+t.name))
	fmt.Fprint(out, eng.Describe())
	fmt.Fprintf(out, "%s%s after %d steps\n", labelStyle.Render("behavior"), res.Behavior, res.Steps)
	fmt.Fprintf(out, "%s%s\n", labelStyle.Render("box"), res.Box)
	if res.Err != nil {
		fmt.Fprintf(out, "%s%v\n", labelStyle.Render("fault"), res.Err)
	}
	fmt.Fprintf(out, "%s%d occupied, %d samples\n", labelStyle.Render("cells"), grid.Occupied(), grid.Total())

	m, err := grid.DensityMap(flyAxis)
	if err != nil {
		return usageError{err}
	}
	fmt.Fprintf(out, "\n# collapsed along %s\n%s\n", hologram.AxisName(flyAxis), m)

	if flySVG != "" {
		svg, err := export.GridToSVG(grid, flyAxis, 6, "#00cccc")
		if err != nil {
			return err
		}
		if err := os.WriteFile(flySVG, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s%s\n", labelStyle.Render("svg"), flySVG)
	}

	if flyPlot || flyTraceSVG != "" {
		if err := traceTarget(cmd, t); err != nil {
			return err
		}
	}
	if flyLyapunov {
		if err := lyapunovTarget(cmd, t); err != nil {
			return err
		}
	}
	return nil
}

func traceTarget(cmd *cobra.Command, t *target) error {
	out := cmd.OutOrStdout()
	sys, err := t.build()
	if err != nil {
		return err
	}
	integ, err := integrators.ByName(t.cfg.Integrator)
	if err != nil {
		return err
	}

	tr, err := analysis.Trace(sys, integ, t.initialState(), traceDt, min(t.cfg.Duration, 100), traceSamples)
	if err != nil {
		fmt.Fprintf(out, "%s%v\n", warnStyle.Render("trace ended "), err)
	}
	if tr == nil || tr.Len() < 2 {
		return nil
	}

	if flyPlot {
		for a := 0; a < engine.Channels; a++ {
			caption := fmt.Sprintf("%s vs time, dominant %.3f Hz", t.cfg.StateSymbols[a:a+1], analysis.DominantFrequency(tr.Axis(a), tr.SampleRate()))
			fmt.Fprintln(out, asciigraph.Plot(tr.Axis(a),
				asciigraph.Height(10),
				asciigraph.Width(80),
				asciigraph.Caption(caption)))
			fmt.Fprintln(out)
		}
	}
	if flyTraceSVG != "" {
		svg := export.TrajectoryToSVG(tr.Axis(0), tr.Axis(2), 600, 400, "#00cccc")
		if err := os.WriteFile(flyTraceSVG, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s%s\n", labelStyle.Render("trace svg"), flyTraceSVG)
	}
	return nil
}

func lyapunovTarget(cmd *cobra.Command, t *target) error {
	sys, err := t.build()
	if err != nil {
		return err
	}
	integ, err := integrators.ByName(t.cfg.Integrator)
	if err != nil {
		return err
	}
	lambda, err := analysis.LyapunovExponent(sys, integ, t.initialState(), traceDt, min(t.cfg.Duration, 100), 1e-8)
	if err != nil {
		return fmt.Errorf("lyapunov exponent: %w", err)
	}
	verdict := "no sensitive dependence"
	if lambda > 0.01 {
		verdict = "chaotic"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s%.4f (%s)\n", labelStyle.Render("lyapunov"), lambda, verdict)
	return nil
}

func newSweepCmd() *cobra.Command {
	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "bifurcation sweep of one constant",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&flyPostfix, "postfix", "", "sweep a candidate given as vx,vy,vz postfix expressions")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "a", "constant symbol to vary")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 1, "first value")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 10, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 40, "number of values")
	sweepCmd.Flags().IntVar(&sweepAxis, "axis", 2, "axis whose maxima are recorded")
	sweepCmd.Flags().Float64Var(&sweepWarmup, "transient", 50, "seconds discarded before recording")
	sweepCmd.Flags().Float64Var(&sweepRecord, "record", 50, "seconds of maxima recorded per value")
	sweepCmd.Flags().BoolVar(&sweepPlotted, "plot", true, "plot the number of distinct maxima")
	return sweepCmd
}

func runSweep(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	t, err := resolveTarget(args)
	if err != nil {
		return err
	}
	sys, err := t.build()
	if err != nil {
		return err
	}
	integ, err := integrators.ByName(t.cfg.Integrator)
	if err != nil {
		return err
	}

	points, err := analysis.Sweep(sys, integ, t.initialState(), analysis.SweepConfig{
		Param:     sweepParam,
		From:      sweepFrom,
		To:        sweepTo,
		Steps:     sweepSteps,
		Axis:      sweepAxis,
		Dt:        traceDt,
		Transient: sweepWarmup,
		Record:    sweepRecord,
	})
	if err != nil {
		return usageError{err}
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("zoosearch sweep %s %s", t.name, sweepParam)))
	counts := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Err != nil {
			fmt.Fprintf(out, "%10.4f  %s\n", p.Param, warnStyle.Render(p.Err.Error()))
			counts = append(counts, 0)
			continue
		}
		fmt.Fprintf(out, "%10.4f  %3d maxima %s\n", p.Param, len(p.Maxima), summarizeMaxima(p.Maxima))
		counts = append(counts, float64(len(p.Maxima)))
	}
	if sweepPlotted && len(counts) > 1 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, asciigraph.Plot(counts,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("distinct maxima per value")))
	}
	return nil
}

func summarizeMaxima(m []float64) string {
	switch len(m) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("[%.4f]", m[0])
	}
	return fmt.Sprintf("[%.4f .. %.4f]", m[0], m[len(m)-1])
}
