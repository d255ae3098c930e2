// Package selftest is the in-binary check suite behind `zoosearch test`.
package selftest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/zoosearch/internal/config"
	"github.com/san-kum/zoosearch/internal/dynamo"
	"github.com/san-kum/zoosearch/internal/engine"
	"github.com/san-kum/zoosearch/internal/expr"
	"github.com/san-kum/zoosearch/internal/fly"
	"github.com/san-kum/zoosearch/internal/hologram"
	"github.com/san-kum/zoosearch/internal/physics"
)

// ExpressionsFile receives the enumerator's output, grouped by opcount.
const ExpressionsFile = "zoosearch_expressions.txt"

const DefaultDemoDuration = 20.0

type Options struct {
	Config *config.Config
	// Dir is where ExpressionsFile is written; empty means the working
	// directory.
	Dir string
	Out io.Writer
	Log *zap.Logger
	// DemoDuration is the simulated length of the demonstration flight.
	DemoDuration float64
}

type suite struct {
	opts Options
	cfg  *config.Config
	enum *expr.Enumerator
	out  io.Writer
	log  *zap.Logger
}

type check struct {
	name string
	fn   func(*suite) error
}

var checks = []check{
	{"enumerator counts", (*suite).enumeratorCounts},
	{"canonical forms", (*suite).canonicalForms},
	{"policy thresholds", (*suite).policyThresholds},
	{"occupancy grid", (*suite).occupancyGrid},
	{"compiled presets", (*suite).compiledPresets},
	{"fault absorption", (*suite).faultAbsorption},
	{"expression dump", (*suite).expressionDump},
	{"demo flight", (*suite).demoFlight},
}

// Run executes every check, reporting each on opts.Out, and returns the
// joined failures.
func Run(opts Options) error {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.DemoDuration <= 0 {
		opts.DemoDuration = DefaultDemoDuration
	}

	s := &suite{opts: opts, cfg: opts.Config, out: opts.Out, log: opts.Log}
	enum, err := expr.NewEnumerator(s.cfg.Alphabet, s.cfg.CacheOpCount)
	if err != nil {
		return fmt.Errorf("enumerator: %w", err)
	}
	s.enum = enum

	var errs []error
	for _, c := range checks {
		start := time.Now()
		err := c.fn(s)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Fprintf(s.out, "FAIL  %s: %v\n", c.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		fmt.Fprintf(s.out, "ok    %s (%s)\n", c.name, elapsed.Round(time.Millisecond))
		s.log.Debug("check passed", zap.String("check", c.name), zap.Duration("elapsed", elapsed))
	}
	return errors.Join(errs...)
}

func (s *suite) enumeratorCounts() error {
	// The reference numbers hold for the default seven-symbol alphabet.
	e, err := expr.NewEnumerator(config.DefaultAlphabet, 1)
	if err != nil {
		return err
	}
	if n := e.Count(0); n != 7 {
		return fmt.Errorf("opcount 0: want 7 leaves, got %d", n)
	}
	if n := e.Count(1); n != 91 {
		return fmt.Errorf("opcount 1: want 91 expressions, got %d", n)
	}
	pool := expr.Candidates(e, 0, 1, config.DefaultStateSymbols)
	if len(pool) != 66 {
		return fmt.Errorf("candidate pool: want 66, got %d", len(pool))
	}
	if got := e.ExpressionsOf(2); len(got) != 0 {
		return fmt.Errorf("opcount beyond the table: want empty, got %d", len(got))
	}
	if got := e.ExpressionsOf(-1); len(got) != 0 {
		return fmt.Errorf("negative opcount: want empty, got %d", len(got))
	}
	return nil
}

func (s *suite) canonicalForms() error {
	seen := make(map[string]bool)
	for n := 0; n <= s.enum.MaxOpCount(); n++ {
		for _, e := range s.enum.ExpressionsOf(n) {
			if seen[e] {
				return fmt.Errorf("duplicate expression %q", e)
			}
			seen[e] = true
			if got := expr.OpCount(e); got != n {
				return fmt.Errorf("%q listed under opcount %d but has %d operators", e, n, got)
			}
		}
	}

	leaves := s.enum.ExpressionsOf(0)
	if len(leaves) < 2 || s.enum.MaxOpCount() < 1 {
		return nil
	}
	a, b := leaves[0], leaves[1]
	if a > b {
		a, b = b, a
	}
	want := map[string]bool{
		a + b + "+": true,
		b + a + "+": false,
		a + a + "+": false,
		a + a + "-": false,
		a + b + "-": true,
		b + a + "-": true,
		a + a + "*": true,
		b + a + "*": false,
	}
	for e, present := range want {
		if seen[e] != present {
			return fmt.Errorf("expression %q: want present=%v", e, present)
		}
	}
	return nil
}

func (s *suite) policyThresholds() error {
	p := s.cfg.FlyConfig().Policy
	switch {
	case p.OutOfBounds(p.Bound):
		return fmt.Errorf("the bound %v itself must be in range", p.Bound)
	case !p.OutOfBounds(math.Nextafter(p.Bound, math.Inf(1))):
		return fmt.Errorf("just above the bound must be out of range")
	case !p.OutOfBounds(math.NaN()) || !p.OutOfBounds(math.Inf(-1)):
		return fmt.Errorf("non-finite values must be out of range")
	case p.IsFixedPoint(p.FixedPointTolerance, 0, 0):
		return fmt.Errorf("a displacement equal to the tolerance is not a fixed point")
	case p.FixedPointTolerance > 0 && !p.IsFixedPoint(p.FixedPointTolerance/2, 0, 0):
		return fmt.Errorf("half the tolerance must be a fixed point")
	}
	return nil
}

func (s *suite) occupancyGrid() error {
	g, err := s.cfg.NewGrid()
	if err != nil {
		return err
	}
	g.Tally(0.1, 0.2, 0.3)
	g.Tally(0.1, 0.2, 0.3)
	i, j, k := g.Cell(0.1, 0.2, 0.3)
	if n := g.Hits(i, j, k); n != 2 {
		return fmt.Errorf("same cell twice: want 2, got %d", n)
	}
	nx, ny, nz := g.Bins()
	for _, idx := range [][3]int{{-1, 0, 0}, {nx, 0, 0}, {0, ny, 0}, {0, 0, nz}} {
		if n := g.Hits(idx[0], idx[1], idx[2]); n != 0 {
			return fmt.Errorf("out-of-range cell %v: want 0, got %d", idx, n)
		}
	}
	r := g.Radius()
	before := g.Hits(nx-1, 0, 0)
	g.Tally(10*r, -10*r, math.NaN())
	if n := g.Hits(nx-1, 0, 0); n != before+1 {
		return fmt.Errorf("points outside the cube must saturate into the boundary cell")
	}
	return nil
}

func (s *suite) compiledPresets() error {
	probes := []dynamo.State{{1, 1, 1}, {1.5, -0.5, 0.1}, {-3, 4, 12}}
	for _, name := range config.ListPresets() {
		preset := config.GetPreset(name)
		native, err := physics.ByName(name)
		if err != nil {
			return err
		}
		eng, err := compilePreset(preset.Apply(s.cfg), preset, s.log)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for _, x := range probes {
			want, got := native.Derive(x, 0), eng.Derive(x, 0)
			for a := range want {
				if math.Abs(want[a]-got[a]) > 1e-9*math.Max(1, math.Abs(want[a])) {
					return fmt.Errorf("%s at %v: %s = %v, native %v", name, x, engine.ChannelName(a), got[a], want[a])
				}
			}
		}
	}
	return nil
}

func (s *suite) faultAbsorption() error {
	eng, err := engine.New(s.cfg.EngineParams(), s.log)
	if err != nil {
		return err
	}
	defs := []string{"x / (y - y)", "x", "z"}
	for ch, d := range defs {
		if err := eng.SelectChannel(ch); err != nil {
			return err
		}
		if err := eng.Compile(d); err != nil {
			return err
		}
	}
	res := fly.Fly(eng, fly.Config{SampleRate: 100, Duration: 1, Policy: s.cfg.FlyConfig().Policy}, nil)
	if res.Behavior != fly.Fault {
		return fmt.Errorf("division by zero classified %s", res.Behavior)
	}
	if !errors.Is(res.Err, dynamo.ErrComputationFault) {
		return fmt.Errorf("fault does not wrap ErrComputationFault: %v", res.Err)
	}
	return nil
}

func (s *suite) expressionDump() error {
	path := filepath.Join(s.opts.Dir, ExpressionsFile)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteExpressions(f, s.enum); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "      wrote %s\n", path)
	return nil
}

// WriteExpressions lists every cached opcount, one expression per line,
// under a "# opcount N (count)" header.
func WriteExpressions(w io.Writer, e *expr.Enumerator) error {
	bw := bufio.NewWriter(w)
	for n := 0; n <= e.MaxOpCount(); n++ {
		list := e.ExpressionsOf(n)
		fmt.Fprintf(bw, "# opcount %d (%d)\n", n, len(list))
		for _, s := range list {
			bw.WriteString(s)
			bw.WriteByte('\n')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func (s *suite) demoFlight() error {
	preset := config.GetPreset("rucklidge")
	cfg := preset.Apply(s.cfg)
	cfg.Duration = s.opts.DemoDuration

	eng, err := compilePreset(cfg, preset, s.log)
	if err != nil {
		return err
	}
	g, err := cfg.NewGrid()
	if err != nil {
		return err
	}

	res := fly.Fly(eng, cfg.FlyConfig(), g)
	fmt.Fprintf(s.out, "%s", indent(eng.Describe()))
	fmt.Fprintf(s.out, "      %s after %d steps, box %s\n", res.Behavior, res.Steps, res.Box)
	if res.Behavior != fly.Stable {
		return fmt.Errorf("rucklidge classified %s, want stable", res.Behavior)
	}

	m, err := g.DensityMap(hologram.Z)
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, indent(fmt.Sprintf("# collapsed along %s\n%s", hologram.AxisName(hologram.Z), m)))
	return nil
}

func compilePreset(cfg *config.Config, p *config.Preset, log *zap.Logger) (*engine.Engine, error) {
	eng, err := engine.New(cfg.EngineParams(), log)
	if err != nil {
		return nil, err
	}
	for ch, src := range p.Expressions {
		if err := eng.SelectChannel(ch); err != nil {
			return nil, err
		}
		if err := eng.Compile(src); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

func indent(text string) string {
	var out []byte
	start := true
	for i := 0; i < len(text); i++ {
		if start {
			out = append(out, "      "...)
			start = false
		}
		out = append(out, text[i])
		if text[i] == '\n' {
			start = true
		}
	}
	return string(out)
}
