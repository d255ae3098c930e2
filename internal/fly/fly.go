package fly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/zoosearch/internal/hologram"
)

type Behavior int

const (
	Stable Behavior = iota
	FixedPoint
	Diverge
	Fault
)

var behaviorNames = [...]string{"stable", "fixed_point", "diverge", "fault"}

func (b Behavior) String() string {
	if b < 0 || int(b) >= len(behaviorNames) {
		return fmt.Sprintf("behavior(%d)", int(b))
	}
	return behaviorNames[b]
}

func ParseBehavior(s string) (Behavior, error) {
	for i, name := range behaviorNames {
		if strings.EqualFold(s, name) {
			return Behavior(i), nil
		}
	}
	return 0, fmt.Errorf("unknown behavior %q", s)
}

// Stepper is the part of the engine the classifier drives.
type Stepper interface {
	Update(dt float64, steps int) error
	XPos() float64
	YPos() float64
	ZPos() float64
}

const (
	DefaultSampleRate = 44100
	DefaultDuration   = 300.0

	// cancelCheckSteps is how often FlyContext polls its context.
	cancelCheckSteps = 4096
)

type Config struct {
	SampleRate int
	Duration   float64
	Policy     Policy
}

func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		Duration:   DefaultDuration,
		Policy:     DefaultPolicy(),
	}
}

func (c Config) Dt() float64 { return 1.0 / float64(c.SampleRate) }

func (c Config) Steps() int {
	return int(math.Round(float64(c.SampleRate) * c.Duration))
}

func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if !(c.Duration > 0) {
		return fmt.Errorf("duration must be positive, got %v", c.Duration)
	}
	if !(c.Policy.Bound > 0) {
		return fmt.Errorf("bound must be positive, got %v", c.Policy.Bound)
	}
	if !(c.Policy.FixedPointTolerance >= 0) {
		return fmt.Errorf("fixed-point tolerance must be non-negative, got %v", c.Policy.FixedPointTolerance)
	}
	return nil
}

// Box is the per-axis range of the positions accepted during a run.
type Box struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

func newBox(x, y, z float64) Box {
	return Box{Min: [3]float64{x, y, z}, Max: [3]float64{x, y, z}}
}

func (b *Box) extend(x, y, z float64) {
	for i, v := range [3]float64{x, y, z} {
		b.Min[i] = math.Min(b.Min[i], v)
		b.Max[i] = math.Max(b.Max[i], v)
	}
}

// MaxMagnitude is the largest absolute coordinate reached on any axis.
func (b Box) MaxMagnitude() float64 {
	m := 0.0
	for i := 0; i < 3; i++ {
		m = math.Max(m, math.Max(math.Abs(b.Min[i]), math.Abs(b.Max[i])))
	}
	return m
}

func (b Box) String() string {
	return fmt.Sprintf("x[%.6f, %.6f] y[%.6f, %.6f] z[%.6f, %.6f]",
		b.Min[0], b.Max[0], b.Min[1], b.Max[1], b.Min[2], b.Max[2])
}

type Result struct {
	Behavior Behavior
	Box      Box
	// Steps counts completed engine updates, including the one that ended the run.
	Steps int
	// Err holds the engine fault for Fault results.
	Err error
}

// Fly classifies the trajectory of an already compiled engine. The grid may
// be nil.
func Fly(eng Stepper, cfg Config, grid *hologram.Grid) Result {
	res, _ := FlyContext(context.Background(), eng, cfg, grid)
	return res
}

// FlyContext is Fly that gives up when ctx is done. A cancelled run returns
// the partial result and the context error; it is not a classification.
func FlyContext(ctx context.Context, eng Stepper, cfg Config, grid *hologram.Grid) (Result, error) {
	dt := cfg.Dt()
	steps := cfg.Steps()
	p := cfg.Policy

	px, py, pz := eng.XPos(), eng.YPos(), eng.ZPos()
	res := Result{Box: newBox(px, py, pz)}

	for n := 0; n < steps; n++ {
		if n%cancelCheckSteps == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		if err := eng.Update(dt, 1); err != nil {
			res.Behavior = Fault
			res.Err = err
			return res, nil
		}
		res.Steps++

		x, y, z := eng.XPos(), eng.YPos(), eng.ZPos()
		if p.OutOfBounds(x) || p.OutOfBounds(y) || p.OutOfBounds(z) {
			res.Behavior = Diverge
			return res, nil
		}
		if p.IsFixedPoint(x-px, y-py, z-pz) {
			res.Behavior = FixedPoint
			return res, nil
		}

		res.Box.extend(x, y, z)
		if grid != nil {
			grid.Tally(x, y, z)
		}
		px, py, pz = x, y, z
	}

	res.Behavior = Stable
	return res, nil
}

// IsHit reports whether a result ends a search. Diverge never does; Fault
// does only when stopOnFault is set.
func (r Result) IsHit(stopOnFault bool) bool {
	switch r.Behavior {
	case Diverge:
		return false
	case Fault:
		return stopOnFault
	}
	return true
}

// FaultCause unwraps the engine fault for display.
func (r Result) FaultCause() error {
	if r.Err == nil {
		return nil
	}
	if inner := errors.Unwrap(r.Err); inner != nil {
		return inner
	}
	return r.Err
}
