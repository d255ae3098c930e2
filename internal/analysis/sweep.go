package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/zoosearch/internal/dynamo"
)

// SweepPoint lists the distinct local maxima of one axis at a parameter
// value. One maximum means a period-1 orbit; a large spread means chaos.
// Err is set when the run at this value faulted or left the finite range.
type SweepPoint struct {
	Param  float64
	Maxima []float64
	Err    error
}

const peakTolerance = 1e-3

type SweepConfig struct {
	Param     string
	From, To  float64
	Steps     int
	Axis      int
	Dt        float64
	Transient float64
	Record    float64
}

// Sweep varies one named parameter of a configurable system and records the
// maxima of cfg.Axis after a transient. The parameter is restored afterwards.
func Sweep(sys dynamo.System, integ dynamo.Integrator, x0 dynamo.State, cfg SweepConfig) ([]SweepPoint, error) {
	tunable, ok := sys.(dynamo.Configurable)
	if !ok {
		return nil, errors.New("system has no tunable parameters")
	}
	original, ok := tunable.GetParams()[cfg.Param]
	if !ok {
		return nil, fmt.Errorf("unknown parameter %q", cfg.Param)
	}
	if cfg.Axis < 0 || cfg.Axis >= len(x0) {
		return nil, fmt.Errorf("axis %d out of range", cfg.Axis)
	}
	if !(cfg.Dt > 0) || cfg.Transient < 0 || !(cfg.Record > 0) {
		return nil, errors.New("dt and record must be positive, transient non-negative")
	}
	steps := cfg.Steps
	if steps < 2 {
		steps = 2
	}
	defer tunable.SetParam(cfg.Param, original)

	inc := (cfg.To - cfg.From) / float64(steps-1)
	results := make([]SweepPoint, 0, steps)

	for i := 0; i < steps; i++ {
		param := cfg.From + float64(i)*inc
		if err := tunable.SetParam(cfg.Param, param); err != nil {
			return nil, err
		}
		maxima, err := localMaxima(sys, integ, x0, cfg)
		results = append(results, SweepPoint{Param: param, Maxima: maxima, Err: err})
	}
	return results, nil
}

func localMaxima(sys dynamo.System, integ dynamo.Integrator, x0 dynamo.State, cfg SweepConfig) ([]float64, error) {
	_ = takeFault(sys)
	x := x0.Clone()
	t := 0.0
	var err error

	for t < cfg.Transient {
		if x, err = step(sys, integ, x, t, cfg.Dt); err != nil {
			return nil, err
		}
		t += cfg.Dt
	}

	var peaks []float64
	prev2, prev1 := math.NaN(), x[cfg.Axis]

	for end := t + cfg.Record; t < end; t += cfg.Dt {
		if x, err = step(sys, integ, x, t, cfg.Dt); err != nil {
			return distinct(peaks), err
		}
		cur := x[cfg.Axis]
		if prev1 > prev2 && prev1 >= cur {
			peaks = append(peaks, parabolicPeak(prev2, prev1, cur))
		}
		prev2, prev1 = prev1, cur
	}
	return distinct(peaks), nil
}

// parabolicPeak refines a sampled maximum y1 with its neighbours.
func parabolicPeak(y0, y1, y2 float64) float64 {
	den := y0 - 2*y1 + y2
	if den == 0 {
		return y1
	}
	return y1 - (y0-y2)*(y0-y2)/(8*den)
}

// distinct sorts the peaks and merges those closer than peakTolerance.
func distinct(peaks []float64) []float64 {
	sort.Float64s(peaks)
	var out []float64
	for _, p := range peaks {
		if len(out) == 0 || p-out[len(out)-1] > peakTolerance {
			out = append(out, p)
		}
	}
	return out
}
