package analysis

import (
	"fmt"

	"github.com/san-kum/zoosearch/internal/dynamo"
)

// Trajectory holds a decimated run: Axes[a][i] is axis a at Times[i].
type Trajectory struct {
	Times []float64
	Axes  [][]float64
}

// Trace integrates sys from x0 and keeps about samples evenly spaced points
// per axis, the initial state included. A fault or non-finite state ends the
// trace early and is returned along with the points gathered so far.
func Trace(
	sys dynamo.System,
	integ dynamo.Integrator,
	x0 dynamo.State,
	dt, duration float64,
	samples int,
) (*Trajectory, error) {
	if !(dt > 0) || !(duration > 0) {
		return nil, fmt.Errorf("dt and duration must be positive")
	}
	if samples < 2 {
		samples = 2
	}
	steps := int(duration / dt)
	every := steps / (samples - 1)
	if every < 1 {
		every = 1
	}

	tr := &Trajectory{
		Times: make([]float64, 0, samples),
		Axes:  make([][]float64, len(x0)),
	}
	for a := range tr.Axes {
		tr.Axes[a] = make([]float64, 0, samples)
	}
	record := func(x dynamo.State, t float64) {
		tr.Times = append(tr.Times, t)
		for a, v := range x {
			tr.Axes[a] = append(tr.Axes[a], v)
		}
	}

	_ = takeFault(sys)
	x := x0.Clone()
	t := 0.0
	record(x, t)

	var err error
	for n := 1; n <= steps; n++ {
		if x, err = step(sys, integ, x, t, dt); err != nil {
			return tr, err
		}
		t += dt
		if n%every == 0 {
			record(x, t)
		}
	}
	return tr, nil
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

// Axis returns the series of one axis, or nil when out of range.
func (tr *Trajectory) Axis(a int) []float64 {
	if a < 0 || a >= len(tr.Axes) {
		return nil
	}
	return tr.Axes[a]
}

// SampleRate is the rate of the decimated series.
func (tr *Trajectory) SampleRate() float64 {
	if len(tr.Times) < 2 {
		return 0
	}
	return float64(len(tr.Times)-1) / (tr.Times[len(tr.Times)-1] - tr.Times[0])
}
