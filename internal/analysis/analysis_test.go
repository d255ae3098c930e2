package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/zoosearch/internal/dynamo"
	"github.com/san-kum/zoosearch/internal/engine"
	"github.com/san-kum/zoosearch/internal/integrators"
	"github.com/san-kum/zoosearch/internal/physics"
)

// oscillator is a harmonic oscillator in the x-y plane with z decaying.
type oscillator struct{ omega float64 }

func (o *oscillator) StateDim() int { return 3 }
func (o *oscillator) Derive(s dynamo.State, _ float64) dynamo.State {
	return dynamo.State{-o.omega * s[1], o.omega * s[0], -s[2]}
}
func (o *oscillator) GetParams() map[string]float64 { return map[string]float64{"omega": o.omega} }
func (o *oscillator) SetParam(n string, v float64) error {
	if n != "omega" {
		return errors.New("unknown")
	}
	o.omega = v
	return nil
}

func rk4(t *testing.T) dynamo.Integrator {
	t.Helper()
	integ, err := integrators.ByName("rk4")
	require.NoError(t, err)
	return integ
}

func TestLyapunovLorenzPositive(t *testing.T) {
	lambda, err := LyapunovExponent(physics.NewLorenz(), rk4(t), dynamo.State{1, 1, 1}, 0.01, 50, 1e-8)
	require.NoError(t, err)
	assert.Greater(t, lambda, 0.5)
	assert.Less(t, lambda, 1.5)
}

func TestLyapunovOscillatorNearZero(t *testing.T) {
	lambda, err := LyapunovExponent(&oscillator{omega: 1}, rk4(t), dynamo.State{1, 0, 0}, 0.01, 50, 1e-8)
	require.NoError(t, err)
	assert.InDelta(t, 0, lambda, 0.05)
}

func TestLyapunovRejectsBadInput(t *testing.T) {
	_, err := LyapunovExponent(physics.NewLorenz(), rk4(t), nil, 0.01, 1, 1e-8)
	assert.Error(t, err)
	_, err = LyapunovExponent(physics.NewLorenz(), rk4(t), dynamo.State{1, 1, 1}, 0, 1, 1e-8)
	assert.Error(t, err)
}

func compiled(t *testing.T, defs ...string) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Params{
		Alphabet:        "abcdxyz",
		StateSymbols:    "xyz",
		InitialPosition: [3]float64{1, 1, 1},
		Knobs:           []engine.Knob{{Center: 6.7}, {Center: 1}, {Center: 1}, {Center: 1}},
		Integrator:      "rk4",
	}, nil)
	require.NoError(t, err)
	for ch, d := range defs {
		require.NoError(t, e.SelectChannel(ch))
		require.NoError(t, e.Compile(d))
	}
	return e
}

func TestLyapunovReportsEngineFault(t *testing.T) {
	e := compiled(t, "x / (y - y)", "x", "z")
	_, err := LyapunovExponent(e, rk4(t), dynamo.State{1, 1, 1}, 0.01, 1, 1e-8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dynamo.ErrComputationFault))
}

func TestTrace(t *testing.T) {
	tr, err := Trace(&oscillator{omega: 2 * math.Pi}, rk4(t), dynamo.State{1, 0, 1}, 0.001, 2, 201)
	require.NoError(t, err)

	assert.Equal(t, 201, tr.Len())
	assert.Len(t, tr.Axis(0), 201)
	assert.Nil(t, tr.Axis(3))
	assert.InDelta(t, 0, tr.Times[0], 1e-12)
	assert.InDelta(t, 2, tr.Times[200], 1e-9)
	assert.InDelta(t, 100, tr.SampleRate(), 1e-6)
	assert.InDelta(t, 1, tr.Axis(0)[200], 1e-6, "two full periods")
	assert.InDelta(t, math.Exp(-2), tr.Axis(2)[200], 1e-6)
}

func TestTraceStopsOnBlowUp(t *testing.T) {
	e := compiled(t, "x*x", "y", "z")
	tr, err := Trace(e, rk4(t), dynamo.State{1, 1, 1}, 0.01, 5, 50)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnbounded))
	assert.Greater(t, tr.Len(), 1)
}

func TestDominantFrequency(t *testing.T) {
	const rate = 256.0
	data := make([]float64, 1024)
	for i := range data {
		data[i] = 3 + math.Sin(2*math.Pi*8*float64(i)/rate)
	}
	assert.InDelta(t, 8, DominantFrequency(data, rate), 0.25)
	assert.Equal(t, 0.0, DominantFrequency(make([]float64, 64), rate))
	assert.Equal(t, 0.0, DominantFrequency(nil, rate))
}

func TestPowerSpectrumPads(t *testing.T) {
	ps := PowerSpectrum(make([]float64, 100))
	assert.Len(t, ps, 64)
	assert.Len(t, FFT([]float64{1, 0, 0, 0}), 4)
}

func TestSweepRosslerPeriodDoubling(t *testing.T) {
	e := compiled(t, "-y - z", "x + a*y", "b + z*(x - c)")
	require.NoError(t, e.SetParam("a", 0.2))
	require.NoError(t, e.SetParam("b", 0.2))
	require.NoError(t, e.SetParam("c", 2.5))

	points, err := Sweep(e, rk4(t), dynamo.State{1, 1, 1}, SweepConfig{
		Param: "c", From: 2.5, To: 5.7, Steps: 2, Axis: 0,
		Dt: 0.01, Transient: 200, Record: 200,
	})
	require.NoError(t, err)
	require.Len(t, points, 2)

	require.NoError(t, points[0].Err)
	assert.Len(t, points[0].Maxima, 1, "period-1 orbit at c=2.5")
	require.NoError(t, points[1].Err)
	assert.Greater(t, len(points[1].Maxima), 5, "chaotic band at c=5.7")

	assert.Equal(t, 2.5, e.GetParams()["c"], "parameter restored")
}

func TestSweepErrors(t *testing.T) {
	integ := rk4(t)
	_, err := Sweep(physics.NewLorenz(), integ, dynamo.State{1, 1, 1}, SweepConfig{Param: "nope", Dt: 0.01, Record: 1})
	assert.Error(t, err)

	_, err = Sweep(&oscillator{1}, integ, dynamo.State{1, 0, 0}, SweepConfig{Param: "omega", Axis: 5, Dt: 0.01, Record: 1})
	assert.Error(t, err)

	_, err = Sweep(&oscillator{1}, integ, dynamo.State{1, 0, 0}, SweepConfig{Param: "omega", Dt: 0, Record: 1})
	assert.Error(t, err)
}
