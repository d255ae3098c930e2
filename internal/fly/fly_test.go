package fly

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/zoosearch/internal/dynamo"
	"github.com/san-kum/zoosearch/internal/engine"
	"github.com/san-kum/zoosearch/internal/hologram"
)

// scripted replays a fixed list of positions, then holds the last one.
type scripted struct {
	path    [][3]float64
	at      int
	failAt  int
	failErr error
	updates int
}

func (s *scripted) Update(dt float64, steps int) error {
	s.updates++
	if s.failErr != nil && s.updates == s.failAt {
		return s.failErr
	}
	if s.at < len(s.path)-1 {
		s.at++
	}
	return nil
}

func (s *scripted) XPos() float64 { return s.path[s.at][0] }
func (s *scripted) YPos() float64 { return s.path[s.at][1] }
func (s *scripted) ZPos() float64 { return s.path[s.at][2] }

// spiral moves by a fixed amount each step, so it never stalls.
type spiral struct{ n int }

func (s *spiral) Update(dt float64, steps int) error { s.n += steps; return nil }
func (s *spiral) XPos() float64                      { return math.Cos(float64(s.n)) }
func (s *spiral) YPos() float64                      { return math.Sin(float64(s.n)) }
func (s *spiral) ZPos() float64                      { return 0.5 }

func smallConfig(steps int) Config {
	return Config{SampleRate: steps, Duration: 1, Policy: DefaultPolicy()}
}

func TestConfigSteps(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 13230000, cfg.Steps())
	assert.InDelta(t, 1.0/44100, cfg.Dt(), 1e-15)
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.SampleRate = 0
	assert.Error(t, bad.Validate())
	bad = cfg
	bad.Duration = math.NaN()
	assert.Error(t, bad.Validate())
	bad = cfg
	bad.Policy.Bound = -1
	assert.Error(t, bad.Validate())
}

func TestFlyStable(t *testing.T) {
	grid, err := hologram.New(2, 16, 16, 16)
	require.NoError(t, err)

	res := Fly(&spiral{}, smallConfig(200), grid)
	assert.Equal(t, Stable, res.Behavior)
	assert.Equal(t, 200, res.Steps)
	assert.NoError(t, res.Err)
	assert.Equal(t, uint64(200), grid.Total())
	assert.LessOrEqual(t, res.Box.MaxMagnitude(), 1.0)
	assert.InDelta(t, 0.5, res.Box.Min[2], 1e-12)
	assert.InDelta(t, 0.5, res.Box.Max[2], 1e-12)
}

func TestFlyDiverge(t *testing.T) {
	s := &scripted{path: [][3]float64{{0, 0, 0}, {1, 1, 1}, {50, 2, 2}, {0, 101, 0}, {1, 1, 1}}}
	grid, err := hologram.New(200, 8, 8, 8)
	require.NoError(t, err)

	res := Fly(s, smallConfig(10), grid)
	assert.Equal(t, Diverge, res.Behavior)
	assert.Equal(t, 3, res.Steps)
	assert.Equal(t, uint64(2), grid.Total(), "divergent position is not tallied")
	assert.Equal(t, [3]float64{50, 2, 2}, res.Box.Max)
	assert.Equal(t, [3]float64{0, 0, 0}, res.Box.Min)
}

func TestFlyDivergeOnNaN(t *testing.T) {
	s := &scripted{path: [][3]float64{{0, 0, 0}, {math.NaN(), 0, 0}}}
	res := Fly(s, smallConfig(10), nil)
	assert.Equal(t, Diverge, res.Behavior)
	assert.Equal(t, 1, res.Steps)
}

func TestFlyFixedPoint(t *testing.T) {
	s := &scripted{path: [][3]float64{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}, {2, 2, 2}}}
	res := Fly(s, smallConfig(10), nil)
	assert.Equal(t, FixedPoint, res.Behavior)
	assert.Equal(t, 3, res.Steps)
	assert.Equal(t, [3]float64{2, 2, 2}, res.Box.Max)
}

func TestFlyFixedPointBoundary(t *testing.T) {
	s := &scripted{path: [][3]float64{{0, 0, 0}, {1e-8, 0, 0}, {0, 0, 0}, {1e-8, 0, 0}}}
	res := Fly(s, smallConfig(3), nil)
	assert.Equal(t, Stable, res.Behavior, "a displacement of exactly the tolerance keeps running")
}

func TestFlyFault(t *testing.T) {
	fault := &dynamo.Fault{Step: 4, Op: "vy", Wrapped: dynamo.ErrDivideByZero}
	s := &scripted{path: [][3]float64{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}, {4, 0, 0}, {5, 0, 0}}, failAt: 5, failErr: fault}

	res := Fly(s, smallConfig(10), nil)
	assert.Equal(t, Fault, res.Behavior)
	assert.Equal(t, 4, res.Steps)
	assert.True(t, errors.Is(res.Err, dynamo.ErrComputationFault))
	assert.Equal(t, dynamo.ErrDivideByZero, res.FaultCause())
}

func TestFaultBeatsDiverge(t *testing.T) {
	s := &scripted{path: [][3]float64{{0, 0, 0}, {500, 0, 0}}, failAt: 1, failErr: dynamo.ErrDivideByZero}
	res := Fly(s, smallConfig(5), nil)
	assert.Equal(t, Fault, res.Behavior)
	assert.Equal(t, 0, res.Steps)
}

func TestDivergeBeatsFixedPoint(t *testing.T) {
	s := &scripted{path: [][3]float64{{150, 0, 0}, {150, 0, 0}}}
	res := Fly(s, smallConfig(5), nil)
	assert.Equal(t, Diverge, res.Behavior)
}

func TestBehaviorStrings(t *testing.T) {
	for _, b := range []Behavior{Stable, FixedPoint, Diverge, Fault} {
		got, err := ParseBehavior(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
	_, err := ParseBehavior("chaotic")
	assert.Error(t, err)
	assert.Equal(t, "behavior(9)", Behavior(9).String())
}

func TestIsHit(t *testing.T) {
	assert.True(t, Result{Behavior: Stable}.IsHit(false))
	assert.True(t, Result{Behavior: FixedPoint}.IsHit(false))
	assert.False(t, Result{Behavior: Diverge}.IsHit(true))
	assert.True(t, Result{Behavior: Fault}.IsHit(true))
	assert.False(t, Result{Behavior: Fault}.IsHit(false))
}

func rucklidgeEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(engine.Params{
		Alphabet:        "abcdxyz",
		StateSymbols:    "xyz",
		InitialPosition: [3]float64{1.5, -0.5, 0.1},
		Knobs:           []engine.Knob{{Center: 6.7}, {Center: 1}, {Center: 1}, {Center: 1}},
		Integrator:      "rk4",
	}, nil)
	require.NoError(t, err)
	for ch, src := range []string{"-2*x + a*y - y*z", "x", "-z + y*y"} {
		require.NoError(t, eng.SelectChannel(ch))
		require.NoError(t, eng.Compile(src))
	}
	return eng
}

func TestFlyRucklidgeShort(t *testing.T) {
	eng := rucklidgeEngine(t)
	cfg := DefaultConfig()
	cfg.Duration = 5

	res := Fly(eng, cfg, nil)
	assert.Equal(t, Stable, res.Behavior)
	assert.Equal(t, cfg.Steps(), res.Steps)
}

func TestFlyRucklidgeEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("13M-step run")
	}
	eng := rucklidgeEngine(t)
	grid, err := hologram.New(20, 64, 64, 64)
	require.NoError(t, err)

	cfg := DefaultConfig()
	res := Fly(eng, cfg, grid)
	require.Equal(t, Stable, res.Behavior, "box %s", res.Box)
	assert.Equal(t, cfg.Steps(), res.Steps)
	assert.LessOrEqual(t, res.Box.MaxMagnitude(), cfg.Policy.Bound)
	assert.Greater(t, grid.Occupied(), 100)
}

// cancelling calls cancel on its nth update.
type cancelling struct {
	spiral
	at     int
	cancel context.CancelFunc
}

func (c *cancelling) Update(dt float64, steps int) error {
	if c.n+steps == c.at {
		c.cancel()
	}
	return c.spiral.Update(dt, steps)
}

func TestFlyContextStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng := &cancelling{at: 10000, cancel: cancel}

	res, err := FlyContext(ctx, eng, smallConfig(1_000_000), nil)
	require.ErrorIs(t, err, context.Canceled)
	// The context is polled every cancelCheckSteps updates.
	assert.Equal(t, 3*cancelCheckSteps, res.Steps)
	assert.Equal(t, res.Steps, eng.n)
}

func TestFlyContextCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := &spiral{}

	res, err := FlyContext(ctx, eng, smallConfig(100), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Steps)
	assert.Zero(t, eng.n)
}

func TestFlyContextMatchesFly(t *testing.T) {
	want := Fly(&spiral{}, smallConfig(500), nil)
	got, err := FlyContext(context.Background(), &spiral{}, smallConfig(500), nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
