package search_test

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/san-kum/zoosearch/internal/dynamo"
	"github.com/san-kum/zoosearch/internal/fly"
	"github.com/san-kum/zoosearch/internal/search"
)

var errBadExpr = errors.New("bad expression")

// fakeEngine moves according to a rule over the compiled triple instead of
// integrating anything.
type fakeEngine struct {
	rule     func(search.Triple) fly.Behavior
	compiled search.Triple
	channel  int
	n        int
	pos      [3]float64
}

func (f *fakeEngine) ResetProgram() {
	f.compiled = search.Triple{}
	f.n = 0
	f.pos = [3]float64{0.1, 0.2, 0.3}
}

func (f *fakeEngine) SelectChannel(ch int) error {
	f.channel = ch
	return nil
}

func (f *fakeEngine) CompilePostfix(src string) error {
	if src == "bad" {
		return errBadExpr
	}
	f.compiled[f.channel] = src
	return nil
}

func (f *fakeEngine) Update(dt float64, steps int) error {
	f.n += steps
	switch f.rule(f.compiled) {
	case fly.Diverge:
		f.pos[0] = float64(f.n)
		if f.n > 3 {
			f.pos[0] = math.Inf(1)
		}
	case fly.Fault:
		f.pos[1] = float64(f.n) / 10
		if f.n > 2 {
			return &dynamo.Fault{Step: f.n, Op: "vx", Wrapped: dynamo.ErrDivideByZero}
		}
	case fly.FixedPoint:
		if f.n > 5 {
			return nil
		}
		fallthrough
	default:
		f.pos[0] = math.Cos(float64(f.n))
		f.pos[1] = math.Sin(float64(f.n))
	}
	return nil
}

func (f *fakeEngine) XPos() float64    { return f.pos[0] }
func (f *fakeEngine) YPos() float64    { return f.pos[1] }
func (f *fakeEngine) ZPos() float64    { return f.pos[2] }
func (f *fakeEngine) Describe() string { return f.compiled.String() }

// cancelOnUpdate cancels the search from inside the first flight.
type cancelOnUpdate struct {
	*fakeEngine
	cancel context.CancelFunc
}

func (c cancelOnUpdate) Update(dt float64, steps int) error {
	c.cancel()
	return c.fakeEngine.Update(dt, steps)
}

func factory(rule func(search.Triple) fly.Behavior) search.EngineFactory {
	return func() (search.Engine, error) {
		e := &fakeEngine{rule: rule}
		e.ResetProgram()
		return e, nil
	}
}

// divergeUnless classifies the listed triples and diverges everywhere else.
func divergeUnless(special map[search.Triple]fly.Behavior) func(search.Triple) fly.Behavior {
	return func(t search.Triple) fly.Behavior {
		if b, ok := special[t]; ok {
			return b
		}
		return fly.Diverge
	}
}

type memLedger struct {
	mu      sync.Mutex
	entries map[string]search.Entry
	records int
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[string]search.Entry)}
}

func (l *memLedger) Lookup(_ context.Context, t search.Triple) (search.Entry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[t.Key()]
	return e, ok, nil
}

func (l *memLedger) Record(_ context.Context, e search.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[e.Triple.Key()] = e
	l.records++
	return nil
}
