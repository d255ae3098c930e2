package engine

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/san-kum/zoosearch/internal/dynamo"
	"github.com/san-kum/zoosearch/internal/integrators"
)

const Channels = 3

var channelNames = [Channels]string{"vx", "vy", "vz"}

func ChannelName(ch int) string {
	if ch < 0 || ch >= Channels {
		return fmt.Sprintf("channel(%d)", ch)
	}
	return channelNames[ch]
}

// Params are the physical parameters shared by every engine of a search.
type Params struct {
	Alphabet        string
	StateSymbols    string
	InitialPosition [3]float64
	Knobs           []Knob
	Integrator      string
}

type Engine struct {
	params     Params
	symbols    symbolTable
	programs   [Channels]*Program
	channel    int
	knobs      []Knob
	knobValues []float64
	consts     []float64
	mode       int
	integ      dynamo.Integrator
	pos        dynamo.State
	t          float64
	step       int
	pending    error
	pendingCh  int
	fault      error
	log        *zap.Logger
}

func New(p Params, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(p.StateSymbols) != Channels {
		return nil, fmt.Errorf("need exactly %d state symbols, got %q", Channels, p.StateSymbols)
	}
	for i := 0; i < len(p.Alphabet); i++ {
		c := p.Alphabet[i]
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return nil, fmt.Errorf("alphabet symbol %q must be a letter", c)
		}
	}
	for i := 0; i < len(p.StateSymbols); i++ {
		if !strings.ContainsRune(p.Alphabet, rune(p.StateSymbols[i])) {
			return nil, fmt.Errorf("state symbol %q not in alphabet %q", p.StateSymbols[i], p.Alphabet)
		}
	}

	symbols := newSymbolTable(p.Alphabet, p.StateSymbols)
	if n := symbols.constCount(); len(p.Knobs) < n {
		return nil, fmt.Errorf("alphabet has %d constant symbols but only %d knobs", n, len(p.Knobs))
	}

	integ, err := integrators.ByName(p.Integrator)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		params:     p,
		symbols:    symbols,
		knobs:      append([]Knob(nil), p.Knobs...),
		knobValues: make([]float64, len(p.Knobs)),
		consts:     make([]float64, len(p.Knobs)),
		integ:      integ,
		log:        log,
	}
	for i, k := range e.knobs {
		e.consts[i] = k.Resolve(0)
	}
	e.rewind()
	return e, nil
}

func (e *Engine) Params() Params { return e.params }

func (e *Engine) rewind() {
	ip := e.params.InitialPosition
	e.pos = dynamo.State{ip[0], ip[1], ip[2]}
	e.t = 0
	e.step = 0
	e.pending = nil
	e.fault = nil
}

// ResetProgram clears every compiled channel and returns the oscillator to
// its initial position.
func (e *Engine) ResetProgram() {
	e.programs = [Channels]*Program{}
	e.channel = 0
	e.rewind()
}

func (e *Engine) SelectChannel(ch int) error {
	if ch < 0 || ch >= Channels {
		return fmt.Errorf("channel %d out of range 0..%d", ch, Channels-1)
	}
	e.channel = ch
	return nil
}

// Compile compiles infix text into the selected channel.
func (e *Engine) Compile(infix string) error {
	p, err := compileInfix(e.symbols, infix)
	return e.install(p, err)
}

// CompilePostfix compiles postfix text into the selected channel.
func (e *Engine) CompilePostfix(postfix string) error {
	p, err := compilePostfix(e.symbols, postfix)
	return e.install(p, err)
}

func (e *Engine) install(p *Program, err error) error {
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			ce.Channel = e.channel
		}
		return err
	}
	e.programs[e.channel] = p
	e.log.Debug("compiled channel",
		zap.String("channel", ChannelName(e.channel)),
		zap.String("postfix", p.Postfix()))
	return nil
}

func (e *Engine) Program(ch int) *Program {
	if ch < 0 || ch >= Channels {
		return nil
	}
	return e.programs[ch]
}

func (e *Engine) StateDim() int { return Channels }

// Derive evaluates the three channels. An empty channel contributes zero.
// A fault is parked on the engine and reported by Update.
func (e *Engine) Derive(x dynamo.State, _ float64) dynamo.State {
	out := make(dynamo.State, Channels)
	for ch, p := range e.programs {
		if p == nil {
			continue
		}
		v, err := p.Eval(x, e.consts)
		if err != nil {
			if e.pending == nil {
				e.pending = err
				e.pendingCh = ch
			}
			return make(dynamo.State, Channels)
		}
		out[ch] = v
	}
	return out
}

// Update advances the position by steps increments of dt. A computation
// fault abandons the current step and is returned as a *dynamo.Fault; the
// engine stays faulted until ResetProgram.
func (e *Engine) Update(dt float64, steps int) error {
	if e.fault != nil {
		return e.fault
	}
	e.pending = nil
	for n := 0; n < steps; n++ {
		next := e.integ.Step(e, e.pos, e.t, dt)
		if e.pending != nil {
			e.fault = &dynamo.Fault{
				Step:    e.step,
				Time:    e.t,
				Op:      ChannelName(e.pendingCh),
				Wrapped: e.pending,
			}
			return e.fault
		}
		e.pos = next
		e.t += dt
		e.step++
	}
	return nil
}

// TakeFault returns and clears a fault parked by a Derive call made outside
// Update.
func (e *Engine) TakeFault() error {
	err := e.pending
	e.pending = nil
	return err
}

func (e *Engine) XPos() float64 { return e.pos[0] }
func (e *Engine) YPos() float64 { return e.pos[1] }
func (e *Engine) ZPos() float64 { return e.pos[2] }

func (e *Engine) Position() dynamo.State { return e.pos.Clone() }

func (e *Engine) Time() float64 { return e.t }

// Describe is the human-readable listing of the compiled program.
func (e *Engine) Describe() string {
	var b strings.Builder
	for ch, p := range e.programs {
		if p == nil {
			fmt.Fprintf(&b, "%s = 0\n", ChannelName(ch))
			continue
		}
		fmt.Fprintf(&b, "%s = %s    [%s]\n", ChannelName(ch), p.Infix(), p.Postfix())
	}
	for i, c := range e.consts {
		sym := e.constSymbol(i)
		if sym == 0 {
			continue
		}
		fmt.Fprintf(&b, "%c = %g\n", sym, c)
	}
	return b.String()
}

func (e *Engine) constSymbol(slot int) byte {
	for i := 0; i < len(e.params.Alphabet); i++ {
		c := e.params.Alphabet[i]
		if o := e.symbols[c]; o.op == opConst && o.slot == slot {
			return c
		}
	}
	return 0
}
