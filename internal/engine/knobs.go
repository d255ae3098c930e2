package engine

import "fmt"

// Knob maps a control value onto one constant slot.
type Knob struct {
	Center float64 `yaml:"center" koanf:"center" json:"center"`
	Spread float64 `yaml:"spread" koanf:"spread" json:"spread"`
}

func (k Knob) Resolve(value float64) float64 {
	return k.Center + k.Spread*value
}

// SetMode selects the knob slot driven by SetKnob.
func (e *Engine) SetMode(index int) error {
	if index < 0 || index >= len(e.knobs) {
		return fmt.Errorf("knob mode %d out of range 0..%d", index, len(e.knobs)-1)
	}
	e.mode = index
	return nil
}

func (e *Engine) Mode() int { return e.mode }

// SetKnob sets the value of the knob selected by SetMode and re-resolves
// its constant.
func (e *Engine) SetKnob(value float64) {
	if len(e.knobs) == 0 {
		return
	}
	e.knobValues[e.mode] = value
	e.consts[e.mode] = e.knobs[e.mode].Resolve(value)
}

func (e *Engine) KnobValue(index int) float64 {
	if index < 0 || index >= len(e.knobValues) {
		return 0
	}
	return e.knobValues[index]
}

// Constants returns a copy of the resolved constant slots.
func (e *Engine) Constants() []float64 {
	out := make([]float64, len(e.consts))
	copy(out, e.consts)
	return out
}

// GetParams maps each constant symbol to its resolved value.
func (e *Engine) GetParams() map[string]float64 {
	out := make(map[string]float64, len(e.consts))
	for i, c := range e.consts {
		if sym := e.constSymbol(i); sym != 0 {
			out[string(sym)] = c
		}
	}
	return out
}

// SetParam overrides one constant by symbol, bypassing its knob until the
// knob is moved again.
func (e *Engine) SetParam(name string, value float64) error {
	if len(name) == 1 {
		if o, ok := e.symbols[name[0]]; ok && o.op == opConst && o.slot < len(e.consts) {
			e.consts[o.slot] = value
			return nil
		}
	}
	return fmt.Errorf("no constant symbol %q", name)
}
