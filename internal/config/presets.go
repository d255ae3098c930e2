package config

import (
	"sort"

	"github.com/san-kum/zoosearch/internal/engine"
)

// Preset is a named reference system written in infix over the default
// alphabet.
type Preset struct {
	Name            string
	Description     string
	Expressions     [3]string
	Knobs           []engine.Knob
	InitialPosition []float64
}

var Presets = map[string]Preset{
	"rucklidge": {
		Name:            "rucklidge",
		Description:     "double convection, kappa=2 lambda=a",
		Expressions:     [3]string{"-2*x + a*y - y*z", "x", "-z + y*y"},
		Knobs:           []engine.Knob{{Center: 6.7, Spread: 1}, {Center: 1}, {Center: 1}, {Center: 1}},
		InitialPosition: []float64{1.5, -0.5, 0.1},
	},
	"lorenz": {
		Name:            "lorenz",
		Description:     "convection rolls, sigma=a rho=b beta=c",
		Expressions:     [3]string{"a*(y - x)", "x*(b - z) - y", "x*y - c*z"},
		Knobs:           []engine.Knob{{Center: 10, Spread: 1}, {Center: 28, Spread: 1}, {Center: 8.0 / 3.0, Spread: 0.1}, {Center: 1}},
		InitialPosition: []float64{1, 1, 1},
	},
	"rossler": {
		Name:            "rossler",
		Description:     "folded band, a b c as in the classic parameters",
		Expressions:     [3]string{"-y - z", "x + a*y", "b + z*(x - c)"},
		Knobs:           []engine.Knob{{Center: 0.2, Spread: 0.05}, {Center: 0.2, Spread: 0.05}, {Center: 5.7, Spread: 0.5}, {Center: 1}},
		InitialPosition: []float64{1, 1, 1},
	},
}

func GetPreset(name string) *Preset {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	p.Knobs = append([]engine.Knob(nil), p.Knobs...)
	p.InitialPosition = append([]float64(nil), p.InitialPosition...)
	return &p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply returns a copy of cfg set up for the preset: default alphabet and
// state symbols, the preset's knobs and initial position.
func (p *Preset) Apply(cfg *Config) *Config {
	out := *cfg
	out.Alphabet = DefaultAlphabet
	out.StateSymbols = DefaultStateSymbols
	out.Knobs = append([]engine.Knob(nil), p.Knobs...)
	out.InitialPosition = append([]float64(nil), p.InitialPosition...)
	return &out
}
