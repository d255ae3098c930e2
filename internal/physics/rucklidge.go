package physics

import (
	"fmt"

	"github.com/san-kum/zoosearch/internal/dynamo"
)

// Rucklidge models double convection:
//
//	x' = -kappa*x + lambda*y - y*z
//	y' = x
//	z' = -z + y^2
type Rucklidge struct{ kappa, lambda float64 }

func NewRucklidge() *Rucklidge     { return &Rucklidge{2.0, 6.7} }
func (r *Rucklidge) StateDim() int { return 3 }

func (r *Rucklidge) Derive(s dynamo.State, _ float64) dynamo.State {
	return dynamo.State{-r.kappa*s[0] + r.lambda*s[1] - s[1]*s[2], s[0], -s[2] + s[1]*s[1]}
}
func (r *Rucklidge) DefaultState() dynamo.State { return dynamo.State{1.5, -0.5, 0.1} }
func (r *Rucklidge) GetParams() map[string]float64 {
	return map[string]float64{"kappa": r.kappa, "lambda": r.lambda}
}
func (r *Rucklidge) SetParam(n string, v float64) error {
	switch n {
	case "kappa":
		r.kappa = v
	case "lambda":
		r.lambda = v
	default:
		return fmt.Errorf("rucklidge: unknown parameter %q", n)
	}
	return nil
}
