// Package physics provides native reference attractors.
//
// Each model implements [dynamo.System] and [dynamo.Configurable]:
//
//   - [Lorenz]: butterfly attractor
//   - [Rossler]: spiral chaos
//   - [Rucklidge]: double convection attractor
//
// They are the ground truth for compiled engine programs: a preset written
// as infix text must produce the same derivative as its native model.
package physics
