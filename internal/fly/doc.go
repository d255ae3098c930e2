// Package fly runs a compiled oscillator for a fixed number of steps and
// labels its long-run behavior.
//
// After every step the classifier applies, in order:
//
//  1. a computation fault from the engine        -> [Fault]
//  2. any coordinate out of bounds               -> [Diverge]
//  3. displacement below the fixed-point radius  -> [FixedPoint]
//
// A run that survives the whole step budget is [Stable]. Faults are absorbed
// here and never returned as errors.
package fly
