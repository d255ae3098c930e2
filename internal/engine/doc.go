// Package engine compiles per-axis vector-field definitions and advances an
// oscillator's (x, y, z) position with a fixed-step integrator.
//
// Each of the three channels (vx, vy, vz) holds a small stack program
// compiled from infix or postfix text. Leaf symbols are either state symbols,
// which read the current position, or constant symbols, which read a value
// derived from the knob table:
//
//	constant[i] = knobs[i].Center + knobs[i].Spread * knobValue[i]
//
// A typical session:
//
//	eng, _ := engine.New(params, logger)
//	eng.ResetProgram()
//	for ch, text := range []string{"xy-", "x", "yy*z-"} {
//	    eng.SelectChannel(ch)
//	    if err := eng.CompilePostfix(text); err != nil {
//	        return err // *CompileError
//	    }
//	}
//	err := eng.Update(1.0/44100, 1) // *dynamo.Fault on division by zero
//
// An Engine is not safe for concurrent use. Parallel searches build one
// Engine per worker from identical Params.
package engine
