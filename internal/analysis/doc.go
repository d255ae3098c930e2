// Package analysis characterises a system found by the search.
//
//   - [LyapunovExponent]: largest Lyapunov exponent via trajectory separation
//   - [Trace]: decimated per-axis time series for plotting
//   - [PowerSpectrum] and [DominantFrequency]: spectral content of a trace
//   - [Sweep]: local maxima of one axis while a constant is swept
//
// A positive largest Lyapunov exponent indicates chaotic dynamics:
//
//	lambda, err := analysis.LyapunovExponent(sys, integ, x0, dt, duration, 1e-8)
//	if err == nil && lambda > 0 {
//	    // chaotic
//	}
//
// Systems that park computation faults (the search engine does) are checked
// after every step through an optional TakeFault method.
package analysis
