// Package search walks the Cartesian product of candidate expressions over
// the three velocity channels and stops at the first candidate whose
// trajectory does not diverge.
//
// Candidates are numbered by their position in the product: index i
// compiles pool[i/n²] into vx, pool[(i/n)%n] into vy and pool[i%n] into vz.
// With several workers every worker owns a private engine, and the reported
// hit is still the lowest-indexed one, so the outcome does not depend on the
// worker count.
package search
