package expr

import "strings"

// References reports whether the expression mentions any of the symbols.
func References(expression, symbols string) bool {
	return strings.ContainsAny(expression, symbols)
}

// Candidates collects expressions with opcount in [minOp, maxOp] that
// reference at least one state symbol.
func Candidates(e *Enumerator, minOp, maxOp int, stateSymbols string) []string {
	var pool []string
	for n := minOp; n <= maxOp; n++ {
		for _, s := range e.ExpressionsOf(n) {
			if References(s, stateSymbols) {
				pool = append(pool, s)
			}
		}
	}
	return pool
}

// DefaultStateSymbols returns the last three symbols of the alphabet, which
// by convention name the oscillator's own x, y and z.
func DefaultStateSymbols(alphabet string) string {
	if len(alphabet) <= 3 {
		return alphabet
	}
	return alphabet[len(alphabet)-3:]
}
