package expr

import (
	"fmt"
	"slices"
	"strings"
)

const (
	OpSubtract = '-'
	OpAdd      = '+'
	OpMultiply = '*'

	// DefaultMaxOpCount bounds the table built for a seven-symbol alphabet;
	// opcount 4 would hold millions of strings.
	DefaultMaxOpCount = 3
)

// Enumerator is safe for concurrent use once constructed; the table is
// read-only after NewEnumerator returns.
type Enumerator struct {
	alphabet string
	table    [][]string
}

func NewEnumerator(alphabet string, maxOpCount int) (*Enumerator, error) {
	if err := ValidateAlphabet(alphabet); err != nil {
		return nil, err
	}
	if maxOpCount < 0 {
		return nil, fmt.Errorf("max opcount must be non-negative, got %d", maxOpCount)
	}

	e := &Enumerator{
		alphabet: alphabet,
		table:    make([][]string, maxOpCount+1),
	}
	for n := 0; n <= maxOpCount; n++ {
		e.table[n] = e.build(n)
	}
	return e, nil
}

// ValidateAlphabet requires a non-empty set of distinct symbols that are not
// operators or whitespace.
func ValidateAlphabet(alphabet string) error {
	if alphabet == "" {
		return fmt.Errorf("alphabet must not be empty")
	}
	seen := make(map[rune]bool, len(alphabet))
	for _, r := range alphabet {
		if r > 0x7f {
			return fmt.Errorf("alphabet symbol %q is not ASCII", r)
		}
		if strings.ContainsRune("+-*/ \t\n", r) {
			return fmt.Errorf("alphabet symbol %q is reserved", r)
		}
		if seen[r] {
			return fmt.Errorf("duplicate alphabet symbol %q", r)
		}
		seen[r] = true
	}
	return nil
}

// build only reads rows 0..n-1, which are already filled.
func (e *Enumerator) build(n int) []string {
	if n == 0 {
		leaves := make([]string, 0, len(e.alphabet))
		for i := 0; i < len(e.alphabet); i++ {
			leaves = append(leaves, e.alphabet[i:i+1])
		}
		return leaves
	}

	var out []string
	for l := 0; l < n; l++ {
		r := (n - 1) - l
		for _, u := range e.table[l] {
			for _, v := range e.table[r] {
				if u != v {
					out = append(out, u+v+string(OpSubtract))
				}
				if u < v {
					out = append(out, u+v+string(OpAdd))
				}
				if u <= v {
					out = append(out, u+v+string(OpMultiply))
				}
			}
		}
	}
	return out
}

// ExpressionsOf returns the expressions with the given opcount in generation
// order. Opcounts outside 0..MaxOpCount yield an empty slice.
func (e *Enumerator) ExpressionsOf(opcount int) []string {
	if opcount < 0 || opcount >= len(e.table) {
		return []string{}
	}
	return slices.Clone(e.table[opcount])
}

func (e *Enumerator) Count(opcount int) int {
	if opcount < 0 || opcount >= len(e.table) {
		return 0
	}
	return len(e.table[opcount])
}

func (e *Enumerator) Alphabet() string { return e.alphabet }
func (e *Enumerator) MaxOpCount() int  { return len(e.table) - 1 }

// OpCount counts operator characters in a postfix expression.
func OpCount(expression string) int {
	n := 0
	for i := 0; i < len(expression); i++ {
		switch expression[i] {
		case OpSubtract, OpAdd, OpMultiply:
			n++
		}
	}
	return n
}
