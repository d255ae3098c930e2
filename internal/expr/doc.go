// Package expr enumerates small arithmetic expressions in postfix form.
//
// An expression is a string over single-character leaf symbols and the
// binary operators '-', '+' and '*'. Its opcount is the number of operators
// it contains. [Enumerator] builds every canonical expression for opcounts
// 0..max bottom-up at construction time and answers queries from that table:
//
//	e, _ := expr.NewEnumerator("abcdxyz", 3)
//	for _, s := range e.ExpressionsOf(1) {
//	    fmt.Println(s) // "ab-", "ab+", "ab*", ...
//	}
//
// Commutative operators are emitted once per unordered operand pair: a sum
// requires u < v, a product u <= v, so "aa*" exists and "aa+" does not.
// A difference requires u != v and keeps both orders.
package expr
