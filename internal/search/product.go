package search

import (
	"fmt"
	"strings"
)

// Triple holds one postfix expression per channel: vx, vy, vz.
type Triple [3]string

func (t Triple) String() string {
	return fmt.Sprintf("vx=[%s] vy=[%s] vz=[%s]", t[0], t[1], t[2])
}

// Key is the ledger key of the triple.
func (t Triple) Key() string {
	return strings.Join(t[:], "|")
}

// Product is the Cartesian cube of a candidate pool.
type Product struct {
	pool []string
}

func NewProduct(pool []string) Product {
	return Product{pool: append([]string(nil), pool...)}
}

func (p Product) PoolSize() int { return len(p.pool) }

func (p Product) Len() int {
	n := len(p.pool)
	return n * n * n
}

func (p Product) At(i int) Triple {
	n := len(p.pool)
	return Triple{p.pool[i/(n*n)], p.pool[(i/n)%n], p.pool[i%n]}
}

// IndexOf is the inverse of At. It returns -1 when any expression is not in
// the pool.
func (p Product) IndexOf(t Triple) int {
	idx := 0
	for _, s := range t {
		pos := -1
		for j, c := range p.pool {
			if c == s {
				pos = j
				break
			}
		}
		if pos < 0 {
			return -1
		}
		idx = idx*len(p.pool) + pos
	}
	return idx
}
