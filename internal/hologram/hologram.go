// Package hologram records how often a trajectory visits each cell of a
// cube centred on the origin.
package hologram

import (
	"fmt"
	"math"
)

const (
	MinBins = 1
	MaxBins = 1024
)

// Axis indices.
const (
	X = 0
	Y = 1
	Z = 2
)

// Grid is a fixed-resolution 3D histogram over [-radius, +radius]^3.
// It is not safe for concurrent use.
type Grid struct {
	radius float64
	bins   [3]int
	cells  []uint32
}

func New(radius float64, nx, ny, nz int) (*Grid, error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("radius must be positive and finite, got %v", radius)
	}
	for axis, n := range [3]int{nx, ny, nz} {
		if n < MinBins || n > MaxBins {
			return nil, fmt.Errorf("axis %d: bins must be in %d..%d, got %d", axis, MinBins, MaxBins, n)
		}
	}
	return &Grid{
		radius: radius,
		bins:   [3]int{nx, ny, nz},
		cells:  make([]uint32, nx*ny*nz),
	}, nil
}

func (g *Grid) Radius() float64 { return g.radius }

func (g *Grid) Bins() (nx, ny, nz int) { return g.bins[X], g.bins[Y], g.bins[Z] }

// index quantises one coordinate. Points outside the cube saturate into the
// boundary bin; NaN lands in bin 0.
func (g *Grid) index(u float64, n int) int {
	r := float64(n-1) * ((u + g.radius) / (2 * g.radius))
	if !(r > 0) {
		r = 0
	}
	r = math.Round(r)
	if r > float64(n-1) {
		return n - 1
	}
	return int(r)
}

// Cell returns the grid coordinates of the cell containing (x, y, z).
func (g *Grid) Cell(x, y, z float64) (i, j, k int) {
	return g.index(x, g.bins[X]), g.index(y, g.bins[Y]), g.index(z, g.bins[Z])
}

func (g *Grid) offset(i, j, k int) int {
	return (i*g.bins[Y]+j)*g.bins[Z] + k
}

func (g *Grid) Tally(x, y, z float64) {
	i, j, k := g.Cell(x, y, z)
	off := g.offset(i, j, k)
	if g.cells[off] != math.MaxUint32 {
		g.cells[off]++
	}
}

// Hits returns the count at explicit grid coordinates, or 0 when any
// coordinate is outside its own axis range.
func (g *Grid) Hits(i, j, k int) uint32 {
	if i < 0 || i >= g.bins[X] || j < 0 || j >= g.bins[Y] || k < 0 || k >= g.bins[Z] {
		return 0
	}
	return g.cells[g.offset(i, j, k)]
}

// Set overwrites one cell. Used to rebuild a stored grid.
func (g *Grid) Set(i, j, k int, count uint32) error {
	if i < 0 || i >= g.bins[X] || j < 0 || j >= g.bins[Y] || k < 0 || k >= g.bins[Z] {
		return fmt.Errorf("cell (%d, %d, %d) outside %dx%dx%d grid", i, j, k, g.bins[X], g.bins[Y], g.bins[Z])
	}
	g.cells[g.offset(i, j, k)] = count
	return nil
}

func (g *Grid) Total() uint64 {
	var total uint64
	for _, c := range g.cells {
		total += uint64(c)
	}
	return total
}

// Occupied counts cells with at least one hit.
func (g *Grid) Occupied() int {
	n := 0
	for _, c := range g.cells {
		if c != 0 {
			n++
		}
	}
	return n
}

func (g *Grid) Reset() {
	clear(g.cells)
}

// Each visits every non-empty cell in index order.
func (g *Grid) Each(fn func(i, j, k int, count uint32)) {
	for i := 0; i < g.bins[X]; i++ {
		for j := 0; j < g.bins[Y]; j++ {
			for k := 0; k < g.bins[Z]; k++ {
				if c := g.cells[g.offset(i, j, k)]; c != 0 {
					fn(i, j, k, c)
				}
			}
		}
	}
}
