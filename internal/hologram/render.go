package hologram

import (
	"fmt"
	"strings"
)

const (
	MarkOccupied = '#'
	MarkEmpty    = '.'
)

// Projection collapses the grid along one axis. The result is indexed
// [row][col] where rows and columns are the two remaining axes in ascending
// order; a cell is true when any cell along the collapsed axis has a hit.
func (g *Grid) Projection(axis int) ([][]bool, error) {
	rowAxis, colAxis, err := remainingAxes(axis)
	if err != nil {
		return nil, err
	}

	rows, cols := g.bins[rowAxis], g.bins[colAxis]
	out := make([][]bool, rows)
	for r := range out {
		out[r] = make([]bool, cols)
	}

	g.Each(func(i, j, k int, _ uint32) {
		idx := [3]int{i, j, k}
		out[idx[rowAxis]][idx[colAxis]] = true
	})
	return out, nil
}

// DensityMap renders Projection(axis) as text, one line per row.
func (g *Grid) DensityMap(axis int) (string, error) {
	proj, err := g.Projection(axis)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, row := range proj {
		for _, on := range row {
			if on {
				b.WriteByte(MarkOccupied)
			} else {
				b.WriteByte(MarkEmpty)
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func remainingAxes(axis int) (int, int, error) {
	switch axis {
	case X:
		return Y, Z, nil
	case Y:
		return X, Z, nil
	case Z:
		return X, Y, nil
	}
	return 0, 0, fmt.Errorf("axis must be 0, 1 or 2, got %d", axis)
}

func AxisName(axis int) string {
	switch axis {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	}
	return "?"
}
