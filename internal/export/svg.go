// Package export renders occupancy grids and trajectories as SVG.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/zoosearch/internal/hologram"
)

const svgHeader = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`

// GridToSVG draws the grid collapsed along axis, one square per projected
// cell. Opacity follows the log of the summed count so faint regions stay
// visible next to dense ones.
func GridToSVG(g *hologram.Grid, axis int, cellSize int, fill string) (string, error) {
	if g == nil {
		return "", fmt.Errorf("nil grid")
	}
	if cellSize < 1 {
		cellSize = 1
	}
	sums, err := collapse(g, axis)
	if err != nil {
		return "", err
	}

	rows, cols := len(sums), len(sums[0])
	width, height := cols*cellSize, rows*cellSize

	peak := uint64(0)
	for _, row := range sums {
		for _, c := range row {
			peak = max(peak, c)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, width, height, width, height)
	fmt.Fprintf(&sb, "<g fill=\"%s\">\n", fill)

	for r, row := range sums {
		for c, count := range row {
			if count == 0 {
				continue
			}
			opacity := 1.0
			if peak > 1 {
				opacity = 0.2 + 0.8*math.Log1p(float64(count))/math.Log1p(float64(peak))
			}
			// Row 0 at the bottom, matching a y-up plot.
			y := (rows - 1 - r) * cellSize
			fmt.Fprintf(&sb, "<rect x=\"%d\" y=\"%d\" width=\"%d\" height=\"%d\" fill-opacity=\"%.2f\"/>\n",
				c*cellSize, y, cellSize, cellSize, opacity)
		}
	}

	sb.WriteString("</g>\n</svg>\n")
	return sb.String(), nil
}

func collapse(g *hologram.Grid, axis int) ([][]uint64, error) {
	var rowAxis, colAxis int
	switch axis {
	case hologram.X:
		rowAxis, colAxis = hologram.Y, hologram.Z
	case hologram.Y:
		rowAxis, colAxis = hologram.X, hologram.Z
	case hologram.Z:
		rowAxis, colAxis = hologram.X, hologram.Y
	default:
		return nil, fmt.Errorf("axis must be 0, 1 or 2, got %d", axis)
	}

	nx, ny, nz := g.Bins()
	bins := [3]int{nx, ny, nz}
	sums := make([][]uint64, bins[rowAxis])
	for r := range sums {
		sums[r] = make([]uint64, bins[colAxis])
	}
	g.Each(func(i, j, k int, count uint32) {
		idx := [3]int{i, j, k}
		sums[idx[rowAxis]][idx[colAxis]] += uint64(count)
	})
	return sums, nil
}

// TrajectoryToSVG draws ys against xs as one polyline.
func TrajectoryToSVG(xs, ys []float64, width, height int, strokeColor string) string {
	n := min(len(xs), len(ys))
	if n < 2 {
		return ""
	}

	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := 0; i < n; i++ {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder
	fmt.Fprintf(&sb, svgHeader, width, height, width, height)
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor)

	for i := 0; i < n; i++ {
		x := (xs[i] - minX) / rangeX * float64(width)
		y := float64(height) - (ys[i]-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString("\"/>\n</svg>\n")
	return sb.String()
}
