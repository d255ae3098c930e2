package hologram

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesBins(t *testing.T) {
	tests := []struct {
		name       string
		radius     float64
		nx, ny, nz int
		ok         bool
	}{
		{"cube", 10, 8, 8, 8, true},
		{"single bin", 10, 1, 1, 1, true},
		{"max bins", 10, 1024, 1, 1, true},
		{"zero bins", 10, 0, 8, 8, false},
		{"too many bins", 10, 8, 1025, 8, false},
		{"zero radius", 0, 8, 8, 8, false},
		{"nan radius", math.NaN(), 8, 8, 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.radius, tt.nx, tt.ny, tt.nz)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestIndexMapping(t *testing.T) {
	g, err := New(10, 11, 11, 11)
	require.NoError(t, err)

	tests := []struct {
		u    float64
		want int
	}{
		{-10, 0},
		{10, 10},
		{0, 5},
		{0.9, 5},
		{1.0, 6},
		{-1000, 0},
		{1000, 10},
		{math.Inf(1), 10},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, g.index(tt.u, 11), "index(%v)", tt.u)
	}
}

func TestTallyAccumulatesInSameCell(t *testing.T) {
	g, err := New(10, 11, 11, 11)
	require.NoError(t, err)

	g.Tally(0.1, 0.1, 0.1)
	g.Tally(-0.1, 0.2, 0.0)

	i, j, k := g.Cell(0, 0, 0)
	assert.Equal(t, uint32(2), g.Hits(i, j, k))
	assert.Equal(t, uint64(2), g.Total())
	assert.Equal(t, 1, g.Occupied())
}

func TestTallySaturatesOutsideCube(t *testing.T) {
	g, err := New(1, 4, 4, 4)
	require.NoError(t, err)

	g.Tally(50, -50, 0.9)
	assert.Equal(t, uint32(1), g.Hits(3, 0, 3))
}

func TestHitsOutOfRange(t *testing.T) {
	g, err := New(10, 4, 6, 8)
	require.NoError(t, err)
	g.Tally(10, 10, 10)

	assert.Equal(t, uint32(1), g.Hits(3, 5, 7))
	assert.Equal(t, uint32(0), g.Hits(-1, 0, 0))
	assert.Equal(t, uint32(0), g.Hits(4, 0, 0))
	assert.Equal(t, uint32(0), g.Hits(0, 6, 0))
	assert.Equal(t, uint32(0), g.Hits(0, 0, 8))
	// each index is checked against its own axis: j=5 is valid though nx=4
	assert.Equal(t, uint32(0), g.Hits(0, 5, 0))
}

func TestResetAndEach(t *testing.T) {
	g, err := New(2, 3, 3, 3)
	require.NoError(t, err)

	g.Tally(-2, -2, -2)
	g.Tally(2, 2, 2)
	g.Tally(2, 2, 2)

	var visited [][4]int
	g.Each(func(i, j, k int, c uint32) {
		visited = append(visited, [4]int{i, j, k, int(c)})
	})
	assert.Equal(t, [][4]int{{0, 0, 0, 1}, {2, 2, 2, 2}}, visited)

	g.Reset()
	assert.Equal(t, uint64(0), g.Total())
}

func TestDensityMap(t *testing.T) {
	g, err := New(1, 3, 2, 4)
	require.NoError(t, err)

	g.Tally(-1, 1, 0)  // i=0 j=1 k=2
	g.Tally(1, -1, -1) // i=2 j=0 k=0

	m, err := g.DensityMap(Y)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(m, "\n"), "\n")
	assert.Equal(t, []string{"..#.", "....", "#..."}, lines)

	m, err = g.DensityMap(Z)
	require.NoError(t, err)
	assert.Equal(t, ".#\n..\n#.\n", m)

	_, err = g.DensityMap(3)
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	g, err := New(1, 2, 3, 4)
	require.NoError(t, err)

	require.NoError(t, g.Set(1, 2, 3, 7))
	assert.Equal(t, uint32(7), g.Hits(1, 2, 3))
	assert.Error(t, g.Set(2, 0, 0, 1))
	assert.Error(t, g.Set(0, 0, -1, 1))
	assert.Equal(t, uint64(7), g.Total())
}
