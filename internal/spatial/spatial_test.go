package spatial

import (
	"testing"

	"github.com/OCAP2/missionsim/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		p    geo.ECEF
		size float64
		want CellKey
	}{
		{"origin", geo.ECEF{}, 100, CellKey{0, 0, 0}},
		{"positive", geo.ECEF{X: 250, Y: 99.9, Z: 100}, 100, CellKey{2, 0, 1}},
		{"negative floors down", geo.ECEF{X: -0.1, Y: -100, Z: -100.1}, 100, CellKey{-1, -1, -2}},
		{"earth surface", geo.ECEF{X: 6378137}, 100, CellKey{63781, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.p, tt.size))
		})
	}
}

func TestBuild_GroupsByCell(t *testing.T) {
	positions := []geo.ECEF{
		{X: 10, Y: 10, Z: 10},
		{X: 20, Y: 20, Z: 20},
		{X: 150, Y: 10, Z: 10},
	}

	idx := Build(positions, 100)
	assert.Equal(t, []int{0, 1}, idx.Cell(CellKey{0, 0, 0}))
	assert.Equal(t, []int{2}, idx.Cell(CellKey{1, 0, 0}))
	assert.False(t, idx.Empty())
	assert.Equal(t, 100.0, idx.CellSize())
}

func TestBuild_NonPositiveCellSize(t *testing.T) {
	positions := []geo.ECEF{{X: 1}, {X: 2}}

	for _, size := range []float64{0, -5} {
		idx := Build(positions, size)
		assert.True(t, idx.Empty())
		assert.Empty(t, idx.Neighborhood(CellKey{}))
	}
}

func TestNeighborhood_27Cells(t *testing.T) {
	var positions []geo.ECEF
	// one position in the centre of each cell from -2..2 on every axis
	for x := -2; x <= 2; x++ {
		for y := -2; y <= 2; y++ {
			for z := -2; z <= 2; z++ {
				positions = append(positions, geo.ECEF{
					X: float64(x)*10 + 5,
					Y: float64(y)*10 + 5,
					Z: float64(z)*10 + 5,
				})
			}
		}
	}

	idx := Build(positions, 10)
	got := idx.Neighborhood(CellKey{0, 0, 0})
	require.Len(t, got, 27)

	for _, i := range got {
		k := Key(positions[i], 10)
		assert.LessOrEqual(t, abs(k.X), 1)
		assert.LessOrEqual(t, abs(k.Y), 1)
		assert.LessOrEqual(t, abs(k.Z), 1)
	}
}

func TestNeighborhood_FindsEverythingInRange(t *testing.T) {
	const size = 100.0
	query := geo.ECEF{X: 1050, Y: -20, Z: 399}
	positions := []geo.ECEF{
		{X: 1050 + 99, Y: -20, Z: 399},
		{X: 1050, Y: -20 - 100, Z: 399},
		{X: 1050 - 57, Y: -20 + 57, Z: 399 + 57},
		{X: 1050 + 250, Y: -20, Z: 399}, // out of reach
	}

	idx := Build(positions, size)
	got := idx.Neighborhood(Key(query, size))
	assert.ElementsMatch(t, []int{0, 1, 2}, got)
}

func TestRebuild_ReusesAndClears(t *testing.T) {
	idx := Build([]geo.ECEF{{X: 5}, {X: 6}}, 10)
	require.Equal(t, []int{0, 1}, idx.Cell(CellKey{}))

	idx.Rebuild([]geo.ECEF{{X: 25}}, 10)
	assert.Empty(t, idx.Cell(CellKey{}))
	assert.Equal(t, []int{0}, idx.Cell(CellKey{X: 2}))

	// a cell left empty by the previous build is dropped on the next one
	idx.Rebuild([]geo.ECEF{{X: 25}}, 10)
	_, ok := idx.cells[CellKey{}]
	assert.False(t, ok)
	assert.Equal(t, []int{0}, idx.Cell(CellKey{X: 2}))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
