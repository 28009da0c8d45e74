// Package spatial is a uniform grid hash over ECEF positions used to bound
// neighbour searches to the 27 cells around a query point.
package spatial

import (
	"math"

	"github.com/OCAP2/missionsim/internal/geo"
)

// CellKey is the integer grid coordinate of a cell.
type CellKey struct {
	X int
	Y int
	Z int
}

// Key returns the cell containing p for the given cell size.
func Key(p geo.ECEF, cellSize float64) CellKey {
	return CellKey{
		X: int(math.Floor(p.X / cellSize)),
		Y: int(math.Floor(p.Y / cellSize)),
		Z: int(math.Floor(p.Z / cellSize)),
	}
}

// Index maps cells to the indices of the positions inside them.
//
// A neighbourhood query only finds every position within cellSize of the
// query point, so the cell size must equal the search radius.
type Index struct {
	cellSize float64
	cells    map[CellKey][]int
}

// New returns an empty index.
func New() *Index {
	return &Index{cells: make(map[CellKey][]int)}
}

// Build is New followed by Rebuild.
func Build(positions []geo.ECEF, cellSize float64) *Index {
	idx := New()
	idx.Rebuild(positions, cellSize)
	return idx
}

// Rebuild replaces the contents with positions in a single pass. Cell slices
// from the previous build are truncated and reused; cells left empty by the
// previous build are dropped so the map tracks only recently occupied cells.
// A non-positive cell size leaves the index empty.
func (idx *Index) Rebuild(positions []geo.ECEF, cellSize float64) {
	for key, indices := range idx.cells {
		if len(indices) == 0 {
			delete(idx.cells, key)
			continue
		}
		idx.cells[key] = indices[:0]
	}

	idx.cellSize = cellSize
	if cellSize <= 0 {
		return
	}

	for i, p := range positions {
		key := Key(p, cellSize)
		idx.cells[key] = append(idx.cells[key], i)
	}
}

// CellSize returns the cell size of the last build.
func (idx *Index) CellSize() float64 {
	return idx.cellSize
}

// Empty reports whether no position is indexed.
func (idx *Index) Empty() bool {
	if idx.cellSize <= 0 {
		return true
	}
	for _, indices := range idx.cells {
		if len(indices) > 0 {
			return false
		}
	}
	return true
}

// Cell returns the indices in one cell.
func (idx *Index) Cell(key CellKey) []int {
	return idx.cells[key]
}

// Neighbors calls fn for every index stored in the 27 cells spanning base±1
// on each axis. Cells are visited in x, y, z order from -1 to +1.
func (idx *Index) Neighbors(base CellKey, fn func(i int)) {
	if idx.cellSize <= 0 {
		return
	}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				key := CellKey{X: base.X + dx, Y: base.Y + dy, Z: base.Z + dz}
				for _, i := range idx.cells[key] {
					fn(i)
				}
			}
		}
	}
}

// Neighborhood collects the indices Neighbors would visit.
func (idx *Index) Neighborhood(base CellKey) []int {
	var out []int
	idx.Neighbors(base, func(i int) {
		out = append(out, i)
	})
	return out
}
