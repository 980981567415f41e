/*
Copyright © 2026 the GreenVar authors.
This file is part of GreenVar.

GreenVar is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GreenVar is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GreenVar.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package greenvar analyzes the relationship between inter-annual
// variability in satellite-derived crop planting dates (green-up dates)
// and inter-annual variability in rainfall. It provides gridded temporal
// statistics, growing-season rainfall aggregation, cropland masking,
// rainfall zonation, and weighted least-squares regression between the
// resulting products.
package greenvar

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// geomTolerance is the relative tolerance used when comparing
// grid affine parameters.
const geomTolerance = 1.e-9

// GridDef describes the geometry of a regular raster grid:
// the coordinates of the lower-left corner of the grid,
// the cell size, the number of cells in each direction, and
// the spatial reference in Proj4 format.
type GridDef struct {
	X0, Y0 float64 // lower-left corner of the grid
	Dx, Dy float64 // cell edge lengths
	Nx, Ny int     // number of cells in the x and y directions
	SR     string  // spatial reference; Proj4 format
}

// Equal reports whether d and o describe the same grid geometry.
// Affine parameters are compared with a small relative tolerance.
func (d GridDef) Equal(o GridDef) bool {
	return d.Nx == o.Nx && d.Ny == o.Ny && d.SR == o.SR &&
		closeTo(d.X0, o.X0) && closeTo(d.Y0, o.Y0) &&
		closeTo(d.Dx, o.Dx) && closeTo(d.Dy, o.Dy)
}

func closeTo(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= geomTolerance*math.Max(math.Abs(a), math.Abs(b))
}

// CellCenter returns the coordinates of the center of the cell in
// row j (y direction) and column i (x direction).
func (d GridDef) CellCenter(j, i int) (x, y float64) {
	return d.X0 + (float64(i)+0.5)*d.Dx, d.Y0 + (float64(j)+0.5)*d.Dy
}

// cellIndex returns the row and column of the cell containing point
// (x, y), and whether the point lies within the grid.
func (d GridDef) cellIndex(x, y float64) (j, i int, ok bool) {
	i = int(math.Floor((x - d.X0) / d.Dx))
	j = int(math.Floor((y - d.Y0) / d.Dy))
	ok = i >= 0 && i < d.Nx && j >= 0 && j < d.Ny
	return
}

// Grid is a raster grid: a geometry definition plus one value per cell.
// The data is stored in row-major order with shape [Ny, Nx].
// No-data cells hold NaN, and every operation in this package
// propagates NaN from input cells to output cells.
type Grid struct {
	GridDef
	Data *sparse.DenseArray
}

// NewGrid returns a grid with the given geometry in which
// every cell is no-data.
func NewGrid(def GridDef) *Grid {
	data := sparse.ZerosDense(def.Ny, def.Nx)
	for i := range data.Elements {
		data.Elements[i] = math.NaN()
	}
	return &Grid{GridDef: def, Data: data}
}

// GridFrom combines a geometry definition with existing data.
// The data shape must be [Ny, Nx].
func GridFrom(def GridDef, data *sparse.DenseArray) (*Grid, error) {
	if len(data.Shape) != 2 || data.Shape[0] != def.Ny || data.Shape[1] != def.Nx {
		return nil, fmt.Errorf("greenvar: data shape %v does not match grid geometry (ny=%d, nx=%d)",
			data.Shape, def.Ny, def.Nx)
	}
	return &Grid{GridDef: def, Data: data}, nil
}

// Copy returns a deep copy of g.
func (g *Grid) Copy() *Grid {
	return &Grid{GridDef: g.GridDef, Data: g.Data.Copy()}
}

// Mask sets to no-data every cell of g where the corresponding mask
// cell is not equal to 1. Cells where the mask equals 1 are left
// unchanged. The mask must have the same geometry as g.
func (g *Grid) Mask(mask *Grid) error {
	if !g.GridDef.Equal(mask.GridDef) {
		return fmt.Errorf("greenvar: mask geometry does not match grid geometry")
	}
	for i, m := range mask.Data.Elements {
		if m != 1 {
			g.Data.Elements[i] = math.NaN()
		}
	}
	return nil
}
