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

package greenvar

import (
	"fmt"
	"io"
	"math"

	"github.com/ctessum/sparse"
)

// AggregationFactor is the fixed integer downsampling factor used to
// coarsen the planting-date products to the rainfall grid resolution.
const AggregationFactor = 2

// TemporalMean calculates the arithmetic mean of a set of arrays,
// per cell. A cell that is no-data in any layer is no-data in the
// result. The result does not depend on layer order.
func TemporalMean(next NextData) (*sparse.DenseArray, error) {
	var sum *sparse.DenseArray
	var n int
	for {
		data, err := next()
		if err != nil {
			if err == io.EOF {
				if n == 0 {
					return nil, fmt.Errorf("greenvar: temporal mean of an empty stack")
				}
				return arrayScale(sum, 1/float64(n)), nil
			}
			return nil, err
		}
		if sum == nil {
			sum = sparse.ZerosDense(data.Shape...)
		} else if err := checkShape(sum, data); err != nil {
			return nil, err
		}
		sum.AddDense(data)
		n++
	}
}

// TemporalCV calculates the coefficient of variation (population
// standard deviation divided by mean) of a set of arrays, per cell.
// The result is no-data where the mean is zero, and a cell that is
// no-data in any layer is no-data in the result. The result does not
// depend on layer order.
func TemporalCV(next NextData) (*sparse.DenseArray, error) {
	var sum, sumsq *sparse.DenseArray
	var n int
	for {
		data, err := next()
		if err != nil {
			if err == io.EOF {
				if n == 0 {
					return nil, fmt.Errorf("greenvar: temporal CV of an empty stack")
				}
				out := sparse.ZerosDense(sum.Shape...)
				nf := float64(n)
				for i, s := range sum.Elements {
					mean := s / nf
					if mean == 0 || math.IsNaN(mean) {
						out.Elements[i] = math.NaN()
						continue
					}
					// Population variance; clamp small negative
					// values caused by rounding.
					variance := math.Max(sumsq.Elements[i]/nf-mean*mean, 0)
					out.Elements[i] = math.Sqrt(variance) / mean
				}
				return out, nil
			}
			return nil, err
		}
		if sum == nil {
			sum = sparse.ZerosDense(data.Shape...)
			sumsq = sparse.ZerosDense(data.Shape...)
		} else if err := checkShape(sum, data); err != nil {
			return nil, err
		}
		for i, v := range data.Elements {
			sum.Elements[i] += v
			sumsq.Elements[i] += v * v
		}
		n++
	}
}

// AggregateMean coarsens g by the given integer factor, replacing each
// factor×factor block with the arithmetic mean of its valid cells.
// Blocks containing only no-data cells are no-data.
func AggregateMean(g *Grid, factor int) (*Grid, error) {
	return aggregate(g, factor, blockMean)
}

// AggregateCV coarsens g by the given integer factor, replacing each
// factor×factor block with the coefficient of variation of its valid
// cells. Blocks containing only no-data cells, or whose mean is zero,
// are no-data.
func AggregateCV(g *Grid, factor int) (*Grid, error) {
	return aggregate(g, factor, blockCV)
}

func aggregate(g *Grid, factor int, reduce func([]float64) float64) (*Grid, error) {
	if factor < 1 {
		return nil, fmt.Errorf("greenvar: aggregation factor %d is less than 1", factor)
	}
	if g.Nx%factor != 0 || g.Ny%factor != 0 {
		return nil, fmt.Errorf("greenvar: aggregation factor %d does not divide grid size (%d×%d)",
			factor, g.Nx, g.Ny)
	}
	def := GridDef{
		X0: g.X0, Y0: g.Y0,
		Dx: g.Dx * float64(factor), Dy: g.Dy * float64(factor),
		Nx: g.Nx / factor, Ny: g.Ny / factor,
		SR: g.SR,
	}
	out := NewGrid(def)
	vals := make([]float64, 0, factor*factor)
	for j := 0; j < def.Ny; j++ {
		for i := 0; i < def.Nx; i++ {
			vals = vals[:0]
			for jj := j * factor; jj < (j+1)*factor; jj++ {
				for ii := i * factor; ii < (i+1)*factor; ii++ {
					if v := g.Data.Get(jj, ii); !math.IsNaN(v) {
						vals = append(vals, v)
					}
				}
			}
			if len(vals) > 0 {
				out.Data.Set(reduce(vals), j, i)
			}
		}
	}
	return out, nil
}

func blockMean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func blockCV(vals []float64) float64 {
	mean := blockMean(vals)
	if mean == 0 {
		return math.NaN()
	}
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss/float64(len(vals))) / mean
}

func arrayScale(s *sparse.DenseArray, factor float64) *sparse.DenseArray {
	for i, val := range s.Elements {
		s.Elements[i] = val * factor
	}
	return s
}

func checkShape(a, b *sparse.DenseArray) error {
	if len(a.Shape) != len(b.Shape) {
		return fmt.Errorf("greenvar: grid geometry mismatch: shapes %v and %v", a.Shape, b.Shape)
	}
	for i, n := range a.Shape {
		if b.Shape[i] != n {
			return fmt.Errorf("greenvar: grid geometry mismatch: shapes %v and %v", a.Shape, b.Shape)
		}
	}
	return nil
}
