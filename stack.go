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

// NextData is a type of function that returns data for the next time
// step. If there are no more time steps, it should return the io.EOF
// error.
type NextData func() (*sparse.DenseArray, error)

// Stack is an ordered sequence of grid layers sharing one shape,
// indexed by an integer time unit (a year or an ISO week number).
// Order is chronological, but the temporal reductions in this package
// do not depend on it.
type Stack struct {
	Times  []int
	Layers []*sparse.DenseArray
}

// Add appends a layer for time t. All layers must share one shape.
func (s *Stack) Add(t int, data *sparse.DenseArray) error {
	if len(s.Layers) > 0 {
		if err := checkShape(s.Layers[0], data); err != nil {
			return err
		}
	}
	s.Times = append(s.Times, t)
	s.Layers = append(s.Layers, data)
	return nil
}

// Iter returns an iterator over the layers of s in order.
func (s *Stack) Iter() NextData {
	return layerData(s.Layers)
}

// layerData returns an iterator over the given layers in order.
func layerData(layers []*sparse.DenseArray) NextData {
	var i int
	return func() (*sparse.DenseArray, error) {
		if i == len(layers) {
			return nil, io.EOF
		}
		i++
		return layers[i-1], nil
	}
}

// MaskedData wraps an iterator so that every returned layer has
// no-data wherever the mask is not equal to 1. The caller is
// responsible for ensuring that the iterated layers are aligned with
// the mask geometry; layers of a different shape produce an error.
func MaskedData(next NextData, mask *Grid) NextData {
	return func() (*sparse.DenseArray, error) {
		data, err := next()
		if err != nil {
			return nil, err
		}
		if len(data.Elements) != len(mask.Data.Elements) {
			return nil, fmt.Errorf("greenvar: masked layer has %d cells; mask has %d",
				len(data.Elements), len(mask.Data.Elements))
		}
		out := data.Copy()
		for i, m := range mask.Data.Elements {
			if m != 1 {
				out.Elements[i] = math.NaN()
			}
		}
		return out, nil
	}
}
