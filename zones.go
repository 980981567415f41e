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
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// NumZones is the number of quantile-based rainfall zones.
const NumZones = 6

// QuantileBreaks returns n+1 breakpoints over the valid (non-no-data)
// cell values of g, at quantiles 0, 1/n, ..., 1.
func QuantileBreaks(g *Grid, n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("greenvar: zone count %d is less than 1", n)
	}
	vals := make([]float64, 0, len(g.Data.Elements))
	for _, v := range g.Data.Elements {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("greenvar: no valid cells to compute quantile breaks from")
	}
	sort.Float64s(vals)
	breaks := make([]float64, n+1)
	for k := 0; k <= n; k++ {
		breaks[k] = stat.Quantile(float64(k)/float64(n), stat.Empirical, vals, nil)
	}
	return breaks, nil
}

// Classify assigns each valid cell of g to a class in 1..n according to
// the given n+1 quantile breakpoints. The lowest bin [breaks[0],
// breaks[1]] is closed on both ends so the grid minimum is captured;
// every other bin (breaks[k-1], breaks[k]] is half-open below.
// No-data cells stay no-data.
func Classify(g *Grid, breaks []float64) (*Grid, error) {
	n := len(breaks) - 1
	if n < 1 {
		return nil, fmt.Errorf("greenvar: need at least 2 breakpoints; got %d", len(breaks))
	}
	out := NewGrid(g.GridDef)
	for i, v := range g.Data.Elements {
		if math.IsNaN(v) {
			continue
		}
		out.Data.Elements[i] = float64(classOf(v, breaks))
	}
	return out, nil
}

func classOf(v float64, breaks []float64) int {
	n := len(breaks) - 1
	if v <= breaks[1] {
		return 1
	}
	for k := 2; k <= n; k++ {
		if v <= breaks[k] {
			return k
		}
	}
	// Values above the top break can only arise from rounding;
	// they belong to the top class.
	return n
}

// ZoneMask returns a mask grid holding 1 where the zone grid equals
// class k and 0 elsewhere. No-data cells stay no-data.
func ZoneMask(zones *Grid, k int) *Grid {
	out := NewGrid(zones.GridDef)
	for i, v := range zones.Data.Elements {
		if math.IsNaN(v) {
			continue
		}
		if int(v) == k {
			out.Data.Elements[i] = 1
		} else {
			out.Data.Elements[i] = 0
		}
	}
	return out
}
