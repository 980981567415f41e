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
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

const statsTolerance = 1.0e-10

// testLayers builds one 1×n array per value slice.
func testLayers(vals ...[]float64) []*sparse.DenseArray {
	out := make([]*sparse.DenseArray, len(vals))
	for i, v := range vals {
		out[i] = sparse.ZerosDense(1, len(v))
		copy(out[i].Elements, v)
	}
	return out
}

func approx(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= tol
}

func TestTemporalMean(t *testing.T) {
	layers := testLayers(
		[]float64{1, 4, 10},
		[]float64{2, 5, math.NaN()},
		[]float64{3, 6, 30},
	)
	mean, err := TemporalMean(layerData(layers))
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2, 5, math.NaN()}
	for i, w := range want {
		if !approx(mean.Elements[i], w, statsTolerance) {
			t.Errorf("cell %d: got %g; want %g", i, mean.Elements[i], w)
		}
	}

	if _, err := TemporalMean(layerData(nil)); err == nil {
		t.Error("empty stack should be an error")
	}
}

func TestTemporalCV(t *testing.T) {
	layers := testLayers(
		[]float64{2, 5, -1, math.NaN()},
		[]float64{4, 5, 1, 2},
		[]float64{6, 5, 0, 3},
	)
	cv, err := TemporalCV(layerData(layers))
	if err != nil {
		t.Fatal(err)
	}
	// Values 2, 4, 6: mean 4, population variance 8/3.
	want := []float64{math.Sqrt(8.0/3.0) / 4, 0, math.NaN(), math.NaN()}
	for i, w := range want {
		if !approx(cv.Elements[i], w, statsTolerance) {
			t.Errorf("cell %d: got %g; want %g", i, cv.Elements[i], w)
		}
	}
}

func TestTemporalCVOrderIndependent(t *testing.T) {
	a := testLayers([]float64{3.7}, []float64{1.2}, []float64{8.9}, []float64{5.5})
	b := testLayers([]float64{8.9}, []float64{5.5}, []float64{3.7}, []float64{1.2})
	cvA, err := TemporalCV(layerData(a))
	if err != nil {
		t.Fatal(err)
	}
	cvB, err := TemporalCV(layerData(b))
	if err != nil {
		t.Fatal(err)
	}
	if !approx(cvA.Elements[0], cvB.Elements[0], statsTolerance) {
		t.Errorf("CV depends on layer order: %g != %g", cvA.Elements[0], cvB.Elements[0])
	}
}

func TestTemporalShapeMismatch(t *testing.T) {
	layers := []*sparse.DenseArray{sparse.ZerosDense(1, 2), sparse.ZerosDense(1, 3)}
	if _, err := TemporalMean(layerData(layers)); err == nil {
		t.Error("mismatched layer shapes should be an error")
	}
	if _, err := TemporalCV(layerData(layers)); err == nil {
		t.Error("mismatched layer shapes should be an error")
	}
}

func TestAggregateMean(t *testing.T) {
	nan := math.NaN()
	def := GridDef{X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 4, Ny: 4}
	g := testGrid(def,
		1, 2, nan, nan,
		3, 4, nan, nan,
		1, nan, 10, 20,
		nan, nan, 30, 40,
	)
	out, err := AggregateMean(g, 2)
	if err != nil {
		t.Fatal(err)
	}
	wantDef := GridDef{X0: 0, Y0: 0, Dx: 2, Dy: 2, Nx: 2, Ny: 2}
	if !out.GridDef.Equal(wantDef) {
		t.Errorf("aggregated geometry: got %+v; want %+v", out.GridDef, wantDef)
	}
	want := []float64{2.5, nan, 1, 25}
	for i, w := range want {
		if !approx(out.Data.Elements[i], w, statsTolerance) {
			t.Errorf("block %d: got %g; want %g", i, out.Data.Elements[i], w)
		}
	}
}

func TestAggregateCV(t *testing.T) {
	nan := math.NaN()
	def := GridDef{X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 2, Ny: 4}
	g := testGrid(def,
		2, 4,
		6, 8,
		-1, 1,
		nan, nan,
	)
	out, err := AggregateCV(g, 2)
	if err != nil {
		t.Fatal(err)
	}
	// Values 2, 4, 6, 8: mean 5, population variance 5.
	want := []float64{math.Sqrt(5) / 5, nan}
	for i, w := range want {
		if !approx(out.Data.Elements[i], w, statsTolerance) {
			t.Errorf("block %d: got %g; want %g", i, out.Data.Elements[i], w)
		}
	}
}

func TestAggregateFactor(t *testing.T) {
	g := NewGrid(GridDef{Dx: 1, Dy: 1, Nx: 4, Ny: 4})
	if _, err := AggregateMean(g, 3); err == nil {
		t.Error("factor that does not divide the grid size should be an error")
	}
	if _, err := AggregateMean(g, 0); err == nil {
		t.Error("factor below 1 should be an error")
	}
}
