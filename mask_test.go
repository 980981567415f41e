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
)

func TestResampleNearestIdentity(t *testing.T) {
	nan := math.NaN()
	def := GridDef{X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 2, Ny: 2}
	src := testGrid(def, 1, 2, nan, 4)
	out, err := Resample(src, def, NearestNeighbor)
	if err != nil {
		t.Fatal(err)
	}
	for i, w := range src.Data.Elements {
		v := out.Data.Elements[i]
		if math.IsNaN(w) != math.IsNaN(v) || (!math.IsNaN(w) && v != w) {
			t.Errorf("cell %d: got %g; want %g", i, v, w)
		}
	}
}

func TestResampleOutOfBounds(t *testing.T) {
	src := testGrid(GridDef{X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 1, Ny: 1}, 5)
	dst := GridDef{X0: 10, Y0: 10, Dx: 1, Dy: 1, Nx: 1, Ny: 1}
	out, err := Resample(src, dst, NearestNeighbor)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(out.Data.Elements[0]) {
		t.Errorf("destination outside source grid: got %g; want no-data", out.Data.Elements[0])
	}
}

func TestResampleBilinear(t *testing.T) {
	const tolerance = 1.0e-10
	src := testGrid(GridDef{X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 2, Ny: 1}, 1, 3)
	// The destination cell center falls exactly between the two source
	// cell centers.
	dst := GridDef{X0: 0.5, Y0: 0, Dx: 1, Dy: 1, Nx: 1, Ny: 1}
	out, err := Resample(src, dst, Bilinear)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Data.Elements[0]; math.Abs(got-2) > tolerance {
		t.Errorf("midpoint interpolation: got %g; want 2", got)
	}
}

func TestResampleBilinearSkipsNoData(t *testing.T) {
	const tolerance = 1.0e-10
	nan := math.NaN()
	src := testGrid(GridDef{X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 2, Ny: 1}, nan, 3)
	dst := GridDef{X0: 0.5, Y0: 0, Dx: 1, Dy: 1, Nx: 1, Ny: 1}
	out, err := Resample(src, dst, Bilinear)
	if err != nil {
		t.Fatal(err)
	}
	// With one neighbor missing, the remaining weight renormalizes to 1.
	if got := out.Data.Elements[0]; math.Abs(got-3) > tolerance {
		t.Errorf("interpolation with a no-data neighbor: got %g; want 3", got)
	}
}

func TestCroplandMask(t *testing.T) {
	nan := math.NaN()
	def := GridDef{X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 4, Ny: 1}
	prob := testGrid(def, 0.75, 0.7499, 1, nan)
	mask, err := CroplandMask(prob, def, NearestNeighbor)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 0, 1, nan}
	for i, w := range want {
		v := mask.Data.Elements[i]
		if math.IsNaN(w) != math.IsNaN(v) || (!math.IsNaN(w) && v != w) {
			t.Errorf("probability %g: got %g; want %g", prob.Data.Elements[i], v, w)
		}
	}
}

func TestMaskedData(t *testing.T) {
	nan := math.NaN()
	def := GridDef{X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 3, Ny: 1}
	mask := testGrid(def, 1, 0, nan)
	layers := testLayers([]float64{10, 20, 30})
	next := MaskedData(layerData(layers), mask)
	data, err := next()
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{10, nan, nan}
	for i, w := range want {
		v := data.Elements[i]
		if math.IsNaN(w) != math.IsNaN(v) || (!math.IsNaN(w) && v != w) {
			t.Errorf("cell %d: got %g; want %g", i, v, w)
		}
	}
	// The source layer must not be modified.
	if layers[0].Elements[1] != 20 {
		t.Error("masking modified the source layer")
	}
}
