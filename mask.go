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

	"github.com/ctessum/geom/proj"
)

// CroplandThreshold is the cropland probability above which (inclusive)
// a cell is considered cropland.
const CroplandThreshold = 0.75

// ResampleMethod selects how source cells are sampled when resampling
// a grid onto a new geometry.
type ResampleMethod int

const (
	// NearestNeighbor takes the value of the source cell containing
	// each destination cell center.
	NearestNeighbor ResampleMethod = iota
	// Bilinear interpolates between the four source cells nearest to
	// each destination cell center, ignoring no-data cells.
	Bilinear
)

// Resample projects src onto the given destination geometry by sampling
// it at the destination cell centers. If the spatial references differ,
// destination coordinates are transformed into the source reference
// before sampling. Destination cells falling outside the source grid
// are no-data.
func Resample(src *Grid, dst GridDef, method ResampleMethod) (*Grid, error) {
	var ct proj.Transformer
	if src.SR != dst.SR && src.SR != "" && dst.SR != "" {
		srcSR, err := proj.Parse(src.SR)
		if err != nil {
			return nil, fmt.Errorf("greenvar: parsing source spatial reference: %v", err)
		}
		dstSR, err := proj.Parse(dst.SR)
		if err != nil {
			return nil, fmt.Errorf("greenvar: parsing destination spatial reference: %v", err)
		}
		ct, err = dstSR.NewTransform(srcSR)
		if err != nil {
			return nil, fmt.Errorf("greenvar: creating coordinate transform: %v", err)
		}
	}
	out := NewGrid(dst)
	for j := 0; j < dst.Ny; j++ {
		for i := 0; i < dst.Nx; i++ {
			x, y := dst.CellCenter(j, i)
			if ct != nil {
				var err error
				x, y, err = ct(x, y)
				if err != nil {
					continue // unprojectable point stays no-data
				}
			}
			switch method {
			case NearestNeighbor:
				if sj, si, ok := src.cellIndex(x, y); ok {
					out.Data.Set(src.Data.Get(sj, si), j, i)
				}
			case Bilinear:
				out.Data.Set(bilinearSample(src, x, y), j, i)
			}
		}
	}
	return out, nil
}

// bilinearSample interpolates src at point (x, y) from the four
// surrounding cell centers. No-data neighbors are excluded and the
// remaining weights renormalized; the result is no-data when every
// neighbor is no-data or out of bounds.
func bilinearSample(src *Grid, x, y float64) float64 {
	fx := (x-src.X0)/src.Dx - 0.5
	fy := (y-src.Y0)/src.Dy - 0.5
	i0, j0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(i0), fy-float64(j0)

	var wsum, vsum float64
	for dj := 0; dj <= 1; dj++ {
		for di := 0; di <= 1; di++ {
			j, i := j0+dj, i0+di
			if i < 0 || i >= src.Nx || j < 0 || j >= src.Ny {
				continue
			}
			v := src.Data.Get(j, i)
			if math.IsNaN(v) {
				continue
			}
			wx := tx
			if di == 0 {
				wx = 1 - tx
			}
			wy := ty
			if dj == 0 {
				wy = 1 - ty
			}
			w := wx * wy
			wsum += w
			vsum += w * v
		}
	}
	if wsum == 0 {
		return math.NaN()
	}
	return vsum / wsum
}

// CroplandMask resamples a cropland-probability grid onto the given
// geometry and thresholds it: cells with probability of at least
// CroplandThreshold become 1 and all other valid cells become 0.
func CroplandMask(prob *Grid, dst GridDef, method ResampleMethod) (*Grid, error) {
	r, err := Resample(prob, dst, method)
	if err != nil {
		return nil, err
	}
	for i, v := range r.Data.Elements {
		if math.IsNaN(v) {
			continue
		}
		if v >= CroplandThreshold {
			r.Data.Elements[i] = 1
		} else {
			r.Data.Elements[i] = 0
		}
	}
	return r, nil
}
