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
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/sparse"
)

// DayFormat is the format in which dates appear in daily rainfall
// file names.
const DayFormat = "20060102"

// GridVar names one grid variable for NetCDF output.
type GridVar struct {
	Name        string
	Description string
	Units       string
	Grid        *Grid
}

// WriteGrids writes one or more grids sharing the same geometry to a
// NetCDF file, with the grid geometry stored as global attributes and
// a description and units attribute on each variable. Variables are
// written in sorted name order so output files are deterministic.
func WriteGrids(w *os.File, vars ...GridVar) error {
	if len(vars) == 0 {
		return fmt.Errorf("greenvar: no variables to write")
	}
	def := vars[0].Grid.GridDef
	for _, v := range vars[1:] {
		if !def.Equal(v.Grid.GridDef) {
			return fmt.Errorf("greenvar: variable %s has mismatched geometry", v.Name)
		}
	}

	h := cdf.NewHeader([]string{"y", "x"}, []int{def.Ny, def.Nx})
	h.AddAttribute("", "comment", "GreenVar planting-date and rainfall variability products")
	h.AddAttribute("", "x0", []float64{def.X0})
	h.AddAttribute("", "y0", []float64{def.Y0})
	h.AddAttribute("", "dx", []float64{def.Dx})
	h.AddAttribute("", "dy", []float64{def.Dy})
	h.AddAttribute("", "proj", def.SR)

	sorted := make([]GridVar, len(vars))
	copy(sorted, vars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, v := range sorted {
		h.AddVariable(v.Name, []string{"y", "x"}, []float32{0})
		h.AddAttribute(v.Name, "description", v.Description)
		h.AddAttribute(v.Name, "units", v.Units)
	}
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}
	for _, v := range sorted {
		if err := writeNCF(f, v.Name, v.Grid.Data); err != nil {
			return fmt.Errorf("greenvar: writing variable %s to netcdf file: %v", v.Name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(f *cdf.File, name string, data *sparse.DenseArray) error {
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	_, err := w.Write(data32)
	return err
}

// ReadGrid reads the named 2-d variable and the grid geometry
// attributes from a NetCDF file. Cells equal to the variable's
// _FillValue attribute, if it has one, become no-data.
func ReadGrid(rw cdf.ReaderWriterAt, varName string) (*Grid, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("greenvar: opening netcdf file: %v", err)
	}
	dims := f.Header.Lengths(varName)
	if len(dims) == 0 {
		return nil, fmt.Errorf("greenvar: variable %s is not in the netcdf file", varName)
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("greenvar: variable %s has %d dimensions; need 2", varName, len(dims))
	}

	def := GridDef{Ny: dims[0], Nx: dims[1]}
	for name, dst := range map[string]*float64{
		"x0": &def.X0, "y0": &def.Y0, "dx": &def.Dx, "dy": &def.Dy,
	} {
		v, ok := attrFloat(f.Header, "", name)
		if !ok {
			return nil, fmt.Errorf("greenvar: netcdf file is missing grid attribute %s", name)
		}
		*dst = v
	}
	if s, ok := attrString(f.Header, "", "proj"); ok {
		def.SR = s
	}

	r := f.Reader(varName, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("greenvar: reading netcdf variable %s: %v", varName, err)
	}
	data := sparse.ZerosDense(dims...)
	switch b := buf.(type) {
	case []float32:
		for i, v := range b {
			data.Elements[i] = float64(v)
		}
	case []float64:
		copy(data.Elements, b)
	default:
		return nil, fmt.Errorf("greenvar: netcdf variable %s has unsupported type %T", varName, buf)
	}
	if fill, ok := attrFloat(f.Header, varName, "_FillValue"); ok {
		for i, v := range data.Elements {
			if v == fill {
				data.Elements[i] = math.NaN()
			}
		}
	}
	return GridFrom(def, data)
}

// ReadGridFile reads the named variable from the NetCDF file at path.
func ReadGridFile(path, varName string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadGrid(f, varName)
}

func attrFloat(h *cdf.Header, varName, attr string) (float64, bool) {
	if !hasAttr(h, varName, attr) {
		return 0, false
	}
	switch a := h.GetAttribute(varName, attr).(type) {
	case []float64:
		if len(a) > 0 {
			return a[0], true
		}
	case []float32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	}
	return 0, false
}

func attrString(h *cdf.Header, varName, attr string) (string, bool) {
	if !hasAttr(h, varName, attr) {
		return "", false
	}
	if s, ok := h.GetAttribute(varName, attr).(string); ok {
		return s, true
	}
	return "", false
}

func hasAttr(h *cdf.Header, varName, attr string) bool {
	for _, a := range h.Attributes(varName) {
		if a == attr {
			return true
		}
	}
	return false
}

// GridFiles returns an iterator over per-year grid files, where the
// [YEAR] wildcard in the given file template is replaced by each year
// in turn.
func GridFiles(template, varName string, years []int) NextData {
	var i int
	return func() (*sparse.DenseArray, error) {
		if i == len(years) {
			return nil, io.EOF
		}
		path := strings.Replace(template, "[YEAR]", strconv.Itoa(years[i]), -1)
		i++
		g, err := ReadGridFile(path, varName)
		if err != nil {
			return nil, err
		}
		return g.Data, nil
	}
}

// DailyRainfall returns an iterator over the daily rainfall grids of
// the growing season starting in the given year, where the [DATE]
// wildcard in the given file template is replaced by each calendar day
// formatted as YYYYMMDD.
func DailyRainfall(template, varName string, year int) NextData {
	days := SeasonDays(year)
	var i int
	return func() (*sparse.DenseArray, error) {
		if i == len(days) {
			return nil, io.EOF
		}
		path := strings.Replace(template, "[DATE]", days[i].Format(DayFormat), -1)
		i++
		g, err := ReadGridFile(path, varName)
		if err != nil {
			return nil, err
		}
		return g.Data, nil
	}
}

// samplePoint is the shapefile archetype for one regression sample.
type samplePoint struct {
	Point   geom.Point
	RainCV  float64
	GreenCV float64
	Weight  float64
}

// WriteSampleShapefile writes a sample table as a point shapefile.
func WriteSampleShapefile(path string, t SampleTable) error {
	e, err := shp.NewEncoder(path, samplePoint{})
	if err != nil {
		return fmt.Errorf("greenvar: creating sample shapefile: %v", err)
	}
	defer e.Close()
	for _, s := range t {
		p := samplePoint{
			Point:   geom.Point{X: s.X, Y: s.Y},
			RainCV:  s.RainCV,
			GreenCV: s.GreenCV,
			Weight:  s.Weight,
		}
		if err := e.Encode(p); err != nil {
			return fmt.Errorf("greenvar: writing sample shapefile: %v", err)
		}
	}
	return nil
}
