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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Variant identifies one of the two green-up variability products.
// Both are computed and reported side by side; neither is considered
// authoritative.
type Variant string

const (
	// PixelCV is the per-pixel temporal CV of planting date,
	// aggregated to the rainfall resolution with a mean reducer.
	PixelCV Variant = "pixel-cv"
	// MeanAggCV is the temporal mean of planting date aggregated to
	// the rainfall resolution with a CV reducer.
	MeanAggCV Variant = "mean-aggregate-cv"
)

// Variants lists the green-up products in reporting order.
var Variants = []Variant{PixelCV, MeanAggCV}

// ErrInsufficientData indicates that fewer than two complete samples
// (or samples with no spread in the explanatory variable) remained
// after dropping incomplete records, so the regression fit is
// undefined. It is reported per zone and variant, never fatal.
var ErrInsufficientData = errors.New("greenvar: insufficient data for regression")

// Sample is one point record projected out of a set of aligned grids.
type Sample struct {
	X, Y    float64 // cell-center coordinates
	RainCV  float64 // explanatory variable: rainfall variability
	GreenCV float64 // response variable: green-up variability
	Weight  float64 // regression weight: cropland probability
}

// SampleTable is a set of complete samples. It is created fresh for
// each regression and never persisted.
type SampleTable []Sample

// BuildSamples projects three aligned grids into a sample table,
// dropping every cell where any of the three values is no-data.
func BuildSamples(greenCV, rainCV, weight *Grid) (SampleTable, error) {
	if !greenCV.GridDef.Equal(rainCV.GridDef) || !greenCV.GridDef.Equal(weight.GridDef) {
		return nil, fmt.Errorf("greenvar: regression input grids have mismatched geometry")
	}
	var t SampleTable
	for j := 0; j < greenCV.Ny; j++ {
		for i := 0; i < greenCV.Nx; i++ {
			g := greenCV.Data.Get(j, i)
			r := rainCV.Data.Get(j, i)
			w := weight.Data.Get(j, i)
			if math.IsNaN(g) || math.IsNaN(r) || math.IsNaN(w) {
				continue
			}
			x, y := greenCV.CellCenter(j, i)
			t = append(t, Sample{X: x, Y: y, RainCV: r, GreenCV: g, Weight: w})
		}
	}
	return t, nil
}

// Fit holds the result of a weighted least-squares fit
// y = Intercept + Slope·x.
type Fit struct {
	Slope, Intercept float64
	RSquared         float64
	// PValue is the two-sided p-value of the slope under a Student's
	// t test with N-2 degrees of freedom. It is NaN when N == 2.
	PValue float64
	N      int
}

// FitWLS fits a weighted ordinary least squares line to the sample
// table, with x the rainfall CV, y the green-up CV, and the cropland
// probability as weights. It returns ErrInsufficientData when fewer
// than two samples are available or the explanatory variable has no
// spread.
func FitWLS(t SampleTable) (*Fit, error) {
	if len(t) < 2 {
		return nil, ErrInsufficientData
	}
	n := len(t)
	x := make([]float64, n)
	y := make([]float64, n)
	w := make([]float64, n)
	for i, s := range t {
		x[i], y[i], w[i] = s.RainCV, s.GreenCV, s.Weight
	}

	alpha, beta := stat.LinearRegression(x, y, w, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(beta, 0) {
		return nil, ErrInsufficientData
	}

	// Normalize the weights to sum to n for the inference statistics.
	var wsum float64
	for _, wi := range w {
		wsum += wi
	}
	if wsum == 0 {
		return nil, ErrInsufficientData
	}
	scale := float64(n) / wsum
	xbar := stat.Mean(x, w)
	var sxx, sse float64
	for i := range x {
		dx := x[i] - xbar
		sxx += w[i] * scale * dx * dx
		e := y[i] - alpha - beta*x[i]
		sse += w[i] * scale * e * e
	}
	if sxx == 0 {
		return nil, ErrInsufficientData
	}

	fit := &Fit{
		Slope:     beta,
		Intercept: alpha,
		RSquared:  stat.RSquared(x, y, w, alpha, beta),
		PValue:    math.NaN(),
		N:         n,
	}
	if n > 2 {
		se := math.Sqrt(sse / float64(n-2) / sxx)
		tstat := math.Abs(beta / se)
		tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
		fit.PValue = 2 * (1 - tdist.CDF(tstat))
	}
	return fit, nil
}

// Summary is the regression result for one zone and green-up variant.
// Zone 0 means the whole study area. When Insufficient is true the fit
// is undefined and Fit is nil.
type Summary struct {
	Zone         int
	Variant      Variant
	Fit          *Fit
	Insufficient bool
}

// RunRegressions fits the weighted regression of green-up variability
// against rainfall variability for the whole study area and for each
// rainfall zone, for every green-up product variant. Zones with fewer
// than two complete samples are reported as insufficient rather than
// failing the run.
func RunRegressions(products map[Variant]*Grid, rainCV, weight, zones *Grid) ([]Summary, error) {
	var out []Summary
	for _, variant := range Variants {
		green, ok := products[variant]
		if !ok {
			return nil, fmt.Errorf("greenvar: missing green-up product %q", variant)
		}
		for zone := 0; zone <= NumZones; zone++ {
			g := green
			if zone > 0 {
				g = green.Copy()
				if err := g.Mask(ZoneMask(zones, zone)); err != nil {
					return nil, err
				}
			}
			samples, err := BuildSamples(g, rainCV, weight)
			if err != nil {
				return nil, err
			}
			fit, err := FitWLS(samples)
			if err == ErrInsufficientData {
				out = append(out, Summary{Zone: zone, Variant: variant, Insufficient: true})
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, Summary{Zone: zone, Variant: variant, Fit: fit})
		}
	}
	return out, nil
}

// WriteSummaries writes a human-readable table of regression summaries.
func WriteSummaries(w io.Writer, summaries []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "zone\tvariant\tn\tslope\tintercept\tr2\tp")
	for _, s := range summaries {
		zone := "all"
		if s.Zone > 0 {
			zone = strconv.Itoa(s.Zone)
		}
		if s.Insufficient {
			fmt.Fprintf(tw, "%s\t%s\tinsufficient data\t\t\t\t\n", zone, s.Variant)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.6g\t%.6g\t%.4f\t%.4g\n",
			zone, s.Variant, s.Fit.N, s.Fit.Slope, s.Fit.Intercept, s.Fit.RSquared, s.Fit.PValue)
	}
	return tw.Flush()
}

// WriteSummariesCSV writes regression summaries as CSV. Insufficient
// fits have empty statistic fields.
func WriteSummariesCSV(w io.Writer, summaries []Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"zone", "variant", "n", "slope", "intercept", "r2", "p"}); err != nil {
		return err
	}
	for _, s := range summaries {
		rec := []string{strconv.Itoa(s.Zone), string(s.Variant), "", "", "", "", ""}
		if !s.Insufficient {
			rec[2] = strconv.Itoa(s.Fit.N)
			rec[3] = strconv.FormatFloat(s.Fit.Slope, 'g', -1, 64)
			rec[4] = strconv.FormatFloat(s.Fit.Intercept, 'g', -1, 64)
			rec[5] = strconv.FormatFloat(s.Fit.RSquared, 'g', -1, 64)
			rec[6] = strconv.FormatFloat(s.Fit.PValue, 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
