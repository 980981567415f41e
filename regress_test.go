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
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/GaryBoone/GoStats/stats"
)

func TestFitWLS(t *testing.T) {
	const tolerance = 1.0e-10

	// Hand-computed weighted fit: weighted means 1.4 and 1.8,
	// Sxy = 1.4, Sxx = 3.2.
	table := SampleTable{
		{RainCV: 0, GreenCV: 1, Weight: 1},
		{RainCV: 1, GreenCV: 2, Weight: 1},
		{RainCV: 2, GreenCV: 2, Weight: 3},
	}
	fit, err := FitWLS(table)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(fit.Slope-0.4375) > tolerance {
		t.Errorf("slope: got %g; want 0.4375", fit.Slope)
	}
	if math.Abs(fit.Intercept-1.1875) > tolerance {
		t.Errorf("intercept: got %g; want 1.1875", fit.Intercept)
	}
	if math.Abs(fit.RSquared-0.765625) > tolerance {
		t.Errorf("r squared: got %g; want 0.765625", fit.RSquared)
	}
	if fit.N != 3 {
		t.Errorf("n: got %d; want 3", fit.N)
	}
	if math.Abs(fit.PValue-0.321) > 0.01 {
		t.Errorf("p-value: got %g; want about 0.321", fit.PValue)
	}
}

func TestFitWLSEqualWeights(t *testing.T) {
	const tolerance = 1.0e-10

	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 3, 5, 4, 6}
	var table SampleTable
	for i := range x {
		table = append(table, Sample{RainCV: x[i], GreenCV: y[i], Weight: 1})
	}
	fit, err := FitWLS(table)
	if err != nil {
		t.Fatal(err)
	}
	slope, intercept, rsquared, _, _, _ := stats.LinearRegression(x, y)
	if math.Abs(fit.Slope-slope) > tolerance {
		t.Errorf("slope: got %g; want %g", fit.Slope, slope)
	}
	if math.Abs(fit.Intercept-intercept) > tolerance {
		t.Errorf("intercept: got %g; want %g", fit.Intercept, intercept)
	}
	if math.Abs(fit.RSquared-rsquared) > tolerance {
		t.Errorf("r squared: got %g; want %g", fit.RSquared, rsquared)
	}
	if fit.PValue <= 0 || fit.PValue >= 1 {
		t.Errorf("p-value: got %g; want within (0, 1)", fit.PValue)
	}
}

func TestFitWLSInsufficientData(t *testing.T) {
	cases := []SampleTable{
		nil,
		{{RainCV: 1, GreenCV: 2, Weight: 1}},
		{ // no spread in the explanatory variable
			{RainCV: 3, GreenCV: 1, Weight: 1},
			{RainCV: 3, GreenCV: 2, Weight: 1},
			{RainCV: 3, GreenCV: 3, Weight: 1},
		},
		{ // all weights zero
			{RainCV: 1, GreenCV: 1, Weight: 0},
			{RainCV: 2, GreenCV: 2, Weight: 0},
		},
	}
	for i, table := range cases {
		if _, err := FitWLS(table); err != ErrInsufficientData {
			t.Errorf("case %d: got %v; want ErrInsufficientData", i, err)
		}
	}
}

func TestFitWLSTwoSamples(t *testing.T) {
	fit, err := FitWLS(SampleTable{
		{RainCV: 1, GreenCV: 1, Weight: 1},
		{RainCV: 2, GreenCV: 3, Weight: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if fit.Slope != 2 {
		t.Errorf("slope: got %g; want 2", fit.Slope)
	}
	if !math.IsNaN(fit.PValue) {
		t.Errorf("p-value with two samples: got %g; want NaN", fit.PValue)
	}
}

func TestBuildSamples(t *testing.T) {
	nan := math.NaN()
	def := GridDef{X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 3, Ny: 1}
	green := testGrid(def, 1, nan, 3)
	rain := testGrid(def, 0.1, 0.2, nan)
	weight := testGrid(def, 1, 1, 1)
	table, err := BuildSamples(green, rain, weight)
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 1 {
		t.Fatalf("got %d samples; want 1", len(table))
	}
	s := table[0]
	if s.X != 0.5 || s.Y != 0.5 || s.GreenCV != 1 || s.RainCV != 0.1 {
		t.Errorf("unexpected sample: %+v", s)
	}

	other := testGrid(GridDef{X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 2, Ny: 1}, 1, 2)
	if _, err := BuildSamples(green, rain, other); err == nil {
		t.Error("mismatched geometry should be an error")
	}
}

// regressionTestGrids builds aligned grids where the green-up CV is an
// exact linear function of the rainfall CV and each of the six zones
// holds two cells.
func regressionTestGrids() (products map[Variant]*Grid, rainCV, weight, zones *Grid) {
	def := GridDef{X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 6, Ny: 2}
	rainCV = NewGrid(def)
	green := NewGrid(def)
	weight = NewGrid(def)
	zones = NewGrid(def)
	for j := 0; j < 2; j++ {
		for i := 0; i < 6; i++ {
			r := 0.1*float64(i+1) + 0.05*float64(j)
			rainCV.Data.Set(r, j, i)
			green.Data.Set(2*r+0.5, j, i)
			weight.Data.Set(1, j, i)
			zones.Data.Set(float64(i+1), j, i)
		}
	}
	products = map[Variant]*Grid{PixelCV: green, MeanAggCV: green.Copy()}
	return
}

func TestRunRegressions(t *testing.T) {
	const tolerance = 1.0e-9

	products, rainCV, weight, zones := regressionTestGrids()
	summaries, err := RunRegressions(products, rainCV, weight, zones)
	if err != nil {
		t.Fatal(err)
	}
	if want := len(Variants) * (NumZones + 1); len(summaries) != want {
		t.Fatalf("got %d summaries; want %d", len(summaries), want)
	}
	for _, s := range summaries {
		if s.Insufficient {
			t.Errorf("zone %d variant %s: unexpectedly insufficient", s.Zone, s.Variant)
			continue
		}
		if math.Abs(s.Fit.Slope-2) > tolerance {
			t.Errorf("zone %d variant %s: slope %g; want 2", s.Zone, s.Variant, s.Fit.Slope)
		}
		wantN := 2
		if s.Zone == 0 {
			wantN = 12
		}
		if s.Fit.N != wantN {
			t.Errorf("zone %d variant %s: n = %d; want %d", s.Zone, s.Variant, s.Fit.N, wantN)
		}
	}
}

func TestRunRegressionsInsufficientZone(t *testing.T) {
	products, rainCV, weight, zones := regressionTestGrids()
	// Empty out zone 3: reassign its cells to zone 2.
	for i, v := range zones.Data.Elements {
		if v == 3 {
			zones.Data.Elements[i] = 2
		}
	}
	summaries, err := RunRegressions(products, rainCV, weight, zones)
	if err != nil {
		t.Fatal(err)
	}
	var insufficient int
	for _, s := range summaries {
		if s.Zone == 3 {
			if !s.Insufficient {
				t.Errorf("variant %s: empty zone should be insufficient", s.Variant)
			}
			insufficient++
		} else if s.Insufficient {
			t.Errorf("zone %d variant %s: unexpectedly insufficient", s.Zone, s.Variant)
		}
	}
	if insufficient != len(Variants) {
		t.Errorf("got %d insufficient summaries; want %d", insufficient, len(Variants))
	}
}

func TestWriteSummaries(t *testing.T) {
	summaries := []Summary{
		{Zone: 0, Variant: PixelCV, Fit: &Fit{Slope: 1.5, Intercept: 0.2, RSquared: 0.8, PValue: 0.01, N: 100}},
		{Zone: 3, Variant: MeanAggCV, Insufficient: true},
	}
	var buf bytes.Buffer
	if err := WriteSummaries(&buf, summaries); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "all") {
		t.Error("whole-area row should be labeled 'all'")
	}
	if !strings.Contains(out, "insufficient data") {
		t.Error("insufficient fits should be labeled 'insufficient data'")
	}

	buf.Reset()
	if err := WriteSummariesCSV(&buf, summaries); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d CSV lines; want 3", len(lines))
	}
	if !strings.HasPrefix(lines[2], "3,mean-aggregate-cv,,") {
		t.Errorf("insufficient CSV row should have empty statistics; got %q", lines[2])
	}
}
