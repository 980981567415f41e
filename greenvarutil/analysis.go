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

// Package greenvarutil provides the command-line interface and the
// stage orchestration for the GreenVar analysis.
package greenvarutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/agrimodel/greenvar"
)

// Product file names written to (and read back from) the output
// directory between pipeline stages.
const (
	RainfallStatsFile = "rainfall_stats.nc"
	GreenupStatsFile  = "greenup_stats.nc"
	ZonesFile         = "rain_zones.nc"
	SummariesFile     = "regressions.csv"
)

// Product variable names.
const (
	MeanAnnualRainVar = "mean_annual_rain"
	RainWeeklyCVVar   = "rain_weekly_cv"
	GreenupPixelCVVar = "greenup_pixel_cv"
	GreenupMeanAggVar = "greenup_meanagg_cv"
	RainZonesVar      = "rain_zones"
)

// AnalysisConfig holds the configuration for one analysis run.
type AnalysisConfig struct {
	// PlantingFiles is the location of the per-year green-up
	// (planting date) grid files. [YEAR] should be used as a wild
	// card for the year.
	PlantingFiles string
	// PlantingVar is the NetCDF variable holding the green-up day of
	// year.
	PlantingVar string

	// RainfallFiles is the location of the daily rainfall grid files.
	// [DATE] should be used as a wild card for the date, in the
	// format YYYYMMDD.
	RainfallFiles string
	// RainfallVar is the NetCDF variable holding daily rainfall.
	RainfallVar string

	// CroplandFile and CroplandVar give the cropland-probability grid.
	CroplandFile string
	CroplandVar  string

	// StartYear and EndYear (inclusive) are the years whose growing
	// seasons are analyzed. A season is labeled by its starting year.
	StartYear, EndYear int

	// Workers is the maximum number of years processed concurrently.
	// Values below 1 mean GOMAXPROCS.
	Workers int

	// OutputDir is where intermediate products and the regression
	// report are written.
	OutputDir string

	// SampleShapefile, if nonempty, is a path where the whole-area
	// regression sample table for the pixel-CV product is written as
	// a point shapefile.
	SampleShapefile string
}

func (c AnalysisConfig) years() []int {
	var out []int
	for y := c.StartYear; y <= c.EndYear; y++ {
		out = append(out, y)
	}
	return out
}

func (c AnalysisConfig) check() error {
	vars := []string{c.PlantingFiles, c.PlantingVar, c.RainfallFiles, c.RainfallVar, c.CroplandFile, c.CroplandVar}
	varNames := []string{"PlantingFiles", "PlantingVar", "RainfallFiles", "RainfallVar", "CroplandFile", "CroplandVar"}
	for i, v := range vars {
		if v == "" {
			return fmt.Errorf("greenvar: configuration variable %s is not specified", varNames[i])
		}
	}
	if c.EndYear < c.StartYear {
		return fmt.Errorf("greenvar: EndYear %d is before StartYear %d", c.EndYear, c.StartYear)
	}
	return nil
}

func (c AnalysisConfig) loadCropland() (*greenvar.Grid, error) {
	prob, err := greenvar.ReadGridFile(c.CroplandFile, c.CroplandVar)
	if err != nil {
		return nil, fmt.Errorf("greenvar: reading cropland grid: %v", err)
	}
	return prob, nil
}

// rainfallGridDef reads the geometry of the rainfall grid from the
// first season day of the first analysis year.
func (c AnalysisConfig) rainfallGridDef() (greenvar.GridDef, error) {
	day := greenvar.SeasonDays(c.StartYear)[0]
	path := strings.Replace(c.RainfallFiles, "[DATE]", day.Format(greenvar.DayFormat), -1)
	g, err := greenvar.ReadGridFile(path, c.RainfallVar)
	if err != nil {
		return greenvar.GridDef{}, fmt.Errorf("greenvar: reading rainfall grid geometry: %v", err)
	}
	return g.GridDef, nil
}

// plantingGridDef reads the geometry of the planting-date grid from
// the first analysis year.
func (c AnalysisConfig) plantingGridDef() (greenvar.GridDef, error) {
	path := strings.Replace(c.PlantingFiles, "[YEAR]", fmt.Sprintf("%d", c.StartYear), -1)
	g, err := greenvar.ReadGridFile(path, c.PlantingVar)
	if err != nil {
		return greenvar.GridDef{}, fmt.Errorf("greenvar: reading planting grid geometry: %v", err)
	}
	return g.GridDef, nil
}

// rainfallStats computes the two long-term rainfall products on the
// cropland-masked daily rainfall record: the mean annual
// (growing-season total) rainfall and the mean across years of the
// per-year CV of weekly rainfall.
func rainfallStats(c AnalysisConfig, prob *greenvar.Grid, msg chan string) (meanAnnual, weeklyCV *greenvar.Grid, err error) {
	def, err := c.rainfallGridDef()
	if err != nil {
		return nil, nil, err
	}
	mask, err := greenvar.CroplandMask(prob, def, greenvar.NearestNeighbor)
	if err != nil {
		return nil, nil, err
	}
	open := func(year int) (greenvar.NextData, error) {
		return greenvar.MaskedData(greenvar.DailyRainfall(c.RainfallFiles, c.RainfallVar, year), mask), nil
	}
	total, cv, err := greenvar.SeasonalRainfallStats(c.years(), open, c.Workers, msg)
	if err != nil {
		return nil, nil, err
	}
	meanAnnual, err = greenvar.GridFrom(def, total)
	if err != nil {
		return nil, nil, err
	}
	weeklyCV, err = greenvar.GridFrom(def, cv)
	if err != nil {
		return nil, nil, err
	}
	return meanAnnual, weeklyCV, nil
}

// greenupStats computes the two green-up variability products on the
// cropland-masked planting-date record, both coarsened to the rainfall
// grid resolution: the per-pixel temporal CV aggregated with a mean
// reducer, and the temporal mean aggregated with a CV reducer. The two
// products are structurally different and are kept side by side.
func greenupStats(c AnalysisConfig, prob *greenvar.Grid, msg chan string) (map[greenvar.Variant]*greenvar.Grid, error) {
	def, err := c.plantingGridDef()
	if err != nil {
		return nil, err
	}
	mask, err := greenvar.CroplandMask(prob, def, greenvar.NearestNeighbor)
	if err != nil {
		return nil, err
	}
	years := c.years()

	pixelCV, err := greenvar.TemporalCV(greenvar.MaskedData(
		greenvar.GridFiles(c.PlantingFiles, c.PlantingVar, years), mask))
	if err != nil {
		return nil, err
	}
	pixelCVGrid, err := greenvar.GridFrom(def, pixelCV)
	if err != nil {
		return nil, err
	}
	v1, err := greenvar.AggregateMean(pixelCVGrid, greenvar.AggregationFactor)
	if err != nil {
		return nil, err
	}

	mean, err := greenvar.TemporalMean(greenvar.MaskedData(
		greenvar.GridFiles(c.PlantingFiles, c.PlantingVar, years), mask))
	if err != nil {
		return nil, err
	}
	meanGrid, err := greenvar.GridFrom(def, mean)
	if err != nil {
		return nil, err
	}
	v2, err := greenvar.AggregateCV(meanGrid, greenvar.AggregationFactor)
	if err != nil {
		return nil, err
	}

	if msg != nil {
		msg <- fmt.Sprintf("Computed green-up variability products over %d years", len(years))
	}
	return map[greenvar.Variant]*greenvar.Grid{
		greenvar.PixelCV:   v1,
		greenvar.MeanAggCV: v2,
	}, nil
}

// RainfallStats runs the rainfall aggregation stage and writes the
// long-term rainfall products to the output directory.
func RainfallStats(c AnalysisConfig, msg chan string) error {
	if err := c.check(); err != nil {
		return err
	}
	prob, err := c.loadCropland()
	if err != nil {
		return err
	}
	meanAnnual, weeklyCV, err := rainfallStats(c, prob, msg)
	if err != nil {
		return err
	}
	return writeProducts(filepath.Join(c.OutputDir, RainfallStatsFile),
		greenvar.GridVar{Name: MeanAnnualRainVar, Description: "Long-term mean growing-season total rainfall", Units: "mm", Grid: meanAnnual},
		greenvar.GridVar{Name: RainWeeklyCVVar, Description: "Long-term mean CV of weekly growing-season rainfall", Units: "fraction", Grid: weeklyCV},
	)
}

// GreenupStats runs the green-up statistics stage and writes both
// variability products to the output directory.
func GreenupStats(c AnalysisConfig, msg chan string) error {
	if err := c.check(); err != nil {
		return err
	}
	prob, err := c.loadCropland()
	if err != nil {
		return err
	}
	products, err := greenupStats(c, prob, msg)
	if err != nil {
		return err
	}
	return writeProducts(filepath.Join(c.OutputDir, GreenupStatsFile),
		greenvar.GridVar{Name: GreenupPixelCVVar, Description: "Pixel-wise temporal CV of green-up date, mean-aggregated", Units: "fraction", Grid: products[greenvar.PixelCV]},
		greenvar.GridVar{Name: GreenupMeanAggVar, Description: "Temporal mean green-up date, CV-aggregated", Units: "fraction", Grid: products[greenvar.MeanAggCV]},
	)
}

// Zones reads the long-term mean annual rainfall product and writes
// the quantile-based rainfall zone grid to the output directory.
func Zones(c AnalysisConfig, msg chan string) error {
	meanAnnual, err := greenvar.ReadGridFile(filepath.Join(c.OutputDir, RainfallStatsFile), MeanAnnualRainVar)
	if err != nil {
		return err
	}
	zones, err := classifyZones(meanAnnual, msg)
	if err != nil {
		return err
	}
	return writeProducts(filepath.Join(c.OutputDir, ZonesFile),
		greenvar.GridVar{Name: RainZonesVar, Description: "Quantile-based rainfall zones (1=low to 6=high)", Units: "class", Grid: zones},
	)
}

func classifyZones(meanAnnual *greenvar.Grid, msg chan string) (*greenvar.Grid, error) {
	breaks, err := greenvar.QuantileBreaks(meanAnnual, greenvar.NumZones)
	if err != nil {
		return nil, err
	}
	if msg != nil {
		msg <- fmt.Sprintf("Rainfall zone breaks: %v", breaks)
	}
	return greenvar.Classify(meanAnnual, breaks)
}

// Regress reads the rainfall, green-up, and zone products from the
// output directory, fits the weighted regressions for the whole study
// area and each zone, writes the report to w and a CSV copy to the
// output directory.
func Regress(c AnalysisConfig, w io.Writer, msg chan string) error {
	rainCV, err := greenvar.ReadGridFile(filepath.Join(c.OutputDir, RainfallStatsFile), RainWeeklyCVVar)
	if err != nil {
		return err
	}
	zones, err := greenvar.ReadGridFile(filepath.Join(c.OutputDir, ZonesFile), RainZonesVar)
	if err != nil {
		return err
	}
	products := make(map[greenvar.Variant]*greenvar.Grid)
	for v, name := range map[greenvar.Variant]string{
		greenvar.PixelCV:   GreenupPixelCVVar,
		greenvar.MeanAggCV: GreenupMeanAggVar,
	} {
		g, err := greenvar.ReadGridFile(filepath.Join(c.OutputDir, GreenupStatsFile), name)
		if err != nil {
			return err
		}
		products[v] = g
	}
	prob, err := c.loadCropland()
	if err != nil {
		return err
	}
	return regress(c, products, rainCV, zones, prob, w, msg)
}

func regress(c AnalysisConfig, products map[greenvar.Variant]*greenvar.Grid, rainCV, zones, prob *greenvar.Grid, w io.Writer, msg chan string) error {
	weight, err := greenvar.Resample(prob, rainCV.GridDef, greenvar.Bilinear)
	if err != nil {
		return err
	}
	summaries, err := greenvar.RunRegressions(products, rainCV, weight, zones)
	if err != nil {
		return err
	}
	if c.SampleShapefile != "" {
		samples, err := greenvar.BuildSamples(products[greenvar.PixelCV], rainCV, weight)
		if err != nil {
			return err
		}
		if err := greenvar.WriteSampleShapefile(c.SampleShapefile, samples); err != nil {
			return err
		}
		if msg != nil {
			msg <- fmt.Sprintf("Wrote %d regression samples to %s", len(samples), c.SampleShapefile)
		}
	}
	if err := greenvar.WriteSummaries(w, summaries); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(c.OutputDir, SummariesFile))
	if err != nil {
		return err
	}
	defer f.Close()
	return greenvar.WriteSummariesCSV(f, summaries)
}

// Run executes the whole analysis: rainfall aggregation, green-up
// statistics, zonation, and regression, writing every intermediate
// product and the regression report. Each stage passes its products to
// the next by value; nothing is mutated across stage boundaries.
func Run(c AnalysisConfig, w io.Writer, msg chan string) error {
	if err := c.check(); err != nil {
		return err
	}
	prob, err := c.loadCropland()
	if err != nil {
		return err
	}

	meanAnnual, weeklyCV, err := rainfallStats(c, prob, msg)
	if err != nil {
		return err
	}
	if err := writeProducts(filepath.Join(c.OutputDir, RainfallStatsFile),
		greenvar.GridVar{Name: MeanAnnualRainVar, Description: "Long-term mean growing-season total rainfall", Units: "mm", Grid: meanAnnual},
		greenvar.GridVar{Name: RainWeeklyCVVar, Description: "Long-term mean CV of weekly growing-season rainfall", Units: "fraction", Grid: weeklyCV},
	); err != nil {
		return err
	}

	products, err := greenupStats(c, prob, msg)
	if err != nil {
		return err
	}
	if err := writeProducts(filepath.Join(c.OutputDir, GreenupStatsFile),
		greenvar.GridVar{Name: GreenupPixelCVVar, Description: "Pixel-wise temporal CV of green-up date, mean-aggregated", Units: "fraction", Grid: products[greenvar.PixelCV]},
		greenvar.GridVar{Name: GreenupMeanAggVar, Description: "Temporal mean green-up date, CV-aggregated", Units: "fraction", Grid: products[greenvar.MeanAggCV]},
	); err != nil {
		return err
	}

	zones, err := classifyZones(meanAnnual, msg)
	if err != nil {
		return err
	}
	if err := writeProducts(filepath.Join(c.OutputDir, ZonesFile),
		greenvar.GridVar{Name: RainZonesVar, Description: "Quantile-based rainfall zones (1=low to 6=high)", Units: "class", Grid: zones},
	); err != nil {
		return err
	}

	return regress(c, products, weeklyCV, zones, prob, w, msg)
}

func writeProducts(path string, vars ...greenvar.GridVar) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return greenvar.WriteGrids(f, vars...)
}
