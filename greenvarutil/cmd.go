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

package greenvarutil

import (
	"fmt"
	"os"

	"github.com/agrimodel/greenvar"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to GreenVar.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Planting.Files",
			usage: `
              Planting.Files is the location of the per-year green-up
              (planting date) grid files. [YEAR] should be used as a
              wildcard for the year.`,
			defaultVal: "${GREENVARDATA}/greenup_[YEAR].nc",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Planting.Var",
			usage: `
              Planting.Var is the name of the NetCDF variable holding
              the green-up day of year.`,
			defaultVal: "greenup_doy",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Rainfall.Files",
			usage: `
              Rainfall.Files is the location of the daily rainfall
              grid files. [DATE] should be used as a wildcard for the
              date, in the format YYYYMMDD.`,
			defaultVal: "${GREENVARDATA}/rain_[DATE].nc",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Rainfall.Var",
			usage: `
              Rainfall.Var is the name of the NetCDF variable holding
              daily rainfall.`,
			defaultVal: "precip",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Cropland.File",
			usage: `
              Cropland.File is the location of the cropland-probability
              grid file.`,
			defaultVal: "${GREENVARDATA}/cropland_probability.nc",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Cropland.Var",
			usage: `
              Cropland.Var is the name of the NetCDF variable holding
              the cropland probability.`,
			defaultVal: "crop_prob",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "StartYear",
			usage: `
              StartYear is the first year (inclusive) whose growing
              season is analyzed. A season is labeled by the year it
              starts in.`,
			defaultVal: 2002,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "EndYear",
			usage: `
              EndYear is the last year (inclusive) whose growing season
              is analyzed.`,
			defaultVal: 2019,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the maximum number of years to process
              concurrently during rainfall aggregation. Values below 1
              mean the number of processors.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{rainstatsCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory where intermediate products and
              the regression report are written.`,
			shorthand:  "o",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "SampleShapefile",
			usage: `
              SampleShapefile, if specified, is a path where the
              whole-area regression sample table is written as a point
              shapefile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regressCmd.Flags(), runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GREENVAR")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(rainstatsCmd)
	Root.AddCommand(greenupCmd)
	Root.AddCommand(zonesCmd)
	Root.AddCommand(regressCmd)
	Root.AddCommand(runCmd)
}

// outChan returns a channel whose messages are logged to standard
// output.
func outChan() chan string {
	outChan := make(chan string)
	go func() {
		for {
			msg := <-outChan
			logrus.Info(msg)
		}
	}()
	return outChan
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("greenvar: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// analysisConfig assembles an AnalysisConfig from the configuration
// information in cfg.
func analysisConfig(cfg *viper.Viper) (AnalysisConfig, error) {
	workers, err := cast.ToIntE(cfg.Get("Workers"))
	if err != nil {
		return AnalysisConfig{}, fmt.Errorf("greenvar: reading 'Workers': %v", err)
	}
	return AnalysisConfig{
		PlantingFiles:   os.ExpandEnv(cfg.GetString("Planting.Files")),
		PlantingVar:     cfg.GetString("Planting.Var"),
		RainfallFiles:   os.ExpandEnv(cfg.GetString("Rainfall.Files")),
		RainfallVar:     cfg.GetString("Rainfall.Var"),
		CroplandFile:    os.ExpandEnv(cfg.GetString("Cropland.File")),
		CroplandVar:     cfg.GetString("Cropland.Var"),
		StartYear:       cfg.GetInt("StartYear"),
		EndYear:         cfg.GetInt("EndYear"),
		Workers:         workers,
		OutputDir:       os.ExpandEnv(cfg.GetString("OutputDir")),
		SampleShapefile: os.ExpandEnv(cfg.GetString("SampleShapefile")),
	}, nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "greenvar",
	Short: "Planting-date and rainfall variability analysis.",
	Long: `GreenVar analyzes whether places with more variable growing-season
rainfall also show more variable satellite-derived crop planting dates.
Use the subcommands specified below to run individual pipeline stages,
or 'run' to execute the whole analysis.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using
command-line arguments, or by setting environment variables in the format
'GREENVAR_var' where 'var' is the name of the variable to be set. Many
configuration variables are additionally allowed to contain environment
variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of GreenVar.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("GreenVar v%s\n", greenvar.Version)
	},
	DisableAutoGenTag: true,
}

var rainstatsCmd = &cobra.Command{
	Use:   "rainstats",
	Short: "Compute long-term rainfall statistics",
	Long: `rainstats aggregates daily growing-season rainfall into weekly totals
for each analysis year and computes the long-term mean season-total rainfall
and the long-term mean coefficient of variation of weekly rainfall on
cropland, saving the results for the zonation and regression stages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := analysisConfig(Cfg)
		if err != nil {
			return err
		}
		return RainfallStats(c, outChan())
	},
	DisableAutoGenTag: true,
}

var greenupCmd = &cobra.Command{
	Use:   "greenup",
	Short: "Compute green-up variability statistics",
	Long: `greenup computes both green-up (planting date) variability products
on cropland at the rainfall grid resolution: the per-pixel temporal CV
aggregated with a mean, and the temporal mean aggregated with a CV. The
results are saved for the regression stage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := analysisConfig(Cfg)
		if err != nil {
			return err
		}
		return GreenupStats(c, outChan())
	},
	DisableAutoGenTag: true,
}

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Classify rainfall zones",
	Long: `zones divides the study area into quantile-based rainfall zones
using the long-term mean season-total rainfall computed by 'rainstats',
saving the zone grid for the regression stage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := analysisConfig(Cfg)
		if err != nil {
			return err
		}
		return Zones(c, outChan())
	},
	DisableAutoGenTag: true,
}

var regressCmd = &cobra.Command{
	Use:   "regress",
	Short: "Fit the variability regressions",
	Long: `regress fits weighted least-squares regressions of green-up
variability against rainfall variability for the whole study area and
for each rainfall zone, using the products saved by the 'rainstats',
'greenup', and 'zones' stages. Results are printed and saved as CSV.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := analysisConfig(Cfg)
		if err != nil {
			return err
		}
		return Regress(c, cmd.OutOrStdout(), outChan())
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole analysis",
	Long: `run executes the whole analysis pipeline in order: rainfall
aggregation, green-up statistics, rainfall zonation, and the variability
regressions, saving every intermediate product along the way.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := analysisConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(c, cmd.OutOrStdout(), outChan())
	},
	DisableAutoGenTag: true,
}
