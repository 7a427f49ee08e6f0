// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvpanel/data"
	"github.com/penny-vault/pvpanel/library"
	"github.com/penny-vault/pvpanel/macro"
	"github.com/penny-vault/pvpanel/provider"
)

var macroFromDB bool

// macroCmd represents the macro command
var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "Build the monthly year-over-year table of macro-economic series",
	Long: `The macro sub-command downloads the configured FRED series, resamples them
to month ends and writes the 12 month change of each series: a percent change
for level series and a basis point change for rate series.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		conf, err := loadConfig(viper.GetViper())
		if err != nil {
			log.Fatal().Err(err).Msg("could not load configuration")
		}

		var myLibrary *library.Library
		if macroFromDB || conf.Build.SaveDB {
			if err := requireKey("db.url", conf.DB.URL); err != nil {
				log.Fatal().Err(err).Msg("database not configured")
			}

			myLibrary = &library.Library{DBUrl: conf.DB.URL}
			if err := myLibrary.Connect(ctx); err != nil {
				log.Fatal().Err(err).Msg("could not connect to database")
			}
			defer myLibrary.Close()
		}

		var fred *provider.Fred
		if !macroFromDB {
			if err := requireKey("fred.apikey", conf.Fred.APIKey); err != nil {
				log.Fatal().Err(err).Msg("FRED api key missing")
			}

			fred = provider.NewFred(conf.Fred.APIKey)
		}

		series := make([]*macro.Series, 0, len(conf.Macro.Series))
		for _, item := range conf.Macro.Series {
			var (
				observations []*data.EconomicIndicator
				err          error
			)

			if macroFromDB {
				observations, err = myLibrary.Indicators(ctx, item.ID)
			} else {
				observations, err = fred.Series(ctx, item.ID)
			}

			if err != nil {
				log.Error().Err(err).Str("Series", item.Name).Str("SeriesID", item.ID).Msg("could not load series")
				continue
			}

			if myLibrary != nil && !macroFromDB {
				if err := myLibrary.SaveIndicators(ctx, observations); err != nil {
					log.Error().Err(err).Str("SeriesID", item.ID).Msg("could not save series to database")
				}
			}

			log.Info().Str("Series", item.Name).Str("SeriesID", item.ID).Int("NumObservations", len(observations)).Msg("loaded series")
			series = append(series, &macro.Series{
				Name:         item.Name,
				Rate:         item.Rate,
				Observations: observations,
			})
		}

		table := macro.Transform(series)

		if err := os.MkdirAll(filepath.Dir(conf.Macro.Output), 0o755); err != nil {
			log.Fatal().Err(err).Str("FileName", conf.Macro.Output).Msg("could not create output directory")
		}

		if err := table.WriteCSV(conf.Macro.Output, conf.Output.MissingMarker); err != nil {
			log.Fatal().Err(err).Str("FileName", conf.Macro.Output).Msg("could not write macro table")
		}

		log.Info().Str("FileName", conf.Macro.Output).Int("NumMonths", len(table.Months)).
			Int("NumColumns", len(table.Columns)).Msg("wrote macro table")
	},
}

func init() {
	rootCmd.AddCommand(macroCmd)
	macroCmd.Flags().BoolVar(&macroFromDB, "from-db", false, "read series from the library instead of FRED")
}
