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
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/jackc/pgx/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pvpanel/db"
	"github.com/penny-vault/pvpanel/healthcheck"
	"github.com/penny-vault/pvpanel/library"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Gather configuration and set up the library schema",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		conf := &Config{}
		conf.Input.Securities = "securities.csv"
		conf.Input.FactsDir = "data/facts"
		conf.Input.PricesDir = "data/prices"
		conf.Output.Dir = "data/panels"
		conf.Output.MissingMarker = "NA"
		conf.Build.Source = SourceFiles
		conf.Build.Concurrency = 4
		conf.Macro.Series = defaultMacroSeries
		conf.Macro.Output = "data/macro/macro_yoy.csv"

		myLibrary := &library.Library{}
		var (
			useDB   bool
			monitor bool
		)

		form := huh.NewForm(
			// Where inputs are read and panels are written
			huh.NewGroup(
				huh.NewInput().
					Title("Securities file (ticker, cik, shares_outstanding):").
					Value(&conf.Input.Securities),

				huh.NewInput().
					Title("Directory holding fundamentals:").
					Value(&conf.Input.FactsDir),

				huh.NewInput().
					Title("Directory holding prices:").
					Value(&conf.Input.PricesDir),

				huh.NewInput().
					Title("Output directory for daily panels:").
					Value(&conf.Output.Dir),

				huh.NewMultiSelect[string]().
					Title("Output formats").
					Options(huh.NewOptions("csv", "parquet", "jsonl")...).
					Value(&conf.Output.Formats).
					Validate(func(formats []string) error {
						return validate.Var(formats, "min=1")
					}),
			),

			// Data providers
			huh.NewGroup(
				huh.NewInput().
					Title("Contact for the SEC User-Agent (e.g. Jane Doe jane@example.com):").
					Value(&conf.SEC.UserAgent),

				huh.NewInput().
					Title("Tiingo API key:").
					Value(&conf.Tiingo.APIKey),

				huh.NewInput().
					Title("FRED API key:").
					Value(&conf.Fred.APIKey),
			),

			// Optional database
			huh.NewGroup(
				huh.NewConfirm().
					Title("Store panels in a PostgreSQL library?").
					Value(&useDB),
			),
		)

		if err := form.Run(); err != nil {
			log.Fatal().Err(err).Msg("error gathering settings")
		}

		if useDB {
			dbForm := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Give the library a name:").
						Value(&myLibrary.Name),

					huh.NewInput().
						Title("Who owns the library?").
						Value(&myLibrary.Owner),

					huh.NewInput().
						Title("Provide the DSN for connecting to your PostgreSQL database (postgres://[user[:password]@][netloc][:port][/dbname][?param1=value1&...])").
						Value(&myLibrary.DBUrl).
						Validate(func(dsn string) error {
							_, err := pgx.ParseConfig(dsn)
							return err
						}),

					huh.NewInput().
						Title("healthchecks.io API key (leave empty to skip monitoring):").
						Value(&conf.Healthchecks.APIKey),
				),
			)

			if err := dbForm.Run(); err != nil {
				log.Fatal().Err(err).Msg("error gathering database settings")
			}

			initLibrary(ctx, myLibrary)
			conf.DB.URL = myLibrary.DBUrl
			conf.Build.SaveDB = true
			monitor = conf.Healthchecks.APIKey != ""
		}

		if monitor {
			checkID, err := healthcheck.New(conf.Healthchecks.APIKey).Create(ctx, "pvpanel build "+myLibrary.Name,
				"pvpanel-build", []string{"pvpanel"}, "0 18 * * 1-5")
			if err != nil {
				log.Error().Err(err).Msg("creating healthcheck failed")
			} else {
				conf.Healthchecks.CheckID = checkID
			}
		}

		if err := validate.Struct(conf); err != nil {
			log.Fatal().Err(err).Msg("configuration is invalid")
		}

		// save settings to config file
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal().Err(err).Msg("could not determine user home directory")
		}

		configFN := filepath.Join(home, ".pvpanel.toml")
		log.Info().Str("ConfigFile", configFN).Msg("Saving configuration to config file")
		configData, err := toml.Marshal(conf)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal configuration data")
		}

		err = os.WriteFile(configFN, configData, 0600)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", configFN).Msg("could not save configuration to file")
		}

		log.Info().Msg("pvpanel has been initialized")
	},
}

func initLibrary(ctx context.Context, myLibrary *library.Library) {
	log.Info().Msg("creating database tables")

	if err := db.Migrate(myLibrary.DBUrl); err != nil {
		log.Fatal().Err(err).Msg("error running database migration")
	}

	log.Info().Msg("database tables created")
	log.Info().Msg("Saving library name and owner to database")

	// save library name and owner to database
	if err := myLibrary.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
	defer myLibrary.Close()

	if err := myLibrary.SaveDB(ctx); err != nil {
		log.Fatal().Err(err).Msg("error saving library settings to database")
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
}
