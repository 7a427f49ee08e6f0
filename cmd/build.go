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
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/hako/durafmt"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvpanel/backblaze"
	"github.com/penny-vault/pvpanel/data"
	"github.com/penny-vault/pvpanel/healthcheck"
	"github.com/penny-vault/pvpanel/library"
	"github.com/penny-vault/pvpanel/pipeline"
	"github.com/penny-vault/pvpanel/store"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build [ticker...]",
	Short: "Build daily panels for the securities universe",
	Long: `The build sub-command enriches each security's quarterly facts, aligns them
to the security's trading days and derives valuation multiples. Panels are
written to the output directory in every configured format. If tickers are
provided only those securities are built.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conf, err := loadConfig(viper.GetViper())
		if err != nil {
			log.Fatal().Err(err).Msg("could not load configuration")
		}

		files := newFiles(conf)

		var (
			source    pipeline.Source = files
			sinks     []pipeline.Sink
			myLibrary *library.Library
		)

		if conf.Build.Source == SourceDB || conf.Build.SaveDB {
			myLibrary = &library.Library{DBUrl: conf.DB.URL}
			if err := myLibrary.Connect(ctx); err != nil {
				log.Fatal().Err(err).Msg("could not connect to database")
			}
			defer myLibrary.Close()
		}

		if conf.Build.Source == SourceDB {
			source = myLibrary
		}

		if conf.Backblaze.Bucket != "" {
			uploader := backblaze.NewUploader(conf.Backblaze.ApplicationID, conf.Backblaze.ApplicationKey,
				conf.Backblaze.Bucket, conf.Backblaze.Prefix)
			sinks = append(sinks, backblaze.NewSink(files, uploader))
		} else {
			sinks = append(sinks, files)
		}

		if conf.Build.SaveDB {
			sinks = append(sinks, myLibrary)
		}

		monitor := healthcheck.NewMonitor(conf.Healthchecks.CheckID)
		_ = monitor.Start(ctx)

		builder := pipeline.New(pipeline.Only(source, args...), data.DefaultVocabulary(), sinks...)
		builder.Concurrency = conf.Build.Concurrency

		summary, runErr := builder.Run(ctx)

		if conf.Output.MetricsFile != "" {
			if err := builder.Metrics.WriteTextfile(conf.Output.MetricsFile); err != nil {
				log.Error().Err(err).Str("FileName", conf.Output.MetricsFile).Msg("could not write metrics textfile")
			}
		}

		if myLibrary != nil {
			// the run is recorded even if ctx was canceled
			if err := myLibrary.SaveRun(context.WithoutCancel(ctx), &summary); err != nil {
				log.Error().Err(err).Msg("could not save run summary")
			}
		}

		fmt.Println(renderRunSummary(&summary))

		if runErr != nil || summary.Status == data.RunFailed {
			_ = monitor.Fail(context.WithoutCancel(ctx), string(summary.Status))
			log.Fatal().Err(runErr).Object("Run", &summary).Msg("panel build did not complete")
		}

		_ = monitor.Success(ctx, fmt.Sprintf("%s: %d securities, %d failed, %d rows", summary.Status,
			summary.NumSecurities, summary.NumFailed, summary.NumRows))
	},
}

func newFiles(conf *Config) *store.Files {
	files := store.NewFiles()
	files.SecuritiesFile = conf.Input.Securities
	files.FactsDir = conf.Input.FactsDir
	files.PricesDir = conf.Input.PricesDir
	files.OutputDir = conf.Output.Dir
	files.Formats = conf.Output.Formats
	if conf.Output.MissingMarker != "" {
		files.MissingMarker = conf.Output.MissingMarker
	}

	return files
}

func renderRunSummary(summary *data.RunSummary) string {
	var sb strings.Builder
	keyword := func(s string) string {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Render(s)
	}

	fmt.Fprintf(&sb,
		"%s\n\nRun: %s\nStatus: %s\nSecurities: %s\nFailed: %s\nRows: %s\nDuration: %s",
		lipgloss.NewStyle().Bold(true).Render("PANEL BUILD"),
		keyword(summary.ID.String()),
		keyword(string(summary.Status)),
		keyword(fmt.Sprintf("%d", summary.NumSecurities)),
		keyword(fmt.Sprintf("%d", summary.NumFailed)),
		keyword(fmt.Sprintf("%d", summary.NumRows)),
		keyword(durafmt.Parse(summary.Duration()).LimitFirstN(2).String()),
	)

	return lipgloss.NewStyle().
		Width(60).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(1, 2).
		Render(sb.String())
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
