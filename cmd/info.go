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
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvpanel/library"
)

var (
	infoTickers []string
	infoPanels  bool
	infoPlain   bool
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display information about the data library",
	Long: `Display table sizes and the status of the last build. With --panels or
--ticker the stored daily panels are listed with their row counts, date range
and latest valuation.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		myLibrary, err := library.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not load library info")
		}
		defer myLibrary.Close()

		summary, err := myLibrary.Summary(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create library summary document")
		}

		if infoPanels || len(infoTickers) > 0 {
			stats, err := myLibrary.PanelStats(ctx, infoTickers)
			if err != nil {
				log.Fatal().Err(err).Strs("Tickers", infoTickers).Msg("could not load panel statistics")
			}

			summary += "\n" + library.FormatPanelStats(stats, infoTickers)
		}

		if infoPlain {
			fmt.Print(summary)
			return
		}

		r, _ := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)

		out, err := r.Render(summary)
		if err != nil {
			log.Fatal().Err(err).Msg("could not render summary document")
		}

		fmt.Print(out)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringSliceVarP(&infoTickers, "ticker", "t", nil, "show the stored daily panel of ticker (repeatable)")
	infoCmd.Flags().BoolVar(&infoPanels, "panels", false, "show every stored daily panel")
	infoCmd.Flags().BoolVar(&infoPlain, "plain", false, "print markdown without terminal styling")
}
