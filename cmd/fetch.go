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
	"errors"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvpanel/cache"
	"github.com/penny-vault/pvpanel/cik"
	"github.com/penny-vault/pvpanel/data"
	"github.com/penny-vault/pvpanel/library"
	"github.com/penny-vault/pvpanel/provider"
	"github.com/penny-vault/pvpanel/store"
)

var priceStart string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the inputs of a panel build",
}

var fetchFactsCmd = &cobra.Command{
	Use:   "facts [ticker...]",
	Short: "Download quarterly facts and shares outstanding from SEC EDGAR",
	Long: `Download the company facts of every security (or only the given tickers)
from the SEC XBRL API. The facts are written to the facts directory and the
securities file is updated with each security's CIK and current share count.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		conf, files, universe, securities := fetchSetup(ctx, args)
		if err := requireKey("sec.user_agent", conf.SEC.UserAgent); err != nil {
			log.Fatal().Err(err).Msg("SEC requests must identify the caller")
		}

		responseCache := openCache(conf)
		defer responseCache.Close()

		sec := provider.NewSEC(conf.SEC.UserAgent, data.DefaultVocabulary())
		sec.Cache = responseCache
		mapper := cik.NewMapper(conf.SEC.UserAgent)

		myLibrary := openLibrary(ctx, conf)
		defer myLibrary.Close()

		numFailed := 0
		for _, security := range securities {
			if ctx.Err() != nil {
				break
			}

			if err := fetchFacts(ctx, sec, mapper, files, myLibrary, security); err != nil {
				log.Error().Err(err).Str("Ticker", security.Ticker).Msg("fetching facts failed")
				numFailed++
			}
		}

		if err := files.SaveSecurities(universe); err != nil {
			log.Fatal().Err(err).Msg("could not update securities file")
		}

		log.Info().Int("NumSecurities", len(securities)).Int("NumFailed", numFailed).Msg("fetched company facts")
	},
}

var fetchPricesCmd = &cobra.Command{
	Use:   "prices [ticker...]",
	Short: "Download end-of-day prices from Tiingo",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		conf, files, _, securities := fetchSetup(ctx, args)
		if err := requireKey("tiingo.apikey", conf.Tiingo.APIKey); err != nil {
			log.Fatal().Err(err).Msg("tiingo api key missing")
		}

		start, err := store.ParseDate(priceStart)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid start date")
		}

		responseCache := openCache(conf)
		defer responseCache.Close()

		tiingo := provider.NewTiingo(conf.Tiingo.APIKey, conf.Tiingo.RequestsPerMinute)
		tiingo.Cache = responseCache

		myLibrary := openLibrary(ctx, conf)
		defer myLibrary.Close()

		numFailed := 0
		for _, security := range securities {
			if ctx.Err() != nil {
				break
			}

			if err := fetchPrices(ctx, tiingo, start, files, myLibrary, security); err != nil {
				log.Error().Err(err).Str("Ticker", security.Ticker).Msg("fetching prices failed")
				numFailed++
			}
		}

		log.Info().Int("NumSecurities", len(securities)).Int("NumFailed", numFailed).Msg("fetched prices")
	},
}

// fetchSetup loads the configuration, the securities universe and the
// securities to fetch. Tickers given on the command line that are not in the
// universe are added to it.
func fetchSetup(ctx context.Context, tickers []string) (*Config, *store.Files, []*data.Security, []*data.Security) {
	conf, err := loadConfig(viper.GetViper())
	if err != nil {
		log.Fatal().Err(err).Msg("could not load configuration")
	}

	files := newFiles(conf)
	securities, err := files.Securities(ctx)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Msg("could not read securities file")
	}

	if len(tickers) == 0 {
		return conf, files, securities, securities
	}

	known := make(map[string]*data.Security, len(securities))
	for _, security := range securities {
		known[cik.Normalize(security.Ticker)] = security
	}

	selected := make([]*data.Security, 0, len(tickers))
	for _, ticker := range tickers {
		if security, ok := known[cik.Normalize(ticker)]; ok {
			selected = append(selected, security)
			continue
		}

		security := &data.Security{Ticker: strings.ToUpper(ticker)}
		known[cik.Normalize(ticker)] = security
		securities = append(securities, security)
		selected = append(selected, security)
	}

	return conf, files, securities, selected
}

func openCache(conf *Config) *cache.Cache {
	if conf.Cache.Dir == "" {
		return nil
	}

	responseCache, err := cache.Open(conf.Cache.Dir, conf.Cache.TTL)
	if err != nil {
		log.Fatal().Err(err).Str("Directory", conf.Cache.Dir).Msg("could not open response cache")
	}

	return responseCache
}

// openLibrary connects to the library when fetched data should also be
// stored in the database
func openLibrary(ctx context.Context, conf *Config) *library.Library {
	if !conf.Build.SaveDB {
		return nil
	}

	myLibrary := &library.Library{DBUrl: conf.DB.URL}
	if err := myLibrary.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}

	return myLibrary
}

func fetchFacts(ctx context.Context, sec *provider.SEC, mapper *cik.Mapper, files *store.Files, myLibrary *library.Library, security *data.Security) error {
	if security.CIK == "" {
		secCIK, err := mapper.Lookup(ctx, security.Ticker)
		if err != nil {
			return err
		}

		security.CIK = secCIK
	}

	panel, shares, err := sec.Company(ctx, security.Ticker, security.CIK)
	switch {
	case errors.Is(err, provider.ErrNoShares):
		log.Warn().Str("Ticker", security.Ticker).Msg("SEC reports no shares outstanding, keeping previous value")
	case err != nil:
		return err
	default:
		security.SharesOutstanding = shares
	}

	fn, err := files.SaveQuarterly(panel)
	if err != nil {
		return err
	}

	log.Info().Str("Ticker", security.Ticker).Str("CIK", security.CIK).Int("NumQuarters", panel.Len()).
		Str("FileName", fn).Msg("saved company facts")

	if myLibrary == nil {
		return nil
	}

	if err := myLibrary.SaveSecurity(ctx, security); err != nil {
		return err
	}

	return myLibrary.SaveQuarterly(ctx, panel)
}

func fetchPrices(ctx context.Context, tiingo *provider.Tiingo, start time.Time, files *store.Files, myLibrary *library.Library, security *data.Security) error {
	prices, err := tiingo.DailyPrices(ctx, security.Ticker, start)
	if err != nil {
		return err
	}

	fn, err := files.SavePrices(security.Ticker, prices)
	if err != nil {
		return err
	}

	log.Info().Str("Ticker", security.Ticker).Int("NumQuotes", len(prices)).Str("FileName", fn).Msg("saved prices")

	if myLibrary == nil {
		return nil
	}

	return myLibrary.SavePrices(ctx, prices)
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.AddCommand(fetchFactsCmd)
	fetchCmd.AddCommand(fetchPricesCmd)

	fetchPricesCmd.Flags().StringVar(&priceStart, "start", "1990-01-01", "first date to download")
}
