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
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/penny-vault/pvpanel/cache"
	"github.com/penny-vault/pvpanel/data"
)

const tiingoBaseURL = "https://api.tiingo.com"

type Tiingo struct {
	BaseURL string
	Cache   *cache.Cache

	client  *resty.Client
	limiter *rate.Limiter
}

// NewTiingo creates a Tiingo client allowed requestsPerMinute requests; a
// non-positive limit uses the paid tier allowance
func NewTiingo(apiKey string, requestsPerMinute int) *Tiingo {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 5000
	}

	return &Tiingo{
		BaseURL: tiingoBaseURL,
		client:  resty.New().SetQueryParam("token", apiKey).SetJSONUnmarshaler(json.Unmarshal),
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/float64(61)), 1),
	}
}

func (tiingo *Tiingo) Name() string {
	return "tiingo"
}

func (tiingo *Tiingo) ConfigDescription() map[string]string {
	return map[string]string{
		"apiKey":    "Enter your tiingo API key:",
		"rateLimit": "What is the maximum number of requests per minute?",
	}
}

func (tiingo *Tiingo) Description() string {
	return `Tiingo provides end-of-day prices for US stocks, ETFs and mutual funds going back to the 1960s.`
}

func (tiingo *Tiingo) Datasets() map[string]Dataset {
	return map[string]Dataset{
		"EOD": {
			Name:        "EOD",
			Description: "Get end-of-day stock prices.",
			DataTypes:   []*data.DataType{data.DataTypes[data.EODKey]},
			DateRange: func() (time.Time, time.Time) {
				return time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), time.Now().UTC()
			},
		},
	}
}

type tiingoEod struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	Dividend float64 `json:"divCash"`
	Split    float64 `json:"splitFactor"`
}

// DailyPrices downloads the end-of-day history of ticker starting at start.
// Quotes are stamped at the 16:00 New York close.
func (tiingo *Tiingo) DailyPrices(ctx context.Context, ticker string, start time.Time) ([]*data.Eod, error) {
	logger := zerolog.Ctx(ctx)

	nyc, err := time.LoadLocation("America/New_York")
	if err != nil {
		logger.Error().Err(err).Msg("could not load timezone")
		return nil, err
	}

	// reformat ticker for tiingo
	symbol := strings.ReplaceAll(strings.ReplaceAll(ticker, "/", "-"), ".", "-")
	url := fmt.Sprintf("%s/tiingo/daily/%s/prices", tiingo.BaseURL, symbol)
	startDateStr := start.Format("2006-01-02")

	body, err := fetch(ctx, tiingo.client, tiingo.limiter, tiingo.Cache, url+"?startDate="+startDateStr,
		func(req *resty.Request) *resty.Request {
			return req.SetQueryParam("startDate", startDateStr)
		}, url)
	if err != nil {
		return nil, err
	}

	respContent := make([]*tiingoEod, 0)
	if err := json.Unmarshal(body, &respContent); err != nil {
		logger.Error().Err(err).Str("Ticker", ticker).Msg("could not decode tiingo eod response")
		return nil, err
	}

	prices := make([]*data.Eod, 0, len(respContent))
	for _, quote := range respContent {
		quoteDate, err := time.Parse(time.RFC3339Nano, quote.Date)
		if err != nil {
			logger.Error().Err(err).Str("TiingoDate", quote.Date).Msg("could not parse date from tiingo eod object")
			continue
		}

		// set tiingo date to correct time zone and market close
		quoteDate = time.Date(quoteDate.Year(), quoteDate.Month(), quoteDate.Day(), 16, 0, 0, 0, nyc)

		prices = append(prices, &data.Eod{
			Date:     quoteDate,
			Ticker:   ticker,
			Open:     quote.Open,
			High:     quote.High,
			Low:      quote.Low,
			Close:    quote.Close,
			Volume:   quote.Volume,
			Dividend: quote.Dividend,
			Split:    quote.Split,
		})
	}

	return prices, nil
}
