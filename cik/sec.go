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

// Package cik maps ticker symbols to SEC central index keys
package cik

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	CompanyTickersURL string = "https://www.sec.gov/files/company_tickers.json"
)

var ErrUnknownTicker = errors.New("no CIK registered for ticker")

// Mapper resolves tickers to zero-padded ten digit CIKs. The SEC ticker list
// is downloaded once and kept in a concurrent map.
type Mapper struct {
	URL string

	client  *resty.Client
	limiter *rate.Limiter
	ciks    *haxmap.Map[string, string]

	mu     sync.Mutex
	loaded bool
}

func NewMapper(userAgent string) *Mapper {
	return &Mapper{
		URL:     CompanyTickersURL,
		client:  resty.New().SetHeader("User-Agent", userAgent),
		limiter: rate.NewLimiter(rate.Limit(10), 1),
		ciks:    haxmap.New[string, string](),
	}
}

// Normalize converts a ticker to the dash-separated form used by EDGAR
// (BRK.B and BRK/B become BRK-B)
func Normalize(ticker string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	return strings.NewReplacer(".", "-", "/", "-").Replace(ticker)
}

// Pad formats a numeric CIK as the ten digit string used in EDGAR URLs
func Pad(cik int64) string {
	return fmt.Sprintf("%010d", cik)
}

// Set registers a known mapping, e.g. one loaded from the library
func (mapper *Mapper) Set(ticker, cik string) {
	mapper.ciks.Set(Normalize(ticker), cik)
}

// Len returns the number of known tickers
func (mapper *Mapper) Len() int {
	return int(mapper.ciks.Len())
}

// Lookup returns the CIK of ticker, downloading the SEC ticker list on the
// first miss
func (mapper *Mapper) Lookup(ctx context.Context, ticker string) (string, error) {
	key := Normalize(ticker)
	if cik, ok := mapper.ciks.Get(key); ok {
		return cik, nil
	}

	if err := mapper.load(ctx); err != nil {
		return "", err
	}

	if cik, ok := mapper.ciks.Get(key); ok {
		return cik, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
}

func (mapper *Mapper) load(ctx context.Context) error {
	mapper.mu.Lock()
	defer mapper.mu.Unlock()

	if mapper.loaded {
		return nil
	}

	if err := mapper.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := mapper.client.R().SetContext(ctx).Get(mapper.URL)
	if err != nil {
		log.Error().Err(err).Str("URL", mapper.URL).Msg("download of SEC company tickers failed")
		return err
	}

	if resp.StatusCode() >= 400 {
		log.Error().Int("StatusCode", resp.StatusCode()).Str("URL", mapper.URL).Msg("SEC company tickers returned invalid status code")
		return fmt.Errorf("company tickers: HTTP status %d", resp.StatusCode())
	}

	count := 0
	gjson.ParseBytes(resp.Body()).ForEach(func(_, company gjson.Result) bool {
		ticker := company.Get("ticker").String()
		if ticker == "" {
			return true
		}

		key := Normalize(ticker)
		if _, ok := mapper.ciks.Get(key); !ok {
			mapper.ciks.Set(key, Pad(company.Get("cik_str").Int()))
			count++
		}

		return true
	})

	log.Debug().Int("NumTickers", count).Msg("loaded SEC company tickers")
	mapper.loaded = true

	return nil
}
