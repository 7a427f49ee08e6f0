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
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pvpanel/data"
)

const (
	FundamentalsFileName = "fundamentals.csv"
	PeriodEndColumn      = "period_end"
)

var (
	ErrMissingColumn = errors.New("required column missing")
	ErrInvalidDate   = errors.New("cannot parse date")
	ErrInvalidClose  = errors.New("close price is not a number")
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"20060102",
}

// Files reads securities, fundamentals and prices from delimited files and
// writes daily panels below OutputDir
type Files struct {
	SecuritiesFile string
	FactsDir       string
	PricesDir      string
	OutputDir      string

	// Formats lists the output formats to write: csv, parquet and/or jsonl
	Formats []string

	// MissingMarker is written to CSV cells that have no value
	MissingMarker string
}

func NewFiles() *Files {
	return &Files{
		Formats:       []string{FormatCSV},
		MissingMarker: "NA",
	}
}

// Securities reads the securities CSV (ticker, cik, shares_outstanding)
func (files *Files) Securities(ctx context.Context) ([]*data.Security, error) {
	fh, err := os.Open(files.SecuritiesFile)
	if err != nil {
		log.Error().Err(err).Str("FileName", files.SecuritiesFile).Msg("cannot open securities file")
		return nil, err
	}
	defer fh.Close()

	securities := make([]*data.Security, 0)
	if err := gocsv.UnmarshalFile(fh, &securities); err != nil {
		log.Error().Err(err).Str("FileName", files.SecuritiesFile).Msg("cannot parse securities file")
		return nil, err
	}

	for _, security := range securities {
		security.Ticker = strings.TrimSpace(security.Ticker)
	}

	return securities, nil
}

// FactsFile returns the wide fundamentals file of ticker
func (files *Files) FactsFile(ticker string) string {
	return filepath.Join(files.FactsDir, ticker, FundamentalsFileName)
}

// PricesFile returns the daily price file of ticker
func (files *Files) PricesFile(ticker string) string {
	return filepath.Join(files.PricesDir, fmt.Sprintf("%s.csv", ticker))
}

// Quarterly reads the wide fundamentals file of a security. A missing file
// means the security has no reported facts and yields a nil panel.
func (files *Files) Quarterly(ctx context.Context, security *data.Security) (*data.QuarterlyPanel, error) {
	fn := files.FactsFile(security.Ticker)
	fh, err := os.Open(fn)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("Ticker", security.Ticker).Str("FileName", fn).Msg("no fundamentals on file")
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return ReadQuarterly(security.Ticker, fh)
}

// ReadQuarterly parses a wide fundamentals table with a period_end column
// and one column per tag. Cells that are not numbers are stored as missing
// while still declaring the column. Rows are sorted by period end.
func ReadQuarterly(ticker string, fh io.Reader) (*data.QuarterlyPanel, error) {
	rows, err := gocsv.CSVToMaps(fh)
	if err != nil {
		return nil, err
	}

	records := make([]*data.FundamentalRecord, 0, len(rows))
	for idx, row := range rows {
		dateStr, ok := row[PeriodEndColumn]
		if !ok {
			return nil, fmt.Errorf("%s: %w: %s", ticker, ErrMissingColumn, PeriodEndColumn)
		}

		periodEnd, err := ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", ticker, idx+1, err)
		}

		record := data.NewFundamentalRecord(periodEnd)
		for _, name := range sortedKeys(row) {
			if name == PeriodEndColumn || name == "" {
				continue
			}

			record.Set(name, data.ParseValue(row[name]))
		}

		records = append(records, record)
	}

	panel := data.NewQuarterlyPanel(ticker, records)
	panel.SortByPeriodEnd()
	if err := panel.Validate(); err != nil {
		return nil, err
	}

	return panel, nil
}

// Prices reads the daily price file of a security
func (files *Files) Prices(ctx context.Context, security *data.Security) ([]*data.Eod, error) {
	fn := files.PricesFile(security.Ticker)
	fh, err := os.Open(fn)
	if err != nil {
		log.Error().Err(err).Str("Ticker", security.Ticker).Str("FileName", fn).Msg("cannot open price file")
		return nil, err
	}
	defer fh.Close()

	return ReadPrices(security.Ticker, fh)
}

// ReadPrices parses a price table with date and close columns; header names
// are matched case-insensitively and other columns are ignored
func ReadPrices(ticker string, fh io.Reader) ([]*data.Eod, error) {
	rows, err := gocsv.CSVToMaps(fh)
	if err != nil {
		return nil, err
	}

	prices := make([]*data.Eod, 0, len(rows))
	for idx, row := range rows {
		lower := make(map[string]string, len(row))
		for k, v := range row {
			lower[strings.ToLower(strings.TrimSpace(k))] = v
		}

		dateStr, ok := lower["date"]
		if !ok {
			return nil, fmt.Errorf("%s: %w: date", ticker, ErrMissingColumn)
		}

		closeStr, ok := lower["close"]
		if !ok {
			return nil, fmt.Errorf("%s: %w: close", ticker, ErrMissingColumn)
		}

		eventDate, err := ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", ticker, idx+1, err)
		}

		closePrice, ok := data.ParseValue(closeStr).Float()
		if !ok {
			return nil, fmt.Errorf("%s row %d: %w: %q", ticker, idx+1, ErrInvalidClose, closeStr)
		}

		prices = append(prices, &data.Eod{
			Date:   eventDate,
			Ticker: ticker,
			Close:  closePrice,
		})
	}

	sort.SliceStable(prices, func(i, j int) bool {
		return data.CivilDate(prices[i].Date) < data.CivilDate(prices[j].Date)
	})

	if err := data.ValidatePrices(ticker, prices); err != nil {
		return nil, err
	}

	return prices, nil
}

// ParseDate accepts the date layouts found in exported price and fact files
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if dt, err := time.Parse(layout, s); err == nil {
			return dt, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func sortedKeys(row map[string]string) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}
