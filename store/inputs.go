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
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pvpanel/data"
)

// SaveSecurities rewrites the securities file, e.g. after CIKs and share
// counts were fetched
func (files *Files) SaveSecurities(securities []*data.Security) error {
	if err := os.MkdirAll(filepath.Dir(files.SecuritiesFile), 0o755); err != nil {
		return err
	}

	fh, err := os.Create(files.SecuritiesFile)
	if err != nil {
		log.Error().Err(err).Str("FileName", files.SecuritiesFile).Msg("cannot create securities file")
		return err
	}
	defer fh.Close()

	return gocsv.MarshalFile(&securities, fh)
}

// SaveQuarterly writes a fetched quarterly panel to the facts directory in
// the layout Quarterly reads
func (files *Files) SaveQuarterly(panel *data.QuarterlyPanel) (string, error) {
	fn := files.FactsFile(panel.Ticker)
	if err := os.MkdirAll(filepath.Dir(fn), 0o755); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("cannot create facts directory")
		return "", err
	}

	return fn, WriteQuarterly(fn, panel, files.MissingMarker)
}

// WriteQuarterly writes a wide table with a period_end column followed by the
// panel's columns
func WriteQuarterly(fn string, panel *data.QuarterlyPanel, marker string) error {
	fh, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer fh.Close()

	columns := panel.Columns()
	csvWriter := gocsv.NewSafeCSVWriter(csv.NewWriter(fh))
	if err := csvWriter.Write(append([]string{PeriodEndColumn}, columns...)); err != nil {
		return err
	}

	for _, record := range panel.Records {
		cells := make([]string, 0, len(columns)+1)
		cells = append(cells, record.PeriodEnd.Format(dateLayout))
		for _, col := range columns {
			cells = append(cells, record.Get(col).Format(marker))
		}

		if err := csvWriter.Write(cells); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// SavePrices writes fetched quotes to the price directory in the layout
// Prices reads
func (files *Files) SavePrices(ticker string, prices []*data.Eod) (string, error) {
	fn := files.PricesFile(ticker)
	if err := os.MkdirAll(filepath.Dir(fn), 0o755); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("cannot create price directory")
		return "", err
	}

	return fn, WritePrices(fn, prices)
}

// WritePrices writes end-of-day quotes with a date column
func WritePrices(fn string, prices []*data.Eod) error {
	fh, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer fh.Close()

	csvWriter := gocsv.NewSafeCSVWriter(csv.NewWriter(fh))
	if err := csvWriter.Write([]string{"date", "open", "high", "low", "close", "volume", "dividend", "split_factor"}); err != nil {
		return err
	}

	format := func(f float64) string {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	for _, eod := range prices {
		if err := csvWriter.Write([]string{
			eod.Date.Format(dateLayout),
			format(eod.Open),
			format(eod.High),
			format(eod.Low),
			format(eod.Close),
			format(eod.Volume),
			format(eod.Dividend),
			format(eod.Split),
		}); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
