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

// Package macro turns raw economic indicator series into a monthly table of
// year-over-year changes
package macro

import (
	"encoding/csv"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/penny-vault/pvpanel/data"
)

const (
	PctSuffix = "_yoy_pct"
	BpsSuffix = "_yoy_bps"

	lagMonths = 12
)

// Series is one named indicator. Rate series (interest rates, unemployment)
// are reported as the change in basis points instead of a percent change.
type Series struct {
	Name         string
	Rate         bool
	Observations []*data.EconomicIndicator
}

// Table holds one row per month end and one column per transformed series
type Table struct {
	Months  []time.Time
	Columns []string
	Rows    [][]data.Value
}

func monthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// Transform resamples every series to month ends using the last observation
// of each month, forward fills gaps and computes the 12 month change. Months
// where every output is missing are dropped.
func Transform(series []*Series) *Table {
	table := &Table{}

	first, last := -1, -1
	for _, s := range series {
		for _, obs := range s.Observations {
			idx := monthIndex(obs.EventDate)
			if first == -1 || idx < first {
				first = idx
			}

			if last == -1 || idx > last {
				last = idx
			}
		}
	}

	if first == -1 {
		return table
	}

	numMonths := last - first + 1
	columns := make([][]data.Value, len(series))
	for col, s := range series {
		monthly := resample(s.Observations, first, numMonths)
		columns[col] = yearOverYear(monthly, s.Rate)

		suffix := PctSuffix
		if s.Rate {
			suffix = BpsSuffix
		}

		table.Columns = append(table.Columns, s.Name+suffix)
	}

	for month := 0; month < numMonths; month++ {
		row := make([]data.Value, len(series))
		present := false
		for col := range series {
			row[col] = columns[col][month]
			present = present || row[col].Present()
		}

		if !present {
			continue
		}

		idx := first + month
		table.Months = append(table.Months, monthEnd(time.Date(idx/12, time.Month(idx%12+1), 1, 0, 0, 0, 0, time.UTC)))
		table.Rows = append(table.Rows, row)
	}

	return table
}

// resample keeps the last observation of each month and forward fills months
// without one
func resample(observations []*data.EconomicIndicator, first, numMonths int) []data.Value {
	sorted := make([]*data.EconomicIndicator, len(observations))
	copy(sorted, observations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EventDate.Before(sorted[j].EventDate)
	})

	monthly := make([]data.Value, numMonths)
	for _, obs := range sorted {
		monthly[monthIndex(obs.EventDate)-first] = data.Of(obs.Value)
	}

	for idx := 1; idx < numMonths; idx++ {
		if monthly[idx].IsMissing() {
			monthly[idx] = monthly[idx-1]
		}
	}

	return monthly
}

func yearOverYear(monthly []data.Value, rate bool) []data.Value {
	hundred := data.Of(100)
	out := make([]data.Value, len(monthly))
	for idx := lagMonths; idx < len(monthly); idx++ {
		prior := monthly[idx-lagMonths]
		change := monthly[idx].Sub(prior)
		if rate {
			out[idx] = change.Mul(hundred)
		} else {
			out[idx] = change.Div(prior).Mul(hundred)
		}
	}

	return out
}

// WriteCSV writes the table with a leading date column; missing cells hold
// marker
func (table *Table) WriteCSV(fn string, marker string) error {
	fh, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer fh.Close()

	csvWriter := gocsv.NewSafeCSVWriter(csv.NewWriter(fh))
	if err := csvWriter.Write(append([]string{data.DateColumn}, table.Columns...)); err != nil {
		return err
	}

	for idx, month := range table.Months {
		record := make([]string, 0, len(table.Columns)+1)
		record = append(record, month.Format("2006-01-02"))
		for _, val := range table.Rows[idx] {
			record = append(record, val.Format(marker))
		}

		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
