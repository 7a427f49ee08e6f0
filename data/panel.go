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
package data

import (
	"time"

	"github.com/rs/zerolog"
)

// Valuation holds the market-derived fields of a daily row
type Valuation struct {
	MarketCap Value
	EV        Value
	PE        Value
	PEG       Value
	EVtoGP    Value
	PS        Value
	EVtoSales Value
}

// Get returns the valuation field stored under a valuation column name
func (valuation *Valuation) Get(column string) (Value, bool) {
	switch column {
	case MarketCapColumn:
		return valuation.MarketCap, true
	case EVColumn:
		return valuation.EV, true
	case PEColumn:
		return valuation.PE, true
	case PEGColumn:
		return valuation.PEG, true
	case EVtoGPColumn:
		return valuation.EVtoGP, true
	case PSColumn:
		return valuation.PS, true
	case EVtoSalesColumn:
		return valuation.EVtoSales, true
	default:
		return Missing, false
	}
}

// DailyRow is one trading day of a daily panel
type DailyRow struct {
	Date  time.Time
	Close float64

	// Quarter is the latest fundamental record whose period end is on or
	// before Date; nil when no such record exists. It is shared with the
	// quarterly panel and must not be modified.
	Quarter *FundamentalRecord

	Valuation Valuation
}

// Get returns the cell of the row for column
func (row *DailyRow) Get(column string) Value {
	if column == CloseColumn {
		return Of(row.Close)
	}

	if val, ok := row.Valuation.Get(column); ok {
		return val
	}

	if row.Quarter == nil {
		return Missing
	}

	return row.Quarter.Get(column)
}

// PeriodEnd returns the period end of the attached record
func (row *DailyRow) PeriodEnd() (time.Time, bool) {
	if row.Quarter == nil {
		return time.Time{}, false
	}

	return row.Quarter.PeriodEnd, true
}

// DailyPanel is one security's trading-day timeline with fundamentals
// attached as of each day
type DailyPanel struct {
	Ticker string

	// SharesOutstanding is the single current share count applied to every
	// row; the panel has no share history
	SharesOutstanding float64

	Rows []*DailyRow

	columns []string
	colSet  map[string]struct{}
}

// NewDailyPanel creates an empty panel with the date and close columns
func NewDailyPanel(ticker string, rows []*DailyRow) *DailyPanel {
	panel := &DailyPanel{
		Ticker: ticker,
		Rows:   rows,
		colSet: make(map[string]struct{}),
	}

	panel.AddColumn(DateColumn)
	panel.AddColumn(CloseColumn)

	return panel
}

// Columns returns a copy of the output column names, starting with date and
// Close
func (panel *DailyPanel) Columns() []string {
	cols := make([]string, len(panel.columns))
	copy(cols, panel.columns)
	return cols
}

// HasColumn reports whether name is part of the panel's column set
func (panel *DailyPanel) HasColumn(name string) bool {
	_, ok := panel.colSet[name]
	return ok
}

// AddColumn appends name to the column set once
func (panel *DailyPanel) AddColumn(name string) {
	if panel.colSet == nil {
		panel.colSet = make(map[string]struct{})
	}

	if _, ok := panel.colSet[name]; ok {
		return
	}

	panel.colSet[name] = struct{}{}
	panel.columns = append(panel.columns, name)
}

// Len returns the number of trading days
func (panel *DailyPanel) Len() int {
	return len(panel.Rows)
}

// FirstDate and LastDate bound the panel; both are zero for an empty panel
func (panel *DailyPanel) FirstDate() time.Time {
	if len(panel.Rows) == 0 {
		return time.Time{}
	}

	return panel.Rows[0].Date
}

func (panel *DailyPanel) LastDate() time.Time {
	if len(panel.Rows) == 0 {
		return time.Time{}
	}

	return panel.Rows[len(panel.Rows)-1].Date
}

func (panel *DailyPanel) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", panel.Ticker)
	e.Int("NumRows", len(panel.Rows))
	e.Int("NumColumns", len(panel.columns))
	e.Time("FirstDate", panel.FirstDate())
	e.Time("LastDate", panel.LastDate())
}
