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

// DataType describes one table of the library. The schemas themselves are
// created by the migrations in db/migrations.
type DataType struct {
	Name        string
	Table       string
	DateColumn  string
	Description string
}

const (
	SecuritiesKey   = "securities"
	FundamentalsKey = "fundamental"
	EODKey          = "eod"
	MetricKey       = "metric"
	IndicatorKey    = "economic-indicator"
	RunKey          = "run"
)

var DataTypes = map[string]*DataType{
	SecuritiesKey: {
		Name:        SecuritiesKey,
		Table:       "securities",
		DateColumn:  "last_updated",
		Description: "Universe of securities with their CIK and current shares outstanding",
	},
	FundamentalsKey: {
		Name:        FundamentalsKey,
		Table:       "fundamentals",
		DateColumn:  "period_end",
		Description: "Quarterly accounting facts in long format (ticker, period_end, tag, value)",
	},
	EODKey: {
		Name:        EODKey,
		Table:       "eod",
		DateColumn:  "event_date",
		Description: "End-of-day prices",
	},
	MetricKey: {
		Name:        MetricKey,
		Table:       "daily_metrics",
		DateColumn:  "event_date",
		Description: "Daily valuation multiples (market cap, EV, P/E, PEG, EV/GP, P/S, EV/S)",
	},
	IndicatorKey: {
		Name:        IndicatorKey,
		Table:       "economic_indicators",
		DateColumn:  "event_date",
		Description: "Macro-economic series observations",
	},
	RunKey: {
		Name:        RunKey,
		Table:       "runs",
		DateColumn:  "end_time",
		Description: "History of panel build runs",
	},
}

// DataTypeKeys lists the DataTypes keys in display order
var DataTypeKeys = []string{
	SecuritiesKey,
	FundamentalsKey,
	EODKey,
	MetricKey,
	IndicatorKey,
	RunKey,
}
