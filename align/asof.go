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
package align

import (
	"github.com/penny-vault/pvpanel/data"
)

// AsOf attaches to every trading day the latest quarterly record whose
// period end falls on or before that day. Days before the first period end
// carry only the close.
//
// Both sequences must be strictly increasing; a nil or empty quarterly panel
// yields a price-only daily panel. The records are shared with the returned
// panel and are not modified.
func AsOf(quarterly *data.QuarterlyPanel, prices []*data.Eod) (*data.DailyPanel, error) {
	ticker := ""
	if quarterly != nil {
		ticker = quarterly.Ticker
	}

	if ticker == "" && len(prices) > 0 {
		ticker = prices[0].Ticker
	}

	if err := data.ValidatePrices(ticker, prices); err != nil {
		return nil, err
	}

	if err := quarterly.Validate(); err != nil {
		return nil, err
	}

	var records []*data.FundamentalRecord
	if quarterly != nil {
		records = quarterly.Records
	}

	rows := make([]*data.DailyRow, len(prices))
	next := 0
	var current *data.FundamentalRecord
	for idx, price := range prices {
		day := data.CivilDate(price.Date)
		for next < len(records) && data.CivilDate(records[next].PeriodEnd) <= day {
			current = records[next]
			next++
		}

		rows[idx] = &data.DailyRow{
			Date:    price.Date,
			Close:   price.Close,
			Quarter: current,
		}
	}

	panel := data.NewDailyPanel(ticker, rows)
	for _, col := range quarterly.Columns() {
		panel.AddColumn(col)
	}

	return panel, nil
}
