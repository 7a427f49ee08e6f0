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
package valuation

import (
	"fmt"
	"math"

	"github.com/penny-vault/pvpanel/data"
)

// Deriver computes market capitalization, enterprise value and valuation
// multiples for an aligned daily panel.
//
// A single share count is applied to every day of the history; historical
// share counts are not modelled.
type Deriver struct {
	vocab data.Vocabulary
}

var hundred = data.Of(100)

func New(vocab data.Vocabulary) *Deriver {
	return &Deriver{
		vocab: vocab,
	}
}

// Derive fills the valuation fields of every row and appends the valuation
// columns to the panel
func (deriver *Deriver) Derive(panel *data.DailyPanel, sharesOutstanding float64) error {
	if math.IsNaN(sharesOutstanding) || math.IsInf(sharesOutstanding, 0) || sharesOutstanding <= 0 {
		return fmt.Errorf("%s shares outstanding %v: %w", panel.Ticker, sharesOutstanding, data.ErrInvalidShares)
	}

	vocab := deriver.vocab
	shares := data.Of(sharesOutstanding)
	cashTag, hasCash := data.FirstPresent(vocab.CashCandidates, panel.HasColumn)
	netIncomeGrowth := data.YoYColumn(vocab.NetIncome)

	for _, row := range panel.Rows {
		cash := data.Of(0)
		if hasCash {
			cash = row.Get(cashTag).Or(0)
		}

		marketCap := data.Of(row.Close).Mul(shares)
		ev := marketCap.
			Add(row.Get(vocab.ShortTermDebt).Or(0)).
			Add(row.Get(vocab.LongTermDebt).Or(0)).
			Sub(cash)

		pe := marketCap.Div(row.Get(vocab.NetIncome))
		revenue := row.Get(vocab.Revenues)

		row.Valuation = data.Valuation{
			MarketCap: marketCap,
			EV:        ev,
			PE:        pe,
			PEG:       pe.Div(row.Get(netIncomeGrowth).Div(hundred)),
			EVtoGP:    ev.Div(row.Get(vocab.GrossProfit)),
			PS:        marketCap.Div(revenue),
			EVtoSales: ev.Div(revenue),
		}
	}

	panel.SharesOutstanding = sharesOutstanding
	for _, col := range data.ValuationColumns {
		panel.AddColumn(col)
	}

	return nil
}
