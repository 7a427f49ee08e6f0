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
package enrich

import (
	"github.com/penny-vault/pvpanel/data"
)

// Enricher adds cross-filled line items, ratios and year-over-year growth
// columns to a quarterly panel
type Enricher struct {
	vocab data.Vocabulary
}

// ratio is a derived column computed from existing panel columns
type ratio struct {
	output string
	inputs []string
	anyOf  []string
	fn     func(*data.FundamentalRecord) data.Value
}

var hundred = data.Of(100)

func New(vocab data.Vocabulary) *Enricher {
	return &Enricher{
		vocab: vocab,
	}
}

// Enrich derives the enrichment columns in place. The panel must have
// strictly increasing period ends; otherwise the panel is left untouched and
// the ordering error is returned.
func (enricher *Enricher) Enrich(panel *data.QuarterlyPanel) error {
	if err := panel.Validate(); err != nil {
		return err
	}

	if panel.Len() == 0 {
		return nil
	}

	enricher.crossFill(panel)

	for _, r := range enricher.ratios() {
		if !hasColumns(panel, r.inputs) || !hasAnyColumn(panel, r.anyOf) {
			continue
		}

		panel.AddColumn(r.output)
		for _, record := range panel.Records {
			record.Set(r.output, r.fn(record))
		}
	}

	enricher.yearOverYear(panel)

	return nil
}

// crossFill completes the revenue / cost of revenue / gross profit triangle.
// Gross profit is filled first from the original cost of revenue, then cost
// of revenue is filled from the (possibly just filled) gross profit.
func (enricher *Enricher) crossFill(panel *data.QuarterlyPanel) {
	rev := enricher.vocab.Revenues
	cogs := enricher.vocab.CostOfRevenue
	gp := enricher.vocab.GrossProfit

	if !panel.HasColumn(rev) {
		return
	}

	if panel.HasColumn(cogs) {
		panel.AddColumn(gp)
		for _, record := range panel.Records {
			revenue := record.Get(rev)
			if revenue.IsMissing() || record.Get(gp).Present() {
				continue
			}

			record.Set(gp, revenue.Sub(record.Get(cogs)))
		}
	}

	if panel.HasColumn(gp) {
		panel.AddColumn(cogs)
		for _, record := range panel.Records {
			revenue := record.Get(rev)
			if revenue.IsMissing() || record.Get(cogs).Present() {
				continue
			}

			record.Set(cogs, revenue.Sub(record.Get(gp)))
		}
	}
}

func (enricher *Enricher) ratios() []ratio {
	vocab := enricher.vocab

	return []ratio{
		{
			output: data.GrossMargin.String(),
			inputs: []string{vocab.GrossProfit, vocab.Revenues},
			fn: func(rec *data.FundamentalRecord) data.Value {
				return rec.Get(vocab.GrossProfit).Div(rec.Get(vocab.Revenues))
			},
		},
		{
			output: data.OperatingMargin.String(),
			inputs: []string{vocab.OperatingIncome, vocab.Revenues},
			fn: func(rec *data.FundamentalRecord) data.Value {
				return rec.Get(vocab.OperatingIncome).Div(rec.Get(vocab.Revenues))
			},
		},
		{
			output: data.NetMargin.String(),
			inputs: []string{vocab.NetIncome, vocab.Revenues},
			fn: func(rec *data.FundamentalRecord) data.Value {
				return rec.Get(vocab.NetIncome).Div(rec.Get(vocab.Revenues))
			},
		},
		{
			output: data.OpCFMargin.String(),
			inputs: []string{vocab.OperatingCashFlow, vocab.Revenues},
			fn: func(rec *data.FundamentalRecord) data.Value {
				return rec.Get(vocab.OperatingCashFlow).Div(rec.Get(vocab.Revenues))
			},
		},
		{
			output: data.CurrentRatio.String(),
			inputs: []string{vocab.CurrentAssets, vocab.CurrentLiabilities},
			fn: func(rec *data.FundamentalRecord) data.Value {
				return rec.Get(vocab.CurrentAssets).Div(rec.Get(vocab.CurrentLiabilities))
			},
		},
		{
			// inventory is optional: missing inventory counts as zero
			output: data.QuickRatio.String(),
			inputs: []string{vocab.CurrentAssets, vocab.CurrentLiabilities},
			fn: func(rec *data.FundamentalRecord) data.Value {
				quick := rec.Get(vocab.CurrentAssets).Sub(rec.Get(vocab.Inventory).Or(0))
				return quick.Div(rec.Get(vocab.CurrentLiabilities))
			},
		},
		{
			output: data.DebtToEquity.String(),
			inputs: []string{vocab.Equity},
			anyOf:  []string{vocab.ShortTermDebt, vocab.LongTermDebt},
			fn: func(rec *data.FundamentalRecord) data.Value {
				debt := rec.Get(vocab.ShortTermDebt).Or(0).Add(rec.Get(vocab.LongTermDebt).Or(0))
				return debt.Div(rec.Get(vocab.Equity))
			},
		},
		{
			output: data.ROA.String(),
			inputs: []string{vocab.NetIncome, vocab.Assets},
			fn: func(rec *data.FundamentalRecord) data.Value {
				return rec.Get(vocab.NetIncome).Div(rec.Get(vocab.Assets))
			},
		},
		{
			output: data.ROE.String(),
			inputs: []string{vocab.NetIncome, vocab.Equity},
			fn: func(rec *data.FundamentalRecord) data.Value {
				return rec.Get(vocab.NetIncome).Div(rec.Get(vocab.Equity))
			},
		},
	}
}

// yearOverYear adds <item>_YoY_% for every key item column. The comparator
// is the record four positions earlier; gaps are not filled.
func (enricher *Enricher) yearOverYear(panel *data.QuarterlyPanel) {
	const lag = 4

	for _, item := range enricher.vocab.KeyItems {
		if !panel.HasColumn(item) {
			continue
		}

		out := data.YoYColumn(item)
		growth := make([]data.Value, panel.Len())
		for idx, record := range panel.Records {
			if idx < lag {
				continue
			}

			prior := panel.Records[idx-lag].Get(item)
			growth[idx] = record.Get(item).Sub(prior).Div(prior).Mul(hundred)
		}

		panel.AddColumn(out)
		for idx, record := range panel.Records {
			record.Set(out, growth[idx])
		}
	}
}

func hasColumns(panel *data.QuarterlyPanel, columns []string) bool {
	for _, col := range columns {
		if !panel.HasColumn(col) {
			return false
		}
	}

	return true
}

// hasAnyColumn reports whether at least one of columns exists; an empty list
// imposes no requirement
func hasAnyColumn(panel *data.QuarterlyPanel, columns []string) bool {
	if len(columns) == 0 {
		return true
	}

	_, ok := data.FirstPresent(columns, panel.HasColumn)
	return ok
}
