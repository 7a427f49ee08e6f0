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
package enrich_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvpanel/data"
	"github.com/penny-vault/pvpanel/enrich"
)

// na marks a missing cell in column fixtures
var na = math.NaN()

// buildPanel creates consecutive quarter-end records from column vectors;
// NaN cells are declared but missing
func buildPanel(columns map[string][]float64, order ...string) *data.QuarterlyPanel {
	n := 0
	for _, vals := range columns {
		n = max(n, len(vals))
	}

	records := make([]*data.FundamentalRecord, n)
	for idx := range records {
		periodEnd := time.Date(2021, time.April+time.Month(3*idx), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		records[idx] = data.NewFundamentalRecord(periodEnd)
		for _, name := range order {
			records[idx].Set(name, data.Of(columns[name][idx]))
		}
	}

	return data.NewQuarterlyPanel("ACME", records)
}

func column(panel *data.QuarterlyPanel, name string) []data.Value {
	vals := make([]data.Value, panel.Len())
	for idx, record := range panel.Records {
		vals[idx] = record.Get(name)
	}

	return vals
}

func values(vals ...float64) []data.Value {
	out := make([]data.Value, len(vals))
	for idx, f := range vals {
		out[idx] = data.Of(f)
	}

	return out
}

func snapshot(panel *data.QuarterlyPanel) map[string][]data.Value {
	snap := make(map[string][]data.Value)
	for _, col := range panel.Columns() {
		snap[col] = column(panel, col)
	}

	return snap
}

func equalValues(expected []data.Value) OmegaMatcher {
	return WithTransform(func(actual []data.Value) bool {
		if len(actual) != len(expected) {
			return false
		}

		for idx := range actual {
			if !actual[idx].Equal(expected[idx]) {
				return false
			}
		}

		return true
	}, BeTrue())
}

var _ = Describe("Enricher", func() {
	var enricher *enrich.Enricher

	BeforeEach(func() {
		enricher = enrich.New(data.DefaultVocabulary())
	})

	Describe("cross-fill", func() {
		It("fills gross profit from revenue and cost of revenue", func() {
			panel := buildPanel(map[string][]float64{
				"Revenues":                   {100, 110, 120, 130, 140},
				"CostOfGoodsAndServicesSold": {60, 66, na, 78, 84},
				"GrossProfit":                {na, na, na, na, na},
			}, "Revenues", "CostOfGoodsAndServicesSold", "GrossProfit")

			Expect(enricher.Enrich(panel)).To(Succeed())

			Expect(column(panel, "GrossProfit")).To(equalValues(values(40, 44, na, 52, 56)))
			Expect(column(panel, "CostOfGoodsAndServicesSold")).To(equalValues(values(60, 66, na, 78, 84)))
		})

		It("creates the gross profit column when only cost of revenue is reported", func() {
			panel := buildPanel(map[string][]float64{
				"Revenues":                   {100, 110},
				"CostOfGoodsAndServicesSold": {60, 70},
			}, "Revenues", "CostOfGoodsAndServicesSold")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(panel.HasColumn("GrossProfit")).To(BeTrue())
			Expect(column(panel, "GrossProfit")).To(equalValues(values(40, 40)))
			Expect(column(panel, "GrossMargin")).To(equalValues(values(0.4, 40.0/110.0)))
		})

		It("recovers cost of revenue from a reported gross profit", func() {
			panel := buildPanel(map[string][]float64{
				"Revenues":                   {100, 110},
				"CostOfGoodsAndServicesSold": {na, 70},
				"GrossProfit":                {30, na},
			}, "Revenues", "CostOfGoodsAndServicesSold", "GrossProfit")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(column(panel, "CostOfGoodsAndServicesSold")).To(equalValues(values(70, 70)))
			Expect(column(panel, "GrossProfit")).To(equalValues(values(30, 40)))
		})

		It("leaves records without revenue untouched", func() {
			panel := buildPanel(map[string][]float64{
				"Revenues":                   {na},
				"CostOfGoodsAndServicesSold": {60},
				"GrossProfit":                {na},
			}, "Revenues", "CostOfGoodsAndServicesSold", "GrossProfit")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(panel.Records[0].Get("GrossProfit").IsMissing()).To(BeTrue())
			Expect(panel.Records[0].Get("CostOfGoodsAndServicesSold").Equal(data.Of(60))).To(BeTrue())
		})

		It("makes gross profit and cost of revenue add up to revenue when two of three are known", func() {
			panel := buildPanel(map[string][]float64{
				"Revenues":                   {100, 200, 300},
				"CostOfGoodsAndServicesSold": {60, na, 120},
				"GrossProfit":                {na, 90, 180},
			}, "Revenues", "CostOfGoodsAndServicesSold", "GrossProfit")

			Expect(enricher.Enrich(panel)).To(Succeed())
			for _, record := range panel.Records {
				sum := record.Get("GrossProfit").Add(record.Get("CostOfGoodsAndServicesSold"))
				Expect(sum.Equal(record.Get("Revenues"))).To(BeTrue())
			}
		})
	})

	Describe("ratios", func() {
		It("computes margins only when every referenced column exists", func() {
			panel := buildPanel(map[string][]float64{
				"Revenues":      {200},
				"NetIncomeLoss": {20},
			}, "Revenues", "NetIncomeLoss")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(panel.Records[0].Get("NetMargin").Equal(data.Of(0.1))).To(BeTrue())
			Expect(panel.HasColumn("OperatingMargin")).To(BeFalse())
			Expect(panel.HasColumn("OpCFMargin")).To(BeFalse())
		})

		It("treats missing inventory as zero in the quick ratio", func() {
			panel := buildPanel(map[string][]float64{
				"CurrentAssets":      {300, 300},
				"CurrentLiabilities": {150, 150},
				"InventoryNet":       {60, na},
			}, "CurrentAssets", "CurrentLiabilities", "InventoryNet")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(column(panel, "CurrentRatio")).To(equalValues(values(2, 2)))
			Expect(column(panel, "QuickRatio")).To(equalValues(values(1.6, 2)))
		})

		It("propagates missing equity into ROE and debt to equity", func() {
			panel := buildPanel(map[string][]float64{
				"NetIncomeLoss":          {10, 10},
				"StockholdersEquity":     {100, na},
				"ShortTermDebt":          {na, 20},
				"LongTermDebtNoncurrent": {50, 30},
			}, "NetIncomeLoss", "StockholdersEquity", "ShortTermDebt", "LongTermDebtNoncurrent")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(column(panel, "ROE")).To(equalValues(values(0.1, na)))
			Expect(column(panel, "DebtToEquity")).To(equalValues(values(0.5, na)))
		})

		It("computes debt to equity from a single debt column", func() {
			panel := buildPanel(map[string][]float64{
				"StockholdersEquity":     {200},
				"LongTermDebtNoncurrent": {50},
			}, "StockholdersEquity", "LongTermDebtNoncurrent")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(panel.Records[0].Get("DebtToEquity").Equal(data.Of(0.25))).To(BeTrue())
		})

		It("skips debt to equity without any debt column", func() {
			panel := buildPanel(map[string][]float64{
				"StockholdersEquity": {200},
			}, "StockholdersEquity")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(panel.HasColumn("DebtToEquity")).To(BeFalse())
		})

		It("never produces infinities for zero denominators", func() {
			panel := buildPanel(map[string][]float64{
				"Revenues":      {0},
				"NetIncomeLoss": {5},
				"Assets":        {0},
			}, "Revenues", "NetIncomeLoss", "Assets")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(panel.Records[0].Get("NetMargin").IsMissing()).To(BeTrue())
			Expect(panel.Records[0].Get("ROA").IsMissing()).To(BeTrue())
		})
	})

	Describe("year over year growth", func() {
		It("compares each quarter with the one four records earlier", func() {
			panel := buildPanel(map[string][]float64{
				"Revenues": {100, 110, 120, 130, 140},
			}, "Revenues")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(column(panel, "Revenues_YoY_%")).To(equalValues(values(na, na, na, na, 40)))
		})

		It("does not fill gaps before computing growth", func() {
			panel := buildPanel(map[string][]float64{
				"NetIncomeLoss": {na, 10, 10, 10, 12, 15},
			}, "NetIncomeLoss")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(column(panel, "NetIncomeLoss_YoY_%")).To(equalValues(values(na, na, na, na, na, 50)))
		})

		It("is missing when the comparator is zero", func() {
			panel := buildPanel(map[string][]float64{
				"Assets": {0, 1, 1, 1, 5},
			}, "Assets")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(panel.Records[4].Get("Assets_YoY_%").IsMissing()).To(BeTrue())
		})

		It("only covers key items", func() {
			panel := buildPanel(map[string][]float64{
				"ResearchAndDevelopmentExpense": {1, 2, 3, 4, 5},
			}, "ResearchAndDevelopmentExpense")

			Expect(enricher.Enrich(panel)).To(Succeed())
			Expect(panel.HasColumn("ResearchAndDevelopmentExpense_YoY_%")).To(BeFalse())
		})
	})

	It("is idempotent", func() {
		panel := buildPanel(map[string][]float64{
			"Revenues":                   {100, 110, 120, 130, 140, 150},
			"CostOfGoodsAndServicesSold": {60, na, na, 78, 84, 90},
			"GrossProfit":                {na, 50, na, na, 56, na},
			"NetIncomeLoss":              {10, 11, 12, na, 14, 15},
			"StockholdersEquity":         {100, 100, na, 100, 100, 0},
			"ShortTermDebt":              {5, na, 5, 5, 5, 5},
			"CurrentAssets":              {50, 50, 50, 50, 50, 50},
			"CurrentLiabilities":         {25, 0, 25, 25, 25, 25},
		}, "Revenues", "CostOfGoodsAndServicesSold", "GrossProfit", "NetIncomeLoss",
			"StockholdersEquity", "ShortTermDebt", "CurrentAssets", "CurrentLiabilities")

		Expect(enricher.Enrich(panel)).To(Succeed())
		first := snapshot(panel)
		columns := panel.Columns()

		Expect(enricher.Enrich(panel)).To(Succeed())
		Expect(panel.Columns()).To(Equal(columns))
		for col, vals := range first {
			Expect(column(panel, col)).To(equalValues(vals), "column %s changed", col)
		}
	})

	Describe("shape errors", func() {
		It("refuses duplicate period ends and leaves the panel untouched", func() {
			panel := buildPanel(map[string][]float64{
				"Revenues":                   {100, 110},
				"CostOfGoodsAndServicesSold": {60, 70},
			}, "Revenues", "CostOfGoodsAndServicesSold")
			panel.Records[1].PeriodEnd = panel.Records[0].PeriodEnd

			Expect(enricher.Enrich(panel)).To(MatchError(data.ErrDuplicatePeriod))
			Expect(panel.HasColumn("GrossProfit")).To(BeFalse())
		})

		It("refuses decreasing period ends", func() {
			panel := buildPanel(map[string][]float64{
				"Revenues": {100, 110},
			}, "Revenues")
			panel.Records[0], panel.Records[1] = panel.Records[1], panel.Records[0]

			Expect(enricher.Enrich(panel)).To(MatchError(data.ErrNotMonotonic))
		})

		It("accepts an empty panel", func() {
			Expect(enricher.Enrich(data.NewQuarterlyPanel("ACME", nil))).To(Succeed())
		})
	})
})
