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
package store_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvpanel/data"
	"github.com/penny-vault/pvpanel/store"
)

const factsCSV = `period_end,Revenues,CostOfGoodsAndServicesSold,GrossProfit
2023-06-30,110,66,
2023-03-31,100,60,NaN
2023-09-30,120,n/a,NA
`

const pricesCSV = `Date,Open,Close,Volume
2023-07-03,10,11.5,100
2023-06-30,9,10.5,100
2023-07-05,11,12,100
`

func writeFile(fn, contents string) {
	Expect(os.MkdirAll(filepath.Dir(fn), 0o755)).To(Succeed())
	Expect(os.WriteFile(fn, []byte(contents), 0o644)).To(Succeed())
}

var _ = Describe("Files", func() {
	var (
		ctx   context.Context
		files *store.Files
		root  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()
		files = store.NewFiles()
		files.SecuritiesFile = filepath.Join(root, "securities.csv")
		files.FactsDir = filepath.Join(root, "facts")
		files.PricesDir = filepath.Join(root, "prices")
		files.OutputDir = filepath.Join(root, "out")
	})

	Describe("reading", func() {
		It("loads the securities universe", func() {
			writeFile(files.SecuritiesFile, "ticker,cik,shares_outstanding\nACME,0000012345,1500000\nBRK.B,0001067983,2100000\n")

			securities, err := files.Securities(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(securities).To(HaveLen(2))
			Expect(*securities[0]).To(Equal(data.Security{Ticker: "ACME", CIK: "0000012345", SharesOutstanding: 1500000}))
		})

		It("sorts quarterly rows and keeps declared but missing cells", func() {
			panel, err := store.ReadQuarterly("ACME", strings.NewReader(factsCSV))
			Expect(err).ToNot(HaveOccurred())
			Expect(panel.Len()).To(Equal(3))
			Expect(panel.Records[0].PeriodEnd).To(Equal(time.Date(2023, time.March, 31, 0, 0, 0, 0, time.UTC)))
			Expect(panel.HasColumn("GrossProfit")).To(BeTrue())
			Expect(panel.Records[0].Get("GrossProfit").IsMissing()).To(BeTrue())
			Expect(panel.Records[2].Get("CostOfGoodsAndServicesSold").IsMissing()).To(BeTrue())
			Expect(panel.Records[1].Get("Revenues").Equal(data.Of(110))).To(BeTrue())
		})

		It("rejects duplicate period ends", func() {
			_, err := store.ReadQuarterly("ACME", strings.NewReader("period_end,Revenues\n2023-03-31,1\n2023-03-31,2\n"))
			Expect(err).To(MatchError(data.ErrDuplicatePeriod))
		})

		It("requires a period_end column", func() {
			_, err := store.ReadQuarterly("ACME", strings.NewReader("date,Revenues\n2023-03-31,1\n"))
			Expect(err).To(MatchError(store.ErrMissingColumn))
		})

		It("returns no panel when a security has no facts file", func() {
			panel, err := files.Quarterly(ctx, &data.Security{Ticker: "ACME"})
			Expect(err).ToNot(HaveOccurred())
			Expect(panel).To(BeNil())
		})

		It("reads prices with case-insensitive headers in date order", func() {
			writeFile(files.PricesFile("ACME"), pricesCSV)

			prices, err := files.Prices(ctx, &data.Security{Ticker: "ACME"})
			Expect(err).ToNot(HaveOccurred())
			Expect(prices).To(HaveLen(3))
			Expect(prices[0].Close).To(Equal(10.5))
			Expect(prices[2].Close).To(Equal(12.0))
			Expect(prices[0].Ticker).To(Equal("ACME"))
		})

		It("rejects a price file without a close column", func() {
			_, err := store.ReadPrices("ACME", strings.NewReader("date,open\n2023-06-30,1\n"))
			Expect(err).To(MatchError(store.ErrMissingColumn))
		})

		It("rejects a duplicate trading date even when rows are out of order", func() {
			_, err := store.ReadPrices("ACME", strings.NewReader("date,close\n2023-07-03,11\n2023-06-30,10\n2023-07-03,12\n"))
			Expect(err).To(MatchError(data.ErrDuplicatePeriod))
		})

		It("rejects an empty price file", func() {
			_, err := store.ReadPrices("ACME", strings.NewReader("date,close\n"))
			Expect(err).To(MatchError(data.ErrEmptyPrices))
		})
	})

	Describe("writing", func() {
		var panel *data.DailyPanel

		BeforeEach(func() {
			quarter := data.NewFundamentalRecord(time.Date(2023, time.June, 30, 0, 0, 0, 0, time.UTC))
			quarter.Set("Revenues", data.Of(500))
			quarter.Set("Revenues_YoY_%", data.Missing)

			panel = data.NewDailyPanel("BRK.B", []*data.DailyRow{
				{Date: time.Date(2023, time.June, 29, 16, 0, 0, 0, time.UTC), Close: 10},
				{Date: time.Date(2023, time.June, 30, 16, 0, 0, 0, time.UTC), Close: 11, Quarter: quarter,
					Valuation: data.Valuation{MarketCap: data.Of(1100)}},
			})
			panel.AddColumn("Revenues")
			panel.AddColumn("Revenues_YoY_%")
			panel.AddColumn(data.MarketCapColumn)
		})

		It("writes CSV with the missing marker", func() {
			Expect(files.Save(ctx, panel)).To(Succeed())

			contents, err := os.ReadFile(filepath.Join(files.OutputDir, "brk-b", "daily_panel.csv"))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(contents)).To(Equal("date,Close,Revenues,Revenues_YoY_%,MarketCap\n" +
				"2023-06-29,10,NA,NA,NA\n" +
				"2023-06-30,11,500,NA,1100\n"))
		})

		It("writes JSON lines with null for missing cells", func() {
			files.Formats = []string{store.FormatJSONL}
			paths, err := files.SavePaths(ctx, panel)
			Expect(err).ToNot(HaveOccurred())
			Expect(paths).To(ConsistOf(filepath.Join(files.OutputDir, "brk-b", "daily_panel.jsonl")))

			contents, err := os.ReadFile(paths[0])
			Expect(err).ToNot(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(MatchJSON(`{"date":"2023-06-29","Close":10,"Revenues":null,"Revenues_YoY_%":null,"MarketCap":null}`))
			Expect(lines[1]).To(MatchJSON(`{"date":"2023-06-30","Close":11,"Revenues":500,"Revenues_YoY_%":null,"MarketCap":1100}`))
		})

		It("writes JSON keys in column order", func() {
			fn := filepath.Join(root, "ordered.jsonl")
			Expect(store.WriteJSONLines(fn, panel)).To(Succeed())

			contents, err := os.ReadFile(fn)
			Expect(err).ToNot(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
			Expect(lines[1]).To(Equal(`{"date":"2023-06-30","Close":11,"Revenues":500,"Revenues_YoY_%":null,"MarketCap":1100}`))
		})

		It("writes a parquet file", func() {
			files.Formats = []string{store.FormatParquet}
			paths, err := files.SavePaths(ctx, panel)
			Expect(err).ToNot(HaveOccurred())

			info, err := os.Stat(paths[0])
			Expect(err).ToNot(HaveOccurred())
			Expect(info.Size()).To(BeNumerically(">", 0))
		})

		It("rejects an unknown format", func() {
			files.Formats = []string{"xlsx"}
			Expect(files.Save(ctx, panel)).ToNot(Succeed())
		})

		It("sanitizes parquet column names", func() {
			Expect(store.ParquetName("Revenues_YoY_%")).To(Equal("Revenues_YoY_pct"))
			Expect(store.ParquetName("EV/GP ratio")).To(Equal("EV_GP_ratio"))
		})

		It("gives colliding parquet column names distinct fields", func() {
			panel.AddColumn("A-B")
			panel.AddColumn("A.B")
			panel.AddColumn("A_B_1")

			_, names, err := store.ParquetColumns(panel)
			Expect(err).ToNot(HaveOccurred())
			Expect(names).To(HaveLen(len(panel.Columns())))

			fields := make(map[string]string, len(names))
			for col, name := range names {
				Expect(fields).ToNot(HaveKey(name), "%s and %s share a field", col, fields[name])
				fields[name] = col
			}

			Expect(names["A-B"]).To(Equal("A_B"))
			Expect(names["A.B"]).To(Equal("A_B_1"))
			Expect(names["A_B_1"]).To(Equal("A_B_1_1"))
		})

		It("writes a parquet file with colliding column names", func() {
			panel.AddColumn("A-B")
			panel.AddColumn("A.B")
			panel.AddColumn("A_B_1")

			Expect(store.WriteParquet(filepath.Join(root, "collide.parquet"), panel)).To(Succeed())
		})
	})

	Describe("fetched inputs", func() {
		It("writes quarterly facts that read back into the same panel", func() {
			q1 := data.NewFundamentalRecord(time.Date(2023, time.March, 31, 0, 0, 0, 0, time.UTC))
			q1.Set("Revenues", data.Of(100))
			q1.Set("GrossProfit", data.Missing)
			q2 := data.NewFundamentalRecord(time.Date(2023, time.June, 30, 0, 0, 0, 0, time.UTC))
			q2.Set("Revenues", data.Of(110.5))

			fn, err := files.SaveQuarterly(data.NewQuarterlyPanel("MSFT", []*data.FundamentalRecord{q1, q2}))
			Expect(err).ToNot(HaveOccurred())
			Expect(fn).To(Equal(files.FactsFile("MSFT")))

			contents, err := os.ReadFile(fn)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(contents)).To(Equal("period_end,Revenues,GrossProfit\n" +
				"2023-03-31,100,NA\n" +
				"2023-06-30,110.5,NA\n"))

			panel, err := files.Quarterly(ctx, &data.Security{Ticker: "MSFT"})
			Expect(err).ToNot(HaveOccurred())
			Expect(panel.Len()).To(Equal(2))
			Expect(panel.HasColumn("GrossProfit")).To(BeTrue())
			Expect(panel.Records[1].Get("Revenues").Equal(data.Of(110.5))).To(BeTrue())
		})

		It("writes prices that the price loader accepts", func() {
			prices := []*data.Eod{
				{Date: time.Date(2023, time.June, 30, 16, 0, 0, 0, time.UTC), Ticker: "MSFT", Close: 340.54, Split: 1},
				{Date: time.Date(2023, time.July, 3, 16, 0, 0, 0, time.UTC), Ticker: "MSFT", Close: 337.99, Split: 1},
			}

			_, err := files.SavePrices("MSFT", prices)
			Expect(err).ToNot(HaveOccurred())

			loaded, err := files.Prices(ctx, &data.Security{Ticker: "MSFT"})
			Expect(err).ToNot(HaveOccurred())
			Expect(loaded).To(HaveLen(2))
			Expect(loaded[1].Close).To(Equal(337.99))
		})

		It("rewrites the securities file", func() {
			securities := []*data.Security{
				{Ticker: "AAPL", CIK: "0000320193", SharesOutstanding: 15550061000},
				{Ticker: "MSFT", CIK: "0000789019", SharesOutstanding: 7432000000},
			}

			Expect(files.SaveSecurities(securities)).To(Succeed())

			loaded, err := files.Securities(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(loaded).To(HaveLen(2))
			Expect(*loaded[0]).To(Equal(*securities[0]))
			Expect(loaded[1].CIK).To(Equal("0000789019"))
		})
	})
})
