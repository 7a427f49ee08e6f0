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
package pipeline_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvpanel/data"
	"github.com/penny-vault/pvpanel/pipeline"
)

var errNoPrices = errors.New("no prices on file")

type memorySource struct {
	securities []*data.Security
	quarterly  map[string]func() *data.QuarterlyPanel
	prices     map[string][]*data.Eod
}

func (source *memorySource) Securities(ctx context.Context) ([]*data.Security, error) {
	return source.securities, nil
}

func (source *memorySource) Quarterly(ctx context.Context, security *data.Security) (*data.QuarterlyPanel, error) {
	build, ok := source.quarterly[security.Ticker]
	if !ok {
		return nil, nil
	}

	return build(), nil
}

func (source *memorySource) Prices(ctx context.Context, security *data.Security) ([]*data.Eod, error) {
	prices, ok := source.prices[security.Ticker]
	if !ok {
		return nil, errNoPrices
	}

	return prices, nil
}

type memorySink struct {
	mu     sync.Mutex
	panels map[string]*data.DailyPanel
}

func (sink *memorySink) Save(ctx context.Context, panel *data.DailyPanel) error {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	sink.panels[panel.Ticker] = panel
	return nil
}

var na = math.NaN()

func scenarioPanel() *data.QuarterlyPanel {
	revenue := []float64{100, 110, 120, 130, 140}
	cogs := []float64{60, 66, na, 78, 84}

	records := make([]*data.FundamentalRecord, len(revenue))
	for idx := range records {
		periodEnd := time.Date(2022, time.April+time.Month(3*idx), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		records[idx] = data.NewFundamentalRecord(periodEnd)
		records[idx].Set("Revenues", data.Of(revenue[idx]))
		records[idx].Set("CostOfGoodsAndServicesSold", data.Of(cogs[idx]))
		records[idx].Set("GrossProfit", data.Missing)
		records[idx].Set("NetIncomeLoss", data.Of(10+float64(idx)))
	}

	return data.NewQuarterlyPanel("ACME", records)
}

func tradingDays(ticker string, from time.Time, n int) []*data.Eod {
	prices := make([]*data.Eod, n)
	for idx := range prices {
		prices[idx] = &data.Eod{
			Ticker: ticker,
			Date:   from.AddDate(0, 0, 7*idx),
			Close:  10 + float64(idx),
		}
	}

	return prices
}

var _ = Describe("Pipeline", func() {
	Describe("Build", func() {
		It("produces the daily panel for the reference scenario", func() {
			quarterly := scenarioPanel()
			prices := tradingDays("ACME", time.Date(2022, time.March, 1, 16, 0, 0, 0, time.UTC), 80)

			panel, err := pipeline.Build(data.DefaultVocabulary(), quarterly, prices, 1000)
			Expect(err).ToNot(HaveOccurred())
			Expect(panel.Len()).To(Equal(len(prices)))

			grossProfit := make([]data.Value, quarterly.Len())
			for idx, record := range quarterly.Records {
				grossProfit[idx] = record.Get("GrossProfit")
			}

			expected := []data.Value{data.Of(40), data.Of(44), data.Missing, data.Of(52), data.Of(56)}
			for idx := range expected {
				Expect(grossProfit[idx].Equal(expected[idx])).To(BeTrue(), "GrossProfit[%d] = %s", idx, grossProfit[idx])
			}

			Expect(quarterly.Records[2].Get("CostOfGoodsAndServicesSold").IsMissing()).To(BeTrue())
			Expect(quarterly.Records[4].Get("Revenues_YoY_%").Equal(data.Of(40))).To(BeTrue())

			columns := panel.Columns()
			Expect(columns[:2]).To(Equal([]string{"date", "Close"}))
			Expect(columns[len(columns)-7:]).To(Equal(data.ValuationColumns))
			Expect(columns).To(ContainElements("Revenues", "GrossMargin", "NetMargin", "Revenues_YoY_%"))

			for _, row := range panel.Rows {
				periodEnd, ok := row.PeriodEnd()
				if !ok {
					Expect(row.Get("Revenues").IsMissing()).To(BeTrue())
					Expect(row.Get("MarketCap").Present()).To(BeTrue())
					continue
				}

				Expect(data.CivilDate(periodEnd)).To(BeNumerically("<=", data.CivilDate(row.Date)))
			}
		})

		It("rejects an invalid share count", func() {
			_, err := pipeline.Build(data.DefaultVocabulary(), scenarioPanel(),
				tradingDays("ACME", time.Date(2022, time.March, 1, 16, 0, 0, 0, time.UTC), 3), 0)
			Expect(err).To(MatchError(data.ErrInvalidShares))
		})
	})

	Describe("Run", func() {
		var (
			source *memorySource
			sink   *memorySink
		)

		BeforeEach(func() {
			start := time.Date(2022, time.March, 1, 16, 0, 0, 0, time.UTC)
			source = &memorySource{
				securities: []*data.Security{
					{Ticker: "ACME", SharesOutstanding: 1000},
					{Ticker: "NOFACTS", SharesOutstanding: 50},
					{Ticker: "NOPRICES", SharesOutstanding: 50},
					{Ticker: "NOSHARES", SharesOutstanding: 0},
				},
				quarterly: map[string]func() *data.QuarterlyPanel{
					"ACME":     scenarioPanel,
					"NOSHARES": scenarioPanel,
				},
				prices: map[string][]*data.Eod{
					"ACME":     tradingDays("ACME", start, 10),
					"NOFACTS":  tradingDays("NOFACTS", start, 5),
					"NOSHARES": tradingDays("NOSHARES", start, 5),
				},
			}
			sink = &memorySink{panels: make(map[string]*data.DailyPanel)}
		})

		It("continues past failing securities and counts them", func() {
			p := pipeline.New(source, data.DefaultVocabulary(), sink)
			p.Concurrency = 2

			summary, err := p.Run(context.Background())
			Expect(err).ToNot(HaveOccurred())

			Expect(summary.NumSecurities).To(Equal(4))
			Expect(summary.NumFailed).To(Equal(2))
			Expect(summary.NumRows).To(Equal(15))
			Expect(summary.Status).To(Equal(data.RunPartial))
			Expect(summary.EndTime).ToNot(BeTemporally("<", summary.StartTime))

			Expect(sink.panels).To(HaveKey("ACME"))
			Expect(sink.panels).To(HaveKey("NOFACTS"))
			Expect(sink.panels["NOFACTS"].Columns()).To(Equal(append([]string{"date", "Close"}, data.ValuationColumns...)))
		})

		It("records outcomes in the metrics registry", func() {
			p := pipeline.New(source, data.DefaultVocabulary(), sink)
			_, err := p.Run(context.Background())
			Expect(err).ToNot(HaveOccurred())

			fn := filepath.Join(GinkgoT().TempDir(), "pvpanel.prom")
			Expect(p.Metrics.WriteTextfile(fn)).To(Succeed())

			contents, err := os.ReadFile(fn)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(contents)).To(ContainSubstring(`pvpanel_securities_total{status="failed"} 2`))
			Expect(string(contents)).To(ContainSubstring(`pvpanel_securities_total{status="succeeded"} 2`))
			Expect(string(contents)).To(ContainSubstring("pvpanel_rows_total 15"))
		})

		It("stops when the context is canceled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			summary, err := pipeline.New(source, data.DefaultVocabulary(), sink).Run(ctx)
			Expect(err).To(MatchError(context.Canceled))
			Expect(summary.Status).To(Equal(data.RunCanceled))
		})

		It("builds only the requested tickers", func() {
			summary, err := pipeline.New(pipeline.Only(source, "acme", "MISSING"), data.DefaultVocabulary(), sink).Run(context.Background())
			Expect(err).ToNot(HaveOccurred())
			Expect(summary.NumSecurities).To(Equal(1))
			Expect(summary.Status).To(Equal(data.RunSucceeded))
			Expect(sink.panels).To(HaveLen(1))
			Expect(sink.panels).To(HaveKey("ACME"))
		})
	})
})
