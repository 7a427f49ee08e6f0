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
package align_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvpanel/align"
	"github.com/penny-vault/pvpanel/data"
)

var nyc = time.FixedZone("EST", -5*60*60)

func day(year int, month time.Month, dom int) time.Time {
	return time.Date(year, month, dom, 16, 0, 0, 0, nyc)
}

func record(periodEnd time.Time, revenue float64) *data.FundamentalRecord {
	rec := data.NewFundamentalRecord(periodEnd)
	rec.Set("Revenues", data.Of(revenue))
	return rec
}

// dailyPrices returns one close per calendar day between from and to
func dailyPrices(from, to time.Time) []*data.Eod {
	var prices []*data.Eod
	for dt := from; !dt.After(to); dt = dt.AddDate(0, 0, 1) {
		prices = append(prices, &data.Eod{Date: dt, Ticker: "ACME", Close: float64(len(prices) + 1)})
	}

	return prices
}

var _ = Describe("AsOf", func() {
	var quarterly *data.QuarterlyPanel

	BeforeEach(func() {
		quarterly = data.NewQuarterlyPanel("ACME", []*data.FundamentalRecord{
			record(time.Date(2023, time.March, 31, 0, 0, 0, 0, time.UTC), 100),
			record(time.Date(2023, time.June, 30, 0, 0, 0, 0, time.UTC), 110),
		})
	})

	It("keeps exactly the trading dates of the price series", func() {
		prices := dailyPrices(day(2023, time.March, 1), day(2023, time.July, 31))
		panel, err := align.AsOf(quarterly, prices)
		Expect(err).ToNot(HaveOccurred())
		Expect(panel.Len()).To(Equal(len(prices)))
		for idx, row := range panel.Rows {
			Expect(row.Date).To(Equal(prices[idx].Date))
			Expect(row.Close).To(Equal(prices[idx].Close))
		}
	})

	It("attaches the latest record whose period end is on or before the day", func() {
		prices := []*data.Eod{
			{Date: day(2023, time.March, 30), Close: 1},
			{Date: day(2023, time.March, 31), Close: 2},
			{Date: day(2023, time.June, 29), Close: 3},
			{Date: day(2023, time.June, 30), Close: 4},
			{Date: day(2023, time.August, 1), Close: 5},
		}

		panel, err := align.AsOf(quarterly, prices)
		Expect(err).ToNot(HaveOccurred())

		Expect(panel.Rows[0].Quarter).To(BeNil())
		Expect(panel.Rows[0].Get("Revenues").IsMissing()).To(BeTrue())
		Expect(panel.Rows[0].Get("Close").Equal(data.Of(1))).To(BeTrue())

		Expect(panel.Rows[1].Get("Revenues").Equal(data.Of(100))).To(BeTrue())
		Expect(panel.Rows[2].Get("Revenues").Equal(data.Of(100))).To(BeTrue())
		Expect(panel.Rows[3].Get("Revenues").Equal(data.Of(110))).To(BeTrue())
		Expect(panel.Rows[4].Get("Revenues").Equal(data.Of(110))).To(BeTrue())
	})

	It("never attaches a record to a day before its period end", func() {
		prices := dailyPrices(day(2023, time.January, 1), day(2023, time.December, 31))
		for _, probe := range []int{17, 90, 200, 333} {
			future := prices[probe].Date.AddDate(0, 0, 1)
			injected := record(time.Date(future.Year(), future.Month(), future.Day(), 0, 0, 0, 0, time.UTC), -1)
			panel, err := align.AsOf(data.NewQuarterlyPanel("ACME", []*data.FundamentalRecord{injected}), prices)
			Expect(err).ToNot(HaveOccurred())

			for idx, row := range panel.Rows {
				if idx <= probe {
					Expect(row.Quarter).To(BeNil(), "day %s", row.Date)
				} else {
					Expect(row.Quarter).To(BeIdenticalTo(injected))
				}
			}
		}
	})

	It("carries the quarterly columns after date and close", func() {
		panel, err := align.AsOf(quarterly, dailyPrices(day(2023, time.June, 1), day(2023, time.June, 2)))
		Expect(err).ToNot(HaveOccurred())
		Expect(panel.Columns()).To(Equal([]string{"date", "Close", "Revenues"}))
		Expect(panel.Ticker).To(Equal("ACME"))
	})

	It("does not modify the quarterly records", func() {
		_, err := align.AsOf(quarterly, dailyPrices(day(2023, time.January, 1), day(2023, time.December, 31)))
		Expect(err).ToNot(HaveOccurred())
		Expect(quarterly.Records[0].Declared()).To(Equal([]string{"Revenues"}))
	})

	It("builds a price-only panel without quarterly data", func() {
		panel, err := align.AsOf(nil, dailyPrices(day(2023, time.June, 1), day(2023, time.June, 3)))
		Expect(err).ToNot(HaveOccurred())
		Expect(panel.Len()).To(Equal(3))
		Expect(panel.Columns()).To(Equal([]string{"date", "Close"}))
		Expect(panel.Ticker).To(Equal("ACME"))
	})

	It("rejects an empty price series", func() {
		_, err := align.AsOf(quarterly, nil)
		Expect(err).To(MatchError(data.ErrEmptyPrices))
	})

	It("rejects out of order prices", func() {
		prices := dailyPrices(day(2023, time.June, 1), day(2023, time.June, 3))
		prices[0], prices[2] = prices[2], prices[0]
		_, err := align.AsOf(quarterly, prices)
		Expect(err).To(MatchError(data.ErrNotMonotonic))
	})

	It("rejects duplicate period ends", func() {
		quarterly.Records[1].PeriodEnd = quarterly.Records[0].PeriodEnd
		_, err := align.AsOf(quarterly, dailyPrices(day(2023, time.June, 1), day(2023, time.June, 3)))
		Expect(err).To(MatchError(data.ErrDuplicatePeriod))
	})
})
