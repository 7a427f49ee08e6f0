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
package provider_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/penny-vault/pvpanel/cache"
	"github.com/penny-vault/pvpanel/data"
	"github.com/penny-vault/pvpanel/provider"
)

const companyFacts = `{
  "cik": 12345,
  "entityName": "Acme Corp",
  "facts": {
    "dei": {
      "EntityCommonStockSharesOutstanding": {
        "units": {
          "shares": [
            {"end": "2023-04-20", "val": 1000000, "filed": "2023-05-01"},
            {"end": "2023-07-20", "val": 990000, "filed": "2023-08-01"},
            {"end": "2023-07-20", "val": 995000, "filed": "2023-08-15"}
          ]
        }
      }
    },
    "us-gaap": {
      "Revenues": {
        "units": {
          "USD": [
            {"start": "2022-01-01", "end": "2022-12-31", "val": 4000, "filed": "2023-02-01", "form": "10-K"},
            {"start": "2023-01-01", "end": "2023-03-31", "val": 900, "filed": "2023-05-01", "form": "10-Q"},
            {"start": "2023-01-01", "end": "2023-03-31", "val": 950, "filed": "2024-05-01", "form": "10-Q"},
            {"start": "2023-04-01", "end": "2023-06-30", "val": 1000, "filed": "2023-08-01", "form": "10-Q"}
          ]
        }
      },
      "SalesRevenueNet": {
        "units": {
          "USD": [
            {"start": "2023-01-01", "end": "2023-03-31", "val": 1, "filed": "2023-05-01"}
          ]
        }
      },
      "ProfitLoss": {
        "units": {
          "USD": [
            {"start": "2023-04-01", "end": "2023-06-30", "val": 80, "filed": "2023-08-01"}
          ]
        }
      },
      "GrossLoss": {
        "units": {
          "USD": [
            {"start": "2023-01-01", "end": "2023-12-31", "val": 2000, "filed": "2024-02-01"}
          ]
        }
      },
      "StockholdersEquity": {
        "units": {
          "USD": [
            {"end": "2023-03-31", "val": 5000, "filed": "2023-05-01"},
            {"end": "2023-06-30", "val": 5100, "filed": "2023-08-01"}
          ]
        }
      }
    }
  }
}`

var _ = Describe("SEC", func() {
	Describe("ParseCompanyFacts", func() {
		var panel *data.QuarterlyPanel

		BeforeEach(func() {
			var err error
			panel, err = provider.ParseCompanyFacts("ACME", []byte(companyFacts), data.DefaultVocabulary())
			Expect(err).ToNot(HaveOccurred())
		})

		It("orders records by period end", func() {
			Expect(panel.Len()).To(Equal(2))
			Expect(panel.Records[0].PeriodEnd).To(Equal(time.Date(2023, time.March, 31, 0, 0, 0, 0, time.UTC)))
			Expect(panel.Records[1].PeriodEnd).To(Equal(time.Date(2023, time.June, 30, 0, 0, 0, 0, time.UTC)))
			Expect(panel.Validate()).To(Succeed())
		})

		It("uses the first alias that reports data", func() {
			Expect(panel.Records[0].Get("Revenues").Equal(data.Of(950))).To(BeTrue())
			Expect(panel.Records[1].Get("NetIncomeLoss").Equal(data.Of(80))).To(BeTrue())
		})

		It("drops facts covering more than a quarter", func() {
			Expect(panel.HasColumn("GrossProfit")).To(BeFalse())
		})

		It("keeps instant facts", func() {
			Expect(panel.Records[1].Get("StockholdersEquity").Equal(data.Of(5100))).To(BeTrue())
		})

		It("rejects a document that is not JSON", func() {
			_, err := provider.ParseCompanyFacts("ACME", []byte("<html>"), data.DefaultVocabulary())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ParseSharesOutstanding", func() {
		It("returns the latest reported share count", func() {
			shares, err := provider.ParseSharesOutstanding([]byte(companyFacts))
			Expect(err).ToNot(HaveOccurred())
			Expect(shares).To(Equal(995000.0))
		})

		It("fails without a share count", func() {
			_, err := provider.ParseSharesOutstanding([]byte(`{"facts":{}}`))
			Expect(err).To(MatchError(provider.ErrNoShares))
		})
	})

	Describe("CompanyFacts", func() {
		var (
			server *ghttp.Server
			sec    *provider.SEC
		)

		BeforeEach(func() {
			server = ghttp.NewServer()
			DeferCleanup(server.Close)

			sec = provider.NewSEC("Jane Doe jane@example.com", data.DefaultVocabulary())
			sec.BaseURL = server.URL()
		})

		It("identifies itself and caches the response", func() {
			responseCache, err := cache.OpenInMemory(time.Hour)
			Expect(err).ToNot(HaveOccurred())
			DeferCleanup(responseCache.Close)
			sec.Cache = responseCache

			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/api/xbrl/companyfacts/CIK0000012345.json"),
				ghttp.VerifyHeaderKV("User-Agent", "Jane Doe jane@example.com"),
				ghttp.RespondWith(http.StatusOK, companyFacts),
			))

			panel, err := sec.CompanyFacts(context.Background(), "ACME", "0000012345")
			Expect(err).ToNot(HaveOccurred())
			Expect(panel.Len()).To(Equal(2))

			shares, err := sec.SharesOutstanding(context.Background(), "0000012345")
			Expect(err).ToNot(HaveOccurred())
			Expect(shares).To(Equal(995000.0))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})

		It("reads facts and shares from a single download", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, companyFacts))

			panel, shares, err := sec.Company(context.Background(), "ACME", "0000012345")
			Expect(err).ToNot(HaveOccurred())
			Expect(panel.Ticker).To(Equal("ACME"))
			Expect(panel.Len()).To(Equal(2))
			Expect(shares).To(Equal(995000.0))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})

		It("reports HTTP errors", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, "not found"))

			_, err := sec.CompanyFacts(context.Background(), "ACME", "0000099999")
			Expect(err).To(MatchError(provider.ErrHTTPStatus))
		})
	})
})
