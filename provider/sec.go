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
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/penny-vault/pvpanel/cache"
	"github.com/penny-vault/pvpanel/data"
)

const (
	secBaseURL = "https://data.sec.gov"

	// facts spanning more than a quarter are annual or year-to-date totals
	maxQuarterDays = 100
)

var ErrNoShares = errors.New("no shares outstanding reported")

type SEC struct {
	BaseURL    string
	Vocabulary data.Vocabulary
	Cache      *cache.Cache

	client  *resty.Client
	limiter *rate.Limiter
}

// NewSEC creates a client for the EDGAR XBRL API. The SEC requires every
// request to identify the caller with a descriptive User-Agent and limits
// clients to 10 requests per second.
func NewSEC(userAgent string, vocab data.Vocabulary) *SEC {
	return &SEC{
		BaseURL:    secBaseURL,
		Vocabulary: vocab,
		client:     resty.New().SetHeader("User-Agent", userAgent).SetHeader("Accept", "application/json"),
		limiter:    rate.NewLimiter(rate.Limit(10), 1),
	}
}

func (sec *SEC) Name() string {
	return "SEC"
}

func (sec *SEC) ConfigDescription() map[string]string {
	return map[string]string{
		"userAgent": "Contact used as the SEC User-Agent (e.g. Jane Doe jane@example.com):",
	}
}

func (sec *SEC) Description() string {
	return `The SEC EDGAR XBRL API publishes every fact reported in company filings. Quarterly line items are read from the us-gaap taxonomy and the current share count from the dei taxonomy.`
}

func (sec *SEC) Datasets() map[string]Dataset {
	return map[string]Dataset{
		"Company Facts": {
			Name:        "Company Facts",
			Description: "Quarterly us-gaap line items and shares outstanding.",
			DataTypes:   []*data.DataType{data.DataTypes[data.FundamentalsKey], data.DataTypes[data.SecuritiesKey]},
			DateRange: func() (time.Time, time.Time) {
				return time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC), time.Now().UTC()
			},
		},
	}
}

func (sec *SEC) companyFacts(ctx context.Context, cik string) ([]byte, error) {
	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", sec.BaseURL, cik)
	return fetch(ctx, sec.client, sec.limiter, sec.Cache, url, nil, url)
}

// CompanyFacts downloads the company facts of cik and assembles the
// quarterly panel. Each canonical line item is read from the first alias in
// the vocabulary that reports any usable fact.
func (sec *SEC) CompanyFacts(ctx context.Context, ticker, cik string) (*data.QuarterlyPanel, error) {
	body, err := sec.companyFacts(ctx, cik)
	if err != nil {
		return nil, err
	}

	return ParseCompanyFacts(ticker, body, sec.Vocabulary)
}

// Company downloads the company facts of cik once and returns both the
// quarterly panel and the current share count. A document without a share
// count returns ErrNoShares together with the panel.
func (sec *SEC) Company(ctx context.Context, ticker, cik string) (*data.QuarterlyPanel, float64, error) {
	body, err := sec.companyFacts(ctx, cik)
	if err != nil {
		return nil, 0, err
	}

	panel, err := ParseCompanyFacts(ticker, body, sec.Vocabulary)
	if err != nil {
		return nil, 0, err
	}

	shares, err := ParseSharesOutstanding(body)
	return panel, shares, err
}

// SharesOutstanding returns the most recently reported common share count
func (sec *SEC) SharesOutstanding(ctx context.Context, cik string) (float64, error) {
	body, err := sec.companyFacts(ctx, cik)
	if err != nil {
		return 0, err
	}

	return ParseSharesOutstanding(body)
}

type secFact struct {
	end   string
	filed string
	val   float64
}

// ParseCompanyFacts converts a companyfacts document into a quarterly panel
func ParseCompanyFacts(ticker string, body []byte, vocab data.Vocabulary) (*data.QuarterlyPanel, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s: companyfacts is not valid JSON", ticker)
	}

	canonical := make([]string, 0, len(vocab.Aliases))
	for name := range vocab.Aliases {
		canonical = append(canonical, name)
	}

	sort.Strings(canonical)

	byEnd := make(map[string]*data.FundamentalRecord)
	for _, name := range canonical {
		facts, ok := firstReported(body, vocab.Aliases[name])
		if !ok {
			continue
		}

		for _, fact := range facts {
			record, ok := byEnd[fact.end]
			if !ok {
				periodEnd, err := time.Parse("2006-01-02", fact.end)
				if err != nil {
					continue
				}

				record = data.NewFundamentalRecord(periodEnd)
				byEnd[fact.end] = record
			}

			record.Set(name, data.Of(fact.val))
		}
	}

	records := make([]*data.FundamentalRecord, 0, len(byEnd))
	for _, record := range byEnd {
		records = append(records, record)
	}

	panel := data.NewQuarterlyPanel(ticker, records)
	panel.SortByPeriodEnd()

	return panel, nil
}

// firstReported returns the facts of the first element name that has any
// quarterly or instant USD fact
func firstReported(body []byte, aliases []string) ([]*secFact, bool) {
	for _, alias := range aliases {
		units := gjson.GetBytes(body, fmt.Sprintf("facts.us-gaap.%s.units.USD", alias))
		if !units.IsArray() {
			continue
		}

		latest := make(map[string]*secFact)
		units.ForEach(func(_, fact gjson.Result) bool {
			end := fact.Get("end").String()
			val := fact.Get("val")
			if end == "" || !val.Exists() {
				return true
			}

			if !isQuarterly(fact.Get("start").String(), end) {
				return true
			}

			filed := fact.Get("filed").String()
			if prev, ok := latest[end]; ok && prev.filed > filed {
				return true
			}

			latest[end] = &secFact{end: end, filed: filed, val: val.Float()}
			return true
		})

		if len(latest) == 0 {
			continue
		}

		facts := make([]*secFact, 0, len(latest))
		for _, fact := range latest {
			facts = append(facts, fact)
		}

		sort.Slice(facts, func(i, j int) bool {
			return facts[i].end < facts[j].end
		})

		return facts, true
	}

	return nil, false
}

// isQuarterly reports whether a fact is an instant or spans at most a quarter
func isQuarterly(start, end string) bool {
	if start == "" {
		return true
	}

	startDate, err := time.Parse("2006-01-02", start)
	if err != nil {
		return false
	}

	endDate, err := time.Parse("2006-01-02", end)
	if err != nil {
		return false
	}

	return endDate.Sub(startDate) <= maxQuarterDays*24*time.Hour
}

// ParseSharesOutstanding reads dei:EntityCommonStockSharesOutstanding and
// returns the value with the latest end date
func ParseSharesOutstanding(body []byte) (float64, error) {
	units := gjson.GetBytes(body, "facts.dei.EntityCommonStockSharesOutstanding.units.shares")
	if !units.IsArray() {
		return 0, ErrNoShares
	}

	var best *secFact
	units.ForEach(func(_, fact gjson.Result) bool {
		candidate := &secFact{
			end:   fact.Get("end").String(),
			filed: fact.Get("filed").String(),
			val:   fact.Get("val").Float(),
		}

		if best == nil || candidate.end > best.end || (candidate.end == best.end && candidate.filed > best.filed) {
			best = candidate
		}

		return true
	})

	if best == nil || best.val <= 0 {
		return 0, ErrNoShares
	}

	return best.val, nil
}
