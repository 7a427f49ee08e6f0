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

// Tag identifies a line item or derived ratio that has a typed slot in a
// FundamentalRecord. Tags not listed here are kept in the record's
// side-table by name.
type Tag int

const (
	Revenues Tag = iota
	CostOfGoodsAndServicesSold
	GrossProfit
	OperatingIncomeLoss
	NetIncomeLoss
	OperatingCashFlow
	Assets
	CurrentAssets
	CurrentLiabilities
	InventoryNet
	StockholdersEquity
	ShortTermDebt
	LongTermDebtNoncurrent
	DepreciationAndAmortization
	CashAndCashEquivalentsAtCarryingValue
	CashCashEquivalentsAndShortTermInvestments

	// derived
	GrossMargin
	OperatingMargin
	NetMargin
	OpCFMargin
	CurrentRatio
	QuickRatio
	DebtToEquity
	ROA
	ROE

	numTags
)

var tagNames = [numTags]string{
	Revenues:                                   "Revenues",
	CostOfGoodsAndServicesSold:                 "CostOfGoodsAndServicesSold",
	GrossProfit:                                "GrossProfit",
	OperatingIncomeLoss:                        "OperatingIncomeLoss",
	NetIncomeLoss:                              "NetIncomeLoss",
	OperatingCashFlow:                          "OperatingCashFlow",
	Assets:                                     "Assets",
	CurrentAssets:                              "CurrentAssets",
	CurrentLiabilities:                         "CurrentLiabilities",
	InventoryNet:                               "InventoryNet",
	StockholdersEquity:                         "StockholdersEquity",
	ShortTermDebt:                              "ShortTermDebt",
	LongTermDebtNoncurrent:                     "LongTermDebtNoncurrent",
	DepreciationAndAmortization:                "DepreciationAndAmortization",
	CashAndCashEquivalentsAtCarryingValue:      "CashAndCashEquivalentsAtCarryingValue",
	CashCashEquivalentsAndShortTermInvestments: "CashCashEquivalentsAndShortTermInvestments",
	GrossMargin:                                "GrossMargin",
	OperatingMargin:                            "OperatingMargin",
	NetMargin:                                  "NetMargin",
	OpCFMargin:                                 "OpCFMargin",
	CurrentRatio:                               "CurrentRatio",
	QuickRatio:                                 "QuickRatio",
	DebtToEquity:                               "DebtToEquity",
	ROA:                                        "ROA",
	ROE:                                        "ROE",
}

var tagsByName map[string]Tag

func init() {
	tagsByName = make(map[string]Tag, numTags)
	for idx, name := range tagNames {
		tagsByName[name] = Tag(idx)
	}
}

func (tag Tag) String() string {
	if tag < 0 || tag >= numTags {
		return "Unknown"
	}

	return tagNames[tag]
}

// LookupTag returns the typed tag registered for name
func LookupTag(name string) (Tag, bool) {
	tag, ok := tagsByName[name]
	return tag, ok
}

// Valuation column names
const (
	DateColumn      = "date"
	CloseColumn     = "Close"
	MarketCapColumn = "MarketCap"
	EVColumn        = "EV"
	PEColumn        = "PE"
	PEGColumn       = "PEG"
	EVtoGPColumn    = "EV_GP"
	PSColumn        = "PS"
	EVtoSalesColumn = "EV_S"
)

// ValuationColumns lists the columns appended by the valuation stage in
// output order
var ValuationColumns = []string{
	MarketCapColumn,
	EVColumn,
	PEColumn,
	PEGColumn,
	EVtoGPColumn,
	PSColumn,
	EVtoSalesColumn,
}

// YoYSuffix is appended to a key item name to form its growth column
const YoYSuffix = "_YoY_%"

// YoYColumn returns the year-over-year growth column for tag
func YoYColumn(tag string) string {
	return tag + YoYSuffix
}

// Vocabulary names the line items the engine reads. It is passed by value
// into every stage so a different accounting taxonomy can be used without
// changing any computation.
type Vocabulary struct {
	Revenues           string
	CostOfRevenue      string
	GrossProfit        string
	OperatingIncome    string
	NetIncome          string
	OperatingCashFlow  string
	Assets             string
	CurrentAssets      string
	CurrentLiabilities string
	Inventory          string
	Equity             string
	ShortTermDebt      string
	LongTermDebt       string

	// KeyItems receive a year-over-year growth column
	KeyItems []string

	// CashCandidates are tried in order; the first present column is used
	// as cash in enterprise value
	CashCandidates []string

	// Aliases maps a canonical tag to the source element names that may
	// carry it, in priority order
	Aliases map[string][]string
}

// DefaultVocabulary returns the US-GAAP vocabulary
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Revenues:           Revenues.String(),
		CostOfRevenue:      CostOfGoodsAndServicesSold.String(),
		GrossProfit:        GrossProfit.String(),
		OperatingIncome:    OperatingIncomeLoss.String(),
		NetIncome:          NetIncomeLoss.String(),
		OperatingCashFlow:  OperatingCashFlow.String(),
		Assets:             Assets.String(),
		CurrentAssets:      CurrentAssets.String(),
		CurrentLiabilities: CurrentLiabilities.String(),
		Inventory:          InventoryNet.String(),
		Equity:             StockholdersEquity.String(),
		ShortTermDebt:      ShortTermDebt.String(),
		LongTermDebt:       LongTermDebtNoncurrent.String(),

		KeyItems: []string{
			Revenues.String(),
			CostOfGoodsAndServicesSold.String(),
			GrossProfit.String(),
			OperatingIncomeLoss.String(),
			NetIncomeLoss.String(),
			OperatingCashFlow.String(),
			Assets.String(),
			CurrentAssets.String(),
			CurrentLiabilities.String(),
			InventoryNet.String(),
			StockholdersEquity.String(),
			ShortTermDebt.String(),
			LongTermDebtNoncurrent.String(),
			DepreciationAndAmortization.String(),
		},

		CashCandidates: []string{
			CashAndCashEquivalentsAtCarryingValue.String(),
			CashCashEquivalentsAndShortTermInvestments.String(),
		},

		Aliases: map[string][]string{
			Revenues.String():                    {"Revenues", "RevenueFromContractWithCustomerExcludingAssessedTax", "SalesRevenueNet"},
			CostOfGoodsAndServicesSold.String():  {"CostOfGoodsAndServicesSold", "CostOfRevenue"},
			GrossProfit.String():                 {"GrossProfit", "GrossLoss"},
			OperatingIncomeLoss.String():         {"OperatingIncomeLoss"},
			NetIncomeLoss.String():               {"NetIncomeLoss", "ProfitLoss"},
			OperatingCashFlow.String():           {"NetCashProvidedByUsedInOperatingActivities"},
			Assets.String():                      {"Assets"},
			CurrentAssets.String():               {"AssetsCurrent"},
			CurrentLiabilities.String():          {"LiabilitiesCurrent"},
			InventoryNet.String():                {"InventoryNet"},
			StockholdersEquity.String():          {"StockholdersEquity"},
			ShortTermDebt.String():               {"ShortTermBorrowings", "DebtCurrent", "LongTermDebtCurrent"},
			LongTermDebtNoncurrent.String():      {"LongTermDebtNoncurrent"},
			DepreciationAndAmortization.String(): {"DepreciationDepletionAndAmortization", "DepreciationAndAmortization"},
			CashAndCashEquivalentsAtCarryingValue.String():      {"CashAndCashEquivalentsAtCarryingValue"},
			CashCashEquivalentsAndShortTermInvestments.String(): {"CashCashEquivalentsAndShortTermInvestments"},
		},
	}
}

// FirstPresent returns the first candidate for which has reports true
func FirstPresent(candidates []string, has func(string) bool) (string, bool) {
	for _, candidate := range candidates {
		if has(candidate) {
			return candidate, true
		}
	}

	return "", false
}
