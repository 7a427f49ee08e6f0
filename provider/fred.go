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
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/penny-vault/pvpanel/data"
)

const fredBaseURL = "https://api.stlouisfed.org"

type Fred struct {
	BaseURL string

	client  *resty.Client
	limiter *rate.Limiter
}

// NewFred creates a FRED client; the API allows 120 requests per minute
func NewFred(apiKey string) *Fred {
	return &Fred{
		BaseURL: fredBaseURL,
		client:  resty.New().SetQueryParam("api_key", apiKey).SetJSONUnmarshaler(json.Unmarshal),
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
}

func (fred *Fred) Name() string {
	return "FRED"
}

func (fred *Fred) ConfigDescription() map[string]string {
	return map[string]string{
		"seriesIds": "Enter all series to retrieve from FRED (e.g. UNRATE, DTB3):",
		"apiKey":    "What is your FRED api key?",
	}
}

func (fred *Fred) Description() string {
	return `The Financial Reserve Economic Data (FRED) provides access over 800,000 economic indicators`
}

func (fred *Fred) Datasets() map[string]Dataset {
	return map[string]Dataset{
		"Economic Indicators": {
			Name:        "Economic Indicators",
			Description: "Download economic indicators.",
			DataTypes:   []*data.DataType{data.DataTypes[data.IndicatorKey]},
			DateRange: func() (time.Time, time.Time) {
				return time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), time.Now().UTC()
			},
		},
	}
}

// Series downloads every observation of seriesID in ascending date order.
// Observations FRED reports as "." (no value) are skipped.
func (fred *Fred) Series(ctx context.Context, seriesID string) ([]*data.EconomicIndicator, error) {
	logger := zerolog.Ctx(ctx)

	if err := fred.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp fredResponse
	url := fmt.Sprintf("%s/fred/series/observations", fred.BaseURL)
	req, err := fred.client.R().
		SetContext(ctx).
		SetQueryParam("file_type", "json").
		SetQueryParam("series_id", seriesID).
		SetQueryParam("sort_order", "asc").
		SetResult(&resp).Get(url)

	if err != nil {
		logger.Error().Err(err).Str("Series", seriesID).Msg("downloading economic indicators failed")
		return nil, err
	}

	if req.StatusCode() >= 300 {
		logger.Error().Int("StatusCode", req.StatusCode()).Str("Series", seriesID).Msg("downloading economic indicators returned error status code")
		return nil, fmt.Errorf("%w: %d for series %s", ErrHTTPStatus, req.StatusCode(), seriesID)
	}

	indicators := make([]*data.EconomicIndicator, 0, len(resp.Observations))
	for _, obs := range resp.Observations {
		if obs.Value == "." {
			// no observation
			continue
		}

		eventDate, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			logger.Error().Err(err).Str("DateStr", obs.Date).Msg("parsing observation date failed")
			continue
		}

		val, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			logger.Error().Err(err).Str("ValueStr", obs.Value).Msg("parsing observation value failed")
			continue
		}

		indicators = append(indicators, &data.EconomicIndicator{
			Series:    seriesID,
			EventDate: eventDate,
			Value:     val,
		})
	}

	return indicators, nil
}

type fredResponse struct {
	ObservationStart string            `json:"observation_start"`
	ObservationEnd   string            `json:"observation_end"`
	Units            string            `json:"units"`
	Count            int               `json:"count"`
	Observations     []fredObservation `json:"observations"`
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}
