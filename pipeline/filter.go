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
package pipeline

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pvpanel/data"
)

type filteredSource struct {
	Source
	tickers map[string]struct{}
}

// Only restricts a source to the given tickers; with no tickers the source
// is returned unchanged. Tickers are matched case-insensitively.
func Only(source Source, tickers ...string) Source {
	if len(tickers) == 0 {
		return source
	}

	filter := &filteredSource{
		Source:  source,
		tickers: make(map[string]struct{}, len(tickers)),
	}

	for _, ticker := range tickers {
		filter.tickers[strings.ToUpper(ticker)] = struct{}{}
	}

	return filter
}

func (filter *filteredSource) Securities(ctx context.Context) ([]*data.Security, error) {
	securities, err := filter.Source.Securities(ctx)
	if err != nil {
		return nil, err
	}

	selected := make([]*data.Security, 0, len(filter.tickers))
	for _, security := range securities {
		if _, ok := filter.tickers[strings.ToUpper(security.Ticker)]; ok {
			selected = append(selected, security)
		}
	}

	if len(selected) < len(filter.tickers) {
		log.Warn().Int("Requested", len(filter.tickers)).Int("Found", len(selected)).Msg("some requested tickers are not in the securities list")
	}

	return selected, nil
}
