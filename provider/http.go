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

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/penny-vault/pvpanel/cache"
)

var ErrHTTPStatus = errors.New("unexpected HTTP status")

// fetch performs a rate limited GET of url and returns the response body.
// When responseCache is set, a cached body for cacheKey is returned without
// contacting the server and fresh bodies are stored under cacheKey.
func fetch(ctx context.Context, client *resty.Client, limiter *rate.Limiter, responseCache *cache.Cache, cacheKey string, req func(*resty.Request) *resty.Request, url string) ([]byte, error) {
	logger := zerolog.Ctx(ctx)

	if body, ok, err := responseCache.Get(cacheKey); err != nil {
		logger.Warn().Err(err).Str("CacheKey", cacheKey).Msg("reading response cache failed")
	} else if ok {
		logger.Debug().Str("CacheKey", cacheKey).Msg("using cached response")
		return body, nil
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	request := client.R().SetContext(ctx)
	if req != nil {
		request = req(request)
	}

	resp, err := request.Get(url)
	if err != nil {
		logger.Error().Err(err).Str("URL", url).Msg("resty returned an error")
		return nil, err
	}

	if resp.StatusCode() >= 300 {
		logger.Error().Int("StatusCode", resp.StatusCode()).Str("URL", url).Msg("server returned an invalid HTTP response")
		return nil, fmt.Errorf("%w: %d from %s", ErrHTTPStatus, resp.StatusCode(), url)
	}

	body := resp.Body()
	if err := responseCache.Set(cacheKey, body); err != nil {
		logger.Warn().Err(err).Str("CacheKey", cacheKey).Msg("writing response cache failed")
	}

	return body, nil
}
