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
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrStatus = errors.New("status code is invalid")
)

const (
	DefaultAPIURL  = "https://healthchecks.io/api/v3"
	DefaultPingURL = "https://hc-ping.com"
)

type createReq struct {
	Name        string `json:"name"`
	Description string `json:"desc,omitempty"`
	Grace       int    `json:"grace"`
	Schedule    string `json:"schedule"`
	Slug        string `json:"slug"`
	Tags        string `json:"tags"`
	Timezone    string `json:"tz"`
}

type createResp struct {
	PingURL string `json:"ping_url"`
}

// Client talks to the healthchecks.io management API
type Client struct {
	APIURL string
	APIKey string

	client *resty.Client
}

func New(apiKey string) *Client {
	return &Client{
		APIURL: DefaultAPIURL,
		APIKey: apiKey,
		client: resty.New(),
	}
}

// Create a new healthchecks.io check for a scheduled build and return its id
func (hc *Client) Create(ctx context.Context, name string, slug string, tags []string, schedule string) (string, error) {
	command := createReq{
		Name:     name,
		Slug:     slug,
		Tags:     strings.Join(tags, " "),
		Grace:    3600,
		Schedule: schedule,
		Timezone: "America/New_York",
	}

	result := createResp{}

	resp, err := hc.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Api-Key", hc.APIKey).
		SetBody(command).
		SetResult(&result).
		Post(fmt.Sprintf("%s/checks/", hc.APIURL))

	if err != nil {
		return "", err
	}

	if resp.StatusCode() > 201 {
		return "", fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	checkID := strings.Split(result.PingURL, "/")
	healthCheckID := checkID[len(checkID)-1]

	return healthCheckID, nil
}

// Monitor reports the progress of a run to a check. A monitor without a
// check id does nothing.
type Monitor struct {
	PingURL string
	CheckID string

	client *resty.Client
}

func NewMonitor(checkID string) *Monitor {
	return &Monitor{
		PingURL: DefaultPingURL,
		CheckID: checkID,
		client:  resty.New(),
	}
}

func (monitor *Monitor) ping(ctx context.Context, suffix, body string) error {
	if monitor == nil || monitor.CheckID == "" {
		return nil
	}

	url := fmt.Sprintf("%s/%s%s", monitor.PingURL, monitor.CheckID, suffix)
	resp, err := monitor.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(url)

	if err != nil {
		log.Warn().Err(err).Str("CheckID", monitor.CheckID).Msg("healthcheck ping failed")
		return err
	}

	if resp.StatusCode() != 200 {
		log.Warn().Int("StatusCode", resp.StatusCode()).Str("CheckID", monitor.CheckID).Msg("healthcheck ping returned an invalid status code")
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	return nil
}

// Start signals that a run has begun
func (monitor *Monitor) Start(ctx context.Context) error {
	return monitor.ping(ctx, "/start", "")
}

// Success signals a completed run; msg is attached to the ping
func (monitor *Monitor) Success(ctx context.Context, msg string) error {
	return monitor.ping(ctx, "", msg)
}

// Fail signals a failed run
func (monitor *Monitor) Fail(ctx context.Context, msg string) error {
	return monitor.ping(ctx, "/fail", msg)
}
