// Copyright 2025 Sensortable

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package iot is the client of the remote IoT data platform: the endpoint
// catalog, the single-shot metadata calls, and the step functions driving
// the pager over the paginated data sources. Raw payloads are validated and
// converted to typed entities here, at the boundary.
package iot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"

	"github.com/sensortable/sensortable/pager"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// CloudURL is the default base URL of the cloud deployment. It may be
// overwritten in tests before creating a new client.
var CloudURL = "https://data.sensortable.net/api/v2"

// OnPremURL is the default base URL of the on-premise deployment, which
// serves the same API surface over plain HTTP.
var OnPremURL = "http://data.sensortable.local/api/v2"

// ErrMalformed marks a success-looking HTTP response that is missing
// required fields or carries the server error flag. It is fatal: the pager
// aborts without retrying.
var ErrMalformed = errors.Reason("malformed response")

// SeriesPolicy is the retry policy of the bulk time-series endpoints.
var SeriesPolicy = pager.Policy{
	MaxAttempts: 15,
	ShortTries:  5,
	ShortDelay:  2 * time.Second,
	LongDelay:   10 * time.Second,
}

// ListingPolicy is the retry policy of the REST listing endpoints.
var ListingPolicy = pager.Policy{
	MaxAttempts: 8,
	ShortTries:  5,
	ShortDelay:  2 * time.Second,
	LongDelay:   4 * time.Second,
}

// noRetry disables the fetch layer's own retries and waits; the pager's
// Policy is the single retry authority.
var noRetry = fetch.NewParams().Retries(0).MinWait(0)

// Client for querying the platform on behalf of one user.
type Client struct {
	baseURL string
	userID  string
}

func newClient(baseURL, userID string) *Client {
	return &Client{baseURL: baseURL, userID: userID}
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// userIDTransport stamps the user id header on every outgoing request.
type userIDTransport struct {
	base   http.RoundTripper
	userID string
}

func (t *userIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("X-User-Id", t.userID)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

// UseClient creates a new client for the user and injects it into the
// context. The on-premise deployment is selected by onPrem. The HTTP client
// already in the context, if any, is wrapped so that every request carries
// the user id header.
func UseClient(ctx context.Context, userID string, onPrem bool) context.Context {
	u := CloudURL
	if onPrem {
		u = OnPremURL
	}
	base := fetch.GetClient(ctx)
	if base == nil {
		base = http.DefaultClient
	}
	authed := *base
	authed.Transport = &userIDTransport{base: base.Transport, userID: userID}
	ctx = fetch.UseClient(ctx, &authed)
	return context.WithValue(ctx, clientContextKey, newClient(u, userID))
}

// UserID of the client.
func (c *Client) UserID() string { return c.userID }

// getJSON fetches one URL into a generic JSON value. HTTP and network
// failures are wrapped as transient, eligible for the pager's retry.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values) (interface{}, error) {
	var js interface{}
	uri := c.baseURL + path
	if err := fetch.FetchJSON(ctx, uri, &js, query, noRetry); err != nil {
		return nil, errors.Annotate(pager.ErrTransient, "failed to fetch %s", path)
	}
	return js, nil
}

// clientFromContext is the common preamble of every platform call.
func clientFromContext(ctx context.Context) (*Client, error) {
	c := GetClient(ctx)
	if c == nil {
		return nil, errors.Reason("no client in context")
	}
	return c, nil
}

// asObject validates that a response payload is a JSON object.
func asObject(js interface{}) (map[string]interface{}, error) {
	obj, ok := js.(map[string]interface{})
	if !ok {
		return nil, errors.Annotate(ErrMalformed, "response is not an object: %v", js)
	}
	return obj, nil
}

// serverFailed checks the explicit server error flags. On this platform a
// literal `"success": true` signals a server-side error condition, as does
// `"error": true`.
func serverFailed(obj map[string]interface{}) bool {
	if s, ok := obj["success"].(bool); ok && s {
		return true
	}
	if e, ok := obj["error"].(bool); ok && e {
		return true
	}
	return false
}

func listingPath(kind, userID string, page, pageSize int) string {
	return fmt.Sprintf("/%s/%s/%d/%d", kind, userID, page, pageSize)
}
