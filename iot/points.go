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

package iot

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/stockparfait/errors"

	"github.com/sensortable/sensortable/pager"
	"github.com/sensortable/sensortable/sensor"
	"github.com/sensortable/sensortable/times"
)

// parseSeriesPage validates one page of the range-walking time-series
// response: `{data, cursor: {start, end} | null, success}`. The data field
// is flattened into long-format records; a missing data field or the
// server error flag are fatal.
func parseSeriesPage(js interface{}) (*pager.Page[sensor.Record], error) {
	obj, err := asObject(js)
	if err != nil {
		return nil, err
	}
	if serverFailed(obj) {
		return nil, errors.Annotate(ErrMalformed, "series page carries the error flag")
	}
	data, ok := obj["data"]
	if !ok {
		return nil, errors.Annotate(ErrMalformed, "series page has no data field")
	}
	page := pager.Page[sensor.Record]{
		Records: sensor.Normalize(data),
		Total:   -1,
	}
	if cur, ok := obj["cursor"].(map[string]interface{}); ok {
		next := pager.Range{Valid: true}
		if s, ok := cur["start"].(float64); ok {
			next.Start = int64(s)
		}
		if e, ok := cur["end"].(float64); ok {
			next.End = int64(e)
		}
		page.Next = next
	}
	return &page, nil
}

// FirstPointStep builds the step of the forward point lookup: the earliest
// point per sensor at or after the given time. The endpoint is single-shot
// and never returns a cursor.
func FirstPointStep(device string, sensors []sensor.ID, from times.Millis) pager.Step[sensor.Record] {
	return func(ctx context.Context, c pager.Cursor) (*pager.Page[sensor.Record], error) {
		client, err := clientFromContext(ctx)
		if err != nil {
			return nil, err
		}
		query := make(url.Values)
		query["device"] = []string{device}
		query["sensor"] = []string{strings.Join(sensors, ",")}
		query["time"] = []string{fmt.Sprintf("%d", from.Seconds())}
		js, err := client.getJSON(ctx, "/points/first", query)
		if err != nil {
			return nil, err
		}
		page, err := parseSeriesPage(js)
		if err != nil {
			return nil, err
		}
		page.Next = nil // single-shot: ignore any cursor
		return page, nil
	}
}

// PointsBeforeStep builds the step of the backward point lookup for a
// single sensor: walk windows back from the end time until n points are
// collected or the server closes the cursor. The step is stateful across
// pages of one fetch; each fetch needs a fresh step.
func PointsBeforeStep(device string, id sensor.ID, end times.Millis, n int) pager.Step[sensor.Record] {
	remaining := n
	return func(ctx context.Context, c pager.Cursor) (*pager.Page[sensor.Record], error) {
		client, err := clientFromContext(ctx)
		if err != nil {
			return nil, err
		}
		eTime := end
		if r, ok := c.(pager.Range); ok && r.Valid && r.End != 0 {
			eTime = times.Millis(r.End)
		}
		query := make(url.Values)
		query["device"] = []string{device}
		query["sensor"] = []string{id}
		query["eTime"] = []string{fmt.Sprintf("%d", eTime.Seconds())}
		query["lim"] = []string{fmt.Sprintf("%d", remaining)}
		query["cursor"] = []string{"true"}
		js, err := client.getJSON(ctx, "/points/last", query)
		if err != nil {
			return nil, err
		}
		page, err := parseSeriesPage(js)
		if err != nil {
			return nil, err
		}
		if len(page.Records) > remaining {
			page.Records = page.Records[:remaining]
		}
		remaining -= len(page.Records)
		if remaining <= 0 {
			page.Next = nil
		}
		return page, nil
	}
}

// RangeStep builds the step of the bulk ranged lookup across the full
// sensor set. The cursor advances the start of the window forward using the
// server-returned next window until the server returns no cursor.
func RangeStep(device string, sensors []sensor.ID, limit int) pager.Step[sensor.Record] {
	return func(ctx context.Context, c pager.Cursor) (*pager.Page[sensor.Record], error) {
		client, err := clientFromContext(ctx)
		if err != nil {
			return nil, err
		}
		r, ok := c.(pager.Range)
		if !ok {
			return nil, errors.Reason("bulk ranged lookup needs a Range cursor, got %T", c)
		}
		query := make(url.Values)
		query["device"] = []string{device}
		query["sensor"] = []string{strings.Join(sensors, ",")}
		query["sTime"] = []string{fmt.Sprintf("%d", r.Start)}
		query["eTime"] = []string{fmt.Sprintf("%d", r.End)}
		query["cursor"] = []string{"true"}
		query["limit"] = []string{fmt.Sprintf("%d", limit)}
		js, err := client.getJSON(ctx, "/points/range", query)
		if err != nil {
			return nil, err
		}
		return parseSeriesPage(js)
	}
}
