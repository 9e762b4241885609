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

// Package query composes the platform client, the pager and the cleaning
// pipeline into the end-user query operations. Query-style operations catch
// every failure at their boundary, log it, and return an empty result; the
// mutation-style PublishEvent propagates failures instead.
package query

import (
	"context"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/sensortable/sensortable/clean"
	"github.com/sensortable/sensortable/iot"
	"github.com/sensortable/sensortable/message"
	"github.com/sensortable/sensortable/pager"
	"github.com/sensortable/sensortable/sensor"
	"github.com/sensortable/sensortable/times"
)

// ErrValidation marks bad caller input, detected before any network call.
var ErrValidation = errors.Reason("invalid query input")

// ErrNotFound marks a device id absent from the account's device list.
var ErrNotFound = errors.Reason("device not found")

// RangeLimit is the per-page record limit requested from the bulk ranged
// endpoint.
const RangeLimit = 500

// Config is the immutable per-call configuration of all query operations.
type Config struct {
	UserID string
	OnPrem bool
	TZ     string // display timezone, consulted by presentation layers only
}

// use injects the platform client for this configuration into the context.
func (c Config) use(ctx context.Context) context.Context {
	return iot.UseClient(ctx, c.UserID, c.OnPrem)
}

// resolve checks that the device exists in the account's device list and
// resolves the sensor set: the caller-supplied list when non-empty,
// otherwise all sensors from the device metadata. Metadata is fetched once
// and shared read-only by the downstream cleaning stages.
func resolve(ctx context.Context, device string, sensors []sensor.ID) (*sensor.Metadata, []sensor.ID, error) {
	devices, err := iot.FetchDevices(ctx)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to list devices")
	}
	found := false
	for _, d := range devices {
		if d.ID == device {
			found = true
			break
		}
	}
	if !found {
		return nil, nil, errors.Annotate(ErrNotFound, "device '%s'", device)
	}
	md, err := iot.FetchDeviceMetadata(ctx, device)
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to fetch metadata for %s", device)
	}
	if len(sensors) == 0 {
		sensors = md.IDs()
		if len(sensors) == 0 {
			return nil, nil, errors.Annotate(ErrValidation,
				"device '%s' reports no sensors", device)
		}
	}
	return md, sensors, nil
}

// bounds normalizes the start and end time inputs and validates their
// order.
func bounds(start, end interface{}) (times.Millis, times.Millis, error) {
	s, err := times.Normalize(start)
	if err != nil {
		return 0, 0, errors.Annotate(err, "bad start time")
	}
	e, err := times.Normalize(end)
	if err != nil {
		return 0, 0, errors.Annotate(err, "bad end time")
	}
	if e < s {
		return 0, 0, errors.Annotate(ErrValidation,
			"end time %d is before start time %d", e, s)
	}
	return s, e, nil
}

func fetchFirstPoints(ctx context.Context, device string, sensors []sensor.ID, from interface{}) ([]sensor.Record, error) {
	md, ids, err := resolve(ctx, device, sensors)
	if err != nil {
		return nil, err
	}
	start, err := times.Normalize(from)
	if err != nil {
		return nil, errors.Annotate(err, "bad start time")
	}
	recs, err := pager.Collect(ctx, pager.Range{Start: int64(start), Valid: true},
		iot.FirstPointStep(device, ids, start), iot.SeriesPolicy)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch first points for %s", device)
	}
	return clean.Alias(clean.Calibrate(recs, md), md), nil
}

// FirstPoints returns the earliest point of each sensor at or after the
// start time, calibrated and aliased, without pivoting.
func FirstPoints(ctx context.Context, cfg Config, device string, sensors []sensor.ID, from interface{}) []sensor.Record {
	ctx = cfg.use(ctx)
	recs, err := fetchFirstPoints(ctx, device, sensors, from)
	if err != nil {
		logging.Warningf(ctx, "first points query for %s failed: %s",
			device, err.Error())
		return nil
	}
	return recs
}

func fetchPointsBefore(ctx context.Context, device string, sensors []sensor.ID, end interface{}, n int) ([]sensor.Record, error) {
	if n < 1 {
		return nil, errors.Annotate(ErrValidation, "point count %d must be >= 1", n)
	}
	md, ids, err := resolve(ctx, device, sensors)
	if err != nil {
		return nil, err
	}
	till, err := times.Normalize(end)
	if err != nil {
		return nil, errors.Annotate(err, "bad end time")
	}
	// One cursor walk per sensor, strictly sequential: a sensor is fully
	// drained before the next one starts.
	var recs []sensor.Record
	for _, id := range ids {
		part, err := pager.Collect(ctx, pager.Range{End: int64(till), Valid: true},
			iot.PointsBeforeStep(device, id, till, n), iot.SeriesPolicy)
		if err != nil {
			return nil, errors.Annotate(err, "failed to fetch last points of %s/%s",
				device, id)
		}
		recs = append(recs, part...)
	}
	return clean.Alias(clean.Calibrate(recs, md), md), nil
}

// PointsBefore returns up to n points per sensor walking backward from the
// end time, calibrated and aliased, without pivoting.
func PointsBefore(ctx context.Context, cfg Config, device string, sensors []sensor.ID, end interface{}, n int) []sensor.Record {
	ctx = cfg.use(ctx)
	recs, err := fetchPointsBefore(ctx, device, sensors, end, n)
	if err != nil {
		logging.Warningf(ctx, "last points query for %s failed: %s",
			device, err.Error())
		return nil
	}
	return recs
}

func fetchRange(ctx context.Context, device string, sensors []sensor.ID, start, end interface{}) ([]sensor.Wide, error) {
	md, ids, err := resolve(ctx, device, sensors)
	if err != nil {
		return nil, err
	}
	s, e, err := bounds(start, end)
	if err != nil {
		return nil, err
	}
	recs, err := pager.Collect(ctx, pager.Range{Start: int64(s), End: int64(e), Valid: true},
		iot.RangeStep(device, ids, RangeLimit), iot.SeriesPolicy)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch range for %s", device)
	}
	return clean.Pivot(clean.Alias(clean.Calibrate(recs, md), md)), nil
}

// Range returns the full cleaning pipeline's output for a bounded time
// range: normalized, calibrated, aliased and pivoted into one row per
// timestamp. Rows keep their first-seen order; callers wanting
// chronological rows apply clean.SortByTime.
func Range(ctx context.Context, cfg Config, device string, sensors []sensor.ID, start, end interface{}) []sensor.Wide {
	ctx = cfg.use(ctx)
	rows, err := fetchRange(ctx, device, sensors, start, end)
	if err != nil {
		logging.Warningf(ctx, "range query for %s failed: %s", device, err.Error())
		return nil
	}
	return rows
}

// fetchEntities lists entities with an optional name-or-id post-filter. A
// non-nil empty filter is rejected before any network call.
func fetchEntities(ctx context.Context, filter []string) ([]iot.Entity, error) {
	if filter != nil && len(filter) == 0 {
		return nil, errors.Annotate(ErrValidation, "explicit entity filter is empty")
	}
	entities, err := pager.Collect(ctx,
		pager.Offset{Page: 1, PageSize: iot.EntityPageSize},
		iot.EntitiesStep(), iot.ListingPolicy)
	if err != nil {
		return nil, errors.Annotate(err, "failed to list entities")
	}
	if filter == nil {
		return entities, nil
	}
	var out []iot.Entity
	for _, e := range entities {
		if message.StringIn(e.ID, filter...) || message.StringIn(e.Name, filter...) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Entities lists the account's entities; a non-nil filter keeps only
// entities whose id or name is in it.
func Entities(ctx context.Context, cfg Config, filter []string) []iot.Entity {
	ctx = cfg.use(ctx)
	entities, err := fetchEntities(ctx, filter)
	if err != nil {
		logging.Warningf(ctx, "entity listing failed: %s", err.Error())
		return nil
	}
	return entities
}

func fetchEvents(ctx context.Context) ([]iot.Event, error) {
	events, err := pager.Collect(ctx,
		pager.Offset{Page: 1, PageSize: iot.EventPageSize},
		iot.EventsStep(), iot.ListingPolicy)
	if err != nil {
		return nil, errors.Annotate(err, "failed to list events")
	}
	return events, nil
}

// Events lists the account's detailed events. Events are not sensor
// records and skip the cleaning pipeline.
func Events(ctx context.Context, cfg Config) []iot.Event {
	ctx = cfg.use(ctx)
	events, err := fetchEvents(ctx)
	if err != nil {
		logging.Warningf(ctx, "event listing failed: %s", err.Error())
		return nil
	}
	return events
}

// PublishEvent publishes a device event and returns its id. Failures
// propagate: a silently dropped event would be mistaken for a delivered
// one.
func PublishEvent(ctx context.Context, cfg Config, device, kind, msg string) (string, error) {
	ctx = cfg.use(ctx)
	return iot.PublishEvent(ctx, device, kind, msg)
}
