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

// Package clean is the downstream data-cleaning stage: unit calibration,
// alias substitution and long-to-wide pivoting of normalized sensor
// records. Every stage is pure and returns a new record set; device
// metadata is consulted read-only.
package clean

import (
	"golang.org/x/exp/slices"

	"github.com/sensortable/sensortable/sensor"
)

// Calibrate applies the per-sensor linear calibration to each record. A
// record whose value does not parse as a number, or whose sensor has no
// declared parameters, passes through unchanged. This stage never fails.
func Calibrate(recs []sensor.Record, md *sensor.Metadata) []sensor.Record {
	if md == nil {
		return recs
	}
	out := make([]sensor.Record, len(recs))
	for i, r := range recs {
		out[i] = r
		c, ok := md.Param(r.Sensor)
		if !ok {
			continue
		}
		if raw, ok := r.Value.AsNumber(); ok {
			out[i].Value = sensor.Number(c.Apply(raw))
		}
	}
	return out
}

// Alias rewrites the sensor field of long-format records to the
// human-readable name from metadata, where a mapping exists.
func Alias(recs []sensor.Record, md *sensor.Metadata) []sensor.Record {
	if md == nil {
		return recs
	}
	aliases := md.Aliases()
	out := make([]sensor.Record, len(recs))
	for i, r := range recs {
		out[i] = r
		if name, ok := aliases[r.Sensor]; ok {
			out[i].Sensor = name
		}
	}
	return out
}

// AliasWide renames pivoted column keys matching a sensor id to its alias.
// The value moves under the new key; column positions are preserved. The
// timestamp is not a column and is never renamed.
func AliasWide(rows []sensor.Wide, md *sensor.Metadata) []sensor.Wide {
	if md == nil {
		return rows
	}
	aliases := md.Aliases()
	out := make([]sensor.Wide, len(rows))
	for i, row := range rows {
		r := sensor.Wide{Timestamp: row.Timestamp}
		for _, col := range row.Columns {
			name := col
			if alias, ok := aliases[col]; ok {
				name = alias
			}
			r.Set(name, row.Values[col])
		}
		out[i] = r
	}
	return out
}

// Pivot reshapes long-format records into one row per distinct timestamp,
// with one column per sensor reporting at that timestamp. Sensors missing
// at a timestamp leave the column absent from the row, not null. Row and
// column order follow the first occurrence in the input, not timestamp
// magnitude; use SortByTime for chronological rows.
func Pivot(recs []sensor.Record) []sensor.Wide {
	var rows []sensor.Wide
	index := map[int64]int{}
	for _, r := range recs {
		ts := int64(r.Time)
		i, ok := index[ts]
		if !ok {
			i = len(rows)
			index[ts] = i
			rows = append(rows, sensor.Wide{Timestamp: r.Time})
		}
		rows[i].Set(r.Sensor, r.Value)
	}
	return rows
}

// SortByTime orders pivoted rows chronologically in place and returns them.
// The sort is stable, so rows with equal timestamps keep their first-seen
// order.
func SortByTime(rows []sensor.Wide) []sensor.Wide {
	slices.SortStableFunc(rows, func(a, b sensor.Wide) bool {
		return a.Timestamp < b.Timestamp
	})
	return rows
}
