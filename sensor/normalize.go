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

package sensor

import (
	"sort"

	"github.com/sensortable/sensortable/times"
)

// Normalize flattens a raw JSON payload into uniform long-format records.
// Three shapes are accepted: a map of sensor id to a list of points, a map
// of sensor id to a single point, and a flat list of point objects. Points
// missing a sensor id inherit the enclosing map key; missing or falsy values
// become null. No sorting of points is performed; within a list the input
// order is kept. Map keys are visited in sorted order, since JSON object
// order does not survive decoding.
func Normalize(raw interface{}) []Record {
	var recs []Record
	switch data := raw.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch points := data[k].(type) {
			case []interface{}:
				for _, p := range points {
					recs = append(recs, normalizePoint(p, k))
				}
			default:
				recs = append(recs, normalizePoint(points, k))
			}
		}
	case []interface{}:
		for _, p := range data {
			recs = append(recs, normalizePoint(p, ""))
		}
	}
	return recs
}

// normalizePoint converts a single point-like JSON value into a Record.
// A non-object point becomes a bare value under the fallback sensor id.
func normalizePoint(p interface{}, fallback ID) Record {
	obj, ok := p.(map[string]interface{})
	if !ok {
		return Record{Sensor: fallback, Value: normalizeValue(p)}
	}
	rec := Record{Sensor: fallback}
	if s, ok := obj["sensor"].(string); ok && s != "" {
		rec.Sensor = s
	}
	if t, ok := obj["time"]; ok {
		if m, err := times.Normalize(t); err == nil {
			rec.Time = m
		}
	}
	rec.Value = normalizeValue(obj["value"])
	return rec
}

// normalizeValue maps a raw JSON value to the Value union. Absent and falsy
// values become null.
func normalizeValue(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case bool:
		if !x {
			return Null()
		}
		return Number(1)
	case float64:
		if x == 0 {
			return Null()
		}
		return Number(x)
	case string:
		if x == "" {
			return Null()
		}
		return String(x)
	default:
		return Null()
	}
}
