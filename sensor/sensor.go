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

// Package sensor defines the typed entities of the pipeline: long-format
// point records, wide pivoted rows, and per-device metadata with calibration
// parameters. Raw platform payloads are converted to these types at the API
// boundary and never travel further untyped.
package sensor

import (
	"fmt"
	"strconv"

	"github.com/sensortable/sensortable/times"
)

// ID is a platform sensor identifier.
type ID = string

// Value is a union of a number, a string, or null. Sensor streams mix
// numeric readings with string statuses, and absent readings are null.
type Value struct {
	present  bool
	isNumber bool
	number   float64
	str      string
}

// Null is the absent value.
func Null() Value { return Value{} }

// Number creates a numeric value.
func Number(f float64) Value { return Value{present: true, isNumber: true, number: f} }

// String creates a string value.
func String(s string) Value { return Value{present: true, str: s} }

// IsNull checks for the absent value.
func (v Value) IsNull() bool { return !v.present }

// AsNumber extracts the numeric reading. A string value that parses as a
// number is accepted, matching the loosely-typed platform payloads.
func (v Value) AsNumber() (float64, bool) {
	if !v.present {
		return 0, false
	}
	if v.isNumber {
		return v.number, true
	}
	f, err := strconv.ParseFloat(v.str, 64)
	return f, err == nil
}

// Text is the printable form of the value; null is the empty string.
func (v Value) Text() string {
	if !v.present {
		return ""
	}
	if v.isNumber {
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	}
	return v.str
}

func (v Value) String() string {
	if !v.present {
		return "null"
	}
	return v.Text()
}

// Record is one long-format point: a reading of one sensor at one time.
type Record struct {
	Time   times.Millis // zero when the source point had no time
	Sensor ID
	Value  Value
}

func (r Record) String() string {
	return fmt.Sprintf("{%d %s %s}", r.Time, r.Sensor, r.Value)
}

// Wide is one pivoted row: all sensors reporting at one timestamp. Columns
// keeps the first-seen column order; sensors not reporting at this timestamp
// are absent from Values rather than null.
type Wide struct {
	Timestamp times.Millis
	Columns   []ID
	Values    map[ID]Value
}

// Set adds or overwrites a column value, registering the column on first
// use.
func (w *Wide) Set(col ID, v Value) {
	if w.Values == nil {
		w.Values = make(map[ID]Value)
	}
	if _, ok := w.Values[col]; !ok {
		w.Columns = append(w.Columns, col)
	}
	w.Values[col] = v
}

// Rename moves the value under col to the name to, preserving the column
// position. It is a no-op when col is absent; an existing to column is
// overwritten, not duplicated.
func (w *Wide) Rename(col, to ID) {
	v, ok := w.Values[col]
	if !ok || col == to {
		return
	}
	delete(w.Values, col)
	_, exists := w.Values[to]
	w.Values[to] = v
	cols := w.Columns[:0]
	for _, c := range w.Columns {
		if c == col {
			if exists { // keep the existing to column's position
				continue
			}
			c = to
		}
		cols = append(cols, c)
	}
	w.Columns = cols
}
