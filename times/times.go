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

// Package times canonicalizes the heterogeneous time inputs accepted by the
// platform API into epoch-milliseconds.
package times

import (
	"time"

	"github.com/stockparfait/errors"
)

// ErrInvalid is the cause of all time input validation failures.
var ErrInvalid = errors.Reason("invalid time input")

// Millis is a Unix epoch timestamp in milliseconds.
type Millis int64

// Seconds truncates the timestamp to whole epoch seconds, as required by
// several endpoint query parameters.
func (m Millis) Seconds() int64 { return int64(m) / 1000 }

// ToTime converts the timestamp to time.Time in UTC.
func (m Millis) ToTime() time.Time {
	return time.UnixMilli(int64(m)).UTC()
}

// FromTime converts a time.Time value to Millis.
func FromTime(t time.Time) Millis { return Millis(t.UnixMilli()) }

// now is overridable in tests.
var now = time.Now

// Now is the current time as Millis.
func Now() Millis { return FromTime(now()) }

// minMillis is the smallest numeric input accepted as milliseconds. Anything
// below it has at most 10 decimal digits and therefore looks like seconds.
const minMillis = 1e10

// Formats accepted for string timestamps.
var formats = []string{
	"2006-01-02 15:04:05.999",
	"2006-01-02T15:04:05.999",
	"2006-01-02T15:04:05.999Z",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parse(s string) (time.Time, error) {
	var err error
	for _, f := range formats {
		var tm time.Time
		if tm, err = time.Parse(f, s); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, errors.Annotate(ErrInvalid, "unparsable time string: '%s'", s)
}

// Normalize converts any accepted time representation to epoch-milliseconds:
//
//   - nil: the current time;
//   - int, int64, float64: used as is, but only when the value is beyond 10
//     decimal digits; second-precision values are rejected;
//   - string: a calendar / ISO date, interpreted in UTC;
//   - time.Time or Millis: its epoch value.
//
// All representations of the same logical instant yield the same Millis.
func Normalize(v interface{}) (Millis, error) {
	switch t := v.(type) {
	case nil:
		return Now(), nil
	case Millis:
		return t, nil
	case time.Time:
		return FromTime(t), nil
	case int:
		return checkMillis(float64(t))
	case int64:
		return checkMillis(float64(t))
	case float64:
		return checkMillis(t)
	case string:
		tm, err := parse(t)
		if err != nil {
			return 0, err
		}
		return FromTime(tm), nil
	default:
		return 0, errors.Annotate(ErrInvalid, "unsupported time type: %T", v)
	}
}

func checkMillis(v float64) (Millis, error) {
	if v < minMillis {
		return 0, errors.Annotate(ErrInvalid,
			"numeric time %.0f must be milliseconds, not seconds", v)
	}
	return Millis(v), nil
}
