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
	"testing"

	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func TestValue(t *testing.T) {
	t.Parallel()

	Convey("Value union works", t, func() {
		So(Null().IsNull(), ShouldBeTrue)
		So(Number(5).IsNull(), ShouldBeFalse)

		n, ok := Number(5).AsNumber()
		So(ok, ShouldBeTrue)
		So(n, ShouldEqual, 5.0)

		n, ok = String("2.5").AsNumber()
		So(ok, ShouldBeTrue)
		So(n, ShouldEqual, 2.5)

		_, ok = String("offline").AsNumber()
		So(ok, ShouldBeFalse)
		_, ok = Null().AsNumber()
		So(ok, ShouldBeFalse)

		So(Number(21).Text(), ShouldEqual, "21")
		So(String("ok").Text(), ShouldEqual, "ok")
		So(Null().Text(), ShouldEqual, "")
	})
}

func TestWide(t *testing.T) {
	t.Parallel()

	Convey("Wide rows track column order", t, func() {
		var w Wide
		w.Set("B", Number(7))
		w.Set("A", Number(5))
		w.Set("B", Number(8)) // overwrite, no new column
		So(w.Columns, ShouldResemble, []ID{"B", "A"})
		So(w.Values["B"], ShouldResemble, Number(8))

		Convey("Rename moves the value in place", func() {
			w.Rename("B", "Temp")
			So(w.Columns, ShouldResemble, []ID{"Temp", "A"})
			So(w.Values["Temp"], ShouldResemble, Number(8))
			_, ok := w.Values["B"]
			So(ok, ShouldBeFalse)
		})

		Convey("Rename onto an existing column overwrites it", func() {
			w.Rename("B", "A")
			So(w.Columns, ShouldResemble, []ID{"A"})
			So(w.Values, ShouldResemble, map[ID]Value{"A": Number(8)})
		})

		Convey("Rename of an absent column is a no-op", func() {
			w.Rename("Z", "Zed")
			So(w.Columns, ShouldResemble, []ID{"B", "A"})
		})
	})
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	Convey("Normalize works", t, func() {
		Convey("map of sensor to point list", func() {
			raw := testutil.JSON(`{
        "A": [{"time": 100000000000, "value": 5},
              {"time": 100000060000, "value": 6}],
        "B": [{"time": 100000000000, "sensor": "B", "value": "high"}]
      }`)
			recs := Normalize(raw)
			So(recs, ShouldResemble, []Record{
				{Time: 100000000000, Sensor: "A", Value: Number(5)},
				{Time: 100000060000, Sensor: "A", Value: Number(6)},
				{Time: 100000000000, Sensor: "B", Value: String("high")},
			})
		})

		Convey("map of sensor to single point", func() {
			raw := testutil.JSON(`{"A": {"time": 100000000000, "value": 5}}`)
			So(Normalize(raw), ShouldResemble, []Record{
				{Time: 100000000000, Sensor: "A", Value: Number(5)},
			})
		})

		Convey("flat list of points", func() {
			raw := testutil.JSON(`[
        {"time": 100000000000, "sensor": "A", "value": 5},
        {"sensor": "B"},
        {"time": 100000060000, "value": 7}
      ]`)
			So(Normalize(raw), ShouldResemble, []Record{
				{Time: 100000000000, Sensor: "A", Value: Number(5)},
				{Sensor: "B", Value: Null()},
				{Time: 100000060000, Sensor: "", Value: Number(7)},
			})
		})

		Convey("falsy values become null", func() {
			raw := testutil.JSON(`[
        {"sensor": "A", "value": 0},
        {"sensor": "B", "value": ""},
        {"sensor": "C", "value": false},
        {"sensor": "D", "value": null}
      ]`)
			for _, r := range Normalize(raw) {
				So(r.Value.IsNull(), ShouldBeTrue)
			}
		})

		Convey("unrecognized shapes yield no records", func() {
			So(len(Normalize(testutil.JSON(`"oops"`))), ShouldEqual, 0)
			So(len(Normalize(nil)), ShouldEqual, 0)
		})
	})
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	Convey("ParseMetadata works", t, func() {
		md, err := ParseMetadata(testutil.JSON(`{
      "sensors": [{"sensorId": "S1", "sensorName": "Temp"},
                  {"sensorId": "S2", "sensorName": ""}],
      "params": [{"sensor": "S1", "slope": 2, "intercept": 1,
                  "min": 0, "max": 100}]
    }`))
		So(err, ShouldBeNil)
		So(md.IDs(), ShouldResemble, []ID{"S1", "S2"})
		So(md.Aliases(), ShouldResemble, map[ID]string{"S1": "Temp"})

		Convey("declared parameters", func() {
			c, ok := md.Param("S1")
			So(ok, ShouldBeTrue)
			So(c.Apply(10), ShouldEqual, 21.0)
			So(c.Apply(60), ShouldEqual, 100.0) // clamped to max
			So(c.Apply(-10), ShouldEqual, 0.0)  // clamped to min
		})

		Convey("absent parameters default to identity", func() {
			c, ok := md.Param("S2")
			So(ok, ShouldBeFalse)
			So(c.Apply(42), ShouldEqual, 42.0)
		})
	})

	Convey("ParseMetadata rejects malformed payloads", t, func() {
		_, err := ParseMetadata(testutil.JSON(`[1]`))
		So(err, ShouldNotBeNil)
		_, err = ParseMetadata(testutil.JSON(`{"sensors": [{"sensorName": "x"}]}`))
		So(err, ShouldNotBeNil)
	})
}
