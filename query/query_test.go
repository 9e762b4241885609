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

package query

import (
	"context"
	"testing"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/testutil"

	"github.com/sensortable/sensortable/iot"
	"github.com/sensortable/sensortable/sensor"

	. "github.com/smartystreets/goconvey/convey"
)

const (
	devicesJSON = `{"data": [{"deviceId": "dev1", "deviceName": "Greenhouse"}]}`
	metaJSON    = `{"data": {
    "sensors": [{"sensorId": "S1", "sensorName": "Temp"},
                {"sensorId": "S2", "sensorName": "Humidity"}],
    "params": [{"sensor": "S1", "slope": 2, "intercept": 1, "max": 100}]}}`
)

func TestQuery(t *testing.T) {
	t.Parallel()

	Convey("Query operations work", t, func() {
		server := testutil.NewTestServer()
		defer server.Close()

		ctx := fetch.UseClient(context.Background(), server.Client())
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Error))
		iot.CloudURL = server.URL() + "/api/v2"
		cfg := Config{UserID: "user1"}
		// Internal fetchers are called below the config layer and expect the
		// client already in the context.
		ictx := cfg.use(ctx)

		Convey("Range pivots the cleaned records", func() {
			server.ResponseBody = []string{
				devicesJSON,
				metaJSON,
				`{"data": [{"time": 100000000000, "sensor": "S1", "value": 10},
                   {"time": 100000000000, "sensor": "S2", "value": 7}],
          "cursor": {"start": 100000060000, "end": 200000000000}}`,
				`{"data": [{"time": 100000060000, "sensor": "S1", "value": 60}],
          "cursor": null}`,
			}
			rows := Range(ctx, cfg, "dev1", nil, 100000000000, 200000000000)
			So(len(rows), ShouldEqual, 2)
			So(rows[0].Timestamp, ShouldEqual, 100000000000)
			So(rows[0].Columns, ShouldResemble, []sensor.ID{"Temp", "Humidity"})
			So(rows[0].Values["Temp"], ShouldResemble, sensor.Number(21))
			So(rows[0].Values["Humidity"], ShouldResemble, sensor.Number(7))
			// 2*60+1 = 121 clamps to the declared max of 100.
			So(rows[1].Values["Temp"], ShouldResemble, sensor.Number(100))
			_, ok := rows[1].Values["Humidity"]
			So(ok, ShouldBeFalse)
		})

		Convey("FirstPoints returns per-point rows without pivot", func() {
			server.ResponseBody = []string{
				devicesJSON,
				metaJSON,
				`{"data": [{"time": 100000000000, "sensor": "S1", "value": 10}],
          "cursor": null}`,
			}
			recs := FirstPoints(ctx, cfg, "dev1", []sensor.ID{"S1"}, 100000000000)
			So(recs, ShouldResemble, []sensor.Record{
				{Time: 100000000000, Sensor: "Temp", Value: sensor.Number(21)}})
		})

		Convey("PointsBefore drains sensors sequentially", func() {
			server.ResponseBody = []string{
				devicesJSON,
				metaJSON,
				`{"data": [{"time": 100000060000, "sensor": "S1", "value": 2}],
          "cursor": null}`,
				`{"data": [{"time": 100000060000, "sensor": "S2", "value": 5}],
          "cursor": null}`,
			}
			recs := PointsBefore(ctx, cfg, "dev1", nil, 200000000000, 1)
			So(recs, ShouldResemble, []sensor.Record{
				{Time: 100000060000, Sensor: "Temp", Value: sensor.Number(5)},
				{Time: 100000060000, Sensor: "Humidity", Value: sensor.Number(5)},
			})
		})

		Convey("validation failures happen before any network call", func() {
			Convey("n < 1", func() {
				_, err := fetchPointsBefore(ictx, "dev1", nil, nil, 0)
				So(errors.Is(err, ErrValidation), ShouldBeTrue)
				So(server.RequestPath, ShouldEqual, "")
			})

			Convey("explicit empty entity filter", func() {
				_, err := fetchEntities(ictx, []string{})
				So(errors.Is(err, ErrValidation), ShouldBeTrue)
				So(server.RequestPath, ShouldEqual, "")
			})
		})

		Convey("end before start is rejected", func() {
			server.ResponseBody = []string{devicesJSON, metaJSON}
			_, err := fetchRange(ictx, "dev1", nil, 200000000000, 100000000000)
			So(errors.Is(err, ErrValidation), ShouldBeTrue)
		})

		Convey("unknown device", func() {
			server.ResponseBody = []string{devicesJSON}
			_, err := fetchRange(ictx, "nosuch", nil, 100000000000, 200000000000)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			Convey("and the query-style wrapper swallows it", func() {
				server.ResponseBody = []string{devicesJSON}
				So(Range(ctx, cfg, "nosuch", nil, 100000000000, 200000000000),
					ShouldBeNil)
			})
		})

		Convey("device with no sensors and no explicit list", func() {
			server.ResponseBody = []string{
				devicesJSON,
				`{"data": {"sensors": [], "params": []}}`,
			}
			_, err := fetchRange(ictx, "dev1", nil, 100000000000, 200000000000)
			So(errors.Is(err, ErrValidation), ShouldBeTrue)
		})

		Convey("Entities filters by name or id", func() {
			listing := `{"data": [
        {"entityId": "e1", "entityName": "Line A"},
        {"entityId": "e2", "entityName": "Line B"},
        {"entityId": "e3", "entityName": "Line C"}], "totalCount": 3}`

			Convey("without a filter", func() {
				server.ResponseBody = []string{listing}
				So(len(Entities(ctx, cfg, nil)), ShouldEqual, 3)
			})

			Convey("with a filter", func() {
				server.ResponseBody = []string{listing}
				got := Entities(ctx, cfg, []string{"e1", "Line C"})
				So(got, ShouldResemble, []iot.Entity{
					{ID: "e1", Name: "Line A"},
					{ID: "e3", Name: "Line C"},
				})
			})
		})

		Convey("Events skip the cleaning pipeline", func() {
			server.ResponseBody = []string{`{"data":
        {"data": [{"eventId": "ev1", "eventType": "alarm"}], "totalCount": 1}}`}
			So(Events(ctx, cfg), ShouldResemble, []iot.Event{
				{ID: "ev1", Kind: "alarm"}})
		})

		Convey("PublishEvent propagates failures", func() {
			server.ResponseBody = []string{`{"success": true}`}
			_, err := PublishEvent(ctx, cfg, "dev1", "alarm", "too hot")
			So(errors.Is(err, iot.ErrMalformed), ShouldBeTrue)
		})
	})
}
