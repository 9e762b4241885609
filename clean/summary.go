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

package clean

import (
	"math"

	"github.com/stockparfait/iterator"
	"gonum.org/v1/gonum/stat"

	"github.com/sensortable/sensortable/sensor"
)

// Summary holds the descriptive statistics of one sensor's numeric
// readings within a query result. Null and non-numeric values are not
// counted.
type Summary struct {
	Sensor sensor.ID
	Count  int
	Mean   float64
	Std    float64 // sample standard deviation; NaN for a single sample
	Min    float64
	Max    float64
}

// Summarize computes per-sensor summaries over the records, in the order
// the sensors first appear. Sensors with no numeric readings are omitted.
func Summarize(recs []sensor.Record) []Summary {
	type group struct {
		order  []sensor.ID
		values map[sensor.ID][]float64
	}
	g := iterator.Reduce[sensor.Record, *group](iterator.FromSlice(recs),
		&group{values: map[sensor.ID][]float64{}},
		func(r sensor.Record, g *group) *group {
			v, ok := r.Value.AsNumber()
			if !ok {
				return g
			}
			if _, ok := g.values[r.Sensor]; !ok {
				g.order = append(g.order, r.Sensor)
			}
			g.values[r.Sensor] = append(g.values[r.Sensor], v)
			return g
		})
	out := make([]Summary, len(g.order))
	for i, id := range g.order {
		vs := g.values[id]
		s := Summary{
			Sensor: id,
			Count:  len(vs),
			Mean:   stat.Mean(vs, nil),
			Std:    math.Sqrt(stat.Variance(vs, nil)),
			Min:    vs[0],
			Max:    vs[0],
		}
		for _, v := range vs[1:] {
			if v < s.Min {
				s.Min = v
			}
			if v > s.Max {
				s.Max = v
			}
		}
		out[i] = s
	}
	return out
}
