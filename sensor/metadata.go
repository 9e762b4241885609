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
	"github.com/stockparfait/errors"

	"github.com/sensortable/sensortable/message"
)

// Calibration is the per-sensor linear transform with optional clamping.
// The zero parameter list yields the identity transform.
type Calibration struct {
	Sensor    ID       `json:"sensor"`
	Slope     float64  `json:"slope" default:"1"`
	Intercept float64  `json:"intercept"`
	Min       *float64 `json:"min"`
	Max       *float64 `json:"max"`
}

var _ message.Message = &Calibration{}

// InitMessage implements message.Message.
func (c *Calibration) InitMessage(js interface{}) error {
	return message.Init(c, js)
}

// Apply transforms a raw reading into the calibrated physical unit.
func (c Calibration) Apply(raw float64) float64 {
	v := c.Slope*raw + c.Intercept
	if c.Min != nil && v < *c.Min {
		v = *c.Min
	}
	if c.Max != nil && v > *c.Max {
		v = *c.Max
	}
	return v
}

// Info is one sensor's identity in device metadata.
type Info struct {
	ID   ID     `json:"sensorId" required:"true"`
	Name string `json:"sensorName"`
}

var _ message.Message = &Info{}

// InitMessage implements message.Message.
func (i *Info) InitMessage(js interface{}) error {
	return message.Init(i, js)
}

// Metadata is the per-device description: the sensor list and the
// calibration parameter table. It is fetched once per query and treated as
// read-only by all pipeline stages.
type Metadata struct {
	Sensors []Info
	Params  map[ID]Calibration
}

// ParseMetadata converts the raw device metadata payload into Metadata. The
// payload carries a sensor list and a parameter list keyed by sensor id.
func ParseMetadata(js interface{}) (*Metadata, error) {
	obj, ok := js.(map[string]interface{})
	if !ok {
		return nil, errors.Reason("device metadata is not an object: %v", js)
	}
	md := Metadata{Params: make(map[ID]Calibration)}
	if sensors, ok := obj["sensors"].([]interface{}); ok {
		for i, s := range sensors {
			var info Info
			if err := info.InitMessage(s); err != nil {
				return nil, errors.Annotate(err, "bad sensor entry %d", i)
			}
			md.Sensors = append(md.Sensors, info)
		}
	}
	if params, ok := obj["params"].([]interface{}); ok {
		for i, p := range params {
			var c Calibration
			if err := c.InitMessage(p); err != nil {
				return nil, errors.Annotate(err, "bad parameter entry %d", i)
			}
			if c.Sensor != "" {
				md.Params[c.Sensor] = c
			}
		}
	}
	return &md, nil
}

// Param looks up the calibration for a sensor; absent parameters fall back
// to the identity transform.
func (m *Metadata) Param(id ID) (Calibration, bool) {
	c, ok := m.Params[id]
	if !ok {
		return Calibration{Sensor: id, Slope: 1}, false
	}
	return c, true
}

// Aliases builds the sensor id to human-readable name map.
func (m *Metadata) Aliases() map[ID]string {
	aliases := make(map[ID]string, len(m.Sensors))
	for _, s := range m.Sensors {
		if s.Name != "" {
			aliases[s.ID] = s.Name
		}
	}
	return aliases
}

// IDs lists all sensor ids in metadata order.
func (m *Metadata) IDs() []ID {
	ids := make([]ID, len(m.Sensors))
	for i, s := range m.Sensors {
		ids[i] = s.ID
	}
	return ids
}
