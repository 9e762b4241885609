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

	"github.com/stockparfait/errors"

	"github.com/sensortable/sensortable/message"
	"github.com/sensortable/sensortable/sensor"
)

// UserInfo is the account description returned by the user endpoint.
type UserInfo struct {
	ID     string `json:"userId" required:"true"`
	Name   string `json:"userName"`
	OnPrem bool   `json:"onPrem"`
}

var _ message.Message = &UserInfo{}

// InitMessage implements message.Message.
func (u *UserInfo) InitMessage(js interface{}) error {
	return message.Init(u, js)
}

// Device is one entry of the account's device list.
type Device struct {
	ID   string `json:"deviceId" required:"true"`
	Name string `json:"deviceName"`
}

var _ message.Message = &Device{}

// InitMessage implements message.Message.
func (d *Device) InitMessage(js interface{}) error {
	return message.Init(d, js)
}

// FetchUserInfo obtains the account description of the client's user.
func FetchUserInfo(ctx context.Context) (*UserInfo, error) {
	c, err := clientFromContext(ctx)
	if err != nil {
		return nil, err
	}
	js, err := c.getJSON(ctx, "/users/"+c.userID, nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch user info")
	}
	obj, err := asObject(js)
	if err != nil {
		return nil, err
	}
	if serverFailed(obj) {
		return nil, errors.Annotate(ErrMalformed, "user info carries the error flag")
	}
	var u UserInfo
	if err := u.InitMessage(obj["data"]); err != nil {
		return nil, errors.Annotate(err, "bad user info payload")
	}
	return &u, nil
}

// FetchDevices obtains the account's device list.
func FetchDevices(ctx context.Context) ([]Device, error) {
	c, err := clientFromContext(ctx)
	if err != nil {
		return nil, err
	}
	js, err := c.getJSON(ctx, "/devices/"+c.userID, nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch device list")
	}
	obj, err := asObject(js)
	if err != nil {
		return nil, err
	}
	if serverFailed(obj) {
		return nil, errors.Annotate(ErrMalformed, "device list carries the error flag")
	}
	list, ok := obj["data"].([]interface{})
	if !ok {
		return nil, errors.Annotate(ErrMalformed, "device list has no data field")
	}
	devices := make([]Device, len(list))
	for i, e := range list {
		if err := devices[i].InitMessage(e); err != nil {
			return nil, errors.Annotate(err, "bad device entry %d", i)
		}
	}
	return devices, nil
}

// FetchDeviceMetadata obtains the device's sensor list and calibration
// parameter table.
func FetchDeviceMetadata(ctx context.Context, device string) (*sensor.Metadata, error) {
	c, err := clientFromContext(ctx)
	if err != nil {
		return nil, err
	}
	js, err := c.getJSON(ctx, "/devices/"+c.userID+"/"+device+"/metadata", nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch metadata for %s", device)
	}
	obj, err := asObject(js)
	if err != nil {
		return nil, err
	}
	if serverFailed(obj) {
		return nil, errors.Annotate(ErrMalformed,
			"metadata for %s carries the error flag", device)
	}
	md, err := sensor.ParseMetadata(obj["data"])
	if err != nil {
		return nil, errors.Annotate(err, "bad metadata payload for %s", device)
	}
	return md, nil
}
