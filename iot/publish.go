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
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/stockparfait/errors"

	"github.com/sensortable/sensortable/times"
)

// PublishEvent publishes a device event and returns its id. Unlike the
// query calls, publishing is a mutation: every failure propagates to the
// caller so that a lost event is never mistaken for a delivered one.
func PublishEvent(ctx context.Context, device, kind, msg string) (string, error) {
	c, err := clientFromContext(ctx)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	query := make(url.Values)
	query["device"] = []string{device}
	query["eventId"] = []string{id}
	query["eventType"] = []string{kind}
	query["message"] = []string{msg}
	query["time"] = []string{fmt.Sprintf("%d", times.Now())}
	js, err := c.getJSON(ctx, "/events/"+c.userID+"/publish", query)
	if err != nil {
		return "", errors.Annotate(err, "failed to publish event for %s", device)
	}
	obj, err := asObject(js)
	if err != nil {
		return "", err
	}
	if serverFailed(obj) {
		return "", errors.Annotate(ErrMalformed,
			"event publish for %s carries the error flag", device)
	}
	return id, nil
}
