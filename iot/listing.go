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
	"github.com/sensortable/sensortable/pager"
)

// EntityPageSize is the fixed page size of the entity listing endpoint.
const EntityPageSize = 5

// EventPageSize is the fixed page size of the detailed event listing
// endpoint.
const EventPageSize = 1000

// Entity is one row of the paginated entity listing.
type Entity struct {
	ID     string `json:"entityId" required:"true"`
	Name   string `json:"entityName"`
	Device string `json:"deviceId"`
}

var _ message.Message = &Entity{}

// InitMessage implements message.Message.
func (e *Entity) InitMessage(js interface{}) error {
	return message.Init(e, js)
}

// Event is one row of the paginated detailed event listing. Events are not
// sensor records and bypass the cleaning pipeline.
type Event struct {
	ID      string `json:"eventId"`
	Device  string `json:"deviceId"`
	Kind    string `json:"eventType"`
	Message string `json:"message"`
	Time    int64  `json:"time"`
}

var _ message.Message = &Event{}

// InitMessage implements message.Message.
func (e *Event) InitMessage(js interface{}) error {
	return message.Init(e, js)
}

// listingPage pulls the data list and total count out of the two offset
// response families: `{data, totalCount, error?}` and
// `{data: {data, totalCount}, success?}`.
func listingPage(js interface{}) ([]interface{}, int, error) {
	obj, err := asObject(js)
	if err != nil {
		return nil, 0, err
	}
	if serverFailed(obj) {
		return nil, 0, errors.Annotate(ErrMalformed, "listing page carries the error flag")
	}
	if nested, ok := obj["data"].(map[string]interface{}); ok {
		obj = nested
	}
	list, ok := obj["data"].([]interface{})
	if !ok {
		return nil, 0, errors.Annotate(ErrMalformed, "listing page has no data field")
	}
	total, ok := obj["totalCount"].(float64)
	if !ok {
		return nil, 0, errors.Annotate(ErrMalformed, "listing page has no totalCount")
	}
	return list, int(total), nil
}

// EntitiesStep builds the step of the offset-walking entity listing,
// paged as /{userId}/{pageNumber}/{pageSize}.
func EntitiesStep() pager.Step[Entity] {
	return func(ctx context.Context, c pager.Cursor) (*pager.Page[Entity], error) {
		client, err := clientFromContext(ctx)
		if err != nil {
			return nil, err
		}
		o, ok := c.(pager.Offset)
		if !ok {
			return nil, errors.Reason("entity listing needs an Offset cursor, got %T", c)
		}
		js, err := client.getJSON(ctx,
			listingPath("entities", client.userID, o.Page, o.PageSize), nil)
		if err != nil {
			return nil, err
		}
		list, total, err := listingPage(js)
		if err != nil {
			return nil, err
		}
		entities := make([]Entity, len(list))
		for i, e := range list {
			if err := entities[i].InitMessage(e); err != nil {
				return nil, errors.Annotate(err, "bad entity entry %d", i)
			}
		}
		return &pager.Page[Entity]{Records: entities, Next: o.Next(), Total: total}, nil
	}
}

// EventsStep builds the step of the offset-walking detailed event listing.
func EventsStep() pager.Step[Event] {
	return func(ctx context.Context, c pager.Cursor) (*pager.Page[Event], error) {
		client, err := clientFromContext(ctx)
		if err != nil {
			return nil, err
		}
		o, ok := c.(pager.Offset)
		if !ok {
			return nil, errors.Reason("event listing needs an Offset cursor, got %T", c)
		}
		js, err := client.getJSON(ctx,
			listingPath("events", client.userID, o.Page, o.PageSize), nil)
		if err != nil {
			return nil, err
		}
		list, total, err := listingPage(js)
		if err != nil {
			return nil, err
		}
		events := make([]Event, len(list))
		for i, e := range list {
			if err := events[i].InitMessage(e); err != nil {
				return nil, errors.Annotate(err, "bad event entry %d", i)
			}
		}
		return &pager.Page[Event]{Records: events, Next: o.Next(), Total: total}, nil
	}
}
