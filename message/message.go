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

// Package message converts loosely-typed JSON values, as produced by the
// encoding/json package into interface{}, into typed structs at the API
// boundary. The rest of the pipeline only ever sees the typed entities.
package message

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// Message is a typed view of a JSON object. It is implemented by struct
// pointers:
//
//	type Param struct {
//	  Sensor string   `json:"sensor" required:"true"`
//	  Slope  float64  `json:"slope" default:"1"`
//	  Min    *float64 `json:"min"` // nil when absent
//	}
//
//	func (p *Param) InitMessage(js interface{}) error {
//	  return message.Init(p, js)
//	}
type Message interface {
	// InitMessage populates the message from a generic JSON value, checking
	// required fields, applying defaults and rejecting unknown fields.
	InitMessage(js interface{}) error
}

var messageType = reflect.TypeOf((*Message)(nil)).Elem()

// initMessage allocates a new value of the pointer type t and initializes it
// through its InitMessage method.
func initMessage(js interface{}, t reflect.Type) (reflect.Value, error) {
	var none reflect.Value
	if t.Kind() != reflect.Ptr {
		return none, errors.Reason("Message type %s is not a pointer", t.Name())
	}
	ptr := reflect.New(t.Elem())
	if err := ptr.Interface().(Message).InitMessage(js); err != nil {
		return none, errors.Annotate(err, "failed to init %s", t.Elem().Name())
	}
	return ptr, nil
}

// convert recursively converts a generic JSON value to the target type. A
// nil JSON value yields the zero value, except for non-pointer Messages
// which still get their defaults applied.
func convert(js interface{}, t reflect.Type) (reflect.Value, error) {
	var none reflect.Value
	if t.Implements(messageType) {
		if js == nil {
			return reflect.Zero(t), nil
		}
		return initMessage(js, t)
	}
	if reflect.PtrTo(t).Implements(messageType) {
		if js == nil {
			js = map[string]interface{}{}
		}
		ptr, err := initMessage(js, reflect.PtrTo(t))
		if err != nil {
			return none, err
		}
		return reflect.Indirect(ptr), nil
	}
	if js == nil {
		return reflect.Zero(t), nil
	}
	switch t.Kind() {
	case reflect.Ptr:
		v, err := convert(js, t.Elem())
		if err != nil {
			return none, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, nil
	case reflect.Bool:
		b, ok := js.(bool)
		if !ok {
			return none, errors.Reason("expected a bool, got %v", js)
		}
		return reflect.ValueOf(b), nil
	case reflect.Int, reflect.Int64:
		f, ok := js.(float64)
		if !ok {
			return none, errors.Reason("expected a number, got %v", js)
		}
		v := reflect.New(t).Elem()
		v.SetInt(int64(f))
		return v, nil
	case reflect.Float64:
		f, ok := js.(float64)
		if !ok {
			return none, errors.Reason("expected a number, got %v", js)
		}
		return reflect.ValueOf(f), nil
	case reflect.String:
		s, ok := js.(string)
		if !ok {
			return none, errors.Reason("expected a string, got %v", js)
		}
		return reflect.ValueOf(s), nil
	case reflect.Slice:
		l, ok := js.([]interface{})
		if !ok {
			return none, errors.Reason("expected a list, got %v", js)
		}
		res := reflect.MakeSlice(t, len(l), len(l))
		for i, e := range l {
			v, err := convert(e, t.Elem())
			if err != nil {
				return none, errors.Annotate(err, "element %d", i)
			}
			res.Index(i).Set(v)
		}
		return res, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return none, errors.Reason("unsupported map key type %s", t.Key())
		}
		m, ok := js.(map[string]interface{})
		if !ok {
			return none, errors.Reason("expected an object, got %v", js)
		}
		res := reflect.MakeMap(t)
		for k, e := range m {
			v, err := convert(e, t.Elem())
			if err != nil {
				return none, errors.Annotate(err, "key %s", k)
			}
			res.SetMapIndex(reflect.ValueOf(k), v)
		}
		return res, nil
	}
	return none, errors.Reason("unsupported field type %s", t)
}

// defaultValue converts the string form of a `default:` tag to the type t.
func defaultValue(s string, t reflect.Type) (reflect.Value, error) {
	var none reflect.Value
	switch t.Kind() {
	case reflect.Ptr:
		v, err := defaultValue(s, t.Elem())
		if err != nil {
			return none, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return none, errors.Annotate(err, "bad bool default '%s'", s)
		}
		return reflect.ValueOf(b), nil
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return none, errors.Annotate(err, "bad int default '%s'", s)
		}
		v := reflect.New(t).Elem()
		v.SetInt(i)
		return v, nil
	case reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return none, errors.Annotate(err, "bad float default '%s'", s)
		}
		return reflect.ValueOf(f), nil
	case reflect.String:
		return reflect.ValueOf(s), nil
	}
	return none, errors.Reason("default tag unsupported for type %s", t)
}

// jsonName extracts the JSON key of the field, or "" when the field is
// skipped (unexported or tagged json:"-").
func jsonName(f reflect.StructField) string {
	if f.PkgPath != "" { // unexported
		return ""
	}
	name := f.Name
	if tag, ok := f.Tag.Lookup("json"); ok {
		parts := strings.Split(tag, ",")
		if parts[0] == "-" {
			return ""
		}
		if parts[0] != "" {
			name = parts[0]
		}
	}
	return name
}

// Init populates the struct pointed to by m from a generic JSON object,
// honoring `json:`, `required:` and `default:` struct tags. Fields present
// in the JSON but not in the struct are an error, as are missing required
// fields.
func Init(m Message, js interface{}) error {
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.Reason("message must be a struct pointer, got %T", m)
	}
	obj, ok := js.(map[string]interface{})
	if !ok {
		return errors.Reason("expected a JSON object, got %v", js)
	}
	rt := rv.Elem().Type()
	seen := map[string]bool{}
	var missing []string
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		name := jsonName(f)
		if name == "" {
			continue
		}
		fv := rv.Elem().Field(i)
		if jv, ok := obj[name]; ok {
			seen[name] = true
			v, err := convert(jv, f.Type)
			if err != nil {
				return errors.Annotate(err, "field %s", name)
			}
			fv.Set(v)
			continue
		}
		if f.Tag.Get("required") == "true" {
			missing = append(missing, name)
			continue
		}
		if d, ok := f.Tag.Lookup("default"); ok {
			v, err := defaultValue(d, f.Type)
			if err != nil {
				return errors.Annotate(err, "field %s", name)
			}
			fv.Set(v)
			continue
		}
		v, err := convert(nil, f.Type)
		if err != nil {
			return errors.Annotate(err, "field %s", name)
		}
		fv.Set(v)
	}
	if len(missing) > 0 {
		return errors.Reason("missing required fields: %s", strings.Join(missing, ", "))
	}
	var unknown []string
	for k := range obj {
		if !seen[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return errors.Reason("unknown fields for %s: %s",
			rt.Name(), strings.Join(unknown, ", "))
	}
	return nil
}

// StringIn checks whether s equals one of the values.
func StringIn(s string, values ...string) bool {
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}
