// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package message initializes configuration structs from generic JSON or TOML
// values, using struct tags for defaults, required fields and value choices.
//
// A message is a struct pointer implementing Message:
//
//	type Source struct {
//	  Domain  string `json:"domain" required:"true"`
//	  Timeout int    `json:"timeout" default:"10"`
//	  Format  string `json:"format" default:"json" choices:"json,csv"`
//	}
//
//	func (s *Source) InitMessage(js any) error {
//	  return message.Init(s, js)
//	}
//
// Nested structs whose pointer implements Message are initialized recursively,
// including inside slices and maps. Unknown keys are an error.
package message

import (
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stockparfait/errors"
)

// Message is implemented by configuration struct pointers.
type Message interface {
	// InitMessage populates the message from a generic value as produced by
	// encoding/json or go-toml when decoding into `any`. Typically it calls
	// Init.
	InitMessage(js any) error
}

var messageType = reflect.TypeOf((*Message)(nil)).Elem()

// initMessage creates a new *T for the pointer type t and calls its
// InitMessage.
func initMessage(js any, t reflect.Type) (reflect.Value, error) {
	if t.Kind() != reflect.Ptr {
		return reflect.Value{}, errors.Reason(
			"type %s implements Message but is not a pointer", t.Name())
	}
	ptr := reflect.New(t.Elem())
	if err := ptr.Interface().(Message).InitMessage(js); err != nil {
		return reflect.Value{}, errors.Annotate(err, "%s.InitMessage() failed", t.Elem().Name())
	}
	return ptr, nil
}

// toNumber accepts both JSON (float64) and TOML (int64) numbers.
func toNumber(js any) (float64, bool) {
	switch v := js.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// convert builds a value of type t from the generic value js. A nil js yields
// the zero value, or the default-initialized Message for Message types.
func convert(js any, t reflect.Type) (reflect.Value, error) {
	if t.Implements(messageType) {
		if js == nil {
			return reflect.Zero(t), nil
		}
		return initMessage(js, t)
	}
	if pt := reflect.PtrTo(t); pt.Implements(messageType) {
		if js == nil {
			js = map[string]any{}
		}
		ptr, err := initMessage(js, pt)
		if err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}
	if js == nil {
		return reflect.Zero(t), nil
	}
	switch t.Kind() {
	case reflect.Ptr:
		v, err := convert(js, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, nil
	case reflect.Bool:
		if b, ok := js.(bool); ok {
			return reflect.ValueOf(b), nil
		}
		return reflect.Value{}, errors.Reason("not a bool: %v", js)
	case reflect.Int:
		if n, ok := toNumber(js); ok {
			return reflect.ValueOf(int(n)), nil
		}
		return reflect.Value{}, errors.Reason("not a number: %v", js)
	case reflect.Float64:
		if n, ok := toNumber(js); ok {
			return reflect.ValueOf(n), nil
		}
		return reflect.Value{}, errors.Reason("not a number: %v", js)
	case reflect.String:
		if s, ok := js.(string); ok {
			return reflect.ValueOf(s).Convert(t), nil
		}
		return reflect.Value{}, errors.Reason("not a string: %v", js)
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return reflect.Value{}, errors.Reason("map[%s] is not supported", t.Key().Kind())
		}
		m, ok := js.(map[string]any)
		if !ok {
			return reflect.Value{}, errors.Reason("not a map: %v", js)
		}
		res := reflect.MakeMapWithSize(t, len(m))
		for k, v := range m {
			el, err := convert(v, t.Elem())
			if err != nil {
				return reflect.Value{}, errors.Annotate(err, "in map key '%s'", k)
			}
			res.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), el)
		}
		return res, nil
	case reflect.Slice:
		s, ok := js.([]any)
		if !ok {
			return reflect.Value{}, errors.Reason("not a list: %v", js)
		}
		res := reflect.MakeSlice(t, len(s), len(s))
		for i, v := range s {
			el, err := convert(v, t.Elem())
			if err != nil {
				return reflect.Value{}, errors.Annotate(err, "in list element %d", i)
			}
			res.Index(i).Set(el)
		}
		return res, nil
	}
	return reflect.Value{}, errors.Reason("unsupported type: %s", t.Name())
}

// fromTag parses a `default` struct tag value into type t.
func fromTag(s string, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Ptr:
		v, err := fromTag(s, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, errors.Annotate(err, "invalid bool value: %s", s)
		}
		return reflect.ValueOf(b), nil
	case reflect.Int:
		n, err := strconv.Atoi(s)
		if err != nil {
			return reflect.Value{}, errors.Annotate(err, "invalid int value: %s", s)
		}
		return reflect.ValueOf(n), nil
	case reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return reflect.Value{}, errors.Annotate(err, "invalid float64 value: %s", s)
		}
		return reflect.ValueOf(f), nil
	case reflect.String:
		return reflect.ValueOf(s).Convert(t), nil
	}
	if reflect.PtrTo(t).Implements(messageType) {
		ptr, err := initMessage(s, reflect.PtrTo(t))
		if err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}
	return reflect.Value{}, errors.Reason("type %s cannot have a default", t.Name())
}

// assign sets the field value, enforcing the `choices` tag.
func assign(f reflect.StructField, fv, v reflect.Value) error {
	if choices, ok := f.Tag.Lookup("choices"); ok {
		if f.Type.Kind() != reflect.String {
			return errors.Reason("choices tag applied to a non-string field: %s", f.Name)
		}
		if s := v.String(); !StringIn(s, strings.Split(choices, ",")...) {
			return errors.Reason("value for %s is not in its choice list: '%s'", f.Name, s)
		}
	}
	fv.Set(v)
	return nil
}

// jsonName returns the key of the field, or "" if the field is skipped.
func jsonName(f reflect.StructField) string {
	if r, _ := utf8.DecodeRuneInString(f.Name); !unicode.IsUpper(r) {
		return ""
	}
	name := strings.Split(f.Tag.Get("json"), ",")[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// Init populates the struct pointed to by m from js, which must be a
// map[string]any. Recognized struct tags:
//
//	`json:"key" required:"true" default:"value" choices:"one,two"`
//
// Only exported fields participate. A missing json tag means the key is the
// field name. Missing optional fields get their default or zero value.
func Init(m Message, js any) error {
	rt := reflect.TypeOf(m)
	if rt.Kind() != reflect.Ptr || rt.Elem().Kind() != reflect.Struct {
		return errors.Reason("expected a struct pointer, got %s", rt)
	}
	if js == nil {
		return errors.Reason("JSON object is nil")
	}
	obj, ok := js.(map[string]any)
	if !ok {
		return errors.Reason("JSON object is not a map: %v", js)
	}
	rt = rt.Elem()
	rv := reflect.ValueOf(m).Elem()
	seen := make(map[string]bool)
	var missing []string
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		name := jsonName(f)
		if name == "" {
			continue
		}
		fv := rv.Field(i)
		if jv, ok := obj[name]; ok {
			seen[name] = true
			v, err := convert(jv, f.Type)
			if err != nil {
				return errors.Annotate(err, "error assigning field %s", f.Name)
			}
			if err := assign(f, fv, v); err != nil {
				return err
			}
			continue
		}
		if f.Tag.Get("required") == "true" {
			missing = append(missing, name)
			continue
		}
		var v reflect.Value
		var err error
		if def, ok := f.Tag.Lookup("default"); ok {
			v, err = fromTag(def, f.Type)
		} else {
			v, err = convert(nil, f.Type)
		}
		if err != nil {
			return errors.Annotate(err, "error creating default value for %s", f.Name)
		}
		if err := assign(f, fv, v); err != nil {
			return errors.Annotate(err, "error setting default value for %s", f.Name)
		}
	}
	if len(missing) > 0 {
		return errors.Reason("missing required fields: %s", strings.Join(missing, ", "))
	}
	var extra []string
	for k := range obj {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		return errors.Reason("unsupported fields for %s: %s", rt.Name(), strings.Join(extra, ", "))
	}
	return nil
}

// StringIn checks that s equals one of the values.
func StringIn(s string, values ...string) bool {
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}
