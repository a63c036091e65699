package client

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// Param is a single query parameter.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered list of query parameters. Encoding keeps insertion
// order, unlike url.Values which sorts by key.
type Params []Param

// NewParams builds Params from alternating key, value arguments.
// A trailing key without a value is ignored.
func NewParams(kv ...any) Params {
	params := make(Params, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		params = append(params, Param{Key: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	return params
}

// Add appends a parameter and returns the extended list.
func (p Params) Add(key string, value any) Params {
	return append(p, Param{Key: key, Value: value})
}

// Encode renders the query string. Entries with a nil value (including typed
// nil pointers) are omitted.
func (p Params) Encode() string {
	var sb strings.Builder
	for _, param := range p {
		value, ok := paramValue(param.Value)
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(param.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(value))
	}
	return sb.String()
}

func paramValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "", false
		}
		return paramValue(rv.Elem().Interface())
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return "", false
		}
	}

	return fmt.Sprint(v), true
}
