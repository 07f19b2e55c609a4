// services/payload.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// rawObject is a decoded JSON object whose values are still raw. Every lookup
// takes a list of alternate field names and uses the first one present and
// non-null. All methods are safe on a nil rawObject.
type rawObject map[string]json.RawMessage

var jsonNull = []byte("null")

func parseObject(raw []byte) (rawObject, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("expected JSON object, got %q", prefix(raw, 32))
	}
	var o rawObject
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	return o, nil
}

func (o rawObject) first(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := o[k]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 || bytes.Equal(v, jsonNull) {
			continue
		}
		return v, true
	}
	return nil, false
}

func (o rawObject) has(keys ...string) bool {
	_, ok := o.first(keys...)
	return ok
}

// str returns the first present value as a trimmed string. Numbers and bools
// are rendered as text; objects and arrays are ignored.
func (o rawObject) str(keys ...string) string {
	for _, k := range keys {
		v, ok := o.first(k)
		if !ok {
			continue
		}
		switch v[0] {
		case '"':
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		case '{', '[':
			continue
		default:
			return string(v)
		}
	}
	return ""
}

func (o rawObject) boolean(keys ...string) bool {
	v, ok := o.first(keys...)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	switch strings.ToLower(strings.Trim(string(v), `"`)) {
	case "1", "true", "yes", "y", "verified":
		return true
	}
	return false
}

func (o rawObject) integer(keys ...string) *int {
	for _, k := range keys {
		s := o.str(k)
		if s == "" {
			continue
		}
		if n, err := strconv.Atoi(s); err == nil {
			return &n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			n := int(f)
			return &n
		}
	}
	return nil
}

// decimal returns the first parseable amount, or zero.
func (o rawObject) decimal(keys ...string) (decimal.Decimal, bool) {
	for _, k := range keys {
		s := o.str(k)
		if s == "" {
			continue
		}
		if d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "")); err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// timestamp parses the first present value as UTC time. Accepts the layouts
// above and unix seconds or milliseconds.
func (o rawObject) timestamp(keys ...string) *time.Time {
	for _, k := range keys {
		s := o.str(k)
		if s == "" {
			continue
		}
		if t, ok := parseTimestamp(s); ok {
			return &t
		}
	}
	return nil
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

// object returns the first nested object, or nil.
func (o rawObject) object(keys ...string) rawObject {
	for _, k := range keys {
		v, ok := o.first(k)
		if !ok || v[0] != '{' {
			continue
		}
		if nested, err := parseObject(v); err == nil {
			return nested
		}
	}
	return nil
}

// list returns the first array among keys. A single object under one of the
// keys is treated as a one-element list.
func (o rawObject) list(keys ...string) ([]json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := o.first(k)
		if !ok {
			continue
		}
		switch v[0] {
		case '[':
			var items []json.RawMessage
			if err := json.Unmarshal(v, &items); err == nil {
				return items, true
			}
		case '{':
			return []json.RawMessage{v}, true
		}
	}
	return nil, false
}

// strings flattens a multi-value field: an array of strings, an array of
// objects carrying a name, or a single string.
func (o rawObject) strings(keys ...string) []string {
	for _, k := range keys {
		v, ok := o.first(k)
		if !ok {
			continue
		}
		if v[0] != '[' {
			if s := o.str(k); s != "" {
				return []string{s}
			}
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil {
			continue
		}
		var out []string
		for _, item := range items {
			wrapped := rawObject{"v": item}
			s := wrapped.str("v")
			if s == "" {
				s = wrapped.object("v").str("name", "title", "label")
			}
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func prefix(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
