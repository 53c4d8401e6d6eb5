package events

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Payload is a decoded inbound event body. Numbers are expected as json.Number
// (decoder UseNumber) but float64 values are accepted too.
type Payload map[string]any

// String returns the value under key if it is a string.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float returns the numeric value under key.
// Numeric strings are accepted; anything else reports false.
func (p Payload) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int returns the integral value under key. Non-integral numbers report false.
func (p Payload) Int(key string) (int64, bool) {
	if n, ok := p[key].(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	f, ok := p.Float(key)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
		return 0, false
	}
	return int64(f), true
}
