// Package extract derives a MetricSet from a raw device payload.
//
// Every metric field has an ordered list of sources. Sources are tried in
// order and the first one that yields a value wins, so structured fields
// always take precedence over values parsed out of the free-text message.
package extract

import (
	"regexp"
	"strconv"

	"device-relay/internal/events"
)

// Source names, in precedence order, as reported by Sources.
const (
	SourceStructured = "structured"
	SourceText       = "text"
)

var (
	tempPattern      = regexp.MustCompile(`(?i)Temp:\s*([\d.]+)\s*C\s*/\s*([\d.]+)\s*F`)
	humidityPattern  = regexp.MustCompile(`(?i)Humidity:\s*([\d.]+)`)
	stepsPattern     = regexp.MustCompile(`(?i)Steps:\s*(\d+)`)
	heartRatePattern = regexp.MustCompile(`(?i)Heart\s*Rate:\s*([\d.]+)`)
)

// source is one (origin, extractor) pair for a field.
type source[T any] struct {
	name string
	fn   func(p events.Payload) (T, bool)
}

// resolve returns the first value produced by sources, in order.
func resolve[T any](p events.Payload, sources []source[T]) *T {
	for _, s := range sources {
		if v, ok := s.fn(p); ok {
			return &v
		}
	}
	return nil
}

var (
	temperatureCSources = []source[float64]{
		{SourceStructured, structuredFloat("tempC")},
		{SourceText, func(p events.Payload) (float64, bool) {
			c, _, ok := textTemperature(p)
			return c, ok
		}},
	}
	temperatureFSources = []source[float64]{
		{SourceStructured, structuredFloat("tempF")},
		{SourceText, func(p events.Payload) (float64, bool) {
			_, f, ok := textTemperature(p)
			return f, ok
		}},
	}
	humiditySources = []source[float64]{
		{SourceStructured, structuredFloat("humidity")},
		{SourceText, textFloat(humidityPattern)},
	}
	stepSources = []source[int64]{
		{SourceStructured, structuredInt("steps")},
		{SourceText, textInt(stepsPattern)},
	}
	heartRateSources = []source[float64]{
		{SourceStructured, structuredFloat("heartRate")},
		{SourceStructured, structuredFloat("bpm")},
		{SourceText, textFloat(heartRatePattern)},
	}
)

// Extract builds the MetricSet for a payload. It never fails: anything that
// cannot be read or parsed leaves the corresponding field absent.
func Extract(p events.Payload) events.MetricSet {
	return events.MetricSet{
		TemperatureC:    resolve(p, temperatureCSources),
		TemperatureF:    resolve(p, temperatureFSources),
		HumidityPercent: resolve(p, humiditySources),
		StepCount:       resolve(p, stepSources),
		HeartRateBpm:    resolve(p, heartRateSources),
	}
}

// Sources returns the precedence order for each metric field, keyed by the
// MetricSet JSON name. Used for diagnostics and tests.
func Sources() map[string][]string {
	return map[string][]string{
		"temperatureC":    names(temperatureCSources),
		"temperatureF":    names(temperatureFSources),
		"humidityPercent": names(humiditySources),
		"stepCount":       names(stepSources),
		"heartRateBpm":    names(heartRateSources),
	}
}

func names[T any](sources []source[T]) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.name
	}
	return out
}

func structuredFloat(key string) func(events.Payload) (float64, bool) {
	return func(p events.Payload) (float64, bool) {
		return p.Float(key)
	}
}

func structuredInt(key string) func(events.Payload) (int64, bool) {
	return func(p events.Payload) (int64, bool) {
		return p.Int(key)
	}
}

func message(p events.Payload) (string, bool) {
	msg, ok := p.String("msg")
	return msg, ok && msg != ""
}

// textTemperature reads the Celsius/Fahrenheit pair. Both values must parse
// for either to be used.
func textTemperature(p events.Payload) (c, f float64, ok bool) {
	msg, ok := message(p)
	if !ok {
		return 0, 0, false
	}
	m := tempPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, 0, false
	}
	c, errC := strconv.ParseFloat(m[1], 64)
	f, errF := strconv.ParseFloat(m[2], 64)
	if errC != nil || errF != nil {
		return 0, 0, false
	}
	return c, f, true
}

func textFloat(re *regexp.Regexp) func(events.Payload) (float64, bool) {
	return func(p events.Payload) (float64, bool) {
		msg, ok := message(p)
		if !ok {
			return 0, false
		}
		m := re.FindStringSubmatch(msg)
		if m == nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
}

func textInt(re *regexp.Regexp) func(events.Payload) (int64, bool) {
	return func(p events.Payload) (int64, bool) {
		msg, ok := message(p)
		if !ok {
			return 0, false
		}
		m := re.FindStringSubmatch(msg)
		if m == nil {
			return 0, false
		}
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
}
