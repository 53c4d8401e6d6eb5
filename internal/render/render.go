// Package render turns an EventRecord into channel-ready content.
//
// Two modes exist: a rich report for channels that take long-form formatted
// content (email), and a compact single-line digest for channels with a
// strict length budget (SMS gateways, chat). Unit conversion between Celsius
// and Fahrenheit happens only in the digest and is never written back.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"device-relay/internal/events"
)

// Mode selects a rendering.
type Mode int

const (
	ModeRich Mode = iota
	ModeDigest
	ModeSMS
)

func (m Mode) String() string {
	switch m {
	case ModeRich:
		return "rich"
	case ModeDigest:
		return "digest"
	case ModeSMS:
		return "sms"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// SMSMaxLength is the body budget for SMS-via-email-gateway messages.
const SMSMaxLength = 160

// isoLayout matches JavaScript's Date.toISOString output.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Payload is the rendered content for one channel.
type Payload struct {
	Subject string
	Text    string
	HTML    string // empty for single-line modes
}

// Render produces the payload for the given mode.
func Render(record *events.EventRecord, mode Mode) (Payload, error) {
	switch mode {
	case ModeRich:
		return richReport(record)
	case ModeDigest:
		return Payload{Subject: Subject(record), Text: Digest(record)}, nil
	case ModeSMS:
		return Payload{Text: truncate(Digest(record), SMSMaxLength)}, nil
	default:
		return Payload{}, fmt.Errorf("unknown render mode %s", mode)
	}
}

// Subject returns the alert subject line.
func Subject(record *events.EventRecord) string {
	return "Device Alert: " + record.EventType
}

// Row is one line of the metric breakdown.
type Row struct {
	Label string
	Value string
}

// MetricRows lists the present metrics in display order. No unit conversion
// is applied: a temperature reported in one unit shows that unit alone.
func MetricRows(m events.MetricSet) []Row {
	var rows []Row

	var temps []string
	if m.TemperatureC != nil {
		temps = append(temps, fmt.Sprintf("%.2f °C", *m.TemperatureC))
	}
	if m.TemperatureF != nil {
		temps = append(temps, fmt.Sprintf("%.2f °F", *m.TemperatureF))
	}
	if len(temps) > 0 {
		rows = append(rows, Row{Label: "Temperature", Value: strings.Join(temps, " / ")})
	}
	if m.HumidityPercent != nil {
		rows = append(rows, Row{Label: "Humidity", Value: fmt.Sprintf("%.2f %%", *m.HumidityPercent)})
	}
	if m.StepCount != nil {
		rows = append(rows, Row{Label: "Steps", Value: strconv.FormatInt(*m.StepCount, 10)})
	}
	if m.HeartRateBpm != nil {
		rows = append(rows, Row{Label: "Heart Rate", Value: fmt.Sprintf("%.1f bpm", *m.HeartRateBpm)})
	}
	return rows
}

// Digest renders the compact single-line form:
//
//	ALERT: <eventType> | T:<C>C/<F>F | H:<h>% | S:<steps> | HR:<bpm>
//
// Segments for absent metrics are left out. When only one temperature unit was
// observed the other is derived for display. Numbers are rounded to integers.
func Digest(record *events.EventRecord) string {
	m := record.Metrics
	parts := []string{"ALERT: " + record.EventType}

	if c, f, ok := displayTemperature(m); ok {
		parts = append(parts, fmt.Sprintf("T:%sC/%sF", roundString(c), roundString(f)))
	}
	if m.HumidityPercent != nil {
		parts = append(parts, fmt.Sprintf("H:%s%%", roundString(*m.HumidityPercent)))
	}
	if m.StepCount != nil {
		parts = append(parts, "S:"+strconv.FormatInt(*m.StepCount, 10))
	}
	if m.HeartRateBpm != nil {
		parts = append(parts, "HR:"+roundString(*m.HeartRateBpm))
	}
	return strings.Join(parts, " | ")
}

// displayTemperature fills in a missing unit for presentation only.
func displayTemperature(m events.MetricSet) (c, f float64, ok bool) {
	switch {
	case m.TemperatureC != nil && m.TemperatureF != nil:
		return *m.TemperatureC, *m.TemperatureF, true
	case m.TemperatureC != nil:
		return *m.TemperatureC, CelsiusToFahrenheit(*m.TemperatureC), true
	case m.TemperatureF != nil:
		return FahrenheitToCelsius(*m.TemperatureF), *m.TemperatureF, true
	default:
		return 0, 0, false
	}
}

// CelsiusToFahrenheit converts a temperature.
func CelsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

// FahrenheitToCelsius converts a temperature.
func FahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }

func roundString(v float64) string {
	return strconv.FormatInt(int64(math.Round(v)), 10)
}

// FormatDeviceTimestamp renders the device-reported timestamp as ISO-8601.
// Values of 1e11 and above are read as epoch milliseconds, smaller ones as
// epoch seconds. A missing timestamp renders as "n/a".
func FormatDeviceTimestamp(ts *int64) string {
	if ts == nil {
		return "n/a"
	}
	if *ts >= 1e11 || *ts <= -1e11 {
		return time.UnixMilli(*ts).UTC().Format(isoLayout)
	}
	return time.Unix(*ts, 0).UTC().Format(isoLayout)
}

// FormatReceived renders the server receipt time as ISO-8601.
func FormatReceived(record *events.EventRecord) string {
	return record.ReceivedTime().Format(isoLayout)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
