package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"device-relay/internal/events"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func newRecord(eventType, msg string, m events.MetricSet) *events.EventRecord {
	return &events.EventRecord{
		ID:         "1700000000000-abcdef12",
		EventType:  eventType,
		Message:    msg,
		ReceivedAt: 1700000000000,
		Metrics:    m,
	}
}

func TestDigest(t *testing.T) {
	tests := []struct {
		name   string
		record *events.EventRecord
		want   string
	}{
		{
			name:   "no metrics",
			record: newRecord("button", "", events.MetricSet{}),
			want:   "ALERT: button",
		},
		{
			name:   "celsius only derives fahrenheit",
			record: newRecord("motion", "", events.MetricSet{TemperatureC: f64(20), HumidityPercent: f64(40)}),
			want:   "ALERT: motion | T:20C/68F | H:40%",
		},
		{
			name:   "fahrenheit only derives celsius",
			record: newRecord("motion", "", events.MetricSet{TemperatureF: f64(212)}),
			want:   "ALERT: motion | T:100C/212F",
		},
		{
			name:   "both units kept as observed",
			record: newRecord("motion", "", events.MetricSet{TemperatureC: f64(21.5), TemperatureF: f64(70.7)}),
			want:   "ALERT: motion | T:22C/71F",
		},
		{
			name: "all metrics",
			record: newRecord("fall", "", events.MetricSet{
				TemperatureC:    f64(36.6),
				TemperatureF:    f64(97.9),
				HumidityPercent: f64(55.49),
				StepCount:       i64(1234),
				HeartRateBpm:    f64(72.5),
			}),
			want: "ALERT: fall | T:37C/98F | H:55% | S:1234 | HR:73",
		},
		{
			name:   "heart rate alone keeps its separator",
			record: newRecord("pulse", "", events.MetricSet{HeartRateBpm: f64(60.4)}),
			want:   "ALERT: pulse | HR:60",
		},
		{
			name:   "negative temperatures round away from zero",
			record: newRecord("cold", "", events.MetricSet{TemperatureC: f64(-2.5), TemperatureF: f64(27.5)}),
			want:   "ALERT: cold | T:-3C/28F",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Digest(tt.record)
			if got != tt.want {
				t.Errorf("Digest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDigest_DoesNotMutateRecord(t *testing.T) {
	record := newRecord("motion", "", events.MetricSet{TemperatureC: f64(20)})
	first := Digest(record)
	second := Digest(record)

	if first != second {
		t.Errorf("Digest() not deterministic: %q vs %q", first, second)
	}
	if record.Metrics.TemperatureF != nil {
		t.Errorf("Digest() wrote derived TemperatureF back into the record")
	}
}

func TestMetricRows(t *testing.T) {
	tests := []struct {
		name string
		m    events.MetricSet
		want []Row
	}{
		{
			name: "empty",
			m:    events.MetricSet{},
			want: nil,
		},
		{
			name: "both temperatures",
			m:    events.MetricSet{TemperatureC: f64(21.5), TemperatureF: f64(70.7)},
			want: []Row{{Label: "Temperature", Value: "21.50 °C / 70.70 °F"}},
		},
		{
			name: "single unit is not converted",
			m:    events.MetricSet{TemperatureF: f64(70.7)},
			want: []Row{{Label: "Temperature", Value: "70.70 °F"}},
		},
		{
			name: "all rows in order",
			m: events.MetricSet{
				HeartRateBpm:    f64(72),
				StepCount:       i64(1200),
				HumidityPercent: f64(45),
				TemperatureC:    f64(20),
			},
			want: []Row{
				{Label: "Temperature", Value: "20.00 °C"},
				{Label: "Humidity", Value: "45.00 %"},
				{Label: "Steps", Value: "1200"},
				{Label: "Heart Rate", Value: "72.0 bpm"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MetricRows(tt.m)
			if len(got) != len(tt.want) {
				t.Fatalf("MetricRows() returned %d rows, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("row %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFormatDeviceTimestamp(t *testing.T) {
	tests := []struct {
		name string
		ts   *int64
		want string
	}{
		{name: "absent", ts: nil, want: "n/a"},
		{name: "seconds", ts: i64(1700000000), want: "2023-11-14T22:13:20.000Z"},
		{name: "milliseconds", ts: i64(1700000000123), want: "2023-11-14T22:13:20.123Z"},
		{name: "small uptime counter", ts: i64(1000), want: "1970-01-01T00:16:40.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDeviceTimestamp(tt.ts); got != tt.want {
				t.Errorf("FormatDeviceTimestamp() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_Rich(t *testing.T) {
	record := newRecord("motion", "line one\n<script>x</script>", events.MetricSet{
		TemperatureC:    f64(20),
		HumidityPercent: f64(40),
	})
	record.DeviceTimestamp = i64(1700000000)

	p, err := Render(record, ModeRich)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if p.Subject != "Device Alert: motion" {
		t.Errorf("Subject = %q", p.Subject)
	}

	for _, want := range []string{
		"Device Alert: motion",
		"<b>Temperature</b>",
		"20.00 °C",
		"<b>Humidity</b>",
		"40.00 %",
		"line one<br>&lt;script&gt;x&lt;/script&gt;",
		"TS (device): 2023-11-14T22:13:20.000Z",
		"Received: 2023-11-14T22:13:20.000Z",
	} {
		if !strings.Contains(p.HTML, want) {
			t.Errorf("HTML missing %q\n%s", want, p.HTML)
		}
	}
	for _, absent := range []string{"Steps", "Heart Rate", "<script>"} {
		if strings.Contains(p.HTML, absent) {
			t.Errorf("HTML unexpectedly contains %q", absent)
		}
	}

	for _, want := range []string{
		"EVENT: motion\n",
		"MSG: line one\n<script>x</script>\n",
		"Temperature: 20.00 °C\n",
		"Humidity: 40.00 %\n",
		"TS: 2023-11-14T22:13:20.000Z\n",
		"Received: 2023-11-14T22:13:20.000Z\n",
	} {
		if !strings.Contains(p.Text, want) {
			t.Errorf("Text missing %q\n%s", want, p.Text)
		}
	}
}

func TestRender_RichWithoutMetricsOmitsTable(t *testing.T) {
	p, err := Render(newRecord("button", "", events.MetricSet{}), ModeRich)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(p.HTML, "<table") {
		t.Errorf("HTML contains a metrics table for a record without metrics")
	}
	if !strings.Contains(p.HTML, "TS (device): n/a") {
		t.Errorf("HTML missing n/a device timestamp")
	}
}

func TestRender_SMS(t *testing.T) {
	record := newRecord(strings.Repeat("x", 300), "", events.MetricSet{HeartRateBpm: f64(80)})

	p, err := Render(record, ModeSMS)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got := len([]rune(p.Text)); got != SMSMaxLength {
		t.Errorf("SMS length = %d, want %d", got, SMSMaxLength)
	}
	if p.Subject != "" || p.HTML != "" {
		t.Errorf("SMS payload should carry text only, got %+v", p)
	}

	short, _ := Render(newRecord("motion", "", events.MetricSet{}), ModeSMS)
	if short.Text != "ALERT: motion" {
		t.Errorf("short SMS = %q", short.Text)
	}
}

func TestRender_UnknownMode(t *testing.T) {
	if _, err := Render(newRecord("x", "", events.MetricSet{}), Mode(42)); err == nil {
		t.Error("Render() with unknown mode should fail")
	}
}

func TestBuildSlackPayload(t *testing.T) {
	record := newRecord("motion", "hello", events.MetricSet{StepCount: i64(10)})
	p := BuildSlackPayload(record)

	if p.Text != "ALERT: motion | S:10" {
		t.Errorf("Text = %q", p.Text)
	}
	if len(p.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(p.Attachments))
	}
	a := p.Attachments[0]
	if a.Title != "Device Alert: motion" || a.Text != "hello" || a.Color != "warning" {
		t.Errorf("unexpected attachment %+v", a)
	}
	if a.Timestamp != 1700000000 {
		t.Errorf("Timestamp = %d", a.Timestamp)
	}
	if a.Fields[0].Title != "Steps" || a.Fields[0].Value != "10" {
		t.Errorf("first field = %+v", a.Fields[0])
	}

	plain := BuildSlackPayload(newRecord("button", "", events.MetricSet{}))
	if plain.Attachments[0].Color != "good" {
		t.Errorf("color without metrics = %q", plain.Attachments[0].Color)
	}
}

func TestBuildWebhookPayload(t *testing.T) {
	record := newRecord("motion", "hi", events.MetricSet{TemperatureC: f64(20)})
	body, err := json.Marshal(BuildWebhookPayload(record))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got["id"] != record.ID || got["eventType"] != "motion" {
		t.Errorf("record fields not flattened: %s", body)
	}
	if got["digest"] != "ALERT: motion | T:20C/68F" {
		t.Errorf("digest = %v", got["digest"])
	}
	metrics, ok := got["metrics"].(map[string]any)
	if !ok || metrics["temperatureF"] != nil {
		t.Errorf("webhook payload must not carry derived temperatureF: %s", body)
	}
}

func TestFormatReceived(t *testing.T) {
	record := &events.EventRecord{ReceivedAt: time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC).UnixMilli()}
	if got := FormatReceived(record); got != "2024-01-02T03:04:05.006Z" {
		t.Errorf("FormatReceived() = %q", got)
	}
}
