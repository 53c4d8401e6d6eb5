package extract

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"device-relay/internal/events"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		payload events.Payload
		want    events.MetricSet
	}{
		{
			name:    "empty payload",
			payload: events.Payload{},
			want:    events.MetricSet{},
		},
		{
			name: "structured temperature wins over conflicting text",
			payload: events.Payload{
				"tempC": json.Number("25.5"),
				"tempF": json.Number("77.9"),
				"msg":   "Temp: 10.0 C / 50.0 F",
			},
			want: events.MetricSet{TemperatureC: f64(25.5), TemperatureF: f64(77.9)},
		},
		{
			name:    "temperature pair from text",
			payload: events.Payload{"msg": "Temp: 21.5 C / 70.7 F"},
			want:    events.MetricSet{TemperatureC: f64(21.5), TemperatureF: f64(70.7)},
		},
		{
			name:    "text fills only the unresolved unit",
			payload: events.Payload{"tempC": json.Number("30"), "msg": "Temp: 21.5 C / 70.7 F"},
			want:    events.MetricSet{TemperatureC: f64(30), TemperatureF: f64(70.7)},
		},
		{
			name:    "single structured unit is not converted",
			payload: events.Payload{"tempF": json.Number("68")},
			want:    events.MetricSet{TemperatureF: f64(68)},
		},
		{
			name:    "celsius alone in text does not match",
			payload: events.Payload{"msg": "Temp: 21.5 C"},
			want:    events.MetricSet{},
		},
		{
			name:    "humidity from text",
			payload: events.Payload{"msg": "Humidity: 55"},
			want:    events.MetricSet{HumidityPercent: f64(55)},
		},
		{
			name:    "case insensitive labels",
			payload: events.Payload{"msg": "HUMIDITY: 12.5, steps: 300, heart rate: 71.2"},
			want:    events.MetricSet{HumidityPercent: f64(12.5), StepCount: i64(300), HeartRateBpm: f64(71.2)},
		},
		{
			name:    "heart rate without space between words",
			payload: events.Payload{"msg": "HeartRate: 88"},
			want:    events.MetricSet{HeartRateBpm: f64(88)},
		},
		{
			name:    "bpm alias",
			payload: events.Payload{"bpm": json.Number("64")},
			want:    events.MetricSet{HeartRateBpm: f64(64)},
		},
		{
			name:    "heartRate preferred over bpm",
			payload: events.Payload{"heartRate": json.Number("70"), "bpm": json.Number("64")},
			want:    events.MetricSet{HeartRateBpm: f64(70)},
		},
		{
			name:    "structured steps",
			payload: events.Payload{"steps": json.Number("1200"), "msg": "Steps: 5"},
			want:    events.MetricSet{StepCount: i64(1200)},
		},
		{
			name:    "malformed number in text stays absent",
			payload: events.Payload{"msg": "Humidity: 1.2.3"},
			want:    events.MetricSet{},
		},
		{
			name:    "malformed temperature in text drops the pair",
			payload: events.Payload{"msg": "Temp: 2..1 C / 70.0 F"},
			want:    events.MetricSet{},
		},
		{
			name:    "null structured value falls back to text",
			payload: events.Payload{"humidity": nil, "msg": "Humidity: 40"},
			want:    events.MetricSet{HumidityPercent: f64(40)},
		},
		{
			name:    "non-string msg is ignored",
			payload: events.Payload{"msg": json.Number("5")},
			want:    events.MetricSet{},
		},
		{
			name:    "zero is a value, not absence",
			payload: events.Payload{"steps": json.Number("0"), "humidity": json.Number("0")},
			want:    events.MetricSet{HumidityPercent: f64(0), StepCount: i64(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.payload)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract() = %s, want %s", dump(got), dump(tt.want))
			}
		})
	}
}

func TestExtract_EndToEndMessage(t *testing.T) {
	p := decode(t, `{"event":"motion","msg":"Temp: 20.0 C / 68.0 F, Humidity: 40","ts":1000}`)
	got := Extract(p)
	want := events.MetricSet{TemperatureC: f64(20), TemperatureF: f64(68), HumidityPercent: f64(40)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %s, want %s", dump(got), dump(want))
	}
}

func TestExtract_KeyOrderIndependent(t *testing.T) {
	a := decode(t, `{"msg":"Humidity: 10","humidity":20,"bpm":60,"heartRate":61}`)
	b := decode(t, `{"heartRate":61,"bpm":60,"humidity":20,"msg":"Humidity: 10"}`)
	if !reflect.DeepEqual(Extract(a), Extract(b)) {
		t.Errorf("Extract() differs by key order: %s vs %s", dump(Extract(a)), dump(Extract(b)))
	}
}

func TestSources_StructuredBeforeText(t *testing.T) {
	for field, order := range Sources() {
		if len(order) == 0 {
			t.Errorf("%s has no sources", field)
			continue
		}
		if order[0] != SourceStructured {
			t.Errorf("%s first source = %s, want %s", field, order[0], SourceStructured)
		}
		if order[len(order)-1] != SourceText {
			t.Errorf("%s last source = %s, want %s", field, order[len(order)-1], SourceText)
		}
	}
}

func decode(t *testing.T, s string) events.Payload {
	t.Helper()
	var p events.Payload
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return p
}

func dump(m events.MetricSet) string {
	b, _ := json.Marshal(m)
	return string(b)
}
