package render

import (
	"device-relay/internal/events"
)

// SlackPayload represents a Slack incoming-webhook payload.
type SlackPayload struct {
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a Slack message attachment.
type Attachment struct {
	Color     string  `json:"color,omitempty"`
	Title     string  `json:"title,omitempty"`
	Text      string  `json:"text,omitempty"`
	Fields    []Field `json:"fields,omitempty"`
	Timestamp int64   `json:"ts,omitempty"`
}

// Field represents a field in a Slack attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// BuildSlackPayload builds a Slack payload. The digest doubles as the
// notification fallback text.
func BuildSlackPayload(record *events.EventRecord) SlackPayload {
	rows := MetricRows(record.Metrics)
	fields := make([]Field, 0, len(rows)+2)
	for _, row := range rows {
		fields = append(fields, Field{Title: row.Label, Value: row.Value, Short: true})
	}
	fields = append(fields,
		Field{Title: "TS (device)", Value: FormatDeviceTimestamp(record.DeviceTimestamp), Short: true},
		Field{Title: "Received", Value: FormatReceived(record), Short: true},
	)

	return SlackPayload{
		Text: Digest(record),
		Attachments: []Attachment{
			{
				Color:     attachmentColor(record),
				Title:     Subject(record),
				Text:      record.Message,
				Fields:    fields,
				Timestamp: record.ReceivedAt / 1000,
			},
		},
	}
}

// attachmentColor is yellow for events carrying vitals, green otherwise.
func attachmentColor(record *events.EventRecord) string {
	if record.Metrics.IsEmpty() {
		return "good"
	}
	return "warning"
}

// WebhookPayload is the record as persisted, plus its digest line.
type WebhookPayload struct {
	*events.EventRecord
	Digest string `json:"digest"`
}

// BuildWebhookPayload builds a generic webhook payload.
func BuildWebhookPayload(record *events.EventRecord) WebhookPayload {
	return WebhookPayload{EventRecord: record, Digest: Digest(record)}
}
