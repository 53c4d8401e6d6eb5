package render

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"device-relay/internal/events"
)

type reportData struct {
	EventType    string
	Message      string
	MessageHTML  htmltemplate.HTML
	Rows         []Row
	DeviceTime   string
	ReceivedTime string
}

var htmlReport = htmltemplate.Must(htmltemplate.New("report.html").Parse(`<div style="font-family:system-ui,-apple-system,Segoe UI,Roboto,Helvetica,Arial,sans-serif;font-size:14px;line-height:1.45;">
<h2 style="margin:0 0 8px;">Device Alert: {{.EventType}}</h2>
{{- if .Rows}}
<table cellpadding="0" cellspacing="0" style="border-collapse:collapse;border:1px solid #ddd;margin:10px 0;">
{{- range .Rows}}
<tr><td style="padding:6px 10px;border:1px solid #ddd;"><b>{{.Label}}</b></td><td style="padding:6px 10px;border:1px solid #ddd;">{{.Value}}</td></tr>
{{- end}}
</table>
{{- end}}
<h3 style="margin:14px 0 6px;">Message</h3>
<div style="white-space:normal;border:1px solid #eee;background:#fafafa;padding:10px;">{{.MessageHTML}}</div>
<p style="color:#666;margin-top:12px;">TS (device): {{.DeviceTime}}<br>Received: {{.ReceivedTime}}</p>
</div>
`))

var textReport = texttemplate.Must(texttemplate.New("report.txt").Parse(`EVENT: {{.EventType}}
MSG: {{.Message}}
{{- range .Rows}}
{{.Label}}: {{.Value}}
{{- end}}
TS: {{.DeviceTime}}
Received: {{.ReceivedTime}}
`))

func richReport(record *events.EventRecord) (Payload, error) {
	data := reportData{
		EventType:    record.EventType,
		Message:      record.Message,
		MessageHTML:  messageHTML(record.Message),
		Rows:         MetricRows(record.Metrics),
		DeviceTime:   FormatDeviceTimestamp(record.DeviceTimestamp),
		ReceivedTime: FormatReceived(record),
	}

	var html, text bytes.Buffer
	if err := htmlReport.Execute(&html, data); err != nil {
		return Payload{}, fmt.Errorf("failed to render HTML report: %w", err)
	}
	if err := textReport.Execute(&text, data); err != nil {
		return Payload{}, fmt.Errorf("failed to render text report: %w", err)
	}

	return Payload{
		Subject: Subject(record),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// messageHTML escapes the raw message and keeps its line breaks.
func messageHTML(msg string) htmltemplate.HTML {
	escaped := htmltemplate.HTMLEscapeString(msg)
	return htmltemplate.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}
