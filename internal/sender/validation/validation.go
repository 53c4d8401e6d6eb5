// Package validation provides shared destination checks for channel implementations.
package validation

import (
	"net/mail"
	"net/url"
	"strconv"
	"strings"
)

// IsValidURL checks if a string is an absolute HTTP/HTTPS URL with a host.
func IsValidURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}

// IsValidEmail checks for a bare address such as "ops@example.com".
func IsValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// IsValidChatID checks for a numeric Telegram chat ID (negative for groups).
func IsValidChatID(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// IsValidTopic checks a Kafka or MQTT topic name: non-empty, no spaces, no wildcards.
func IsValidTopic(s string) bool {
	return s != "" && !strings.ContainsAny(s, " \t\n+#")
}

// IsValidDestination checks value against the destination format of a channel kind.
// Unknown kinds are rejected.
func IsValidDestination(kind, value string) bool {
	switch kind {
	case "email", "sms":
		return IsValidEmail(value)
	case "slack", "webhook":
		return IsValidURL(value)
	case "telegram":
		return IsValidChatID(value)
	case "kafka", "mqtt":
		return IsValidTopic(value)
	default:
		return false
	}
}
