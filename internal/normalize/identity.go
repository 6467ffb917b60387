package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/starford/opdedupe/internal/models"
)

// Epoch is the timestamp assigned to records with no usable time. It sorts
// as the oldest possible value.
var Epoch = time.Unix(0, 0).UTC()

// TimestampLayout is the display format for report timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

var usernameLabels = map[string]struct{}{
	"username":  {},
	"user name": {},
	"login":     {},
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Username extracts the record's username. Priority: a field with purpose
// USERNAME, then a field labelled username/user name/login, then the
// top-level username attribute. Returns "" when nothing matches.
func Username(r models.Record) string {
	for _, f := range r.Fields {
		if strings.ToUpper(strings.TrimSpace(f.Purpose)) == "USERNAME" {
			return strings.TrimSpace(f.Value)
		}
	}
	for _, f := range r.Fields {
		if _, ok := usernameLabels[strings.ToLower(strings.TrimSpace(f.Label))]; ok {
			return strings.TrimSpace(f.Value)
		}
	}
	if r.HasUsername {
		return strings.TrimSpace(r.Username)
	}
	return ""
}

// UsernameKey is the grouping form of Username: trimmed and lowercased.
func UsernameKey(r models.Record) string {
	return strings.ToLower(Username(r))
}

// TitleKey is the grouping form of a title used by local keys.
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// ParseTimestamp parses ISO-8601 text or a decimal epoch in seconds.
// Empty or unparsable input yields Epoch.
func ParseTimestamp(raw string) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Epoch
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Epoch
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return Epoch
}

// BestTimestamp prefers the updated time and falls back to the created time.
func BestTimestamp(r models.Record) time.Time {
	if t := ParseTimestamp(r.UpdatedAt); !IsEpoch(t) {
		return t
	}
	return ParseTimestamp(r.CreatedAt)
}

// IsEpoch reports whether t carries no usable time.
func IsEpoch(t time.Time) bool {
	return t.IsZero() || t.Equal(Epoch)
}

// FormatTimestamp renders t for the report, or "" for Epoch.
func FormatTimestamp(t time.Time) string {
	if IsEpoch(t) {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}
