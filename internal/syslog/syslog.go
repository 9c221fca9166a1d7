// Package syslog parses RFC 5424 and RFC 3164 syslog messages.
//
// Parse is total: input matching neither grammar degrades to a
// fallback message carrying priority 13 (user.notice) and the whole
// input as the message body. Callers never see a parse error.
package syslog

import "strconv"

// Format values reported by Parse.
const (
	FormatRFC5424 = "RFC5424"
	FormatRFC3164 = "RFC3164"
	FormatUnknown = "unknown"
)

// FallbackPriority is assigned when neither grammar matches: user.notice.
const FallbackPriority = 13

// Priority is the syslog priority value, facility*8 + severity.
type Priority int

// Facility returns the facility component of the priority.
func (p Priority) Facility() int { return int(p) >> 3 }

// Severity returns the severity component of the priority.
func (p Priority) Severity() int { return int(p) & 7 }

// Valid reports whether the priority is inside the RFC range [0,191].
func (p Priority) Valid() bool { return p >= 0 && p <= 191 }

// Message is one parsed syslog message. Optional fields and fields
// carrying the RFC 5424 nil value "-" are empty strings. Tag and PID
// are RFC 3164 only; Version, AppName, ProcID, MsgID and
// StructuredData are RFC 5424 only.
type Message struct {
	Priority       Priority
	Version        int
	Timestamp      string
	Hostname       string
	AppName        string
	ProcID         string
	MsgID          string
	StructuredData string
	Tag            string
	PID            string
	Message        string
	Format         string
}

// Parse parses a syslog message, trying RFC 5424 first and RFC 3164
// second. A missing or out-of-range <PRI>, or a body matching neither
// grammar, yields the fallback message.
func Parse(raw string) Message {
	if pri, rest, ok := parsePriority(raw); ok {
		if m, ok := parseRFC5424(pri, rest); ok {
			return m
		}
		if m, ok := parseRFC3164(pri, rest); ok {
			return m
		}
	}
	return Message{
		Priority: FallbackPriority,
		Message:  raw,
		Format:   FormatUnknown,
	}
}

// parsePriority extracts the leading <PRI> and validates its range.
func parsePriority(s string) (Priority, string, bool) {
	if len(s) < 3 || s[0] != '<' {
		return 0, s, false
	}

	end := 1
	for end < len(s) && end < 5 && s[end] != '>' {
		end++
	}
	if end >= len(s) || s[end] != '>' {
		return 0, s, false
	}

	n, err := strconv.Atoi(s[1:end])
	if err != nil {
		return 0, s, false
	}
	pri := Priority(n)
	if !pri.Valid() {
		return 0, s, false
	}
	return pri, s[end+1:], true
}

var facilityNames = []string{
	"kern", "user", "mail", "daemon", "auth", "syslog", "lpr", "news",
	"uucp", "cron", "authpriv", "ftp", "ntp", "security", "console", "solaris-cron",
	"local0", "local1", "local2", "local3", "local4", "local5", "local6", "local7",
}

var severityNames = []string{
	"emergency", "alert", "critical", "error", "warning", "notice", "informational", "debug",
}

// FacilityName returns the human-readable facility name.
func FacilityName(f int) string {
	if f >= 0 && f < len(facilityNames) {
		return facilityNames[f]
	}
	return "unknown"
}

// SeverityName returns the human-readable severity name.
func SeverityName(s int) string {
	if s >= 0 && s < len(severityNames) {
		return severityNames[s]
	}
	return "unknown"
}
