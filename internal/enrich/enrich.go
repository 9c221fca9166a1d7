// Package enrich derives the security layer of a record: extracted
// addresses, threat scoring, categorical tags, identity fingerprint
// and normalized timestamps. Enrichment is pure per record and safe
// to run from any number of workers.
package enrich

import (
	"regexp"
	"strings"
	"time"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
)

// ipPattern finds dotted quads without validating octet ranges.
var ipPattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

// threatKeywords is scanned in order; threat_keywords reports matches
// in this order and the score counts them, ten points each.
var threatKeywords = []string{
	"exploit", "malware", "ransomware", "trojan", "backdoor",
	"injection", "xss", "sql injection", "ddos", "brute force",
	"unauthorized", "breach", "intrusion", "anomaly",
}

// timestampLayouts are tried in order when normalizing the timestamp
// a device put in its message.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"Jan _2 15:04:05",
}

// Enricher fills the enrichment layer of records.
type Enricher struct {
	now func() time.Time
}

// New returns an Enricher running on the wall clock.
func New() *Enricher {
	return &Enricher{now: time.Now}
}

// Enrich mutates r in place. Field order follows the pipeline
// contract: the fingerprint is computed over the fields as they
// arrived, before timestamp normalization rewrites them.
func (e *Enricher) Enrich(r *record.Record) {
	now := e.now().UTC()
	r.ProcessedAt = now.Format(record.TimeLayout)

	if ips := ipPattern.FindAllString(r.Message, -1); len(ips) > 0 {
		r.ExtractedIPs = ips
	}

	r.SeverityCategory = SeverityCategory(r.Severity)

	lower := strings.ToLower(r.Message)
	var found []string
	for _, kw := range threatKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	r.ThreatKeywords = found
	r.ThreatScore = min(10*len(found), 100)
	r.HasThreatIndicators = len(found) > 0

	var tags []string
	if r.HasThreatIndicators {
		tags = append(tags, "security")
	}
	if r.Severity <= 3 {
		tags = append(tags, "critical")
	}
	if strings.Contains(lower, "error") || strings.Contains(lower, "fail") {
		tags = append(tags, "error")
	}
	if strings.Contains(lower, "auth") || strings.Contains(lower, "login") {
		tags = append(tags, "authentication")
	}
	r.Tags = tags

	r.Fingerprint = record.Fingerprint(r.Hostname, r.AppName, r.Message, r.Facility, r.Severity)

	if norm, ok := e.normalizeTimestamp(r.Timestamp); ok {
		r.Timestamp = norm
		r.TimestampNormalized = norm
	} else {
		r.Timestamp = r.ReceivedAt
		r.TimestampNormalized = r.ReceivedAt
	}

	r.IndexDate = e.indexDate(r.ReceivedAt, now)
}

// SeverityCategory buckets a syslog severity. Lower severity numbers
// are more urgent, so the mapping is monotone.
func SeverityCategory(severity int) string {
	switch {
	case severity <= 2:
		return "critical"
	case severity <= 4:
		return "high"
	case severity == 5:
		return "medium"
	default:
		return "low"
	}
}

// normalizeTimestamp parses a device timestamp against the known
// layouts and rewrites it in the wire format. Year-less BSD stamps
// get the current year.
func (e *Enricher) normalizeTimestamp(ts string) (string, bool) {
	if ts == "" {
		return "", false
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, ts)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = t.AddDate(e.now().Year(), 0, 0)
		}
		return t.UTC().Format(record.TimeLayout), true
	}
	return "", false
}

// indexDate is the receive-side calendar date used for index routing.
func (e *Enricher) indexDate(receivedAt string, now time.Time) string {
	t, err := time.Parse(record.TimeLayout, receivedAt)
	if err != nil {
		t = now
	}
	return t.UTC().Format("2006.01.02")
}
