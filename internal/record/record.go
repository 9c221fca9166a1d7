// Package record defines the envelopes that cross stage boundaries:
// the log record published to the bus and indexed in the store, and
// the alert emitted by the rule engine.
//
// Records travel as flat JSON objects with snake_case keys. One struct
// covers every stage; fields a stage has not filled in yet are omitted
// from the wire where their zero value would be noise. Unknown keys
// are ignored on decode.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// TimeLayout is the wire format for record timestamps: UTC ISO-8601.
const TimeLayout = time.RFC3339Nano

// UTCNow returns the current time in the wire format.
func UTCNow() string {
	return time.Now().UTC().Format(TimeLayout)
}

// Record is one log message as it moves through the pipeline. The
// receiver fills the raw layer, the processor adds the enrichment
// layer.
type Record struct {
	// Raw layer, set by the receiver.
	Raw            string `json:"raw"`
	ReceivedAt     string `json:"received_at"`
	SourceIP       string `json:"source_ip"`
	Protocol       string `json:"protocol"`
	Priority       int    `json:"priority"`
	Facility       int    `json:"facility"`
	Severity       int    `json:"severity"`
	FacilityName   string `json:"facility_name"`
	SeverityName   string `json:"severity_name"`
	Format         string `json:"format"`
	Version        int    `json:"version,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
	Hostname       string `json:"hostname,omitempty"`
	AppName        string `json:"app_name,omitempty"`
	ProcID         string `json:"proc_id,omitempty"`
	MsgID          string `json:"msg_id,omitempty"`
	StructuredData string `json:"structured_data,omitempty"`
	Tag            string `json:"tag,omitempty"`
	PID            string `json:"pid,omitempty"`
	Message        string `json:"message"`

	// Enrichment layer, set by the processor.
	ProcessedAt         string   `json:"processed_at,omitempty"`
	TimestampNormalized string   `json:"timestamp_normalized,omitempty"`
	SeverityCategory    string   `json:"severity_category,omitempty"`
	ExtractedIPs        []string `json:"extracted_ips,omitempty"`
	ThreatKeywords      []string `json:"threat_keywords,omitempty"`
	ThreatScore         int      `json:"threat_score"`
	HasThreatIndicators bool     `json:"has_threat_indicators"`
	Tags                []string `json:"tags,omitempty"`
	Fingerprint         string   `json:"fingerprint,omitempty"`
	IndexDate           string   `json:"_index_date,omitempty"`
}

// Fingerprint hashes the identity of a record before enrichment:
// sha256 over hostname, app name, message, facility and severity,
// pipe-joined. Two records carrying the same five values hash the
// same no matter where or when they were received.
func Fingerprint(hostname, appName, message string, facility, severity int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%d|%d",
		hostname, appName, message, facility, severity))
	return hex.EncodeToString(sum[:])
}

// Alert is one triggered rule match, published to the alerts topic
// and handed to the delivery sinks.
type Alert struct {
	RuleName    string `json:"rule_name"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Timestamp   string `json:"timestamp"`
	LogData     Record `json:"log_data"`
}
