package record

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name               string
		hostname, app, msg string
		facility, severity int
		want               string
	}{
		{
			name:     "all empty",
			facility: 0, severity: 0,
			want: "f9af816a529706697b9022089c2b169e1363e92b3fbd0b968618b4013a8b2508",
		},
		{
			name:     "no app name",
			hostname: "web-server-01", msg: "Failed password for root",
			facility: 4, severity: 6,
			want: "96f43e1c9c7e2926cc5e3eddcbc5ef7cf1f7e54ea35cdb9b00fb2896d3bb64ad",
		},
		{
			name:     "full identity",
			hostname: "h", app: "app", msg: "msg",
			facility: 16, severity: 6,
			want: "d167f772ea240bf7252944c1bca5c085e0de06888dd2695ac08788e794593459",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(tt.hostname, tt.app, tt.msg, tt.facility, tt.severity)
			if got != tt.want {
				t.Errorf("Fingerprint = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("host", "app", "message", 16, 6)
	b := Fingerprint("host", "app", "message", 16, 6)
	if a != b {
		t.Fatalf("same identity hashed differently: %s vs %s", a, b)
	}
	if c := Fingerprint("host", "app", "message", 16, 7); c == a {
		t.Errorf("severity change did not change the fingerprint")
	}
	if c := Fingerprint("host", "app", "other", 16, 6); c == a {
		t.Errorf("message change did not change the fingerprint")
	}
}

// A record fresh off the receiver must not leak enrichment keys onto
// the wire.
func TestRawRecordWireShape(t *testing.T) {
	r := Record{
		Raw:          "<34>Oct 11 22:14:15 mymachine su: failed",
		ReceivedAt:   "2024-01-15T10:30:00Z",
		SourceIP:     "10.0.0.1",
		Protocol:     "udp",
		Priority:     34,
		Facility:     4,
		Severity:     2,
		FacilityName: "auth",
		SeverityName: "critical",
		Format:       "RFC3164",
		Timestamp:    "Oct 11 22:14:15",
		Hostname:     "mymachine",
		Tag:          "su",
		Message:      "failed",
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{
		"processed_at", "timestamp_normalized", "severity_category",
		"extracted_ips", "threat_keywords", "tags", "fingerprint",
		"_index_date", "version", "app_name", "proc_id", "msg_id",
		"structured_data", "pid",
	} {
		if _, ok := m[key]; ok {
			t.Errorf("raw record carries %q", key)
		}
	}
	for _, key := range []string{
		"raw", "received_at", "source_ip", "protocol", "priority",
		"facility", "severity", "facility_name", "severity_name",
		"format", "timestamp", "hostname", "tag", "message",
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("raw record is missing %q", key)
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	in := Record{
		Raw:                 "<134>1 2024-01-15T10:30:00Z h app - - - hit from 1.2.3.4",
		ReceivedAt:          "2024-01-15T10:30:01Z",
		SourceIP:            "192.168.1.10",
		Protocol:            "tcp",
		Priority:            134,
		Facility:            16,
		Severity:            6,
		FacilityName:        "local0",
		SeverityName:        "informational",
		Format:              "RFC5424",
		Version:             1,
		Timestamp:           "2024-01-15T10:30:00Z",
		Hostname:            "h",
		AppName:             "app",
		Message:             "hit from 1.2.3.4",
		ProcessedAt:         "2024-01-15T10:30:02Z",
		TimestampNormalized: "2024-01-15T10:30:00Z",
		SeverityCategory:    "low",
		ExtractedIPs:        []string{"1.2.3.4"},
		ThreatKeywords:      []string{"injection"},
		ThreatScore:         10,
		HasThreatIndicators: true,
		Tags:                []string{"security"},
		Fingerprint:         Fingerprint("h", "app", "hit from 1.2.3.4", 16, 6),
		IndexDate:           "2024.01.15",
	}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip changed the record:\n in %+v\nout %+v", in, out)
	}
}

// Decoding tolerates keys this build does not know about.
func TestRecordIgnoresUnknownKeys(t *testing.T) {
	payload := `{"message":"m","priority":13,"future_field":{"x":1}}`
	var r Record
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Message != "m" || r.Priority != 13 {
		t.Errorf("decoded record = %+v", r)
	}
}
