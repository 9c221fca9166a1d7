package rules

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
)

func TestConditionMatch(t *testing.T) {
	rec := record.Record{
		Hostname:            "web",
		Message:             "Unauthorized LOGIN attempt from 10.0.0.1",
		Severity:            3,
		SeverityName:        "error",
		ThreatScore:         20,
		HasThreatIndicators: true,
		ThreatKeywords:      []string{"unauthorized"},
		Tags:                []string{"security", "authentication"},
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"severity at bound", SeverityLTE(3), true},
		{"severity below bound", SeverityLTE(2), false},
		{"severity name hit", SeverityNameIs("error"), true},
		{"severity name miss", SeverityNameIs("notice"), false},
		{"score at bound", ThreatScoreGTE(20), true},
		{"score above record", ThreatScoreGTE(21), false},
		{"tag present", TagContains("authentication"), true},
		{"tag absent", TagContains("critical"), false},
		{"keyword present", ThreatKeywordContains("unauthorized"), true},
		{"keyword absent", ThreatKeywordContains("ddos"), false},
		{"message case-insensitive", MessageContains("unauthorized login"), true},
		{"message miss", MessageContains("brute force"), false},
		{"any first hits", MessageContainsAny("unauthorized", "nope"), true},
		{"any later hits", MessageContainsAny("nope", "login"), true},
		{"any all miss", MessageContainsAny("nope", "never"), false},
		{"threat indicators", HasThreatIndicators(), true},
		{"hostname present", HostnamePresent(), true},
		{"and all true", And(SeverityLTE(3), TagContains("security")), true},
		{"and one false", And(SeverityLTE(3), TagContains("critical")), false},
		{"or one true", Or(TagContains("critical"), HostnamePresent()), true},
		{"or all false", Or(TagContains("critical"), MessageContains("ddos")), false},
		{"nested", Or(And(SeverityLTE(2), HostnamePresent()), ThreatKeywordContains("unauthorized")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Match(rec); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConditionMatchEmptyRecord(t *testing.T) {
	var rec record.Record
	if HostnamePresent().Match(rec) {
		t.Error("empty hostname matched HostnamePresent")
	}
	if HasThreatIndicators().Match(rec) {
		t.Error("zero record matched HasThreatIndicators")
	}
	// Severity zero is emergency; the floor rule must still catch it.
	if !SeverityLTE(2).Match(rec) {
		t.Error("severity 0 did not match SeverityLTE(2)")
	}
}

func TestConditionJSONRoundTrip(t *testing.T) {
	orig := Or(
		And(SeverityLTE(2), HostnamePresent()),
		MessageContainsAny("union select", "drop table"),
		ThreatKeywordContains("ddos"),
	)

	b, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Condition
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	rec := record.Record{Severity: 1, Hostname: "h"}
	if !back.Match(rec) {
		t.Error("round-tripped condition lost its semantics")
	}
	rec = record.Record{Severity: 6, Message: "DROP TABLE users"}
	if !back.Match(rec) {
		t.Error("round-tripped message_contains_any lost its values")
	}
}

func TestConditionDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unknown op", `{"op":"regex_match","value":"x"}`, "unknown condition op"},
		{"missing numeric", `{"op":"severity_lte","value":"three"}`, "numeric value"},
		{"missing string", `{"op":"tag_contains","value":3}`, "string value"},
		{"empty any list", `{"op":"message_contains_any"}`, "non-empty values"},
		{"empty and", `{"op":"and"}`, "child conditions"},
		{"bad nested", `{"op":"or","any":[{"op":"bogus"}]}`, "unknown condition op"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Condition
			err := json.Unmarshal([]byte(tt.in), &c)
			if err == nil {
				t.Fatal("decode accepted a bad condition")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestConditionNumbersDecodeAsInts(t *testing.T) {
	var c Condition
	if err := json.Unmarshal([]byte(`{"op":"threat_score_gte","value":50}`), &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !c.Match(record.Record{ThreatScore: 50}) {
		t.Error("decoded threshold did not match score 50")
	}
	if c.Match(record.Record{ThreatScore: 49}) {
		t.Error("decoded threshold matched score 49")
	}
}
