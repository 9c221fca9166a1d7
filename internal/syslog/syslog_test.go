package syslog

import (
	"strings"
	"testing"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantPri  Priority
		wantRest string
		wantOK   bool
	}{
		{"valid low", "<0>rest", 0, "rest", true},
		{"valid high", "<191>rest", 191, "rest", true},
		{"user notice", "<13>msg", 13, "msg", true},
		{"out of range", "<192>msg", 0, "<192>msg", false},
		{"way out of range", "<999>msg", 0, "<999>msg", false},
		{"negative", "<-1>msg", 0, "<-1>msg", false},
		{"no bracket", "13>msg", 0, "13>msg", false},
		{"unterminated", "<13 msg", 0, "<13 msg", false},
		{"empty pri", "<>msg", 0, "<>msg", false},
		{"not a number", "<ab>msg", 0, "<ab>msg", false},
		{"too short", "<1", 0, "<1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pri, rest, ok := parsePriority(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("parsePriority(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if pri != tt.wantPri {
				t.Errorf("priority = %d, want %d", pri, tt.wantPri)
			}
			if rest != tt.wantRest {
				t.Errorf("rest = %q, want %q", rest, tt.wantRest)
			}
		})
	}
}

func TestPriorityComponents(t *testing.T) {
	tests := []struct {
		pri      Priority
		facility int
		severity int
	}{
		{0, 0, 0},
		{13, 1, 5},
		{134, 16, 6},
		{131, 16, 3},
		{85, 10, 5},
		{191, 23, 7},
	}
	for _, tt := range tests {
		if got := tt.pri.Facility(); got != tt.facility {
			t.Errorf("Priority(%d).Facility() = %d, want %d", tt.pri, got, tt.facility)
		}
		if got := tt.pri.Severity(); got != tt.severity {
			t.Errorf("Priority(%d).Severity() = %d, want %d", tt.pri, got, tt.severity)
		}
	}
}

func TestParseRFC5424(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Message
	}{
		{
			name:  "full message",
			input: "<134>1 2024-01-15T10:30:00.000Z h app pid - - msg",
			want: Message{
				Priority:  134,
				Version:   1,
				Timestamp: "2024-01-15T10:30:00.000Z",
				Hostname:  "h",
				AppName:   "app",
				ProcID:    "pid",
				Message:   "msg",
				Format:    FormatRFC5424,
			},
		},
		{
			name:  "nil values",
			input: "<165>1 2024-01-15T10:30:00Z host - - - - body here",
			want: Message{
				Priority:  165,
				Version:   1,
				Timestamp: "2024-01-15T10:30:00Z",
				Hostname:  "host",
				Message:   "body here",
				Format:    FormatRFC5424,
			},
		},
		{
			name:  "structured data with spaces",
			input: `<165>1 2003-10-11T22:14:15.003Z mymachine evntslog 123 ID47 [exampleSDID@32473 iut="3" eventSource="Application"] BOMAn application event`,
			want: Message{
				Priority:       165,
				Version:        1,
				Timestamp:      "2003-10-11T22:14:15.003Z",
				Hostname:       "mymachine",
				AppName:        "evntslog",
				ProcID:         "123",
				MsgID:          "ID47",
				StructuredData: `[exampleSDID@32473 iut="3" eventSource="Application"]`,
				Message:        "BOMAn application event",
				Format:         FormatRFC5424,
			},
		},
		{
			name:  "multiple structured data sections",
			input: `<165>1 2003-10-11T22:14:15Z m app - - [a b="c"][d e="f"] tail`,
			want: Message{
				Priority:       165,
				Version:        1,
				Timestamp:      "2003-10-11T22:14:15Z",
				Hostname:       "m",
				AppName:        "app",
				StructuredData: `[a b="c"][d e="f"]`,
				Message:        "tail",
				Format:         FormatRFC5424,
			},
		},
		{
			name:  "empty message",
			input: "<34>1 2024-01-15T10:30:00Z h app - - -",
			want: Message{
				Priority:  34,
				Version:   1,
				Timestamp: "2024-01-15T10:30:00Z",
				Hostname:  "h",
				AppName:   "app",
				Format:    FormatRFC5424,
			},
		},
		{
			name:  "message spans newlines",
			input: "<34>1 2024-01-15T10:30:00Z h app - - - line one\nline two",
			want: Message{
				Priority:  34,
				Version:   1,
				Timestamp: "2024-01-15T10:30:00Z",
				Hostname:  "h",
				AppName:   "app",
				Message:   "line one\nline two",
				Format:    FormatRFC5424,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got != tt.want {
				t.Errorf("Parse(%q) =\n  %+v\nwant\n  %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRFC3164(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Message
	}{
		{
			name:  "classic with tag and pid",
			input: "<134>Jan 15 10:30:00 web sshd[42]: Accepted password for root",
			want: Message{
				Priority:  134,
				Timestamp: "Jan 15 10:30:00",
				Hostname:  "web",
				Tag:       "sshd",
				PID:       "42",
				Message:   "Accepted password for root",
				Format:    FormatRFC3164,
			},
		},
		{
			name:  "tag without pid",
			input: "<34>Oct 11 22:14:15 mymachine su: 'su root' failed for lonvick on /dev/pts/8",
			want: Message{
				Priority:  34,
				Timestamp: "Oct 11 22:14:15",
				Hostname:  "mymachine",
				Tag:       "su",
				Message:   "'su root' failed for lonvick on /dev/pts/8",
				Format:    FormatRFC3164,
			},
		},
		{
			name:  "no tag",
			input: "<13>Feb  5 17:32:18 10.0.0.99 Use the BFG!",
			want: Message{
				Priority:  13,
				Timestamp: "Feb  5 17:32:18",
				Hostname:  "10.0.0.99",
				Message:   "Use the BFG!",
				Format:    FormatRFC3164,
			},
		},
		{
			name:  "iso timestamp with zone",
			input: "<85>2024-01-15 10:30:00+02:00 fw1 kernel: link down",
			want: Message{
				Priority:  85,
				Timestamp: "2024-01-15 10:30:00+02:00",
				Hostname:  "fw1",
				Tag:       "kernel",
				Message:   "link down",
				Format:    FormatRFC3164,
			},
		},
		{
			name:  "iso timestamp without zone",
			input: "<85>2024-01-15 10:30:00 fw1 dropped packet",
			want: Message{
				Priority:  85,
				Timestamp: "2024-01-15 10:30:00",
				Hostname:  "fw1",
				Message:   "dropped packet",
				Format:    FormatRFC3164,
			},
		},
		{
			name:  "opaque timestamp token",
			input: "<13>2024-01-15T10:30:00Z host hello world",
			want: Message{
				Priority:  13,
				Timestamp: "2024-01-15T10:30:00Z",
				Hostname:  "host",
				Message:   "hello world",
				Format:    FormatRFC3164,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got != tt.want {
				t.Errorf("Parse(%q) =\n  %+v\nwant\n  %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFallback(t *testing.T) {
	inputs := []string{
		"not a syslog message",
		"",
		"<192>1 2024-01-15T10:30:00Z h app - - - out of range",
		"<13>",
		"<13>loneword",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			got := Parse(input)
			if got.Format != FormatUnknown {
				t.Errorf("format = %q, want %q", got.Format, FormatUnknown)
			}
			if got.Priority != FallbackPriority {
				t.Errorf("priority = %d, want %d", got.Priority, FallbackPriority)
			}
			if got.Priority.Facility() != 1 || got.Priority.Severity() != 5 {
				t.Errorf("facility/severity = %d/%d, want 1/5",
					got.Priority.Facility(), got.Priority.Severity())
			}
			if got.Message != input {
				t.Errorf("message = %q, want the raw input", got.Message)
			}
		})
	}
}

// Parse must always yield a known format and an in-range priority, no
// matter the input.
func TestParseTotality(t *testing.T) {
	inputs := []string{
		"<1>",
		"<1>x",
		"<13>a b",
		"<13>a b c",
		"<<>><<",
		strings.Repeat("x", 9000),
		"<165>1 - - - - - -",
		"<165>1 - - - - - [unterminated",
		"\x00\xff\xfe",
	}
	for _, input := range inputs {
		got := Parse(input)
		switch got.Format {
		case FormatRFC5424, FormatRFC3164, FormatUnknown:
		default:
			t.Errorf("Parse(%q) format = %q, not a known format", input, got.Format)
		}
		if !got.Priority.Valid() {
			t.Errorf("Parse(%q) priority = %d, out of range", input, got.Priority)
		}
	}
}

func TestFacilityName(t *testing.T) {
	tests := []struct {
		f    int
		want string
	}{
		{0, "kern"}, {1, "user"}, {10, "authpriv"}, {13, "security"},
		{14, "console"}, {15, "solaris-cron"}, {16, "local0"}, {23, "local7"},
		{24, "unknown"}, {-1, "unknown"},
	}
	for _, tt := range tests {
		if got := FacilityName(tt.f); got != tt.want {
			t.Errorf("FacilityName(%d) = %q, want %q", tt.f, got, tt.want)
		}
	}
}

func TestSeverityName(t *testing.T) {
	tests := []struct {
		s    int
		want string
	}{
		{0, "emergency"}, {2, "critical"}, {3, "error"}, {5, "notice"},
		{6, "informational"}, {7, "debug"}, {8, "unknown"}, {-1, "unknown"},
	}
	for _, tt := range tests {
		if got := SeverityName(tt.s); got != tt.want {
			t.Errorf("SeverityName(%d) = %q, want %q", tt.s, got, tt.want)
		}
	}
}
