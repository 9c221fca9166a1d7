package syslog

import "strings"

// parseRFC5424 parses the IETF format after an already-consumed <PRI>:
// VERSION TIMESTAMP HOSTNAME APP-NAME PROCID MSGID SD [MSG], fields
// separated by whitespace runs. SD is "-" or one or more bracketed
// sections back to back.
func parseRFC5424(pri Priority, s string) (Message, bool) {
	c := cursor{s: s}

	verStart := c.i
	if !c.digits(1, 10) {
		return Message{}, false
	}
	version := atoi(s[verStart:c.i])

	var fields [5]string // TIMESTAMP HOSTNAME APP-NAME PROCID MSGID
	for k := range fields {
		if !c.space() {
			return Message{}, false
		}
		tok := c.token()
		if tok == "" {
			return Message{}, false
		}
		fields[k] = tok
	}

	if !c.space() {
		return Message{}, false
	}
	sd, ok := c.structuredData()
	if !ok {
		return Message{}, false
	}
	c.space() // optional separator before MSG

	return Message{
		Priority:       pri,
		Version:        version,
		Timestamp:      fields[0],
		Hostname:       fields[1],
		AppName:        nilValue(fields[2]),
		ProcID:         nilValue(fields[3]),
		MsgID:          nilValue(fields[4]),
		StructuredData: nilValue(sd),
		Message:        strings.TrimSpace(c.rest()),
		Format:         FormatRFC5424,
	}, true
}

// parseRFC3164 parses the BSD format after an already-consumed <PRI>:
// TIMESTAMP HOSTNAME [TAG[PID]:] MSG. The timestamp accepts the BSD
// shape, ISO-8601 with a space separator (with or without a zone
// offset), or any single non-whitespace token; shapes are tried in
// that order and a shape whose tail does not complete yields to the
// next one.
func parseRFC3164(pri Priority, s string) (Message, bool) {
	for _, ts := range timestampShapes(s) {
		if m, ok := parse3164Tail(pri, ts, s[len(ts):]); ok {
			return m, true
		}
	}
	return Message{}, false
}

func timestampShapes(s string) []string {
	var shapes []string
	if t := bsdStamp(s); t != "" {
		shapes = append(shapes, t)
	}
	if t := isoStamp(s, true); t != "" {
		shapes = append(shapes, t)
	}
	if t := isoStamp(s, false); t != "" {
		shapes = append(shapes, t)
	}
	if t := firstToken(s); t != "" {
		shapes = append(shapes, t)
	}
	return shapes
}

func parse3164Tail(pri Priority, ts, s string) (Message, bool) {
	c := cursor{s: s}
	if !c.space() {
		return Message{}, false
	}

	hostname := c.token()
	if hostname == "" {
		return Message{}, false
	}
	if !c.space() {
		return Message{}, false
	}

	tag, pid := c.tag()

	return Message{
		Priority:  pri,
		Timestamp: ts,
		Hostname:  hostname,
		Tag:       tag,
		PID:       pid,
		Message:   strings.TrimSpace(c.rest()),
		Format:    FormatRFC3164,
	}, true
}

// bsdStamp matches "Mon DD HH:MM:SS" with flexible inner spacing and
// returns the matched prefix, or "".
func bsdStamp(s string) string {
	c := cursor{s: s}
	if c.word(3) && c.space() && c.digits(1, 2) && c.space() && c.clock() {
		return s[:c.i]
	}
	return ""
}

// isoStamp matches "YYYY-MM-DD HH:MM:SS" with an optional mandatory
// zone offset and returns the matched prefix, or "".
func isoStamp(s string, zone bool) string {
	c := cursor{s: s}
	if !(c.digits(4, 4) && c.byte('-') && c.digits(2, 2) && c.byte('-') && c.digits(2, 2) &&
		c.space() && c.clock()) {
		return ""
	}
	if zone {
		if !c.byte('+') && !c.byte('-') {
			return ""
		}
		if !(c.digits(2, 2) && c.byte(':') && c.digits(2, 2)) {
			return ""
		}
	}
	return s[:c.i]
}

func firstToken(s string) string {
	c := cursor{s: s}
	return c.token()
}

// cursor is a forward-only scanner over a message tail. Matching
// methods consume input on success and leave the position untouched on
// failure.
type cursor struct {
	s string
	i int
}

func (c *cursor) rest() string { return c.s[c.i:] }

// space consumes a whitespace run and reports whether at least one
// byte was consumed.
func (c *cursor) space() bool {
	start := c.i
	for c.i < len(c.s) && isSpace(c.s[c.i]) {
		c.i++
	}
	return c.i > start
}

// digits consumes between min and max decimal digits.
func (c *cursor) digits(min, max int) bool {
	start := c.i
	for c.i < len(c.s) && c.i-start < max && isDigit(c.s[c.i]) {
		c.i++
	}
	if c.i-start < min {
		c.i = start
		return false
	}
	return true
}

// word consumes exactly n word characters (letters, digits, underscore).
func (c *cursor) word(n int) bool {
	start := c.i
	for c.i < len(c.s) && c.i-start < n && isWord(c.s[c.i]) {
		c.i++
	}
	if c.i-start < n {
		c.i = start
		return false
	}
	return true
}

func (c *cursor) byte(b byte) bool {
	if c.i < len(c.s) && c.s[c.i] == b {
		c.i++
		return true
	}
	return false
}

// clock consumes HH:MM:SS.
func (c *cursor) clock() bool {
	start := c.i
	if c.digits(2, 2) && c.byte(':') && c.digits(2, 2) && c.byte(':') && c.digits(2, 2) {
		return true
	}
	c.i = start
	return false
}

// token consumes a run of non-whitespace bytes.
func (c *cursor) token() string {
	start := c.i
	for c.i < len(c.s) && !isSpace(c.s[c.i]) {
		c.i++
	}
	return c.s[start:c.i]
}

// structuredData consumes "-" or one or more "[...]" sections, each
// closed at the first "]". At least one element must be consumed.
func (c *cursor) structuredData() (string, bool) {
	start := c.i
	for c.i < len(c.s) {
		switch c.s[c.i] {
		case '-':
			c.i++
			continue
		case '[':
			end := strings.IndexByte(c.s[c.i+1:], ']')
			if end < 0 {
				// Unterminated section: stop before it.
				goto done
			}
			c.i += end + 2
			continue
		}
		break
	}
done:
	if c.i == start {
		return "", false
	}
	return c.s[start:c.i], true
}

// tag consumes an optional "TAG[PID]:" prefix followed by optional
// whitespace. A trailing bracketed digit run inside the tag token is
// split out as the PID. Without a terminating colon nothing is
// consumed.
func (c *cursor) tag() (tag, pid string) {
	start := c.i
	for c.i < len(c.s) && c.s[c.i] != ':' && !isSpace(c.s[c.i]) {
		c.i++
	}
	if c.i == start || c.i >= len(c.s) || c.s[c.i] != ':' {
		c.i = start
		return "", ""
	}
	tag = c.s[start:c.i]
	c.i++ // colon
	c.space()

	if k := strings.LastIndexByte(tag, '['); k >= 0 && strings.HasSuffix(tag, "]") {
		if num := tag[k+1 : len(tag)-1]; num != "" && isDigits(num) {
			return tag[:k], num
		}
	}
	return tag, ""
}

func nilValue(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isWord(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || isDigit(b) || b == '_'
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
