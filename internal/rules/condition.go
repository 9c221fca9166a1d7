// Package rules evaluates enriched records against an ordered set of
// alert rules. Rule conditions are data, not code: a small operator
// tree that round-trips through JSON, so the rule library can be
// replaced from a file without rebuilding.
package rules

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
)

// Condition operators.
const (
	OpSeverityLTE           = "severity_lte"
	OpSeverityNameIs        = "severity_name_is"
	OpThreatScoreGTE        = "threat_score_gte"
	OpTagContains           = "tag_contains"
	OpThreatKeywordContains = "threat_keyword_contains"
	OpMessageContains       = "message_contains"
	OpMessageContainsAny    = "message_contains_any"
	OpHasThreatIndicators   = "has_threat_indicators"
	OpHostnamePresent       = "hostname_present"
	OpAnd                   = "and"
	OpOr                    = "or"
)

// Condition is one node of a rule predicate. Message operators match
// case-insensitively. Zero Conditions are invalid; build nodes with
// the constructors or decode them from JSON.
type Condition struct {
	Op     string      `json:"op"`
	Value  any         `json:"value,omitempty"`
	Values []string    `json:"values,omitempty"`
	All    []Condition `json:"all,omitempty"`
	Any    []Condition `json:"any,omitempty"`
}

// SeverityLTE matches records at or below the given severity number.
func SeverityLTE(n int) Condition { return Condition{Op: OpSeverityLTE, Value: n} }

// SeverityNameIs matches records with exactly this severity name.
func SeverityNameIs(name string) Condition { return Condition{Op: OpSeverityNameIs, Value: name} }

// ThreatScoreGTE matches records at or above the given threat score.
func ThreatScoreGTE(n int) Condition { return Condition{Op: OpThreatScoreGTE, Value: n} }

// TagContains matches records tagged with the given tag.
func TagContains(tag string) Condition { return Condition{Op: OpTagContains, Value: tag} }

// ThreatKeywordContains matches records whose threat keywords include
// the given keyword.
func ThreatKeywordContains(kw string) Condition {
	return Condition{Op: OpThreatKeywordContains, Value: kw}
}

// MessageContains matches records whose message contains the substring.
func MessageContains(s string) Condition { return Condition{Op: OpMessageContains, Value: s} }

// MessageContainsAny matches records whose message contains any of the
// substrings.
func MessageContainsAny(values ...string) Condition {
	return Condition{Op: OpMessageContainsAny, Values: values}
}

// HasThreatIndicators matches records flagged by the threat scan.
func HasThreatIndicators() Condition { return Condition{Op: OpHasThreatIndicators} }

// HostnamePresent matches records that carry a hostname.
func HostnamePresent() Condition { return Condition{Op: OpHostnamePresent} }

// And matches when every child matches.
func And(all ...Condition) Condition { return Condition{Op: OpAnd, All: all} }

// Or matches when at least one child matches.
func Or(any ...Condition) Condition { return Condition{Op: OpOr, Any: any} }

// UnmarshalJSON decodes and validates a condition node. Unknown or
// malformed operators are decode errors, so a bad rule file fails at
// startup instead of during evaluation.
func (c *Condition) UnmarshalJSON(b []byte) error {
	type plain Condition
	var raw plain
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	cond := Condition(raw)
	if err := cond.validate(); err != nil {
		return err
	}
	*c = cond
	return nil
}

// validate checks the operator and its operand shape, coercing JSON
// numbers to ints where the operator needs one.
func (c *Condition) validate() error {
	switch c.Op {
	case OpSeverityLTE, OpThreatScoreGTE:
		switch v := c.Value.(type) {
		case int:
		case float64:
			c.Value = int(v)
		default:
			return fmt.Errorf("condition op %s needs a numeric value", c.Op)
		}
	case OpSeverityNameIs, OpTagContains, OpThreatKeywordContains, OpMessageContains:
		if _, ok := c.Value.(string); !ok {
			return fmt.Errorf("condition op %s needs a string value", c.Op)
		}
	case OpMessageContainsAny:
		if len(c.Values) == 0 {
			return fmt.Errorf("condition op %s needs a non-empty values list", c.Op)
		}
	case OpHasThreatIndicators, OpHostnamePresent:
	case OpAnd:
		if len(c.All) == 0 {
			return fmt.Errorf("condition op %s needs child conditions", c.Op)
		}
		for i := range c.All {
			if err := c.All[i].validate(); err != nil {
				return err
			}
		}
	case OpOr:
		if len(c.Any) == 0 {
			return fmt.Errorf("condition op %s needs child conditions", c.Op)
		}
		for i := range c.Any {
			if err := c.Any[i].validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown condition op %q", c.Op)
	}
	return nil
}

// Match reports whether the record satisfies the condition.
func (c Condition) Match(r record.Record) bool {
	switch c.Op {
	case OpSeverityLTE:
		return r.Severity <= c.intValue()
	case OpSeverityNameIs:
		return r.SeverityName == c.stringValue()
	case OpThreatScoreGTE:
		return r.ThreatScore >= c.intValue()
	case OpTagContains:
		return slices.Contains(r.Tags, c.stringValue())
	case OpThreatKeywordContains:
		return slices.Contains(r.ThreatKeywords, c.stringValue())
	case OpMessageContains:
		return containsLower(r.Message, c.stringValue())
	case OpMessageContainsAny:
		for _, v := range c.Values {
			if containsLower(r.Message, v) {
				return true
			}
		}
		return false
	case OpHasThreatIndicators:
		return r.HasThreatIndicators
	case OpHostnamePresent:
		return r.Hostname != ""
	case OpAnd:
		for _, child := range c.All {
			if !child.Match(r) {
				return false
			}
		}
		return true
	case OpOr:
		for _, child := range c.Any {
			if child.Match(r) {
				return true
			}
		}
		return false
	}
	return false
}

func containsLower(message, substr string) bool {
	return strings.Contains(strings.ToLower(message), strings.ToLower(substr))
}

func (c Condition) intValue() int {
	switch v := c.Value.(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func (c Condition) stringValue() string {
	s, _ := c.Value.(string)
	return s
}
