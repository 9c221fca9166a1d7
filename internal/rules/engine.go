package rules

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
)

// Alert severities a rule may carry.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

func validSeverity(s string) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Rule is one alert rule. Name is unique within an engine. A disabled
// rule stays in the set but never matches.
type Rule struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	Enabled     bool      `json:"enabled"`
	When        Condition `json:"when"`
}

// UnmarshalJSON decodes a rule, defaulting enabled to true when the
// key is absent so rule files only spell out the exceptions.
func (r *Rule) UnmarshalJSON(b []byte) error {
	type plain Rule
	raw := struct {
		plain
		Enabled *bool `json:"enabled"`
	}{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Rule(raw.plain)
	r.Enabled = raw.Enabled == nil || *raw.Enabled
	return r.Validate()
}

// Validate checks the fields a rule needs before it can be evaluated.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule needs a name")
	}
	if !validSeverity(r.Severity) {
		return fmt.Errorf("rule %s: unknown severity %q", r.Name, r.Severity)
	}
	if r.When.Op == "" {
		return fmt.Errorf("rule %s: missing condition", r.Name)
	}
	return r.When.validate()
}

// Summary is the mutable surface of a rule, without its condition.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Enabled     bool   `json:"enabled"`
}

// Engine evaluates records against an ordered rule set. Evaluation is
// read-only and safe from any number of workers; mutation goes through
// Add, Remove, Enable and Disable.
type Engine struct {
	logger *slog.Logger

	mu    sync.RWMutex
	rules []Rule
}

// NewEngine returns an engine loaded with the default rule library.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		logger: logging.Default(logger).With("component", "rules"),
		rules:  DefaultRules(),
	}
}

// Add appends a rule to the end of the set. Names are unique; adding
// a name that exists is an error.
func (e *Engine) Add(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].Name == r.Name {
			return fmt.Errorf("rule %s already exists", r.Name)
		}
	}
	e.rules = append(e.rules, r)
	e.logger.Info("alert rule added", "rule", r.Name)
	return nil
}

// Remove deletes a rule by name, reporting whether it was present.
func (e *Engine) Remove(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].Name == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			e.logger.Info("alert rule removed", "rule", name)
			return true
		}
	}
	return false
}

// Enable turns a rule on by name, reporting whether it was found.
func (e *Engine) Enable(name string) bool { return e.setEnabled(name, true) }

// Disable turns a rule off by name, reporting whether it was found.
func (e *Engine) Disable(name string) bool { return e.setEnabled(name, false) }

func (e *Engine) setEnabled(name string, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].Name == name {
			e.rules[i].Enabled = enabled
			e.logger.Info("alert rule toggled", "rule", name, "enabled", enabled)
			return true
		}
	}
	return false
}

// Replace swaps the whole rule set. Used at startup when a rule file
// overrides the default library. All-or-nothing: one invalid rule
// rejects the set.
func (e *Engine) Replace(rules []Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate rule name %s", r.Name)
		}
		seen[r.Name] = true
	}

	e.mu.Lock()
	e.rules = append([]Rule(nil), rules...)
	e.mu.Unlock()
	e.logger.Info("rule set replaced", "rules", len(rules))
	return nil
}

// Rules returns a snapshot of the rule set, in evaluation order.
func (e *Engine) Rules() []Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Summary, len(e.rules))
	for i, r := range e.rules {
		out[i] = Summary{Name: r.Name, Description: r.Description, Severity: r.Severity, Enabled: r.Enabled}
	}
	return out
}

// Evaluate returns every enabled rule the record matches, in set
// order. A rule whose condition blows up is logged and skipped; it
// never stops evaluation of the rules after it.
func (e *Engine) Evaluate(r record.Record) []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var triggered []Rule
	for i := range e.rules {
		if !e.rules[i].Enabled {
			continue
		}
		if e.match(e.rules[i], r) {
			triggered = append(triggered, e.rules[i])
		}
	}
	return triggered
}

// match isolates one rule's evaluation. Condition trees are plain data
// and should not panic, but a broken rule must not take the rest of
// the set down with it.
func (e *Engine) match(rule Rule, r record.Record) (matched bool) {
	defer func() {
		if v := recover(); v != nil {
			e.logger.Error("rule evaluation failed", "rule", rule.Name, "panic", v)
			matched = false
		}
	}()
	return rule.When.Match(r)
}

// LoadFile reads a JSON array of rules. A file that does not parse or
// carries an invalid rule is a startup error.
func LoadFile(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(b, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rules file %s is empty", path)
	}
	return rules, nil
}
