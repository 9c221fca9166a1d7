package rules

// DefaultRules builds the standard rule library. The library covers
// the severity floor, the threat scoring output, and the common attack
// families the enricher tags for. Keyword operators read the message
// case-insensitively; threat-keyword operators read the enricher's
// keyword list verbatim.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "critical_severity",
			Description: "Alert on critical severity logs (emergency, alert, critical)",
			Severity:    SeverityCritical,
			Enabled:     true,
			When:        SeverityLTE(2),
		},
		{
			Name:        "high_threat_score",
			Description: "Alert on logs with high threat score",
			Severity:    SeverityHigh,
			Enabled:     true,
			When:        ThreatScoreGTE(50),
		},
		{
			Name:        "auth_failure",
			Description: "Alert on authentication failures",
			Severity:    SeverityMedium,
			Enabled:     true,
			When: And(
				TagContains("authentication"),
				MessageContainsAny("failed", "failure", "denied", "rejected"),
			),
		},
		{
			Name:        "security_event",
			Description: "Alert on security-related events",
			Severity:    SeverityHigh,
			Enabled:     true,
			When: Or(
				TagContains("security"),
				HasThreatIndicators(),
			),
		},
		{
			Name:        "error_spike",
			Description: "Alert on error severity from specific host",
			Severity:    SeverityMedium,
			Enabled:     true,
			When: And(
				SeverityNameIs("error"),
				HostnamePresent(),
			),
		},
		{
			Name:        "brute_force",
			Description: "Alert on potential brute force attempts",
			Severity:    SeverityHigh,
			Enabled:     true,
			When: Or(
				MessageContains("brute force"),
				ThreatKeywordContains("brute_force"),
			),
		},
		{
			Name:        "malware_detected",
			Description: "Alert on malware-related keywords",
			Severity:    SeverityCritical,
			Enabled:     true,
			When:        MessageContainsAny("malware", "ransomware", "trojan", "virus"),
		},
		{
			Name:        "unauthorized_access",
			Description: "Alert on unauthorized access attempts",
			Severity:    SeverityHigh,
			Enabled:     true,
			When:        MessageContainsAny("unauthorized", "forbidden", "access denied"),
		},
		{
			Name:        "sql_injection",
			Description: "Alert on potential SQL injection attempts",
			Severity:    SeverityCritical,
			Enabled:     true,
			When: Or(
				MessageContains("sql injection"),
				ThreatKeywordContains("sql_injection"),
				MessageContainsAny("union select", "' or '1'='1", "drop table"),
			),
		},
		{
			Name:        "ddos_attack",
			Description: "Alert on DDoS attack indicators",
			Severity:    SeverityCritical,
			Enabled:     true,
			When: Or(
				MessageContains("ddos"),
				ThreatKeywordContains("ddos"),
			),
		},
	}
}
