package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReceiverDefaults(t *testing.T) {
	c, err := LoadReceiver()
	if err != nil {
		t.Fatalf("LoadReceiver: %v", err)
	}
	if c.BindAddr != "0.0.0.0" {
		t.Errorf("BindAddr = %q", c.BindAddr)
	}
	if c.UDPPort != 514 || c.TCPPort != 514 || c.TLSPort != 6514 {
		t.Errorf("ports = %d/%d/%d", c.UDPPort, c.TCPPort, c.TLSPort)
	}
	if !c.TLSEnabled {
		t.Error("TLSEnabled = false")
	}
	if c.MaxMessageSize != 8192 {
		t.Errorf("MaxMessageSize = %d", c.MaxMessageSize)
	}
	if c.Workers != 4 {
		t.Errorf("Workers = %d", c.Workers)
	}
	if c.MetricsPort != 9100 {
		t.Errorf("MetricsPort = %d", c.MetricsPort)
	}
	if len(c.Brokers) != 1 || c.Brokers[0] != "localhost:9092" {
		t.Errorf("Brokers = %v", c.Brokers)
	}
	if c.TopicRawLogs != "raw-logs" {
		t.Errorf("TopicRawLogs = %q", c.TopicRawLogs)
	}
}

func TestLoadReceiverOverrides(t *testing.T) {
	t.Setenv("RECEIVER_UDP_PORT", "5514")
	t.Setenv("RECEIVER_TLS_ENABLED", "false")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "k1:9092, k2:9092")
	t.Setenv("PROMETHEUS_PORT", "9900")

	c, err := LoadReceiver()
	if err != nil {
		t.Fatalf("LoadReceiver: %v", err)
	}
	if c.UDPPort != 5514 {
		t.Errorf("UDPPort = %d", c.UDPPort)
	}
	if c.TLSEnabled {
		t.Error("TLSEnabled = true")
	}
	if len(c.Brokers) != 2 || c.Brokers[1] != "k2:9092" {
		t.Errorf("Brokers = %v", c.Brokers)
	}
	if c.MetricsPort != 9900 {
		t.Errorf("MetricsPort = %d", c.MetricsPort)
	}
}

func TestLoadReceiverBadValue(t *testing.T) {
	t.Setenv("RECEIVER_UDP_PORT", "not-a-port")
	if _, err := LoadReceiver(); err == nil {
		t.Fatal("bad integer accepted")
	}

	t.Setenv("RECEIVER_UDP_PORT", "70000")
	if _, err := LoadReceiver(); err == nil {
		t.Fatal("out-of-range port accepted")
	}
}

func TestLoadProcessorDefaults(t *testing.T) {
	c, err := LoadProcessor()
	if err != nil {
		t.Fatalf("LoadProcessor: %v", err)
	}
	if c.ConsumerGroup != "processor" {
		t.Errorf("ConsumerGroup = %q", c.ConsumerGroup)
	}
	if c.Workers != 4 {
		t.Errorf("Workers = %d", c.Workers)
	}
	s := c.Search
	if s.IndexPrefix != "cybersentinel-logs" || s.IndexRotation != "daily" {
		t.Errorf("index prefix/rotation = %q/%q", s.IndexPrefix, s.IndexRotation)
	}
	if s.BulkSize != 500 || s.BulkTimeout != 30*time.Second || s.MaxRetries != 3 {
		t.Errorf("bulk = %d/%v/%d", s.BulkSize, s.BulkTimeout, s.MaxRetries)
	}
	if s.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d", s.RetentionDays)
	}
	if c.MetricsPort != 9101 {
		t.Errorf("MetricsPort = %d", c.MetricsPort)
	}
}

func TestLoadAlertingDefaults(t *testing.T) {
	c, err := LoadAlerting()
	if err != nil {
		t.Fatalf("LoadAlerting: %v", err)
	}
	if c.ConsumerGroup != "alerting" {
		t.Errorf("ConsumerGroup = %q", c.ConsumerGroup)
	}
	if c.RedisAddr() != "localhost:6379" {
		t.Errorf("RedisAddr = %q", c.RedisAddr())
	}
	if c.DedupTTL != time.Hour {
		t.Errorf("DedupTTL = %v", c.DedupTTL)
	}
	if c.EmailEnabled() || c.SlackEnabled() {
		t.Error("sinks enabled without configuration")
	}
	if c.MetricsPort != 9103 {
		t.Errorf("MetricsPort = %d", c.MetricsPort)
	}
}

func TestLoadAlertingEmailValidation(t *testing.T) {
	t.Setenv("ALERTING_SMTP_HOST", "smtp.example.com")
	if _, err := LoadAlerting(); err == nil {
		t.Fatal("SMTP host without sender/recipients accepted")
	}

	t.Setenv("ALERTING_FROM_EMAIL", "alerts@example.com")
	t.Setenv("ALERTING_TO_EMAILS", "a@example.com, b@example.com")
	c, err := LoadAlerting()
	if err != nil {
		t.Fatalf("LoadAlerting: %v", err)
	}
	if !c.EmailEnabled() {
		t.Error("EmailEnabled = false")
	}
	if len(c.ToEmails) != 2 {
		t.Errorf("ToEmails = %v", c.ToEmails)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("RECEIVER_UDP_PORT=1514\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("RECEIVER_UDP_PORT") })

	c, err := LoadReceiver()
	if err != nil {
		t.Fatal(err)
	}
	if c.UDPPort != 1514 {
		t.Errorf("UDPPort = %d", c.UDPPort)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing env file reported: %v", err)
	}
	if err := LoadEnvFile(""); err != nil {
		t.Fatalf("empty path reported: %v", err)
	}
}
