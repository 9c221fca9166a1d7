// Package config loads per-stage configuration from the environment.
// Every knob has a default; UPPER_SNAKE env keys override. A .env file
// can seed the environment via LoadEnvFile. Bad values are startup
// errors, never silent fallbacks.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnvFile seeds the environment from a dotenv file. A missing file
// is not an error; variables already set in the environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// env reads typed environment variables, remembering the first bad
// value so loaders can report one error at the end.
type env struct {
	err error
}

func (e *env) String(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func (e *env) Int(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(key, v)
		return def
	}
	return n
}

func (e *env) Bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.fail(key, v)
		return def
	}
	return b
}

// CSV splits a comma-separated value, trimming whitespace and dropping
// empty elements.
func (e *env) CSV(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e *env) fail(key, value string) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid value %q for %s", value, key)
	}
}

// Shared is the configuration every stage carries.
type Shared struct {
	Environment        string
	LogLevel           string
	Brokers            []string
	TopicRawLogs       string
	TopicProcessedLogs string
	TopicAlerts        string
	MetricsPort        int
}

func loadShared(e *env, metricsPort int) Shared {
	return Shared{
		Environment:        e.String("ENVIRONMENT", "production"),
		LogLevel:           e.String("LOG_LEVEL", "info"),
		Brokers:            e.CSV("KAFKA_BOOTSTRAP_SERVERS", []string{"localhost:9092"}),
		TopicRawLogs:       e.String("KAFKA_TOPIC_RAW_LOGS", "raw-logs"),
		TopicProcessedLogs: e.String("KAFKA_TOPIC_PROCESSED_LOGS", "processed-logs"),
		TopicAlerts:        e.String("KAFKA_TOPIC_ALERTS", "alerts"),
		MetricsPort:        e.Int("PROMETHEUS_PORT", metricsPort),
	}
}

func (c Shared) validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("KAFKA_BOOTSTRAP_SERVERS must name at least one broker")
	}
	return checkPort("PROMETHEUS_PORT", c.MetricsPort)
}

// Receiver configures the ingest stage.
type Receiver struct {
	Shared

	BindAddr       string
	UDPPort        int
	TCPPort        int
	TLSPort        int
	TLSEnabled     bool
	TLSCertPath    string
	TLSKeyPath     string
	MaxMessageSize int
	Workers        int
}

// LoadReceiver reads and validates the ingest stage configuration.
func LoadReceiver() (Receiver, error) {
	e := &env{}
	c := Receiver{
		Shared:         loadShared(e, 9100),
		BindAddr:       e.String("RECEIVER_BIND_ADDR", "0.0.0.0"),
		UDPPort:        e.Int("RECEIVER_UDP_PORT", 514),
		TCPPort:        e.Int("RECEIVER_TCP_PORT", 514),
		TLSPort:        e.Int("RECEIVER_TLS_PORT", 6514),
		TLSEnabled:     e.Bool("RECEIVER_TLS_ENABLED", true),
		TLSCertPath:    e.String("RECEIVER_TLS_CERT_PATH", "/certs/server.crt"),
		TLSKeyPath:     e.String("RECEIVER_TLS_KEY_PATH", "/certs/server.key"),
		MaxMessageSize: e.Int("RECEIVER_MAX_MESSAGE_SIZE", 8192),
		Workers:        e.Int("RECEIVER_WORKERS", 4),
	}
	if e.err != nil {
		return Receiver{}, e.err
	}
	return c, c.Validate()
}

// Validate enforces ranges; violations abort startup.
func (c Receiver) Validate() error {
	if err := c.Shared.validate(); err != nil {
		return err
	}
	for key, port := range map[string]int{
		"RECEIVER_UDP_PORT": c.UDPPort,
		"RECEIVER_TCP_PORT": c.TCPPort,
		"RECEIVER_TLS_PORT": c.TLSPort,
	} {
		if err := checkPort(key, port); err != nil {
			return err
		}
	}
	if c.MaxMessageSize < 1 {
		return errors.New("RECEIVER_MAX_MESSAGE_SIZE must be positive")
	}
	if c.Workers < 1 {
		return errors.New("RECEIVER_WORKERS must be positive")
	}
	return nil
}

// Search configures the document store client.
type Search struct {
	Addresses     []string
	User          string
	Password      string
	IndexPrefix   string
	IndexRotation string
	BulkSize      int
	BulkTimeout   time.Duration
	MaxRetries    int
	RetentionDays int
}

// Processor configures the enrich stage.
type Processor struct {
	Shared

	ConsumerGroup string
	Workers       int
	Search        Search
}

// LoadProcessor reads and validates the enrich stage configuration.
func LoadProcessor() (Processor, error) {
	e := &env{}
	c := Processor{
		Shared:        loadShared(e, 9101),
		ConsumerGroup: e.String("KAFKA_CONSUMER_GROUP_PROCESSOR", "processor"),
		Workers:       e.Int("PROCESSOR_WORKERS", 4),
		Search: Search{
			Addresses:     e.CSV("SEARCH_ADDRESSES", []string{"http://localhost:9200"}),
			User:          e.String("SEARCH_USER", ""),
			Password:      e.String("SEARCH_PASSWORD", ""),
			IndexPrefix:   e.String("SEARCH_INDEX_PREFIX", "cybersentinel-logs"),
			IndexRotation: e.String("SEARCH_INDEX_ROTATION", "daily"),
			BulkSize:      e.Int("SEARCH_BULK_SIZE", 500),
			BulkTimeout:   time.Duration(e.Int("SEARCH_BULK_TIMEOUT", 30)) * time.Second,
			MaxRetries:    e.Int("SEARCH_MAX_RETRIES", 3),
			RetentionDays: e.Int("SEARCH_RETENTION_DAYS", 30),
		},
	}
	if e.err != nil {
		return Processor{}, e.err
	}
	return c, c.Validate()
}

// Validate enforces ranges; violations abort startup.
func (c Processor) Validate() error {
	if err := c.Shared.validate(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return errors.New("PROCESSOR_WORKERS must be positive")
	}
	if len(c.Search.Addresses) == 0 {
		return errors.New("SEARCH_ADDRESSES must name at least one node")
	}
	if c.Search.BulkSize < 1 {
		return errors.New("SEARCH_BULK_SIZE must be positive")
	}
	if c.Search.BulkTimeout < time.Second {
		return errors.New("SEARCH_BULK_TIMEOUT must be at least 1 second")
	}
	if c.Search.MaxRetries < 0 {
		return errors.New("SEARCH_MAX_RETRIES must not be negative")
	}
	if c.Search.RetentionDays < 0 {
		return errors.New("SEARCH_RETENTION_DAYS must not be negative")
	}
	return nil
}

// Alerting configures the evaluate and deliver stage.
type Alerting struct {
	Shared

	ConsumerGroup string
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	DedupTTL      time.Duration
	RulesPath     string

	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	FromEmail       string
	ToEmails        []string
	SlackWebhookURL string
}

// LoadAlerting reads and validates the alerting stage configuration.
func LoadAlerting() (Alerting, error) {
	e := &env{}
	c := Alerting{
		Shared:          loadShared(e, 9103),
		ConsumerGroup:   e.String("KAFKA_CONSUMER_GROUP_ALERTING", "alerting"),
		RedisHost:       e.String("REDIS_HOST", "localhost"),
		RedisPort:       e.Int("REDIS_PORT", 6379),
		RedisDB:         e.Int("REDIS_DB", 0),
		RedisPassword:   e.String("REDIS_PASSWORD", ""),
		DedupTTL:        time.Duration(e.Int("ALERT_DEDUP_TTL", 3600)) * time.Second,
		RulesPath:       e.String("ALERT_RULES_PATH", ""),
		SMTPHost:        e.String("ALERTING_SMTP_HOST", ""),
		SMTPPort:        e.Int("ALERTING_SMTP_PORT", 587),
		SMTPUser:        e.String("ALERTING_SMTP_USER", ""),
		SMTPPassword:    e.String("ALERTING_SMTP_PASSWORD", ""),
		FromEmail:       e.String("ALERTING_FROM_EMAIL", ""),
		ToEmails:        e.CSV("ALERTING_TO_EMAILS", nil),
		SlackWebhookURL: e.String("ALERTING_SLACK_WEBHOOK_URL", ""),
	}
	if e.err != nil {
		return Alerting{}, e.err
	}
	return c, c.Validate()
}

// Validate enforces ranges; violations abort startup.
func (c Alerting) Validate() error {
	if err := c.Shared.validate(); err != nil {
		return err
	}
	if err := checkPort("REDIS_PORT", c.RedisPort); err != nil {
		return err
	}
	if c.DedupTTL < time.Second {
		return errors.New("ALERT_DEDUP_TTL must be at least 1 second")
	}
	if c.EmailEnabled() {
		if err := checkPort("ALERTING_SMTP_PORT", c.SMTPPort); err != nil {
			return err
		}
		if c.FromEmail == "" {
			return errors.New("ALERTING_FROM_EMAIL is required when SMTP is configured")
		}
		if len(c.ToEmails) == 0 {
			return errors.New("ALERTING_TO_EMAILS is required when SMTP is configured")
		}
	}
	return nil
}

// EmailEnabled reports whether the email sink is configured.
func (c Alerting) EmailEnabled() bool { return c.SMTPHost != "" }

// SlackEnabled reports whether the chat sink is configured.
func (c Alerting) SlackEnabled() bool { return c.SlackWebhookURL != "" }

// RedisAddr returns the cache address in host:port form.
func (c Alerting) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

func checkPort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in [1,65535], got %d", key, port)
	}
	return nil
}
