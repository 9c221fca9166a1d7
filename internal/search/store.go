// Package search writes enriched records to the indexed document
// store. Records land in time-rotated indices named
// <prefix>-<suffix>, so retention is whole-index deletion and never
// touches individual documents.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	elasticsearch "github.com/elastic/go-elasticsearch/v8"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/metrics"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
)

// Index rotation policies. Anything else falls back to a single
// unrotated index with the literal suffix "default".
const (
	RotationDaily   = "daily"
	RotationWeekly  = "weekly"
	RotationMonthly = "monthly"
)

// Config holds store connection and indexing configuration.
type Config struct {
	Addresses []string
	User      string
	Password  string
	// IndexPrefix is the shared prefix of every rotation index.
	IndexPrefix string
	Rotation    string
	// MaxRetries bounds the client's retries on 429/5xx; 0 disables.
	MaxRetries int
	Logger     *slog.Logger
	Metrics    *metrics.Processor
	// Transport overrides the HTTP transport, for tests.
	Transport http.RoundTripper
}

// Store is an indexed-store client scoped to one index prefix. Safe
// for concurrent use.
type Store struct {
	client   *elasticsearch.Client
	prefix   string
	rotation string
	logger   *slog.Logger
	metrics  *metrics.Processor

	mu    sync.Mutex
	known map[string]bool
}

// NewStore creates a store client. The cluster is not contacted until
// Start or the first write.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("no store addresses configured")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewProcessor()
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.User,
		Password:      cfg.Password,
		MaxRetries:    cfg.MaxRetries,
		DisableRetry:  cfg.MaxRetries == 0,
		RetryOnStatus: []int{429, 502, 503, 504},
		Transport:     cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("store client: %w", err)
	}

	return &Store{
		client:   client,
		prefix:   cfg.IndexPrefix,
		rotation: cfg.Rotation,
		logger:   logging.Default(cfg.Logger).With("component", "search"),
		metrics:  cfg.Metrics,
		known:    make(map[string]bool),
	}, nil
}

// Start pings the cluster until it answers, with the same bounded
// constant retry the bus uses: ten attempts five seconds apart.
func (s *Store) Start(ctx context.Context) error {
	attempt := 0
	ping := func() error {
		attempt++
		res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
		if err == nil {
			defer res.Body.Close()
			io.Copy(io.Discard, res.Body)
			if !res.IsError() {
				s.logger.Info("store connected", "prefix", s.prefix, "rotation", s.rotation)
				return nil
			}
			err = fmt.Errorf("store ping: %s", res.Status())
		}
		s.logger.Warn("store not ready, retrying", "attempt", attempt, "error", err)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(5*time.Second), 9), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		return fmt.Errorf("store unreachable after %d attempts: %w", attempt, err)
	}
	return nil
}

// IndexName returns the rotation index for a record received at t.
func (s *Store) IndexName(t time.Time) string {
	t = t.UTC()
	switch s.rotation {
	case RotationDaily:
		return fmt.Sprintf("%s-%04d.%02d.%02d", s.prefix, t.Year(), int(t.Month()), t.Day())
	case RotationWeekly:
		return fmt.Sprintf("%s-%04d.%02d", s.prefix, t.Year(), sundayWeek(t))
	case RotationMonthly:
		return fmt.Sprintf("%s-%04d.%02d", s.prefix, t.Year(), int(t.Month()))
	}
	return s.prefix + "-default"
}

// sundayWeek numbers weeks 0..53 with Sunday as the first day; days
// before the year's first Sunday are week 0.
func sundayWeek(t time.Time) int {
	return (t.YearDay() - 1 + 7 - int(t.Weekday())) / 7
}

// indexFor routes one record by its receive time. An unparseable
// receive time lands in the current rotation index rather than
// dropping the record.
func (s *Store) indexFor(rec record.Record) string {
	t, err := time.Parse(record.TimeLayout, rec.ReceivedAt)
	if err != nil {
		t = time.Now().UTC()
	}
	return s.IndexName(t)
}

// EnsureIndex creates name with the store mapping unless this
// instance already knows it. First-seen creation is serialized;
// losing a create race to another instance is fine.
func (s *Store) EnsureIndex(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known[name] {
		return nil
	}

	res, err := s.client.Indices.Exists([]string{name}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists %s: %w", name, err)
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		s.known[name] = true
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("index exists %s: %s", name, res.Status())
	}

	res, err = s.client.Indices.Create(name,
		s.client.Indices.Create.WithBody(strings.NewReader(indexBody)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.IsError() {
		if bytes.Contains(body, []byte("resource_already_exists_exception")) {
			s.known[name] = true
			return nil
		}
		return fmt.Errorf("create index %s: %s", name, res.Status())
	}

	s.known[name] = true
	s.logger.Info("index created", "index", name)
	return nil
}

// BulkIndex writes records in one bulk request, each routed to its
// rotation index. Returns how many documents the store accepted.
// Per-document rejections are counted and logged but do not fail the
// batch; the same record indexed twice becomes two documents.
func (s *Store) BulkIndex(ctx context.Context, recs []record.Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	queued := 0
	for i := range recs {
		name := s.indexFor(recs[i])
		if err := s.EnsureIndex(ctx, name); err != nil {
			s.logger.Warn("index ensure failed", "index", name, "error", err)
			s.metrics.StoreErrors.WithLabelValues("ensure_index").Inc()
		}
		doc, err := json.Marshal(recs[i])
		if err != nil {
			s.logger.Warn("record not serializable, dropped", "error", err)
			s.metrics.MessagesIndexed.WithLabelValues(metrics.StatusError).Inc()
			continue
		}
		buf.Write(fmt.Appendf(nil, "{\"index\":{\"_index\":%q}}\n", name))
		buf.Write(doc)
		buf.WriteByte('\n')
		queued++
	}
	if queued == 0 {
		return 0, nil
	}

	res, err := s.client.Bulk(bytes.NewReader(buf.Bytes()), s.client.Bulk.WithContext(ctx))
	if err != nil {
		s.metrics.MessagesIndexed.WithLabelValues(metrics.StatusError).Add(float64(queued))
		s.metrics.StoreErrors.WithLabelValues("bulk_transport").Inc()
		return 0, fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		io.Copy(io.Discard, res.Body)
		s.metrics.MessagesIndexed.WithLabelValues(metrics.StatusError).Add(float64(queued))
		s.metrics.StoreErrors.WithLabelValues("bulk_status").Inc()
		return 0, fmt.Errorf("bulk index: %s", res.Status())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		s.metrics.StoreErrors.WithLabelValues("bulk_response").Inc()
		return 0, fmt.Errorf("bulk response: %w", err)
	}

	indexed, failed := 0, 0
	for _, item := range parsed.Items {
		for _, r := range item {
			if r.Status >= 200 && r.Status < 300 {
				indexed++
				continue
			}
			failed++
			if r.Error != nil {
				s.logger.Warn("document rejected", "status", r.Status, "type", r.Error.Type, "reason", r.Error.Reason)
			}
		}
	}
	s.metrics.MessagesIndexed.WithLabelValues(metrics.StatusOK).Add(float64(indexed))
	if failed > 0 {
		s.metrics.MessagesIndexed.WithLabelValues(metrics.StatusError).Add(float64(failed))
		s.logger.Warn("bulk index rejected documents", "rejected", failed, "accepted", indexed)
	}
	return indexed, nil
}

// Indices lists the store's indices under this store's prefix.
func (s *Store) Indices(ctx context.Context) ([]string, error) {
	res, err := s.client.Cat.Indices(
		s.client.Cat.Indices.WithContext(ctx),
		s.client.Cat.Indices.WithIndex(s.prefix+"-*"),
		s.client.Cat.Indices.WithFormat("json"),
		s.client.Cat.Indices.WithH("index"),
	)
	if err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("list indices: %s", res.Status())
	}

	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Index)
	}
	return names, nil
}

// DeleteIndex removes one index and forgets it from the known set so
// a later write recreates it.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	res, err := s.client.Indices.Delete([]string{name}, s.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete index %s: %w", name, err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	if res.IsError() {
		return fmt.Errorf("delete index %s: %s", name, res.Status())
	}

	s.mu.Lock()
	delete(s.known, name)
	s.mu.Unlock()
	return nil
}

// SuffixTime parses the rotation suffix of an index name back into
// the start of its rotation period. Names under other prefixes or
// with foreign suffixes report false.
func (s *Store) SuffixTime(name string) (time.Time, bool) {
	suffix, ok := strings.CutPrefix(name, s.prefix+"-")
	if !ok {
		return time.Time{}, false
	}
	switch s.rotation {
	case RotationDaily:
		t, err := time.Parse("2006.01.02", suffix)
		return t, err == nil
	case RotationWeekly:
		var year, week int
		if _, err := fmt.Sscanf(suffix, "%4d.%2d", &year, &week); err != nil || week < 0 || week > 53 {
			return time.Time{}, false
		}
		if fmt.Sprintf("%04d.%02d", year, week) != suffix {
			return time.Time{}, false
		}
		return weekStart(year, week), true
	case RotationMonthly:
		t, err := time.Parse("2006.01", suffix)
		return t, err == nil
	}
	return time.Time{}, false
}

// weekStart returns the first day of Sunday-first week number w:
// January 1 for week 0, the w-th Sunday otherwise.
func weekStart(year, w int) time.Time {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if w == 0 {
		return jan1
	}
	firstSunday := jan1.AddDate(0, 0, (7-int(jan1.Weekday()))%7)
	return firstSunday.AddDate(0, 0, (w-1)*7)
}

type bulkResponse struct {
	Errors bool                      `json:"errors"`
	Items  []map[string]bulkItemInfo `json:"items"`
}

type bulkItemInfo struct {
	Status int `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// indexBody is the settings and mapping every rotation index is
// created with.
const indexBody = `{
  "settings": {
    "number_of_shards": 3,
    "number_of_replicas": 1,
    "refresh_interval": "5s"
  },
  "mappings": {
    "properties": {
      "timestamp":             {"type": "date"},
      "received_at":           {"type": "date"},
      "processed_at":          {"type": "date"},
      "source_ip":             {"type": "ip"},
      "extracted_ips":         {"type": "ip"},
      "hostname":              {"type": "keyword"},
      "facility_name":         {"type": "keyword"},
      "severity_name":         {"type": "keyword"},
      "severity_category":     {"type": "keyword"},
      "protocol":              {"type": "keyword"},
      "app_name":              {"type": "keyword"},
      "proc_id":               {"type": "keyword"},
      "format":                {"type": "keyword"},
      "threat_keywords":       {"type": "keyword"},
      "tags":                  {"type": "keyword"},
      "fingerprint":           {"type": "keyword"},
      "facility":              {"type": "integer"},
      "severity":              {"type": "integer"},
      "threat_score":          {"type": "integer"},
      "message":               {"type": "text"},
      "raw":                   {"type": "text"},
      "has_threat_indicators": {"type": "boolean"}
    }
  }
}`
