package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
)

// severityColors maps alert severities to attachment bar colors.
var severityColors = map[string]string{
	"critical": "#ff0000",
	"high":     "#ff6600",
	"medium":   "#ffcc00",
	"low":      "#00cc00",
}

const defaultColor = "#cccccc"

// slackMessageLimit caps the message field in the attachment.
const slackMessageLimit = 200

// Slack posts alerts to an incoming-webhook URL.
type Slack struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewSlack builds the webhook sink.
func NewSlack(webhookURL string, logger *slog.Logger) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logging.Default(logger).With("component", "channel", "channel", "slack"),
		now:        time.Now,
	}
}

func (s *Slack) Name() string { return "slack" }

// Send posts one alert to the webhook.
func (s *Slack) Send(ctx context.Context, alert record.Alert) bool {
	if s.webhookURL == "" {
		s.logger.Warn("slack webhook not configured")
		return false
	}

	msg := s.message(alert)
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, msg); err != nil {
		s.logger.Error("slack alert failed", "rule", alert.RuleName, "error", err)
		return false
	}
	s.logger.Info("slack alert sent", "rule", alert.RuleName)
	return true
}

// message renders the alert as a webhook payload with one colored
// attachment.
func (s *Slack) message(alert record.Alert) *slack.WebhookMessage {
	color, ok := severityColors[alert.Severity]
	if !ok {
		color = defaultColor
	}

	fields := []slack.AttachmentField{
		{Title: "Severity", Value: strings.ToUpper(alert.Severity), Short: true},
		{Title: "Rule", Value: alert.RuleName, Short: true},
		{Title: "Description", Value: alert.Description, Short: false},
		{Title: "Hostname", Value: orNA(alert.LogData.Hostname), Short: true},
		{Title: "Source IP", Value: orNA(alert.LogData.SourceIP), Short: true},
		{Title: "Message", Value: orNA(truncateRunes(alert.LogData.Message, slackMessageLimit)), Short: false},
		{Title: "Threat Score", Value: strconv.Itoa(alert.LogData.ThreatScore), Short: true},
	}

	return &slack.WebhookMessage{
		Text: fmt.Sprintf(":rotating_light: *CyberSentinel Alert* - %s", alert.RuleName),
		Attachments: []slack.Attachment{{
			Color:  color,
			Fields: fields,
			Footer: "CyberSentinel",
			Ts:     json.Number(strconv.FormatInt(s.now().UTC().Unix(), 10)),
		}},
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
