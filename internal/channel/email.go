package channel

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/record"
)

const smtpTimeout = 30 * time.Second

// EmailConfig holds SMTP sink configuration. User empty means the
// server takes unauthenticated mail.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
	Logger   *slog.Logger
}

// Email delivers alerts over SMTP, upgrading to TLS when the server
// offers it.
type Email struct {
	cfg    EmailConfig
	logger *slog.Logger
}

// NewEmail builds the SMTP sink.
func NewEmail(cfg EmailConfig) *Email {
	return &Email{
		cfg:    cfg,
		logger: logging.Default(cfg.Logger).With("component", "channel", "channel", "email"),
	}
}

func (e *Email) Name() string { return "email" }

// Send builds the multipart message and hands it to the SMTP server.
func (e *Email) Send(ctx context.Context, alert record.Alert) bool {
	msg, err := buildEmail(e.cfg.From, e.cfg.To, alert)
	if err != nil {
		e.logger.Error("email alert not buildable", "rule", alert.RuleName, "error", err)
		return false
	}
	if err := e.deliver(ctx, msg); err != nil {
		e.logger.Error("email alert failed", "rule", alert.RuleName, "error", err)
		return false
	}
	e.logger.Info("email alert sent", "rule", alert.RuleName, "to", e.cfg.To)
	return true
}

// deliver speaks SMTP with a hard deadline over the whole exchange.
func (e *Email) deliver(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	dialer := net.Dialer{Timeout: smtpTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(smtpTimeout)); err != nil {
		return err
	}

	client, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{ServerName: e.cfg.Host, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if e.cfg.User != "" {
		auth := smtp.PlainAuth("", e.cfg.User, e.cfg.Password, e.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(e.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range e.cfg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// buildEmail renders the alert as a multipart/alternative message
// with a plain part and an HTML part.
func buildEmail(from string, to []string, alert record.Alert) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: [%s] %s\r\n", strings.ToUpper(alert.Severity), alert.RuleName)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	fmt.Fprintf(&buf, "\r\n")

	plain, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/plain; charset="utf-8"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := plain.Write([]byte(plainBody(alert))); err != nil {
		return nil, err
	}

	html, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/html; charset="utf-8"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := html.Write([]byte(htmlBody(alert))); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func plainBody(a record.Alert) string {
	return fmt.Sprintf(`CyberSentinel Alert

Severity: %s
Rule: %s
Description: %s
Timestamp: %s

Log Details:
- Hostname: %s
- Source IP: %s
- Facility: %s
- Severity: %s
- Message: %s

Threat Score: %d
Threat Indicators: %s
`,
		strings.ToUpper(a.Severity), a.RuleName, a.Description, a.Timestamp,
		orNA(a.LogData.Hostname), orNA(a.LogData.SourceIP),
		orNA(a.LogData.FacilityName), orNA(a.LogData.SeverityName),
		orNA(a.LogData.Message),
		a.LogData.ThreatScore, joinOrNone(a.LogData.ThreatKeywords),
	)
}

func htmlBody(a record.Alert) string {
	row := func(label, value string) string {
		return fmt.Sprintf(
			`<tr><td style="padding: 8px; border: 1px solid #ddd;"><strong>%s:</strong></td>`+
				`<td style="padding: 8px; border: 1px solid #ddd;">%s</td></tr>`,
			label, value)
	}

	var b strings.Builder
	b.WriteString(`<html><body style="font-family: Arial, sans-serif;">`)
	b.WriteString(`<div style="background-color: #f44336; color: white; padding: 20px; border-radius: 5px;">`)
	b.WriteString(`<h2>CyberSentinel Alert</h2>`)
	fmt.Fprintf(&b, `<p><strong>Severity:</strong> %s</p></div>`, strings.ToUpper(a.Severity))

	b.WriteString(`<div style="padding: 20px; background-color: #f5f5f5; margin-top: 20px; border-radius: 5px;">`)
	fmt.Fprintf(&b, `<h3>%s</h3><p>%s</p>`, a.RuleName, a.Description)
	fmt.Fprintf(&b, `<p><strong>Timestamp:</strong> %s</p></div>`, a.Timestamp)

	b.WriteString(`<div style="padding: 20px; margin-top: 20px;"><h3>Log Details</h3>`)
	b.WriteString(`<table style="width: 100%; border-collapse: collapse;">`)
	b.WriteString(row("Hostname", orNA(a.LogData.Hostname)))
	b.WriteString(row("Source IP", orNA(a.LogData.SourceIP)))
	b.WriteString(row("Facility", orNA(a.LogData.FacilityName)))
	b.WriteString(row("Severity", orNA(a.LogData.SeverityName)))
	b.WriteString(row("Message", orNA(a.LogData.Message)))
	b.WriteString(row("Threat Score", strconv.Itoa(a.LogData.ThreatScore)))
	b.WriteString(`</table></div></body></html>`)
	return b.String()
}
