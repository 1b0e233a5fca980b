// Package notify sends case correspondence by e-mail.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/pkg/logger"
)

var (
	// ErrDisabled is returned when e-mail delivery is not configured
	ErrDisabled = errors.New("email delivery disabled")

	// ErrNoRecipient is returned when a case has no address to write to
	ErrNoRecipient = errors.New("no recipient address")
)

// Message is a plain-text e-mail
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers messages over SMTP with optional STARTTLS and PLAIN auth
type SMTPSender struct {
	cfg     config.EmailConfig
	timeout time.Duration
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, timeout: 30 * time.Second}
}

// Send delivers msg to msg.To
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if s.cfg.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: s.cfg.SMTPHost,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if s.cfg.SMTPUser != "" && s.cfg.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := w.Write([]byte(BuildMessage(s.cfg.From, s.cfg.FromName, msg, time.Now()))); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// the message is accepted at this point
	_ = client.Quit()
	return nil
}

// BuildMessage renders RFC 5322 headers and a UTF-8 text body
func BuildMessage(from, fromName string, msg Message, at time.Time) string {
	var b strings.Builder

	if fromName != "" {
		fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", fromName), from)
	} else {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domainOf(from))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.String()
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}

// Notifier writes the case letters
type Notifier struct {
	cfg    config.EmailConfig
	sender Sender
	logger *logger.Logger
}

// NewNotifier creates a new notifier. sender may be nil when e-mail is disabled.
func NewNotifier(cfg config.EmailConfig, sender Sender, log *logger.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		sender: sender,
		logger: log.WithComponent("notify"),
	}
}

// Enabled reports whether messages will be sent
func (n *Notifier) Enabled() bool {
	return n.cfg.Enabled && n.sender != nil
}

// ResponseDeadline is how long a provider has to answer
func (n *Notifier) ResponseDeadline() time.Duration {
	if n.cfg.ResponseDeadline <= 0 {
		return 5 * 24 * time.Hour
	}
	return n.cfg.ResponseDeadline
}

// SendAuthorizationRequest asks the provider to prove they may perform
// hyaluron pen treatments
func (n *Notifier) SendAuthorizationRequest(ctx context.Context, c *models.Case) error {
	if !n.Enabled() {
		return ErrDisabled
	}
	if c.Email == "" {
		return ErrNoRecipient
	}

	msg := AuthorizationRequest(c, n.ResponseDeadline(), n.signature())
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send authorization request: %w", err)
	}

	n.logger.Info().
		Str("case_id", c.ID.String()).
		Str("to", msg.To).
		Msg("authorization request sent")
	return nil
}

// SendHealthAuthorityReport reports an unanswered case to the health
// authority for city and returns the address used
func (n *Notifier) SendHealthAuthorityReport(ctx context.Context, c *models.Case, city string) (string, error) {
	if !n.Enabled() {
		return "", ErrDisabled
	}

	to := n.AuthorityFor(city)
	if to == "" {
		return "", ErrNoRecipient
	}

	msg := HealthAuthorityReport(c, city, to, n.signature())
	if err := n.sender.Send(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to send authority report: %w", err)
	}

	n.logger.Info().
		Str("case_id", c.ID.String()).
		Str("to", to).
		Msg("health authority notified")
	return to, nil
}

// AuthorityFor returns the configured authority address for a city, or
// gesundheitsamt@<city>.de when none is configured
func (n *Notifier) AuthorityFor(city string) string {
	key := strings.ToLower(strings.TrimSpace(city))
	if key == "" {
		return ""
	}
	if addr, ok := n.cfg.Authorities[key]; ok {
		return addr
	}
	return "gesundheitsamt@" + strings.ReplaceAll(key, " ", "") + ".de"
}

func (n *Notifier) signature() string {
	if n.cfg.FromName != "" {
		return n.cfg.FromName
	}
	return "IRI Legal Team"
}

// AuthorizationRequest renders the letter asking for proof of authorization
func AuthorizationRequest(c *models.Case, deadline time.Duration, signature string) Message {
	days := int(deadline.Hours() / 24)
	if days < 1 {
		days = 1
	}

	body := fmt.Sprintf(`Sehr geehrte Damen und Herren,

wir haben festgestellt, dass Sie auf %s (%s) Behandlungen mit dem "Hyaluron Pen" anbieten.

Bitte beachten Sie, dass in Deutschland für die Verwendung von Hyaluron Pens eine spezielle Zulassung erforderlich ist. Wir bitten Sie daher, uns innerhalb von %d Tagen Ihre Berechtigung zur Durchführung dieser Behandlungen nachzuweisen.

Falls wir innerhalb dieser Frist keine Rückmeldung erhalten, sind wir verpflichtet, diesen Fall an das zuständige Gesundheitsamt weiterzuleiten.

Mit freundlichen Grüßen,
%s
`, c.Platform, c.ProfileLink, days, signature)

	return Message{
		To:      c.Email,
		Subject: "Berechtigungsanfrage: Hyaluron Pen Behandlung",
		Body:    body,
	}
}

// HealthAuthorityReport renders the report to the local health authority
func HealthAuthorityReport(c *models.Case, city, to, signature string) Message {
	requested := "Unbekannt"
	if c.AuthorizationRequestedAt != nil {
		requested = c.AuthorizationRequestedAt.Format("02.01.2006")
	}
	notes := c.Notes
	if notes == "" {
		notes = "Keine Beschreibung verfügbar"
	}

	body := fmt.Sprintf(`Sehr geehrte Damen und Herren,

wir möchten Ihnen hiermit einen Fall von nicht-lizenzierten kosmetischen Behandlungen mit einem "Hyaluron Pen" melden.

Details zum Fall:
- Name/Studio: %s
- Plattform: %s
- Link: %s
- Ort: %s
- Risikobewertung: %.2f
- Beschreibung: %s

Wir haben dem Anbieter am %s eine Berechtigungsanfrage gesendet, haben jedoch keine Rückmeldung erhalten.

Screenshots liegen als Beweismaterial vor.

Mit freundlichen Grüßen,
%s
`, c.ProfileName, c.Platform, c.ProfileLink, city, c.RiskScore, notes, requested, signature)

	return Message{
		To:      to,
		Subject: fmt.Sprintf("Meldung: Nicht-lizenzierte Hyaluron Pen Behandlung in %s", city),
		Body:    body,
	}
}
