package mailer

import (
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/ldelange/invitation/internal/models"
)

// Sender delivers a single mail request. The SMTP implementation below is
// the production one; tests substitute their own.
type Sender interface {
	Send(req *models.MailRequest) error
}

// SMTPConfig carries everything needed to reach the relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Secure   bool // implicit TLS (port 465 style) instead of STARTTLS
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through a single relay using PLAIN auth.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

var _ Sender = (*SMTPSender)(nil)

func (s *SMTPSender) Send(req *models.MailRequest) error {
	if len(req.To) == 0 {
		return fmt.Errorf("mail %s has no recipients", req.ID)
	}

	msg := buildMessage(s.cfg.From, req)
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	if !s.cfg.Secure {
		if err := smtp.SendMail(addr, auth, s.cfg.From, req.To, msg); err != nil {
			return fmt.Errorf("failed to send mail %s: %w", req.ID, err)
		}
		return nil
	}

	// smtp.SendMail only does STARTTLS, so implicit TLS needs a manual dial.
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return fmt.Errorf("failed to dial smtp relay: %w", err)
	}
	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open smtp session: %w", err)
	}
	defer c.Close()

	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("failed to authenticate with smtp relay: %w", err)
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, to := range req.To {
		if err := c.Rcpt(to); err != nil {
			return fmt.Errorf("failed to add recipient %s: %w", to, err)
		}
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("failed to open message body: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fmt.Errorf("failed to write message body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finish message body: %w", err)
	}
	return c.Quit()
}

// buildMessage renders a multipart/alternative RFC 5322 message with the
// plain-text part first so clients that ignore MIME still show something.
func buildMessage(from string, req *models.MailRequest) []byte {
	boundary := fmt.Sprintf("b-%s", req.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(req.To, ", "))
	if req.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", req.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", req.Message.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")

	if req.Message.HTML == "" {
		fmt.Fprintf(&b, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(req.Message.Text)
		b.WriteString("\r\n")
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, req.Message.Text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, req.Message.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
