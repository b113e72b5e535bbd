// Package mail formats and delivers quote-request notifications over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// QuoteRequest is a prospective customer's request for pricing.
type QuoteRequest struct {
	Name     string `json:"name"     binding:"required"`
	Email    string `json:"email"    binding:"required,email"`
	Company  string `json:"company"`
	Phone    string `json:"phone"`
	Message  string `json:"message"  binding:"required"`
	Displays int    `json:"displays" binding:"gte=0"`
}

type Sender interface {
	SendQuoteRequest(ctx context.Context, q QuoteRequest) error
}

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
}

type SMTPSender struct {
	cfg     SMTPConfig
	timeout time.Duration
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, timeout: 30 * time.Second}
}

// headerSafe strips CR and LF so user input cannot inject headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(strings.TrimSpace(s))
}

// BuildQuoteMessage renders the RFC 5322 message for q.
func BuildQuoteMessage(from, to string, q QuoteRequest) string {
	var msg strings.Builder
	subject := "Quote request from " + headerSafe(q.Name)
	if q.Company != "" {
		subject += " (" + headerSafe(q.Company) + ")"
	}

	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Reply-To: %s\r\n", headerSafe(q.Email))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")

	fmt.Fprintf(&msg, "Name: %s\r\n", q.Name)
	fmt.Fprintf(&msg, "Email: %s\r\n", q.Email)
	if q.Company != "" {
		fmt.Fprintf(&msg, "Company: %s\r\n", q.Company)
	}
	if q.Phone != "" {
		fmt.Fprintf(&msg, "Phone: %s\r\n", q.Phone)
	}
	if q.Displays > 0 {
		fmt.Fprintf(&msg, "Displays: %d\r\n", q.Displays)
	}
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(q.Message, "\n", "\r\n"))
	msg.WriteString("\r\n")
	return msg.String()
}

func (s *SMTPSender) SendQuoteRequest(ctx context.Context, q QuoteRequest) error {
	msg := BuildQuoteMessage(s.cfg.From, s.cfg.Recipient, q)
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))

	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}
	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(s.cfg.Recipient); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return client.Quit()
}
