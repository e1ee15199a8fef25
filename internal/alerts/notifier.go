package alerts

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	subjectPrefix   = "[Tradesight]"
	smtpTimeout     = 15 * time.Second
	defaultSMTPPort = 587
)

// SMTPConfig holds outbound mail settings. Recipients maps user ids to
// addresses; users without an entry get DefaultTo.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	DefaultTo  string
	Recipients map[string]string
}

func (c SMTPConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.From) != ""
}

func (c SMTPConfig) recipient(userID string) string {
	if to, ok := c.Recipients[userID]; ok && to != "" {
		return to
	}
	return c.DefaultTo
}

type sendFunc func(cfg SMTPConfig, to, subject, body string) error

// EmailNotifier sends alerts over SMTP.
type EmailNotifier struct {
	cfg    SMTPConfig
	send   sendFunc
	logger *zap.Logger
}

func NewEmailNotifier(cfg SMTPConfig, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, send: sendMail, logger: logger.Named("email")}
}

func (n *EmailNotifier) Notify(ctx context.Context, userID, subject, body string) error {
	to := n.cfg.recipient(userID)
	if to == "" {
		return fmt.Errorf("no email recipient for user %s", userID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := n.send(n.cfg, to, subjectPrefix+" "+subject, body); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	n.logger.Debug("alert email sent", zap.String("user_id", userID), zap.String("to", to))
	return nil
}

func sendMail(cfg SMTPConfig, to, subject, body string) error {
	port := cfg.Port
	if port == 0 {
		port = defaultSMTPPort
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	var conn net.Conn
	var err error
	if port == 465 {
		conn, err = tls.DialWithDialer(&net.Dialer{Timeout: smtpTimeout}, "tcp", addr, &tls.Config{ServerName: cfg.Host})
	} else {
		conn, err = net.DialTimeout("tcp", addr, smtpTimeout)
	}
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if cfg.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		cfg.From, to, subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return client.Quit()
}

// MultiNotifier fans a message out to every notifier and returns the first error.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, userID, subject, body string) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, userID, subject, body); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LogNotifier writes notifications to the log. Used when no channel is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(_ context.Context, userID, subject, body string) error {
	l.Logger.Info("alert", zap.String("user_id", userID), zap.String("subject", subject), zap.String("body", body))
	return nil
}
