// Package mailer sends transactional emails over SMTP, or logs them when no
// SMTP host is configured.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-mail/mail/v2"
	"go.uber.org/zap"

	"payflow.io/payflow/internal/config"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Validate rejects messages that no transport could deliver.
func (m Message) Validate() error {
	if m.To == "" {
		return errors.New("mailer: recipient is required")
	}
	if m.Subject == "" {
		return errors.New("mailer: subject is required")
	}
	return nil
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP sender when cfg.Host is set, otherwise a LogSender.
func New(cfg config.MailConfig, logger *zap.Logger) Sender {
	if cfg.Host == "" {
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg, logger)
}

// LogSender writes messages to the log. Used in development and tests.
type LogSender struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger.Named("mailer")}
}

// Send records and logs msg.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	s.logger.Info("email sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}

// Sent returns a copy of every message sent so far.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// SMTPSender delivers through an SMTP relay. A new connection is dialled per
// message; volumes are low and it keeps the sender free of connection state.
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
	logger *zap.Logger
}

// NewSMTPSender creates an SMTPSender from mail configuration.
func NewSMTPSender(cfg config.MailConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{
		dialer: mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger.Named("mailer"),
	}
}

// Send dials the relay and delivers msg.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Warn("smtp delivery failed", zap.String("to", msg.To), zap.Error(err))
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	s.logger.Debug("email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
