// Package email sends transactional mail. Production delivers through Resend;
// development and tests use senders that never leave the process.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/resend/resend-go/v3"
	"go.uber.org/zap"
)

// Message is a rendered email.
type Message struct {
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

func (m *Message) validate() error {
	if len(m.To) == 0 {
		return errors.New("email has no recipient")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("email has no subject")
	}
	return nil
}

// EmailSender delivers a Message.
type EmailSender interface {
	Send(ctx context.Context, msg Message) error
}

type resendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender sends through the Resend API. from is a full address such as
// "Pillarworks <hello@pillarworks.co.uk>".
func NewResendSender(apiKey, from string) EmailSender {
	return &resendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *resendSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send email %q: %w", msg.Subject, err)
	}
	return nil
}

type logSender struct {
	from string
	log  *zap.Logger
}

// NewLogSender writes every message to the log instead of delivering it, so a
// developer can read confirmation mails without a mail provider.
func NewLogSender(from string) EmailSender {
	return &logSender{from: from, log: zap.L().Named("email")}
}

func (s *logSender) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.log.Info("email (not delivered)",
		zap.String("from", s.from),
		zap.Strings("to", msg.To),
		zap.String("reply_to", msg.ReplyTo),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}

// Recorder keeps sent messages in memory. Tests assert on Messages.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Messages returns a copy of what has been sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}
