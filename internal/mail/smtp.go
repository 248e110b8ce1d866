package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"

	"github.com/zapsend/zapsend/internal/config"
)

// SMTPSender submits messages over authenticated SMTP with STARTTLS.
// It keeps a small connection pool for the lifetime of one dispatch
// run; callers must Close it when the run ends.
type SMTPSender struct {
	addr    string
	sender  string
	pool    *email.Pool
	timeout time.Duration
}

// NewSMTPSender opens a submission channel for the given credentials.
// The host is resolved from the sender address's provider.
func NewSMTPSender(sender, password string, cfg config.SMTPConfig) (*SMTPSender, error) {
	host, port := ResolveHost(sender, cfg)
	addr := fmt.Sprintf("%s:%d", host, port)
	auth := smtp.PlainAuth("", sender, password, host)

	pool, err := email.NewPool(addr, 1, auth)
	if err != nil {
		return nil, Classify(fmt.Errorf("failed to open smtp pool for %s: %w", addr, err))
	}

	return &SMTPSender{
		addr:    addr,
		sender:  sender,
		pool:    pool,
		timeout: cfg.ConnectTimeout,
	}, nil
}

// Send composes and submits one message. The server either accepts the
// whole recipient set or the submission fails as a unit.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(err)
	}

	e := email.NewEmail()
	e.From = msg.From
	if e.From == "" {
		e.From = FormatFrom(s.sender)
	}
	e.To = msg.To
	e.Bcc = msg.Bcc
	e.Subject = msg.Subject
	e.HTML = []byte(msg.HTML)

	for _, att := range msg.Attachments {
		a, err := e.Attach(bytes.NewReader(att.Content), att.Filename, att.ContentType)
		if err != nil {
			return nil, Classify(fmt.Errorf("failed to attach %s: %w", att.Filename, err))
		}
		if att.CID != "" {
			a.HTMLRelated = true
			a.Header.Set("Content-ID", fmt.Sprintf("<%s>", att.CID))
			a.Header.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", att.Filename))
		}
	}

	if err := s.pool.Send(e, s.timeout); err != nil {
		return nil, Classify(err)
	}

	return &Result{Accepted: msg.Recipients()}, nil
}

// Close releases the pooled connections.
func (s *SMTPSender) Close() error {
	s.pool.Close()
	return nil
}
