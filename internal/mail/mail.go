// Package mail defines the outbound mail-sending capability consumed
// by the dispatch orchestrator, and its SMTP submission implementation.
package mail

import (
	"context"
	"errors"
)

// Attachment is one file carried by a message. A non-empty CID makes
// the attachment inline-referenceable from the HTML body.
type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
	CID         string
}

// Message is a fully composed outbound email.
type Message struct {
	From        string
	To          []string
	Bcc         []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Recipients returns every address the message targets.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Bcc))
	out = append(out, m.To...)
	return append(out, m.Bcc...)
}

// Result reports which addresses the server accepted or rejected.
type Result struct {
	Accepted []string
	Rejected []string
}

// Sender submits messages. One sender is acquired per dispatch run and
// must be released with Close on every exit path.
type Sender interface {
	Send(ctx context.Context, msg *Message) (*Result, error)
	Close() error
}

// Kind classifies a send failure.
type Kind string

const (
	// KindAuth marks credential failures. Never retried.
	KindAuth Kind = "auth"
	// KindTransient marks connection resets, timeouts and socket
	// errors. Eligible for retry with backoff.
	KindTransient Kind = "transient"
	// KindOther marks everything else. Not retried.
	KindOther Kind = "other"
)

// SendError is a classified send failure.
type SendError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *SendError) Error() string {
	return e.Message
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ErrorKind extracts the classification from err, defaulting to
// KindOther for unclassified errors.
func ErrorKind(err error) Kind {
	var se *SendError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindOther
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	return ErrorKind(err) == KindAuth
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return ErrorKind(err) == KindTransient
}
